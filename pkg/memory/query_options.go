package memory

// searchOptions accumulates optional parameters for a Query beyond its
// required Text and Scope. Unexported — callers configure it via
// [QueryOpt] functional options and read it back with [ApplyQueryOpts].
type searchOptions struct {
	filter    map[string]any
	limit     int
	threshold float64
}

// QueryOpt is a functional option refining a [Query].
type QueryOpt func(*searchOptions)

// WithFilter adds a metadata-equality filter, merged (AND) with the query's
// Scope filter.
func WithFilter(filter map[string]any) QueryOpt {
	return func(o *searchOptions) { o.filter = filter }
}

// WithLimit caps the number of results. The value is taken literally: zero
// yields an empty result; a negative value is rejected by the orchestrator as
// InvalidArguments.
func WithLimit(n int) QueryOpt {
	return func(o *searchOptions) { o.limit = n }
}

// WithThreshold discards results scoring below threshold.
func WithThreshold(threshold float64) QueryOpt {
	return func(o *searchOptions) { o.threshold = threshold }
}

// ApplyQueryOpts applies a slice of [QueryOpt] and returns the resolved
// parameters. Exported so storage backends and the orchestrator can read
// option values without reaching into the unexported [searchOptions] type.
func ApplyQueryOpts(opts []QueryOpt) (filter map[string]any, limit int, threshold float64) {
	o := &searchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o.filter, o.limit, o.threshold
}
