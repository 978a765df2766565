// Package telemetry records one fire-and-forget observation per public
// orchestrator call. Recording never blocks the caller on sink failure and
// never returns an error to the orchestrator.
package telemetry

import (
	"context"
	"time"
)

// Record is the single observation emitted per public call.
type Record struct {
	// Op names the call ("add", "search", "get", "delete", "delete_all",
	// "history", "reset").
	Op string

	// ProviderKinds lists the provider kinds this call exercised (e.g.
	// "llm", "embeddings", "vector_store", "graph_store", "history_log"),
	// in no particular order.
	ProviderKinds []string

	StartedAt  time.Time
	DurationMs int64

	// Outcome is "ok" or the errs.Kind string of the error returned.
	Outcome string
}

// Sink receives Records. Implementations must not block the caller for
// longer than is reasonable for an in-process metrics update, and must
// never panic.
type Sink interface {
	Record(ctx context.Context, r Record)
}

// NoopSink discards every record. It is the default when no Sink is
// configured, implementing the core's opt-out mechanism for telemetry.
type NoopSink struct{}

// Record implements Sink by doing nothing.
func (NoopSink) Record(context.Context, Record) {}

var _ Sink = NoopSink{}

// Observe times fn, then records a Record describing its outcome to sink.
// Sink may be nil, in which case Observe still runs fn but records nothing.
// outcomeOf, when non-nil, maps the error fn returns into Record.Outcome;
// the default is "ok" for a nil error and "error" otherwise.
func Observe(ctx context.Context, sink Sink, op string, providerKinds []string, outcomeOf func(error) string, fn func() error) error {
	start := time.Now()
	err := fn()

	if sink == nil {
		return err
	}

	outcome := "ok"
	if err != nil {
		if outcomeOf != nil {
			outcome = outcomeOf(err)
		} else {
			outcome = "error"
		}
	}

	sink.Record(ctx, Record{
		Op:            op,
		ProviderKinds: providerKinds,
		StartedAt:     start,
		DurationMs:    time.Since(start).Milliseconds(),
		Outcome:       outcome,
	})
	return err
}
