package orchestrator

import (
	"github.com/sixfold-ai/memcore/internal/config"
	"github.com/sixfold-ai/memcore/internal/graphextract"
	"github.com/sixfold-ai/memcore/internal/resilience"
	"github.com/sixfold-ai/memcore/internal/telemetry"
	"github.com/sixfold-ai/memcore/pkg/memory"
)

// defaultMaxConcurrency bounds the number of public calls admitted at once
// when the caller does not override it with WithMaxConcurrency.
const defaultMaxConcurrency = 32

// defaultNeighborK is the number of near-neighbour facts reconciliation
// retrieves per candidate when WithReconcileNeighborK is not set.
const defaultNeighborK = 5

// Option configures an Orchestrator during construction.
type Option func(*settings)

// settings accumulates the result of applying every Option before New builds
// the resilience-wrapped providers and pipeline stages.
type settings struct {
	graph     memory.GraphStore
	graphOpts []graphextract.Option

	sink           telemetry.Sink
	maxConcurrency int
	neighborK      int

	llmGuard      resilience.GuardConfig
	embedderGuard resilience.GuardConfig
	vectorGuard   resilience.GuardConfig
	graphGuard    resilience.GuardConfig
	historyGuard  resilience.GuardConfig
}

func defaultSettings() *settings {
	return &settings{
		maxConcurrency: defaultMaxConcurrency,
		neighborK:      defaultNeighborK,
		llmGuard:       resilience.GuardConfig{Timeout: config.DefaultLLMTimeout},
		embedderGuard:  resilience.GuardConfig{Timeout: config.DefaultEmbedderTimeout},
		vectorGuard:    resilience.GuardConfig{Timeout: config.DefaultStoreTimeout},
		graphGuard:     resilience.GuardConfig{Timeout: config.DefaultStoreTimeout},
		historyGuard:   resilience.GuardConfig{Timeout: config.DefaultStoreTimeout},
	}
}

// WithGraphStore configures the optional knowledge-graph layer. graphOpts are
// forwarded to graphextract.New — entity-merge threshold/top-k and an
// allowed-predicates list.
func WithGraphStore(graph memory.GraphStore, graphOpts ...graphextract.Option) Option {
	return func(s *settings) {
		s.graph = graph
		s.graphOpts = graphOpts
	}
}

// WithTelemetrySink sets the sink every public call reports one Record to.
// The default is telemetry.NoopSink{}.
func WithTelemetrySink(sink telemetry.Sink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithMaxConcurrency bounds the number of public calls admitted concurrently,
// implementing the blocking surface's worker pool. Callers beyond the bound
// block on admission rather than piling up provider requests. Default 32.
func WithMaxConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithReconcileNeighborK sets how many near-neighbour facts reconciliation
// retrieves per candidate. Default 5.
func WithReconcileNeighborK(k int) Option {
	return func(s *settings) {
		if k > 0 {
			s.neighborK = k
		}
	}
}

// WithResilience applies per-capability timeouts and the shared retry policy
// from cfg to every provider guard. A zero timeout in cfg falls back to the
// config package default for that capability; zero retry fields fall back
// to resilience.Retry's own defaults.
func WithResilience(cfg config.ResilienceConfig) Option {
	return func(s *settings) {
		retry := resilience.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			Factor:         cfg.Retry.BackoffFactor,
		}
		llmTimeout, embedderTimeout, storeTimeout := cfg.Timeouts.LLM, cfg.Timeouts.Embedder, cfg.Timeouts.Store
		if llmTimeout <= 0 {
			llmTimeout = config.DefaultLLMTimeout
		}
		if embedderTimeout <= 0 {
			embedderTimeout = config.DefaultEmbedderTimeout
		}
		if storeTimeout <= 0 {
			storeTimeout = config.DefaultStoreTimeout
		}
		s.llmGuard = resilience.GuardConfig{Timeout: llmTimeout, Retry: retry}
		s.embedderGuard = resilience.GuardConfig{Timeout: embedderTimeout, Retry: retry}
		s.vectorGuard = resilience.GuardConfig{Timeout: storeTimeout, Retry: retry}
		s.graphGuard = resilience.GuardConfig{Timeout: storeTimeout, Retry: retry}
		s.historyGuard = resilience.GuardConfig{Timeout: storeTimeout, Retry: retry}
	}
}

// WithLLMGuard overrides the resilience policy applied to the LLM provider,
// bypassing WithResilience's shared timeout/retry for this one capability.
func WithLLMGuard(cfg resilience.GuardConfig) Option {
	return func(s *settings) { s.llmGuard = cfg }
}

// WithEmbedderGuard overrides the resilience policy applied to the
// embeddings provider.
func WithEmbedderGuard(cfg resilience.GuardConfig) Option {
	return func(s *settings) { s.embedderGuard = cfg }
}

// WithVectorStoreGuard overrides the resilience policy applied to the
// vector store.
func WithVectorStoreGuard(cfg resilience.GuardConfig) Option {
	return func(s *settings) { s.vectorGuard = cfg }
}

// WithGraphStoreGuard overrides the resilience policy applied to the graph
// store. Has no effect unless WithGraphStore is also used.
func WithGraphStoreGuard(cfg resilience.GuardConfig) Option {
	return func(s *settings) { s.graphGuard = cfg }
}

// WithHistoryLogGuard overrides the resilience policy applied to the
// history log.
func WithHistoryLogGuard(cfg resilience.GuardConfig) Option {
	return func(s *settings) { s.historyGuard = cfg }
}
