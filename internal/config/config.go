// Package config provides the configuration schema, loader, and provider
// registry for the memory orchestration core.
package config

import "time"

// Config is the root configuration structure for the core. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Memory     MemoryConfig     `yaml:"memory"`
}

// ServerConfig holds process-wide logging settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated slog level name.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised level names.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// ProvidersConfig binds each core capability to a named provider
// implementation. LLM, Embedder, VectorStore, and HistoryLog are required;
// GraphStore is optional — a zero-value entry means the core runs without
// a graph layer.
type ProvidersConfig struct {
	LLM         ProviderEntry `yaml:"llm"`
	Embedder    ProviderEntry `yaml:"embedder"`
	VectorStore ProviderEntry `yaml:"vector_store"`
	GraphStore  ProviderEntry `yaml:"graph_store"`
	HistoryLog  ProviderEntry `yaml:"history_log"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. Kind selects the constructor registered in the [Registry]; Params
// carries whatever that constructor needs (API keys, DSNs, model names).
type ProviderEntry struct {
	// Kind selects the registered provider implementation (e.g. "openai", "postgres").
	Kind string `yaml:"kind"`

	// Params holds provider-specific configuration values. Values may be
	// strings, numbers, booleans, or nested maps.
	Params map[string]any `yaml:"params"`
}

// IsZero reports whether e is the empty entry (no provider configured).
func (e ProviderEntry) IsZero() bool {
	return e.Kind == "" && len(e.Params) == 0
}

// ResilienceConfig governs per-provider timeouts and the transient-error
// retry policy shared by every provider call the core makes.
type ResilienceConfig struct {
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Retry    RetryConfig   `yaml:"retry"`
}

// TimeoutConfig sets the per-provider-kind call timeout. A zero duration
// falls back to the package defaults, filled in by [LoadFromReader] before
// [Validate] runs.
type TimeoutConfig struct {
	LLM      time.Duration `yaml:"llm"`
	Embedder time.Duration `yaml:"embedder"`
	Store    time.Duration `yaml:"store"`
}

// Default timeouts applied when a TimeoutConfig field is left unset.
const (
	DefaultLLMTimeout      = 30 * time.Second
	DefaultEmbedderTimeout = 5 * time.Second
	DefaultStoreTimeout    = 5 * time.Second
)

// RetryConfig controls the exponential backoff applied to transient
// provider errors.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
}

// Default retry policy applied when RetryConfig is left entirely unset.
const (
	DefaultRetryMaxAttempts    = 3
	DefaultRetryInitialBackoff = 250 * time.Millisecond
	DefaultRetryBackoffFactor  = 2.0
)

// MemoryConfig holds settings for fact persistence and graph extraction
// that are not themselves provider bindings.
type MemoryConfig struct {
	// EmbeddingDimensions is the vector dimension used by the vector store.
	// Must match the model configured under providers.embedder.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// EntityMergeThreshold is the minimum similarity score at which the
	// graph stage merges a newly extracted entity into an existing one
	// instead of creating a new entity. Zero means the package default.
	EntityMergeThreshold float64 `yaml:"entity_merge_threshold"`

	// EntityMergeTopK bounds how many similar entities the graph stage
	// considers per merge decision. Zero means the package default.
	EntityMergeTopK int `yaml:"entity_merge_top_k"`

	// AllowedPredicates, when non-empty, restricts the relation predicates
	// the graph stage will persist; any extracted relation using a
	// predicate outside this list is dropped. Empty means unrestricted.
	AllowedPredicates []string `yaml:"allowed_predicates"`
}
