package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderKinds lists known provider kinds per capability. Used by
// [Validate] to warn about unrecognised provider kinds.
var ValidProviderKinds = map[string][]string{
	"llm":          {"openai", "anthropic", "ollama", "gemini", "anyllm"},
	"embedder":     {"openai", "ollama"},
	"vector_store": {"postgres", "inmemory"},
	"graph_store":  {"postgres", "inmemory"},
	"history_log":  {"postgres", "inmemory"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in package-level defaults for fields left unset by
// the caller's YAML.
func applyDefaults(cfg *Config) {
	if cfg.Resilience.Timeouts.LLM == 0 {
		cfg.Resilience.Timeouts.LLM = DefaultLLMTimeout
	}
	if cfg.Resilience.Timeouts.Embedder == 0 {
		cfg.Resilience.Timeouts.Embedder = DefaultEmbedderTimeout
	}
	if cfg.Resilience.Timeouts.Store == 0 {
		cfg.Resilience.Timeouts.Store = DefaultStoreTimeout
	}
	if cfg.Resilience.Retry.MaxAttempts == 0 {
		cfg.Resilience.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.Resilience.Retry.InitialBackoff == 0 {
		cfg.Resilience.Retry.InitialBackoff = DefaultRetryInitialBackoff
	}
	if cfg.Resilience.Retry.BackoffFactor == 0 {
		cfg.Resilience.Retry.BackoffFactor = DefaultRetryBackoffFactor
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.LLM.IsZero() {
		errs = append(errs, errors.New("providers.llm is required"))
	}
	if cfg.Providers.Embedder.IsZero() {
		errs = append(errs, errors.New("providers.embedder is required"))
	}
	if cfg.Providers.VectorStore.IsZero() {
		errs = append(errs, errors.New("providers.vector_store is required"))
	}
	if cfg.Providers.HistoryLog.IsZero() {
		errs = append(errs, errors.New("providers.history_log is required"))
	}
	// providers.graph_store is optional — the core runs without a graph
	// layer when it is left unset.

	validateProviderKind("llm", cfg.Providers.LLM.Kind)
	validateProviderKind("embedder", cfg.Providers.Embedder.Kind)
	validateProviderKind("vector_store", cfg.Providers.VectorStore.Kind)
	if !cfg.Providers.GraphStore.IsZero() {
		validateProviderKind("graph_store", cfg.Providers.GraphStore.Kind)
	}
	validateProviderKind("history_log", cfg.Providers.HistoryLog.Kind)

	if cfg.Memory.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("memory.embedding_dimensions %d must not be negative", cfg.Memory.EmbeddingDimensions))
	}
	if cfg.Memory.EmbeddingDimensions == 0 {
		slog.Warn("memory.embedding_dimensions is not set; vector stores are built with zero dimensions and the embedder's dimensionality is not consulted")
	}

	if cfg.Memory.EntityMergeThreshold < 0 || cfg.Memory.EntityMergeThreshold > 1 {
		errs = append(errs, fmt.Errorf("memory.entity_merge_threshold %.2f is out of range [0, 1]", cfg.Memory.EntityMergeThreshold))
	}
	if cfg.Memory.EntityMergeTopK < 0 {
		errs = append(errs, fmt.Errorf("memory.entity_merge_top_k %d must not be negative", cfg.Memory.EntityMergeTopK))
	}

	if cfg.Resilience.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("resilience.retry.max_attempts %d must not be negative", cfg.Resilience.Retry.MaxAttempts))
	}
	if cfg.Resilience.Retry.BackoffFactor != 0 && cfg.Resilience.Retry.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("resilience.retry.backoff_factor %.2f must be >= 1", cfg.Resilience.Retry.BackoffFactor))
	}

	return errors.Join(errs...)
}

// validateProviderKind logs a warning if kind is non-empty and not found in
// the [ValidProviderKinds] list for the given capability.
func validateProviderKind(capability, kind string) {
	if kind == "" {
		return
	}
	known, ok := ValidProviderKinds[capability]
	if !ok {
		return
	}
	if slices.Contains(known, kind) {
		return
	}
	slog.Warn("unknown provider kind — may be a typo or third-party provider",
		"capability", capability,
		"kind", kind,
		"known", known,
	)
}
