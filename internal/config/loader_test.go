package config_test

import (
	"strings"
	"testing"

	"github.com/sixfold-ai/memcore/internal/config"
)

func validConfigYAML() string {
	return `
providers:
  llm:
    kind: openai
    params:
      model: gpt-4o-mini
  embedder:
    kind: openai
    params:
      model: text-embedding-3-small
  vector_store:
    kind: postgres
    params:
      dsn: "postgres://localhost/test"
  history_log:
    kind: postgres
    params:
      dsn: "postgres://localhost/test"
memory:
  embedding_dimensions: 1536
`
}

func TestLoadFromReader_ValidConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validConfigYAML()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.LLM.Kind != "openai" {
		t.Errorf("Providers.LLM.Kind = %q, want openai", cfg.Providers.LLM.Kind)
	}
	if !cfg.Providers.GraphStore.IsZero() {
		t.Errorf("Providers.GraphStore = %+v, want zero value (not configured)", cfg.Providers.GraphStore)
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validConfigYAML()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Resilience.Timeouts.LLM != config.DefaultLLMTimeout {
		t.Errorf("Timeouts.LLM = %v, want %v", cfg.Resilience.Timeouts.LLM, config.DefaultLLMTimeout)
	}
	if cfg.Resilience.Retry.MaxAttempts != config.DefaultRetryMaxAttempts {
		t.Errorf("Retry.MaxAttempts = %d, want %d", cfg.Resilience.Retry.MaxAttempts, config.DefaultRetryMaxAttempts)
	}
}

func TestLoadFromReader_MissingRequiredProvidersIsError(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  log_level: info\n"))
	if err == nil {
		t.Fatal("expected error for missing provider bindings, got nil")
	}
	for _, want := range []string{"providers.llm", "providers.embedder", "providers.vector_store", "providers.history_log"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestLoadFromReader_UnknownFieldIsError(t *testing.T) {
	t.Parallel()
	yaml := validConfigYAML() + "\nunknown_field: true\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := "server:\n  log_level: verbose\n" + validConfigYAML()
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_EntityMergeThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validConfigYAML(), "memory:\n", "memory:\n  entity_merge_threshold: 1.5\n", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range entity_merge_threshold, got nil")
	}
	if !strings.Contains(err.Error(), "entity_merge_threshold") {
		t.Errorf("error should mention entity_merge_threshold, got: %v", err)
	}
}

func TestValidate_NegativeRetryMaxAttempts(t *testing.T) {
	t.Parallel()
	yaml := validConfigYAML() + "\nresilience:\n  retry:\n    max_attempts: -1\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative retry.max_attempts, got nil")
	}
}

func TestValidate_MultipleErrorsAreJoined(t *testing.T) {
	t.Parallel()
	yaml := "server:\n  log_level: verbose\n"
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "providers.llm") {
		t.Errorf("expected both log_level and providers.llm errors joined, got: %v", err)
	}
}

func TestValidProviderKinds(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderKinds) == 0 {
		t.Fatal("ValidProviderKinds should not be empty")
	}
	llmKinds := config.ValidProviderKinds["llm"]
	found := false
	for _, k := range llmKinds {
		if k == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidProviderKinds["llm"] should contain "openai"`)
	}
}
