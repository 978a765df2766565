package config_test

import (
	"testing"

	"github.com/sixfold-ai/memcore/internal/config"
)

func TestProviderEntry_IsZero(t *testing.T) {
	t.Parallel()
	var zero config.ProviderEntry
	if !zero.IsZero() {
		t.Error("zero-value ProviderEntry should report IsZero() == true")
	}
	set := config.ProviderEntry{Kind: "postgres"}
	if set.IsZero() {
		t.Error("ProviderEntry with Kind set should report IsZero() == false")
	}
	withParams := config.ProviderEntry{Params: map[string]any{"dsn": "x"}}
	if withParams.IsZero() {
		t.Error("ProviderEntry with Params set should report IsZero() == false")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError} {
		if !l.IsValid() {
			t.Errorf("LogLevel %q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error(`LogLevel("trace") should not be valid`)
	}
}
