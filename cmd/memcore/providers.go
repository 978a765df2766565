package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/sixfold-ai/memcore/internal/config"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/memory/inmemory"
	"github.com/sixfold-ai/memcore/pkg/memory/postgres"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
	embeddingsollama "github.com/sixfold-ai/memcore/pkg/provider/embeddings/ollama"
	embeddingsopenai "github.com/sixfold-ai/memcore/pkg/provider/embeddings/openai"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/provider/llm/anyllm"
	llmopenai "github.com/sixfold-ai/memcore/pkg/provider/llm/openai"
)

// optionalStringParam returns entry.Params[key] if present, otherwise the
// value of the named environment variable (which may itself be empty).
func optionalStringParam(entry config.ProviderEntry, key, envFallback string) string {
	if v, ok := entry.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return os.Getenv(envFallback)
}

// anyllmOpts builds the any-llm-go options common to every anyllm-backed
// kind: an API key, when the caller supplied one or set the backend's usual
// environment variable.
func anyllmOpts(entry config.ProviderEntry, envFallback string) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if key := optionalStringParam(entry, "api_key", envFallback); key != "" {
		opts = append(opts, anyllmlib.WithAPIKey(key))
	}
	if baseURL, ok := entry.Params["base_url"].(string); ok && baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}
	return opts
}

// postgresPool lazily opens one [postgres.Store] per DSN so that
// vector_store, graph_store, and history_log entries pointing at the same
// database share a single connection pool instead of each opening their own.
type postgresPool struct {
	mu     sync.Mutex
	ctx    context.Context
	dims   int
	stores map[string]*postgres.Store
}

func newPostgresPool(ctx context.Context, embeddingDimensions int) *postgresPool {
	return &postgresPool{
		ctx:    ctx,
		dims:   embeddingDimensions,
		stores: make(map[string]*postgres.Store),
	}
}

func (p *postgresPool) get(dsn string) (*postgres.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stores[dsn]; ok {
		return s, nil
	}
	s, err := postgres.NewStore(p.ctx, dsn, p.dims)
	if err != nil {
		return nil, err
	}
	p.stores[dsn] = s
	return s, nil
}

func stringParam(entry config.ProviderEntry, key string) (string, error) {
	v, ok := entry.Params[key]
	if !ok {
		return "", fmt.Errorf("params.%s is required for kind %q", key, entry.Kind)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("params.%s must be a string for kind %q", key, entry.Kind)
	}
	return s, nil
}

// registerBuiltinProviders wires every reference backend this module ships a
// concrete implementation for: the postgres/inmemory stores, plus the
// openai/anyllm-backed LLM and embedder clients. A caller who needs a
// provider kind not listed here (a different vendor, an internal gateway)
// registers their own factory on reg before buildOrchestrator runs — the
// registry is the seam, not a hardcoded switch.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry, cfg *config.Config) {
	pool := newPostgresPool(ctx, cfg.Memory.EmbeddingDimensions)

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		apiKey := optionalStringParam(entry, "api_key", "OPENAI_API_KEY")
		model, err := stringParam(entry, "model")
		if err != nil {
			return nil, err
		}
		return llmopenai.New(apiKey, model)
	})
	reg.RegisterLLM("anyllm", func(entry config.ProviderEntry) (llm.Provider, error) {
		backend, err := stringParam(entry, "backend")
		if err != nil {
			return nil, err
		}
		model, err := stringParam(entry, "model")
		if err != nil {
			return nil, err
		}
		return anyllm.New(backend, model, anyllmOpts(entry, "")...)
	})
	reg.RegisterLLM("anthropic", func(entry config.ProviderEntry) (llm.Provider, error) {
		model, err := stringParam(entry, "model")
		if err != nil {
			return nil, err
		}
		return anyllm.NewAnthropic(model, anyllmOpts(entry, "ANTHROPIC_API_KEY")...)
	})
	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		model, err := stringParam(entry, "model")
		if err != nil {
			return nil, err
		}
		return anyllm.NewGemini(model, anyllmOpts(entry, "GEMINI_API_KEY")...)
	})
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		model, err := stringParam(entry, "model")
		if err != nil {
			return nil, err
		}
		return anyllm.NewOllama(model, anyllmOpts(entry, "")...)
	})

	reg.RegisterEmbedder("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		apiKey := optionalStringParam(entry, "api_key", "OPENAI_API_KEY")
		model, _ := entry.Params["model"].(string)
		return embeddingsopenai.New(apiKey, model)
	})
	reg.RegisterEmbedder("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		baseURL, _ := entry.Params["base_url"].(string)
		model, err := stringParam(entry, "model")
		if err != nil {
			return nil, err
		}
		return embeddingsollama.New(baseURL, model)
	})

	reg.RegisterVectorStore("inmemory", func(entry config.ProviderEntry) (memory.VectorStore, error) {
		return inmemory.NewVectorStore(cfg.Memory.EmbeddingDimensions), nil
	})
	reg.RegisterGraphStore("inmemory", func(entry config.ProviderEntry) (memory.GraphStore, error) {
		return inmemory.NewGraphStore(), nil
	})
	reg.RegisterHistoryLog("inmemory", func(entry config.ProviderEntry) (memory.HistoryLog, error) {
		return inmemory.NewHistoryLog(), nil
	})

	reg.RegisterVectorStore("postgres", func(entry config.ProviderEntry) (memory.VectorStore, error) {
		dsn, err := stringParam(entry, "dsn")
		if err != nil {
			return nil, err
		}
		s, err := pool.get(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres vector store: %w", err)
		}
		return s.Vectors(), nil
	})
	reg.RegisterGraphStore("postgres", func(entry config.ProviderEntry) (memory.GraphStore, error) {
		dsn, err := stringParam(entry, "dsn")
		if err != nil {
			return nil, err
		}
		s, err := pool.get(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres graph store: %w", err)
		}
		return s.Graph(), nil
	})
	reg.RegisterHistoryLog("postgres", func(entry config.ProviderEntry) (memory.HistoryLog, error) {
		dsn, err := stringParam(entry, "dsn")
		if err != nil {
			return nil, err
		}
		s, err := pool.get(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres history log: %w", err)
		}
		return s.History(), nil
	})
}
