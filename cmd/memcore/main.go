// Command memcore runs the memory orchestration core as a standalone
// process: it loads a YAML configuration, wires the configured providers
// through the registry, and keeps the resulting [orchestrator.Orchestrator]
// alive until it is asked to stop.
//
// memcore has no transport of its own — the orchestrator is a library.
// Embedding it in an MCP server, an HTTP API, or any other binding is left
// to the caller; this command exists to prove a configuration wires up and
// to give operators something to run health checks against during rollout.
// A caller whose LLM, embedder, or store doesn't match one of the kinds
// providers.go registers can still add their own factory to the registry
// before calling buildOrchestrator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sixfold-ai/memcore/internal/config"
	"github.com/sixfold-ai/memcore/internal/graphextract"
	"github.com/sixfold-ai/memcore/internal/orchestrator"
	"github.com/sixfold-ai/memcore/pkg/memory"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "memcore: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "memcore: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("memcore starting", "config", *configPath, "log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg, cfg)

	core, err := buildOrchestrator(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	slog.Info("memcore ready — press Ctrl+C to shut down")
	<-ctx.Done()
	slog.Info("shutdown signal received, goodbye")
	_ = core // the orchestrator has no transport of its own; binding it to a server is the embedder's job
	return 0
}

// buildOrchestrator instantiates every configured provider and assembles an
// [orchestrator.Orchestrator]. Unlike the graph store, the LLM, embedder,
// vector store, and history log are mandatory — [orchestrator.New] cannot
// operate without them, so a missing factory for any of the four is a fatal
// startup error rather than a skip-and-continue warning.
func buildOrchestrator(ctx context.Context, cfg *config.Config, reg *config.Registry) (*orchestrator.Orchestrator, error) {
	model, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Kind, err)
	}
	slog.Info("provider created", "capability", "llm", "kind", cfg.Providers.LLM.Kind)

	embedder, err := reg.CreateEmbedder(cfg.Providers.Embedder)
	if err != nil {
		return nil, fmt.Errorf("create embedder provider %q: %w", cfg.Providers.Embedder.Kind, err)
	}
	slog.Info("provider created", "capability", "embedder", "kind", cfg.Providers.Embedder.Kind)

	vectors, err := reg.CreateVectorStore(cfg.Providers.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("create vector store %q: %w", cfg.Providers.VectorStore.Kind, err)
	}
	slog.Info("provider created", "capability", "vector_store", "kind", cfg.Providers.VectorStore.Kind)

	history, err := reg.CreateHistoryLog(cfg.Providers.HistoryLog)
	if err != nil {
		return nil, fmt.Errorf("create history log %q: %w", cfg.Providers.HistoryLog.Kind, err)
	}
	slog.Info("provider created", "capability", "history_log", "kind", cfg.Providers.HistoryLog.Kind)

	opts := []orchestrator.Option{orchestrator.WithResilience(cfg.Resilience)}

	var graph memory.GraphStore
	if !cfg.Providers.GraphStore.IsZero() {
		graph, err = reg.CreateGraphStore(cfg.Providers.GraphStore)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("graph store not available — running without a graph layer", "kind", cfg.Providers.GraphStore.Kind)
		} else if err != nil {
			return nil, fmt.Errorf("create graph store %q: %w", cfg.Providers.GraphStore.Kind, err)
		} else {
			slog.Info("provider created", "capability", "graph_store", "kind", cfg.Providers.GraphStore.Kind)
			var graphOpts []graphextract.Option
			if cfg.Memory.EntityMergeThreshold != 0 {
				graphOpts = append(graphOpts, graphextract.WithEntityMergeThreshold(cfg.Memory.EntityMergeThreshold))
			}
			if cfg.Memory.EntityMergeTopK != 0 {
				graphOpts = append(graphOpts, graphextract.WithEntityMergeTopK(cfg.Memory.EntityMergeTopK))
			}
			if len(cfg.Memory.AllowedPredicates) > 0 {
				graphOpts = append(graphOpts, graphextract.WithAllowedPredicates(cfg.Memory.AllowedPredicates))
			}
			opts = append(opts, orchestrator.WithGraphStore(graph, graphOpts...))
		}
	}

	return orchestrator.New(model, embedder, vectors, history, opts...), nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
