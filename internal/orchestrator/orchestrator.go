// Package orchestrator wires the extraction, reconciliation, persistence,
// graph-extraction, and retrieval stages into the memory core's public
// facade.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sixfold-ai/memcore/internal/errs"
	"github.com/sixfold-ai/memcore/internal/extraction"
	"github.com/sixfold-ai/memcore/internal/graphextract"
	"github.com/sixfold-ai/memcore/internal/identity"
	"github.com/sixfold-ai/memcore/internal/persistence"
	"github.com/sixfold-ai/memcore/internal/reconcile"
	"github.com/sixfold-ai/memcore/internal/resilience"
	"github.com/sixfold-ai/memcore/internal/retrieval"
	"github.com/sixfold-ai/memcore/internal/telemetry"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/types"
)

// resetConfirm is the literal confirmation value Reset requires, guarding
// against an accidental full wipe.
const resetConfirm = "RESET-ALL"

// Orchestrator is the memory core's facade: the single entry point callers
// use to ingest conversation turns and retrieve memories. It holds no
// mutable state of its own beyond its provider handles and semaphore — every
// method is safe for concurrent use, and multiple Orchestrators can share
// nothing or everything without coordination.
type Orchestrator struct {
	vectors memory.VectorStore
	graph   memory.GraphStore // nil when no graph layer is configured
	history memory.HistoryLog

	extraction   *extraction.Stage
	reconcile    *reconcile.Stage
	persistence  *persistence.Stage
	graphExtract *graphextract.Stage // nil when no graph layer is configured
	retrieval    *retrieval.Stage

	sink telemetry.Sink
	sem  chan struct{}
}

// New builds an Orchestrator from its four required providers (model,
// embedder, vector store and history log), applying opts. A GraphStore is optional — pass it via
// WithGraphStore to enable the knowledge-graph layer.
func New(model llm.Provider, embedder embeddings.Provider, vectors memory.VectorStore, history memory.HistoryLog, opts ...Option) *Orchestrator {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}

	sink := s.sink
	if sink == nil {
		sink = telemetry.NoopSink{}
	}

	guardedModel := &resilientLLM{Provider: model, guard: resilience.NewGuard(s.llmGuard)}
	guardedEmbedder := &resilientEmbedder{Provider: embedder, guard: resilience.NewGuard(s.embedderGuard)}
	guardedVectors := &resilientVectorStore{VectorStore: vectors, guard: resilience.NewGuard(s.vectorGuard)}
	guardedHistory := &resilientHistoryLog{HistoryLog: history, guard: resilience.NewGuard(s.historyGuard)}

	o := &Orchestrator{
		vectors:     guardedVectors,
		history:     guardedHistory,
		extraction:  extraction.New(guardedModel),
		reconcile:   reconcile.New(guardedModel, guardedEmbedder, guardedVectors, s.neighborK),
		persistence: persistence.New(guardedEmbedder, guardedVectors, guardedHistory),
		sink:        sink,
		sem:         make(chan struct{}, s.maxConcurrency),
	}

	// s.graph being nil must leave o.graph a true nil interface, not a
	// non-nil interface wrapping a nil *resilientGraphStore — retrieval.Stage
	// and graphextract.Stage both branch on "graph == nil".
	if s.graph != nil {
		guardedGraph := &resilientGraphStore{GraphStore: s.graph, guard: resilience.NewGuard(s.graphGuard)}
		o.graph = guardedGraph
		o.graphExtract = graphextract.New(guardedModel, guardedEmbedder, guardedGraph, s.graphOpts...)
	}

	o.retrieval = retrieval.New(guardedEmbedder, guardedVectors, o.graph)

	return o
}

// acquire blocks until a worker-pool slot is free or ctx is cancelled,
// implementing the blocking surface's backpressure: callers beyond the
// configured concurrency bound wait rather than pile up provider requests.
func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	select {
	case o.sem <- struct{}{}:
		return func() { <-o.sem }, nil
	case <-ctx.Done():
		return nil, errs.New("orchestrator", errs.Cancelled, ctx.Err())
	}
}

func outcomeOf(err error) string {
	if kind, ok := errs.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}

func mapNotFound(op string, err error) error {
	if errors.Is(err, memory.ErrNotFound) {
		return errs.New(op, errs.NotFound, err)
	}
	return err
}

func (o *Orchestrator) addProviderKinds() []string {
	kinds := []string{"llm", "embeddings", "vector_store", "history_log"}
	if o.graph != nil {
		kinds = append(kinds, "graph_store")
	}
	return kinds
}

func (o *Orchestrator) searchProviderKinds() []string {
	kinds := []string{"embeddings", "vector_store"}
	if o.graph != nil {
		kinds = append(kinds, "graph_store")
	}
	return kinds
}

func (o *Orchestrator) deleteAllProviderKinds() []string {
	kinds := []string{"vector_store"}
	if o.graph != nil {
		kinds = append(kinds, "graph_store")
	}
	return kinds
}

func (o *Orchestrator) resetProviderKinds() []string {
	kinds := []string{"vector_store", "history_log"}
	if o.graph != nil {
		kinds = append(kinds, "graph_store")
	}
	return kinds
}

// Add ingests a batch of conversation messages: extracting candidate facts
// (unless req.SkipInference), reconciling them against existing memory, and
// applying the resulting decisions, while concurrently extracting the
// message batch's entities and relations into the optional graph layer. A
// graph-layer failure is logged and never aborts the ingest; a reconciliation
// failure aborts it entirely with no writes applied.
func (o *Orchestrator) Add(ctx context.Context, req AddRequest) ([]IngestResult, error) {
	var out []IngestResult
	err := telemetry.Observe(ctx, o.sink, "add", o.addProviderKinds(), outcomeOf, func() error {
		scope, err := identity.ComposeScope("add", req.Scope.UserID, req.Scope.AgentID, req.Scope.SessionID)
		if err != nil {
			return err
		}

		if len(req.Messages) == 0 {
			out = []IngestResult{}
			return nil
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		var candidates []memory.CandidateFact
		var decisions []memory.Decision

		if req.SkipInference {
			candidates = extraction.ExtractPassthrough(req.Messages)
			decisions = make([]memory.Decision, 0, len(candidates))
			for _, c := range candidates {
				decisions = append(decisions, memory.Decision{Kind: memory.DecisionAdd, Text: c.Text})
			}
		} else {
			candidates, err = o.extraction.Extract(ctx, req.Messages, req.PromptOverride)
			if err != nil {
				return errs.New("add", errs.IngestError, err)
			}
			decisions, err = o.reconcile.Reconcile(ctx, candidates, scope)
			if err != nil {
				return errs.New("add", errs.IngestError, err)
			}
		}

		var results []persistence.Result
		eg, egCtx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			results = o.persistence.ApplyWithMetadata(egCtx, decisions, scope, req.Metadata)
			return nil
		})

		if o.graphExtract != nil {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				text := flattenMessages(req.Messages)
				if text == "" {
					return nil
				}
				if err := o.graphExtract.Extract(egCtx, text, scope); err != nil {
					slog.Warn("orchestrator: graph extraction failed, vector-layer ingest unaffected", "error", err)
				}
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return errs.New("add", errs.Cancelled, err)
		}

		out = toIngestResults(results)
		return nil
	})
	return out, err
}

// toIngestResults maps applied persistence results into the public
// IngestResult shape. Every decision produces an entry, including ones
// whose write failed: Error is set on those and sibling decisions still
// appear with their own outcome, per the best-effort batch contract.
func toIngestResults(results []persistence.Result) []IngestResult {
	out := make([]IngestResult, 0, len(results))
	for _, r := range results {
		ir := IngestResult{ID: r.FactID}
		switch r.Decision.Kind {
		case memory.DecisionAdd:
			ir.Event = memory.HistoryAdd
			ir.Memory = r.Decision.Text
		case memory.DecisionUpdate:
			ir.Event = memory.HistoryUpdate
			ir.Memory = r.Decision.Text
			ir.PreviousMemory = r.Decision.PreviousText
		case memory.DecisionDelete:
			ir.Event = memory.HistoryDelete
			ir.Memory = r.Decision.PreviousText
		default:
			continue
		}
		if r.Err != nil {
			slog.Warn("orchestrator: decision failed to apply", "kind", r.Decision.Kind, "error", r.Err)
			ir.Error = errs.New("add", errs.ProviderError, r.Err)
		}
		out = append(out, ir)
	}
	return out
}

// flattenMessages joins every non-empty message's content with newlines for
// the graph stage, which operates on raw text rather than a message slice.
func flattenMessages(messages []types.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// Search embeds req.Text and runs vector search (plus, when a GraphStore is
// configured, a concurrent graph search), merging both result sets.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var out SearchResponse
	err := telemetry.Observe(ctx, o.sink, "search", o.searchProviderKinds(), outcomeOf, func() error {
		scope, err := identity.ComposeScope("search", req.Scope.UserID, req.Scope.AgentID, req.Scope.SessionID)
		if err != nil {
			return err
		}
		if req.Limit < 0 {
			return errs.New("search", errs.InvalidArguments, fmt.Errorf("limit must not be negative"))
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		results, relations, err := o.retrieval.Search(ctx, memory.Query{
			Text:      req.Text,
			Scope:     scope,
			Filter:    req.Filter,
			Limit:     req.Limit,
			Threshold: req.Threshold,
		})
		if err != nil {
			if _, ok := errs.KindOf(err); ok {
				return err
			}
			return errs.NewProvider("search", errs.Permanent, err)
		}
		out = SearchResponse{Results: results, Relations: relations}
		return nil
	})
	return out, err
}

// Get fetches a single fact by id, scoped: a fact that exists but belongs to
// a different scope is reported as NotFound rather than leaking its
// existence (invariant: no operation returns or confirms a fact outside its
// requested scope).
func (o *Orchestrator) Get(ctx context.Context, scope memory.Scope, id string) (memory.Fact, error) {
	var out memory.Fact
	err := telemetry.Observe(ctx, o.sink, "get", []string{"vector_store"}, outcomeOf, func() error {
		reqScope, err := identity.ComposeScope("get", scope.UserID, scope.AgentID, scope.SessionID)
		if err != nil {
			return err
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		fact, err := o.vectors.Get(ctx, id)
		if err != nil {
			return mapNotFound("get", err)
		}
		if fact.Scope != reqScope {
			return errs.New("get", errs.NotFound, memory.ErrNotFound)
		}
		out = fact
		return nil
	})
	return out, err
}

// GetAll lists facts in scope, optionally narrowed by filter, capped at
// limit.
func (o *Orchestrator) GetAll(ctx context.Context, scope memory.Scope, filter map[string]any, limit int) ([]memory.Result, error) {
	var out []memory.Result
	err := telemetry.Observe(ctx, o.sink, "get_all", []string{"vector_store"}, outcomeOf, func() error {
		reqScope, err := identity.ComposeScope("get_all", scope.UserID, scope.AgentID, scope.SessionID)
		if err != nil {
			return err
		}
		if limit < 0 {
			return errs.New("get_all", errs.InvalidArguments, fmt.Errorf("limit must not be negative"))
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		results, err := o.vectors.List(ctx, reqScope.Filter(), filter, limit)
		if err != nil {
			return err
		}
		if results == nil {
			results = []memory.Result{}
		}
		out = results
		return nil
	})
	return out, err
}

// History returns the full, ordered mutation history for factID, including
// entries for facts that have since been deleted.
func (o *Orchestrator) History(ctx context.Context, factID string) ([]memory.HistoryEntry, error) {
	var out []memory.HistoryEntry
	err := telemetry.Observe(ctx, o.sink, "history", []string{"history_log"}, outcomeOf, func() error {
		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		entries, err := o.history.List(ctx, factID)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []memory.HistoryEntry{}
		}
		out = entries
		return nil
	})
	return out, err
}

// Delete soft-deletes one fact by id, scoped. Deleting an id that does not
// exist, or that exists under a different scope, returns NotFound — calling
// Delete twice on the same id is therefore idempotent-where-possible rather
// than an internal error on the second call.
func (o *Orchestrator) Delete(ctx context.Context, scope memory.Scope, id string) error {
	return telemetry.Observe(ctx, o.sink, "delete", []string{"vector_store", "history_log"}, outcomeOf, func() error {
		reqScope, err := identity.ComposeScope("delete", scope.UserID, scope.AgentID, scope.SessionID)
		if err != nil {
			return err
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		fact, err := o.vectors.Get(ctx, id)
		if err != nil {
			return mapNotFound("delete", err)
		}
		if fact.Scope != reqScope {
			return errs.New("delete", errs.NotFound, memory.ErrNotFound)
		}

		results := o.persistence.Apply(ctx, []memory.Decision{{
			Kind:         memory.DecisionDelete,
			ExistingID:   id,
			PreviousText: fact.Payload,
		}}, reqScope)
		if results[0].Err != nil {
			return mapNotFound("delete", results[0].Err)
		}
		return nil
	})
}

// DeleteAll purges every fact, and every graph entity/relation, attributed
// to scope. History is retained: facts deleted this way still have their
// full mutation history available via History.
func (o *Orchestrator) DeleteAll(ctx context.Context, scope memory.Scope) error {
	return telemetry.Observe(ctx, o.sink, "delete_all", o.deleteAllProviderKinds(), outcomeOf, func() error {
		reqScope, err := identity.ComposeScope("delete_all", scope.UserID, scope.AgentID, scope.SessionID)
		if err != nil {
			return err
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		if err := o.vectors.DeleteByScope(ctx, reqScope.Filter()); err != nil {
			return err
		}
		if o.graph != nil {
			if err := o.graph.DeleteByPrincipal(ctx, reqScope); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset purges everything the core owns, across every scope, including
// history. confirm must equal the literal string "RESET-ALL" or the call is
// rejected with InvalidArguments — a lightweight guard against an accidental
// full wipe. A backend that does not implement the optional reset capability
// (see resettable in resilient.go) is logged and left untouched rather than
// failing the whole call.
func (o *Orchestrator) Reset(ctx context.Context, confirm string) error {
	return telemetry.Observe(ctx, o.sink, "reset", o.resetProviderKinds(), outcomeOf, func() error {
		if confirm != resetConfirm {
			return errs.New("reset", errs.InvalidArguments, fmt.Errorf("confirm must equal %q", resetConfirm))
		}

		release, err := o.acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		if err := resetOrWarn(ctx, "vector store", o.vectors.(resettable)); err != nil {
			return err
		}
		if err := resetOrWarn(ctx, "history log", o.history.(resettable)); err != nil {
			return err
		}
		if o.graph != nil {
			if err := resetOrWarn(ctx, "graph store", o.graph.(resettable)); err != nil {
				return err
			}
		}
		return nil
	})
}

// resetOrWarn calls r.Reset, treating errResetUnsupported as a logged no-op
// rather than a call failure.
func resetOrWarn(ctx context.Context, label string, r resettable) error {
	err := r.Reset(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, errResetUnsupported) {
		slog.Warn("orchestrator: backend does not support a full reset, data was not purged", "backend", label)
		return nil
	}
	return err
}
