package orchestrator

import (
	"context"
	"errors"
	"net"

	"github.com/sixfold-ai/memcore/internal/errs"
	"github.com/sixfold-ai/memcore/internal/resilience"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
)

// classifyProviderErr turns a raw provider error into the [errs.ProviderKind]
// that drives the guard's retry decision. Context deadline exceeded (the
// guard's own per-attempt timeout firing) and any error reporting itself as a
// network timeout are Transient; everything else is Permanent, including
// caller cancellation, which must never be retried.
func classifyProviderErr(err error) errs.ProviderKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Transient
	}
	return errs.Permanent
}

// guarded runs fn through g and reclassifies any error it returns as an
// [errs.CoreError] so the guard's retry policy and the orchestrator's own
// error mapping can act on it uniformly.
//
// memory.ErrNotFound is treated specially: it is a normal business outcome
// (the id is simply absent), not a provider health signal, so it must not
// retry and must not count as a circuit-breaker failure. It is smuggled past
// the guard as a successful attempt and restored afterward.
func guarded(ctx context.Context, g *resilience.Guard, op string, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	var notFound error
	err := g.Execute(ctx, func(callCtx context.Context) error {
		if err := fn(callCtx); err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				notFound = err
				return nil
			}
			return errs.NewProvider(op, classifyProviderErr(err), err)
		}
		return nil
	})
	if notFound != nil {
		return notFound
	}
	return err
}

// resilientLLM wraps an llm.Provider, guarding Generate — the only
// suspension point on the interface — with a timeout/breaker/retry policy.
type resilientLLM struct {
	llm.Provider
	guard *resilience.Guard
}

func (r *resilientLLM) Generate(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := guarded(ctx, r.guard, "llm.generate", func(callCtx context.Context) error {
		var innerErr error
		resp, innerErr = r.Provider.Generate(callCtx, req)
		return innerErr
	})
	return resp, err
}

var _ llm.Provider = (*resilientLLM)(nil)

// resilientEmbedder wraps an embeddings.Provider, guarding Embed.
type resilientEmbedder struct {
	embeddings.Provider
	guard *resilience.Guard
}

func (r *resilientEmbedder) Embed(ctx context.Context, text string, purpose embeddings.Purpose) ([]float32, error) {
	var vec []float32
	err := guarded(ctx, r.guard, "embedder.embed", func(callCtx context.Context) error {
		var innerErr error
		vec, innerErr = r.Provider.Embed(callCtx, text, purpose)
		return innerErr
	})
	return vec, err
}

var _ embeddings.Provider = (*resilientEmbedder)(nil)

// resettable is implemented by a store backend that supports discarding
// everything it holds regardless of scope or principal. None of the three
// provider interfaces expose this generally — DeleteByScope/DeleteByPrincipal/
// DeleteAll all refuse an empty filter as a safety measure — so Reset is
// reached via an optional capability check instead of widening those
// interfaces for one rarely-used admin operation.
type resettable interface {
	Reset(ctx context.Context) error
}

// errResetUnsupported is returned by a resilient wrapper's Reset when the
// backend it wraps does not implement resettable.
var errResetUnsupported = errors.New("orchestrator: store does not support reset")

// resilientVectorStore wraps a memory.VectorStore, guarding every method that
// performs I/O.
type resilientVectorStore struct {
	memory.VectorStore
	guard *resilience.Guard
}

// Reset discards every fact the wrapped store holds, if it supports doing so.
func (r *resilientVectorStore) Reset(ctx context.Context) error {
	return guarded(ctx, r.guard, "vector_store.reset", func(callCtx context.Context) error {
		rv, ok := r.VectorStore.(resettable)
		if !ok {
			return errResetUnsupported
		}
		return rv.Reset(callCtx)
	})
}

func (r *resilientVectorStore) Insert(ctx context.Context, id string, embedding []float32, fact memory.Fact) error {
	return guarded(ctx, r.guard, "vector_store.insert", func(callCtx context.Context) error {
		return r.VectorStore.Insert(callCtx, id, embedding, fact)
	})
}

func (r *resilientVectorStore) Update(ctx context.Context, id string, embedding []float32, fact memory.Fact) error {
	return guarded(ctx, r.guard, "vector_store.update", func(callCtx context.Context) error {
		return r.VectorStore.Update(callCtx, id, embedding, fact)
	})
}

func (r *resilientVectorStore) Delete(ctx context.Context, id string) error {
	return guarded(ctx, r.guard, "vector_store.delete", func(callCtx context.Context) error {
		return r.VectorStore.Delete(callCtx, id)
	})
}

func (r *resilientVectorStore) Get(ctx context.Context, id string) (memory.Fact, error) {
	var fact memory.Fact
	err := guarded(ctx, r.guard, "vector_store.get", func(callCtx context.Context) error {
		var innerErr error
		fact, innerErr = r.VectorStore.Get(callCtx, id)
		return innerErr
	})
	return fact, err
}

func (r *resilientVectorStore) Search(ctx context.Context, embedding []float32, scopeFilter, extraFilter map[string]any, limit int, threshold float64) ([]memory.Result, error) {
	var results []memory.Result
	err := guarded(ctx, r.guard, "vector_store.search", func(callCtx context.Context) error {
		var innerErr error
		results, innerErr = r.VectorStore.Search(callCtx, embedding, scopeFilter, extraFilter, limit, threshold)
		return innerErr
	})
	return results, err
}

func (r *resilientVectorStore) List(ctx context.Context, scopeFilter, extraFilter map[string]any, limit int) ([]memory.Result, error) {
	var results []memory.Result
	err := guarded(ctx, r.guard, "vector_store.list", func(callCtx context.Context) error {
		var innerErr error
		results, innerErr = r.VectorStore.List(callCtx, scopeFilter, extraFilter, limit)
		return innerErr
	})
	return results, err
}

func (r *resilientVectorStore) DeleteByScope(ctx context.Context, scopeFilter map[string]any) error {
	return guarded(ctx, r.guard, "vector_store.delete_by_scope", func(callCtx context.Context) error {
		return r.VectorStore.DeleteByScope(callCtx, scopeFilter)
	})
}

var _ memory.VectorStore = (*resilientVectorStore)(nil)

// resilientGraphStore wraps a memory.GraphStore, guarding every method.
type resilientGraphStore struct {
	memory.GraphStore
	guard *resilience.Guard
}

func (r *resilientGraphStore) UpsertEntity(ctx context.Context, scope memory.Scope, label, entityType string) (string, error) {
	var id string
	err := guarded(ctx, r.guard, "graph_store.upsert_entity", func(callCtx context.Context) error {
		var innerErr error
		id, innerErr = r.GraphStore.UpsertEntity(callCtx, scope, label, entityType)
		return innerErr
	})
	return id, err
}

func (r *resilientGraphStore) EntityEmbedding(ctx context.Context, entityID string, embedding []float32) error {
	return guarded(ctx, r.guard, "graph_store.entity_embedding", func(callCtx context.Context) error {
		return r.GraphStore.EntityEmbedding(callCtx, entityID, embedding)
	})
}

func (r *resilientGraphStore) SearchEntities(ctx context.Context, scope memory.Scope, embedding []float32, topK int) ([]memory.EntityMatch, error) {
	var matches []memory.EntityMatch
	err := guarded(ctx, r.guard, "graph_store.search_entities", func(callCtx context.Context) error {
		var innerErr error
		matches, innerErr = r.GraphStore.SearchEntities(callCtx, scope, embedding, topK)
		return innerErr
	})
	return matches, err
}

func (r *resilientGraphStore) UpsertRelation(ctx context.Context, scope memory.Scope, sourceID, predicate, targetID string, weight float64) error {
	return guarded(ctx, r.guard, "graph_store.upsert_relation", func(callCtx context.Context) error {
		return r.GraphStore.UpsertRelation(callCtx, scope, sourceID, predicate, targetID, weight)
	})
}

func (r *resilientGraphStore) Search(ctx context.Context, scope memory.Scope, queryTerms []string, limit int) ([]memory.RelationResult, error) {
	var results []memory.RelationResult
	err := guarded(ctx, r.guard, "graph_store.search", func(callCtx context.Context) error {
		var innerErr error
		results, innerErr = r.GraphStore.Search(callCtx, scope, queryTerms, limit)
		return innerErr
	})
	return results, err
}

func (r *resilientGraphStore) DeleteByPrincipal(ctx context.Context, scope memory.Scope) error {
	return guarded(ctx, r.guard, "graph_store.delete_by_principal", func(callCtx context.Context) error {
		return r.GraphStore.DeleteByPrincipal(callCtx, scope)
	})
}

// Reset discards every entity and relation the wrapped store holds, if it
// supports doing so.
func (r *resilientGraphStore) Reset(ctx context.Context) error {
	return guarded(ctx, r.guard, "graph_store.reset", func(callCtx context.Context) error {
		rg, ok := r.GraphStore.(resettable)
		if !ok {
			return errResetUnsupported
		}
		return rg.Reset(callCtx)
	})
}

var _ memory.GraphStore = (*resilientGraphStore)(nil)

// resilientHistoryLog wraps a memory.HistoryLog, guarding every method.
type resilientHistoryLog struct {
	memory.HistoryLog
	guard *resilience.Guard
}

func (r *resilientHistoryLog) Append(ctx context.Context, entry memory.HistoryEntry) error {
	return guarded(ctx, r.guard, "history_log.append", func(callCtx context.Context) error {
		return r.HistoryLog.Append(callCtx, entry)
	})
}

func (r *resilientHistoryLog) List(ctx context.Context, factID string) ([]memory.HistoryEntry, error) {
	var entries []memory.HistoryEntry
	err := guarded(ctx, r.guard, "history_log.list", func(callCtx context.Context) error {
		var innerErr error
		entries, innerErr = r.HistoryLog.List(callCtx, factID)
		return innerErr
	})
	return entries, err
}

func (r *resilientHistoryLog) DeleteAll(ctx context.Context, scopeFilter map[string]any) error {
	return guarded(ctx, r.guard, "history_log.delete_all", func(callCtx context.Context) error {
		return r.HistoryLog.DeleteAll(callCtx, scopeFilter)
	})
}

// Reset discards every history entry the wrapped log holds, if it supports
// doing so.
func (r *resilientHistoryLog) Reset(ctx context.Context) error {
	return guarded(ctx, r.guard, "history_log.reset", func(callCtx context.Context) error {
		rh, ok := r.HistoryLog.(resettable)
		if !ok {
			return errResetUnsupported
		}
		return rh.Reset(callCtx)
	})
}

var _ memory.HistoryLog = (*resilientHistoryLog)(nil)
