// Package mock provides in-memory test doubles for the memory layer interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.VectorStore{}
//	store.SearchResult = []memory.Result{{ID: "f1", Memory: "likes pizza"}}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("Search"); got != 1 {
//	    t.Errorf("expected 1 Search call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	Method string
	Args   []any
}

// ─────────────────────────────────────────────────────────────────────────────
// VectorStore mock
// ─────────────────────────────────────────────────────────────────────────────

// VectorStore is a configurable test double for [memory.VectorStore].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil (empty slice, or ErrNotFound for single-item reads).
type VectorStore struct {
	mu sync.Mutex

	calls []Call

	// Facts backs Get/Insert/Update/Delete with a simple map keyed by ID,
	// letting a test seed state without scripting every call by hand. Nil
	// until first used.
	Facts map[string]memory.Fact

	InsertErr error
	UpdateErr error
	DeleteErr error
	GetErr    error

	// SearchResult is returned by Search. When nil, Search returns an empty
	// non-nil slice.
	SearchResult []memory.Result
	SearchErr    error

	// ListResult is returned by List.
	ListResult []memory.Result
	ListErr    error

	DeleteByScopeErr error

	DimensionsValue int
}

// Calls returns a copy of all recorded method invocations.
func (m *VectorStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *VectorStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *VectorStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Insert implements [memory.VectorStore].
func (m *VectorStore) Insert(_ context.Context, id string, embedding []float32, fact memory.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Insert", Args: []any{id, embedding, fact}})
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if m.Facts == nil {
		m.Facts = make(map[string]memory.Fact)
	}
	fact.ID = id
	fact.Embedding = embedding
	m.Facts[id] = fact
	return nil
}

// Update implements [memory.VectorStore].
func (m *VectorStore) Update(_ context.Context, id string, embedding []float32, fact memory.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Update", Args: []any{id, embedding, fact}})
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.Facts[id]; !ok {
		return memory.ErrNotFound
	}
	fact.ID = id
	fact.Embedding = embedding
	m.Facts[id] = fact
	return nil
}

// Delete implements [memory.VectorStore].
func (m *VectorStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Delete", Args: []any{id}})
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	f, ok := m.Facts[id]
	if !ok || f.Deleted {
		return memory.ErrNotFound
	}
	f.Deleted = true
	m.Facts[id] = f
	return nil
}

// Get implements [memory.VectorStore].
func (m *VectorStore) Get(_ context.Context, id string) (memory.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Get", Args: []any{id}})
	if m.GetErr != nil {
		return memory.Fact{}, m.GetErr
	}
	f, ok := m.Facts[id]
	if !ok || f.Deleted {
		return memory.Fact{}, memory.ErrNotFound
	}
	return f, nil
}

// Search implements [memory.VectorStore].
func (m *VectorStore) Search(_ context.Context, embedding []float32, scopeFilter, extraFilter map[string]any, limit int, threshold float64) ([]memory.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Search", Args: []any{embedding, scopeFilter, extraFilter, limit, threshold}})
	if m.SearchResult == nil {
		return []memory.Result{}, m.SearchErr
	}
	out := make([]memory.Result, len(m.SearchResult))
	copy(out, m.SearchResult)
	return out, m.SearchErr
}

// List implements [memory.VectorStore].
func (m *VectorStore) List(_ context.Context, scopeFilter, extraFilter map[string]any, limit int) ([]memory.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "List", Args: []any{scopeFilter, extraFilter, limit}})
	if m.ListResult == nil {
		return []memory.Result{}, m.ListErr
	}
	out := make([]memory.Result, len(m.ListResult))
	copy(out, m.ListResult)
	return out, m.ListErr
}

// DeleteByScope implements [memory.VectorStore].
func (m *VectorStore) DeleteByScope(_ context.Context, scopeFilter map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteByScope", Args: []any{scopeFilter}})
	return m.DeleteByScopeErr
}

// Dimensions implements [memory.VectorStore].
func (m *VectorStore) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Dimensions"})
	return m.DimensionsValue
}

var _ memory.VectorStore = (*VectorStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// GraphStore mock
// ─────────────────────────────────────────────────────────────────────────────

// GraphStore is a configurable test double for [memory.GraphStore].
type GraphStore struct {
	mu sync.Mutex

	calls []Call

	UpsertEntityID  string
	UpsertEntityErr error

	EntityEmbeddingErr error

	SearchEntitiesResult []memory.EntityMatch
	SearchEntitiesErr    error

	UpsertRelationErr error

	SearchResult []memory.RelationResult
	SearchErr    error

	DeleteByPrincipalErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *GraphStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *GraphStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *GraphStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// UpsertEntity implements [memory.GraphStore].
func (m *GraphStore) UpsertEntity(_ context.Context, scope memory.Scope, label, entityType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpsertEntity", Args: []any{scope, label, entityType}})
	return m.UpsertEntityID, m.UpsertEntityErr
}

// EntityEmbedding implements [memory.GraphStore].
func (m *GraphStore) EntityEmbedding(_ context.Context, entityID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "EntityEmbedding", Args: []any{entityID, embedding}})
	return m.EntityEmbeddingErr
}

// SearchEntities implements [memory.GraphStore].
func (m *GraphStore) SearchEntities(_ context.Context, scope memory.Scope, embedding []float32, topK int) ([]memory.EntityMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SearchEntities", Args: []any{scope, embedding, topK}})
	if m.SearchEntitiesResult == nil {
		return []memory.EntityMatch{}, m.SearchEntitiesErr
	}
	out := make([]memory.EntityMatch, len(m.SearchEntitiesResult))
	copy(out, m.SearchEntitiesResult)
	return out, m.SearchEntitiesErr
}

// UpsertRelation implements [memory.GraphStore].
func (m *GraphStore) UpsertRelation(_ context.Context, scope memory.Scope, sourceID, predicate, targetID string, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpsertRelation", Args: []any{scope, sourceID, predicate, targetID, weight}})
	return m.UpsertRelationErr
}

// Search implements [memory.GraphStore].
func (m *GraphStore) Search(_ context.Context, scope memory.Scope, queryTerms []string, limit int) ([]memory.RelationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Search", Args: []any{scope, queryTerms, limit}})
	if m.SearchResult == nil {
		return []memory.RelationResult{}, m.SearchErr
	}
	out := make([]memory.RelationResult, len(m.SearchResult))
	copy(out, m.SearchResult)
	return out, m.SearchErr
}

// DeleteByPrincipal implements [memory.GraphStore].
func (m *GraphStore) DeleteByPrincipal(_ context.Context, scope memory.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteByPrincipal", Args: []any{scope}})
	return m.DeleteByPrincipalErr
}

var _ memory.GraphStore = (*GraphStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// HistoryLog mock
// ─────────────────────────────────────────────────────────────────────────────

// HistoryLog is a configurable test double for [memory.HistoryLog].
type HistoryLog struct {
	mu sync.Mutex

	calls []Call

	// Entries accumulates every appended entry, keyed by FactID, in append
	// order — letting tests assert on History without scripting ListResult.
	Entries map[string][]memory.HistoryEntry

	AppendErr error

	// ListResult, when non-nil, overrides the Entries-backed lookup.
	ListResult []memory.HistoryEntry
	ListErr    error

	DeleteAllErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *HistoryLog) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *HistoryLog) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *HistoryLog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Append implements [memory.HistoryLog].
func (m *HistoryLog) Append(_ context.Context, entry memory.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Append", Args: []any{entry}})
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if m.Entries == nil {
		m.Entries = make(map[string][]memory.HistoryEntry)
	}
	m.Entries[entry.FactID] = append(m.Entries[entry.FactID], entry)
	return nil
}

// List implements [memory.HistoryLog].
func (m *HistoryLog) List(_ context.Context, factID string) ([]memory.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "List", Args: []any{factID}})
	if m.ListResult != nil {
		out := make([]memory.HistoryEntry, len(m.ListResult))
		copy(out, m.ListResult)
		return out, m.ListErr
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	entries := m.Entries[factID]
	out := make([]memory.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// DeleteAll implements [memory.HistoryLog].
func (m *HistoryLog) DeleteAll(_ context.Context, scopeFilter map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteAll", Args: []any{scopeFilter}})
	return m.DeleteAllErr
}

var _ memory.HistoryLog = (*HistoryLog)(nil)
