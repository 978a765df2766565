// Package inmemory provides a mutex-protected, single-process implementation
// of the VectorStore, GraphStore, and HistoryLog provider contracts. It is
// suitable for tests and for deployments that do not need facts to survive a
// process restart.
package inmemory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

var (
	_ memory.VectorStore = (*VectorStore)(nil)
	_ memory.GraphStore  = (*GraphStore)(nil)
	_ memory.HistoryLog  = (*HistoryLog)(nil)
)

// generateID returns a random 32-character hex identifier.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// matchesScope reports whether fact's scope satisfies every key present in
// scopeFilter ("user_id", "agent_id", "session_id").
func matchesScope(scope memory.Scope, scopeFilter map[string]any) bool {
	for key, want := range scopeFilter {
		var got string
		switch key {
		case "user_id":
			got = scope.UserID
		case "agent_id":
			got = scope.AgentID
		case "session_id":
			got = scope.SessionID
		default:
			continue
		}
		if fmt.Sprint(want) != got {
			return false
		}
	}
	return true
}

// matchesMetadata reports whether fact's metadata contains every key/value
// pair in extraFilter.
func matchesMetadata(metadata map[string]any, extraFilter map[string]any) bool {
	for k, want := range extraFilter {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of a and b, or 0 if either is empty
// or their dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ─────────────────────────────────────────────────────────────────────────────
// VectorStore
// ─────────────────────────────────────────────────────────────────────────────

// VectorStore is an in-memory [memory.VectorStore]. The zero value is ready
// to use only via [NewVectorStore]; dimensions must be known up front.
type VectorStore struct {
	mu         sync.RWMutex
	facts      map[string]memory.Fact
	dimensions int
}

// NewVectorStore returns a VectorStore that reports dimensions from
// [VectorStore.Dimensions].
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{
		facts:      make(map[string]memory.Fact),
		dimensions: dimensions,
	}
}

// Insert implements [memory.VectorStore].
func (s *VectorStore) Insert(_ context.Context, id string, embedding []float32, fact memory.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact.ID = id
	fact.Embedding = embedding
	s.facts[id] = fact
	return nil
}

// Update implements [memory.VectorStore].
func (s *VectorStore) Update(_ context.Context, id string, embedding []float32, fact memory.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.facts[id]
	if !ok || existing.Deleted {
		return memory.ErrNotFound
	}
	fact.ID = id
	fact.Embedding = embedding
	s.facts[id] = fact
	return nil
}

// Delete implements [memory.VectorStore]: it soft-deletes the fact.
func (s *VectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facts[id]
	if !ok || f.Deleted {
		return memory.ErrNotFound
	}
	f.Deleted = true
	s.facts[id] = f
	return nil
}

// Get implements [memory.VectorStore].
func (s *VectorStore) Get(_ context.Context, id string) (memory.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.facts[id]
	if !ok || f.Deleted {
		return memory.Fact{}, memory.ErrNotFound
	}
	return f, nil
}

// Search implements [memory.VectorStore].
func (s *VectorStore) Search(_ context.Context, embedding []float32, scopeFilter, extraFilter map[string]any, limit int, threshold float64) ([]memory.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		fact  memory.Fact
		score float64
	}
	var candidates []scored
	for _, f := range s.facts {
		if f.Deleted {
			continue
		}
		if !matchesScope(f.Scope, scopeFilter) || !matchesMetadata(f.Metadata, extraFilter) {
			continue
		}
		score := cosine(embedding, f.Embedding)
		if threshold > 0 && score < threshold {
			continue
		}
		candidates = append(candidates, scored{fact: f, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].fact.UpdatedAt.After(candidates[j].fact.UpdatedAt)
	})

	if limit <= 0 {
		return []memory.Result{}, nil
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]memory.Result, len(candidates))
	for i, c := range candidates {
		results[i] = resultFromFact(c.fact, c.score)
	}
	return results, nil
}

// List implements [memory.VectorStore].
func (s *VectorStore) List(_ context.Context, scopeFilter, extraFilter map[string]any, limit int) ([]memory.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []memory.Fact
	for _, f := range s.facts {
		if f.Deleted {
			continue
		}
		if !matchesScope(f.Scope, scopeFilter) || !matchesMetadata(f.Metadata, extraFilter) {
			continue
		}
		matched = append(matched, f)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.After(matched[j].UpdatedAt) })

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	results := make([]memory.Result, len(matched))
	for i, f := range matched {
		results[i] = resultFromFact(f, 0)
	}
	return results, nil
}

// DeleteByScope implements [memory.VectorStore].
func (s *VectorStore) DeleteByScope(_ context.Context, scopeFilter map[string]any) error {
	if len(scopeFilter) == 0 {
		return fmt.Errorf("inmemory vector store: delete by scope: empty scope filter refused")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.facts {
		if matchesScope(f.Scope, scopeFilter) {
			f.Deleted = true
			s.facts[id] = f
		}
	}
	return nil
}

// Dimensions implements [memory.VectorStore].
func (s *VectorStore) Dimensions() int { return s.dimensions }

// Reset discards every fact regardless of scope. Unlike DeleteByScope it
// takes no filter and refuses nothing — callers needing a full wipe should
// reach it only through a guarded admin path.
func (s *VectorStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facts = make(map[string]memory.Fact)
	return nil
}

func resultFromFact(f memory.Fact, score float64) memory.Result {
	return memory.Result{
		ID:        f.ID,
		Memory:    f.Payload,
		Score:     score,
		Metadata:  f.Metadata,
		Hash:      memory.HashPayload(f.Payload),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		Scope:     f.Scope,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GraphStore
// ─────────────────────────────────────────────────────────────────────────────

// GraphStore is an in-memory [memory.GraphStore].
type GraphStore struct {
	mu        sync.RWMutex
	entities  map[string]memory.Entity
	embedding map[string][]float32
	relations map[string]memory.Relation
}

// NewGraphStore returns an empty GraphStore.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		entities:  make(map[string]memory.Entity),
		embedding: make(map[string][]float32),
		relations: make(map[string]memory.Relation),
	}
}

// UpsertEntity implements [memory.GraphStore]. If an entity with the same
// (scope, label, type) already exists its id is returned unchanged.
func (g *GraphStore) UpsertEntity(_ context.Context, scope memory.Scope, label, entityType string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.entities {
		if e.Scope == scope && e.Label == label && e.Type == entityType {
			return e.ID, nil
		}
	}

	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("inmemory graph store: generate entity id: %w", err)
	}
	g.entities[id] = memory.Entity{ID: id, Label: label, Type: entityType, Scope: scope}
	return id, nil
}

// EntityEmbedding implements [memory.GraphStore].
func (g *GraphStore) EntityEmbedding(_ context.Context, entityID string, embedding []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entities[entityID]; !ok {
		return memory.ErrNotFound
	}
	g.embedding[entityID] = embedding
	return nil
}

// SearchEntities implements [memory.GraphStore].
func (g *GraphStore) SearchEntities(_ context.Context, scope memory.Scope, embedding []float32, topK int) ([]memory.EntityMatch, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type scored struct {
		entity memory.Entity
		score  float64
	}
	var candidates []scored
	for id, e := range g.entities {
		if e.Scope != scope {
			continue
		}
		vec, ok := g.embedding[id]
		if !ok {
			continue
		}
		candidates = append(candidates, scored{entity: e, score: cosine(embedding, vec)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if topK <= 0 {
		topK = 5
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]memory.EntityMatch, len(candidates))
	for i, c := range candidates {
		out[i] = memory.EntityMatch{Entity: c.entity, Score: c.score}
	}
	return out, nil
}

// UpsertRelation implements [memory.GraphStore].
func (g *GraphStore) UpsertRelation(_ context.Context, scope memory.Scope, sourceID, predicate, targetID string, weight float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := sourceID + "\x00" + predicate + "\x00" + targetID
	if existing, ok := g.relations[key]; ok {
		existing.Weight = weight
		g.relations[key] = existing
		return nil
	}

	id, err := generateID()
	if err != nil {
		return fmt.Errorf("inmemory graph store: generate relation id: %w", err)
	}
	g.relations[key] = memory.Relation{
		ID: id, SourceID: sourceID, Predicate: predicate, TargetID: targetID, Weight: weight, Scope: scope,
	}
	return nil
}

// Search implements [memory.GraphStore] via naive case-insensitive substring
// matching against the label of either endpoint.
func (g *GraphStore) Search(_ context.Context, scope memory.Scope, queryTerms []string, limit int) ([]memory.RelationResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(queryTerms) == 0 {
		return []memory.RelationResult{}, nil
	}

	var out []memory.RelationResult
	for _, rel := range g.relations {
		if rel.Scope != scope {
			continue
		}
		src, srcOK := g.entities[rel.SourceID]
		dst, dstOK := g.entities[rel.TargetID]
		if !srcOK || !dstOK {
			continue
		}
		if !anyTermMatches(queryTerms, src.Label, dst.Label) {
			continue
		}
		out = append(out, memory.RelationResult{
			Source:       src.Label,
			Relationship: rel.Predicate,
			Destination:  dst.Label,
			Score:        rel.Weight,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []memory.RelationResult{}
	}
	return out, nil
}

func anyTermMatches(terms []string, labels ...string) bool {
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		for _, label := range labels {
			if strings.Contains(strings.ToLower(label), lowerTerm) {
				return true
			}
		}
	}
	return false
}

// DeleteByPrincipal implements [memory.GraphStore].
func (g *GraphStore) DeleteByPrincipal(_ context.Context, scope memory.Scope) error {
	if scope.IsZero() {
		return fmt.Errorf("inmemory graph store: delete by principal: zero scope refused")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for id, e := range g.entities {
		if e.Scope == scope {
			delete(g.entities, id)
			delete(g.embedding, id)
		}
	}
	for key, rel := range g.relations {
		if rel.Scope == scope {
			delete(g.relations, key)
		}
	}
	return nil
}

// Reset discards every entity and relation regardless of principal.
func (g *GraphStore) Reset(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entities = make(map[string]memory.Entity)
	g.embedding = make(map[string][]float32)
	g.relations = make(map[string]memory.Relation)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HistoryLog
// ─────────────────────────────────────────────────────────────────────────────

// HistoryLog is an in-memory, append-only [memory.HistoryLog].
type HistoryLog struct {
	mu      sync.RWMutex
	entries map[string][]memory.HistoryEntry
}

// NewHistoryLog returns an empty HistoryLog.
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{entries: make(map[string][]memory.HistoryEntry)}
}

// Append implements [memory.HistoryLog].
func (h *HistoryLog) Append(_ context.Context, entry memory.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[entry.FactID] = append(h.entries[entry.FactID], entry)
	return nil
}

// List implements [memory.HistoryLog], returning entries in the order they
// were appended (ascending Seq by construction).
func (h *HistoryLog) List(_ context.Context, factID string) ([]memory.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.entries[factID]
	out := make([]memory.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// DeleteAll implements [memory.HistoryLog].
func (h *HistoryLog) DeleteAll(_ context.Context, scopeFilter map[string]any) error {
	if len(scopeFilter) == 0 {
		return fmt.Errorf("inmemory history log: delete all: empty scope filter refused")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for factID, entries := range h.entries {
		var kept []memory.HistoryEntry
		for _, e := range entries {
			if !matchesScope(e.ActorScope, scopeFilter) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(h.entries, factID)
		} else {
			h.entries[factID] = kept
		}
	}
	return nil
}

// Reset discards every history entry regardless of actor scope.
func (h *HistoryLog) Reset(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = make(map[string][]memory.HistoryEntry)
	return nil
}
