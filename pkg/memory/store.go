package memory

import "context"

// ─────────────────────────────────────────────────────────────────────────────
// VectorStore
// ─────────────────────────────────────────────────────────────────────────────

// VectorStore is the persistence and similarity-search layer for Facts.
//
// A store's collection is set up when the store is constructed, sized to the
// dimension passed to its constructor; the embedding provider's Dimensions()
// is not consulted. Implementations must be safe for concurrent use.
type VectorStore interface {
	// Insert stores a new Fact. id must not already exist in the store.
	Insert(ctx context.Context, id string, embedding []float32, fact Fact) error

	// Update replaces the embedding and Fact payload/metadata for an
	// existing id, refreshing UpdatedAt. Returns ErrNotFound if id does not
	// exist.
	Update(ctx context.Context, id string, embedding []float32, fact Fact) error

	// Delete soft-deletes the fact for id: it is excluded from Get, Search
	// and List, while its row and stored vector are kept rather than purged.
	// Deleting an already-deleted or unknown id returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Get retrieves a single Fact by id. Returns ErrNotFound if it does not
	// exist or has been deleted.
	Get(ctx context.Context, id string) (Fact, error)

	// Search returns the facts whose embeddings are closest to embedding,
	// restricted to scopeFilter (from Scope.Filter) and extraFilter
	// (caller-supplied metadata equality), ordered by descending similarity.
	// limit caps the result count and is taken literally: limit<=0 returns
	// an empty (non-nil) slice rather than a default-sized page. threshold,
	// when non-zero, discards matches below that score. An absent filter
	// key matches every fact rather than none.
	Search(ctx context.Context, embedding []float32, scopeFilter, extraFilter map[string]any, limit int, threshold float64) ([]Result, error)

	// List returns all live facts matching scopeFilter and extraFilter, up
	// to limit, in no particular guaranteed order beyond what the
	// implementation finds convenient.
	List(ctx context.Context, scopeFilter, extraFilter map[string]any, limit int) ([]Result, error)

	// DeleteByScope purges every fact matching scopeFilter. Used by
	// delete_all; a no-op (not an error) when nothing matches.
	DeleteByScope(ctx context.Context, scopeFilter map[string]any) error

	// Dimensions returns the fixed vector length this store was
	// initialised with.
	Dimensions() int
}

// ─────────────────────────────────────────────────────────────────────────────
// GraphStore
// ─────────────────────────────────────────────────────────────────────────────

// GraphStore is the optional knowledge-graph layer. A core instance without
// a configured GraphStore simply skips the graph extraction and retrieval
// stages.
//
// The graph is partitioned by principal (Scope): entities and relations
// asserted under one principal are never visible to a search scoped to a
// different principal.
type GraphStore interface {
	// UpsertEntity inserts or, if an entity with the same (Label, Type)
	// already exists within scope, updates it. Returns the entity's
	// (possibly pre-existing) ID.
	UpsertEntity(ctx context.Context, scope Scope, label, entityType string) (string, error)

	// EntityEmbedding stores (or replaces) the embedding used to soft-merge
	// future candidate entities against this one.
	EntityEmbedding(ctx context.Context, entityID string, embedding []float32) error

	// SearchEntities returns the topK entities within scope whose stored
	// embeddings are closest to embedding, most similar first, each paired
	// with its similarity score.
	SearchEntities(ctx context.Context, scope Scope, embedding []float32, topK int) ([]EntityMatch, error)

	// UpsertRelation inserts or replaces the edge (sourceID, predicate,
	// targetID) within scope.
	UpsertRelation(ctx context.Context, scope Scope, sourceID, predicate, targetID string, weight float64) error

	// Search performs a naive term-matching lookup over entity labels within
	// scope, returning up to limit relations whose source or target label
	// matches one of queryTerms. Relation predicates are not matched.
	Search(ctx context.Context, scope Scope, queryTerms []string, limit int) ([]RelationResult, error)

	// DeleteByPrincipal removes every entity and relation asserted under
	// scope. Used by delete_all.
	DeleteByPrincipal(ctx context.Context, scope Scope) error
}

// ─────────────────────────────────────────────────────────────────────────────
// HistoryLog
// ─────────────────────────────────────────────────────────────────────────────

// HistoryLog is the append-only audit trail of mutations applied to Facts.
// It is never consulted by reconciliation or retrieval — only by explicit
// History lookups — so implementations may optimise purely for sequential
// append and per-fact range scan.
type HistoryLog interface {
	// Append records entry. The caller is responsible for assigning a Seq
	// one greater than the previous entry for the same FactID; Append does
	// not validate monotonicity itself.
	Append(ctx context.Context, entry HistoryEntry) error

	// List returns every entry for factID in ascending Seq order. Returns
	// an empty (non-nil) slice when none exist.
	List(ctx context.Context, factID string) ([]HistoryEntry, error)

	// DeleteAll removes every entry matching scopeFilter. The orchestrator
	// calls it from neither delete_all (history is retained across fact
	// deletion by design) nor reset, which uses the log's own Reset method.
	DeleteAll(ctx context.Context, scopeFilter map[string]any) error
}
