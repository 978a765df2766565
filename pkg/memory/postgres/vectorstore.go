package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

// VectorStoreImpl is the [memory.VectorStore] implementation backed by a
// PostgreSQL facts table with a pgvector HNSW index for approximate
// nearest-neighbour search.
//
// Obtain one via [Store.Vectors] rather than constructing directly.
// All methods are safe for concurrent use.
type VectorStoreImpl struct {
	pool       *pgxpool.Pool
	dimensions int
}

// Insert implements [memory.VectorStore].
func (s *VectorStoreImpl) Insert(ctx context.Context, id string, embedding []float32, fact memory.Fact) error {
	metaJSON, err := json.Marshal(fact.Metadata)
	if err != nil {
		return fmt.Errorf("vector store: marshal metadata: %w", err)
	}

	const q = `
		INSERT INTO facts
		    (id, user_id, agent_id, session_id, payload, metadata, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, q,
		id,
		fact.Scope.UserID,
		fact.Scope.AgentID,
		fact.Scope.SessionID,
		fact.Payload,
		metaJSON,
		pgvector.NewVector(embedding),
		fact.CreatedAt,
		fact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("vector store: insert: %w", err)
	}
	return nil
}

// Update implements [memory.VectorStore].
func (s *VectorStoreImpl) Update(ctx context.Context, id string, embedding []float32, fact memory.Fact) error {
	metaJSON, err := json.Marshal(fact.Metadata)
	if err != nil {
		return fmt.Errorf("vector store: marshal metadata: %w", err)
	}

	const q = `
		UPDATE facts
		SET    payload    = $2,
		       metadata   = $3,
		       embedding  = $4,
		       updated_at = $5
		WHERE  id = $1 AND NOT deleted`

	tag, err := s.pool.Exec(ctx, q, id, fact.Payload, metaJSON, pgvector.NewVector(embedding), fact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("vector store: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// Delete implements [memory.VectorStore]. It soft-deletes the row by setting
// deleted; the embedding column is left in place and is not purged. The
// NOT deleted condition in Get, Search and List keeps the fact out of results.
func (s *VectorStoreImpl) Delete(ctx context.Context, id string) error {
	const q = `
		UPDATE facts
		SET    deleted = true
		WHERE  id = $1 AND NOT deleted`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("vector store: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// Get implements [memory.VectorStore].
func (s *VectorStoreImpl) Get(ctx context.Context, id string) (memory.Fact, error) {
	const q = `
		SELECT id, user_id, agent_id, session_id, payload, metadata, embedding, created_at, updated_at, deleted
		FROM   facts
		WHERE  id = $1 AND NOT deleted`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return memory.Fact{}, fmt.Errorf("vector store: get: %w", err)
	}
	facts, err := collectFacts(rows)
	if err != nil {
		return memory.Fact{}, fmt.Errorf("vector store: get: %w", err)
	}
	if len(facts) == 0 {
		return memory.Fact{}, memory.ErrNotFound
	}
	return facts[0], nil
}

// Search implements [memory.VectorStore].
func (s *VectorStoreImpl) Search(ctx context.Context, embedding []float32, scopeFilter, extraFilter map[string]any, limit int, threshold float64) ([]memory.Result, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"NOT deleted"}
	conditions = append(conditions, scopeConditions(scopeFilter, next)...)

	if len(extraFilter) > 0 {
		extraJSON, err := json.Marshal(extraFilter)
		if err != nil {
			return nil, fmt.Errorf("vector store: marshal extra filter: %w", err)
		}
		conditions = append(conditions, "metadata @> "+next(string(extraJSON))+"::jsonb")
	}

	if limit <= 0 {
		return []memory.Result{}, nil
	}
	args = append(args, limit)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, user_id, agent_id, session_id, payload, metadata, embedding, created_at, updated_at, deleted,
		       1 - (embedding <=> $1) AS score
		FROM   facts
		WHERE  %s
		ORDER  BY embedding <=> $1
		LIMIT  %s`, strings.Join(conditions, "\n  AND  "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Result, error) {
		r, vec, err := scanFactRow(row, true)
		if err != nil {
			return memory.Result{}, err
		}
		return resultFromFact(r, vec.Score), nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: search: scan: %w", err)
	}
	if threshold > 0 {
		results = filterByThreshold(results, threshold)
	}
	if results == nil {
		results = []memory.Result{}
	}
	return results, nil
}

// List implements [memory.VectorStore].
func (s *VectorStoreImpl) List(ctx context.Context, scopeFilter, extraFilter map[string]any, limit int) ([]memory.Result, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"NOT deleted"}
	conditions = append(conditions, scopeConditions(scopeFilter, next)...)

	if len(extraFilter) > 0 {
		extraJSON, err := json.Marshal(extraFilter)
		if err != nil {
			return nil, fmt.Errorf("vector store: marshal extra filter: %w", err)
		}
		conditions = append(conditions, "metadata @> "+next(string(extraJSON))+"::jsonb")
	}

	q := "SELECT id, user_id, agent_id, session_id, payload, metadata, embedding, created_at, updated_at, deleted\n" +
		"FROM   facts\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY updated_at DESC"

	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector store: list: %w", err)
	}
	facts, err := collectFacts(rows)
	if err != nil {
		return nil, fmt.Errorf("vector store: list: %w", err)
	}

	results := make([]memory.Result, len(facts))
	for i, f := range facts {
		results[i] = resultFromFact(f, 0)
	}
	return results, nil
}

// DeleteByScope implements [memory.VectorStore].
func (s *VectorStoreImpl) DeleteByScope(ctx context.Context, scopeFilter map[string]any) error {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := scopeConditions(scopeFilter, next)
	if len(conditions) == 0 {
		return fmt.Errorf("vector store: delete by scope: empty scope filter refused")
	}

	q := "UPDATE facts SET deleted = true WHERE " + strings.Join(conditions, "\n  AND  ")
	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("vector store: delete by scope: %w", err)
	}
	return nil
}

// Dimensions implements [memory.VectorStore].
func (s *VectorStoreImpl) Dimensions() int { return s.dimensions }

// Reset truncates the facts table, discarding every row regardless of scope.
func (s *VectorStoreImpl) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE facts"); err != nil {
		return fmt.Errorf("vector store: reset: %w", err)
	}
	return nil
}

// scopeConditions renders a scope-filter map (keys "user_id"/"agent_id"/
// "session_id") into SQL equality conditions, consuming placeholders via next.
func scopeConditions(scopeFilter map[string]any, next func(any) string) []string {
	var conditions []string
	for _, key := range []string{"user_id", "agent_id", "session_id"} {
		if v, ok := scopeFilter[key]; ok {
			conditions = append(conditions, key+" = "+next(v))
		}
	}
	return conditions
}

type scoredFact struct {
	memory.Fact
	Score float64
}

// scanFactRow scans one facts row, optionally including the trailing score
// column produced by Search's cosine-similarity projection.
func scanFactRow(row pgx.CollectableRow, withScore bool) (memory.Fact, scoredFact, error) {
	var (
		f        memory.Fact
		metaJSON []byte
		vec      pgvector.Vector
		score    float64
	)
	dest := []any{
		&f.ID, &f.Scope.UserID, &f.Scope.AgentID, &f.Scope.SessionID,
		&f.Payload, &metaJSON, &vec, &f.CreatedAt, &f.UpdatedAt, &f.Deleted,
	}
	if withScore {
		dest = append(dest, &score)
	}
	if err := row.Scan(dest...); err != nil {
		return memory.Fact{}, scoredFact{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &f.Metadata); err != nil {
			return memory.Fact{}, scoredFact{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	f.Embedding = vec.Slice()
	return f, scoredFact{Fact: f, Score: score}, nil
}

// collectFacts scans pgx rows (without the trailing score column) into Facts.
func collectFacts(rows pgx.Rows) ([]memory.Fact, error) {
	facts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Fact, error) {
		f, _, err := scanFactRow(row, false)
		return f, err
	})
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = []memory.Fact{}
	}
	return facts, nil
}

// resultFromFact projects a stored Fact into the public Result shape.
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

// filterByThreshold drops results scoring below threshold, preserving order.
func filterByThreshold(results []memory.Result, threshold float64) []memory.Result {
	out := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}
