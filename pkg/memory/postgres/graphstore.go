package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

// GraphStoreImpl is the [memory.GraphStore] implementation backed by the
// graph_entities and graph_relations tables. Entities are unique per
// principal by (label, type); SearchEntities supports the soft-merge lookup
// used when extraction proposes an entity that may already exist under a
// slightly different label.
//
// Obtain one via [Store.Graph] rather than constructing directly.
type GraphStoreImpl struct {
	pool *pgxpool.Pool
}

// UpsertEntity implements [memory.GraphStore]. If an entity with the same
// (scope, label, type) already exists its id is returned unchanged.
func (g *GraphStoreImpl) UpsertEntity(ctx context.Context, scope memory.Scope, label, entityType string) (string, error) {
	id := entityID(scope, label, entityType)

	const q = `
		INSERT INTO graph_entities (id, user_id, agent_id, session_id, label, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, agent_id, session_id, label, type) DO NOTHING
		RETURNING id`

	row := g.pool.QueryRow(ctx, q, id, scope.UserID, scope.AgentID, scope.SessionID, label, entityType)
	var returnedID string
	if err := row.Scan(&returnedID); err != nil {
		if err == pgx.ErrNoRows {
			// already existed; look up its (pre-existing) id.
			return g.existingEntityID(ctx, scope, label, entityType)
		}
		return "", fmt.Errorf("graph store: upsert entity: %w", err)
	}
	return returnedID, nil
}

func (g *GraphStoreImpl) existingEntityID(ctx context.Context, scope memory.Scope, label, entityType string) (string, error) {
	const q = `
		SELECT id FROM graph_entities
		WHERE  user_id = $1 AND agent_id = $2 AND session_id = $3 AND label = $4 AND type = $5`

	row := g.pool.QueryRow(ctx, q, scope.UserID, scope.AgentID, scope.SessionID, label, entityType)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("graph store: lookup existing entity: %w", err)
	}
	return id, nil
}

// EntityEmbedding implements [memory.GraphStore].
func (g *GraphStoreImpl) EntityEmbedding(ctx context.Context, entityID string, embedding []float32) error {
	const q = `UPDATE graph_entities SET embedding = $2 WHERE id = $1`

	tag, err := g.pool.Exec(ctx, q, entityID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("graph store: entity embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// SearchEntities implements [memory.GraphStore]. It orders candidate
// entities within scope by cosine distance to embedding, for use in
// soft-merge entity resolution.
func (g *GraphStoreImpl) SearchEntities(ctx context.Context, scope memory.Scope, embedding []float32, topK int) ([]memory.EntityMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	const q = `
		SELECT id, label, type, user_id, agent_id, session_id, 1 - (embedding <=> $4) AS score
		FROM   graph_entities
		WHERE  user_id = $1 AND agent_id = $2 AND session_id = $3 AND embedding IS NOT NULL
		ORDER  BY embedding <=> $4
		LIMIT  $5`

	rows, err := g.pool.Query(ctx, q, scope.UserID, scope.AgentID, scope.SessionID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("graph store: search entities: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.EntityMatch, error) {
		var m memory.EntityMatch
		if err := row.Scan(&m.Entity.ID, &m.Entity.Label, &m.Entity.Type, &m.Entity.Scope.UserID, &m.Entity.Scope.AgentID, &m.Entity.Scope.SessionID, &m.Score); err != nil {
			return memory.EntityMatch{}, err
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: search entities: scan: %w", err)
	}
	if matches == nil {
		matches = []memory.EntityMatch{}
	}
	return matches, nil
}

// UpsertRelation implements [memory.GraphStore].
func (g *GraphStoreImpl) UpsertRelation(ctx context.Context, scope memory.Scope, sourceID, predicate, targetID string, weight float64) error {
	id := relationID(sourceID, predicate, targetID)

	const q = `
		INSERT INTO graph_relations (id, user_id, agent_id, session_id, source_id, predicate, target_id, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id, predicate, target_id) DO UPDATE
		    SET weight = EXCLUDED.weight`

	_, err := g.pool.Exec(ctx, q, id, scope.UserID, scope.AgentID, scope.SessionID, sourceID, predicate, targetID, weight)
	if err != nil {
		return fmt.Errorf("graph store: upsert relation: %w", err)
	}
	return nil
}

// Search implements [memory.GraphStore] using naive case-insensitive term
// matching against entity labels, returning the relations those entities
// participate in either as source or target.
func (g *GraphStoreImpl) Search(ctx context.Context, scope memory.Scope, queryTerms []string, limit int) ([]memory.RelationResult, error) {
	if len(queryTerms) == 0 {
		return []memory.RelationResult{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	args := []any{scope.UserID, scope.AgentID, scope.SessionID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var termConditions []string
	for _, term := range queryTerms {
		termConditions = append(termConditions,
			"(src.label ILIKE "+next("%"+term+"%")+" OR dst.label ILIKE "+next("%"+term+"%")+")")
	}

	args = append(args, limit)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT src.label, rel.predicate, rel.weight, dst.label
		FROM   graph_relations rel
		JOIN   graph_entities src ON src.id = rel.source_id
		JOIN   graph_entities dst ON dst.id = rel.target_id
		WHERE  rel.user_id = $1 AND rel.agent_id = $2 AND rel.session_id = $3
		  AND  (%s)
		ORDER  BY rel.weight DESC
		LIMIT  %s`, strings.Join(termConditions, " OR "), limitArg)

	rows, err := g.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graph store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.RelationResult, error) {
		var r memory.RelationResult
		if err := row.Scan(&r.Source, &r.Relationship, &r.Score, &r.Destination); err != nil {
			return memory.RelationResult{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: search: scan: %w", err)
	}
	if results == nil {
		results = []memory.RelationResult{}
	}
	return results, nil
}

// DeleteByPrincipal implements [memory.GraphStore]. Relations cascade via
// the foreign keys' ON DELETE CASCADE when their endpoint entities are
// removed.
func (g *GraphStoreImpl) DeleteByPrincipal(ctx context.Context, scope memory.Scope) error {
	if scope.IsZero() {
		return fmt.Errorf("graph store: delete by principal: zero scope refused")
	}

	const q = `
		DELETE FROM graph_entities
		WHERE  user_id = $1 AND agent_id = $2 AND session_id = $3`

	if _, err := g.pool.Exec(ctx, q, scope.UserID, scope.AgentID, scope.SessionID); err != nil {
		return fmt.Errorf("graph store: delete by principal: %w", err)
	}
	return nil
}

// Reset truncates the graph tables, discarding every entity and relation
// regardless of principal.
func (g *GraphStoreImpl) Reset(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, "TRUNCATE TABLE graph_entities, graph_relations"); err != nil {
		return fmt.Errorf("graph store: reset: %w", err)
	}
	return nil
}

// entityID derives a deterministic id from scope and (label, type) so
// concurrent UpsertEntity callers racing on the same entity converge on the
// same id even if both attempt the insert.
func entityID(scope memory.Scope, label, entityType string) string {
	return fmt.Sprintf("ent_%s_%s_%s_%s_%s", scope.UserID, scope.AgentID, scope.SessionID, entityType, label)
}

func relationID(sourceID, predicate, targetID string) string {
	return fmt.Sprintf("rel_%s_%s_%s", sourceID, predicate, targetID)
}
