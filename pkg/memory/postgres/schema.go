// Package postgres provides a PostgreSQL-backed implementation of the
// VectorStore, GraphStore, and HistoryLog provider contracts, using pgvector
// for similarity search.
//
// All three share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//
//	_ = store.Vectors().Insert(ctx, id, embedding, fact)
//	_ = store.History().Append(ctx, entry)
//	_, _ = store.Graph().UpsertEntity(ctx, scope, "Alice", "person")
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlFacts returns the facts-table DDL with the embedding dimension baked
// into the vector column type.
func ddlFacts(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS facts (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL DEFAULT '',
    agent_id    TEXT         NOT NULL DEFAULT '',
    session_id  TEXT         NOT NULL DEFAULT '',
    payload     TEXT         NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    embedding   vector(%d)   NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    deleted     BOOLEAN      NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_facts_scope
    ON facts (user_id, agent_id, session_id);

CREATE INDEX IF NOT EXISTS idx_facts_metadata
    ON facts USING GIN (metadata);

CREATE INDEX IF NOT EXISTS idx_facts_embedding
    ON facts USING hnsw (embedding vector_cosine_ops)
    WHERE NOT deleted;
`, embeddingDimensions)
}

const ddlHistory = `
CREATE TABLE IF NOT EXISTS fact_history (
    fact_id           TEXT         NOT NULL,
    seq               INT          NOT NULL,
    prev_payload      TEXT         NOT NULL DEFAULT '',
    new_payload       TEXT         NOT NULL DEFAULT '',
    kind              TEXT         NOT NULL,
    actor_user_id     TEXT         NOT NULL DEFAULT '',
    actor_agent_id    TEXT         NOT NULL DEFAULT '',
    actor_session_id  TEXT         NOT NULL DEFAULT '',
    ts                TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (fact_id, seq)
);
`

// ddlGraph returns the knowledge-graph DDL with the entity embedding
// dimension baked in (used for soft-merge similarity search).
func ddlGraph(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS graph_entities (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL DEFAULT '',
    agent_id    TEXT         NOT NULL DEFAULT '',
    session_id  TEXT         NOT NULL DEFAULT '',
    label       TEXT         NOT NULL,
    type        TEXT         NOT NULL,
    embedding   vector(%d),
    UNIQUE (user_id, agent_id, session_id, label, type)
);

CREATE INDEX IF NOT EXISTS idx_graph_entities_scope
    ON graph_entities (user_id, agent_id, session_id);

CREATE INDEX IF NOT EXISTS idx_graph_entities_embedding
    ON graph_entities USING hnsw (embedding vector_cosine_ops)
    WHERE embedding IS NOT NULL;

CREATE TABLE IF NOT EXISTS graph_relations (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL DEFAULT '',
    agent_id    TEXT         NOT NULL DEFAULT '',
    session_id  TEXT         NOT NULL DEFAULT '',
    source_id   TEXT         NOT NULL REFERENCES graph_entities (id) ON DELETE CASCADE,
    predicate   TEXT         NOT NULL,
    target_id   TEXT         NOT NULL REFERENCES graph_entities (id) ON DELETE CASCADE,
    weight      DOUBLE PRECISION NOT NULL DEFAULT 1,
    UNIQUE (source_id, predicate, target_id)
);

CREATE INDEX IF NOT EXISTS idx_graph_relations_scope
    ON graph_relations (user_id, agent_id, session_id);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent and safe to call on every application start.
//
// embeddingDimensions must match the output dimension of the configured
// embeddings provider. Changing it after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlFacts(embeddingDimensions),
		ddlHistory,
		ddlGraph(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
