package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

var (
	_ memory.VectorStore = (*VectorStoreImpl)(nil)
	_ memory.HistoryLog  = (*HistoryLogImpl)(nil)
	_ memory.GraphStore  = (*GraphStoreImpl)(nil)
)

// Store is the central PostgreSQL-backed provider bundle. It holds a single
// [pgxpool.Pool] and exposes the three provider contracts as sub-types:
//
//   - [Store.Vectors] returns a [VectorStoreImpl] implementing [memory.VectorStore]
//   - [Store.History] returns a [HistoryLogImpl] implementing [memory.HistoryLog]
//   - [Store.Graph] returns a [GraphStoreImpl] implementing [memory.GraphStore]
//
// All operations are safe for concurrent use.
type Store struct {
	pool    *pgxpool.Pool
	vectors *VectorStoreImpl
	history *HistoryLogImpl
	graph   *GraphStoreImpl
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the configured
// embeddings.Provider. Changing this value after the first migration
// requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:    pool,
		vectors: &VectorStoreImpl{pool: pool, dimensions: embeddingDimensions},
		history: &HistoryLogImpl{pool: pool},
		graph:   &GraphStoreImpl{pool: pool},
	}, nil
}

// Vectors returns the VectorStore implementation.
func (s *Store) Vectors() *VectorStoreImpl { return s.vectors }

// History returns the HistoryLog implementation.
func (s *Store) History() *HistoryLogImpl { return s.history }

// Graph returns the GraphStore implementation.
func (s *Store) Graph() *GraphStoreImpl { return s.graph }

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
