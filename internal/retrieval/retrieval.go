// Package retrieval implements the query-side half of the memory core: embed
// the query, search the vector store, and — when a graph store is
// configured — search the graph in parallel, merging both result sets for
// the caller.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
)

// DefaultLimit is the conventional result cap a caller should fill in
// before constructing a Query whose limit was left unspecified at the
// caller's own request boundary. Search takes Query.Limit literally — a
// zero Limit yields zero results (spec boundary behaviour) rather than
// being silently defaulted here.
const DefaultLimit = 100

// Stage runs one retrieval call: embed, vector search, optional graph
// search, in parallel.
type Stage struct {
	embedder embeddings.Provider
	vectors  memory.VectorStore
	graph    memory.GraphStore // nil when no graph layer is configured
}

// New returns a Stage. graph may be nil, in which case Search never
// attempts a graph lookup and RelationResult is always empty.
func New(embedder embeddings.Provider, vectors memory.VectorStore, graph memory.GraphStore) *Stage {
	return &Stage{embedder: embedder, vectors: vectors, graph: graph}
}

// Search embeds query.Text, then runs the vector search and (if a graph
// store is configured) the graph search concurrently. Either branch failing
// aborts the call entirely — no partial results are returned.
func (s *Stage) Search(ctx context.Context, query memory.Query) ([]memory.Result, []memory.RelationResult, error) {
	if query.Scope.IsZero() {
		return nil, nil, fmt.Errorf("retrieval: scope must not be empty")
	}

	if query.Limit < 0 {
		return nil, nil, fmt.Errorf("retrieval: limit must not be negative")
	}
	if query.Limit == 0 {
		return []memory.Result{}, []memory.RelationResult{}, nil
	}
	limit := query.Limit

	vec, err := s.embedder.Embed(ctx, query.Text, embeddings.PurposeSearch)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	var (
		results   []memory.Result
		relations []memory.RelationResult
	)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		scopeFilter := query.Scope.Filter()
		r, err := s.vectors.Search(egCtx, vec, scopeFilter, query.Filter, limit, query.Threshold)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		results = r
		return nil
	})

	if s.graph != nil {
		eg.Go(func() error {
			terms := tokenize(query.Text)
			r, err := s.graph.Search(egCtx, query.Scope, terms, limit)
			if err != nil {
				return fmt.Errorf("graph search: %w", err)
			}
			relations = r
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, fmt.Errorf("retrieval: %w", err)
	}

	if results == nil {
		results = []memory.Result{}
	}
	if relations == nil {
		relations = []memory.RelationResult{}
	}
	sortResults(results)
	return results, relations, nil
}

// sortResults orders results by descending score, breaking ties by
// descending UpdatedAt so that a VectorStore whose own ordering guarantee
// stops at score (true for a pgvector ANN index, whose tie order among
// equally-scored rows is otherwise unspecified) still comes back
// deterministic to the caller.
func sortResults(results []memory.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
}

// tokenize splits text naively on whitespace for graph term matching.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return []string{}
	}
	return fields
}
