package retrieval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sixfold-ai/memcore/internal/retrieval"
	"github.com/sixfold-ai/memcore/pkg/memory"
	memorymock "github.com/sixfold-ai/memcore/pkg/memory/mock"
	embeddingsmock "github.com/sixfold-ai/memcore/pkg/provider/embeddings/mock"
)

func testScope() memory.Scope {
	return memory.Scope{UserID: "u1"}
}

func TestSearch_VectorOnlyWithoutGraphStore(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "f1", Memory: "likes pizza", Score: 0.9}},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := retrieval.New(embedder, vectors, nil)

	results, relations, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "f1" {
		t.Fatalf("results = %+v, want single f1 result", results)
	}
	if len(relations) != 0 {
		t.Errorf("relations = %+v, want empty when no graph store configured", relations)
	}
}

func TestSearch_TiedScoresBrokenByDescendingUpdatedAt(t *testing.T) {
	older := time.Unix(1000, 0)
	newer := time.Unix(2000, 0)
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{
			{ID: "older", Score: 0.8, UpdatedAt: older},
			{ID: "newer", Score: 0.8, UpdatedAt: newer},
		},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := retrieval.New(embedder, vectors, nil)

	results, _, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].ID != "newer" || results[1].ID != "older" {
		t.Fatalf("results = %+v, want newer before older for a tied score", results)
	}
}

func TestSearch_MergesGraphResultsWhenConfigured(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "f1", Memory: "likes pizza", Score: 0.9}},
	}
	graph := &memorymock.GraphStore{
		SearchResult: []memory.RelationResult{{Source: "Alice", Relationship: "likes", Destination: "pizza", Score: 0.8}},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := retrieval.New(embedder, vectors, graph)

	results, relations, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v, want 1", results)
	}
	if len(relations) != 1 || relations[0].Source != "Alice" {
		t.Fatalf("relations = %+v, want single Alice relation", relations)
	}
}

func TestSearch_ZeroLimitYieldsEmptyResultWithoutProviderCalls(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "f1", Memory: "likes pizza"}},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1}}
	stage := retrieval.New(embedder, vectors, nil)

	results, relations, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope(), Limit: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 || len(relations) != 0 {
		t.Errorf("results/relations = %+v/%+v, want both empty for limit=0", results, relations)
	}
	if len(vectors.Calls()) != 0 {
		t.Errorf("expected no VectorStore calls for limit=0, got %d", len(vectors.Calls()))
	}
	if len(embedder.EmbedCalls) != 0 {
		t.Errorf("expected no embed calls for limit=0, got %d", len(embedder.EmbedCalls))
	}
}

func TestSearch_NegativeLimitRejected(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1}}
	stage := retrieval.New(embedder, vectors, nil)

	if _, _, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope(), Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}
}

func TestSearch_EmptyScopeRejected(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1}}
	stage := retrieval.New(embedder, vectors, nil)

	if _, _, err := stage.Search(context.Background(), memory.Query{Text: "food"}); err == nil {
		t.Fatal("expected error for empty scope")
	}
}

func TestSearch_VectorFailureAbortsEvenIfGraphWouldSucceed(t *testing.T) {
	vectors := &memorymock.VectorStore{SearchErr: errors.New("store down")}
	graph := &memorymock.GraphStore{
		SearchResult: []memory.RelationResult{{Source: "Alice", Relationship: "likes", Destination: "pizza"}},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1}}
	stage := retrieval.New(embedder, vectors, graph)

	results, relations, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope()})
	if err == nil {
		t.Fatal("expected error when vector search fails")
	}
	if results != nil || relations != nil {
		t.Errorf("expected no partial results on failure, got results=%+v relations=%+v", results, relations)
	}
}

func TestSearch_GraphFailureAbortsWholeCall(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "f1", Memory: "likes pizza"}},
	}
	graph := &memorymock.GraphStore{SearchErr: errors.New("graph down")}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1}}
	stage := retrieval.New(embedder, vectors, graph)

	_, _, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope()})
	if err == nil {
		t.Fatal("expected error when graph search fails, no partial results")
	}
}

func TestSearch_EmbedFailurePropagates(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	embedder := &embeddingsmock.Provider{EmbedErr: errors.New("embedder down")}
	stage := retrieval.New(embedder, vectors, nil)

	if _, _, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope()}); err == nil {
		t.Fatal("expected error when embed fails")
	}
}

func TestSearch_ScopeAndCallerFilterBothPassedToVectorStore(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1}}
	stage := retrieval.New(embedder, vectors, nil)

	filter := map[string]any{"category": "diet"}
	if _, _, err := stage.Search(context.Background(), memory.Query{Text: "food", Scope: testScope(), Filter: filter}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := vectors.Calls()
	scopeFilter, _ := calls[0].Args[1].(map[string]any)
	extraFilter, _ := calls[0].Args[2].(map[string]any)
	if scopeFilter["user_id"] != "u1" {
		t.Errorf("scope filter = %+v, want user_id=u1", scopeFilter)
	}
	if extraFilter["category"] != "diet" {
		t.Errorf("extra filter = %+v, want category=diet", extraFilter)
	}
}
