package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sixfold-ai/memcore/internal/orchestrator"
	"github.com/sixfold-ai/memcore/pkg/memory"
	memorymock "github.com/sixfold-ai/memcore/pkg/memory/mock"
	embeddingsmock "github.com/sixfold-ai/memcore/pkg/provider/embeddings/mock"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	llmmock "github.com/sixfold-ai/memcore/pkg/provider/llm/mock"
	"github.com/sixfold-ai/memcore/pkg/types"
)

func testScope() memory.Scope {
	return memory.Scope{UserID: "u1"}
}

func newTestOrchestrator(model *llmmock.Provider, embedder *embeddingsmock.Provider, vectors *memorymock.VectorStore, history *memorymock.HistoryLog, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(model, embedder, vectors, history, opts...)
}

func TestAdd_FullInferenceProducesAddResult(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"facts":["User loves pizza"]}`}},
			{Response: &llm.CompletionResponse{Content: `{"memory":[{"id":0,"text":"User loves pizza","event":"ADD"}]}`}},
		},
	}
	o := newTestOrchestrator(model, embedder, vectors, history)

	results, err := o.Add(context.Background(), orchestrator.AddRequest{
		Messages: []types.Message{{Role: "user", Content: "I love pizza."}},
		Scope:    testScope(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Event != memory.HistoryAdd || results[0].Memory != "User loves pizza" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[0].ID == "" {
		t.Error("result ID was not assigned")
	}
	if vectors.CallCount("Insert") != 1 {
		t.Errorf("Insert called %d times, want 1", vectors.CallCount("Insert"))
	}
	if history.CallCount("Append") != 1 {
		t.Errorf("Append called %d times, want 1", history.CallCount("Append"))
	}
}

func TestAdd_SkipInferenceBypassesLLMAndAlwaysAdds(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	results, err := o.Add(context.Background(), orchestrator.AddRequest{
		Messages:      []types.Message{{Role: "user", Content: "raw note"}},
		Scope:         testScope(),
		SkipInference: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Memory != "raw note" {
		t.Fatalf("results = %+v", results)
	}
	if model.CallCount() != 0 {
		t.Errorf("LLM was called %d times, want 0 when SkipInference is set", model.CallCount())
	}
}

func TestAdd_EmptyMessagesIsNoOp(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	results, err := o.Add(context.Background(), orchestrator.AddRequest{Scope: testScope()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
	if model.CallCount() != 0 {
		t.Error("LLM should not be called for an empty message batch")
	}
}

func TestAdd_EmptyScopeRejected(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	_, err := o.Add(context.Background(), orchestrator.AddRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for an empty scope")
	}
}

func TestAdd_ReconciliationFailureAbortsWithNoWrites(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"facts":["User loves pizza"]}`}},
			{Response: &llm.CompletionResponse{Content: "not json"}},
			{Response: &llm.CompletionResponse{Content: "still not json"}},
		},
	}
	o := newTestOrchestrator(model, embedder, vectors, history)

	_, err := o.Add(context.Background(), orchestrator.AddRequest{
		Messages: []types.Message{{Role: "user", Content: "I love pizza."}},
		Scope:    testScope(),
	})
	if err == nil {
		t.Fatal("expected error when reconciliation cannot be parsed")
	}
	if vectors.CallCount("Insert") != 0 {
		t.Error("no write should occur when reconciliation fails")
	}
}

func TestAdd_GraphExtractionFailureDoesNotAbortIngest(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	graph := &memorymock.GraphStore{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"facts":["User loves pizza"]}`}},
			{Response: &llm.CompletionResponse{Content: `{"memory":[{"id":0,"text":"User loves pizza","event":"ADD"}]}`}},
			{Err: errors.New("graph model down")},
		},
	}
	o := newTestOrchestrator(model, embedder, vectors, history, orchestrator.WithGraphStore(graph))

	results, err := o.Add(context.Background(), orchestrator.AddRequest{
		Messages: []types.Message{{Role: "user", Content: "I love pizza."}},
		Scope:    testScope(),
	})
	if err != nil {
		t.Fatalf("a graph extraction failure must not abort the ingest: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v, want the vector-layer ADD to have applied", results)
	}
}

func TestAdd_PartialWriteFailureSurfacesPerDecisionError(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "existing-1", Memory: "old fact"}},
		DeleteErr:    errors.New("delete boom"),
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"facts":["User loves pizza"]}`}},
			{Response: &llm.CompletionResponse{Content: `{"memory":[{"id":0,"text":"New pizza fact","event":"ADD"},{"id":0,"text":"","event":"DELETE","old_memory":"old fact"}]}`}},
		},
	}
	o := newTestOrchestrator(model, embedder, vectors, history)

	results, err := o.Add(context.Background(), orchestrator.AddRequest{
		Messages: []types.Message{{Role: "user", Content: "I love pizza."}},
		Scope:    testScope(),
	})
	if err != nil {
		t.Fatalf("a per-decision write failure must not abort the batch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (both decisions reported, one failed)", len(results))
	}
	if results[0].Event != memory.HistoryAdd || results[0].Error != nil {
		t.Errorf("results[0] = %+v, want a successful ADD", results[0])
	}
	if results[1].Event != memory.HistoryDelete || results[1].Error == nil {
		t.Errorf("results[1] = %+v, want a DELETE reporting the write failure", results[1])
	}
	if results[1].ID != "existing-1" {
		t.Errorf("results[1].ID = %q, want the existing fact id", results[1].ID)
	}
}

func TestSearch_WithoutGraphStore(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "f1", Memory: "likes pizza", Score: 0.9}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	resp, err := o.Search(context.Background(), orchestrator.SearchRequest{Text: "food", Scope: testScope()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "f1" {
		t.Fatalf("resp.Results = %+v", resp.Results)
	}
	if len(resp.Relations) != 0 {
		t.Errorf("resp.Relations = %+v, want empty without a configured graph store", resp.Relations)
	}
}

func TestSearch_MergesGraphRelationsWhenConfigured(t *testing.T) {
	vectors := &memorymock.VectorStore{
		SearchResult: []memory.Result{{ID: "f1", Memory: "likes pizza", Score: 0.9}},
	}
	graph := &memorymock.GraphStore{
		SearchResult: []memory.RelationResult{{Source: "Alice", Relationship: "likes", Destination: "pizza"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history, orchestrator.WithGraphStore(graph))

	resp, err := o.Search(context.Background(), orchestrator.SearchRequest{Text: "food", Scope: testScope()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Relations) != 1 || resp.Relations[0].Source != "Alice" {
		t.Fatalf("resp.Relations = %+v", resp.Relations)
	}
}

func TestSearch_NegativeLimitRejected(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	_, err := o.Search(context.Background(), orchestrator.SearchRequest{Text: "food", Scope: testScope(), Limit: -1})
	if err == nil {
		t.Fatal("expected error for a negative limit")
	}
}

func TestGet_ScopeMismatchReportsNotFound(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Scope: memory.Scope{UserID: "other-user"}, Payload: "secret"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	_, err := o.Get(context.Background(), testScope(), "fact-1")
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("err = %v, want a NotFound-classified error for a fact in another scope", err)
	}
}

func TestGet_ReturnsFactInScope(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Scope: testScope(), Payload: "User owns a cat"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	fact, err := o.Get(context.Background(), testScope(), "fact-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fact.Payload != "User owns a cat" {
		t.Errorf("fact = %+v", fact)
	}
}

func TestGetAll_NegativeLimitRejected(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	_, err := o.GetAll(context.Background(), testScope(), nil, -1)
	if err == nil {
		t.Fatal("expected error for a negative limit")
	}
}

func TestHistory_ReturnsEntriesInOrder(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{
		Entries: map[string][]memory.HistoryEntry{
			"fact-1": {
				{FactID: "fact-1", Seq: 1, Kind: memory.HistoryAdd, NewPayload: "v1"},
				{FactID: "fact-1", Seq: 2, Kind: memory.HistoryUpdate, PrevPayload: "v1", NewPayload: "v2"},
			},
		},
	}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	entries, err := o.History(context.Background(), "fact-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[1].Kind != memory.HistoryUpdate {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestDelete_ScopeMismatchReportsNotFound(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Scope: memory.Scope{UserID: "other-user"}, Payload: "secret"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	err := o.Delete(context.Background(), testScope(), "fact-1")
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound for a fact in another scope", err)
	}
	if vectors.CallCount("Delete") != 0 {
		t.Error("Delete should not reach the store for a scope mismatch")
	}
}

func TestDelete_SoftDeletesAndAppendsHistory(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Scope: testScope(), Payload: "User owns a cat"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	if err := o.Delete(context.Background(), testScope(), "fact-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors.CallCount("Delete") != 1 {
		t.Errorf("Delete called %d times, want 1", vectors.CallCount("Delete"))
	}
	if history.CallCount("Append") != 1 {
		t.Errorf("Append called %d times, want 1", history.CallCount("Append"))
	}
}

func TestDeleteAll_RetainsHistory(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	if err := o.DeleteAll(context.Background(), testScope()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors.CallCount("DeleteByScope") != 1 {
		t.Errorf("DeleteByScope called %d times, want 1", vectors.CallCount("DeleteByScope"))
	}
	if history.CallCount("DeleteAll") != 0 {
		t.Error("DeleteAll must retain history, not purge it")
	}
}

func TestDeleteAll_AlsoPurgesConfiguredGraphStore(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	graph := &memorymock.GraphStore{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history, orchestrator.WithGraphStore(graph))

	if err := o.DeleteAll(context.Background(), testScope()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("DeleteByPrincipal") != 1 {
		t.Errorf("DeleteByPrincipal called %d times, want 1", graph.CallCount("DeleteByPrincipal"))
	}
}

func TestReset_RejectsWrongConfirmation(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	if err := o.Reset(context.Background(), "please"); err == nil {
		t.Fatal("expected error for an incorrect confirmation string")
	}
}

func TestReset_UnsupportedBackendWarnsAndContinues(t *testing.T) {
	// memorymock.VectorStore and memorymock.HistoryLog expose a Reset()
	// method for clearing recorded calls, not the Reset(ctx) error capability
	// Reset looks for, so neither satisfies it. Reset must not fail for that.
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	if err := o.Reset(context.Background(), "RESET-ALL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddAsync_MatchesBlockingAdd(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{}
	o := newTestOrchestrator(model, embedder, vectors, history)

	future := o.AddAsync(context.Background(), orchestrator.AddRequest{
		Messages:      []types.Message{{Role: "user", Content: "raw note"}},
		Scope:         testScope(),
		SkipInference: true,
	})
	results, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Memory != "raw note" {
		t.Fatalf("results = %+v", results)
	}
}
