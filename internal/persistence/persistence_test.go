package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sixfold-ai/memcore/internal/persistence"
	"github.com/sixfold-ai/memcore/pkg/memory"
	memorymock "github.com/sixfold-ai/memcore/pkg/memory/mock"
	embeddingsmock "github.com/sixfold-ai/memcore/pkg/provider/embeddings/mock"
)

func testScope() memory.Scope {
	return memory.Scope{UserID: "u1"}
}

func TestApply_AddInsertsAndAppendsHistory(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := persistence.New(embedder, vectors, history)

	results := stage.Apply(context.Background(), []memory.Decision{{Kind: memory.DecisionAdd, Text: "User loves pizza"}}, testScope())
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if r.FactID == "" {
		t.Fatal("FactID was not assigned")
	}
	if vectors.CallCount("Insert") != 1 {
		t.Errorf("Insert called %d times, want 1", vectors.CallCount("Insert"))
	}
	if history.CallCount("Append") != 1 {
		t.Errorf("Append called %d times, want 1", history.CallCount("Append"))
	}
}

func TestApply_UpdatePreservesExistingIDAndAppendsHistory(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Payload: "User lives in Paris"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := persistence.New(embedder, vectors, history)

	decision := memory.Decision{Kind: memory.DecisionUpdate, ExistingID: "fact-1", Text: "User lives in Berlin", PreviousText: "User lives in Paris"}
	results := stage.Apply(context.Background(), []memory.Decision{decision}, testScope())

	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if r.FactID != "fact-1" {
		t.Errorf("FactID = %q, want fact-1", r.FactID)
	}
	if vectors.CallCount("Update") != 1 {
		t.Errorf("Update called %d times, want 1", vectors.CallCount("Update"))
	}
}

func TestApply_DeleteSoftDeletesAndAppendsHistory(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Payload: "User owns a cat"}},
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := persistence.New(embedder, vectors, history)

	decision := memory.Decision{Kind: memory.DecisionDelete, ExistingID: "fact-1", PreviousText: "User owns a cat"}
	results := stage.Apply(context.Background(), []memory.Decision{decision}, testScope())

	r := results[0]
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if vectors.CallCount("Delete") != 1 {
		t.Errorf("Delete called %d times, want 1", vectors.CallCount("Delete"))
	}
}

func TestApply_OneFailureDoesNotAbortSiblings(t *testing.T) {
	vectors := &memorymock.VectorStore{
		UpdateErr: memory.ErrNotFound,
	}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := persistence.New(embedder, vectors, history)

	decisions := []memory.Decision{
		{Kind: memory.DecisionUpdate, ExistingID: "missing", Text: "won't apply"},
		{Kind: memory.DecisionAdd, Text: "will still apply"},
	}
	results := stage.Apply(context.Background(), decisions, testScope())

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected the UPDATE against a missing fact to fail")
	}
	if results[1].Err != nil {
		t.Errorf("second decision should have applied despite the first failing: %v", results[1].Err)
	}
	if results[1].FactID == "" {
		t.Error("second decision's FactID was not assigned")
	}
}

func TestApply_EmbedFailurePropagatesAsResultError(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedErr: errors.New("embedding provider down")}
	stage := persistence.New(embedder, vectors, history)

	results := stage.Apply(context.Background(), []memory.Decision{{Kind: memory.DecisionAdd, Text: "fact"}}, testScope())
	if results[0].Err == nil {
		t.Fatal("expected an embed error to surface on the result")
	}
	if vectors.CallCount("Insert") != 0 {
		t.Error("Insert should not be called when embedding fails")
	}
}

func TestApply_AddThenUpdateAssignsSeqZeroAndOne(t *testing.T) {
	vectors := &memorymock.VectorStore{}
	history := &memorymock.HistoryLog{}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := persistence.New(embedder, vectors, history)

	addResults := stage.Apply(context.Background(), []memory.Decision{{Kind: memory.DecisionAdd, Text: "v1"}}, testScope())
	factID := addResults[0].FactID

	stage.Apply(context.Background(), []memory.Decision{
		{Kind: memory.DecisionUpdate, ExistingID: factID, Text: "v2", PreviousText: "v1"},
	}, testScope())

	entries, err := history.List(context.Background(), factID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Seq != 0 {
		t.Errorf("ADD entry Seq = %d, want 0", entries[0].Seq)
	}
	if entries[1].Seq != 1 {
		t.Errorf("UPDATE entry Seq = %d, want 1", entries[1].Seq)
	}
}

func TestApply_HistorySeqIncrementsPerFact(t *testing.T) {
	vectors := &memorymock.VectorStore{
		Facts: map[string]memory.Fact{"fact-1": {ID: "fact-1", Payload: "v1"}},
	}
	history := &memorymock.HistoryLog{
		Entries: map[string][]memory.HistoryEntry{
			"fact-1": {{FactID: "fact-1", Seq: 1, Kind: memory.HistoryAdd, NewPayload: "v1"}},
		},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	stage := persistence.New(embedder, vectors, history)

	decision := memory.Decision{Kind: memory.DecisionUpdate, ExistingID: "fact-1", Text: "v2", PreviousText: "v1"}
	stage.Apply(context.Background(), []memory.Decision{decision}, testScope())

	entries, err := history.List(context.Background(), "fact-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[1].Seq != 2 {
		t.Errorf("second entry Seq = %d, want 2", entries[1].Seq)
	}
}
