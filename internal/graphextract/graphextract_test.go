package graphextract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sixfold-ai/memcore/internal/graphextract"
	"github.com/sixfold-ai/memcore/pkg/memory"
	memorymock "github.com/sixfold-ai/memcore/pkg/memory/mock"
	embeddingsmock "github.com/sixfold-ai/memcore/pkg/provider/embeddings/mock"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	llmmock "github.com/sixfold-ai/memcore/pkg/provider/llm/mock"
)

func testScope() memory.Scope {
	return memory.Scope{UserID: "u1"}
}

func TestExtract_NewEntitiesUpsertedAndRelationWritten(t *testing.T) {
	graph := &memorymock.GraphStore{UpsertEntityID: "ent-1"}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"},{"label":"Acme Corp","type":"organization"}]}`}},
			{Response: &llm.CompletionResponse{Content: `{"relations":[{"src_label":"Alice","predicate":"works_at","dst_label":"Acme Corp","weight":0.9}]}`}},
		},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "Alice works at Acme Corp.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertEntity") != 2 {
		t.Errorf("UpsertEntity called %d times, want 2", graph.CallCount("UpsertEntity"))
	}
	if graph.CallCount("UpsertRelation") != 1 {
		t.Errorf("UpsertRelation called %d times, want 1", graph.CallCount("UpsertRelation"))
	}
}

func TestExtract_SoftMergeReusesExistingEntityAboveThreshold(t *testing.T) {
	graph := &memorymock.GraphStore{
		UpsertEntityID: "new-entity",
		SearchEntitiesResult: []memory.EntityMatch{
			{Entity: memory.Entity{ID: "existing-alice", Label: "Alice", Type: "person"}, Score: 0.95},
		},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"}]}`}},
			{Response: &llm.CompletionResponse{Content: `{"relations":[]}`}},
		},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "Alice said hi.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertEntity") != 0 {
		t.Errorf("UpsertEntity should not be called when an existing entity merges above threshold, called %d times", graph.CallCount("UpsertEntity"))
	}
}

func TestExtract_BelowThresholdMergeInsertsNewEntity(t *testing.T) {
	graph := &memorymock.GraphStore{
		UpsertEntityID: "new-entity",
		SearchEntitiesResult: []memory.EntityMatch{
			{Entity: memory.Entity{ID: "existing-alice", Label: "Alicia", Type: "person"}, Score: 0.4},
		},
	}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"}]}`}},
			{Response: &llm.CompletionResponse{Content: `{"relations":[]}`}},
		},
	}
	stage := graphextract.New(model, embedder, graph, graphextract.WithEntityMergeThreshold(0.85))

	err := stage.Extract(context.Background(), "Alice said hi.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertEntity") != 1 {
		t.Errorf("UpsertEntity called %d times, want 1 (below-threshold match must not merge)", graph.CallCount("UpsertEntity"))
	}
}

func TestExtract_NoEntitiesSkipsRelationCall(t *testing.T) {
	graph := &memorymock.GraphStore{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{
		GenerateResponse: &llm.CompletionResponse{Content: `{"entities":[]}`},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "just chit-chat", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1 (relation extraction skipped with no entities)", model.CallCount())
	}
}

func TestExtract_RelationWithUnresolvedLabelDropped(t *testing.T) {
	graph := &memorymock.GraphStore{UpsertEntityID: "ent-1"}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"}]}`}},
			{Response: &llm.CompletionResponse{Content: `{"relations":[{"src_label":"Alice","predicate":"works_at","dst_label":"Unknown Corp","weight":0.5}]}`}},
		},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "Alice works somewhere.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertRelation") != 0 {
		t.Errorf("UpsertRelation should not be called for an unresolved destination label")
	}
}

func TestExtract_AllowedPredicatesFiltersOthers(t *testing.T) {
	graph := &memorymock.GraphStore{UpsertEntityID: "ent-1"}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"},{"label":"Acme Corp","type":"organization"}]}`}},
			{Response: &llm.CompletionResponse{Content: `{"relations":[{"src_label":"Alice","predicate":"dislikes","dst_label":"Acme Corp","weight":0.5}]}`}},
		},
	}
	stage := graphextract.New(model, embedder, graph, graphextract.WithAllowedPredicates([]string{"works_at"}))

	err := stage.Extract(context.Background(), "Alice dislikes Acme Corp.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertRelation") != 0 {
		t.Errorf("UpsertRelation should not be called for a predicate outside the allow-list")
	}
}

func TestExtract_EntityRepairSucceeds(t *testing.T) {
	graph := &memorymock.GraphStore{UpsertEntityID: "ent-1"}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: "not json"}},
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"}]}`}},
			{Response: &llm.CompletionResponse{Content: `{"relations":[]}`}},
		},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "Alice said hi.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertEntity") != 1 {
		t.Errorf("UpsertEntity called %d times, want 1 after a successful entity repair", graph.CallCount("UpsertEntity"))
	}
	if model.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3 (malformed entities + repair + relations)", model.CallCount())
	}
}

func TestExtract_EntityRepairFailsSkipsGraphWithNoError(t *testing.T) {
	graph := &memorymock.GraphStore{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: "not json"}},
			{Response: &llm.CompletionResponse{Content: "still not json"}},
		},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "Alice said hi.", testScope())
	if err != nil {
		t.Fatalf("graph extraction must be best-effort, not error: %v", err)
	}
	if model.CallCount() != 2 {
		t.Errorf("CallCount = %d, want 2 (original + one repair attempt)", model.CallCount())
	}
	if graph.CallCount("UpsertEntity") != 0 {
		t.Errorf("UpsertEntity should not be called when entity extraction never parses")
	}
}

func TestExtract_RelationRepairFailsLeavesEntitiesWithNoRelations(t *testing.T) {
	graph := &memorymock.GraphStore{UpsertEntityID: "ent-1"}
	embedder := &embeddingsmock.Provider{EmbedResult: []float32{0.1, 0.2}}
	model := &llmmock.Provider{
		Responses: []llmmock.Result{
			{Response: &llm.CompletionResponse{Content: `{"entities":[{"label":"Alice","type":"person"}]}`}},
			{Response: &llm.CompletionResponse{Content: "not json"}},
			{Response: &llm.CompletionResponse{Content: "still not json"}},
		},
	}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "Alice said hi.", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.CallCount("UpsertEntity") != 1 {
		t.Errorf("UpsertEntity called %d times, want 1 (entity still written when relations fail)", graph.CallCount("UpsertEntity"))
	}
	if graph.CallCount("UpsertRelation") != 0 {
		t.Errorf("UpsertRelation should not be called when relation extraction never parses")
	}
}

func TestExtract_EntityExtractionErrorPropagates(t *testing.T) {
	graph := &memorymock.GraphStore{}
	embedder := &embeddingsmock.Provider{}
	model := &llmmock.Provider{GenerateErr: errors.New("provider down")}
	stage := graphextract.New(model, embedder, graph)

	err := stage.Extract(context.Background(), "text", testScope())
	if err == nil {
		t.Fatal("expected error when entity extraction itself fails")
	}
}
