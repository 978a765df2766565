// Package graphextract extracts entities and relations from a conversation
// batch and writes them into the optional knowledge-graph layer, soft-merging
// newly seen entities against existing ones by embedding similarity.
package graphextract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sixfold-ai/memcore/internal/jsonreply"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/types"
)

const defaultMergeThreshold = 0.85
const defaultMergeTopK = 5

const entityInstruction = `Extract named entities worth remembering from the conversation below.
Respond with a JSON object of the shape {"entities": [{"label": string, "type": string}, ...]}.
Use short, canonical labels (e.g. "Acme Corp", not "the company my friend works at"). Emit no other text.`

const relationInstruction = `Given the entities below and the conversation, extract relationships between them.
Respond with a JSON object of the shape {"relations": [{"src_label": string, "predicate": string, "dst_label": string, "weight": number}, ...]}.
Only use src_label/dst_label values from the given entity list. weight is a confidence in [0,1]. Emit no other text.`

const entityRepairInstruction = `Your previous reply was not valid JSON matching the requested shape. Reply again with only a JSON object of the shape {"entities": [{"label": string, "type": string}, ...]} and no other text.`

const relationRepairInstruction = `Your previous reply was not valid JSON matching the requested shape. Reply again with only a JSON object of the shape {"relations": [{"src_label": string, "predicate": string, "dst_label": string, "weight": number}, ...]} and no other text.`

var entityResponseShape = &llm.ResponseShape{
	Name: "entity_extraction",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label": map[string]any{"type": "string"},
						"type":  map[string]any{"type": "string"},
					},
					"required": []string{"label", "type"},
				},
			},
		},
		"required": []string{"entities"},
	},
}

var relationResponseShape = &llm.ResponseShape{
	Name: "relation_extraction",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"relations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"src_label": map[string]any{"type": "string"},
						"predicate": map[string]any{"type": "string"},
						"dst_label": map[string]any{"type": "string"},
						"weight":    map[string]any{"type": "number"},
					},
					"required": []string{"src_label", "predicate", "dst_label"},
				},
			},
		},
		"required": []string{"relations"},
	},
}

// Option configures a Stage.
type Option func(*Stage)

// WithEntityMergeThreshold sets the minimum cosine similarity at which a
// newly extracted entity is merged into an existing one rather than
// inserted as new. Default 0.85.
func WithEntityMergeThreshold(threshold float64) Option {
	return func(s *Stage) { s.mergeThreshold = threshold }
}

// WithEntityMergeTopK sets how many existing entities are considered as
// merge candidates per newly extracted entity. Default 5.
func WithEntityMergeTopK(topK int) Option {
	return func(s *Stage) { s.mergeTopK = topK }
}

// WithAllowedPredicates restricts relation predicates to allowed; any
// extracted relation whose predicate is not in the list is dropped with a
// logged warning. An empty or nil list (the default) leaves predicates
// unconstrained.
func WithAllowedPredicates(allowed []string) Option {
	return func(s *Stage) {
		s.allowedPredicates = make(map[string]bool, len(allowed))
		for _, p := range allowed {
			s.allowedPredicates[strings.ToLower(p)] = true
		}
	}
}

// Stage extracts entities and relations and writes them to a GraphStore.
type Stage struct {
	model    llm.Provider
	embedder embeddings.Provider
	graph    memory.GraphStore

	mergeThreshold    float64
	mergeTopK         int
	allowedPredicates map[string]bool
}

// New returns a Stage. model is used for both entity and relation
// extraction calls; embedder embeds entity labels for soft-merge search.
func New(model llm.Provider, embedder embeddings.Provider, graph memory.GraphStore, opts ...Option) *Stage {
	s := &Stage{
		model:          model,
		embedder:       embedder,
		graph:          graph,
		mergeThreshold: defaultMergeThreshold,
		mergeTopK:      defaultMergeTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type entityCandidate struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

type entityExtraction struct {
	Entities []entityCandidate `json:"entities"`
}

type relationCandidate struct {
	SourceLabel string  `json:"src_label"`
	Predicate   string  `json:"predicate"`
	DestLabel   string  `json:"dst_label"`
	Weight      float64 `json:"weight"`
}

type relationExtraction struct {
	Relations []relationCandidate `json:"relations"`
}

// Extract runs entity extraction, soft-merges against the existing graph,
// then runs relation extraction over the resolved entities and writes
// relations. Extraction failures are returned as-is; per spec, a graph
// failure must never abort vector-layer ingest, so the caller is expected
// to log and discard this error rather than propagate it into IngestError.
func (s *Stage) Extract(ctx context.Context, text string, scope memory.Scope) error {
	entities, err := s.extractEntities(ctx, text)
	if err != nil {
		return fmt.Errorf("graphextract: extract entities: %w", err)
	}
	if len(entities) == 0 {
		return nil
	}

	resolved := make(map[string]string, len(entities))
	for _, e := range entities {
		id, err := s.resolveEntity(ctx, scope, e)
		if err != nil {
			return fmt.Errorf("graphextract: resolve entity %q: %w", e.Label, err)
		}
		resolved[e.Label] = id
	}

	relations, err := s.extractRelations(ctx, text, entities)
	if err != nil {
		return fmt.Errorf("graphextract: extract relations: %w", err)
	}

	for _, r := range relations {
		if s.allowedPredicates != nil && len(s.allowedPredicates) > 0 && !s.allowedPredicates[strings.ToLower(r.Predicate)] {
			slog.Warn("graphextract: relation predicate not in allow-list, dropping", "predicate", r.Predicate)
			continue
		}
		srcID, ok := resolved[r.SourceLabel]
		if !ok {
			slog.Warn("graphextract: relation references unresolved source entity, dropping", "label", r.SourceLabel)
			continue
		}
		dstID, ok := resolved[r.DestLabel]
		if !ok {
			slog.Warn("graphextract: relation references unresolved destination entity, dropping", "label", r.DestLabel)
			continue
		}
		if err := s.graph.UpsertRelation(ctx, scope, srcID, r.Predicate, dstID, r.Weight); err != nil {
			return fmt.Errorf("graphextract: upsert relation: %w", err)
		}
	}
	return nil
}

// resolveEntity soft-merges c against existing entities in scope via
// embedding similarity. A match scoring at or above the configured
// threshold reuses the existing entity; otherwise a new one is upserted and
// its embedding recorded for future merges.
func (s *Stage) resolveEntity(ctx context.Context, scope memory.Scope, c entityCandidate) (string, error) {
	vec, err := s.embedder.Embed(ctx, c.Label, embeddings.PurposeAdd)
	if err != nil {
		return "", fmt.Errorf("embed entity label: %w", err)
	}

	candidates, err := s.graph.SearchEntities(ctx, scope, vec, s.mergeTopK)
	if err != nil {
		return "", fmt.Errorf("search existing entities: %w", err)
	}
	for _, existing := range candidates {
		if existing.Entity.Type == c.Type && existing.Score >= s.mergeThreshold {
			return existing.Entity.ID, nil
		}
	}

	id, err := s.graph.UpsertEntity(ctx, scope, c.Label, c.Type)
	if err != nil {
		return "", fmt.Errorf("upsert entity: %w", err)
	}
	if err := s.graph.EntityEmbedding(ctx, id, vec); err != nil {
		return "", fmt.Errorf("store entity embedding: %w", err)
	}
	return id, nil
}

// extractEntities is best-effort: a malformed LLM reply triggers one repair
// attempt, consistent with internal/extraction's contract; a second failure
// yields an empty entity list rather than an error, so a flaky model never
// aborts ingest over the graph layer.
func (s *Stage) extractEntities(ctx context.Context, text string) ([]entityCandidate, error) {
	userMsg := types.Message{Role: "user", Content: text}
	resp, err := s.model.Generate(ctx, llm.CompletionRequest{
		Messages:      []types.Message{userMsg},
		SystemPrompt:  entityInstruction,
		ResponseShape: entityResponseShape,
	})
	if err != nil {
		return nil, err
	}

	var out entityExtraction
	if err := jsonreply.Unmarshal(resp.Content, &out); err == nil {
		return out.Entities, nil
	}

	slog.Warn("graphextract: malformed entity extraction output, attempting repair")
	repaired, err := s.model.Generate(ctx, llm.CompletionRequest{
		Messages:      []types.Message{userMsg, {Role: "assistant", Content: resp.Content}},
		SystemPrompt:  entityRepairInstruction,
		ResponseShape: entityResponseShape,
	})
	if err != nil {
		slog.Warn("graphextract: entity repair attempt failed, skipping graph extraction", "error", err)
		return nil, nil
	}
	if err := jsonreply.Unmarshal(repaired.Content, &out); err != nil {
		slog.Warn("graphextract: entity repair attempt still malformed, skipping graph extraction")
		return nil, nil
	}
	return out.Entities, nil
}

// extractRelations shares extractEntities' one-shot repair contract; a
// second failure yields no relations rather than an error, leaving already
// resolved entities written with no edges between them.
func (s *Stage) extractRelations(ctx context.Context, text string, entities []entityCandidate) ([]relationCandidate, error) {
	var b strings.Builder
	b.WriteString("ENTITIES:\n")
	for _, e := range entities {
		b.WriteString("- ")
		b.WriteString(e.Label)
		b.WriteString(" (")
		b.WriteString(e.Type)
		b.WriteString(")\n")
	}
	b.WriteString("\nCONVERSATION:\n")
	b.WriteString(text)
	userMsg := types.Message{Role: "user", Content: b.String()}

	resp, err := s.model.Generate(ctx, llm.CompletionRequest{
		Messages:      []types.Message{userMsg},
		SystemPrompt:  relationInstruction,
		ResponseShape: relationResponseShape,
	})
	if err != nil {
		return nil, err
	}

	var out relationExtraction
	if err := jsonreply.Unmarshal(resp.Content, &out); err == nil {
		return out.Relations, nil
	}

	slog.Warn("graphextract: malformed relation extraction output, attempting repair")
	repaired, err := s.model.Generate(ctx, llm.CompletionRequest{
		Messages:      []types.Message{userMsg, {Role: "assistant", Content: resp.Content}},
		SystemPrompt:  relationRepairInstruction,
		ResponseShape: relationResponseShape,
	})
	if err != nil {
		slog.Warn("graphextract: relation repair attempt failed, skipping relations", "error", err)
		return nil, nil
	}
	if err := jsonreply.Unmarshal(repaired.Content, &out); err != nil {
		slog.Warn("graphextract: relation repair attempt still malformed, skipping relations")
		return nil, nil
	}
	return out.Relations, nil
}
