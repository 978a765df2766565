// Package reconcile resolves a batch of candidate facts against a caller's
// existing memory, deciding per candidate whether it should be added,
// merged into an existing fact, or cause an existing fact to be deleted.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sixfold-ai/memcore/internal/jsonreply"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/types"
)

const instruction = `You reconcile newly observed facts against a user's existing long-term memory.

You will be given an EXISTING MEMORY list, each entry with a small integer id, and a list of NEW INFORMATION candidates.
For each candidate, decide one of:
  - ADD: the information is new and does not relate to any existing entry.
  - UPDATE: the information refines or replaces an existing entry. Reference its id.
  - DELETE: the information indicates an existing entry is no longer true. Reference its id.
  - NONE: the information is redundant with an existing entry and needs no change.

Respond with a JSON object of the shape:
{"memory": [{"id": int, "text": string, "event": "ADD"|"UPDATE"|"DELETE"|"NONE", "old_memory"?: string}, ...]}
For ADD entries, id may be any integer; it is ignored. Emit no other text.`

const repairInstruction = "Your previous reply was not valid JSON matching the requested shape. Reply again with only a JSON object of the shape {\"memory\": [{\"id\": int, \"text\": string, \"event\": string}, ...]} and no other text."

var responseShape = &llm.ResponseShape{
	Name: "reconciliation_decision",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memory": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":         map[string]any{"type": "integer"},
						"text":       map[string]any{"type": "string"},
						"event":      map[string]any{"type": "string", "enum": []string{"ADD", "UPDATE", "DELETE", "NONE"}},
						"old_memory": map[string]any{"type": "string"},
					},
					"required": []string{"id", "text", "event"},
				},
			},
		},
		"required": []string{"memory"},
	},
}

// Stage reconciles candidate facts into [memory.Decision] values.
type Stage struct {
	model     llm.Provider
	embedder  embeddings.Provider
	vectors   memory.VectorStore
	neighborK int
}

// New returns a Stage. neighborK is the number of nearest neighbours
// retrieved per candidate to build the existing-context lookup table
// (spec default: 5).
func New(model llm.Provider, embedder embeddings.Provider, vectors memory.VectorStore, neighborK int) *Stage {
	if neighborK <= 0 {
		neighborK = 5
	}
	return &Stage{model: model, embedder: embedder, vectors: vectors, neighborK: neighborK}
}

type rawDecision struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Event     string `json:"event"`
	OldMemory string `json:"old_memory,omitempty"`
}

type reconcileOutput struct {
	Memory []rawDecision `json:"memory"`
}

// Reconcile embeds each candidate, retrieves its nearest existing facts
// within scope, and asks the LLM to decide ADD/UPDATE/DELETE/NONE for each
// resulting existing-context entry. It returns the resolved decisions with
// real fact ids restored — the caller (persistence) never sees the
// temporary remap used for the LLM call.
//
// A failure of the reconciliation LLM call itself (after the resilience
// layer's own retries) is returned as-is; the caller is expected to turn it
// into an IngestError and apply no decisions for the batch.
func (s *Stage) Reconcile(ctx context.Context, candidates []memory.CandidateFact, scope memory.Scope) ([]memory.Decision, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	existingText, lookup, remapped, err := s.buildExistingContext(ctx, candidates, scope)
	if err != nil {
		return nil, fmt.Errorf("reconcile: build existing context: %w", err)
	}

	prompt := renderPrompt(remapped, candidates)
	req := llm.CompletionRequest{
		Messages:      []types.Message{{Role: "user", Content: prompt}},
		SystemPrompt:  instruction,
		ResponseShape: responseShape,
	}

	resp, err := s.model.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reconcile: generate: %w", err)
	}

	out, ok := parseDecisions(resp.Content)
	if !ok {
		slog.Warn("reconcile: malformed LLM output, attempting repair")
		repairReq := req
		repairReq.Messages = append(append([]types.Message{}, req.Messages...), types.Message{Role: "assistant", Content: resp.Content})
		repairReq.SystemPrompt = repairInstruction
		repaired, repairErr := s.model.Generate(ctx, repairReq)
		if repairErr != nil {
			return nil, fmt.Errorf("reconcile: repair attempt: %w", repairErr)
		}
		out, ok = parseDecisions(repaired.Content)
		if !ok {
			return nil, fmt.Errorf("reconcile: LLM output still malformed after repair attempt")
		}
	}

	return resolveDecisions(out, lookup, existingText), nil
}

func parseDecisions(content string) ([]rawDecision, bool) {
	var out reconcileOutput
	if err := jsonreply.Unmarshal(content, &out); err != nil {
		return nil, false
	}
	return out.Memory, true
}

// resolveDecisions turns the LLM's remapped-id decisions into [memory.Decision]
// values carrying real fact ids, applying the spec's tie-break and
// downgrade rules:
//   - entries referencing an id outside the lookup table are dropped
//     (UPDATE entries are instead downgraded to ADD using the entry's own text);
//   - NONE entries are discarded;
//   - when the same existing id appears in more than one decision, the last
//     one wins.
func resolveDecisions(raw []rawDecision, lookup map[int]string, existingText map[string]string) []memory.Decision {
	var adds []memory.Decision
	byID := make(map[string]memory.Decision)
	var order []string

	for _, entry := range raw {
		text := strings.TrimSpace(entry.Text)
		switch strings.ToUpper(entry.Event) {
		case "NONE", "":
			continue

		case "ADD":
			adds = append(adds, memory.Decision{Kind: memory.DecisionAdd, Text: text})

		case "UPDATE":
			realID, ok := lookup[entry.ID]
			if !ok {
				slog.Warn("reconcile: UPDATE referenced an id outside the existing-context lookup, downgrading to ADD", "id", entry.ID)
				adds = append(adds, memory.Decision{Kind: memory.DecisionAdd, Text: text})
				continue
			}
			if _, seen := byID[realID]; !seen {
				order = append(order, realID)
			}
			byID[realID] = memory.Decision{
				Kind:         memory.DecisionUpdate,
				ExistingID:   realID,
				Text:         text,
				PreviousText: existingText[realID],
			}

		case "DELETE":
			realID, ok := lookup[entry.ID]
			if !ok {
				slog.Warn("reconcile: DELETE referenced an id outside the existing-context lookup, dropping", "id", entry.ID)
				continue
			}
			if _, seen := byID[realID]; !seen {
				order = append(order, realID)
			}
			byID[realID] = memory.Decision{
				Kind:         memory.DecisionDelete,
				ExistingID:   realID,
				PreviousText: existingText[realID],
			}

		default:
			slog.Warn("reconcile: unknown decision event, dropping", "event", entry.Event)
		}
	}

	decisions := make([]memory.Decision, 0, len(adds)+len(order))
	decisions = append(decisions, adds...)
	for _, id := range order {
		decisions = append(decisions, byID[id])
	}
	return decisions
}

func renderPrompt(remapped map[int]string, candidates []memory.CandidateFact) string {
	var b strings.Builder
	b.WriteString("EXISTING MEMORY:\n")
	if len(remapped) == 0 {
		b.WriteString("(none)\n")
	} else {
		for id, text := range remapped {
			b.WriteString(strconv.Itoa(id))
			b.WriteString(": ")
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nNEW INFORMATION:\n")
	for _, c := range candidates {
		b.WriteString("- ")
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Stage) buildExistingContext(ctx context.Context, candidates []memory.CandidateFact, scope memory.Scope) (existingText map[string]string, lookup map[int]string, remapped map[int]string, err error) {
	existingText = make(map[string]string)
	scopeFilter := scope.Filter()

	for _, c := range candidates {
		vec, embedErr := s.embedder.Embed(ctx, c.Text, embeddings.PurposeAdd)
		if embedErr != nil {
			return nil, nil, nil, fmt.Errorf("embed candidate: %w", embedErr)
		}
		results, searchErr := s.vectors.Search(ctx, vec, scopeFilter, nil, s.neighborK, 0)
		if searchErr != nil {
			return nil, nil, nil, fmt.Errorf("search neighbours: %w", searchErr)
		}
		for _, r := range results {
			existingText[r.ID] = r.Memory
		}
	}

	lookup = make(map[int]string, len(existingText))
	remapped = make(map[int]string, len(existingText))
	i := 0
	for id, text := range existingText {
		lookup[i] = id
		remapped[i] = text
		i++
	}
	return existingText, lookup, remapped, nil
}
