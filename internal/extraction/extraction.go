// Package extraction turns a batch of conversation messages into candidate
// facts, either via an LLM call or, in infer=false mode, by passing each
// message through verbatim.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sixfold-ai/memcore/internal/jsonreply"
	"github.com/sixfold-ai/memcore/internal/vision"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/types"
)

const defaultInstruction = `You extract durable facts worth remembering long-term from a conversation.
Read the messages below and list each distinct fact as a short, self-contained sentence.
Skip small talk, questions, and anything not worth remembering beyond this conversation.
Respond with a JSON object of the shape {"facts": ["fact one", "fact two"]} and nothing else.
If there are no facts worth keeping, respond with {"facts": []}.`

const repairInstruction = "Your previous reply was not valid JSON matching the requested shape. Reply again with only a JSON object of the shape {\"facts\": [string, ...]} and no other text."

var responseShape = &llm.ResponseShape{
	Name: "fact_extraction",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"facts": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"facts"},
	},
}

// Stage extracts candidate facts from messages.
type Stage struct {
	model    llm.Provider
	resolver *vision.Resolver
}

// New returns a Stage backed by model. Image references in message content
// are resolved to text via model's describe-image mode before extraction.
func New(model llm.Provider) *Stage {
	return &Stage{model: model, resolver: vision.NewResolver(model)}
}

type extractionOutput struct {
	Facts []string `json:"facts"`
}

// Extract resolves vision references, invokes the LLM to list candidate
// facts, and returns them trimmed and deduplicated by exact string match.
//
// systemOverride, when non-empty, replaces the built-in extraction
// instruction (set by the caller via a system-role message, per the core's
// extraction-override opt-in).
//
// Extraction is best-effort: a malformed LLM reply triggers one repair
// attempt; a second failure yields an empty candidate list rather than an
// error, so it never aborts an ingest call.
func (s *Stage) Extract(ctx context.Context, messages []types.Message, systemOverride string) ([]memory.CandidateFact, error) {
	resolved := s.resolver.Resolve(ctx, messages)

	instruction := defaultInstruction
	if systemOverride != "" {
		instruction = systemOverride
	}

	resp, err := s.model.Generate(ctx, llm.CompletionRequest{
		Messages:      resolved,
		SystemPrompt:  instruction,
		ResponseShape: responseShape,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: generate: %w", err)
	}

	facts, ok := parseFacts(resp.Content)
	if !ok {
		slog.Warn("extraction: malformed LLM output, attempting repair")
		repaired, repairErr := s.model.Generate(ctx, llm.CompletionRequest{
			Messages:      append(append([]types.Message{}, resolved...), types.Message{Role: "assistant", Content: resp.Content}),
			SystemPrompt:  repairInstruction,
			ResponseShape: responseShape,
		})
		if repairErr != nil {
			slog.Warn("extraction: repair attempt failed, returning empty candidate set", "error", repairErr)
			return nil, nil
		}
		facts, ok = parseFacts(repaired.Content)
		if !ok {
			slog.Warn("extraction: repair attempt still malformed, returning empty candidate set")
			return nil, nil
		}
	}

	return dedupeCandidates(facts), nil
}

// ExtractPassthrough implements infer=false mode: each message's content
// becomes a candidate fact verbatim, with no LLM call.
func ExtractPassthrough(messages []types.Message) []memory.CandidateFact {
	out := make([]memory.CandidateFact, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		out = append(out, memory.CandidateFact{Text: text})
	}
	return out
}

func parseFacts(content string) ([]string, bool) {
	var out extractionOutput
	if err := jsonreply.Unmarshal(content, &out); err != nil {
		return nil, false
	}
	return out.Facts, true
}

func dedupeCandidates(facts []string) []memory.CandidateFact {
	seen := make(map[string]bool, len(facts))
	var out []memory.CandidateFact
	for _, f := range facts {
		text := strings.TrimSpace(f)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, memory.CandidateFact{Text: text})
	}
	return out
}
