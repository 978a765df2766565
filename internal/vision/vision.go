// Package vision resolves image references inside message content into
// textual descriptions before extraction sees them.
package vision

import (
	"context"
	"log/slog"

	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/types"
)

const describePrompt = "Describe this image in one or two plain-language sentences, focusing on any fact a person might want remembered (identity, preference, event, object)."

// Resolver turns image references carried in [types.Message.ImageRefs] into
// inline text descriptions, using the LLM's describe-image mode.
type Resolver struct {
	model llm.Provider
}

// NewResolver returns a Resolver that calls model to describe each image.
func NewResolver(model llm.Provider) *Resolver {
	return &Resolver{model: model}
}

// Resolve returns a copy of messages with every ImageRefs entry appended to
// Content as a textual description. A reference that fails to resolve is
// dropped silently (with a logged warning) rather than aborting the batch —
// extraction must remain best-effort.
func (r *Resolver) Resolve(ctx context.Context, messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if len(m.ImageRefs) == 0 {
			continue
		}

		var descriptions []string
		for _, ref := range m.ImageRefs {
			desc, err := r.describe(ctx, ref)
			if err != nil {
				slog.Warn("vision: failed to resolve image reference, dropping", "ref", ref, "error", err)
				continue
			}
			descriptions = append(descriptions, desc)
		}

		content := out[i].Content
		for _, d := range descriptions {
			if content != "" {
				content += "\n"
			}
			content += "[image: " + d + "]"
		}
		out[i].Content = content
		out[i].ImageRefs = nil
	}
	return out
}

func (r *Resolver) describe(ctx context.Context, ref string) (string, error) {
	resp, err := r.model.Generate(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: describePrompt, ImageRefs: []string{ref}}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
