package vision_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sixfold-ai/memcore/internal/vision"
	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/provider/llm/mock"
	"github.com/sixfold-ai/memcore/pkg/types"
)

func TestResolve_AppendsImageDescription(t *testing.T) {
	m := &mock.Provider{
		Responses: []mock.Result{
			{Response: &llm.CompletionResponse{Content: "a golden retriever sitting by a fireplace"}},
		},
	}
	r := vision.NewResolver(m)

	messages := []types.Message{
		{Role: "user", Content: "that's my dog", ImageRefs: []string{"img://dog.png"}},
	}
	out := r.Resolve(context.Background(), messages)

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].ImageRefs != nil {
		t.Errorf("ImageRefs = %v, want nil after resolution", out[0].ImageRefs)
	}
	want := "that's my dog\n[image: a golden retriever sitting by a fireplace]"
	if out[0].Content != want {
		t.Errorf("Content = %q, want %q", out[0].Content, want)
	}
}

func TestResolve_DropsFailedReferenceWithoutAborting(t *testing.T) {
	m := &mock.Provider{
		Responses: []mock.Result{
			{Err: errors.New("model unavailable")},
		},
	}
	r := vision.NewResolver(m)

	messages := []types.Message{
		{Role: "user", Content: "look at this", ImageRefs: []string{"img://broken.png"}},
	}
	out := r.Resolve(context.Background(), messages)

	if out[0].Content != "look at this" {
		t.Errorf("Content = %q, want unchanged %q", out[0].Content, "look at this")
	}
}

func TestResolve_PassesThroughMessagesWithoutImages(t *testing.T) {
	m := &mock.Provider{}
	r := vision.NewResolver(m)

	messages := []types.Message{{Role: "user", Content: "plain text"}}
	out := r.Resolve(context.Background(), messages)

	if out[0].Content != "plain text" {
		t.Errorf("Content = %q, want unchanged", out[0].Content)
	}
	if m.CallCount() != 0 {
		t.Errorf("model was called for a message with no image refs")
	}
}
