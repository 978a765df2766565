// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Anthropic,
// or a local Ollama instance) and exposes a uniform interface for the memory
// core to perform completions and inspect model capabilities without
// coupling to any specific SDK.
//
// Providers support no streaming and no tool/function calling: the core
// never offers tools to the model, and every call blocks until the full
// reply is available. Implementors must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/sixfold-ai/memcore/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// ResponseShape describes the JSON object shape the model must emit.
// When non-nil, the provider instructs the model (via whatever native
// mechanism it has — JSON mode, response_format, a schema-constrained
// decode) to return a JSON object matching this description; the raw text
// reply is still returned verbatim in CompletionResponse.Content for the
// caller to decode and validate itself.
type ResponseShape struct {
	// Name is a short label for the shape, used in prompts/logging (e.g.
	// "fact_extraction", "reconciliation_decision").
	Name string

	// Schema is a JSON Schema object describing the expected shape. May be
	// nil, in which case the provider falls back to a generic "emit a JSON
	// object, no prose" instruction.
	Schema map[string]any
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []types.Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Providers that do not natively support a
	// dedicated system prompt field should prepend it as a "system"-role
	// message.
	SystemPrompt string

	// ResponseShape, when set, requests a structured JSON reply. See
	// [ResponseShape].
	ResponseShape *ResponseShape

	// Temperature controls output randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is returned by Generate.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Each method must propagate context cancellation promptly.
type Provider interface {
	// Generate sends req to the model and waits for the full response. It
	// never streams and the model is never offered tools.
	Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens that the given message list
	// would consume in the model's context window. Implementations may call
	// the provider's tokenisation API or perform a local approximation; the
	// result need not be exact but should not undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports. The result is assumed constant for the
	// lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
