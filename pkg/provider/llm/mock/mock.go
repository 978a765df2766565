// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the core sends correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. All fields are safe to set before calling any method; mutating
// them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    GenerateResponse: &llm.CompletionResponse{Content: `{"facts":["User loves pizza"]}`},
//	}
//	resp, err := p.Generate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/sixfold-ai/memcore/pkg/provider/llm"
	"github.com/sixfold-ai/memcore/pkg/types"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// CountTokensCall records a single invocation of CountTokens.
type CountTokensCall struct {
	Messages []types.Message
}

// Provider is a mock implementation of llm.Provider.
//
// Responses, when non-empty, is consumed in order: each call to Generate
// pops the next entry. Once exhausted (or when Responses is empty),
// GenerateResponse/GenerateErr are used for every remaining call. This lets
// a single test script a multi-call sequence (e.g. extraction then
// reconciliation) while simpler tests just set GenerateResponse once.
type Provider struct {
	mu sync.Mutex

	// Responses is an ordered queue of scripted results, consumed one per
	// Generate call.
	Responses []Result

	// GenerateResponse is returned by Generate once Responses is exhausted.
	GenerateResponse *llm.CompletionResponse

	// GenerateErr, if non-nil and Responses is exhausted, is returned as the
	// error from Generate.
	GenerateErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities types.ModelCapabilities

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall

	// CountTokensCalls records every invocation of CountTokens in order.
	CountTokensCalls []CountTokensCall

	// CapabilitiesCallCount is the number of times Capabilities was called.
	CapabilitiesCallCount int
}

// Result is one scripted Generate outcome.
type Result struct {
	Response *llm.CompletionResponse
	Err      error
}

// Generate records the call and returns the next scripted Result, or the
// default GenerateResponse/GenerateErr once the queue is empty.
func (p *Provider) Generate(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})

	if len(p.Responses) > 0 {
		next := p.Responses[0]
		p.Responses = p.Responses[1:]
		return next.Response, next.Err
	}
	return p.GenerateResponse, p.GenerateErr
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]types.Message, len(messages))
	copy(msgs, messages)
	p.CountTokensCalls = append(p.CountTokensCalls, CountTokensCall{Messages: msgs})
	return p.TokenCount, p.CountTokensErr
}

// Capabilities records the call and returns ModelCapabilities.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ModelCapabilities
}

// CallCount returns the number of Generate invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
	p.CountTokensCalls = nil
	p.CapabilitiesCallCount = 0
}

var _ llm.Provider = (*Provider)(nil)
