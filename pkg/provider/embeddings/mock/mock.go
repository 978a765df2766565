// Package mock provides a test double for the embeddings.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model
// and to verify that the correct texts and purposes are submitted for
// embedding.
//
// Example:
//
//	p := &mock.Provider{
//	    EmbedResult:     []float32{0.1, 0.2, 0.3},
//	    DimensionsValue: 3,
//	    ModelIDValue:    "test-embed-v1",
//	}
//	vec, _ := p.Embed(ctx, "hello world", embeddings.PurposeAdd)
package mock

import (
	"context"
	"sync"

	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx     context.Context
	Text    string
	Purpose embeddings.Purpose
}

// Provider is a mock implementation of embeddings.Provider.
//
// EmbedErr, when non-nil, is returned for every call. Otherwise
// ResultsByText, when non-nil, is consulted first: it maps an exact input
// text to the vector Embed should return for it, letting a test script
// distinct embeddings for distinct candidate strings within one call
// sequence (e.g. reconciliation neighbour search needs different vectors
// per fact). Unmatched texts fall back to EmbedResult.
type Provider struct {
	mu sync.Mutex

	// ResultsByText maps an input text to the vector to return for it.
	ResultsByText map[string][]float32

	// EmbedResult is returned by Embed when ResultsByText has no entry for
	// the given text. If nil, a zero-length slice is returned.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed.
	EmbedErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls records every call to Embed in order.
	EmbedCalls []EmbedCall

	// DimensionsCallCount is the number of times Dimensions was called.
	DimensionsCallCount int

	// ModelIDCallCount is the number of times ModelID was called.
	ModelIDCallCount int
}

// Embed records the call and returns the vector for text from ResultsByText
// if present, otherwise EmbedResult/EmbedErr.
func (p *Provider) Embed(ctx context.Context, text string, purpose embeddings.Purpose) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text, Purpose: purpose})
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if v, ok := p.ResultsByText[text]; ok {
		return v, nil
	}
	return p.EmbedResult, nil
}

// Dimensions records the call and returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DimensionsCallCount++
	return p.DimensionsValue
}

// ModelID records the call and returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ModelIDCallCount++
	return p.ModelIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.DimensionsCallCount = 0
	p.ModelIDCallCount = 0
}

var _ embeddings.Provider = (*Provider)(nil)
