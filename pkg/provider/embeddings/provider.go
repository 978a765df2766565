// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider wraps a service that maps text strings to dense
// float32 vectors (e.g., OpenAI text-embedding-3, a local Ollama model).
// These vectors are used by the vector store for semantic retrieval and
// similarity-based reconciliation.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Purpose tells the provider why a text is being embedded. A provider may
// use Purpose to select a different model variant (e.g., a query-optimised
// vs. document-optimised encoder) but must never let it affect the
// dimensionality of the returned vector.
type Purpose int

const (
	// PurposeAdd embeds a candidate fact being inserted for the first time.
	PurposeAdd Purpose = iota

	// PurposeUpdate embeds a fact payload being replaced in place.
	PurposeUpdate

	// PurposeSearch embeds a query string for retrieval.
	PurposeSearch
)

// String returns the human-readable name of the purpose.
func (p Purpose) String() string {
	switch p {
	case PurposeAdd:
		return "add"
	case PurposeUpdate:
		return "update"
	case PurposeSearch:
		return "search"
	default:
		return "unknown"
	}
}

// Provider is the abstraction over any text-embedding backend.
//
// All embedding vectors returned by a single Provider instance must share
// the same dimensionality (returned by Dimensions), regardless of Purpose.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string for the
	// given purpose. Returns a float32 slice of length Dimensions() or an
	// error if the request fails or ctx is cancelled.
	Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error)

	// Dimensions returns the fixed length of every embedding vector produced
	// by this provider. The value is determined by the underlying model and
	// is constant for the lifetime of the Provider instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier used for
	// embeddings (e.g., "text-embedding-3-small").
	ModelID() string
}
