package orchestrator

import (
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/types"
)

// AddRequest is one ingest call: a batch of conversation messages attributed
// to Scope.
type AddRequest struct {
	Messages []types.Message
	Scope    memory.Scope

	// Metadata is attached to every fact created (ADD only) by this call.
	Metadata map[string]any

	// SkipInference, when true, bypasses extraction and reconciliation
	// entirely: each non-empty message becomes one unconditional ADD. No
	// reconciliation LLM call is made.
	SkipInference bool

	// PromptOverride, when non-empty, replaces the extraction stage's
	// built-in instruction for this call.
	PromptOverride string
}

// IngestResult is one applied decision from an Add call, in the shape
// external callers see: Event never reports NONE since a NONE decision
// contributes nothing to the response. A per-decision write failure still
// produces an entry — Error is set and ID/Memory reflect the attempted
// write — so a caller sees one result per decision, not a silently shrunk
// list; sibling decisions in the same batch still apply and report success.
type IngestResult struct {
	ID             string
	Memory         string
	Event          memory.HistoryKind
	PreviousMemory string
	Error          error
}

// SearchRequest is one retrieval call.
type SearchRequest struct {
	Text      string
	Scope     memory.Scope
	Filter    map[string]any
	Limit     int
	Threshold float64
}

// SearchResponse is the result of a Search call: vector results alongside
// any graph relations surfaced by a configured GraphStore.
type SearchResponse struct {
	Results   []memory.Result
	Relations []memory.RelationResult
}
