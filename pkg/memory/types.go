// Package memory defines the storage-facing data model and provider
// contracts for the memory orchestration core.
//
// The architecture separates three concerns behind small interfaces so that
// external packages can supply alternative backends (Postgres/pgvector,
// Redis, an in-process map, …) without depending on core internals:
//
//   - VectorStore: dense-vector persistence and similarity search over
//     [Fact] payloads, scoped by [Scope].
//   - GraphStore: an optional principal-partitioned graph of [Entity] nodes
//     and [Relation] edges, supporting GraphRAG-style retrieval alongside
//     vector search.
//   - HistoryLog: an append-only audit trail of every mutation applied to a
//     Fact.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Scope identifies the owner of a Fact along up to three independent axes.
// At least one of UserID, AgentID, or SessionID must be non-empty; values
// are compared verbatim with no case-folding or trimming beyond what the
// caller supplies, and carry no length limit.
type Scope struct {
	UserID    string
	AgentID   string
	SessionID string
}

// IsZero reports whether all three scope components are empty.
func (s Scope) IsZero() bool {
	return s.UserID == "" && s.AgentID == "" && s.SessionID == ""
}

// Filter returns the non-empty components of s as an equality filter map,
// suitable for merging into a VectorStore or HistoryLog call. Components
// left empty are omitted entirely rather than matched against "".
func (s Scope) Filter() map[string]any {
	f := make(map[string]any, 3)
	if s.UserID != "" {
		f["user_id"] = s.UserID
	}
	if s.AgentID != "" {
		f["agent_id"] = s.AgentID
	}
	if s.SessionID != "" {
		f["session_id"] = s.SessionID
	}
	return f
}

// Fact is a single persisted unit of long-term memory: a natural-language
// payload attributed to a Scope, carrying whatever embedding and metadata
// the core and its providers need to retrieve and reconcile it later.
type Fact struct {
	// ID is the stable, provider-opaque identifier minted when the fact is
	// first added. It never changes across UPDATE operations.
	ID string

	// Payload is the current natural-language text of the fact.
	Payload string

	// Scope is the ownership triple this fact is attributed to.
	Scope Scope

	// Metadata holds caller-supplied key/value pairs carried alongside the
	// fact and exposed unmodified in retrieval results.
	Metadata map[string]any

	// Embedding is the dense vector representation of Payload, computed with
	// embeddings.PurposeAdd or embeddings.PurposeUpdate at write time.
	Embedding []float32

	// CreatedAt is when the fact was first added. It is preserved across
	// UPDATE operations.
	CreatedAt time.Time

	// UpdatedAt is refreshed on every ADD or UPDATE.
	UpdatedAt time.Time

	// Deleted marks a fact as soft-deleted: it no longer appears in lookups
	// or search results, while its row, stored vector and history are kept.
	Deleted bool
}

// CandidateFact is a transient, not-yet-persisted piece of text produced by
// the extraction stage. It carries no ID — reconciliation decides whether it
// becomes a new Fact, supersedes an existing one, or is discarded.
type CandidateFact struct {
	Text string
}

// DecisionKind enumerates the possible outcomes of reconciling one
// CandidateFact against the existing facts in scope.
type DecisionKind string

const (
	// DecisionAdd mints a new Fact from CandidateFact.Text.
	DecisionAdd DecisionKind = "ADD"

	// DecisionUpdate replaces the payload of an existing Fact.
	DecisionUpdate DecisionKind = "UPDATE"

	// DecisionDelete soft-deletes an existing Fact.
	DecisionDelete DecisionKind = "DELETE"

	// DecisionNone discards the candidate: no fact is added, changed, or removed.
	DecisionNone DecisionKind = "NONE"
)

// Decision is the reconciliation stage's resolution for one candidate
// fact (or for an existing fact referenced by id in the LLM's response).
type Decision struct {
	Kind DecisionKind

	// ExistingID is the fact being updated or deleted. Empty for ADD and NONE.
	ExistingID string

	// Text is the new payload for ADD and UPDATE decisions.
	Text string

	// PreviousText is the payload an UPDATE or DELETE decision is replacing,
	// captured for the history entry and for the IngestResult's
	// previous-memory field.
	PreviousText string
}

// HistoryKind mirrors DecisionKind for the subset of decisions that
// persistence actually applies and records.
type HistoryKind string

const (
	HistoryAdd    HistoryKind = "ADD"
	HistoryUpdate HistoryKind = "UPDATE"
	HistoryDelete HistoryKind = "DELETE"
)

// HistoryEntry is one append-only record of a mutation applied to a Fact.
// Entries for a given FactID carry a strictly increasing Seq, giving callers
// a total order over that fact's lifecycle independent of wall-clock
// precision.
type HistoryEntry struct {
	FactID      string
	Seq         int
	PrevPayload string
	NewPayload  string
	Kind        HistoryKind
	ActorScope  Scope
	Timestamp   time.Time
}

// Entity is a named node in the optional knowledge graph, partitioned by the
// principal (Scope) that asserted it. Within one principal's subgraph, an
// entity is uniquely identified by the pair (Label, Type).
type Entity struct {
	ID    string
	Label string
	Type  string
	Scope Scope
}

// EntityMatch is one candidate returned by GraphStore.SearchEntities: an
// existing entity plus its similarity score against the query embedding,
// used by the graph extraction stage's soft-merge decision.
type EntityMatch struct {
	Entity Entity
	Score  float64
}

// Relation is a directed, weighted edge between two entities asserted by the
// same principal. Predicate is free text unless the caller has configured an
// allow-list (see graphextract.WithAllowedPredicates).
type Relation struct {
	ID        string
	SourceID  string
	Predicate string
	TargetID  string
	Weight    float64
	Scope     Scope
}

// Query is a retrieval request against the memory store.
type Query struct {
	// Text is the natural-language query string.
	Text string

	// Scope restricts results to facts owned by this scope.
	Scope Scope

	// Filter is an optional caller-supplied metadata-equality filter, merged
	// (AND) with Scope's own filter.
	Filter map[string]any

	// Limit caps the number of results. Taken literally: 0 yields an empty
	// result set, a negative value is a caller error. Callers wanting the
	// conventional default of 100 must supply it themselves before
	// constructing Query — the core applies no default on their behalf.
	Limit int

	// Threshold, when non-zero, discards results below this similarity
	// score.
	Threshold float64
}

// Result is one retrieved Fact, scored against a Query.
type Result struct {
	ID        string
	Memory    string
	Score     float64
	Metadata  map[string]any
	Hash      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Scope     Scope
}

// HashPayload returns a hex-encoded SHA-256 digest of a Fact's payload, for
// Result.Hash. It lets a caller notice that two facts carry identical text
// without comparing the (potentially large) payload strings directly.
func HashPayload(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// RelationResult is one retrieved graph edge, surfaced alongside vector
// Results when a GraphStore is configured.
type RelationResult struct {
	Source       string
	Relationship string
	Destination  string
	Score        float64
}
