// Package lifecycle models the per-fact state machine: NEW (transient) →
// LIVE → (LIVE | SUPERSEDED | DELETED). It holds no storage of its own —
// every function here derives state from a HistoryEntry slice already
// fetched by the caller.
package lifecycle

import "github.com/sixfold-ai/memcore/pkg/memory"

// State is one node of the per-fact state machine.
type State string

const (
	// New is transient: it exists only during ADD persistence and is never
	// observed by a reader of the history log.
	New State = "NEW"

	// Live is the steady state after a successful ADD or UPDATE.
	Live State = "LIVE"

	// Superseded marks a fact absorbed by an UPDATE to another fact. The
	// core materialises this as DELETE(absorbed) + UPDATE(absorber), so it
	// is indistinguishable from Deleted by history kind alone — callers that
	// need to tell them apart follow the absorber's old_memory linkage.
	Superseded State = "SUPERSEDED"

	// Deleted is terminal: subsequent operations on the id return NotFound.
	Deleted State = "DELETED"
)

// IsTerminal reports whether s has no further valid transitions.
func IsTerminal(s State) bool {
	return s == Deleted || s == Superseded
}

// StateFromHistory derives the current state of a fact from its history
// entries, which must be in ascending Seq order (as returned by
// HistoryLog.List). An empty slice yields New.
func StateFromHistory(entries []memory.HistoryEntry) State {
	if len(entries) == 0 {
		return New
	}
	switch entries[len(entries)-1].Kind {
	case memory.HistoryDelete:
		return Deleted
	default:
		return Live
	}
}

// IsLive reports whether entries describe a fact currently visible to
// retrieval and get.
func IsLive(entries []memory.HistoryEntry) bool {
	return StateFromHistory(entries) == Live
}

// NextSeq returns the Seq to assign to the next history entry appended for
// a fact whose existing entries (ascending Seq order) are given. A fact's
// first entry (its ADD) carries Seq 0; an empty slice yields 0.
func NextSeq(entries []memory.HistoryEntry) int {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Seq + 1
}
