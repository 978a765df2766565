// Package persistence applies reconciled decisions to the vector store and
// history log, one decision at a time.
package persistence

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sixfold-ai/memcore/internal/lifecycle"
	"github.com/sixfold-ai/memcore/pkg/memory"
	"github.com/sixfold-ai/memcore/pkg/provider/embeddings"
)

// Stage applies [memory.Decision] values produced by reconciliation.
type Stage struct {
	embedder embeddings.Provider
	vectors  memory.VectorStore
	history  memory.HistoryLog
}

// New returns a Stage backed by embedder, vectors and history.
func New(embedder embeddings.Provider, vectors memory.VectorStore, history memory.HistoryLog) *Stage {
	return &Stage{embedder: embedder, vectors: vectors, history: history}
}

// Result is the outcome of applying one decision. FactID is the id affected
// — freshly minted for ADD, the existing id for UPDATE/DELETE. Err is
// non-nil when this decision's write failed; siblings in the same batch are
// applied regardless.
type Result struct {
	Decision memory.Decision
	FactID   string
	Err      error
}

// Apply applies each decision independently against scope. A failure on one
// decision is recorded in its Result and does not prevent the remaining
// decisions in decisions from being attempted — this is the best-effort
// batch contract; callers needing all-or-nothing must submit singleton
// batches.
func (s *Stage) Apply(ctx context.Context, decisions []memory.Decision, scope memory.Scope) []Result {
	return s.ApplyWithMetadata(ctx, decisions, scope, nil)
}

// ApplyWithMetadata behaves like Apply, additionally attaching metadata to
// the Fact row of every ADD decision in decisions. UPDATE and DELETE
// decisions leave the existing fact's metadata untouched.
func (s *Stage) ApplyWithMetadata(ctx context.Context, decisions []memory.Decision, scope memory.Scope, metadata map[string]any) []Result {
	results := make([]Result, len(decisions))
	for i, d := range decisions {
		results[i] = s.apply(ctx, d, scope, metadata)
	}
	return results
}

func (s *Stage) apply(ctx context.Context, d memory.Decision, scope memory.Scope, metadata map[string]any) Result {
	switch d.Kind {
	case memory.DecisionAdd:
		return s.applyAdd(ctx, d, scope, metadata)
	case memory.DecisionUpdate:
		return s.applyUpdate(ctx, d, scope)
	case memory.DecisionDelete:
		return s.applyDelete(ctx, d, scope)
	default:
		return Result{Decision: d, Err: fmt.Errorf("persistence: unsupported decision kind %q", d.Kind)}
	}
}

func (s *Stage) applyAdd(ctx context.Context, d memory.Decision, scope memory.Scope, metadata map[string]any) Result {
	id, err := generateID()
	if err != nil {
		return Result{Decision: d, Err: fmt.Errorf("persistence: generate id: %w", err)}
	}

	vec, err := s.embedder.Embed(ctx, d.Text, embeddings.PurposeAdd)
	if err != nil {
		return Result{Decision: d, Err: fmt.Errorf("persistence: embed: %w", err)}
	}

	now := time.Now()
	fact := memory.Fact{Payload: d.Text, Scope: scope, Metadata: metadata, CreatedAt: now, UpdatedAt: now}
	if err := s.vectors.Insert(ctx, id, vec, fact); err != nil {
		return Result{Decision: d, Err: fmt.Errorf("persistence: insert: %w", err)}
	}

	if err := s.appendHistory(ctx, id, scope, memory.HistoryAdd, "", d.Text); err != nil {
		return Result{Decision: d, FactID: id, Err: err}
	}
	return Result{Decision: d, FactID: id}
}

func (s *Stage) applyUpdate(ctx context.Context, d memory.Decision, scope memory.Scope) Result {
	vec, err := s.embedder.Embed(ctx, d.Text, embeddings.PurposeUpdate)
	if err != nil {
		return Result{Decision: d, FactID: d.ExistingID, Err: fmt.Errorf("persistence: embed: %w", err)}
	}

	fact := memory.Fact{Payload: d.Text, Scope: scope, UpdatedAt: time.Now()}
	if err := s.vectors.Update(ctx, d.ExistingID, vec, fact); err != nil {
		return Result{Decision: d, FactID: d.ExistingID, Err: fmt.Errorf("persistence: update: %w", err)}
	}

	if err := s.appendHistory(ctx, d.ExistingID, scope, memory.HistoryUpdate, d.PreviousText, d.Text); err != nil {
		return Result{Decision: d, FactID: d.ExistingID, Err: err}
	}
	return Result{Decision: d, FactID: d.ExistingID}
}

func (s *Stage) applyDelete(ctx context.Context, d memory.Decision, scope memory.Scope) Result {
	if err := s.vectors.Delete(ctx, d.ExistingID); err != nil {
		return Result{Decision: d, FactID: d.ExistingID, Err: fmt.Errorf("persistence: delete: %w", err)}
	}

	if err := s.appendHistory(ctx, d.ExistingID, scope, memory.HistoryDelete, d.PreviousText, ""); err != nil {
		return Result{Decision: d, FactID: d.ExistingID, Err: err}
	}
	return Result{Decision: d, FactID: d.ExistingID}
}

// appendHistory assigns the next sequence number for factID (one greater
// than the highest Seq currently on record, or 0 if none — a fact's ADD
// always carries Seq 0) and appends the entry.
func (s *Stage) appendHistory(ctx context.Context, factID string, scope memory.Scope, kind memory.HistoryKind, prev, next string) error {
	existing, err := s.history.List(ctx, factID)
	if err != nil {
		return fmt.Errorf("persistence: list history for seq: %w", err)
	}

	entry := memory.HistoryEntry{
		FactID:      factID,
		Seq:         lifecycle.NextSeq(existing),
		PrevPayload: prev,
		NewPayload:  next,
		Kind:        kind,
		ActorScope:  scope,
		Timestamp:   time.Now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("persistence: append history: %w", err)
	}
	return nil
}

func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
