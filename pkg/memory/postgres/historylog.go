package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

// HistoryLogImpl is the [memory.HistoryLog] implementation backed by the
// fact_history table. Entries are append-only; Seq is caller-assigned and
// must be monotonic per fact.
//
// Obtain one via [Store.History] rather than constructing directly.
type HistoryLogImpl struct {
	pool *pgxpool.Pool
}

// Append implements [memory.HistoryLog].
func (h *HistoryLogImpl) Append(ctx context.Context, entry memory.HistoryEntry) error {
	const q = `
		INSERT INTO fact_history
		    (fact_id, seq, prev_payload, new_payload, kind,
		     actor_user_id, actor_agent_id, actor_session_id, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := h.pool.Exec(ctx, q,
		entry.FactID,
		entry.Seq,
		entry.PrevPayload,
		entry.NewPayload,
		string(entry.Kind),
		entry.ActorScope.UserID,
		entry.ActorScope.AgentID,
		entry.ActorScope.SessionID,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("history log: append: %w", err)
	}
	return nil
}

// List implements [memory.HistoryLog]. Entries are returned in ascending
// Seq order.
func (h *HistoryLogImpl) List(ctx context.Context, factID string) ([]memory.HistoryEntry, error) {
	const q = `
		SELECT fact_id, seq, prev_payload, new_payload, kind,
		       actor_user_id, actor_agent_id, actor_session_id, ts
		FROM   fact_history
		WHERE  fact_id = $1
		ORDER  BY seq ASC`

	rows, err := h.pool.Query(ctx, q, factID)
	if err != nil {
		return nil, fmt.Errorf("history log: list: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.HistoryEntry, error) {
		var e memory.HistoryEntry
		var kind string
		if err := row.Scan(
			&e.FactID, &e.Seq, &e.PrevPayload, &e.NewPayload, &kind,
			&e.ActorScope.UserID, &e.ActorScope.AgentID, &e.ActorScope.SessionID, &e.Timestamp,
		); err != nil {
			return memory.HistoryEntry{}, err
		}
		e.Kind = memory.HistoryKind(kind)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history log: list: scan: %w", err)
	}
	if entries == nil {
		entries = []memory.HistoryEntry{}
	}
	return entries, nil
}

// DeleteAll implements [memory.HistoryLog]. It permanently removes every
// history entry whose actor scope matches scopeFilter. The orchestrator does
// not call it: delete_all leaves history intact and reset uses [HistoryLogImpl.Reset].
func (h *HistoryLogImpl) DeleteAll(ctx context.Context, scopeFilter map[string]any) error {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	for _, pair := range [][2]string{
		{"user_id", "actor_user_id"},
		{"agent_id", "actor_agent_id"},
		{"session_id", "actor_session_id"},
	} {
		if v, ok := scopeFilter[pair[0]]; ok {
			conditions = append(conditions, pair[1]+" = "+next(v))
		}
	}
	if len(conditions) == 0 {
		return fmt.Errorf("history log: delete all: empty scope filter refused")
	}

	q := "DELETE FROM fact_history WHERE " + joinAnd(conditions)
	if _, err := h.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("history log: delete all: %w", err)
	}
	return nil
}

// Reset truncates the fact_history table, discarding every entry regardless
// of actor scope.
func (h *HistoryLogImpl) Reset(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "TRUNCATE TABLE fact_history"); err != nil {
		return fmt.Errorf("history log: reset: %w", err)
	}
	return nil
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}
