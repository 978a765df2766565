// Package identity composes and validates the [memory.Scope] principal
// triple used to partition every fact, entity, and history entry.
package identity

import (
	"strings"

	"github.com/sixfold-ai/memcore/internal/errs"
	"github.com/sixfold-ai/memcore/pkg/memory"
)

// ComposeScope builds a [memory.Scope] from caller-supplied identifiers,
// trimming leading and trailing whitespace from each. It rejects the result
// with an [errs.InvalidScope] error when all three components are empty
// after trimming.
func ComposeScope(op, user, agent, session string) (memory.Scope, error) {
	scope := memory.Scope{
		UserID:    strings.TrimSpace(user),
		AgentID:   strings.TrimSpace(agent),
		SessionID: strings.TrimSpace(session),
	}
	if scope.IsZero() {
		return memory.Scope{}, errs.New(op, errs.InvalidScope, nil)
	}
	return scope, nil
}

// ScopeFilter returns scope's equality filter map, ready to be merged (AND)
// into a VectorStore, GraphStore, or HistoryLog call so that no operation
// can read or write outside its principal's partition.
func ScopeFilter(scope memory.Scope) map[string]any {
	return scope.Filter()
}
