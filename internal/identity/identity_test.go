package identity_test

import (
	"testing"

	"github.com/sixfold-ai/memcore/internal/errs"
	"github.com/sixfold-ai/memcore/internal/identity"
)

func TestComposeScope_RejectsAllEmpty(t *testing.T) {
	_, err := identity.ComposeScope("add", "", "  ", "")
	if kind, ok := errs.KindOf(err); !ok || kind != errs.InvalidScope {
		t.Fatalf("err kind = (%v, %v), want (InvalidScope, true)", kind, ok)
	}
}

func TestComposeScope_TrimsWhitespace(t *testing.T) {
	scope, err := identity.ComposeScope("add", "  u1  ", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", scope.UserID, "u1")
	}
}

func TestComposeScope_NoCaseFolding(t *testing.T) {
	scope, err := identity.ComposeScope("add", "U1", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.UserID != "U1" {
		t.Errorf("UserID = %q, want unmodified %q", scope.UserID, "U1")
	}
}

func TestScopeFilter_OmitsEmptyComponents(t *testing.T) {
	scope, err := identity.ComposeScope("add", "u1", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter := identity.ScopeFilter(scope)
	if _, ok := filter["agent_id"]; ok {
		t.Errorf("filter contains agent_id for an empty component: %+v", filter)
	}
	if filter["user_id"] != "u1" {
		t.Errorf("filter[user_id] = %v, want u1", filter["user_id"])
	}
}
