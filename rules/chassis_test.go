package rules

import (
	"testing"

	"sqlsentry/sqlast"
	"sqlsentry/sqlcontext"
)

func ctxOfKind(kind sqlast.Kind) *sqlcontext.Context {
	return &sqlcontext.Context{Kind: kind, AST: &sqlast.Handle{Kind: kind}}
}

func TestAbstractChecker_Dispatch(t *testing.T) {
	var called string
	hooks := Hooks{
		Select: func(*sqlcontext.Context, *Result) { called = "select" },
		Update: func(*sqlcontext.Context, *Result) { called = "update" },
		Delete: func(*sqlcontext.Context, *Result) { called = "delete" },
		Insert: func(*sqlcontext.Context, *Result) { called = "insert" },
		Other:  func(*sqlcontext.Context, *Result) { called = "other" },
	}
	base := NewAbstractChecker("test.dispatch", nil, hooks)

	cases := []struct {
		kind sqlast.Kind
		want string
	}{
		{sqlast.KindSelect, "select"},
		{sqlast.KindUpdate, "update"},
		{sqlast.KindDelete, "delete"},
		{sqlast.KindInsert, "insert"},
		{sqlast.KindOther, "other"},
		{sqlast.KindUnknown, "other"},
	}
	for _, c := range cases {
		called = ""
		base.Check(ctxOfKind(c.kind), NewResult())
		if called != c.want {
			t.Errorf("kind %v dispatched to %q, want %q", c.kind, called, c.want)
		}
	}
}

func TestAbstractChecker_NilHookIsNoop(t *testing.T) {
	base := NewAbstractChecker("test.nilhook", nil, Hooks{})
	// Must not panic when the relevant hook is nil.
	base.Check(ctxOfKind(sqlast.KindSelect), NewResult())
}

func TestAbstractChecker_NoASTUsesOtherHook(t *testing.T) {
	var called bool
	base := NewAbstractChecker("test.noast", nil, Hooks{
		Other:  func(*sqlcontext.Context, *Result) { called = true },
		Select: func(*sqlcontext.Context, *Result) { t.Error("select hook must not fire without an AST") },
	})
	ctx := &sqlcontext.Context{} // AST is nil
	base.Check(ctx, NewResult())
	if !called {
		t.Error("expected the Other hook to fire when ctx.AST is nil")
	}
}

func TestAbstractChecker_IsEnabled(t *testing.T) {
	enabled := true
	base := NewAbstractChecker("test.enabled", func() bool { return enabled }, Hooks{})
	if !base.IsEnabled() {
		t.Error("expected enabled")
	}
	enabled = false
	if base.IsEnabled() {
		t.Error("expected disabled once the closure flips")
	}

	defaultBase := NewAbstractChecker("test.defaultenabled", nil, Hooks{})
	if !defaultBase.IsEnabled() {
		t.Error("expected a nil enabled func to default to enabled")
	}
}

func TestAbstractChecker_ID(t *testing.T) {
	base := NewAbstractChecker("test.id", nil, Hooks{})
	if base.ID() != "test.id" {
		t.Errorf("ID() = %q, want test.id", base.ID())
	}
}
