package rules

import (
	"sqlsentry/sqlast"
	"sqlsentry/sqlcontext"
)

// Checker is the contract every rule plugs into. IsEnabled lets a rule
// disable itself independent of the orchestrator's enabled-set (e.g. a
// placeholder rule that is always off until its storage dependency
// exists). Check inspects ctx and records findings into acc.
type Checker interface {
	ID() string
	IsEnabled() bool
	Check(ctx *sqlcontext.Context, acc *Result)
}

// Hooks is the set of AST-kind-specific callbacks a concrete checker
// supplies. Any nil hook is simply not invoked for that statement kind;
// a checker interested only in SELECTs leaves the rest nil. This is the
// "struct of function values" variant of a template-method base class,
// used here in place of embedding-based inheritance.
type Hooks struct {
	Select func(ctx *sqlcontext.Context, acc *Result)
	Update func(ctx *sqlcontext.Context, acc *Result)
	Delete func(ctx *sqlcontext.Context, acc *Result)
	Insert func(ctx *sqlcontext.Context, acc *Result)
	Other  func(ctx *sqlcontext.Context, acc *Result)
}

// AbstractChecker dispatches Check on the context's statement kind into
// one of the supplied Hooks, exactly once per call, and is itself never
// invoked twice for the same context (the orchestrator owns that
// invariant). Concrete checkers embed AbstractChecker and set id,
// enabled and Hooks at construction time.
type AbstractChecker struct {
	id      string
	enabled func() bool
	Hooks   Hooks
}

// NewAbstractChecker builds the dispatch template for a concrete rule.
// enabled is re-evaluated on every IsEnabled call so a config toggle
// flips live.
func NewAbstractChecker(id string, enabled func() bool, hooks Hooks) AbstractChecker {
	return AbstractChecker{id: id, enabled: enabled, Hooks: hooks}
}

func (a *AbstractChecker) ID() string { return a.id }

func (a *AbstractChecker) IsEnabled() bool {
	if a.enabled == nil {
		return true
	}
	return a.enabled()
}

// Check implements the dispatch. A checker with no AST (degraded/absent
// handle) only runs its Other hook, since nothing more specific can be
// known about the statement.
func (a *AbstractChecker) Check(ctx *sqlcontext.Context, acc *Result) {
	kind := sqlast.KindOther
	if ctx.AST != nil {
		kind = ctx.AST.Kind
	}
	var hook func(*sqlcontext.Context, *Result)
	switch kind {
	case sqlast.KindSelect:
		hook = a.Hooks.Select
	case sqlast.KindUpdate:
		hook = a.Hooks.Update
	case sqlast.KindDelete:
		hook = a.Hooks.Delete
	case sqlast.KindInsert:
		hook = a.Hooks.Insert
	default:
		hook = a.Hooks.Other
	}
	if hook != nil {
		hook(ctx, acc)
	}
}
