package service

import (
	"context"

	"sqlsentry/audit"
	"sqlsentry/rules"
)

// Telemetry is the execution evidence available to an audit checker that
// a runtime checker never sees: the event already describes what
// actually happened, not just what the SQL could do.
type Telemetry struct {
	Event audit.Event
}

// Checker is the audit checker contract (spec §4.8): unlike a runtime
// rules.Checker it consults execution telemetry to grade an offense
// rather than merely detect it, and it must respect ctx's deadline — the
// pool enforces a per-checker timeout independently of this method
// returning promptly.
type Checker interface {
	ID() string
	IsEnabled() bool
	Check(ctx context.Context, t Telemetry) (rules.Violation, bool)
}

// baseChecker is the common enabled/id bookkeeping every concrete
// checker embeds, mirroring rules.AbstractChecker's shape without
// depending on it (audit checkers dispatch on telemetry, not AST kind,
// so they don't share the visitor template method).
type baseChecker struct {
	id      string
	enabled func() bool
}

func (b baseChecker) ID() string      { return b.id }
func (b baseChecker) IsEnabled() bool { return b.enabled() }

func alwaysEnabled() bool { return true }
