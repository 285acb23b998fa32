package rules

import (
	"time"

	"sqlsentry/audit"
	"sqlsentry/sqlcontext"
)

// earlyReturnEntry is one row of the fixed compile-time early-return
// table (spec §4.3): when FromRule has already run and set its hint, any
// checker whose id is in Suppresses is skipped entirely, without
// invoking Check.
type earlyReturnEntry struct {
	fromRule   string
	hintKey    string
	suppresses []string
}

// The early-return table is fixed at compile time, not dynamic, per
// spec §4.3: two known uses. "no-condition-pagination" covers the first
// (no-WHERE on paginated SELECT suppresses deep-offset); "critical
// multi-statement" covers the second (further structural rules skipped
// once a CRITICAL multi-statement finding has been recorded).
var earlyReturnTable = []earlyReturnEntry{
	{
		fromRule:   "pagination.no-condition",
		hintKey:    "pagination.no-condition",
		suppresses: []string{"pagination.deep-offset"},
	},
	{
		fromRule: "injection.multi-statement",
		hintKey:  "injection.multi-statement.critical",
		suppresses: []string{
			"injection.set-operation",
			"where.no-where",
			"pagination.no-condition",
			"pagination.deep-offset",
			"pagination.large-page-size",
			"pagination.missing-order-by",
			"pagination.no-pagination",
		},
	},
}

// suppressedBy reports whether ruleID is currently suppressed given the
// hints already recorded in acc.
func suppressedBy(ruleID string, acc *Result) bool {
	for _, e := range earlyReturnTable {
		if !acc.Hint(e.hintKey) {
			continue
		}
		for _, s := range e.suppresses {
			if s == ruleID {
				return true
			}
		}
	}
	return false
}

// Orchestrator owns an explicitly ordered, enabled checker list and runs
// each against a context, aggregating violations and enforcing the
// early-return table between them.
type Orchestrator struct {
	checkers []Checker
	log      audit.Logger
	faults   int64
}

// NewOrchestrator builds an orchestrator over checkers in the given
// order. Order is the caller's configured order (spec §4.3), independent
// of registry membership order.
func NewOrchestrator(checkers []Checker, log audit.Logger) *Orchestrator {
	if log == nil {
		log = audit.Discard{}
	}
	return &Orchestrator{checkers: checkers, log: log}
}

// Faults returns the running count of recovered checker panics.
func (o *Orchestrator) Faults() int64 { return o.faults }

// Run iterates the configured checkers in order, invoking each enabled
// one that is not currently suppressed by an early-return hint, and
// returns the accumulated result. A checker that panics is recovered,
// logged, and the pipeline continues with that checker's partial
// violations retained (none are rolled back: violations are appended as
// recorded, before the panic unwound the call).
func (o *Orchestrator) Run(ctx *sqlcontext.Context) *Result {
	acc := NewResult()
	for _, c := range o.checkers {
		if !c.IsEnabled() {
			continue
		}
		if suppressedBy(c.ID(), acc) {
			continue
		}
		o.runOne(c, ctx, acc)
	}
	return acc
}

func (o *Orchestrator) runOne(c Checker, ctx *sqlcontext.Context, acc *Result) {
	start := time.Now()
	defer func() {
		acc.RecordDuration(c.ID(), time.Since(start).Nanoseconds())
		if r := recover(); r != nil {
			o.faults++
			fault := &FaultError{RuleID: c.ID(), Recovered: r}
			o.log.WithError(fault).Error("rule checker panicked")
		}
	}()
	c.Check(ctx, acc)
}
