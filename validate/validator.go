package validate

import (
	"sqlsentry/rules"
	"sqlsentry/sqlcontext"
)

// Strictness controls parser-failure handling (spec §6 "strictness").
type Strictness int

const (
	Strict Strictness = iota
	Lenient
)

// Validator is the pipeline entry point: dedup consult, parse-failure
// handling, orchestrated rule dispatch, dedup store.
type Validator struct {
	Orchestrator *rules.Orchestrator
	Strictness   Strictness
}

// NewValidator builds a Validator over an already-constructed
// orchestrator (the caller owns checker configuration and ordering).
func NewValidator(o *rules.Orchestrator, strictness Strictness) *Validator {
	return &Validator{Orchestrator: o, Strictness: strictness}
}

// Validate runs the pipeline described in spec §4.5 against ctx, using
// sess as the caller's dedup session. A nil sess skips deduplication
// entirely (every call reaches the orchestrator), which audit-only
// capture paths may prefer.
func (v *Validator) Validate(ctx *sqlcontext.Context, sess *Session) *rules.Result {
	if sess != nil && sess.seen(ctx.SQL) {
		r := rules.NewResult()
		return r
	}

	if ctx.AST == nil || ctx.AST.Degraded {
		r := rules.NewResult()
		if v.Strictness == Strict {
			r.Add(rules.Violation{
				Risk:    rules.RiskCritical,
				RuleID:  "parser.failure",
				Message: "SQL parse failure",
			})
			return r
		}
		r.Add(rules.Violation{
			Risk:    rules.RiskLow,
			RuleID:  "parser.failure",
			Message: "parse failure, validation degraded",
		})
		// Lenient mode continues; most checkers become no-ops against a
		// context with no AST or a degraded one, since AbstractChecker.Check
		// only invokes the Other hook for those.
		merged := v.Orchestrator.Run(ctx)
		for _, item := range merged.Items {
			r.Add(item)
		}
		for _, id := range rules.RegisteredIDs() {
			if d := merged.Duration(id); d != 0 {
				r.RecordDuration(id, d)
			}
		}
		if sess != nil && r.Passed {
			sess.remember(ctx.SQL)
		}
		return r
	}

	result := v.Orchestrator.Run(ctx)

	if sess != nil && result.Passed {
		sess.remember(ctx.SQL)
	}
	return result
}
