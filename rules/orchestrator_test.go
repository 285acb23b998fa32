package rules

import (
	"testing"

	"github.com/go-test/deep"

	"sqlsentry/sqlcontext"
)

type fakeChecker struct {
	id      string
	enabled bool
	fn      func(ctx *sqlcontext.Context, acc *Result)
}

func (f *fakeChecker) ID() string         { return f.id }
func (f *fakeChecker) IsEnabled() bool    { return f.enabled }
func (f *fakeChecker) Check(ctx *sqlcontext.Context, acc *Result) {
	if f.fn != nil {
		f.fn(ctx, acc)
	}
}

func TestOrchestrator_RunsInOrderAndAggregates(t *testing.T) {
	var order []string
	a := &fakeChecker{id: "a", enabled: true, fn: func(ctx *sqlcontext.Context, acc *Result) {
		order = append(order, "a")
		acc.Add(Violation{RuleID: "a", Risk: RiskLow})
	}}
	b := &fakeChecker{id: "b", enabled: true, fn: func(ctx *sqlcontext.Context, acc *Result) {
		order = append(order, "b")
		acc.Add(Violation{RuleID: "b", Risk: RiskHigh})
	}}
	o := NewOrchestrator([]Checker{a, b}, nil)
	res := o.Run(&sqlcontext.Context{})

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected invocation order: %v", order)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(res.Items))
	}
	if res.Highest != RiskHigh {
		t.Errorf("expected Highest RiskHigh, got %v", res.Highest)
	}
}

func TestOrchestrator_SkipsDisabledCheckers(t *testing.T) {
	ran := false
	c := &fakeChecker{id: "disabled", enabled: false, fn: func(*sqlcontext.Context, *Result) { ran = true }}
	o := NewOrchestrator([]Checker{c}, nil)
	o.Run(&sqlcontext.Context{})
	if ran {
		t.Error("expected a disabled checker to be skipped")
	}
}

func TestOrchestrator_EarlyReturnSuppression(t *testing.T) {
	ran := false
	noCondition := &fakeChecker{id: "pagination.no-condition", enabled: true, fn: func(ctx *sqlcontext.Context, acc *Result) {
		acc.SetHint("pagination.no-condition")
	}}
	deepOffset := &fakeChecker{id: "pagination.deep-offset", enabled: true, fn: func(*sqlcontext.Context, *Result) { ran = true }}
	o := NewOrchestrator([]Checker{noCondition, deepOffset}, nil)
	o.Run(&sqlcontext.Context{})
	if ran {
		t.Error("expected pagination.deep-offset to be suppressed once pagination.no-condition sets its hint")
	}
}

func TestOrchestrator_CriticalMultiStatementSuppressesStructuralGroup(t *testing.T) {
	ran := false
	multi := &fakeChecker{id: "injection.multi-statement", enabled: true, fn: func(ctx *sqlcontext.Context, acc *Result) {
		acc.SetHint("injection.multi-statement.critical")
	}}
	noWhere := &fakeChecker{id: "where.no-where", enabled: true, fn: func(*sqlcontext.Context, *Result) { ran = true }}
	o := NewOrchestrator([]Checker{multi, noWhere}, nil)
	o.Run(&sqlcontext.Context{})
	if ran {
		t.Error("expected where.no-where to be suppressed after a critical multi-statement finding")
	}
}

func TestOrchestrator_RecoversPanicAndContinues(t *testing.T) {
	ranAfter := false
	panicker := &fakeChecker{id: "panics", enabled: true, fn: func(*sqlcontext.Context, *Result) { panic("boom") }}
	after := &fakeChecker{id: "after", enabled: true, fn: func(*sqlcontext.Context, *Result) { ranAfter = true }}
	o := NewOrchestrator([]Checker{panicker, after}, nil)
	res := o.Run(&sqlcontext.Context{})

	if !ranAfter {
		t.Error("expected the pipeline to continue after a recovered panic")
	}
	if o.Faults() != 1 {
		t.Errorf("expected 1 recorded fault, got %d", o.Faults())
	}
	if res == nil {
		t.Fatal("expected a non-nil result even after a panic")
	}
}

func TestOrchestrator_ItemsMatchCheckerOutputExactly(t *testing.T) {
	a := &fakeChecker{id: "a", enabled: true, fn: func(ctx *sqlcontext.Context, acc *Result) {
		acc.Add(Violation{RuleID: "a", Risk: RiskLow, Message: "low finding"})
	}}
	b := &fakeChecker{id: "b", enabled: true, fn: func(ctx *sqlcontext.Context, acc *Result) {
		acc.Add(Violation{RuleID: "b", Risk: RiskHigh, Message: "high finding"})
	}}
	o := NewOrchestrator([]Checker{a, b}, nil)
	res := o.Run(&sqlcontext.Context{})

	want := []Violation{
		{RuleID: "a", Risk: RiskLow, Message: "low finding"},
		{RuleID: "b", Risk: RiskHigh, Message: "high finding"},
	}
	if diff := deep.Equal(res.Items, want); diff != nil {
		t.Error(diff)
	}
}

func TestOrchestrator_RecordsDurationPerChecker(t *testing.T) {
	c := &fakeChecker{id: "timed", enabled: true}
	o := NewOrchestrator([]Checker{c}, nil)
	res := o.Run(&sqlcontext.Context{})
	if res.Duration("timed") < 0 {
		t.Error("expected a recorded, non-negative duration")
	}
}
