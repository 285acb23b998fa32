package service

import (
	"context"
	"sync"
	"time"

	"sqlsentry/audit"
	"sqlsentry/rules"
)

// DefaultCheckerTimeout is the audit-checker per-checker budget (spec
// §4.8, §6 auditService.checkerTimeoutMs).
const DefaultCheckerTimeout = 200 * time.Millisecond

// Pool runs every enabled Checker concurrently against one event, each
// under its own timeout, and aggregates the result into a ReportRecord.
type Pool struct {
	Checkers []Checker
	Timeout  time.Duration

	timedOut int64
	mu       sync.Mutex
}

// NewPool builds a Pool. timeout <= 0 uses DefaultCheckerTimeout.
func NewPool(checkers []Checker, timeout time.Duration) *Pool {
	if timeout <= 0 {
		timeout = DefaultCheckerTimeout
	}
	return &Pool{Checkers: checkers, Timeout: timeout}
}

// Run fans the event out to every enabled checker concurrently (spec
// §4.8/§5), enforcing the per-checker timeout independently of the
// others: a checker that exceeds its budget contributes a TimedOut
// finding with no risk and is counted, but does not slow down or fail its
// siblings.
func (p *Pool) Run(ctx context.Context, e audit.Event) ReportRecord {
	t := Telemetry{Event: e}

	results := make([]checkOutcome, len(p.Checkers))
	var wg sync.WaitGroup
	for i, c := range p.Checkers {
		if !c.IsEnabled() {
			continue
		}
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = p.runOne(ctx, c, t)
		}(i, c)
	}
	wg.Wait()

	findings := make([]CheckerFinding, 0, len(results))
	for _, r := range results {
		if r.ok {
			findings = append(findings, r.finding)
		}
	}
	return NewReportRecord(e.EventID(), e.App, e.SQL, findings, time.Now())
}

type checkOutcome struct {
	finding CheckerFinding
	ok      bool
}

func (p *Pool) runOne(ctx context.Context, c Checker, t Telemetry) (out checkOutcome) {
	checkCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	type result struct {
		v  rules.Violation
		ok bool
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{}
			}
		}()
		v, ok := c.Check(checkCtx, t)
		done <- result{v: v, ok: ok}
	}()

	select {
	case r := <-done:
		if !r.ok {
			return out
		}
		out.finding = CheckerFinding{CheckerID: c.ID(), Risk: r.v.Risk, Message: r.v.Message}
		out.ok = true
		return out
	case <-checkCtx.Done():
		p.recordTimeout()
		out.finding = CheckerFinding{CheckerID: c.ID(), TimedOut: true}
		out.ok = true
		return out
	}
}

func (p *Pool) recordTimeout() {
	p.mu.Lock()
	p.timedOut++
	p.mu.Unlock()
}

// TimedOutCount returns how many checker invocations have exceeded their
// budget across the pool's lifetime, for diagnostics.
func (p *Pool) TimedOutCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timedOut
}
