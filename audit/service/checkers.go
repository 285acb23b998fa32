package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"

	"sqlsentry/rules"
)

const CheckerSlowQuery = "audit.slow-query"

// NewSlowQuery flags events whose observed duration exceeds threshold.
func NewSlowQuery(threshold time.Duration) Checker {
	return &slowQueryChecker{baseChecker: baseChecker{id: CheckerSlowQuery, enabled: alwaysEnabled}, threshold: threshold}
}

type slowQueryChecker struct {
	baseChecker
	threshold time.Duration
}

func (c *slowQueryChecker) Check(_ context.Context, t Telemetry) (rules.Violation, bool) {
	observed := time.Duration(t.Event.TimeMS * float64(time.Millisecond))
	if observed < c.threshold {
		return rules.Violation{}, false
	}
	risk := rules.RiskLow
	switch {
	case observed >= 10*c.threshold:
		risk = rules.RiskCritical
	case observed >= 4*c.threshold:
		risk = rules.RiskHigh
	case observed >= 2*c.threshold:
		risk = rules.RiskMedium
	}
	return rules.Violation{
		Risk:    risk,
		RuleID:  CheckerSlowQuery,
		Message: fmt.Sprintf("statement took %s, threshold is %s", observed, c.threshold),
	}, true
}

const CheckerActualImpactNoWhere = "audit.actual-impact-no-where"

// NewActualImpactNoWhere grades a no-WHERE statement by rows actually
// affected, in tranches (spec §4.8): 0 -> LOW, <10 -> MEDIUM, <100 ->
// HIGH, >=100 -> CRITICAL. It consults the runtime violation list
// captured on the event rather than re-parsing the SQL.
func NewActualImpactNoWhere(runtimeRuleID string) Checker {
	return &actualImpactNoWhereChecker{
		baseChecker:   baseChecker{id: CheckerActualImpactNoWhere, enabled: alwaysEnabled},
		runtimeRuleID: runtimeRuleID,
	}
}

type actualImpactNoWhereChecker struct {
	baseChecker
	runtimeRuleID string
}

func (c *actualImpactNoWhereChecker) Check(_ context.Context, t Telemetry) (rules.Violation, bool) {
	if t.Event.Violations == nil {
		return rules.Violation{}, false
	}
	flagged := false
	for _, v := range t.Event.Violations.Items {
		if v.Risk == "CRITICAL" && strings.Contains(v.Message, "no WHERE") {
			flagged = true
			break
		}
	}
	if !flagged {
		return rules.Violation{}, false
	}
	rows := t.Event.Rows
	risk := rules.RiskLow
	switch {
	case rows >= 100:
		risk = rules.RiskCritical
	case rows >= 10:
		risk = rules.RiskHigh
	case rows > 0:
		risk = rules.RiskMedium
	}
	return rules.Violation{
		Risk:    risk,
		RuleID:  CheckerActualImpactNoWhere,
		Message: fmt.Sprintf("no-WHERE statement affected %d row(s)", rows),
	}, true
}

const CheckerErrorPattern = "audit.error-pattern"

// NewErrorPattern tracks the error rate per application using a sliding
// window rate limiter: once an application crosses the configured rates
// (e.g. more than N errors per minute), subsequent failing events from
// that application are flagged until the window clears.
func NewErrorPattern(rates map[time.Duration]int) Checker {
	return &errorPatternChecker{
		baseChecker: baseChecker{id: CheckerErrorPattern, enabled: alwaysEnabled},
		limiter:     catrate.NewLimiter(rates),
	}
}

type errorPatternChecker struct {
	baseChecker
	limiter *catrate.Limiter
}

func (c *errorPatternChecker) Check(_ context.Context, t Telemetry) (rules.Violation, bool) {
	if t.Event.Success {
		return rules.Violation{}, false
	}
	_, allowed := c.limiter.Allow(t.Event.App)
	if allowed {
		return rules.Violation{}, false
	}
	return rules.Violation{
		Risk:    rules.RiskHigh,
		RuleID:  CheckerErrorPattern,
		Message: fmt.Sprintf("application %q is exceeding its configured error-rate budget", t.Event.App),
	}, true
}

const CheckerFullTableScan = "audit.full-table-scan"

// NewFullTableScan flags an event whose rows-examined telemetry (here,
// rows returned/affected as a proxy — true rows-examined requires an
// EXPLAIN the core does not run) combined with a zero-WHERE runtime
// finding suggests a full scan actually occurred, not merely was risked.
func NewFullTableScan(rowsThreshold int64) Checker {
	return &fullTableScanChecker{baseChecker: baseChecker{id: CheckerFullTableScan, enabled: alwaysEnabled}, rowsThreshold: rowsThreshold}
}

type fullTableScanChecker struct {
	baseChecker
	rowsThreshold int64
}

func (c *fullTableScanChecker) Check(_ context.Context, t Telemetry) (rules.Violation, bool) {
	if t.Event.Rows < c.rowsThreshold {
		return rules.Violation{}, false
	}
	hasNoCondition := false
	if t.Event.Violations != nil {
		for _, v := range t.Event.Violations.Items {
			if strings.Contains(v.Message, "full table scan") || strings.Contains(v.Message, "no WHERE") {
				hasNoCondition = true
				break
			}
		}
	}
	if !hasNoCondition {
		return rules.Violation{}, false
	}
	return rules.Violation{
		Risk:    rules.RiskHigh,
		RuleID:  CheckerFullTableScan,
		Message: fmt.Sprintf("statement returned/affected %d rows with no limiting predicate", t.Event.Rows),
	}, true
}

const CheckerPaginationAbuse = "audit.pagination-abuse"

// NewPaginationAbuse flags repeated deep-offset pagination from the same
// application within the window, using the same sliding-window limiter
// technique as ErrorPattern but keyed on the deep-offset runtime finding.
func NewPaginationAbuse(rates map[time.Duration]int) Checker {
	return &paginationAbuseChecker{
		baseChecker: baseChecker{id: CheckerPaginationAbuse, enabled: alwaysEnabled},
		limiter:     catrate.NewLimiter(rates),
	}
}

type paginationAbuseChecker struct {
	baseChecker
	limiter *catrate.Limiter
}

func (c *paginationAbuseChecker) Check(_ context.Context, t Telemetry) (rules.Violation, bool) {
	if t.Event.Violations == nil {
		return rules.Violation{}, false
	}
	deepOffset := false
	for _, v := range t.Event.Violations.Items {
		if strings.Contains(v.Message, "OFFSET") {
			deepOffset = true
			break
		}
	}
	if !deepOffset {
		return rules.Violation{}, false
	}
	if _, allowed := c.limiter.Allow(t.Event.App); allowed {
		return rules.Violation{}, false
	}
	return rules.Violation{
		Risk:    rules.RiskMedium,
		RuleID:  CheckerPaginationAbuse,
		Message: fmt.Sprintf("application %q is repeatedly issuing deep-offset pagination", t.Event.App),
	}, true
}

// NewPlaceholder builds a stateless checker that never fires: a named
// seat for a behavioral rule that genuinely needs cross-event storage
// (e.g. "N+1 query detection across a request") the audit service does
// not yet implement, kept so the checker pool's enabled-set configuration
// surface is stable even before storage-backed checkers land.
func NewPlaceholder(id string) Checker {
	return &placeholderChecker{baseChecker: baseChecker{id: id, enabled: alwaysEnabled}}
}

type placeholderChecker struct{ baseChecker }

func (c *placeholderChecker) Check(_ context.Context, _ Telemetry) (rules.Violation, bool) {
	return rules.Violation{}, false
}
