package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlsentry/audit"
	"sqlsentry/rules"
)

func TestSlowQuery_GradesByMultipleOfThreshold(t *testing.T) {
	c := NewSlowQuery(100 * time.Millisecond)

	cases := []struct {
		timeMS float64
		flag   bool
		risk   rules.RiskLevel
	}{
		{50, false, rules.RiskSafe},
		{100, true, rules.RiskLow},
		{250, true, rules.RiskMedium},
		{500, true, rules.RiskHigh},
		{1500, true, rules.RiskCritical},
	}
	for _, c2 := range cases {
		v, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{TimeMS: c2.timeMS}})
		assert.Equalf(t, c2.flag, ok, "timeMS=%v", c2.timeMS)
		if c2.flag {
			assert.Equalf(t, c2.risk, v.Risk, "timeMS=%v", c2.timeMS)
		}
	}
	assert.Equal(t, CheckerSlowQuery, c.ID())
	assert.True(t, c.IsEnabled())
}

func TestActualImpactNoWhere_GradesByRowCount(t *testing.T) {
	c := NewActualImpactNoWhere("where.no-where")
	noWhereEvent := func(rows int64) audit.Event {
		return audit.Event{
			Rows: rows,
			Violations: &audit.ResultSummary{
				Items: []audit.ViolationSummary{{Risk: "CRITICAL", Message: "has no WHERE clause"}},
			},
		}
	}

	cases := []struct {
		rows int64
		risk rules.RiskLevel
	}{
		{0, rules.RiskLow},
		{5, rules.RiskMedium},
		{50, rules.RiskHigh},
		{1000, rules.RiskCritical},
	}
	for _, c2 := range cases {
		v, ok := c.Check(context.Background(), Telemetry{Event: noWhereEvent(c2.rows)})
		require.True(t, ok)
		assert.Equal(t, c2.risk, v.Risk)
	}
}

func TestActualImpactNoWhere_SkipsWithoutNoWhereFinding(t *testing.T) {
	c := NewActualImpactNoWhere("where.no-where")
	_, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{
		Rows:       500,
		Violations: &audit.ResultSummary{},
	}})
	assert.False(t, ok)
}

func TestActualImpactNoWhere_SkipsWithNoViolations(t *testing.T) {
	c := NewActualImpactNoWhere("where.no-where")
	_, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{Rows: 500}})
	assert.False(t, ok)
}

func TestErrorPattern_FlagsOnceRateExceeded(t *testing.T) {
	c := NewErrorPattern(map[time.Duration]int{time.Minute: 2})
	fail := audit.Event{App: "orders-api", Success: false}

	_, ok := c.Check(context.Background(), Telemetry{Event: fail})
	assert.False(t, ok, "first failure within budget")
	_, ok = c.Check(context.Background(), Telemetry{Event: fail})
	assert.False(t, ok, "second failure within budget")
	v, ok := c.Check(context.Background(), Telemetry{Event: fail})
	assert.True(t, ok, "third failure exceeds the 2-per-minute budget")
	assert.Equal(t, rules.RiskHigh, v.Risk)
}

func TestErrorPattern_IgnoresSuccesses(t *testing.T) {
	c := NewErrorPattern(map[time.Duration]int{time.Minute: 1})
	ok := func() bool {
		_, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{App: "a", Success: true}})
		return ok
	}
	assert.False(t, ok())
	assert.False(t, ok())
}

func TestFullTableScan_RequiresBothRowsAndFinding(t *testing.T) {
	c := NewFullTableScan(100)

	_, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{Rows: 50}})
	assert.False(t, ok, "below rows threshold")

	_, ok = c.Check(context.Background(), Telemetry{Event: audit.Event{Rows: 500}})
	assert.False(t, ok, "no matching finding")

	v, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{
		Rows:       500,
		Violations: &audit.ResultSummary{Items: []audit.ViolationSummary{{Message: "has no WHERE clause"}}},
	}})
	require.True(t, ok)
	assert.Equal(t, rules.RiskHigh, v.Risk)
}

func TestPaginationAbuse_FlagsOnceRateExceeded(t *testing.T) {
	c := NewPaginationAbuse(map[time.Duration]int{time.Minute: 1})
	deepOffset := audit.Event{
		App:        "orders-api",
		Violations: &audit.ResultSummary{Items: []audit.ViolationSummary{{Message: "OFFSET 50000 exceeds the configured threshold"}}},
	}

	_, ok := c.Check(context.Background(), Telemetry{Event: deepOffset})
	assert.False(t, ok)
	v, ok := c.Check(context.Background(), Telemetry{Event: deepOffset})
	assert.True(t, ok)
	assert.Equal(t, rules.RiskMedium, v.Risk)
}

func TestPaginationAbuse_IgnoresUnrelatedFindings(t *testing.T) {
	c := NewPaginationAbuse(map[time.Duration]int{time.Minute: 1})
	_, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{
		Violations: &audit.ResultSummary{Items: []audit.ViolationSummary{{Message: "SQL contains a comment"}}},
	}})
	assert.False(t, ok)
}

func TestPlaceholder_NeverFires(t *testing.T) {
	c := NewPlaceholder("audit.n-plus-one")
	_, ok := c.Check(context.Background(), Telemetry{Event: audit.Event{}})
	assert.False(t, ok)
	assert.Equal(t, "audit.n-plus-one", c.ID())
}
