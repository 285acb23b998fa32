package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlsentry/audit"
	"sqlsentry/rules"
)

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyWarn, ParseStrategy("WARN"))
	assert.Equal(t, StrategyLog, ParseStrategy("LOG"))
	assert.Equal(t, StrategyBlock, ParseStrategy("BLOCK"))
	assert.Equal(t, StrategyBlock, ParseStrategy("bogus"))
}

func cleanResult() *rules.Result { return rules.NewResult() }

func dirtyResult(risk rules.RiskLevel) *rules.Result {
	r := rules.NewResult()
	r.Add(rules.Violation{Risk: risk, RuleID: "x"})
	return r
}

func TestEnforce_NoViolationsNeverErrors(t *testing.T) {
	err := Enforce(StrategyBlock, rules.RiskHigh, cleanResult(), "SELECT 1", "origin", nil)
	assert.NoError(t, err)
}

func TestEnforce_BlockAboveThreshold(t *testing.T) {
	res := dirtyResult(rules.RiskCritical)
	err := Enforce(StrategyBlock, rules.RiskHigh, res, "SELECT 1", "origin", nil)
	require.Error(t, err)
	var sv *SafetyViolation
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "SQL_SAFETY_VIOLATION", sv.Code)
	assert.Equal(t, "origin", sv.OriginID)
	assert.Len(t, sv.Violations, 1)
}

func TestEnforce_BlockBelowThresholdWarnsOnly(t *testing.T) {
	res := dirtyResult(rules.RiskLow)
	err := Enforce(StrategyBlock, rules.RiskHigh, res, "SELECT 1", "origin", nil)
	assert.NoError(t, err)
}

func TestEnforce_WarnNeverBlocks(t *testing.T) {
	res := dirtyResult(rules.RiskCritical)
	err := Enforce(StrategyWarn, rules.RiskHigh, res, "SELECT 1", "origin", nil)
	assert.NoError(t, err)
}

func TestEnforce_LogNeverBlocks(t *testing.T) {
	res := dirtyResult(rules.RiskCritical)
	err := Enforce(StrategyLog, rules.RiskHigh, res, "SELECT 1", "origin", nil)
	assert.NoError(t, err)
}

func TestEnforce_TruncatesSQLInViolation(t *testing.T) {
	long := make([]byte, maxSQLTruncate+100)
	for i := range long {
		long[i] = 'a'
	}
	res := dirtyResult(rules.RiskCritical)
	err := Enforce(StrategyBlock, rules.RiskHigh, res, string(long), "origin", nil)
	var sv *SafetyViolation
	require.ErrorAs(t, err, &sv)
	assert.Len(t, sv.SQL, maxSQLTruncate)
}

func TestSafetyViolation_Error(t *testing.T) {
	sv := &SafetyViolation{Code: "SQL_SAFETY_VIOLATION", Violations: []rules.Violation{{}}, OriginID: "o"}
	assert.Contains(t, sv.Error(), "SQL_SAFETY_VIOLATION")
	assert.Contains(t, sv.Error(), "o")
}

type recordingLogger struct {
	audit.Discard
	warned int
	infoed int
}

func (l *recordingLogger) WithField(string, any) audit.Logger { return l }
func (l *recordingLogger) Warn(...any)                        { l.warned++ }
func (l *recordingLogger) Info(...any)                        { l.infoed++ }

func TestEnforce_LogsThroughProvidedLogger(t *testing.T) {
	log := &recordingLogger{}
	Enforce(StrategyLog, rules.RiskHigh, dirtyResult(rules.RiskLow), "SELECT 1", "o", log)
	assert.Equal(t, 1, log.infoed)

	log2 := &recordingLogger{}
	Enforce(StrategyWarn, rules.RiskHigh, dirtyResult(rules.RiskLow), "SELECT 1", "o", log2)
	assert.Equal(t, 1, log2.warned)
}
