package validate

import (
	"fmt"

	"sqlsentry/audit"
	"sqlsentry/rules"
)

// Strategy is the violation strategy enum from spec §3.
type Strategy int

const (
	StrategyBlock Strategy = iota
	StrategyWarn
	StrategyLog
)

// ParseStrategy parses the configuration-surface spelling, defaulting to
// StrategyBlock for an unrecognized value (fail closed).
func ParseStrategy(s string) Strategy {
	switch s {
	case "WARN":
		return StrategyWarn
	case "LOG":
		return StrategyLog
	default:
		return StrategyBlock
	}
}

// DefaultBlockThreshold is blockThreshold's default (spec §6).
const DefaultBlockThreshold = rules.RiskHigh

// maxSQLTruncate is the §6 error-payload SQL truncation length.
const maxSQLTruncate = 2048

// SafetyViolation is raised to the application when strategy is BLOCK and
// the result's highest risk meets or exceeds the configured threshold
// (spec §7). It always carries the full violation list.
type SafetyViolation struct {
	Code       string
	Violations []rules.Violation
	SQL        string
	OriginID   string
}

func (e *SafetyViolation) Error() string {
	return fmt.Sprintf("sqlsentry: %s: %d violation(s) for origin %q", e.Code, len(e.Violations), e.OriginID)
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLTruncate {
		return sql
	}
	return sql[:maxSQLTruncate]
}

// Enforce applies strategy to result. BLOCK returns a *SafetyViolation
// when result.Highest >= threshold; otherwise (or for WARN/LOG) it
// returns nil, logging at the severity that matches strategy. Callers
// (interceptors) invoke this after Validate, never the Validator itself
// (spec §4.5: "strategy application is not inside the validator").
func Enforce(strategy Strategy, threshold rules.RiskLevel, result *rules.Result, sql, originID string, log audit.Logger) error {
	if log == nil {
		log = audit.Discard{}
	}
	if len(result.Items) == 0 {
		return nil
	}
	switch strategy {
	case StrategyBlock:
		if result.Highest >= threshold {
			return &SafetyViolation{
				Code:       "SQL_SAFETY_VIOLATION",
				Violations: result.Items,
				SQL:        truncateSQL(sql),
				OriginID:   originID,
			}
		}
		log.WithField("origin", originID).Warn("sqlsentry: violations below block threshold")
		return nil
	case StrategyWarn:
		log.WithField("origin", originID).Warn("sqlsentry: violations detected")
		return nil
	default: // StrategyLog
		log.WithField("origin", originID).Info("sqlsentry: violations detected")
		return nil
	}
}
