// Package service implements the post-execution audit service (spec
// §4.8): a message-bus consumer, an independent pool of audit checkers
// that grade events using execution telemetry, a persistent report
// store, and a read API.
package service

import (
	"time"

	"github.com/google/uuid"

	"sqlsentry/rules"
)

// CheckerFinding is one audit checker's verdict on an event.
type CheckerFinding struct {
	CheckerID string          `json:"checkerId"`
	Risk      rules.RiskLevel `json:"risk"`
	Message   string          `json:"message"`
	TimedOut  bool            `json:"timedOut"`
}

// ReportRecord is the aggregated outcome of running every enabled audit
// checker over one event (spec §4.8).
type ReportRecord struct {
	ID              uuid.UUID        `json:"id"`
	EventID         string           `json:"eventId"`
	AppName         string           `json:"appName"`
	SQL             string           `json:"sql"`
	CheckerFindings []CheckerFinding `json:"checkerFindings"`
	OverallRisk     rules.RiskLevel  `json:"overallRisk"`
	ProcessedAt     time.Time        `json:"processedAtTs"`
}

// NewReportRecord aggregates findings into a record, taking the highest
// risk level across findings as overall risk.
func NewReportRecord(eventID, appName, sql string, findings []CheckerFinding, processedAt time.Time) ReportRecord {
	overall := rules.RiskSafe
	for _, f := range findings {
		if f.Risk > overall {
			overall = f.Risk
		}
	}
	return ReportRecord{
		EventID:         eventID,
		AppName:         appName,
		SQL:             sql,
		CheckerFindings: findings,
		OverallRisk:     overall,
		ProcessedAt:     processedAt,
	}
}
