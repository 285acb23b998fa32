package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"sqlsentry/rules"
)

// isoMillis is the spec §6 timestamp layout: millisecond precision, UTC.
const isoMillis = "2006-01-02T15:04:05.000Z"

// ViolationSummary is the §6 wire shape of one accumulated rule finding.
type ViolationSummary struct {
	Risk       string `json:"risk"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ResultSummary is the §6 wire shape of a ValidationResult, or nil when
// only audit-capture is active and no validation ran.
type ResultSummary struct {
	Passed  bool               `json:"passed"`
	Highest string             `json:"highest"`
	Items   []ViolationSummary `json:"items"`
}

// SummarizeResult converts a rule Result into its wire form.
func SummarizeResult(r *rules.Result) *ResultSummary {
	if r == nil {
		return nil
	}
	items := make([]ViolationSummary, 0, len(r.Items))
	for _, v := range r.Items {
		items = append(items, ViolationSummary{
			Risk:       v.Risk.String(),
			Message:    v.Message,
			Suggestion: v.Suggestion,
		})
	}
	return &ResultSummary{Passed: r.Passed, Highest: r.Highest.String(), Items: items}
}

// Event is the immutable audit record emitted after each attempted SQL
// execution, matching the canonical JSON field set in spec §6.
type Event struct {
	Timestamp  time.Time      `json:"-"`
	App        string         `json:"app"`
	SQL        string         `json:"sql"`
	Type       string         `json:"type"`
	Params     []any          `json:"params"`
	TimeMS     float64        `json:"time_ms"`
	Rows       int64          `json:"rows"`
	DBName     string         `json:"db_name"`
	DBType     string         `json:"db_type"`
	DBVersion  string         `json:"db_version"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Violations *ResultSummary `json:"violations"`

	// seq is a per-producer-thread monotonic counter folded into the
	// event id hash, so identical SQL issued twice in the same
	// millisecond still yields distinct ids (spec §6 bus topic).
	seq uint64
}

// WithSeq returns a copy of e with seq set, for callers computing EventID
// against a caller-owned per-thread sequence counter.
func (e Event) WithSeq(seq uint64) Event {
	e.seq = seq
	return e
}

// EventID computes sha256(timestamp||app||sql||thread-seq) truncated to
// 128 bits (32 hex chars), per spec §6.
func (e Event) EventID() string {
	h := sha256.New()
	h.Write([]byte(e.Timestamp.UTC().Format(isoMillis)))
	h.Write([]byte(e.App))
	h.Write([]byte(e.SQL))
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], e.seq)
	h.Write(seqBuf[:])
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// eventWire mirrors Event for JSON purposes, substituting a pre-formatted
// timestamp string and pointer fields for error/violations. No field has
// omitempty, so a nil error or violations pointer is emitted as null (the
// field is present, value null).
type eventWire struct {
	Timestamp  string         `json:"timestamp"`
	App        string         `json:"app"`
	SQL        string         `json:"sql"`
	Type       string         `json:"type"`
	Params     []any          `json:"params"`
	TimeMS     float64        `json:"time_ms"`
	Rows       int64          `json:"rows"`
	DBName     string         `json:"db_name"`
	DBType     string         `json:"db_type"`
	DBVersion  string         `json:"db_version"`
	Success    bool           `json:"success"`
	Error      *string        `json:"error"`
	Violations *ResultSummary `json:"violations"`
}

// MarshalJSON renders e as the canonical audit log line from spec §6.
func (e Event) MarshalJSON() ([]byte, error) {
	w := eventWire{
		Timestamp:  e.Timestamp.UTC().Format(isoMillis),
		App:        e.App,
		SQL:        e.SQL,
		Type:       e.Type,
		Params:     e.Params,
		TimeMS:     e.TimeMS,
		Rows:       e.Rows,
		DBName:     e.DBName,
		DBType:     e.DBType,
		DBVersion:  e.DBVersion,
		Success:    e.Success,
		Violations: e.Violations,
	}
	if e.Error != "" {
		w.Error = &e.Error
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the canonical wire form produced by MarshalJSON,
// the inverse needed by the bus consumer to decode events read off the
// message queue. seq is not part of the wire format (it exists only to
// make EventID collision-resistant on the producer side) and is left
// zero, so EventID on a decoded event hashes seq 0 and need not equal the
// id the producer computed.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(isoMillis, w.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts
	e.App = w.App
	e.SQL = w.SQL
	e.Type = w.Type
	e.Params = w.Params
	e.TimeMS = w.TimeMS
	e.Rows = w.Rows
	e.DBName = w.DBName
	e.DBType = w.DBType
	e.DBVersion = w.DBVersion
	e.Success = w.Success
	e.Violations = w.Violations
	if w.Error != nil {
		e.Error = *w.Error
	} else {
		e.Error = ""
	}
	return nil
}
