package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sqlsentry/rules"
)

const reportsTable = "audit_reports"

// PostgresStore is the §4.8 persistent report store: atomic per-event
// upsert by eventId, and the filtered/paginated reads the API layer
// needs.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore opens a pgx-backed *sql.DB and applies pending
// migrations from migrationsPath (a directory of golang-migrate
// `NNNN_name.up.sql`/`.down.sql` files) before returning.
func OpenPostgresStore(dsn, migrationsPath, databaseName string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("service: open postgres: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{DatabaseName: databaseName})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("service: migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, databaseName, driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("service: migration source: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		db.Close()
		return nil, fmt.Errorf("service: apply migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Upsert writes r atomically, idempotent by eventId (spec §4.8: "on
// duplicate eventId, the write is idempotent").
func (s *PostgresStore) Upsert(ctx context.Context, r ReportRecord) error {
	findings, err := json.Marshal(r.CheckerFindings)
	if err != nil {
		return fmt.Errorf("service: marshal findings: %w", err)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	query, args, err := squirrel.Insert(reportsTable).
		Columns("id", "event_id", "app_name", "sql_text", "checker_findings", "overall_risk", "overall_risk_rank", "processed_at").
		Values(r.ID, r.EventID, r.AppName, r.SQL, findings, r.OverallRisk.String(), int(r.OverallRisk), r.ProcessedAt).
		Suffix(`ON CONFLICT (event_id) DO UPDATE SET
			checker_findings = EXCLUDED.checker_findings,
			overall_risk = EXCLUDED.overall_risk,
			overall_risk_rank = EXCLUDED.overall_risk_rank,
			processed_at = EXCLUDED.processed_at`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("service: build upsert: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("service: exec upsert: %w", err)
	}
	return nil
}

// Query is the read API's filter set (spec §4.8: "{appName, timeRange,
// riskLevel, sqlPattern}").
type Query struct {
	AppName    string
	Since      time.Time
	Until      time.Time
	MinRisk    rules.RiskLevel
	SQLPattern string
	Limit      int
	Offset     int
}

// Find runs q against the store, newest first, paginated.
func (s *PostgresStore) Find(ctx context.Context, q Query) ([]ReportRecord, error) {
	builder := squirrel.Select("id", "event_id", "app_name", "sql_text", "checker_findings", "overall_risk", "processed_at").
		From(reportsTable).
		OrderBy("processed_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if q.AppName != "" {
		builder = builder.Where(squirrel.Eq{"app_name": q.AppName})
	}
	if !q.Since.IsZero() {
		builder = builder.Where(squirrel.GtOrEq{"processed_at": q.Since})
	}
	if !q.Until.IsZero() {
		builder = builder.Where(squirrel.LtOrEq{"processed_at": q.Until})
	}
	if q.MinRisk > rules.RiskSafe {
		builder = builder.Where(squirrel.GtOrEq{"overall_risk_rank": int(q.MinRisk)})
	}
	if q.SQLPattern != "" {
		builder = builder.Where(squirrel.Like{"sql_text": "%" + q.SQLPattern + "%"})
	}

	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	builder = builder.Limit(uint64(limit)).Offset(uint64(q.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("service: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("service: exec query: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var (
			r            ReportRecord
			findingsJSON []byte
			overallRisk  string
		)
		if err := rows.Scan(&r.ID, &r.EventID, &r.AppName, &r.SQL, &findingsJSON, &overallRisk, &r.ProcessedAt); err != nil {
			return nil, fmt.Errorf("service: scan row: %w", err)
		}
		if err := json.Unmarshal(findingsJSON, &r.CheckerFindings); err != nil {
			return nil, fmt.Errorf("service: unmarshal findings: %w", err)
		}
		r.OverallRisk = rules.ParseRiskLevel(overallRisk)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("service: iterate rows: %w", err)
	}
	return out, nil
}
