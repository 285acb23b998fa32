// Package driverspy wraps an arbitrary database/sql/driver.Connector
// (e.g. github.com/go-sql-driver/mysql's) with the intercept.Core
// before/after contract, so any driver-level caller gets safety
// enforcement and audit capture without changing its SQL issuance code.
package driverspy

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"sqlsentry/intercept"
	"sqlsentry/sqlcontext"
)

// NewMySQLConnector builds a Connector wrapping go-sql-driver/mysql's own
// driver.Connector for dsn, the concrete case this package exists for.
// Building the connector does not dial; the network round-trip only
// happens on the first Connect call, same as sql.OpenDB.
func NewMySQLConnector(dsn string, core *intercept.Core, originID func(context.Context) string) (*Connector, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	underlying, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return &Connector{Underlying: underlying, Core: core, OriginID: originID}, nil
}

// Connector wraps an underlying driver.Connector. Layer is always
// LayerDriver: this surface sits at the bottom of the stack, below any
// pool or ORM wrapper.
type Connector struct {
	Underlying driver.Connector
	Core       *intercept.Core
	OriginID   func(ctx context.Context) string
}

func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Underlying.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &spyConn{underlying: conn, connector: c}, nil
}

func (c *Connector) Driver() driver.Driver {
	return &spyDriver{underlying: c.Underlying.Driver()}
}

func (c *Connector) originID(ctx context.Context) string {
	if c.OriginID != nil {
		return c.OriginID(ctx)
	}
	return ""
}

// spyDriver satisfies driver.Driver for callers that go through
// sql.Register/sql.Open rather than driver.OpenConnector; it has no way
// to intercept per-statement calls without a Connector, so Open simply
// delegates.
type spyDriver struct{ underlying driver.Driver }

func (d *spyDriver) Open(name string) (driver.Conn, error) {
	return d.underlying.Open(name)
}

type spyConn struct {
	underlying driver.Conn
	connector  *Connector
}

func (c *spyConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.underlying.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &spyStmt{underlying: stmt, query: query, connector: c.connector}, nil
}

func (c *spyConn) Close() error { return c.underlying.Close() }

func (c *spyConn) Begin() (driver.Tx, error) {
	beginner, ok := c.underlying.(driver.ConnBeginTx)
	if ok {
		return beginner.BeginTx(context.Background(), driver.TxOptions{})
	}
	return nil, errors.New("driverspy: underlying conn does not support Begin")
}

func (c *spyConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := c.underlying.(driver.QueryerContext)
	if !ok {
		return nil, errors.New("driverspy: underlying conn is not a QueryerContext")
	}
	outCtx, err := c.before(ctx, query, args)
	started := time.Now()
	if err != nil {
		c.after(outCtx, started, -1, err)
		return nil, err
	}
	rows, execErr := queryer.QueryContext(ctx, query, args)
	c.after(outCtx, started, -1, execErr)
	return rows, execErr
}

func (c *spyConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := c.underlying.(driver.ExecerContext)
	if !ok {
		return nil, errors.New("driverspy: underlying conn is not an ExecerContext")
	}
	outCtx, err := c.before(ctx, query, args)
	started := time.Now()
	if err != nil {
		c.after(outCtx, started, -1, err)
		return nil, err
	}
	result, execErr := execer.ExecContext(ctx, query, args)
	var rows int64
	if result != nil {
		rows, _ = result.RowsAffected()
	}
	c.after(outCtx, started, rows, execErr)
	return result, execErr
}

func (c *spyConn) before(ctx context.Context, query string, args []driver.NamedValue) (context.Context, error) {
	params := make([]sqlcontext.Param, len(args))
	for i, a := range args {
		params[i] = sqlcontext.Param{Name: a.Name, Position: a.Ordinal - 1, Value: a.Value}
	}
	decision, outCtx, err := c.connector.Core.OnBeforeExecute(ctx, query, c.connector.originID(ctx), params, sqlcontext.LayerDriver)
	if decision == intercept.Block {
		return outCtx, err
	}
	return outCtx, nil
}

func (c *spyConn) after(ctx context.Context, started time.Time, rows int64, execErr error) {
	c.connector.Core.OnAfterExecute(ctx, started, time.Now(), rows, execErr)
}

type spyStmt struct {
	underlying driver.Stmt
	query      string
	connector  *Connector
}

func (s *spyStmt) Close() error { return s.underlying.Close() }
func (s *spyStmt) NumInput() int {
	return s.underlying.NumInput()
}

func (s *spyStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.underlying.Exec(args) //nolint:staticcheck // legacy path, ExecContext preferred
}

func (s *spyStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.underlying.Query(args) //nolint:staticcheck // legacy path, QueryContext preferred
}

func (s *spyStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := s.underlying.(driver.StmtExecContext)
	if !ok {
		return nil, errors.New("driverspy: underlying stmt is not a StmtExecContext")
	}
	params := make([]sqlcontext.Param, len(args))
	for i, a := range args {
		params[i] = sqlcontext.Param{Name: a.Name, Position: a.Ordinal - 1, Value: a.Value}
	}
	decision, outCtx, err := s.connector.Core.OnBeforeExecute(ctx, s.query, s.connector.originID(ctx), params, sqlcontext.LayerDriver)
	started := time.Now()
	if decision == intercept.Block {
		s.connector.Core.OnAfterExecute(outCtx, started, time.Now(), -1, err)
		return nil, err
	}
	result, execErr := execer.ExecContext(ctx, args)
	var rows int64
	if result != nil {
		rows, _ = result.RowsAffected()
	}
	s.connector.Core.OnAfterExecute(outCtx, started, time.Now(), rows, execErr)
	return result, execErr
}
