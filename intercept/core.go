// Package intercept implements the runtime interception surface (spec
// §4.6): a shared before/after contract that the three concrete surfaces
// (driverspy, poolproxy, ormproxy) each wrap their own data-access API
// around.
package intercept

import (
	"context"
	"sync/atomic"
	"time"

	"sqlsentry/audit"
	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlast"
	"sqlsentry/sqlcontext"
	"sqlsentry/validate"
)

// Decision is the outcome of onBeforeExecute.
type Decision int

const (
	Proceed Decision = iota
	Block
)

// pending is the "last validation" slot: one per in-flight call, threaded
// explicitly through context.Context rather than a goroutine-local,
// mirroring validate.Session's own reasoning about thread-local semantics
// not mapping onto goroutines. onAfterExecute reads it from the context
// the caller passes back in, instead of from ambient state.
type pending struct {
	ctx    *sqlcontext.Context
	result *rules.Result
}

type pendingKey struct{}

// withPending returns a context carrying the validation outcome recorded
// by onBeforeExecute, for onAfterExecute to read back. Wrappers that
// implement the §4.6 ordering requirement (audit's onAfter runs inside
// safety's onAfter) pass this context down their own call chain.
func withPending(ctx context.Context, p *pending) context.Context {
	return context.WithValue(ctx, pendingKey{}, p)
}

func pendingFrom(ctx context.Context) (*pending, bool) {
	p, ok := ctx.Value(pendingKey{}).(*pending)
	return p, ok
}

// Core is the shared before/after logic every concrete interceptor
// surface (driverspy, poolproxy, ormproxy) wraps. It owns the parser
// facade, validator, dedup session, audit writer, and enforcement policy.
type Core struct {
	Parser    *sqlast.Facade
	Validator *validate.Validator
	Session   *validate.Session
	Writer    *audit.Writer
	Log       audit.Logger

	Strategy       validate.Strategy
	BlockThreshold rules.RiskLevel

	App    string
	DBType string
	seq    atomic.Uint64
}

// NewCore wires a Core from configuration and already-constructed
// collaborators. Callers typically build one Core per application/
// data-source and share it across every interceptor surface that
// application uses.
func NewCore(cfg config.Config, parser *sqlast.Facade, orchestrator *rules.Orchestrator, writer *audit.Writer, log audit.Logger, app, dbType string) *Core {
	strictness := validate.Strict
	if cfg.Strictness == "lenient" {
		strictness = validate.Lenient
	}
	return &Core{
		Parser:         parser,
		Validator:      validate.NewValidator(orchestrator, strictness),
		Session:        validate.NewSession(cfg.DedupCacheSize, cfg.DedupTTL),
		Writer:         writer,
		Log:            log,
		Strategy:       validate.ParseStrategy(cfg.ViolationStrategy),
		BlockThreshold: rules.ParseRiskLevel(cfg.BlockThreshold),
		App:    app,
		DBType: dbType,
	}
}

func (c *Core) nextSeq() uint64 {
	return c.seq.Add(1)
}

// OnBeforeExecute parses sqlText, validates it, stashes the outcome onto
// the returned context for OnAfterExecute, and applies the configured
// enforcement strategy. Returns (Proceed, outCtx, nil) when execution may
// continue, or (Block, outCtx, err) when the caller must not execute and
// should surface err.
func (c *Core) OnBeforeExecute(ctx context.Context, sqlText, originID string, params []sqlcontext.Param, layer sqlcontext.Layer) (Decision, context.Context, error) {
	handle, parseErr := c.Parser.Parse(sqlText)
	if parseErr != nil && c.Validator.Strictness == validate.Lenient {
		handle = c.Parser.ParseLenient(sqlText)
	}
	sctx := sqlcontext.New(sqlText, handle, originID, layer, params, c.App)

	result := c.Validator.Validate(sctx, c.Session)
	p := &pending{ctx: sctx, result: result}
	outCtx := withPending(ctx, p)

	if err := validate.Enforce(c.Strategy, c.BlockThreshold, result, sqlText, originID, c.Log); err != nil {
		return Block, outCtx, err
	}
	return Proceed, outCtx, nil
}

// OnAfterExecute synthesizes an audit event from the validation result
// captured by OnBeforeExecute plus the observed execution outcome, and
// enqueues it to the audit writer. Safe to call even when OnBeforeExecute
// was never invoked on this context (e.g. a surface that only audits);
// it then records an event with no violations.
func (c *Core) OnAfterExecute(ctx context.Context, startedAt, endedAt time.Time, rowsAffected int64, execErr error) {
	p, ok := pendingFrom(ctx)
	var sctx *sqlcontext.Context
	var result *rules.Result
	if ok {
		sctx = p.ctx
		result = p.result
	} else {
		result = rules.NewResult()
	}

	sql := ""
	var paramValues []any
	kind := sqlast.KindUnknown
	if sctx != nil {
		sql = sctx.SQL
		paramValues = sctx.ParamValues()
		kind = sctx.Kind
	}

	errStr := ""
	if execErr != nil {
		errStr = execErr.Error()
	}

	evt := audit.Event{
		Timestamp:  startedAt,
		App:        c.App,
		SQL:        sql,
		Type:       kind.String(),
		Params:     paramValues,
		TimeMS:     float64(endedAt.Sub(startedAt).Microseconds()) / 1000,
		Rows:       rowsAffected,
		DBName:     c.App,
		DBType:     c.DBType,
		Success:    execErr == nil,
		Error:      errStr,
		Violations: audit.SummarizeResult(result),
	}
	evt = evt.WithSeq(c.nextSeq())

	c.Writer.Enqueue(evt)
}
