// Package poolproxy wraps a connection-pool-level executor with the
// intercept.Core contract. It is deliberately pool-library-agnostic (spec
// §1 excludes "connection-pool-specific glue beyond the contracts the
// core consumes"): callers adapt their own pool's checkout/execute
// hooks to the Executor interface below.
package poolproxy

import (
	"context"
	"time"

	"sqlsentry/intercept"
	"sqlsentry/sqlcontext"
)

// Executor is the minimal shape a connection pool's execute path must
// satisfy to be wrapped: issue one statement with bound parameters and
// report rows affected.
type Executor interface {
	Execute(ctx context.Context, sql string, args []any) (rowsAffected int64, err error)
}

// Proxy wraps an Executor with the interceptor contract at LayerPool.
type Proxy struct {
	Underlying Executor
	Core       *intercept.Core
}

// NewProxy builds a Proxy. core.App/core.DBType identify the
// application/pool this Proxy instruments for audit grouping.
func NewProxy(underlying Executor, core *intercept.Core) *Proxy {
	return &Proxy{Underlying: underlying, Core: core}
}

// Execute runs onBeforeExecute, then (if not blocked) the underlying
// pool's Execute, then onAfterExecute — the §4.6 sequence for a single
// execution surface with no nested wrapper.
func (p *Proxy) Execute(ctx context.Context, sqlText, originID string, params []sqlcontext.Param) (int64, error) {
	decision, outCtx, err := p.Core.OnBeforeExecute(ctx, sqlText, originID, params, sqlcontext.LayerPool)
	started := time.Now()
	if decision == intercept.Block {
		p.Core.OnAfterExecute(outCtx, started, time.Now(), -1, err)
		return 0, err
	}

	args := make([]any, len(params))
	for i, prm := range params {
		args[i] = prm.Value
	}
	rows, execErr := p.Underlying.Execute(ctx, sqlText, args)
	p.Core.OnAfterExecute(outCtx, started, time.Now(), rows, execErr)
	return rows, execErr
}
