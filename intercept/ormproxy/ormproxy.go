// Package ormproxy adapts an ORM's pre/post-statement hook pair to the
// intercept.Core contract. Deliberately ORM-library-agnostic (spec §1
// excludes "ORM-specific glue beyond the contracts the core consumes");
// callers register Before/After as their ORM's own plugin callbacks.
package ormproxy

import (
	"context"
	"time"

	"sqlsentry/intercept"
	"sqlsentry/sqlcontext"
)

// Hooks is what an ORM plugin registers: Before runs in the ORM's
// pre-statement callback, After in its post-statement callback. The
// caller threads the returned context.Context through the ORM's own
// per-statement scope value (most ORM hook APIs expose one) so After can
// retrieve the validation outcome Before recorded.
type Hooks struct {
	Core     *intercept.Core
	OriginID func(ctx context.Context) string
}

// NewHooks builds a Hooks bound to core, identifying the call site via
// originID (e.g. the ORM's mapped entity/method name).
func NewHooks(core *intercept.Core, originID func(ctx context.Context) string) *Hooks {
	return &Hooks{Core: core, OriginID: originID}
}

// Before is the ORM's pre-statement hook. It returns the context to carry
// forward (do not discard it — After needs it) and an error when the
// statement must not run.
func (h *Hooks) Before(ctx context.Context, sqlText string, params []sqlcontext.Param) (context.Context, error) {
	origin := ""
	if h.OriginID != nil {
		origin = h.OriginID(ctx)
	}
	decision, outCtx, err := h.Core.OnBeforeExecute(ctx, sqlText, origin, params, sqlcontext.LayerORM)
	if decision == intercept.Block {
		return outCtx, err
	}
	return outCtx, nil
}

// After is the ORM's post-statement hook.
func (h *Hooks) After(ctx context.Context, started time.Time, rowsAffected int64, execErr error) {
	h.Core.OnAfterExecute(ctx, started, time.Now(), rowsAffected, execErr)
}
