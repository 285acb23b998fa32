// Package sqlcontext defines the immutable per-attempt statement context
// that flows through the validation pipeline.
package sqlcontext

import "sqlsentry/sqlast"

// Layer identifies which execution surface observed the SQL.
type Layer string

const (
	LayerApp    Layer = "APP"
	LayerORM    Layer = "ORM"
	LayerPool   Layer = "POOL"
	LayerDriver Layer = "DRIVER"
)

// Param is one bound parameter. Name is empty for positional parameters,
// in which case Position records the 0-based ordinal so binding order is
// preserved even though the map carries no inherent order.
type Param struct {
	Name     string
	Position int
	Value    any
}

// Context is the immutable per-attempt record passed to the validator and
// on to every rule checker. It is constructed once per validate+execute
// attempt and never mutated afterward; rule checkers must treat it and its
// AST handle as read-only.
type Context struct {
	// SQL is the raw SQL text as issued by the application.
	SQL string
	// AST is the parsed handle, or nil if parsing failed in strict mode.
	AST *sqlast.Handle
	// Kind is AST.Kind, duplicated here so callers that never touch the
	// AST (e.g. audit-only capture) still have the command kind.
	Kind sqlast.Kind
	// OriginID is a stable, application-supplied label identifying the
	// code site that issued the SQL, e.g. "OrderMapper.purgeAll". Used for
	// glob-style exemption matching; matched case-sensitively.
	OriginID string
	// Layer is the execution surface that observed this statement.
	Layer Layer
	// Params is the parameter binding, order preserved via Param.Position
	// for positional bindings.
	Params []Param
	// DataSource is the logical data-source name (not a connection
	// string), used for per-datasource exemptions and audit grouping.
	DataSource string
	// LogicalPagination signals that pagination is being performed outside
	// the SQL itself (e.g. a caller-side cursor), for the pagination
	// rule group's PHYSICAL/LOGICAL/NONE classification.
	LogicalPagination bool
}

// New constructs a Context. It never re-parses; callers are expected to
// have already produced the AST handle via a shared sqlast.Facade so the
// parse-once invariant holds across every checker that sees this Context.
func New(sql string, ast *sqlast.Handle, originID string, layer Layer, params []Param, dataSource string) *Context {
	kind := sqlast.KindUnknown
	if ast != nil {
		kind = ast.Kind
	}
	return &Context{
		SQL:        sql,
		AST:        ast,
		Kind:       kind,
		OriginID:   originID,
		Layer:      layer,
		Params:     params,
		DataSource: dataSource,
	}
}

// ParamValues returns the bound values in positional order, for drivers
// that need a plain []any (e.g. parameter substitution when building the
// audit event's SQL text).
func (c *Context) ParamValues() []any {
	if len(c.Params) == 0 {
		return nil
	}
	out := make([]any, len(c.Params))
	for _, p := range c.Params {
		if p.Position >= 0 && p.Position < len(out) {
			out[p.Position] = p.Value
		}
	}
	return out
}
