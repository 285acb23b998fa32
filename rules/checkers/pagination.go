package checkers

import (
	"fmt"
	"regexp"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/opcode"

	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlcontext"
)

// paginationKind classifies a SELECT's pagination strategy (spec §4.4).
type paginationKind int

const (
	paginationNone paginationKind = iota
	paginationPhysical
	paginationLogical
)

// classifyPagination inspects sel's LIMIT clause and ctx's caller-supplied
// LogicalPagination flag to decide PHYSICAL/LOGICAL/NONE. PHYSICAL takes
// precedence: a caller using cursor-style pagination but that still issued
// a LIMIT is still physically paginating this particular statement.
func classifyPagination(ctx *sqlcontext.Context, sel *ast.SelectStmt) paginationKind {
	if sel.Limit != nil {
		return paginationPhysical
	}
	if ctx.LogicalPagination {
		return paginationLogical
	}
	return paginationNone
}

// selectStmt extracts the top-level SELECT from ctx, or nil for anything
// else (set-operations and non-SELECT statements are out of scope for the
// pagination group, which only classifies a single SELECT's own LIMIT).
func selectStmt(ctx *sqlcontext.Context) *ast.SelectStmt {
	if ctx.AST == nil {
		return nil
	}
	sel, _ := ctx.AST.Primary.(*ast.SelectStmt)
	return sel
}

const ruleNoConditionPagination = "pagination.no-condition"

// NewNoConditionPagination rejects PHYSICAL pagination (LIMIT present)
// without a WHERE clause — scanning the whole table to then throw most of
// it away. A CRITICAL finding here suppresses deep-offset, since the
// offset value is moot against a full scan.
func NewNoConditionPagination(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		sel := selectStmt(ctx)
		if sel == nil || classifyPagination(ctx, sel) != paginationPhysical {
			return
		}
		if sel.Where != nil {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskCritical,
			RuleID:     ruleNoConditionPagination,
			Message:    "paginated SELECT has no WHERE clause; every page is a full table scan",
			Suggestion: "add a filter before paginating, or use keyset pagination",
		})
		acc.SetHint(ruleNoConditionPagination)
	}
	base := rules.NewAbstractChecker(ruleNoConditionPagination, enabledFunc(cfg), rules.Hooks{Select: hook})
	return &noConditionPaginationChecker{AbstractChecker: base}
}

type noConditionPaginationChecker struct{ rules.AbstractChecker }

const defaultMaxOffset = 10000

const ruleDeepOffset = "pagination.deep-offset"

// NewDeepOffset flags PHYSICAL pagination whose offset exceeds
// cfg.MaxOffset (default 10,000). An unbound `OFFSET ?` placeholder is
// skipped — it can't be evaluated statically; interceptors re-check with
// the bound value at execution time.
func NewDeepOffset(cfg config.RuleConfig) rules.Checker {
	maxOffset := cfg.MaxOffset
	if maxOffset <= 0 {
		maxOffset = defaultMaxOffset
	}
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		sel := selectStmt(ctx)
		if sel == nil || sel.Limit == nil || sel.Limit.Offset == nil {
			return
		}
		if isParamPlaceholder(sel.Limit.Offset) {
			return
		}
		offset, ok := numericLiteral(sel.Limit.Offset)
		if !ok || offset <= int64(maxOffset) {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskMedium,
			RuleID:     ruleDeepOffset,
			Message:    fmt.Sprintf("OFFSET %d exceeds the configured threshold of %d", offset, maxOffset),
			Suggestion: "switch to keyset (seek) pagination for deep pages",
		})
	}
	base := rules.NewAbstractChecker(ruleDeepOffset, enabledFunc(cfg), rules.Hooks{Select: hook})
	return &deepOffsetChecker{AbstractChecker: base}
}

type deepOffsetChecker struct{ rules.AbstractChecker }

const defaultMaxPageSize = 1000

const ruleLargePageSize = "pagination.large-page-size"

// NewLargePageSize flags a LIMIT count above cfg.MaxPageSize (default
// 1,000).
func NewLargePageSize(cfg config.RuleConfig) rules.Checker {
	maxPageSize := cfg.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = defaultMaxPageSize
	}
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		sel := selectStmt(ctx)
		if sel == nil || sel.Limit == nil || sel.Limit.Count == nil {
			return
		}
		if isParamPlaceholder(sel.Limit.Count) {
			return
		}
		count, ok := numericLiteral(sel.Limit.Count)
		if !ok || count <= int64(maxPageSize) {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskMedium,
			RuleID:     ruleLargePageSize,
			Message:    fmt.Sprintf("LIMIT %d exceeds the configured page-size threshold of %d", count, maxPageSize),
			Suggestion: "reduce the page size or stream results instead",
		})
	}
	base := rules.NewAbstractChecker(ruleLargePageSize, enabledFunc(cfg), rules.Hooks{Select: hook})
	return &largePageSizeChecker{AbstractChecker: base}
}

type largePageSizeChecker struct{ rules.AbstractChecker }

const ruleMissingOrderBy = "pagination.missing-order-by"

// NewMissingOrderBy flags PHYSICAL pagination without an ORDER BY: paged
// results are not reliably stable or sequential without one.
func NewMissingOrderBy(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		sel := selectStmt(ctx)
		if sel == nil || classifyPagination(ctx, sel) != paginationPhysical {
			return
		}
		if sel.OrderBy != nil && len(sel.OrderBy.Items) > 0 {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskLow,
			RuleID:     ruleMissingOrderBy,
			Message:    "paginated SELECT has no ORDER BY; page contents and order are not guaranteed stable",
			Suggestion: "add an ORDER BY over a deterministic key",
		})
	}
	base := rules.NewAbstractChecker(ruleMissingOrderBy, enabledFunc(cfg), rules.Hooks{Select: hook})
	return &missingOrderByChecker{AbstractChecker: base}
}

type missingOrderByChecker struct{ rules.AbstractChecker }

var defaultNarrowingColumns = regexp.MustCompile(`(?i)^(id|uuid|.*_id)$`)

const ruleNoPagination = "pagination.no-pagination"

// NewNoPagination flags a SELECT with NONE pagination (no LIMIT, no
// caller-signaled logical pagination) against a non-whitelisted table.
// Aggregate-only projections (COUNT/SUM/AVG/MIN/MAX, no plain column) are
// exempt, as are queries with an equality predicate on a "narrowing"
// column (id, uuid, *_id, or a configured pattern) since those can only
// ever match a bounded number of rows regardless of table size.
func NewNoPagination(cfg config.RuleConfig) rules.Checker {
	narrowing := cfg.LimitingFieldPatterns
	whitelist := cfg.WhitelistTables
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		sel := selectStmt(ctx)
		if sel == nil || classifyPagination(ctx, sel) != paginationNone {
			return
		}
		for _, t := range tableTargets(sel.From) {
			if _, ok := lookupTable(whitelist, t); ok {
				return
			}
		}
		if isAggregateOnlyProjection(sel) {
			return
		}
		if hasNarrowingEquality(sel.Where, narrowing) {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskMedium,
			RuleID:     ruleNoPagination,
			Message:    "SELECT has no LIMIT and no narrowing predicate",
			Suggestion: "add LIMIT or a selective filter on a unique/indexed column",
		})
	}
	base := rules.NewAbstractChecker(ruleNoPagination, enabledFunc(cfg), rules.Hooks{Select: hook})
	return &noPaginationChecker{AbstractChecker: base}
}

type noPaginationChecker struct{ rules.AbstractChecker }

// isAggregateOnlyProjection reports whether every selected field is an
// aggregate function call, with no bare column references.
func isAggregateOnlyProjection(sel *ast.SelectStmt) bool {
	if sel.Fields == nil || len(sel.Fields.Fields) == 0 {
		return false
	}
	for _, f := range sel.Fields.Fields {
		if f.WildCard != nil {
			return false
		}
		if _, isAgg := f.Expr.(*ast.AggregateFuncExpr); !isAgg {
			return false
		}
	}
	return true
}

// hasNarrowingEquality reports whether where contains a top-level equality
// (not any comparison) against a column matching the built-in id/uuid/*_id
// pattern or one of the configured patterns.
func hasNarrowingEquality(where ast.ExprNode, patterns []string) bool {
	if where == nil {
		return false
	}
	for _, cond := range splitAnd(where) {
		bin, ok := cond.(*ast.BinaryOperationExpr)
		if !ok || (bin.Op != opcode.EQ && bin.Op != opcode.NullEQ) {
			continue
		}
		var col string
		if isColumnRef(bin.L) {
			col = columnName(bin.L)
		} else if isColumnRef(bin.R) {
			col = columnName(bin.R)
		} else {
			continue
		}
		if defaultNarrowingColumns.MatchString(col) || rules.MatchAny(patterns, col, true) {
			return true
		}
	}
	return false
}

// numericLiteral returns an integer value for a constant numeric
// expression, covering the signed/unsigned/float literal encodings the
// parser produces for LIMIT/OFFSET operands.
func numericLiteral(expr ast.ExprNode) (int64, bool) {
	v, ok := literalValue(expr)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
