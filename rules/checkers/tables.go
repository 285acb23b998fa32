// Package checkers implements the concrete rule library (spec §4.4): 20
// checkers across the injection, dangerous-operation, access-control,
// where-quality, and pagination groups, each built on rules.AbstractChecker.
package checkers

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sqlsentry/sqlast"
)

// tableTargets walks node (typically a *ast.TableRefsClause from a
// SELECT/UPDATE/DELETE, or a single *ast.TableRefsClause from an INSERT)
// and returns every referenced table name, unqualified (schema stripped),
// in the order they're encountered. Subqueries are walked too since a
// denied or read-only table can be hidden inside a derived table.
func tableTargets(node ast.Node) []string {
	var names []string
	sqlast.Walk(node, func(n ast.Node) (skip, ok bool) {
		if tn, isTable := n.(*ast.TableName); isTable {
			names = append(names, tn.Name.O)
		}
		return false, true
	})
	return names
}

// insertTarget returns the single target table name for an INSERT
// statement, or "" if it cannot be determined.
func insertTarget(stmt *ast.InsertStmt) string {
	names := tableTargets(stmt.Table)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// eqFold is a case-insensitive string equality helper, used throughout
// for object-name comparisons (spec §4.4: object names match
// case-insensitively).
func eqFold(a, b string) bool { return strings.EqualFold(a, b) }

// literalValue returns the underlying Go value of an ExprNode if it is a
// constant (ast.ValueExpr), and true. Returns (nil, false) for anything
// else, including parameter placeholders.
func literalValue(expr ast.ExprNode) (any, bool) {
	if isParamPlaceholder(expr) {
		return nil, false
	}
	if v, ok := expr.(ast.ValueExpr); ok {
		return v.GetValue(), true
	}
	return nil, false
}

// isParamPlaceholder reports whether expr is a bound-parameter
// placeholder ("?").
func isParamPlaceholder(expr ast.ExprNode) bool {
	_, ok := expr.(ast.ParamMarkerExpr)
	return ok
}

// isColumnRef reports whether expr references a column.
func isColumnRef(expr ast.ExprNode) bool {
	_, ok := expr.(*ast.ColumnNameExpr)
	return ok
}

// columnName returns the unqualified column name referenced by expr, or
// "" if expr is not a column reference.
func columnName(expr ast.ExprNode) string {
	if c, ok := expr.(*ast.ColumnNameExpr); ok && c.Name != nil {
		return c.Name.Name.O
	}
	return ""
}
