package checkers

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlast"
	"sqlsentry/sqlcontext"
)

const ruleDDL = "dangerous.ddl"

// ddlStatementName classifies a DDL statement node for messaging and for
// AllowedOperations matching.
func ddlStatementName(n ast.Node) string {
	switch n.(type) {
	case *ast.CreateTableStmt, *ast.CreateViewStmt, *ast.CreateIndexStmt, *ast.CreateDatabaseStmt:
		return "CREATE"
	case *ast.AlterTableStmt, *ast.AlterDatabaseStmt:
		return "ALTER"
	case *ast.DropTableStmt, *ast.DropDatabaseStmt, *ast.DropIndexStmt, *ast.DropViewStmt:
		return "DROP"
	case *ast.TruncateTableStmt:
		return "TRUNCATE"
	default:
		return ""
	}
}

// NewDDL rejects CREATE/ALTER/DROP/TRUNCATE unless the statement's keyword
// is in cfg.AllowedOperations.
func NewDDL(cfg config.RuleConfig) rules.Checker {
	allowed := cfg.AllowedOperations
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || ctx.AST.Primary == nil {
			return
		}
		name := ddlStatementName(ctx.AST.Primary)
		if name == "" {
			return
		}
		if rules.MatchAny(allowed, name, true) {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskCritical,
			RuleID:     ruleDDL,
			Message:    fmt.Sprintf("%s statement is not in the allowed-operations list", name),
			Suggestion: "run schema changes through a migration tool, not application code",
		})
	}
	base := rules.NewAbstractChecker(ruleDDL, enabledFunc(cfg), rules.Hooks{Other: hook})
	return &ddlChecker{AbstractChecker: base}
}

type ddlChecker struct{ rules.AbstractChecker }

const ruleDangerousFunction = "dangerous.function"

// NewDangerousFunction rejects function-call nodes whose name
// (case-insensitive) matches cfg.DeniedFunctions, searching recursively
// through nested functions, subqueries, CASE arms, ORDER BY, and HAVING.
// Rather than the AST's own top-down Accept dispatch (which has no notion
// of "already visited"), the recursive descent here goes through
// sqlast.AcyclicWalk over an explicit, hand-enumerated child list
// (exprChildren), so a malformed or adversarial tree that shares a node
// between two parents can't recurse forever.
func NewDangerousFunction(cfg config.RuleConfig) rules.Checker {
	denied := cfg.DeniedFunctions
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || ctx.AST.Primary == nil || len(denied) == 0 {
			return
		}
		sqlast.AcyclicWalk[ast.Node](ctx.AST.Primary, exprChildren, func(n ast.Node) {
			fn, ok := n.(*ast.FuncCallExpr)
			if !ok {
				return
			}
			name := fn.FnName.O
			if rules.MatchAny(denied, name, true) {
				acc.Add(rules.Violation{
					Risk:       rules.RiskCritical,
					RuleID:     ruleDangerousFunction,
					Message:    fmt.Sprintf("call to denied function %s()", strings.ToUpper(name)),
					Suggestion: "remove the call or add it to an explicit exemption",
				})
			}
		})
	}
	base := rules.NewAbstractChecker(ruleDangerousFunction, enabledFunc(cfg), rules.Hooks{
		Select: hook, Update: hook, Delete: hook, Insert: hook, Other: hook,
	})
	return &dangerousFunctionChecker{AbstractChecker: base}
}

type dangerousFunctionChecker struct{ rules.AbstractChecker }

// exprChildren hand-enumerates the direct children of the expression and
// statement node types that can carry a nested function call: arguments,
// CASE arms, parenthesized/unary/binary sub-expressions, IN/BETWEEN
// operands, correlated subqueries, and a SELECT's own WHERE/HAVING/
// projection/ORDER BY. Anything else is treated as a leaf.
func exprChildren(n ast.Node) []ast.Node {
	switch v := n.(type) {
	case *ast.FuncCallExpr:
		out := make([]ast.Node, 0, len(v.Args))
		for _, a := range v.Args {
			out = append(out, a)
		}
		return out
	case *ast.AggregateFuncExpr:
		out := make([]ast.Node, 0, len(v.Args))
		for _, a := range v.Args {
			out = append(out, a)
		}
		return out
	case *ast.CaseExpr:
		var out []ast.Node
		if v.Value != nil {
			out = append(out, v.Value)
		}
		for _, w := range v.WhenClauses {
			if w == nil {
				continue
			}
			if w.Expr != nil {
				out = append(out, w.Expr)
			}
			if w.Result != nil {
				out = append(out, w.Result)
			}
		}
		if v.ElseClause != nil {
			out = append(out, v.ElseClause)
		}
		return out
	case *ast.ParenthesesExpr:
		if v.Expr != nil {
			return []ast.Node{v.Expr}
		}
	case *ast.BinaryOperationExpr:
		var out []ast.Node
		if v.L != nil {
			out = append(out, v.L)
		}
		if v.R != nil {
			out = append(out, v.R)
		}
		return out
	case *ast.UnaryOperationExpr:
		if v.V != nil {
			return []ast.Node{v.V}
		}
	case *ast.IsNullExpr:
		if v.Expr != nil {
			return []ast.Node{v.Expr}
		}
	case *ast.BetweenExpr:
		var out []ast.Node
		if v.Expr != nil {
			out = append(out, v.Expr)
		}
		if v.Left != nil {
			out = append(out, v.Left)
		}
		if v.Right != nil {
			out = append(out, v.Right)
		}
		return out
	case *ast.PatternInExpr:
		var out []ast.Node
		if v.Expr != nil {
			out = append(out, v.Expr)
		}
		for _, e := range v.List {
			out = append(out, e)
		}
		if v.Sel != nil {
			out = append(out, v.Sel)
		}
		return out
	case *ast.SubqueryExpr:
		if v.Query != nil {
			return []ast.Node{v.Query}
		}
	case *ast.SelectStmt:
		var out []ast.Node
		if v.Where != nil {
			out = append(out, v.Where)
		}
		if v.Having != nil && v.Having.Expr != nil {
			out = append(out, v.Having.Expr)
		}
		if v.Fields != nil {
			for _, f := range v.Fields.Fields {
				if f != nil && f.Expr != nil {
					out = append(out, f.Expr)
				}
			}
		}
		if v.OrderBy != nil {
			for _, item := range v.OrderBy.Items {
				if item != nil && item.Expr != nil {
					out = append(out, item.Expr)
				}
			}
		}
		return out
	case *ast.UpdateStmt:
		var out []ast.Node
		if v.Where != nil {
			out = append(out, v.Where)
		}
		for _, a := range v.List {
			if a != nil && a.Expr != nil {
				out = append(out, a.Expr)
			}
		}
		return out
	case *ast.DeleteStmt:
		if v.Where != nil {
			return []ast.Node{v.Where}
		}
	case *ast.InsertStmt:
		var out []ast.Node
		for _, row := range v.Lists {
			for _, e := range row {
				out = append(out, e)
			}
		}
		if v.Select != nil {
			out = append(out, v.Select)
		}
		return out
	}
	return nil
}

const ruleStoredProcedure = "dangerous.stored-procedure"

// NewStoredProcedure detects CALL/EXEC/EXECUTE statements and reports a
// HIGH (not CRITICAL) finding. The rule has no strategy of its own: the
// global strategy applies, so with the default BLOCK strategy and
// blockThreshold of HIGH the call is blocked, not merely warned about.
func NewStoredProcedure(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || ctx.AST.Primary == nil {
			return
		}
		call, ok := ctx.AST.Primary.(*ast.CallStmt)
		if !ok {
			return
		}
		name := ""
		if call.FuncCall != nil {
			name = call.FuncCall.FnName.O
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskHigh,
			RuleID:     ruleStoredProcedure,
			Message:    fmt.Sprintf("stored-procedure invocation: %s", name),
			Suggestion: "review the procedure's own side effects; consider WARN instead of BLOCK",
		})
	}
	base := rules.NewAbstractChecker(ruleStoredProcedure, enabledFunc(cfg), rules.Hooks{Other: hook})
	return &storedProcedureChecker{AbstractChecker: base}
}

type storedProcedureChecker struct{ rules.AbstractChecker }
