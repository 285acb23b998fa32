package checkers

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/opcode"

	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlcontext"
)

// whereClause extracts the WHERE expression and write-target table names
// from an UPDATE/DELETE statement context; ok is false for anything else.
func whereClause(ctx *sqlcontext.Context) (where ast.ExprNode, tables []string, ok bool) {
	if ctx.AST == nil || ctx.AST.Primary == nil {
		return nil, nil, false
	}
	switch stmt := ctx.AST.Primary.(type) {
	case *ast.UpdateStmt:
		return stmt.Where, tableTargets(stmt.TableRefs), true
	case *ast.DeleteStmt:
		return stmt.Where, tableTargets(stmt.TableRefs), true
	default:
		return nil, nil, false
	}
}

const ruleNoWhere = "where.no-where"

// NewNoWhere rejects UPDATE/DELETE without a WHERE clause, unless the
// target table matches an exemption glob.
func NewNoWhere(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		where, tables, ok := whereClause(ctx)
		if !ok || where != nil {
			return
		}
		for _, t := range tables {
			if rules.MatchAny(cfg.Exemptions, t, true) {
				return
			}
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskCritical,
			RuleID:     ruleNoWhere,
			Message:    fmt.Sprintf("UPDATE/DELETE against %v has no WHERE clause", tables),
			Suggestion: "add a WHERE clause, or exempt the table if the full-table operation is intentional",
		})
	}
	base := rules.NewAbstractChecker(ruleNoWhere, enabledFunc(cfg), rules.Hooks{Update: hook, Delete: hook})
	return &noWhereChecker{AbstractChecker: base}
}

type noWhereChecker struct{ rules.AbstractChecker }

const ruleDummyPredicate = "where.dummy-predicate"

// NewDummyPredicate rejects WHERE 1=1, WHERE true, WHERE 'x'='x', and any
// top-level comparison between two constants, on UPDATE/DELETE/SELECT. A
// real predicate references at least one column or bound parameter.
func NewDummyPredicate(cfg config.RuleConfig) rules.Checker {
	check := func(ctx *sqlcontext.Context, acc *rules.Result, where ast.ExprNode) {
		if where == nil {
			return
		}
		for _, cond := range splitAnd(where) {
			if isDummyPredicate(cond) {
				acc.Add(rules.Violation{
					Risk:       rules.RiskCritical,
					RuleID:     ruleDummyPredicate,
					Message:    "WHERE clause contains a predicate that is always true",
					Suggestion: "replace the placeholder condition with a real filter",
				})
				return
			}
		}
	}
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		where, _, ok := whereClause(ctx)
		if ok {
			check(ctx, acc, where)
			return
		}
		if sel, isSelect := ctx.AST.Primary.(*ast.SelectStmt); isSelect {
			check(ctx, acc, sel.Where)
		}
	}
	base := rules.NewAbstractChecker(ruleDummyPredicate, enabledFunc(cfg), rules.Hooks{
		Select: hook, Update: hook, Delete: hook,
	})
	return &dummyPredicateChecker{AbstractChecker: base}
}

type dummyPredicateChecker struct{ rules.AbstractChecker }

// splitAnd flattens a chain of top-level AND-ed conditions into a slice,
// so a compound `WHERE x = ? AND 1 = 1` still trips on its dummy arm.
func splitAnd(expr ast.ExprNode) []ast.ExprNode {
	bin, ok := expr.(*ast.BinaryOperationExpr)
	if !ok || bin.Op != opcode.LogicAnd {
		return []ast.ExprNode{expr}
	}
	return append(splitAnd(bin.L), splitAnd(bin.R)...)
}

// isDummyPredicate reports whether cond is a comparison between two
// constants (or a bare boolean/numeric literal), i.e. it can never depend
// on row data.
func isDummyPredicate(cond ast.ExprNode) bool {
	switch v := cond.(type) {
	case ast.ValueExpr:
		val, _ := literalValue(v)
		return isTruthyLiteral(val)
	case *ast.ParenthesesExpr:
		return isDummyPredicate(v.Expr)
	case *ast.BinaryOperationExpr:
		if !isComparisonOp(v.Op) {
			return false
		}
		_, lConst := literalValue(v.L)
		_, rConst := literalValue(v.R)
		return lConst && rConst
	default:
		return false
	}
}

func isComparisonOp(op opcode.Op) bool {
	switch op {
	case opcode.EQ, opcode.NE, opcode.LT, opcode.LE, opcode.GT, opcode.GE, opcode.NullEQ:
		return true
	default:
		return false
	}
}

func isTruthyLiteral(v any) bool {
	switch n := v.(type) {
	case bool:
		return n
	case int64:
		return n != 0
	case uint64:
		return n != 0
	case float64:
		return n != 0
	case string:
		return n != "" && n != "0"
	default:
		return v != nil
	}
}

const ruleBlacklistFields = "where.blacklist-fields"

// NewBlacklistFields rejects an UPDATE/DELETE WHERE clause whose only
// non-constant conditions reference a column matching a configured
// low-selectivity blacklist pattern (e.g. "deleted", "status").
func NewBlacklistFields(cfg config.RuleConfig) rules.Checker {
	patterns := cfg.BlacklistFields
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if len(patterns) == 0 {
			return
		}
		where, tables, ok := whereClause(ctx)
		if !ok || where == nil {
			return
		}
		conds := splitAnd(where)
		columns := make([]string, 0, len(conds))
		allBlacklisted := true
		for _, cond := range conds {
			col, isColumnCond := columnOperand(cond)
			if !isColumnCond {
				continue
			}
			columns = append(columns, col)
			if !rules.MatchAny(patterns, col, true) {
				allBlacklisted = false
			}
		}
		if len(columns) == 0 || !allBlacklisted {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskMedium,
			RuleID:     ruleBlacklistFields,
			Message:    fmt.Sprintf("WHERE on %v filters only on low-selectivity columns %v", tables, columns),
			Suggestion: "add a selective condition (primary key, indexed business key)",
		})
	}
	base := rules.NewAbstractChecker(ruleBlacklistFields, enabledFunc(cfg), rules.Hooks{Update: hook, Delete: hook})
	return &blacklistFieldsChecker{AbstractChecker: base}
}

type blacklistFieldsChecker struct{ rules.AbstractChecker }

// columnOperand returns the column name of a top-level `column <op> value`
// comparison, if cond is exactly that shape.
func columnOperand(cond ast.ExprNode) (string, bool) {
	bin, ok := cond.(*ast.BinaryOperationExpr)
	if !ok || !isComparisonOp(bin.Op) {
		return "", false
	}
	if isColumnRef(bin.L) {
		return columnName(bin.L), true
	}
	if isColumnRef(bin.R) {
		return columnName(bin.R), true
	}
	return "", false
}

const ruleWhitelistFields = "where.whitelist-fields"

// NewWhitelistFields requires that, for a configured set of tables, the
// WHERE clause references at least one of the table's mandatory fields.
func NewWhitelistFields(cfg config.RuleConfig) rules.Checker {
	mandatory := cfg.WhitelistTables
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if len(mandatory) == 0 {
			return
		}
		where, tables, ok := whereClause(ctx)
		if !ok {
			return
		}
		referenced := map[string]bool{}
		for _, cond := range splitAnd(where) {
			if col, isColumnCond := columnOperand(cond); isColumnCond {
				referenced[strings.ToLower(col)] = true
			}
		}
		for _, t := range tables {
			fields, configured := lookupTable(mandatory, t)
			if !configured {
				continue
			}
			satisfied := false
			for _, f := range fields {
				if referenced[strings.ToLower(f)] {
					satisfied = true
					break
				}
			}
			if !satisfied {
				acc.Add(rules.Violation{
					Risk:       rules.RiskMedium,
					RuleID:     ruleWhitelistFields,
					Message:    fmt.Sprintf("WHERE on %q does not reference any of its mandatory fields %v", t, fields),
					Suggestion: "include at least one mandatory field in the WHERE clause",
				})
			}
		}
	}
	base := rules.NewAbstractChecker(ruleWhitelistFields, enabledFunc(cfg), rules.Hooks{Update: hook, Delete: hook})
	return &whitelistFieldsChecker{AbstractChecker: base}
}

type whitelistFieldsChecker struct{ rules.AbstractChecker }

func lookupTable(m map[string][]string, table string) ([]string, bool) {
	for k, v := range m {
		if eqFold(k, table) {
			return v, true
		}
	}
	return nil, false
}
