package checkers

import (
	"fmt"

	"github.com/pingcap/tidb/parser/ast"

	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlcontext"
)

const ruleMetadataStatement = "access.metadata-statement"

// NewMetadataStatement detects SHOW/DESCRIBE/USE at the statement root.
func NewMetadataStatement(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || ctx.AST.Primary == nil {
			return
		}
		var kind string
		switch ctx.AST.Primary.(type) {
		case *ast.ShowStmt:
			kind = "SHOW"
		case *ast.UseStmt:
			kind = "USE"
		case *ast.ExplainStmt:
			kind = "DESCRIBE"
		default:
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskMedium,
			RuleID:     ruleMetadataStatement,
			Message:    fmt.Sprintf("%s is a metadata statement, not application traffic", kind),
			Suggestion: "issue metadata statements out-of-band, not through the application's data path",
		})
	}
	base := rules.NewAbstractChecker(ruleMetadataStatement, enabledFunc(cfg), rules.Hooks{Other: hook})
	return &metadataStatementChecker{AbstractChecker: base}
}

type metadataStatementChecker struct{ rules.AbstractChecker }

const ruleSetStatement = "access.set-statement"

// NewSetStatement detects `SET ...` at the statement root, disambiguated
// from `UPDATE ... SET` by node type rather than keyword scanning: the
// parser already tells the two apart (ast.SetStmt vs ast.UpdateStmt), so
// this rule never needs to inspect keyword position itself.
func NewSetStatement(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || ctx.AST.Primary == nil {
			return
		}
		set, ok := ctx.AST.Primary.(*ast.SetStmt)
		if !ok {
			return
		}
		names := make([]string, 0, len(set.Variables))
		for _, v := range set.Variables {
			if v != nil {
				names = append(names, v.Name)
			}
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskMedium,
			RuleID:     ruleSetStatement,
			Message:    fmt.Sprintf("SET statement changes session/global state: %v", names),
			Suggestion: "configure session variables at the connection-pool level, not per-statement",
		})
	}
	base := rules.NewAbstractChecker(ruleSetStatement, enabledFunc(cfg), rules.Hooks{Other: hook})
	return &setStatementChecker{AbstractChecker: base}
}

type setStatementChecker struct{ rules.AbstractChecker }

// writeTargets returns the table names a statement writes to (UPDATE,
// DELETE, INSERT), for the denied-table/read-only-table rules.
func writeTargets(ctx *sqlcontext.Context) []string {
	if ctx.AST == nil || ctx.AST.Primary == nil {
		return nil
	}
	switch stmt := ctx.AST.Primary.(type) {
	case *ast.UpdateStmt:
		return tableTargets(stmt.TableRefs)
	case *ast.DeleteStmt:
		return tableTargets(stmt.TableRefs)
	case *ast.InsertStmt:
		if name := insertTarget(stmt); name != "" {
			return []string{name}
		}
	}
	return nil
}

// readTargets returns every table name referenced anywhere in the
// statement (FROM/JOIN, including nested subqueries), plus write targets
// for non-SELECT statements — used by the denied-table rule, which applies
// to FROM/JOIN/UPDATE/DELETE/INSERT targets alike.
func readTargets(ctx *sqlcontext.Context) []string {
	if ctx.AST == nil || ctx.AST.Primary == nil {
		return nil
	}
	switch stmt := ctx.AST.Primary.(type) {
	case *ast.SelectStmt:
		return tableTargets(stmt)
	case *ast.UpdateStmt:
		return tableTargets(stmt)
	case *ast.DeleteStmt:
		return tableTargets(stmt)
	case *ast.InsertStmt:
		names := tableTargets(stmt.Table)
		if stmt.Select != nil {
			if sel, ok := stmt.Select.(ast.Node); ok {
				names = append(names, tableTargets(sel)...)
			}
		}
		return names
	}
	return nil
}

const ruleDeniedTable = "access.denied-table"

// NewDeniedTable rejects FROM/JOIN/UPDATE/DELETE/INSERT targets whose name
// matches a glob pattern in cfg.DeniedTables, walking through nested FROM
// items so a denied table hidden inside a derived table is still caught.
func NewDeniedTable(cfg config.RuleConfig) rules.Checker {
	denied := cfg.DeniedTables
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if len(denied) == 0 {
			return
		}
		for _, name := range readTargets(ctx) {
			if rules.MatchAny(denied, name, true) {
				acc.Add(rules.Violation{
					Risk:       rules.RiskHigh,
					RuleID:     ruleDeniedTable,
					Message:    fmt.Sprintf("table %q matches a denied-tables pattern", name),
					Suggestion: "access this table through an approved service, not direct SQL",
				})
			}
		}
	}
	base := rules.NewAbstractChecker(ruleDeniedTable, enabledFunc(cfg), rules.Hooks{
		Select: hook, Update: hook, Delete: hook, Insert: hook,
	})
	return &deniedTableChecker{AbstractChecker: base}
}

type deniedTableChecker struct{ rules.AbstractChecker }

const ruleReadOnlyTable = "access.read-only-table"

// NewReadOnlyTable rejects UPDATE/DELETE/INSERT whose target matches a
// read-only-tables glob pattern.
func NewReadOnlyTable(cfg config.RuleConfig) rules.Checker {
	readOnly := cfg.ReadOnlyTables
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if len(readOnly) == 0 {
			return
		}
		for _, name := range writeTargets(ctx) {
			if rules.MatchAny(readOnly, name, true) {
				acc.Add(rules.Violation{
					Risk:       rules.RiskHigh,
					RuleID:     ruleReadOnlyTable,
					Message:    fmt.Sprintf("table %q is read-only", name),
					Suggestion: "remove the write, or remove the table from read-only-tables if this is intentional",
				})
			}
		}
	}
	base := rules.NewAbstractChecker(ruleReadOnlyTable, enabledFunc(cfg), rules.Hooks{
		Update: hook, Delete: hook, Insert: hook,
	})
	return &readOnlyTableChecker{AbstractChecker: base}
}

type readOnlyTableChecker struct{ rules.AbstractChecker }
