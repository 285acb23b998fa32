package checkers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlast"
	"sqlsentry/sqlcontext"
)

const ruleMultiStatement = "injection.multi-statement"

// NewMultiStatement rejects SQL containing more than one top-level
// statement separated by `;`, tolerating a single trailing semicolon
// (which the parser already strips into a single Statements entry).
// A CRITICAL finding here sets the early-return hint that suppresses the
// rest of the structural rule group (spec §4.3).
func NewMultiStatement(cfg config.RuleConfig) rules.Checker {
	c := &multiStatementChecker{cfg: cfg}
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || len(ctx.AST.Statements) <= 1 {
			return
		}
		acc.Add(rules.Violation{
			Risk:       rules.RiskCritical,
			RuleID:     ruleMultiStatement,
			Message:    fmt.Sprintf("SQL contains %d statements separated by ';'", len(ctx.AST.Statements)),
			Suggestion: "issue one statement per call",
		})
		acc.SetHint("injection.multi-statement.critical")
	}
	base := rules.NewAbstractChecker(ruleMultiStatement, enabledFunc(cfg), rules.Hooks{
		Select: hook, Update: hook, Delete: hook, Insert: hook, Other: hook,
	})
	c.AbstractChecker = base
	return c
}

type multiStatementChecker struct {
	rules.AbstractChecker
	cfg config.RuleConfig
}

const ruleSetOperation = "injection.set-operation"

var setOpKeyword = regexp.MustCompile(`(?i)\b(UNION\s+ALL|UNION|INTERSECT|EXCEPT|MINUS)\b`)

// NewSetOperation rejects UNION/UNION ALL/INTERSECT/EXCEPT/MINUS unless
// the detected keyword appears in cfg.AllowedOperations, walking
// sub-queries and CTEs (since a set-operation can be nested arbitrarily
// deep inside a derived table).
func NewSetOperation(cfg config.RuleConfig) rules.Checker {
	allowed := cfg.AllowedOperations
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if ctx.AST == nil || ctx.AST.Primary == nil {
			return
		}
		sqlast.Walk(ctx.AST.Primary, func(n ast.Node) (skip, ok bool) {
			opStmt, isSetOpr := n.(*ast.SetOprStmt)
			if !isSetOpr {
				return false, true
			}
			text, err := sqlast.Restore(opStmt)
			if err != nil {
				return false, true
			}
			kw := setOpKeyword.FindString(text)
			if kw == "" {
				kw = "UNION"
			}
			if rules.MatchAny(allowed, strings.ToUpper(kw), true) {
				return false, true
			}
			acc.Add(rules.Violation{
				Risk:       rules.RiskCritical,
				RuleID:     ruleSetOperation,
				Message:    fmt.Sprintf("set-operation %s is not in the allowed-operations list", strings.ToUpper(kw)),
				Suggestion: "split into separate queries or add the operation to allowed-operations",
			})
			return false, true
		})
	}
	base := rules.NewAbstractChecker(ruleSetOperation, enabledFunc(cfg), rules.Hooks{Select: hook, Other: hook})
	return &setOperationChecker{AbstractChecker: base}
}

type setOperationChecker struct{ rules.AbstractChecker }

const ruleSQLComment = "injection.sql-comment"

// NewSQLComment rejects `--`, `#`, and `/* ... */` comments in the raw
// SQL text, outside of string literals. By the time a handle exists the
// parser has already discarded comment text, so this rule scans ctx.SQL
// directly rather than the AST. `/*+ ... */` optimizer-hint comments may
// be allowed via HintCommentsAllowed.
func NewSQLComment(cfg config.RuleConfig) rules.Checker {
	hintsOK := cfg.HintCommentsAllowed
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		if kind, snippet, found := scanForComment(ctx.SQL, hintsOK); found {
			acc.Add(rules.Violation{
				Risk:       rules.RiskCritical,
				RuleID:     ruleSQLComment,
				Message:    fmt.Sprintf("SQL contains a %s comment: %q", kind, snippet),
				Suggestion: "remove inline comments from application-issued SQL",
			})
		}
	}
	base := rules.NewAbstractChecker(ruleSQLComment, enabledFunc(cfg), rules.Hooks{
		Select: hook, Update: hook, Delete: hook, Insert: hook, Other: hook,
	})
	return &sqlCommentChecker{AbstractChecker: base}
}

type sqlCommentChecker struct{ rules.AbstractChecker }

// scanForComment walks sql respecting single/double-quoted strings and
// backtick identifiers, and reports the first comment marker found.
func scanForComment(sql string, hintsOK bool) (kind, snippet string, found bool) {
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if quote != 0 {
			if ch == '\\' && i+1 < len(sql) {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '#':
			return "#", snippetAt(sql, i), true
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				return "--", snippetAt(sql, i), true
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				if hintsOK && i+2 < len(sql) && sql[i+2] == '+' {
					end := strings.Index(sql[i:], "*/")
					if end < 0 {
						return "/* */", snippetAt(sql, i), true
					}
					i += end + 1
					continue
				}
				return "/* */", snippetAt(sql, i), true
			}
		}
	}
	return "", "", false
}

func snippetAt(sql string, i int) string {
	end := i + 24
	if end > len(sql) {
		end = len(sql)
	}
	return sql[i:end]
}

const ruleIntoOutfile = "injection.into-outfile"

// NewIntoOutfile rejects SELECTs that target a file sink via INTO
// OUTFILE or INTO DUMPFILE.
func NewIntoOutfile(cfg config.RuleConfig) rules.Checker {
	hook := func(ctx *sqlcontext.Context, acc *rules.Result) {
		sel, ok := ctx.AST.Primary.(*ast.SelectStmt)
		if !ok || sel.SelectIntoOpt == nil {
			return
		}
		switch sel.SelectIntoOpt.Tp {
		case ast.SelectIntoOutfile:
			acc.Add(rules.Violation{
				Risk:       rules.RiskCritical,
				RuleID:     ruleIntoOutfile,
				Message:    "SELECT ... INTO OUTFILE targets a file sink",
				Suggestion: "export results through the application layer instead",
			})
		case ast.SelectIntoDumpfile:
			acc.Add(rules.Violation{
				Risk:       rules.RiskCritical,
				RuleID:     ruleIntoOutfile,
				Message:    "SELECT ... INTO DUMPFILE targets a file sink",
				Suggestion: "export results through the application layer instead",
			})
		}
	}
	base := rules.NewAbstractChecker(ruleIntoOutfile, enabledFunc(cfg), rules.Hooks{Select: hook})
	return &intoOutfileChecker{AbstractChecker: base}
}

type intoOutfileChecker struct{ rules.AbstractChecker }
