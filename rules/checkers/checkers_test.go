package checkers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlast"
	"sqlsentry/sqlcontext"
)

// parseCtx parses sql and builds a statement context for a single checker
// under test, with the given OriginID (for exemption matching).
func parseCtx(t *testing.T, sql, originID string) *sqlcontext.Context {
	t.Helper()
	f := sqlast.NewFacade(0)
	t.Cleanup(f.Close)
	h, err := f.Parse(sql)
	require.NoError(t, err)
	return sqlcontext.New(sql, h, originID, sqlcontext.LayerApp, nil, "")
}

// run builds acc, invokes c.Check against ctx, and returns the result.
func run(c rules.Checker, ctx *sqlcontext.Context) *rules.Result {
	acc := rules.NewResult()
	c.Check(ctx, acc)
	return acc
}

func ruleConfig(mutate func(*config.RuleConfig)) config.RuleConfig {
	cfg := config.RuleConfig{Enabled: true}
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}
