package checkers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sqlsentry/config"
	"sqlsentry/rules"
)

func TestDefaultOrder_MatchesConstructors(t *testing.T) {
	assert.Len(t, DefaultOrder, len(constructors))
	seen := map[string]bool{}
	for _, id := range DefaultOrder {
		assert.NotContains(t, seen, id, "duplicate id in DefaultOrder: %s", id)
		seen[id] = true
		_, ok := constructors[id]
		assert.True(t, ok, "DefaultOrder references unknown id %s", id)
	}
}

func TestInit_RegistersEveryConstructor(t *testing.T) {
	registered := map[string]bool{}
	for _, id := range rules.RegisteredIDs() {
		registered[id] = true
	}
	for id := range constructors {
		assert.True(t, registered[id], "expected %s to be registered via init()", id)
	}
}

func TestBuildOrchestrator_BlocksMultiStatement(t *testing.T) {
	cfg := config.Default()
	o := BuildOrchestrator(cfg, nil)
	res := o.Run(parseCtx(t, "SELECT 1; SELECT 2", ""))
	assert.False(t, res.Passed)
	assert.Equal(t, rules.RiskCritical, res.Highest)
}

func TestBuildOrchestrator_PassesCleanStatement(t *testing.T) {
	cfg := config.Default()
	o := BuildOrchestrator(cfg, nil)
	res := o.Run(parseCtx(t, "SELECT id FROM users WHERE id = 1 LIMIT 20", ""))
	assert.True(t, res.Passed)
}

func TestBuildOrchestrator_RespectsPerRuleDisable(t *testing.T) {
	cfg := config.Default()
	cfg.Rules[ruleDDL] = config.RuleConfig{Enabled: false}
	o := BuildOrchestrator(cfg, nil)
	res := o.Run(parseCtx(t, "DROP TABLE users", ""))
	assert.True(t, res.Passed, "expected the disabled DDL rule to let the statement through")
}

func TestBuildOrchestrator_NoConditionPaginationSuppressesDeepOffset(t *testing.T) {
	cfg := config.Default()
	o := BuildOrchestrator(cfg, nil)
	res := o.Run(parseCtx(t, "SELECT * FROM orders LIMIT 20 OFFSET 50000", ""))

	assert.False(t, res.Passed)
	assert.Equal(t, rules.RiskCritical, res.Highest)
	var ids []string
	for _, v := range res.Items {
		ids = append(ids, v.RuleID)
	}
	assert.Contains(t, ids, ruleNoConditionPagination)
	assert.NotContains(t, ids, ruleDeepOffset, "a CRITICAL no-condition-pagination finding should suppress deep-offset")
}
