package checkers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sqlsentry/rules"
)

func TestMetadataStatement(t *testing.T) {
	c := NewMetadataStatement(ruleConfig(nil))

	res := run(c, parseCtx(t, "SELECT id FROM users", ""))
	assert.True(t, res.Passed)

	res = run(c, parseCtx(t, "SHOW TABLES", ""))
	assert.False(t, res.Passed)
	assert.Equal(t, rules.RiskMedium, res.Highest)

	res = run(c, parseCtx(t, "USE mydb", ""))
	assert.False(t, res.Passed)
}

func TestSetStatement(t *testing.T) {
	c := NewSetStatement(ruleConfig(nil))

	res := run(c, parseCtx(t, "SET @x = 1", ""))
	assert.False(t, res.Passed)
	assert.Equal(t, rules.RiskMedium, res.Highest)
}

func TestSetStatement_DisambiguatesFromUpdateSet(t *testing.T) {
	c := NewSetStatement(ruleConfig(nil))
	res := run(c, parseCtx(t, "UPDATE users SET name = 'a' WHERE id = 1", ""))
	assert.True(t, res.Passed)
}

func TestDeniedTable(t *testing.T) {
	cfg := ruleConfig(nil)
	cfg.DeniedTables = []string{"secret_*"}
	c := NewDeniedTable(cfg)

	res := run(c, parseCtx(t, "SELECT id FROM users", ""))
	assert.True(t, res.Passed)

	res = run(c, parseCtx(t, "SELECT id FROM secret_keys", ""))
	assert.False(t, res.Passed)
	assert.Equal(t, rules.RiskHigh, res.Highest)
}

func TestDeniedTable_NestedSubquery(t *testing.T) {
	cfg := ruleConfig(nil)
	cfg.DeniedTables = []string{"secret_keys"}
	c := NewDeniedTable(cfg)

	res := run(c, parseCtx(t, "SELECT id FROM users WHERE id IN (SELECT user_id FROM secret_keys)", ""))
	assert.False(t, res.Passed)
}

func TestDeniedTable_WriteTargets(t *testing.T) {
	cfg := ruleConfig(nil)
	cfg.DeniedTables = []string{"secret_keys"}
	c := NewDeniedTable(cfg)

	res := run(c, parseCtx(t, "DELETE FROM secret_keys WHERE id = 1", ""))
	assert.False(t, res.Passed)
}

func TestReadOnlyTable(t *testing.T) {
	cfg := ruleConfig(nil)
	cfg.ReadOnlyTables = []string{"audit_log"}
	c := NewReadOnlyTable(cfg)

	res := run(c, parseCtx(t, "SELECT id FROM audit_log", ""))
	assert.True(t, res.Passed, "reads of a read-only table are fine")

	res = run(c, parseCtx(t, "DELETE FROM audit_log WHERE id = 1", ""))
	assert.False(t, res.Passed)
	assert.Equal(t, rules.RiskHigh, res.Highest)

	res = run(c, parseCtx(t, "UPDATE audit_log SET note = 'x' WHERE id = 1", ""))
	assert.False(t, res.Passed)

	res = run(c, parseCtx(t, "INSERT INTO audit_log (id) VALUES (1)", ""))
	assert.False(t, res.Passed)
}
