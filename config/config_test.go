package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "strict", cfg.Strictness)
	assert.Equal(t, "BLOCK", cfg.ViolationStrategy)
	assert.Equal(t, "HIGH", cfg.BlockThreshold)
	assert.Equal(t, 1000, cfg.ParserCacheSize)
	assert.Equal(t, 100*time.Millisecond, cfg.DedupTTL)
	assert.Equal(t, 1000, cfg.DedupCacheSize)
	assert.Equal(t, 8192, cfg.AuditQueueSize)
	assert.Equal(t, 5*time.Second, cfg.AuditFlushTimeout)
	assert.NotNil(t, cfg.Rules)
}

func TestConfig_For_Unconfigured(t *testing.T) {
	cfg := Default()
	rc := cfg.For("some.rule")
	assert.True(t, rc.Enabled)
	assert.Empty(t, rc.Exemptions)
}

func TestConfig_For_Configured(t *testing.T) {
	cfg := Default()
	cfg.Rules["some.rule"] = RuleConfig{Enabled: false, MaxOffset: 500}
	rc := cfg.For("some.rule")
	assert.False(t, rc.Enabled)
	assert.Equal(t, 500, rc.MaxOffset)
}
