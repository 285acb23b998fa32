// Package config is the plain Go struct tree mirroring the recognized
// configuration options in spec §6. There is no YAML/env binding layer
// here (out of scope per spec §1) — the embedding application constructs
// a Config literal or populates one via its own mechanism.
package config

import "time"

// Config is the top-level configuration surface.
type Config struct {
	Enabled           bool
	Strictness        string // "strict" | "lenient"
	ViolationStrategy string // "BLOCK" | "WARN" | "LOG"
	BlockThreshold    string // risk level spelling

	Rules map[string]RuleConfig

	ParserCacheSize int

	DedupTTL       time.Duration
	DedupCacheSize int

	AuditQueueSize     int
	AuditFlushTimeout  time.Duration
	AuditServiceChecker time.Duration
	AuditServiceParallelism int
}

// RuleConfig is one rule's slice of the configuration surface
// (`rules.<rule-id>.*`), passed to the rule at registration rather than
// on every call, per Design Notes §9.
type RuleConfig struct {
	Enabled    bool
	Strategy   string // not read: enforcement applies Config.ViolationStrategy to every rule
	Exemptions []string

	// Rule-specific knobs. Not every rule consults every field; each
	// concrete checker documents which of these it reads.
	MaxOffset             int
	MaxPageSize           int
	AllowedOperations     []string
	DeniedFunctions       []string
	DeniedTables          []string
	ReadOnlyTables        []string
	LimitingFieldPatterns []string
	BlacklistFields       []string
	WhitelistTables       map[string][]string
	HintCommentsAllowed   bool
}

// Default returns a Config with every documented default from spec §6.
func Default() Config {
	return Config{
		Enabled:                 true,
		Strictness:              "strict",
		ViolationStrategy:       "BLOCK",
		BlockThreshold:          "HIGH",
		Rules:                   map[string]RuleConfig{},
		ParserCacheSize:         1000,
		DedupTTL:                100 * time.Millisecond,
		DedupCacheSize:          1000,
		AuditQueueSize:          8192,
		AuditFlushTimeout:       5 * time.Second,
		AuditServiceChecker:     200 * time.Millisecond,
		AuditServiceParallelism: 0, // 0 = partition count
	}
}

// For returns the rule's configured RuleConfig, or a zero-value one
// defaulted to Enabled=true if the rule has no explicit entry.
func (c Config) For(ruleID string) RuleConfig {
	if rc, ok := c.Rules[ruleID]; ok {
		return rc
	}
	return RuleConfig{Enabled: true}
}
