package checkers

import (
	"sqlsentry/config"
	"sqlsentry/rules"
	"sqlsentry/sqlcontext"
)

// enabledFunc closes over a copy of cfg, so IsEnabled reports the
// Enabled value the checker was built with; a later change to the
// caller's RuleConfig does not reach an already-built checker.
func enabledFunc(cfg config.RuleConfig) func() bool {
	return func() bool { return cfg.Enabled }
}

// exempt reports whether ctx.OriginID matches one of cfg's exemption
// globs. Origin-id matching is case-sensitive (spec §4.4).
func exempt(cfg config.RuleConfig, ctx *sqlcontext.Context) bool {
	return rules.MatchAny(cfg.Exemptions, ctx.OriginID, false)
}
