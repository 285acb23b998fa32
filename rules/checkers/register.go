package checkers

import (
	"sqlsentry/audit"
	"sqlsentry/config"
	"sqlsentry/rules"
)

// init registers every concrete checker's constructor under its rule id,
// using a permissive default config (Enabled:true, no exemptions). This is
// registry membership for introspection (rules.RegisteredIDs), not the
// orchestrator's runtime wiring — BuildOrchestrator below builds the
// actual configured chain via the same constructors, parameterized by the
// caller's config.Config.
func init() {
	for id, ctor := range constructors {
		id, ctor := id, ctor
		rules.Register(id, func() rules.Checker { return ctor(config.RuleConfig{Enabled: true}) })
	}
}

// constructors maps every rule id to its constructor. DefaultOrder below
// is the fixed, spec-mandated iteration order the orchestrator actually
// runs in; this map exists to let both registration and ordered building
// share one source of truth per rule id.
var constructors = map[string]func(config.RuleConfig) rules.Checker{
	ruleMultiStatement:        NewMultiStatement,
	ruleSetOperation:          NewSetOperation,
	ruleSQLComment:            NewSQLComment,
	ruleIntoOutfile:           NewIntoOutfile,
	ruleDDL:                   NewDDL,
	ruleDangerousFunction:     NewDangerousFunction,
	ruleStoredProcedure:       NewStoredProcedure,
	ruleMetadataStatement:     NewMetadataStatement,
	ruleSetStatement:          NewSetStatement,
	ruleDeniedTable:           NewDeniedTable,
	ruleReadOnlyTable:         NewReadOnlyTable,
	ruleNoWhere:               NewNoWhere,
	ruleDummyPredicate:        NewDummyPredicate,
	ruleBlacklistFields:       NewBlacklistFields,
	ruleWhitelistFields:       NewWhitelistFields,
	ruleNoConditionPagination: NewNoConditionPagination,
	ruleDeepOffset:            NewDeepOffset,
	ruleLargePageSize:         NewLargePageSize,
	ruleMissingOrderBy:        NewMissingOrderBy,
	ruleNoPagination:          NewNoPagination,
}

// DefaultOrder is the fixed, spec-mandated checker order (§4.3): grouped
// injection, dangerous-operation, access-control, where-quality, and
// pagination, in that sequence. Order matters only for the early-return
// table in rules/orchestrator.go, which names rule ids from this list.
var DefaultOrder = []string{
	ruleMultiStatement,
	ruleSetOperation,
	ruleSQLComment,
	ruleIntoOutfile,
	ruleDDL,
	ruleDangerousFunction,
	ruleStoredProcedure,
	ruleMetadataStatement,
	ruleSetStatement,
	ruleDeniedTable,
	ruleReadOnlyTable,
	ruleNoWhere,
	ruleDummyPredicate,
	ruleBlacklistFields,
	ruleWhitelistFields,
	ruleNoConditionPagination,
	ruleDeepOffset,
	ruleLargePageSize,
	ruleMissingOrderBy,
	ruleNoPagination,
}

// BuildOrchestrator constructs the runtime checker chain in DefaultOrder,
// each checker parameterized by its own slice of cfg (cfg.For(id)).
func BuildOrchestrator(cfg config.Config, log audit.Logger) *rules.Orchestrator {
	built := make([]rules.Checker, 0, len(DefaultOrder))
	for _, id := range DefaultOrder {
		ctor, ok := constructors[id]
		if !ok {
			continue
		}
		built = append(built, ctor(cfg.For(id)))
	}
	return rules.NewOrchestrator(built, log)
}
