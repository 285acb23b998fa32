package rules

import (
	"fmt"
	"sync"
)

// registry is the process-wide table of known checker constructors,
// keyed by rule id. Checkers packages register themselves via init(),
// mirroring the advisor.Register pattern: panic on a nil factory or a
// duplicate id, since both indicate a programming error discoverable at
// process start rather than a runtime condition to recover from.
var (
	registryMu  sync.Mutex
	registry    = map[string]func() Checker{}
	registryIDs []string
)

// Register adds a checker constructor to the registry. It is intended to
// be called from package-level init() functions in the checkers package,
// never from request-handling code.
func Register(id string, factory func() Checker) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic(fmt.Sprintf("rules: nil factory registered for %q", id))
	}
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("rules: duplicate checker id %q", id))
	}
	registry[id] = factory
	registryIDs = append(registryIDs, id)
}

// RegisteredIDs returns every registered rule id, in registration order.
// This is registry membership, not orchestrator iteration order: the
// orchestrator is built from an explicitly configured order (§4.3), which
// may be a subset or reordering of this list.
func RegisteredIDs() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, len(registryIDs))
	copy(out, registryIDs)
	return out
}

// Build instantiates a fresh Checker for the given rule id. Returns false
// if the id is unknown.
func Build(id string) (Checker, bool) {
	registryMu.Lock()
	factory, ok := registry[id]
	registryMu.Unlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// BuildAll instantiates a Checker for every currently registered id, in
// registration order. Intended for default configuration wiring; callers
// that want a specific configured order should call Build per id instead.
func BuildAll() []Checker {
	ids := RegisteredIDs()
	out := make([]Checker, 0, len(ids))
	for _, id := range ids {
		c, ok := Build(id)
		if ok {
			out = append(out, c)
		}
	}
	return out
}
