package sqlast

import (
	cycle "github.com/joeycumines/go-detect-cycle/floyds"
)

// AcyclicWalk walks a tree of function-call-like nodes (or any recursive
// structure addressable by a comparable key), guarding against cycles
// introduced by malformed or adversarial ASTs (self-referential CTEs,
// degenerate subquery nesting). children returns the node's direct
// children; visit is called for each node along every path from root, so
// a node shared by two parents is visited once per parent.
//
// It stops (returning early) the moment a cycle is detected, rather than
// recursing forever. This is the same Floyd's-algorithm-based detector the
// teacher package uses for its own dependency-graph traversal.
func AcyclicWalk[E comparable](root E, children func(E) []E, visit func(E)) {
	var walk func(k E, f cycle.BranchingDetector)
	walk = func(k E, f cycle.BranchingDetector) {
		visit(k)
		for _, child := range children(k) {
			func() {
				nf := f.Hare(child)
				defer nf.Clear()
				if !f.Ok() {
					// cycle detected; stop descending this branch
					return
				}
				walk(child, nf)
			}()
		}
	}
	walk(root, cycle.NewBranchingDetector(root, nil))
}
