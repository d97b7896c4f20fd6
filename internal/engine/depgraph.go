package engine

import (
	"sort"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
)

// depGraph tracks which fields each formula field of a table references.
// Edges run from a formula field to the fields its source mentions, so a
// cycle means a formula transitively depends on itself.
type depGraph struct {
	refs map[string][]string
}

// buildDepGraph reads stored references for every formula field. The
// optional override replaces (or adds) one field's references, so a save
// can be validated before anything is written.
func buildDepGraph(table *metadata.Table, overrideField string, overrideRefs []string) *depGraph {
	g := &depGraph{refs: make(map[string][]string)}
	for _, f := range table.FormulaFields() {
		if f.Name == overrideField {
			continue
		}
		if f.Formula != nil {
			g.refs[f.Name] = f.Formula.References
		}
	}
	if overrideField != "" {
		g.refs[overrideField] = overrideRefs
	}
	return g
}

// findCycle walks the graph from start and returns the dependency cycle it
// runs into, or nil. The returned path starts and ends with the same field.
func (g *depGraph) findCycle(start string) []string {
	var path []string
	onPath := make(map[string]bool)
	done := make(map[string]bool)

	var visit func(name string) []string
	visit = func(name string) []string {
		if onPath[name] {
			for i, p := range path {
				if p == name {
					return append(append([]string{}, path[i:]...), name)
				}
			}
		}
		if done[name] {
			return nil
		}
		onPath[name] = true
		path = append(path, name)
		for _, ref := range g.refs[name] {
			if cycle := visit(ref); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		onPath[name] = false
		done[name] = true
		return nil
	}
	return visit(start)
}

// checkNoCycle returns a CircularReferenceError if saving overrideField
// with overrideRefs would close a dependency loop.
func checkNoCycle(table *metadata.Table, overrideField string, overrideRefs []string) error {
	g := buildDepGraph(table, overrideField, overrideRefs)
	if cycle := g.findCycle(overrideField); cycle != nil {
		return &formula.CircularReferenceError{Cycle: cycle}
	}
	return nil
}

// dependsOn reports whether name transitively references target.
func (g *depGraph) dependsOn(name, target string) bool {
	seen := make(map[string]bool)
	var walk func(n string) bool
	walk = func(n string) bool {
		if seen[n] {
			return false
		}
		seen[n] = true
		for _, ref := range g.refs[n] {
			if ref == target || walk(ref) {
				return true
			}
		}
		return false
	}
	return walk(name)
}

// recomputeOrder returns the table's formula fields that depend on any of
// the changed fields, in an order where every field comes after the formula
// fields it references. A changed formula field is included first.
func recomputeOrder(table *metadata.Table, changed ...string) []string {
	g := buildDepGraph(table, "", nil)

	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[c] = true
	}

	var affected []string
	for name := range g.refs {
		if changedSet[name] {
			affected = append(affected, name)
			continue
		}
		for c := range changedSet {
			if g.dependsOn(name, c) {
				affected = append(affected, name)
				break
			}
		}
	}
	sort.Strings(affected)

	// Topological order among the affected formula fields. Cycles are
	// rejected at save time, so this always terminates.
	affectedSet := make(map[string]bool, len(affected))
	for _, name := range affected {
		affectedSet[name] = true
	}
	var order []string
	placed := make(map[string]bool)
	var place func(name string)
	place = func(name string) {
		if placed[name] {
			return
		}
		placed[name] = true
		for _, ref := range g.refs[name] {
			if affectedSet[ref] {
				place(ref)
			}
		}
		order = append(order, name)
	}
	for _, name := range affected {
		place(name)
	}
	return order
}
