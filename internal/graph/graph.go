// Package graph maintains the dependency graph between formula cells and
// plans recalculation order. Cell edges are stored in both directions; range
// edges are kept as whole rectangles and resolved by containment checks at
// planning time, never expanded into per-cell edges.
package graph

import (
	"sort"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// Graph records which cells each formula reads. Keys of the precedent maps
// are exactly the cells that currently hold formulas.
type Graph struct {
	cellPrecedents  map[types.CellAddress][]types.CellAddress
	rangePrecedents map[types.CellAddress][]types.CellRange
	dependents      map[types.CellAddress]map[types.CellAddress]struct{}
	rangeObservers  map[types.CellRange]map[types.CellAddress]struct{}
}

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{
		cellPrecedents:  make(map[types.CellAddress][]types.CellAddress),
		rangePrecedents: make(map[types.CellAddress][]types.CellRange),
		dependents:      make(map[types.CellAddress]map[types.CellAddress]struct{}),
		rangeObservers:  make(map[types.CellRange]map[types.CellAddress]struct{}),
	}
}

// SetFormula replaces addr's outgoing edges with edges to the given cell and
// range references. Duplicate references collapse to a single edge. Inbound
// edges from other formulas to addr are untouched.
func (g *Graph) SetFormula(addr types.CellAddress, cells []types.CellAddress, ranges []types.CellRange) {
	g.Remove(addr)

	seenCells := make(map[types.CellAddress]struct{}, len(cells))
	for _, c := range cells {
		if _, ok := seenCells[c]; ok {
			continue
		}
		seenCells[c] = struct{}{}
		g.cellPrecedents[addr] = append(g.cellPrecedents[addr], c)
		if g.dependents[c] == nil {
			g.dependents[c] = make(map[types.CellAddress]struct{})
		}
		g.dependents[c][addr] = struct{}{}
	}

	seenRanges := make(map[types.CellRange]struct{}, len(ranges))
	for _, r := range ranges {
		if _, ok := seenRanges[r]; ok {
			continue
		}
		seenRanges[r] = struct{}{}
		g.rangePrecedents[addr] = append(g.rangePrecedents[addr], r)
		if g.rangeObservers[r] == nil {
			g.rangeObservers[r] = make(map[types.CellAddress]struct{})
		}
		g.rangeObservers[r][addr] = struct{}{}
	}

	// a formula with no references still counts as a formula cell
	if _, ok := g.cellPrecedents[addr]; !ok {
		g.cellPrecedents[addr] = nil
	}
}

// Remove deletes addr's outgoing edges, for when its formula is replaced by
// a literal or cleared. Edges into addr survive so dependents of addr are
// still found when its value changes.
func (g *Graph) Remove(addr types.CellAddress) {
	for _, c := range g.cellPrecedents[addr] {
		delete(g.dependents[c], addr)
		if len(g.dependents[c]) == 0 {
			delete(g.dependents, c)
		}
	}
	delete(g.cellPrecedents, addr)

	for _, r := range g.rangePrecedents[addr] {
		delete(g.rangeObservers[r], addr)
		if len(g.rangeObservers[r]) == 0 {
			delete(g.rangeObservers, r)
		}
	}
	delete(g.rangePrecedents, addr)
}

// IsFormula reports whether addr currently holds a formula.
func (g *Graph) IsFormula(addr types.CellAddress) bool {
	_, ok := g.cellPrecedents[addr]
	return ok
}

// Precedents returns the cell and range references addr's formula reads.
func (g *Graph) Precedents(addr types.CellAddress) ([]types.CellAddress, []types.CellRange) {
	return g.cellPrecedents[addr], g.rangePrecedents[addr]
}

// Dependents returns every formula cell that reads addr, either through a
// direct reference or through a range containing addr.
func (g *Graph) Dependents(addr types.CellAddress) []types.CellAddress {
	seen := make(map[types.CellAddress]struct{})
	var out []types.CellAddress
	for d := range g.dependents[addr] {
		seen[d] = struct{}{}
		out = append(out, d)
	}
	for r, observers := range g.rangeObservers {
		if !r.Contains(addr) {
			continue
		}
		for d := range observers {
			// the same formula may observe addr through several ranges
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	SortAddresses(out)
	return out
}

// Affected returns the formula cells whose values may change when the seed
// cells change: every formula reachable from a seed over dependent edges,
// plus any seed that is itself a formula. Traversal passes through skip
// cells but excludes them from the result.
func (g *Graph) Affected(seeds []types.CellAddress, skip map[types.CellAddress]bool) map[types.CellAddress]bool {
	affected := make(map[types.CellAddress]bool)
	visited := make(map[types.CellAddress]bool)
	queue := append([]types.CellAddress(nil), seeds...)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if g.IsFormula(cur) && !skip[cur] {
			affected[cur] = true
		}
		queue = append(queue, g.Dependents(cur)...)
	}
	return affected
}

// SortAddresses orders addresses by sheet, then row, then column.
func SortAddresses(addrs []types.CellAddress) {
	sort.Slice(addrs, func(i, j int) bool {
		a, b := addrs[i], addrs[j]
		if a.Sheet != b.Sheet {
			return a.Sheet < b.Sheet
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
}
