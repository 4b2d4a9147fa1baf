package graph

import (
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// Planner computes the evaluation order for a recalculation pass.
type Planner struct {
	g *Graph
}

// NewPlanner returns a planner over g.
func NewPlanner(g *Graph) *Planner {
	return &Planner{g: g}
}

// dfs colors: absent from color map = white (unvisited).
const (
	colorGray  = 1 // on the current DFS path
	colorBlack = 2 // finished
)

type planState struct {
	g        *Graph
	affected map[types.CellAddress]bool
	skip     map[types.CellAddress]bool
	color    map[types.CellAddress]int
	stack    []types.CellAddress
	order    []types.CellAddress
}

// Plan returns the affected formula cells in dependency order: every cell
// appears after all affected cells it reads. Cells in skip are excluded from
// the plan and from cycle detection, but traversal still passes through them
// so their dependents are planned. A cycle among the affected cells aborts
// planning with a *types.CycleError listing every cell on the cycle.
func (p *Planner) Plan(seeds []types.CellAddress, skip map[types.CellAddress]bool) ([]types.CellAddress, error) {
	if skip == nil {
		skip = map[types.CellAddress]bool{}
	}
	st := &planState{
		g:        p.g,
		affected: p.g.Affected(seeds, skip),
		skip:     skip,
		color:    make(map[types.CellAddress]int),
	}

	roots := make([]types.CellAddress, 0, len(st.affected))
	for addr := range st.affected {
		roots = append(roots, addr)
	}
	SortAddresses(roots)

	for _, root := range roots {
		if err := st.visit(root); err != nil {
			return nil, err
		}
	}
	return st.order, nil
}

// visit runs a three-color depth-first search over precedent edges restricted
// to the affected set. Postorder append yields dependencies-first order.
func (s *planState) visit(addr types.CellAddress) error {
	switch s.color[addr] {
	case colorBlack:
		return nil
	case colorGray:
		return s.cycleFrom(addr)
	}
	s.color[addr] = colorGray
	s.stack = append(s.stack, addr)

	cells, ranges := s.g.Precedents(addr)
	for _, c := range cells {
		if s.affected[c] && !s.skip[c] {
			if err := s.visit(c); err != nil {
				return err
			}
		}
	}
	for _, r := range ranges {
		for _, c := range s.affectedIn(r) {
			if err := s.visit(c); err != nil {
				return err
			}
		}
	}

	s.stack = s.stack[:len(s.stack)-1]
	s.color[addr] = colorBlack
	s.order = append(s.order, addr)
	return nil
}

// affectedIn returns the affected, non-skipped formula cells inside r, in
// stable order.
func (s *planState) affectedIn(r types.CellRange) []types.CellAddress {
	var out []types.CellAddress
	for addr := range s.affected {
		if !s.skip[addr] && r.Contains(addr) {
			out = append(out, addr)
		}
	}
	SortAddresses(out)
	return out
}

// cycleFrom reports the cycle closed by an edge back to entry: the DFS stack
// suffix starting at entry is exactly the cycle's membership.
func (s *planState) cycleFrom(entry types.CellAddress) *types.CycleError {
	start := 0
	for i, addr := range s.stack {
		if addr == entry {
			start = i
			break
		}
	}
	members := append([]types.CellAddress(nil), s.stack[start:]...)
	SortAddresses(members)
	return &types.CycleError{Members: members}
}
