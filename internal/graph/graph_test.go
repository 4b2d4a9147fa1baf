package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

func cell(name string) types.CellAddress {
	// tests only need a handful of fixed addresses
	table := map[string]types.CellAddress{
		"A1": {Sheet: "Sheet1", Row: 0, Col: 0},
		"A2": {Sheet: "Sheet1", Row: 1, Col: 0},
		"A3": {Sheet: "Sheet1", Row: 2, Col: 0},
		"B1": {Sheet: "Sheet1", Row: 0, Col: 1},
		"B2": {Sheet: "Sheet1", Row: 1, Col: 1},
		"C1": {Sheet: "Sheet1", Row: 0, Col: 2},
		"D1": {Sheet: "Sheet1", Row: 0, Col: 3},
	}
	addr, ok := table[name]
	if !ok {
		panic("unknown test cell " + name)
	}
	return addr
}

func colA(startRow, endRow int) types.CellRange {
	return types.CellRange{Sheet: "Sheet1", StartRow: startRow, StartCol: 0, EndRow: endRow, EndCol: 0}
}

func TestSetFormulaAndDependents(t *testing.T) {
	g := New()

	// B1 = A1 + A2
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1"), cell("A2")}, nil)
	// C1 = SUM(A1:A3)
	g.SetFormula(cell("C1"), nil, []types.CellRange{colA(0, 2)})

	deps := g.Dependents(cell("A1"))
	want := []types.CellAddress{cell("B1"), cell("C1")}
	if !reflect.DeepEqual(deps, want) {
		t.Fatalf("Dependents(A1) = %+v, want %+v", deps, want)
	}

	// A3 is only covered by the range
	deps = g.Dependents(cell("A3"))
	if !reflect.DeepEqual(deps, []types.CellAddress{cell("C1")}) {
		t.Fatalf("Dependents(A3) = %+v", deps)
	}

	// D1 has no dependents
	if deps := g.Dependents(cell("D1")); len(deps) != 0 {
		t.Fatalf("Dependents(D1) = %+v, want none", deps)
	}
}

func TestSetFormulaReplacesEdges(t *testing.T) {
	g := New()

	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A2")}, nil)

	if deps := g.Dependents(cell("A1")); len(deps) != 0 {
		t.Fatalf("stale edge survived replacement: %+v", deps)
	}
	if deps := g.Dependents(cell("A2")); !reflect.DeepEqual(deps, []types.CellAddress{cell("B1")}) {
		t.Fatalf("Dependents(A2) = %+v", deps)
	}
}

func TestRemoveKeepsInboundEdges(t *testing.T) {
	g := New()

	// B1 = A1, C1 = B1
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("C1"), []types.CellAddress{cell("B1")}, nil)

	// B1 becomes a literal: its outgoing edge goes away, C1's edge to it stays
	g.Remove(cell("B1"))

	if g.IsFormula(cell("B1")) {
		t.Fatal("B1 should no longer be a formula")
	}
	if deps := g.Dependents(cell("A1")); len(deps) != 0 {
		t.Fatalf("Dependents(A1) = %+v, want none", deps)
	}
	if deps := g.Dependents(cell("B1")); !reflect.DeepEqual(deps, []types.CellAddress{cell("C1")}) {
		t.Fatalf("Dependents(B1) = %+v", deps)
	}
}

func TestOverlappingRangesReportDependentOnce(t *testing.T) {
	g := New()

	// B1 = SUM(A1:A2) + SUM(A1:A3); both ranges contain A1
	g.SetFormula(cell("B1"), nil, []types.CellRange{colA(0, 1), colA(0, 2)})

	deps := g.Dependents(cell("A1"))
	if !reflect.DeepEqual(deps, []types.CellAddress{cell("B1")}) {
		t.Fatalf("Dependents(A1) = %+v, want B1 once", deps)
	}

	// a direct reference plus a covering range also collapses
	g.SetFormula(cell("C1"), []types.CellAddress{cell("A1")}, []types.CellRange{colA(0, 2)})
	deps = g.Dependents(cell("A1"))
	want := []types.CellAddress{cell("B1"), cell("C1")}
	if !reflect.DeepEqual(deps, want) {
		t.Fatalf("Dependents(A1) = %+v, want %+v", deps, want)
	}
}

func TestDuplicateReferencesCollapse(t *testing.T) {
	g := New()

	// B1 = A1 + A1
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1"), cell("A1")}, nil)

	cells, _ := g.Precedents(cell("B1"))
	if len(cells) != 1 {
		t.Fatalf("Precedents(B1) = %+v, want one entry", cells)
	}
}

func TestPlanDependencyOrder(t *testing.T) {
	g := New()

	// chain: B1 = A1, C1 = B1, D1 = SUM(A1:A3) + C1
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("C1"), []types.CellAddress{cell("B1")}, nil)
	g.SetFormula(cell("D1"), []types.CellAddress{cell("C1")}, []types.CellRange{colA(0, 2)})

	order, err := NewPlanner(g).Plan([]types.CellAddress{cell("A1")}, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	pos := make(map[types.CellAddress]int, len(order))
	for i, addr := range order {
		pos[addr] = i
	}
	for _, name := range []string{"B1", "C1", "D1"} {
		if _, ok := pos[cell(name)]; !ok {
			t.Fatalf("plan is missing %s: %+v", name, order)
		}
	}
	if !(pos[cell("B1")] < pos[cell("C1")] && pos[cell("C1")] < pos[cell("D1")]) {
		t.Fatalf("plan violates dependency order: %+v", order)
	}
}

func TestPlanDiamond(t *testing.T) {
	g := New()

	// B1 = A1, C1 = A1, D1 = B1 + C1; D1 must come after both middles
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("C1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("D1"), []types.CellAddress{cell("B1"), cell("C1")}, nil)

	order, err := NewPlanner(g).Plan([]types.CellAddress{cell("A1")}, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("plan has %d cells, want 3: %+v", len(order), order)
	}
	if order[2] != cell("D1") {
		t.Fatalf("join cell must evaluate last: %+v", order)
	}
}

func TestPlanSkipsUnaffected(t *testing.T) {
	g := New()

	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("C1"), []types.CellAddress{cell("A2")}, nil)

	order, err := NewPlanner(g).Plan([]types.CellAddress{cell("A1")}, nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !reflect.DeepEqual(order, []types.CellAddress{cell("B1")}) {
		t.Fatalf("plan = %+v, want just B1", order)
	}
}

func TestPlanCycleReportsAllMembers(t *testing.T) {
	g := New()

	// A1 = B1, B1 = C1, C1 = A1
	g.SetFormula(cell("A1"), []types.CellAddress{cell("B1")}, nil)
	g.SetFormula(cell("B1"), []types.CellAddress{cell("C1")}, nil)
	g.SetFormula(cell("C1"), []types.CellAddress{cell("A1")}, nil)

	_, err := NewPlanner(g).Plan([]types.CellAddress{cell("A1")}, nil)
	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("Plan error = %v, want *types.CycleError", err)
	}
	want := []types.CellAddress{cell("A1"), cell("B1"), cell("C1")}
	if !reflect.DeepEqual(cerr.Members, want) {
		t.Fatalf("cycle members = %+v, want %+v", cerr.Members, want)
	}
}

func TestPlanSelfReferenceThroughRange(t *testing.T) {
	g := New()

	// A2 = SUM(A1:A3) includes itself
	g.SetFormula(cell("A2"), nil, []types.CellRange{colA(0, 2)})

	_, err := NewPlanner(g).Plan([]types.CellAddress{cell("A2")}, nil)
	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("Plan error = %v, want *types.CycleError", err)
	}
	if !reflect.DeepEqual(cerr.Members, []types.CellAddress{cell("A2")}) {
		t.Fatalf("cycle members = %+v, want just A2", cerr.Members)
	}
}

func TestPlanSkipTraversesThroughCycleMembers(t *testing.T) {
	g := New()

	// A1 = B1, B1 = A1 form a cycle; C1 = B1 hangs off it
	g.SetFormula(cell("A1"), []types.CellAddress{cell("B1")}, nil)
	g.SetFormula(cell("B1"), []types.CellAddress{cell("A1")}, nil)
	g.SetFormula(cell("C1"), []types.CellAddress{cell("B1")}, nil)

	skip := map[types.CellAddress]bool{cell("A1"): true, cell("B1"): true}
	order, err := NewPlanner(g).Plan([]types.CellAddress{cell("A1")}, skip)
	if err != nil {
		t.Fatalf("Plan with skip failed: %v", err)
	}
	if !reflect.DeepEqual(order, []types.CellAddress{cell("C1")}) {
		t.Fatalf("plan = %+v, want just C1", order)
	}
}
