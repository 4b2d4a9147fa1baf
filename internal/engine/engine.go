// Package engine orchestrates edits: it routes raw input to the parser or
// literal inference, maintains the dependency graph, plans recalculation,
// evaluates planned cells, and publishes new values. One mutex spans
// apply-edit, plan, evaluate, and publish, so readers never observe a
// partially updated dependency chain.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mesh-intelligence/gridcalc/internal/ctxlog"
	"github.com/mesh-intelligence/gridcalc/internal/eval"
	"github.com/mesh-intelligence/gridcalc/internal/formula"
	"github.com/mesh-intelligence/gridcalc/internal/graph"
	"github.com/mesh-intelligence/gridcalc/internal/refs"
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// cellState is one occupied cell: its formula (empty for literals), the
// parsed tree, and the last computed value.
type cellState struct {
	formula string
	node    formula.Node
	value   types.CellValue
}

// SetResult reports the outcome of one edit.
type SetResult struct {
	Address types.CellAddress
	Value   types.CellValue
	// Changed lists the other addresses whose computed value changed as a
	// consequence of this edit, sorted by sheet, row, column.
	Changed []types.CellAddress
}

// CellSnapshot is one cell as reported by reads and error scans.
type CellSnapshot struct {
	Address types.CellAddress
	Formula string
	Value   types.CellValue
}

// Engine is a single-writer recalculation engine over one workbook.
type Engine struct {
	mu      sync.Mutex
	cfg     types.Config
	res     *refs.Resolver
	ev      *eval.Evaluator
	g       *graph.Graph
	planner *graph.Planner
	sheets  map[string]bool
	cells   map[types.CellAddress]*cellState
}

// New returns an engine with the configured default sheet already present.
func New(cfg types.Config) *Engine {
	cfg = cfg.WithDefaults()
	g := graph.New()
	return &Engine{
		cfg:     cfg,
		res:     refs.NewResolver(cfg),
		ev:      eval.New(eval.NewRegistry()),
		g:       g,
		planner: graph.NewPlanner(g),
		sheets:  map[string]bool{cfg.DefaultSheet: true},
		cells:   make(map[types.CellAddress]*cellState),
	}
}

// AddSheet registers a new empty sheet.
func (e *Engine) AddSheet(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		return fmt.Errorf("adding sheet: empty name")
	}
	if e.sheets[name] {
		return fmt.Errorf("adding sheet %q: %w", name, types.ErrSheetExists)
	}
	e.sheets[name] = true
	return nil
}

// Sheets returns the workbook's sheet names, sorted.
func (e *Engine) Sheets() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.sheets))
	for name := range e.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCell applies one edit. Raw input starting with '=' is parsed as a
// formula; anything else is stored as a literal with Number, Boolean, Text,
// or Empty inferred from its syntax. Writing to a sheet the workbook does
// not have yet creates that sheet. The returned error is out-of-band only
// for an unusable address or a ParseError; in the ParseError case the
// cell's prior formula, edges, and value are untouched and no sheet is
// created.
func (e *Engine) SetCell(ctx context.Context, address, raw string) (SetResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	addr, err := e.res.ParseAddress(address)
	if err != nil {
		return SetResult{}, err
	}
	if addr.Sheet == "" {
		addr.Sheet = e.cfg.DefaultSheet
	}

	var node formula.Node
	if strings.HasPrefix(raw, "=") {
		node, err = formula.Parse(raw, e.res, addr.Sheet)
		if err != nil {
			return SetResult{}, err
		}
	}
	e.sheets[addr.Sheet] = true

	if node != nil {
		cells, ranges := formula.References(node)
		e.ensureCellLocked(addr)
		e.cells[addr].formula = raw
		e.cells[addr].node = node
		e.g.SetFormula(addr, cells, ranges)
	} else {
		if e.g.IsFormula(addr) {
			e.g.Remove(addr)
		}
		value := inferLiteral(raw)
		if value.IsEmpty() {
			delete(e.cells, addr)
		} else {
			e.ensureCellLocked(addr)
			e.cells[addr].formula = ""
			e.cells[addr].node = nil
			e.cells[addr].value = value
		}
	}

	changed := e.recalcLocked(ctx, []types.CellAddress{addr})

	result := SetResult{Address: addr, Value: e.valueLocked(addr)}
	for _, c := range changed {
		if c != addr {
			result.Changed = append(result.Changed, c)
		}
	}
	return result, nil
}

// GetCell returns the last computed value of a cell. It never triggers
// recomputation; an address on an unknown sheet is an error, an unset cell
// on a known sheet is Empty.
func (e *Engine) GetCell(ctx context.Context, address string) (types.CellValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	addr, err := e.resolveLocked(address)
	if err != nil {
		return types.CellValue{}, err
	}
	return e.valueLocked(addr), nil
}

// SheetCells returns every occupied cell of one sheet, sorted.
func (e *Engine) SheetCells(ctx context.Context, sheet string) ([]CellSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sheets[sheet] {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, types.ErrSheetNotFound)
	}
	var out []CellSnapshot
	for addr, st := range e.cells {
		if addr.Sheet == sheet {
			out = append(out, CellSnapshot{Address: addr, Formula: st.formula, Value: st.value})
		}
	}
	sortSnapshots(out)
	return out, nil
}

// CheckErrors scans the whole workbook and returns every cell currently
// holding an Error value, sorted.
func (e *Engine) CheckErrors(ctx context.Context) []CellSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []CellSnapshot
	for addr, st := range e.cells {
		if st.value.IsError() {
			out = append(out, CellSnapshot{Address: addr, Formula: st.formula, Value: st.value})
		}
	}
	sortSnapshots(out)
	return out
}

// Recalculate re-plans and re-evaluates every formula cell in the workbook.
// It returns the addresses whose computed value changed; on a stable
// workbook that list is empty.
func (e *Engine) Recalculate(ctx context.Context) []types.CellAddress {
	e.mu.Lock()
	defer e.mu.Unlock()
	var seeds []types.CellAddress
	for addr := range e.cells {
		if e.g.IsFormula(addr) {
			seeds = append(seeds, addr)
		}
	}
	graph.SortAddresses(seeds)
	return e.recalcLocked(ctx, seeds)
}

// Records exports every occupied cell for persistence, sorted.
func (e *Engine) Records() []types.CellRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	var addrs []types.CellAddress
	for addr := range e.cells {
		addrs = append(addrs, addr)
	}
	graph.SortAddresses(addrs)

	out := make([]types.CellRecord, 0, len(addrs))
	for _, addr := range addrs {
		st := e.cells[addr]
		kind, value := st.value.Encode()
		out = append(out, types.CellRecord{
			Sheet:   addr.Sheet,
			Address: types.ColumnLetters(addr.Col) + strconv.Itoa(addr.Row+1),
			Formula: st.formula,
			Kind:    kind,
			Value:   value,
		})
	}
	return out
}

// Load replaces the workbook contents with persisted records: sheets are
// created as encountered, formulas re-parsed and their edges rebuilt, stored
// values placed as-is. Callers wanting fresh values run Recalculate after.
func (e *Engine) Load(ctx context.Context, records []types.CellRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.g = graph.New()
	e.planner = graph.NewPlanner(e.g)
	e.cells = make(map[types.CellAddress]*cellState)
	e.sheets = map[string]bool{e.cfg.DefaultSheet: true}

	for _, rec := range records {
		addr, err := e.res.ParseAddress(rec.Address)
		if err != nil {
			return fmt.Errorf("loading cell %s!%s: %w", rec.Sheet, rec.Address, err)
		}
		addr.Sheet = rec.Sheet
		if addr.Sheet == "" {
			addr.Sheet = e.cfg.DefaultSheet
		}
		e.sheets[addr.Sheet] = true

		value, err := types.DecodeValue(rec.Kind, rec.Value)
		if err != nil {
			return fmt.Errorf("loading cell %s: %w", addr, err)
		}
		st := &cellState{formula: rec.Formula, value: value}
		if rec.Formula != "" {
			node, err := formula.Parse(rec.Formula, e.res, addr.Sheet)
			if err != nil {
				return fmt.Errorf("loading cell %s: %w", addr, err)
			}
			st.node = node
			cells, ranges := formula.References(node)
			e.g.SetFormula(addr, cells, ranges)
		}
		e.cells[addr] = st
	}

	ctxlog.FromContext(ctx).Debug("workbook loaded",
		"cells", len(records), "sheets", len(e.sheets))
	return nil
}

// resolveLocked parses an address string, qualifies it with the default
// sheet when bare, and checks the sheet is known.
func (e *Engine) resolveLocked(address string) (types.CellAddress, error) {
	addr, err := e.res.ParseAddress(address)
	if err != nil {
		return types.CellAddress{}, err
	}
	if addr.Sheet == "" {
		addr.Sheet = e.cfg.DefaultSheet
	}
	if !e.sheets[addr.Sheet] {
		return types.CellAddress{}, fmt.Errorf("sheet %q: %w", addr.Sheet, types.ErrSheetNotFound)
	}
	return addr, nil
}

func (e *Engine) ensureCellLocked(addr types.CellAddress) {
	if e.cells[addr] == nil {
		e.cells[addr] = &cellState{}
	}
}

// valueLocked is the evaluator's view of the grid: Empty for blank cells on
// known sheets, InvalidReference for cells on sheets the workbook does not
// have.
func (e *Engine) valueLocked(addr types.CellAddress) types.CellValue {
	if !e.sheets[addr.Sheet] {
		return types.ErrorValue(types.ErrorInvalidReference)
	}
	if st, ok := e.cells[addr]; ok {
		return st.value
	}
	return types.EmptyValue()
}

// recalcLocked plans from the seed cells and evaluates the plan. Cycles are
// settled first: every member is stored as Error(CircularReference) and
// excluded from subsequent planning attempts, so downstream formulas still
// evaluate and observe the error through lookup. Returns the addresses whose
// stored value changed, sorted.
func (e *Engine) recalcLocked(ctx context.Context, seeds []types.CellAddress) []types.CellAddress {
	log := ctxlog.FromContext(ctx)
	changedSet := make(map[types.CellAddress]bool)

	skip := make(map[types.CellAddress]bool)
	var order []types.CellAddress
	for {
		var err error
		order, err = e.planner.Plan(seeds, skip)
		if err == nil {
			break
		}
		cerr, ok := err.(*types.CycleError)
		if !ok {
			// Plan only fails with CycleError
			log.Error("recalculation planning failed", "error", err)
			return nil
		}
		log.Warn("circular reference detected", "members", len(cerr.Members), "cycle", cerr.Error())
		for _, member := range cerr.Members {
			e.ensureCellLocked(member)
			if e.cells[member].value != types.ErrorValue(types.ErrorCircularReference) {
				e.cells[member].value = types.ErrorValue(types.ErrorCircularReference)
				changedSet[member] = true
			}
			skip[member] = true
		}
	}

	for _, addr := range order {
		st := e.cells[addr]
		if st == nil || st.node == nil {
			continue
		}
		next := e.ev.Evaluate(st.node, e.valueLocked)
		if next != st.value {
			st.value = next
			changedSet[addr] = true
		}
	}

	changed := make([]types.CellAddress, 0, len(changedSet))
	for addr := range changedSet {
		changed = append(changed, addr)
	}
	graph.SortAddresses(changed)

	log.Debug("recalculated", "seeds", len(seeds), "planned", len(order), "changed", len(changed))
	return changed
}

// inferLiteral classifies raw literal input: numeric syntax becomes Number,
// TRUE/FALSE (any case) becomes Boolean, the empty string clears the cell,
// anything else is Text.
func inferLiteral(raw string) types.CellValue {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.EmptyValue()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return types.NumberValue(f)
	}
	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return types.BoolValue(true)
	case "FALSE":
		return types.BoolValue(false)
	}
	return types.TextValue(raw)
}

func sortSnapshots(snaps []CellSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i].Address, snaps[j].Address
		if a.Sheet != b.Sheet {
			return a.Sheet < b.Sheet
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
}
