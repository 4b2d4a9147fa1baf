package eval

import (
	"math"
	"strings"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// handler implements one builtin against an already arity-checked call.
type handler func(inv *invocation) types.CellValue

// descriptor declares a builtin's calling convention. maxArgs of -1 means
// unlimited. Functions that do not accept ranges see range arguments reduced
// to Error(NullIntersection) before the handler runs.
type descriptor struct {
	minArgs int
	maxArgs int
	ranges  bool
	fn      handler
}

// Registry is the closed set of callable functions. Unknown names fail with
// Error(NameNotFound); arity violations with Error(ValueTypeMismatch).
type Registry struct {
	fns map[string]descriptor
}

// invocation carries one call's arguments plus the lookup needed to read
// range contents.
type invocation struct {
	args   []Arg
	lookup Lookup
}

// Call dispatches name over args. The name must already be uppercase, which
// the parser guarantees.
func (r *Registry) Call(name string, args []Arg, lookup Lookup) types.CellValue {
	d, ok := r.fns[name]
	if !ok {
		return types.ErrorValue(types.ErrorNameNotFound)
	}
	if len(args) < d.minArgs || (d.maxArgs >= 0 && len(args) > d.maxArgs) {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	if !d.ranges {
		for i, a := range args {
			if a.Range != nil {
				args[i] = Arg{Value: types.ErrorValue(types.ErrorNullIntersection)}
			}
		}
	}
	return d.fn(&invocation{args: args, lookup: lookup})
}

// scalarAt returns argument i reduced to a scalar.
func (inv *invocation) scalarAt(i int) types.CellValue {
	return scalar(inv.args[i])
}

// walk visits every scalar an argument list denotes, in argument order and
// row-major order within ranges. It stops early when visit returns false.
func (inv *invocation) walk(visit func(v types.CellValue, fromRange bool) bool) {
	for _, a := range inv.args {
		if a.Range == nil {
			if !visit(a.Value, false) {
				return
			}
			continue
		}
		r := *a.Range
		for row := r.StartRow; row <= r.EndRow; row++ {
			for col := r.StartCol; col <= r.EndCol; col++ {
				v := inv.lookup(types.CellAddress{Sheet: r.Sheet, Row: row, Col: col})
				if !visit(v, true) {
					return
				}
			}
		}
	}
}

// numbers collects the numeric operands of an aggregate call: direct scalar
// arguments coerce (a non-coercible scalar is a type error), cells pulled
// from ranges are skipped unless they already hold numbers. The first error
// value encountered wins.
func (inv *invocation) numbers() ([]float64, types.CellValue) {
	var out []float64
	var failure types.CellValue
	inv.walk(func(v types.CellValue, fromRange bool) bool {
		if v.IsError() {
			failure = v
			return false
		}
		if fromRange {
			if v.Kind == types.KindNumber {
				out = append(out, v.Number)
			}
			return true
		}
		f, ok := toNumber(v)
		if !ok {
			failure = types.ErrorValue(types.ErrorValueTypeMismatch)
			return false
		}
		out = append(out, f)
		return true
	})
	if failure.IsError() {
		return nil, failure
	}
	return out, types.CellValue{}
}

// NewRegistry returns a registry with every builtin registered.
func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]descriptor)}

	register := func(name string, min, max int, ranges bool, fn handler) {
		r.fns[name] = descriptor{minArgs: min, maxArgs: max, ranges: ranges, fn: fn}
	}

	register("SUM", 1, -1, true, fnSum)
	register("AVERAGE", 1, -1, true, fnAverage)
	register("COUNT", 1, -1, true, fnCount)
	register("COUNTA", 1, -1, true, fnCountA)
	register("MIN", 1, -1, true, fnMin)
	register("MAX", 1, -1, true, fnMax)
	// IF is dispatched lazily by the evaluator; registered here so its
	// arity is still visible and direct calls stay well defined.
	register("IF", 2, 3, false, fnIf)
	register("AND", 1, -1, true, fnAnd)
	register("OR", 1, -1, true, fnOr)
	register("NOT", 1, 1, false, fnNot)
	register("CONCATENATE", 1, -1, false, fnConcatenate)
	register("VLOOKUP", 3, 4, true, fnVlookup)
	register("ROUND", 1, 2, false, fnRound)
	register("ABS", 1, 1, false, fnAbs)
	register("SQRT", 1, 1, false, fnSqrt)
	register("POWER", 2, 2, false, fnPower)
	register("MOD", 2, 2, false, fnMod)
	register("PI", 0, 0, false, fnPi)
	register("LEN", 1, 1, false, fnLen)
	register("UPPER", 1, 1, false, fnUpper)
	register("LOWER", 1, 1, false, fnLower)
	register("TRIM", 1, 1, false, fnTrim)

	return r
}

func fnSum(inv *invocation) types.CellValue {
	nums, failure := inv.numbers()
	if failure.IsError() {
		return failure
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	return types.NumberValue(total)
}

func fnAverage(inv *invocation) types.CellValue {
	nums, failure := inv.numbers()
	if failure.IsError() {
		return failure
	}
	if len(nums) == 0 {
		return types.ErrorValue(types.ErrorDivideByZero)
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	return types.NumberValue(total / float64(len(nums)))
}

func fnCount(inv *invocation) types.CellValue {
	count := 0
	var failure types.CellValue
	inv.walk(func(v types.CellValue, fromRange bool) bool {
		if v.IsError() {
			failure = v
			return false
		}
		if v.Kind == types.KindNumber {
			count++
		}
		return true
	})
	if failure.IsError() {
		return failure
	}
	return types.NumberValue(float64(count))
}

func fnCountA(inv *invocation) types.CellValue {
	count := 0
	var failure types.CellValue
	inv.walk(func(v types.CellValue, fromRange bool) bool {
		if v.IsError() {
			failure = v
			return false
		}
		if !v.IsEmpty() {
			count++
		}
		return true
	})
	if failure.IsError() {
		return failure
	}
	return types.NumberValue(float64(count))
}

func fnMin(inv *invocation) types.CellValue {
	nums, failure := inv.numbers()
	if failure.IsError() {
		return failure
	}
	if len(nums) == 0 {
		return types.NumberValue(0)
	}
	min := nums[0]
	for _, f := range nums[1:] {
		if f < min {
			min = f
		}
	}
	return types.NumberValue(min)
}

func fnMax(inv *invocation) types.CellValue {
	nums, failure := inv.numbers()
	if failure.IsError() {
		return failure
	}
	if len(nums) == 0 {
		return types.NumberValue(0)
	}
	max := nums[0]
	for _, f := range nums[1:] {
		if f > max {
			max = f
		}
	}
	return types.NumberValue(max)
}

// fnIf is the eager fallback; the evaluator normally short-circuits IF before
// arguments are computed.
func fnIf(inv *invocation) types.CellValue {
	cond := inv.scalarAt(0)
	if cond.IsError() {
		return cond
	}
	b, ok := toBool(cond)
	if !ok {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	if b {
		return inv.scalarAt(1)
	}
	if len(inv.args) == 3 {
		return inv.scalarAt(2)
	}
	return types.BoolValue(false)
}

// logicalFold implements AND and OR. Text and empty cells inside ranges are
// ignored; a call that yields no logical values at all is a type error.
func logicalFold(inv *invocation, init bool, combine func(acc, b bool) bool) types.CellValue {
	acc := init
	seen := false
	var failure types.CellValue
	inv.walk(func(v types.CellValue, fromRange bool) bool {
		if v.IsError() {
			failure = v
			return false
		}
		if fromRange && (v.Kind == types.KindText || v.IsEmpty()) {
			return true
		}
		b, ok := toBool(v)
		if !ok {
			failure = types.ErrorValue(types.ErrorValueTypeMismatch)
			return false
		}
		acc = combine(acc, b)
		seen = true
		return true
	})
	if failure.IsError() {
		return failure
	}
	if !seen {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	return types.BoolValue(acc)
}

func fnAnd(inv *invocation) types.CellValue {
	return logicalFold(inv, true, func(acc, b bool) bool { return acc && b })
}

func fnOr(inv *invocation) types.CellValue {
	return logicalFold(inv, false, func(acc, b bool) bool { return acc || b })
}

func fnNot(inv *invocation) types.CellValue {
	v := inv.scalarAt(0)
	if v.IsError() {
		return v
	}
	b, ok := toBool(v)
	if !ok {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	return types.BoolValue(!b)
}

func fnConcatenate(inv *invocation) types.CellValue {
	var sb strings.Builder
	for i := range inv.args {
		v := inv.scalarAt(i)
		if v.IsError() {
			return v
		}
		sb.WriteString(toText(v))
	}
	return types.TextValue(sb.String())
}

// fnVlookup scans the first column of the table range top-to-bottom. With an
// exact-match flag (FALSE) it returns the first row whose key equals the
// search key; with approximate match (TRUE, the default) it returns the last
// row whose key is less than or equal to the search key, assuming the column
// is sorted ascending. No match yields Error(NotApplicable).
func fnVlookup(inv *invocation) types.CellValue {
	key := inv.scalarAt(0)
	if key.IsError() {
		return key
	}
	if inv.args[1].Range == nil {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	table := *inv.args[1].Range

	colVal := inv.scalarAt(2)
	if colVal.IsError() {
		return colVal
	}
	colf, ok := toNumber(colVal)
	if !ok || colf != math.Trunc(colf) || colf < 1 {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	colIndex := int(colf)
	if colIndex > table.Cols() {
		return types.ErrorValue(types.ErrorInvalidReference)
	}

	approximate := true
	if len(inv.args) == 4 {
		flag := inv.scalarAt(3)
		if flag.IsError() {
			return flag
		}
		b, ok := toBool(flag)
		if !ok {
			return types.ErrorValue(types.ErrorValueTypeMismatch)
		}
		approximate = b
	}

	matchRow := -1
	for row := table.StartRow; row <= table.EndRow; row++ {
		cand := inv.lookup(types.CellAddress{Sheet: table.Sheet, Row: row, Col: table.StartCol})
		if cand.IsError() {
			return cand
		}
		if approximate {
			cmp, ok := compareValues(cand, key)
			if !ok {
				continue
			}
			if cmp <= 0 {
				matchRow = row
				continue
			}
			break
		}
		if valuesEqual(cand, key) {
			matchRow = row
			break
		}
	}
	if matchRow < 0 {
		return types.ErrorValue(types.ErrorNotApplicable)
	}
	return inv.lookup(types.CellAddress{
		Sheet: table.Sheet,
		Row:   matchRow,
		Col:   table.StartCol + colIndex - 1,
	})
}

// numericArg coerces scalar argument i, mapping failures onto error values.
func (inv *invocation) numericArg(i int) (float64, types.CellValue) {
	v := inv.scalarAt(i)
	if v.IsError() {
		return 0, v
	}
	f, ok := toNumber(v)
	if !ok {
		return 0, types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	return f, types.CellValue{}
}

func fnRound(inv *invocation) types.CellValue {
	f, failure := inv.numericArg(0)
	if failure.IsError() {
		return failure
	}
	digits := 0.0
	if len(inv.args) == 2 {
		d, failure := inv.numericArg(1)
		if failure.IsError() {
			return failure
		}
		digits = math.Trunc(d)
	}
	scale := math.Pow(10, digits)
	return types.NumberValue(math.Round(f*scale) / scale)
}

func fnAbs(inv *invocation) types.CellValue {
	f, failure := inv.numericArg(0)
	if failure.IsError() {
		return failure
	}
	return types.NumberValue(math.Abs(f))
}

func fnSqrt(inv *invocation) types.CellValue {
	f, failure := inv.numericArg(0)
	if failure.IsError() {
		return failure
	}
	if f < 0 {
		return types.ErrorValue(types.ErrorNumericOverflow)
	}
	return types.NumberValue(math.Sqrt(f))
}

func fnPower(inv *invocation) types.CellValue {
	base, failure := inv.numericArg(0)
	if failure.IsError() {
		return failure
	}
	exp, failure := inv.numericArg(1)
	if failure.IsError() {
		return failure
	}
	out := math.Pow(base, exp)
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return types.ErrorValue(types.ErrorNumericOverflow)
	}
	return types.NumberValue(out)
}

// fnMod follows spreadsheet convention: the result takes the divisor's sign.
func fnMod(inv *invocation) types.CellValue {
	x, failure := inv.numericArg(0)
	if failure.IsError() {
		return failure
	}
	d, failure := inv.numericArg(1)
	if failure.IsError() {
		return failure
	}
	if d == 0 {
		return types.ErrorValue(types.ErrorDivideByZero)
	}
	return types.NumberValue(x - d*math.Floor(x/d))
}

func fnPi(inv *invocation) types.CellValue {
	return types.NumberValue(math.Pi)
}

func fnLen(inv *invocation) types.CellValue {
	v := inv.scalarAt(0)
	if v.IsError() {
		return v
	}
	return types.NumberValue(float64(len([]rune(toText(v)))))
}

func textFn(inv *invocation, apply func(string) string) types.CellValue {
	v := inv.scalarAt(0)
	if v.IsError() {
		return v
	}
	return types.TextValue(apply(toText(v)))
}

func fnUpper(inv *invocation) types.CellValue {
	return textFn(inv, strings.ToUpper)
}

func fnLower(inv *invocation) types.CellValue {
	return textFn(inv, strings.ToLower)
}

func fnTrim(inv *invocation) types.CellValue {
	return textFn(inv, func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	})
}
