// Package eval computes cell values from parsed expression trees. Evaluation
// is total: every failure mode is representable as an Error-kind CellValue,
// so Evaluate never returns a Go error. Error values propagate first-wins in
// left-to-right evaluation order and are never converted to another kind.
package eval

import (
	"math"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/gridcalc/internal/formula"
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// Lookup resolves a cell address to its current computed value. It must
// return Empty for blank cells and Error(InvalidReference) for cells on a
// sheet the workbook does not know.
type Lookup func(types.CellAddress) types.CellValue

// Arg is one function argument: either a scalar value or a whole range.
// Range stays nil for scalars.
type Arg struct {
	Range *types.CellRange
	Value types.CellValue
}

// Evaluator walks expression trees against a lookup function.
type Evaluator struct {
	reg *Registry
}

// New returns an evaluator dispatching function calls through reg.
func New(reg *Registry) *Evaluator {
	return &Evaluator{reg: reg}
}

// Evaluate computes the scalar value of node. A bare range reference in
// scalar position reduces to Error(NullIntersection).
func (e *Evaluator) Evaluate(node formula.Node, lookup Lookup) types.CellValue {
	return scalar(e.eval(node, lookup))
}

// scalar reduces an Arg to a scalar value.
func scalar(a Arg) types.CellValue {
	if a.Range != nil {
		return types.ErrorValue(types.ErrorNullIntersection)
	}
	return a.Value
}

func (e *Evaluator) eval(node formula.Node, lookup Lookup) Arg {
	switch n := node.(type) {
	case *formula.Literal:
		return Arg{Value: n.Value}

	case *formula.Ref:
		return Arg{Value: lookup(n.Addr)}

	case *formula.RangeRef:
		r := n.Range
		return Arg{Range: &r}

	case *formula.Binary:
		left := scalar(e.eval(n.Left, lookup))
		if left.IsError() {
			return Arg{Value: left}
		}
		right := scalar(e.eval(n.Right, lookup))
		if right.IsError() {
			return Arg{Value: right}
		}
		return Arg{Value: applyBinary(n.Op, left, right)}

	case *formula.Unary:
		operand := scalar(e.eval(n.Operand, lookup))
		if operand.IsError() {
			return Arg{Value: operand}
		}
		return Arg{Value: applyUnary(n.Op, operand)}

	case *formula.Call:
		// IF evaluates lazily so the untaken branch can hold an error
		// without poisoning the result.
		if n.Name == "IF" {
			return Arg{Value: e.evalIf(n, lookup)}
		}
		args := make([]Arg, len(n.Args))
		for i, a := range n.Args {
			args[i] = e.eval(a, lookup)
		}
		return Arg{Value: e.reg.Call(n.Name, args, lookup)}
	}

	return Arg{Value: types.ErrorValue(types.ErrorValueTypeMismatch)}
}

func (e *Evaluator) evalIf(n *formula.Call, lookup Lookup) types.CellValue {
	if len(n.Args) < 2 || len(n.Args) > 3 {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	cond := scalar(e.eval(n.Args[0], lookup))
	if cond.IsError() {
		return cond
	}
	b, ok := toBool(cond)
	if !ok {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	if b {
		return scalar(e.eval(n.Args[1], lookup))
	}
	if len(n.Args) == 3 {
		return scalar(e.eval(n.Args[2], lookup))
	}
	return types.BoolValue(false)
}

func applyBinary(op formula.BinaryOp, left, right types.CellValue) types.CellValue {
	switch op {
	case formula.OpAdd, formula.OpSub, formula.OpMul, formula.OpDiv, formula.OpPow:
		return applyArith(op, left, right)
	case formula.OpConcat:
		return types.TextValue(toText(left) + toText(right))
	case formula.OpEQ:
		return types.BoolValue(valuesEqual(left, right))
	case formula.OpNE:
		return types.BoolValue(!valuesEqual(left, right))
	case formula.OpLT, formula.OpLE, formula.OpGT, formula.OpGE:
		cmp, ok := compareValues(left, right)
		if !ok {
			return types.ErrorValue(types.ErrorValueTypeMismatch)
		}
		switch op {
		case formula.OpLT:
			return types.BoolValue(cmp < 0)
		case formula.OpLE:
			return types.BoolValue(cmp <= 0)
		case formula.OpGT:
			return types.BoolValue(cmp > 0)
		default:
			return types.BoolValue(cmp >= 0)
		}
	}
	return types.ErrorValue(types.ErrorValueTypeMismatch)
}

func applyArith(op formula.BinaryOp, left, right types.CellValue) types.CellValue {
	l, ok := toNumber(left)
	if !ok {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}
	r, ok := toNumber(right)
	if !ok {
		return types.ErrorValue(types.ErrorValueTypeMismatch)
	}

	var out float64
	switch op {
	case formula.OpAdd:
		out = l + r
	case formula.OpSub:
		out = l - r
	case formula.OpMul:
		out = l * r
	case formula.OpDiv:
		if r == 0 {
			return types.ErrorValue(types.ErrorDivideByZero)
		}
		out = l / r
	case formula.OpPow:
		out = math.Pow(l, r)
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return types.ErrorValue(types.ErrorNumericOverflow)
	}
	return types.NumberValue(out)
}

func applyUnary(op formula.UnaryOp, operand types.CellValue) types.CellValue {
	switch op {
	case formula.OpNeg:
		f, ok := toNumber(operand)
		if !ok {
			return types.ErrorValue(types.ErrorValueTypeMismatch)
		}
		return types.NumberValue(-f)
	case formula.OpPlus:
		f, ok := toNumber(operand)
		if !ok {
			return types.ErrorValue(types.ErrorValueTypeMismatch)
		}
		return types.NumberValue(f)
	case formula.OpPercent:
		f, ok := toNumber(operand)
		if !ok {
			return types.ErrorValue(types.ErrorValueTypeMismatch)
		}
		return types.NumberValue(f / 100)
	}
	return types.ErrorValue(types.ErrorValueTypeMismatch)
}

// toNumber coerces a scalar to a float. Text coerces only when it parses as
// a number; Empty coerces to 0; booleans to 1 and 0.
func toNumber(v types.CellValue) (float64, bool) {
	switch v.Kind {
	case types.KindNumber:
		return v.Number, true
	case types.KindEmpty:
		return 0, true
	case types.KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case types.KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// toText renders a scalar for concatenation. Empty becomes the empty string.
func toText(v types.CellValue) string {
	return v.Display()
}

// toBool coerces a scalar to a boolean: numbers by zero-test, text by
// TRUE/FALSE spelling, Empty to false.
func toBool(v types.CellValue) (bool, bool) {
	switch v.Kind {
	case types.KindBool:
		return v.Bool, true
	case types.KindNumber:
		return v.Number != 0, true
	case types.KindEmpty:
		return false, true
	case types.KindText:
		switch strings.ToUpper(strings.TrimSpace(v.Text)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	return false, false
}

// valuesEqual implements '=' and '<>'. Values of different kinds are equal
// only when a text operand coerces to the other side's number; text compares
// case-insensitively.
func valuesEqual(l, r types.CellValue) bool {
	cmp, ok := compareValues(l, r)
	if ok {
		return cmp == 0
	}
	return false
}

// compareValues orders two scalars. Empty counts as 0 against numbers, ""
// against text, FALSE against booleans. Text against a number compares
// numerically when it parses; otherwise the pair is not comparable.
func compareValues(l, r types.CellValue) (int, bool) {
	if l.Kind == types.KindEmpty {
		l = emptyAs(r)
	}
	if r.Kind == types.KindEmpty {
		r = emptyAs(l)
	}

	switch {
	case l.Kind == types.KindText && r.Kind == types.KindText:
		return strings.Compare(strings.ToUpper(l.Text), strings.ToUpper(r.Text)), true
	case l.Kind == types.KindBool && r.Kind == types.KindBool:
		return boolCmp(l.Bool, r.Bool), true
	}

	lf, lok := toNumber(l)
	rf, rok := toNumber(r)
	if lok && rok {
		switch {
		case lf < rf:
			return -1, true
		case lf > rf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// emptyAs maps Empty to the zero of the other operand's kind.
func emptyAs(other types.CellValue) types.CellValue {
	switch other.Kind {
	case types.KindText:
		return types.TextValue("")
	case types.KindBool:
		return types.BoolValue(false)
	default:
		return types.NumberValue(0)
	}
}

func boolCmp(l, r bool) int {
	switch {
	case l == r:
		return 0
	case r:
		return -1
	default:
		return 1
	}
}
