// Package formula tokenizes and parses spreadsheet formula text ("=A1+SUM(B1:B3)")
// into an immutable expression tree, and renders trees back to canonical
// formula text. Each tree is owned by the cell that parsed it; nothing is
// shared across cells.
package formula

import (
	"strings"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// BinaryOp identifies a binary operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpConcat
	OpEQ
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// String returns the operator as it appears in formula text.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	case OpConcat:
		return "&"
	case OpEQ:
		return "="
	case OpNE:
		return "<>"
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	default:
		return "?"
	}
}

// UnaryOp identifies a unary operator. Neg and Plus are prefix; Percent is
// the postfix divide-by-100 operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpPlus
	OpPercent
)

// Node is one node of a parsed expression tree.
type Node interface {
	// Render returns the node as canonical formula text, without the
	// leading '='. Sub-expressions are fully parenthesized, so re-parsing
	// the rendered text yields a structurally equal tree.
	Render() string
}

// Literal holds a constant: number, text, or boolean.
type Literal struct {
	Value types.CellValue
}

func (n *Literal) Render() string {
	switch n.Value.Kind {
	case types.KindNumber:
		return types.FormatNumber(n.Value.Number)
	case types.KindText:
		return `"` + strings.ReplaceAll(n.Value.Text, `"`, `""`) + `"`
	case types.KindBool:
		if n.Value.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// Ref is a reference to a single cell.
type Ref struct {
	Addr types.CellAddress
}

func (n *Ref) Render() string { return n.Addr.String() }

// RangeRef is a reference to a rectangular range.
type RangeRef struct {
	Range types.CellRange
}

func (n *RangeRef) Render() string { return n.Range.String() }

// Binary applies an operator to two operands.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

func (n *Binary) Render() string {
	return "(" + n.Left.Render() + n.Op.String() + n.Right.Render() + ")"
}

// Unary applies a prefix sign or the postfix percent operator.
type Unary struct {
	Op      UnaryOp
	Operand Node
}

func (n *Unary) Render() string {
	switch n.Op {
	case OpNeg:
		return "(-" + n.Operand.Render() + ")"
	case OpPlus:
		return "(+" + n.Operand.Render() + ")"
	case OpPercent:
		return "(" + n.Operand.Render() + "%)"
	default:
		return n.Operand.Render()
	}
}

// Call invokes a function by (uppercase) name with ordered arguments.
// Unknown names parse fine and only fail at evaluation time, so dependency
// edges under them are still recorded.
type Call struct {
	Name string
	Args []Node
}

func (n *Call) Render() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.Render()
	}
	return n.Name + "(" + strings.Join(parts, ",") + ")"
}

// Render returns the full formula text for a tree, including the leading '='.
func Render(n Node) string {
	return "=" + n.Render()
}

// References collects every cell and range reference in the tree, in
// left-to-right order. Duplicates are preserved; the dependency graph
// de-duplicates on insert.
func References(n Node) (cells []types.CellAddress, ranges []types.CellRange) {
	walk(n, &cells, &ranges)
	return cells, ranges
}

func walk(n Node, cells *[]types.CellAddress, ranges *[]types.CellRange) {
	switch t := n.(type) {
	case *Ref:
		*cells = append(*cells, t.Addr)
	case *RangeRef:
		*ranges = append(*ranges, t.Range)
	case *Binary:
		walk(t.Left, cells, ranges)
		walk(t.Right, cells, ranges)
	case *Unary:
		walk(t.Operand, cells, ranges)
	case *Call:
		for _, a := range t.Args {
			walk(a, cells, ranges)
		}
	}
}
