package eval

import (
	"math"
	"testing"

	"github.com/mesh-intelligence/gridcalc/internal/formula"
	"github.com/mesh-intelligence/gridcalc/internal/refs"
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// grid is a test lookup backed by A1-style keys on Sheet1.
type grid map[string]types.CellValue

func (g grid) lookup(addr types.CellAddress) types.CellValue {
	key := types.ColumnLetters(addr.Col) + types.FormatNumber(float64(addr.Row+1))
	if addr.Sheet != "" && addr.Sheet != "Sheet1" {
		key = addr.Sheet + "!" + key
	}
	return g[key]
}

func evalText(t *testing.T, text string, g grid) types.CellValue {
	t.Helper()
	node, err := formula.Parse(text, refs.NewResolver(types.Config{}), "Sheet1")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return New(NewRegistry()).Evaluate(node, g.lookup)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		text string
		want types.CellValue
	}{
		{"=1+2*3", types.NumberValue(7)},
		{"=(1+2)*3", types.NumberValue(9)},
		{"=10-4", types.NumberValue(6)},
		{"=7/2", types.NumberValue(3.5)},
		{"=2^10", types.NumberValue(1024)},
		{"=-5+3", types.NumberValue(-2)},
		{"=50%", types.NumberValue(0.5)},
		{"=200%%", types.NumberValue(0.02)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := evalText(t, tt.text, nil); got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCoercion(t *testing.T) {
	g := grid{
		"A1": types.TextValue("42"),
		"A2": types.TextValue("x"),
		"A3": types.BoolValue(true),
	}
	if got := evalText(t, "=A1+1", g); got != types.NumberValue(43) {
		t.Fatalf("numeric text coercion: %v", got)
	}
	if got := evalText(t, "=A2+1", g); got != types.ErrorValue(types.ErrorValueTypeMismatch) {
		t.Fatalf("non-numeric text: %v", got)
	}
	if got := evalText(t, "=A3+1", g); got != types.NumberValue(2) {
		t.Fatalf("bool coercion: %v", got)
	}
	// empty cell counts as zero
	if got := evalText(t, "=B9+5", g); got != types.NumberValue(5) {
		t.Fatalf("empty coercion: %v", got)
	}
}

func TestDivideByZero(t *testing.T) {
	g := grid{"A1": types.NumberValue(10)}
	if got := evalText(t, "=A1/0", g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("=A1/0 = %v, want DivideByZero", got)
	}
}

func TestErrorPropagationFirstWins(t *testing.T) {
	g := grid{
		"A1": types.ErrorValue(types.ErrorDivideByZero),
		"A2": types.ErrorValue(types.ErrorNameNotFound),
	}
	// left operand's error wins
	if got := evalText(t, "=A1+A2", g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("first-error-wins: %v", got)
	}
	// errors pass through comparisons and concatenation unchanged
	if got := evalText(t, "=A1>1", g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("comparison over error: %v", got)
	}
	if got := evalText(t, `=A1&"x"`, g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("concat over error: %v", got)
	}
	if got := evalText(t, "=-A1", g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("unary over error: %v", got)
	}
}

func TestConcatAndComparison(t *testing.T) {
	g := grid{
		"A1": types.NumberValue(1.5),
		"A2": types.TextValue("abc"),
		"A3": types.BoolValue(true),
	}
	if got := evalText(t, `=A2&A1`, g); got != types.TextValue("abc1.5") {
		t.Fatalf("concat: %v", got)
	}
	if got := evalText(t, `=A3&""`, g); got != types.TextValue("TRUE") {
		t.Fatalf("bool concat: %v", got)
	}
	if got := evalText(t, "=A1>1", g); got != types.BoolValue(true) {
		t.Fatalf("numeric compare: %v", got)
	}
	// text equality is case-insensitive
	if got := evalText(t, `=A2="ABC"`, g); got != types.BoolValue(true) {
		t.Fatalf("text equality: %v", got)
	}
	// text that parses as a number compares numerically
	if got := evalText(t, `="10"=10`, g); got != types.BoolValue(true) {
		t.Fatalf("numeric text equality: %v", got)
	}
	// non-coercible mixed kinds are unequal, and not orderable
	if got := evalText(t, `=A2=5`, g); got != types.BoolValue(false) {
		t.Fatalf("mixed equality: %v", got)
	}
	if got := evalText(t, `=A2<5`, g); got != types.ErrorValue(types.ErrorValueTypeMismatch) {
		t.Fatalf("mixed ordering: %v", got)
	}
}

func TestRangeInScalarContext(t *testing.T) {
	g := grid{"A1": types.NumberValue(1)}
	if got := evalText(t, "=A1:A3+1", g); got != types.ErrorValue(types.ErrorNullIntersection) {
		t.Fatalf("range in scalar context: %v", got)
	}
	// scalar-only functions reduce range arguments the same way
	if got := evalText(t, "=ABS(A1:A3)", g); got != types.ErrorValue(types.ErrorNullIntersection) {
		t.Fatalf("range into scalar-only function: %v", got)
	}
}

func TestAggregates(t *testing.T) {
	g := grid{
		"A1": types.NumberValue(1),
		"A2": types.NumberValue(2),
		"A3": types.NumberValue(3),
		"B1": types.TextValue("skip"),
		"B2": types.BoolValue(true),
	}
	tests := []struct {
		text string
		want types.CellValue
	}{
		{"=SUM(A1:A3)", types.NumberValue(6)},
		{"=SUM(A1:A3,10)", types.NumberValue(16)},
		{"=SUM(A1:B3)", types.NumberValue(6)}, // text and bool cells in the range are ignored
		{"=AVERAGE(A1:A3)", types.NumberValue(2)},
		{"=AVERAGE(C1:C3)", types.ErrorValue(types.ErrorDivideByZero)},
		{"=COUNT(A1:B3)", types.NumberValue(3)},
		{"=COUNTA(A1:B3)", types.NumberValue(5)},
		{"=MIN(A1:A3)", types.NumberValue(1)},
		{"=MAX(A1:A3,99)", types.NumberValue(99)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := evalText(t, tt.text, g); got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSumPropagatesRangeError(t *testing.T) {
	g := grid{
		"A1": types.NumberValue(1),
		"A2": types.ErrorValue(types.ErrorDivideByZero),
		"A3": types.NumberValue(3),
	}
	if got := evalText(t, "=SUM(A1:A3)", g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("SUM over error range = %v, want DivideByZero", got)
	}
}

func TestLogicalFunctions(t *testing.T) {
	g := grid{
		"A1": types.BoolValue(true),
		"A2": types.BoolValue(false),
		"A3": types.NumberValue(2),
	}
	tests := []struct {
		text string
		want types.CellValue
	}{
		{"=IF(A1,1,2)", types.NumberValue(1)},
		{"=IF(A2,1,2)", types.NumberValue(2)},
		{"=IF(A2,1)", types.BoolValue(false)},
		{"=AND(A1,A3)", types.BoolValue(true)},
		{"=AND(A1,A2)", types.BoolValue(false)},
		{"=OR(A2,A3)", types.BoolValue(true)},
		{"=NOT(A1)", types.BoolValue(false)},
		{"=NOT(0)", types.BoolValue(true)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := evalText(t, tt.text, g); got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIfShortCircuits(t *testing.T) {
	g := grid{"A1": types.ErrorValue(types.ErrorDivideByZero)}
	// the untaken branch holds an error; the result must not
	if got := evalText(t, "=IF(TRUE,1,A1)", g); got != types.NumberValue(1) {
		t.Fatalf("IF eager over untaken branch: %v", got)
	}
	if got := evalText(t, "=IF(FALSE,1/0,2)", g); got != types.NumberValue(2) {
		t.Fatalf("IF eager over untaken division: %v", got)
	}
	// an error condition still propagates
	if got := evalText(t, "=IF(A1,1,2)", g); got != types.ErrorValue(types.ErrorDivideByZero) {
		t.Fatalf("IF over error condition: %v", got)
	}
}

func TestConcatenateFunction(t *testing.T) {
	g := grid{"B2": types.NumberValue(7)}
	if got := evalText(t, `=CONCATENATE("a",B2,TRUE)`, g); got != types.TextValue("a7TRUE") {
		t.Fatalf("CONCATENATE = %v", got)
	}
}

func TestVlookup(t *testing.T) {
	g := grid{
		"A1": types.NumberValue(1), "B1": types.TextValue("one"),
		"A2": types.NumberValue(5), "B2": types.TextValue("five"),
		"A3": types.NumberValue(9), "B3": types.TextValue("nine"),
	}
	if got := evalText(t, "=VLOOKUP(5,A1:B3,2,FALSE)", g); got != types.TextValue("five") {
		t.Fatalf("exact match = %v", got)
	}
	if got := evalText(t, "=VLOOKUP(6,A1:B3,2,FALSE)", g); got != types.ErrorValue(types.ErrorNotApplicable) {
		t.Fatalf("exact no-match = %v", got)
	}
	// approximate match returns the last row whose key <= search key
	if got := evalText(t, "=VLOOKUP(6,A1:B3,2,TRUE)", g); got != types.TextValue("five") {
		t.Fatalf("approximate match = %v", got)
	}
	if got := evalText(t, "=VLOOKUP(0,A1:B3,2,TRUE)", g); got != types.ErrorValue(types.ErrorNotApplicable) {
		t.Fatalf("approximate below first key = %v", got)
	}
	// column index beyond the range width
	if got := evalText(t, "=VLOOKUP(5,A1:B3,3,FALSE)", g); got != types.ErrorValue(types.ErrorInvalidReference) {
		t.Fatalf("column out of range = %v", got)
	}
	// the table argument must be a range
	if got := evalText(t, "=VLOOKUP(5,A1,2,FALSE)", g); got != types.ErrorValue(types.ErrorValueTypeMismatch) {
		t.Fatalf("scalar table = %v", got)
	}
}

func TestNumericFunctions(t *testing.T) {
	tests := []struct {
		text string
		want types.CellValue
	}{
		{"=ROUND(2.5)", types.NumberValue(3)},
		{"=ROUND(2.4)", types.NumberValue(2)},
		{"=ROUND(3.14159,2)", types.NumberValue(3.14)},
		{"=ABS(-4)", types.NumberValue(4)},
		{"=SQRT(16)", types.NumberValue(4)},
		{"=SQRT(-1)", types.ErrorValue(types.ErrorNumericOverflow)},
		{"=POWER(2,8)", types.NumberValue(256)},
		{"=MOD(7,3)", types.NumberValue(1)},
		{"=MOD(-7,3)", types.NumberValue(2)},
		{"=MOD(7,0)", types.ErrorValue(types.ErrorDivideByZero)},
		{"=PI()", types.NumberValue(math.Pi)},
		{"=LEN(\"hello\")", types.NumberValue(5)},
		{"=UPPER(\"abc\")", types.TextValue("ABC")},
		{"=LOWER(\"AbC\")", types.TextValue("abc")},
		{"=TRIM(\"  a   b  \")", types.TextValue("a b")},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := evalText(t, tt.text, nil); got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestUnknownFunctionAndArity(t *testing.T) {
	if got := evalText(t, "=NOSUCHFN(1)", nil); got != types.ErrorValue(types.ErrorNameNotFound) {
		t.Fatalf("unknown function = %v, want NameNotFound", got)
	}
	if got := evalText(t, "=ABS(1,2)", nil); got != types.ErrorValue(types.ErrorValueTypeMismatch) {
		t.Fatalf("arity violation = %v, want ValueTypeMismatch", got)
	}
	if got := evalText(t, "=SUM()", nil); got != types.ErrorValue(types.ErrorValueTypeMismatch) {
		t.Fatalf("missing required arg = %v, want ValueTypeMismatch", got)
	}
}

func TestOverflow(t *testing.T) {
	if got := evalText(t, "=1e308*10", nil); got != types.ErrorValue(types.ErrorNumericOverflow) {
		t.Fatalf("overflow = %v, want NumericOverflow", got)
	}
}
