package formula

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mesh-intelligence/gridcalc/internal/refs"
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

func testParse(t *testing.T, text string) Node {
	t.Helper()
	node, err := Parse(text, refs.NewResolver(types.Config{}), "Sheet1")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return node
}

func addr(row, col int) types.CellAddress {
	return types.CellAddress{Sheet: "Sheet1", Row: row, Col: col}
}

func num(f float64) *Literal {
	return &Literal{Value: types.NumberValue(f)}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		text string
		want Node
	}{
		{"=42", num(42)},
		{"=3.14", num(3.14)},
		{"=1e3", num(1000)},
		{`="hi"`, &Literal{Value: types.TextValue("hi")}},
		{`="say ""hi"""`, &Literal{Value: types.TextValue(`say "hi"`)}},
		{"=TRUE", &Literal{Value: types.BoolValue(true)}},
		{"=false", &Literal{Value: types.BoolValue(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := testParse(t, tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseReferences(t *testing.T) {
	got := testParse(t, "=A1")
	if !reflect.DeepEqual(got, &Ref{Addr: addr(0, 0)}) {
		t.Fatalf("bare ref = %#v", got)
	}

	got = testParse(t, "=Sheet2!B3")
	want := &Ref{Addr: types.CellAddress{Sheet: "Sheet2", Row: 2, Col: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sheet-qualified ref = %#v, want %#v", got, want)
	}

	got = testParse(t, "=SUM(B1:B3)")
	wantCall := &Call{Name: "SUM", Args: []Node{
		&RangeRef{Range: types.CellRange{Sheet: "Sheet1", StartRow: 0, StartCol: 1, EndRow: 2, EndCol: 1}},
	}}
	if !reflect.DeepEqual(got, wantCall) {
		t.Fatalf("range arg = %#v, want %#v", got, wantCall)
	}
}

func TestParsePrecedence(t *testing.T) {
	// =1+2*3 groups as 1+(2*3)
	got := testParse(t, "=1+2*3")
	want := &Binary{Op: OpAdd, Left: num(1), Right: &Binary{Op: OpMul, Left: num(2), Right: num(3)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("1+2*3 = %#v", got)
	}

	// =2^3^2 is left-associative here: (2^3)^2
	got = testParse(t, "=2^3^2")
	want = &Binary{Op: OpPow, Left: &Binary{Op: OpPow, Left: num(2), Right: num(3)}, Right: num(2)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("2^3^2 = %#v", got)
	}

	// unary minus binds tighter than ^: =-2^2 is (-2)^2
	got = testParse(t, "=-2^2")
	want = &Binary{Op: OpPow, Left: &Unary{Op: OpNeg, Operand: num(2)}, Right: num(2)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("-2^2 = %#v", got)
	}

	// comparison binds tighter than &: =A1&B1=C1 is A1&(B1=C1)
	got = testParse(t, "=A1&B1=C1")
	want2 := &Binary{
		Op:   OpConcat,
		Left: &Ref{Addr: addr(0, 0)},
		Right: &Binary{
			Op:    OpEQ,
			Left:  &Ref{Addr: addr(0, 1)},
			Right: &Ref{Addr: addr(0, 2)},
		},
	}
	if !reflect.DeepEqual(got, want2) {
		t.Fatalf("A1&B1=C1 = %#v", got)
	}

	// parens override precedence
	got = testParse(t, "=(1+2)*3")
	want = &Binary{Op: OpMul, Left: &Binary{Op: OpAdd, Left: num(1), Right: num(2)}, Right: num(3)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("(1+2)*3 = %#v", got)
	}

	// percent postfix
	got3 := testParse(t, "=50%")
	if !reflect.DeepEqual(got3, &Unary{Op: OpPercent, Operand: num(50)}) {
		t.Fatalf("50%% = %#v", got3)
	}
}

func TestParseCalls(t *testing.T) {
	got := testParse(t, "=IF(A1>0, 1, -1)")
	want := &Call{Name: "IF", Args: []Node{
		&Binary{Op: OpGT, Left: &Ref{Addr: addr(0, 0)}, Right: num(0)},
		num(1),
		&Unary{Op: OpNeg, Operand: num(1)},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IF call = %#v", got)
	}

	// argument-less call
	got = testParse(t, "=PI()")
	if !reflect.DeepEqual(got, &Call{Name: "PI", Args: nil}) {
		t.Fatalf("PI() = %#v", got)
	}

	// unknown function names parse fine; they fail only at evaluation
	got = testParse(t, "=NOSUCHFN(A1)")
	if !reflect.DeepEqual(got, &Call{Name: "NOSUCHFN", Args: []Node{&Ref{Addr: addr(0, 0)}}}) {
		t.Fatalf("unknown function = %#v", got)
	}

	// function names are case-insensitive
	got = testParse(t, "=sum(A1:A3)")
	if c, ok := got.(*Call); !ok || c.Name != "SUM" {
		t.Fatalf("lowercase call = %#v", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no equals prefix", "1+2"},
		{"empty", "="},
		{"unclosed paren", "=(1+2"},
		{"unclosed string", `="abc`},
		{"trailing operator", "=1+"},
		{"bare identifier", "=frobnicate"},
		{"missing arg separator", "=SUM(1 2)"},
		{"unexpected char", "=1 @ 2"},
	}
	res := refs.NewResolver(types.Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, res, "Sheet1")
			if err == nil {
				t.Fatalf("Parse(%q) should fail", tt.text)
			}
			var perr *types.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%q) error type %T, want *types.ParseError", tt.text, err)
			}
		})
	}
}

func TestParseWhitespaceInsignificant(t *testing.T) {
	a := testParse(t, "=1+2*A1")
	b := testParse(t, "= 1 +  2 * A1 ")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("whitespace changed the tree: %#v vs %#v", a, b)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	res := refs.NewResolver(types.Config{})
	formulas := []string{
		"=1+2*3",
		"=(1+2)*3",
		"=-A1^2",
		"=SUM(B1:B3)+AVERAGE(Sheet2!C1:C9)",
		`=IF(A1>=10,"big","small")`,
		`=CONCATENATE("a",B2,TRUE)`,
		"=A1&B1=C1",
		"=50%+1",
		"=VLOOKUP(5,A1:B3,2,FALSE)",
	}
	for _, text := range formulas {
		t.Run(text, func(t *testing.T) {
			first, err := Parse(text, res, "Sheet1")
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", text, err)
			}
			rendered := Render(first)
			second, err := Parse(rendered, res, "Sheet1")
			if err != nil {
				t.Fatalf("re-Parse(%q) failed: %v", rendered, err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("round trip changed tree:\n text %q\n rendered %q", text, rendered)
			}
		})
	}
}

func TestReferencesExtraction(t *testing.T) {
	node := testParse(t, "=A1+SUM(B1:B3)*Sheet2!C1")
	cells, ranges := References(node)

	wantCells := []types.CellAddress{
		addr(0, 0),
		{Sheet: "Sheet2", Row: 0, Col: 2},
	}
	if !reflect.DeepEqual(cells, wantCells) {
		t.Fatalf("cells = %+v, want %+v", cells, wantCells)
	}

	wantRanges := []types.CellRange{
		{Sheet: "Sheet1", StartRow: 0, StartCol: 1, EndRow: 2, EndCol: 1},
	}
	if !reflect.DeepEqual(ranges, wantRanges) {
		t.Fatalf("ranges = %+v, want %+v", ranges, wantRanges)
	}
}
