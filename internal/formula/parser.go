package formula

import (
	"strconv"
	"strings"

	"github.com/mesh-intelligence/gridcalc/internal/refs"
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// parser consumes the token stream produced by the lexer. Precedence, from
// loosest to tightest binding: string concatenation '&', comparisons,
// addition/subtraction, multiplication/division, exponentiation '^', and
// unary sign/percent.
type parser struct {
	toks  []token
	pos   int
	res   *refs.Resolver
	sheet string
}

// Parse parses formula text into an expression tree. The text must begin
// with '='. References without an explicit sheet prefix are qualified with
// sheet. The returned error, if any, is a *types.ParseError.
func Parse(text string, res *refs.Resolver, sheet string) (Node, error) {
	if !strings.HasPrefix(text, "=") {
		return nil, &types.ParseError{Position: 0, Reason: "formula must start with '='"}
	}
	l := &lexer{input: text[1:], base: 1}
	toks, perr := l.lex()
	if perr != nil {
		return nil, perr
	}
	if toks[0].typ == tokEOF {
		return nil, &types.ParseError{Position: 1, Reason: "empty formula"}
	}

	p := &parser{toks: toks, res: res, sheet: sheet}
	node, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.cur().typ != tokEOF {
		return nil, p.errHere("unexpected " + p.describe(p.cur()))
	}
	return node, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errHere(reason string) *types.ParseError {
	return &types.ParseError{Position: p.cur().pos, Reason: reason}
}

func (p *parser) describe(t token) string {
	if t.typ == tokEOF {
		return "end of formula"
	}
	return "token " + strconv.Quote(t.text)
}

// isOp reports whether the current token is the given operator.
func (p *parser) isOp(text string) bool {
	t := p.cur()
	return t.typ == tokOp && t.text == text
}

// parseConcat handles '&', the loosest-binding operator.
func (p *parser) parseConcat() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isOp("&") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpConcat, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]BinaryOp{
	"=":  OpEQ,
	"<>": OpNE,
	"<":  OpLT,
	"<=": OpLE,
	">":  OpGT,
	">=": OpGE,
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	for p.cur().typ == tokOp {
		op, ok := comparisonOps[p.cur().text]
		if !ok {
			break
		}
		p.advance()
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAddition() (Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := OpAdd
		if p.cur().text == "-" {
			op = OpSub
		}
		p.advance()
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplication() (Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := OpMul
		if p.cur().text == "/" {
			op = OpDiv
		}
		p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("^") {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpPow, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary handles prefix sign operators, which bind tightest of all.
func (p *parser) parseUnary() (Node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := OpNeg
		if p.cur().text == "+" {
			op = OpPlus
		}
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles the percent operator after a primary expression.
func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isOp("%") {
		p.advance()
		node = &Unary{Op: OpPercent, Operand: node}
	}
	return node, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.typ {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errHere("bad number " + strconv.Quote(t.text))
		}
		p.advance()
		return &Literal{Value: types.NumberValue(f)}, nil

	case tokString:
		p.advance()
		return &Literal{Value: types.TextValue(t.text)}, nil

	case tokBool:
		p.advance()
		return &Literal{Value: types.BoolValue(t.text == "TRUE")}, nil

	case tokCell:
		addr, err := p.res.ParseAddress(t.text)
		if err != nil {
			return nil, p.errHere("invalid reference " + strconv.Quote(t.text))
		}
		if addr.Sheet == "" {
			addr.Sheet = p.sheet
		}
		p.advance()
		return &Ref{Addr: addr}, nil

	case tokRange:
		rng, err := p.res.ParseRange(t.text)
		if err != nil {
			return nil, p.errHere("invalid range " + strconv.Quote(t.text))
		}
		if rng.Sheet == "" {
			rng.Sheet = p.sheet
		}
		p.advance()
		return &RangeRef{Range: rng}, nil

	case tokFunc:
		return p.parseCall()

	case tokLParen:
		p.advance()
		node, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		if p.cur().typ != tokRParen {
			return nil, p.errHere("expected ')'")
		}
		p.advance()
		return node, nil

	case tokIdent:
		return nil, p.errHere("unknown identifier " + strconv.Quote(t.text))
	}

	return nil, p.errHere("unexpected " + p.describe(t))
}

// parseCall parses NAME(arg, arg, ...). Argument-less calls like PI() are
// allowed; unknown function names are accepted here and rejected only at
// evaluation time.
func (p *parser) parseCall() (Node, error) {
	name := p.advance().text
	if p.cur().typ != tokLParen {
		return nil, p.errHere("expected '(' after function name")
	}
	p.advance()

	var args []Node
	if p.cur().typ == tokRParen {
		p.advance()
		return &Call{Name: name, Args: args}, nil
	}
	for {
		arg, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch p.cur().typ {
		case tokComma:
			p.advance()
		case tokRParen:
			p.advance()
			return &Call{Name: name, Args: args}, nil
		default:
			return nil, p.errHere("expected ',' or ')' in argument list")
		}
	}
}
