package formula

import (
	"strings"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// tokenType classifies lexical tokens in formula text.
type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokString
	tokBool
	tokCell
	tokRange
	tokFunc
	tokIdent
	tokOp
	tokComma
	tokLParen
	tokRParen
)

// token is one lexical token with its byte offset into the formula text.
type token struct {
	typ  tokenType
	text string
	pos  int
}

// lexer scans formula text (after the '=' prefix) into tokens. Positions
// are reported relative to the full formula text via base.
type lexer struct {
	input string
	pos   int
	base  int
}

func (l *lexer) errAt(pos int, reason string) *types.ParseError {
	return &types.ParseError{Position: l.base + pos, Reason: reason}
}

// lex tokenizes the whole input, appending a tokEOF marker.
func (l *lexer) lex() ([]token, *types.ParseError) {
	var toks []token
	for {
		l.skipSpace()
		if l.pos >= len(l.input) {
			toks = append(toks, token{typ: tokEOF, pos: l.base + l.pos})
			return toks, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) next() (token, *types.ParseError) {
	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == '"':
		return l.scanString()
	case ch == '\'':
		return l.scanQuotedSheetRef()
	case isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		return l.scanNumber(), nil
	case isLetter(ch) || ch == '_' || ch == '$':
		return l.scanRefOrIdent()
	}

	switch ch {
	case '(':
		l.pos++
		return token{typ: tokLParen, text: "(", pos: l.base + start}, nil
	case ')':
		l.pos++
		return token{typ: tokRParen, text: ")", pos: l.base + start}, nil
	case ',':
		l.pos++
		return token{typ: tokComma, text: ",", pos: l.base + start}, nil
	case '+', '-', '*', '/', '^', '&', '%', '=':
		l.pos++
		return token{typ: tokOp, text: string(ch), pos: l.base + start}, nil
	case '<':
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '=' || l.input[l.pos] == '>') {
			l.pos++
			return token{typ: tokOp, text: l.input[start:l.pos], pos: l.base + start}, nil
		}
		return token{typ: tokOp, text: "<", pos: l.base + start}, nil
	case '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			return token{typ: tokOp, text: ">=", pos: l.base + start}, nil
		}
		return token{typ: tokOp, text: ">", pos: l.base + start}, nil
	}

	return token{}, l.errAt(start, "unexpected character "+string(rune(ch)))
}

// scanNumber scans an integer, decimal, or scientific-notation literal.
func (l *lexer) scanNumber() token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	// exponent only counts when at least one digit follows
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = mark
		}
	}
	return token{typ: tokNumber, text: l.input[start:l.pos], pos: l.base + start}
}

// scanString scans a double-quoted literal; "" inside is an escaped quote.
func (l *lexer) scanString() (token, *types.ParseError) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '"' {
				sb.WriteByte('"')
				l.pos += 2
				continue
			}
			l.pos++
			return token{typ: tokString, text: sb.String(), pos: l.base + start}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return token{}, l.errAt(start, "unclosed string literal")
}

// scanQuotedSheetRef scans 'Sheet Name'!A1 or 'Sheet Name'!A1:B2.
func (l *lexer) scanQuotedSheetRef() (token, *types.ParseError) {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) && l.input[l.pos] != '\'' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{}, l.errAt(start, "unclosed sheet name")
	}
	l.pos++ // closing quote
	if l.pos >= len(l.input) || l.input[l.pos] != '!' {
		return token{}, l.errAt(start, "expected '!' after sheet name")
	}
	l.pos++
	first := l.scanCellChars()
	if !cellShaped(first) {
		return token{}, l.errAt(start, "invalid cell reference after sheet name")
	}
	typ := tokCell
	if l.pos < len(l.input) && l.input[l.pos] == ':' {
		mark := l.pos
		l.pos++
		second := l.scanCellChars()
		if cellShaped(second) {
			typ = tokRange
		} else {
			l.pos = mark
		}
	}
	return token{typ: typ, text: l.input[start:l.pos], pos: l.base + start}, nil
}

// scanRefOrIdent scans a run of identifier characters and classifies it as
// a boolean literal, cell, range, function name, or bare identifier.
func (l *lexer) scanRefOrIdent() (token, *types.ParseError) {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]

	// sheet-qualified reference: Sheet2!B3 or Sheet2!B3:B10
	if l.pos < len(l.input) && l.input[l.pos] == '!' {
		l.pos++
		first := l.scanCellChars()
		if !cellShaped(first) {
			return token{}, l.errAt(start, "invalid cell reference after sheet name")
		}
		typ := tokCell
		if l.pos < len(l.input) && l.input[l.pos] == ':' {
			mark := l.pos
			l.pos++
			second := l.scanCellChars()
			if cellShaped(second) {
				typ = tokRange
			} else {
				l.pos = mark
			}
		}
		return token{typ: typ, text: l.input[start:l.pos], pos: l.base + start}, nil
	}

	upper := strings.ToUpper(text)
	if upper == "TRUE" || upper == "FALSE" {
		return token{typ: tokBool, text: upper, pos: l.base + start}, nil
	}

	if cellShaped(text) {
		typ := tokCell
		if l.pos < len(l.input) && l.input[l.pos] == ':' {
			mark := l.pos
			l.pos++
			second := l.scanCellChars()
			if cellShaped(second) {
				typ = tokRange
			} else {
				l.pos = mark
			}
		}
		return token{typ: typ, text: l.input[start:l.pos], pos: l.base + start}, nil
	}

	if l.pos < len(l.input) && l.input[l.pos] == '(' {
		return token{typ: tokFunc, text: upper, pos: l.base + start}, nil
	}

	return token{typ: tokIdent, text: text, pos: l.base + start}, nil
}

// scanCellChars consumes the characters a bare cell reference may contain.
func (l *lexer) scanCellChars() string {
	start := l.pos
	for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) || l.input[l.pos] == '$') {
		l.pos++
	}
	return l.input[start:l.pos]
}

// cellShaped reports whether s looks like a cell reference: optional '$',
// column letters, optional '$', row digits.
func cellShaped(s string) bool {
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}
	letters := 0
	for i < len(s) && isLetter(s[i]) {
		i++
		letters++
	}
	if letters == 0 {
		return false
	}
	if i < len(s) && s[i] == '$' {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	return digits > 0 && i == len(s)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_' || ch == '$'
}
