// Package calc evaluates spoken arithmetic: numbers, + - * /, parentheses
// and unary minus. Nothing else is accepted.
package calc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEmpty          = errors.New("empty expression")
	ErrDivisionByZero = errors.New("division by zero")
	ErrSyntax         = errors.New("syntax error")
)

var words = strings.NewReplacer(
	"divided by", "/",
	"over", "/",
	"times", "*",
	"x", "*",
	"plus", "+",
	"minus", "-",
)

// Normalize replaces spoken operators with symbols.
func Normalize(expr string) string {
	return words.Replace(strings.ToLower(expr))
}

type tokenKind int

const (
	tokNum tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	num  float64
	op   byte
	pos  int
}

func tokenize(s string) ([]token, error) {
	var out []token

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(':
			out = append(out, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			out = append(out, token{kind: tokRParen, pos: i})
			i++
		case strings.IndexByte("+-*/", c) >= 0:
			out = append(out, token{kind: tokOp, op: c, pos: i})
			i++
		case c == '.' || (c >= '0' && c <= '9'):
			j := i
			for j < len(s) && (s[j] == '.' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, s[i:j])
			}
			out = append(out, token{kind: tokNum, num: v, pos: i})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
		}
	}

	return out, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func precedence(op byte) int {
	switch op {
	case '+', '-':
		return 1
	case '*', '/':
		return 2
	}
	return 0
}

// expr parses a binary expression whose operators bind at least minPrec.
func (p *parser) expr(minPrec int) (float64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}

	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || precedence(t.op) < minPrec {
			return lhs, nil
		}
		p.pos++

		rhs, err := p.expr(precedence(t.op) + 1)
		if err != nil {
			return 0, err
		}

		lhs, err = apply(t.op, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
}

func (p *parser) unary() (float64, error) {
	t, ok := p.peek()
	if ok && t.kind == tokOp && (t.op == '-' || t.op == '+') {
		p.pos++
		v, err := p.unary()
		if t.op == '-' {
			v = -v
		}
		return v, err
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end", ErrSyntax)
	}
	p.pos++

	switch t.kind {
	case tokNum:
		return t.num, nil
	case tokLParen:
		v, err := p.expr(1)
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing )", ErrSyntax)
		}
		p.pos++
		return v, nil
	}

	return 0, fmt.Errorf("%w: unexpected token at %d", ErrSyntax, t.pos)
}

func apply(op byte, a, b float64) (float64, error) {
	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	}
	return 0, fmt.Errorf("%w: operator %q", ErrSyntax, op)
}

// Eval normalizes and evaluates expr.
func Eval(expr string) (float64, error) {
	toks, err := tokenize(Normalize(expr))
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, ErrEmpty
	}

	p := &parser{toks: toks}
	v, err := p.expr(1)
	if err != nil {
		return 0, err
	}
	if p.pos != len(toks) {
		return 0, fmt.Errorf("%w: trailing input at %d", ErrSyntax, toks[p.pos].pos)
	}

	return v, nil
}

// Format prints integral values without a fractional part.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
