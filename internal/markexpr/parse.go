package markexpr

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	col  int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "'" + t.text + "'"
	}
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", col: i + 1})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", col: i + 1})
			i++
		case isIdentRune(r):
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			kind := tokIdent
			switch word {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			case "not":
				kind = tokNot
			}
			toks = append(toks, token{kind: kind, text: word, col: start + 1})
		default:
			return nil, &SyntaxError{Input: input, Column: i + 1, Msg: "unexpected character " + string(r)}
		}
	}
	toks = append(toks, token{kind: tokEOF, col: len(runes) + 1})
	return toks, nil
}

type parser struct {
	input string
	toks  []token
	pos   int
}

// Parse parses a mark expression. Blank input yields an expression that
// matches everything.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return trueExpr{}, nil
	}
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "expected end of input, got "+t.describe())
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, msg string) error {
	return &SyntaxError{Input: p.input, Column: t.col, Msg: msg}
}

func (p *parser) expr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = orExpr{x: left, y: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = andExpr{x: left, y: right}
	}
	return left, nil
}

func (p *parser) notExpr() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNot:
		x, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return notExpr{x: x}, nil
	case tokLParen:
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')', got "+closing.describe())
		}
		return x, nil
	case tokIdent:
		return identExpr{name: t.text}, nil
	default:
		return nil, p.errorf(t, "expected not, '(' or identifier, got "+t.describe())
	}
}
