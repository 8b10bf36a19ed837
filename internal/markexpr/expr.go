// Package markexpr parses, evaluates and composes boolean mark expressions
// such as "db and not slow" or "(smoke or unit) and linux".
package markexpr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMark is returned when a mark name cannot appear as an identifier
// in an expression.
var ErrInvalidMark = errors.New("invalid mark name")

// SyntaxError reports a parse failure at a 1-based column.
type SyntaxError struct {
	Input  string
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid mark expression %q at column %d: %s", e.Input, e.Column, e.Msg)
}

// Expr is a parsed mark expression.
type Expr interface {
	// Evaluate reports whether the expression holds when has reports which
	// marks are present.
	Evaluate(has func(name string) bool) bool
	// String renders the expression in canonical form.
	String() string
}

type (
	identExpr struct{ name string }
	notExpr   struct{ x Expr }
	andExpr   struct{ x, y Expr }
	orExpr    struct{ x, y Expr }
	trueExpr  struct{}
)

func (e identExpr) Evaluate(has func(string) bool) bool { return has(e.name) }
func (e notExpr) Evaluate(has func(string) bool) bool   { return !e.x.Evaluate(has) }
func (e andExpr) Evaluate(has func(string) bool) bool {
	return e.x.Evaluate(has) && e.y.Evaluate(has)
}
func (e orExpr) Evaluate(has func(string) bool) bool {
	return e.x.Evaluate(has) || e.y.Evaluate(has)
}
func (trueExpr) Evaluate(func(string) bool) bool { return true }

func (e identExpr) String() string { return e.name }
func (e notExpr) String() string   { return "not " + wrap(e.x, precNot) }
func (e andExpr) String() string   { return wrap(e.x, precAnd) + " and " + wrap(e.y, precAnd) }
func (e orExpr) String() string    { return wrap(e.x, precOr) + " or " + wrap(e.y, precOr) }
func (trueExpr) String() string    { return "" }

const (
	precOr = iota
	precAnd
	precNot
)

func precedence(e Expr) int {
	switch e.(type) {
	case orExpr:
		return precOr
	case andExpr:
		return precAnd
	default:
		return precNot
	}
}

// wrap parenthesizes e when it binds looser than the surrounding operator.
func wrap(e Expr, outer int) string {
	if precedence(e) < outer {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Ident returns an expression matching a single mark.
func Ident(name string) (Expr, error) {
	if !IsValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMark, name)
	}
	return identExpr{name: name}, nil
}

// Or joins expressions with "or". A nil or empty operand list yields nil.
func Or(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = orExpr{x: out, y: e}
	}
	return out
}

// IsValidName reports whether name is a non-empty identifier that is not one
// of the reserved words.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !isIdentRune(r) {
			return false
		}
	}
	return !isKeyword(name)
}

func isKeyword(s string) bool {
	switch s {
	case "and", "or", "not":
		return true
	}
	return false
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("_-.:+/[]", r):
		return true
	}
	return false
}
