package markexpr

import (
	"fmt"
	"sort"
	"strings"
)

// Selection is the outcome of folding collected marks into an expression.
type Selection struct {
	// DeselectAll is set when no marks were collected; no test is selected.
	DeselectAll bool `json:"deselect_all"`
	// Expression is the composed expression in canonical form.
	Expression string `json:"expression"`
	// Marks are the collected mark names, sorted.
	Marks []string `json:"marks"`

	expr Expr
}

// Expr returns the parsed composed expression. It is nil when DeselectAll is set.
func (s Selection) Expr() Expr { return s.expr }

// Matches reports whether a test carrying itemMarks is selected.
func (s Selection) Matches(itemMarks []string) bool {
	if s.DeselectAll {
		return false
	}
	if s.expr == nil {
		return true
	}
	set := make(map[string]struct{}, len(itemMarks))
	for _, m := range itemMarks {
		set[m] = struct{}{}
	}
	return s.expr.Evaluate(func(name string) bool {
		_, ok := set[name]
		return ok
	})
}

// Compose merges marks into the existing expression. The result selects a
// test when the existing expression holds or the test carries any of the
// marks. Without marks every test is deselected, whatever the existing
// expression says.
func Compose(existing string, marks []string) (Selection, error) {
	names := dedupe(marks)
	if len(names) == 0 {
		return Selection{DeselectAll: true}, nil
	}

	terms := make([]Expr, 0, len(names)+1)
	if strings.TrimSpace(existing) != "" {
		base, err := Parse(existing)
		if err != nil {
			return Selection{}, fmt.Errorf("existing expression: %w", err)
		}
		terms = append(terms, base)
	}
	for _, name := range names {
		id, err := Ident(name)
		if err != nil {
			return Selection{}, err
		}
		terms = append(terms, id)
	}

	composed := Or(terms...)
	expression := composed.String()
	if len(terms) > len(names) {
		// Keep the existing expression grouped as the user wrote it.
		parts := make([]string, 0, len(terms))
		parts = append(parts, "("+terms[0].String()+")")
		for _, t := range terms[1:] {
			parts = append(parts, t.String())
		}
		expression = strings.Join(parts, " or ")
	}

	return Selection{Expression: expression, Marks: names, expr: composed}, nil
}

func dedupe(marks []string) []string {
	seen := make(map[string]struct{}, len(marks))
	out := make([]string, 0, len(marks))
	for _, m := range marks {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
