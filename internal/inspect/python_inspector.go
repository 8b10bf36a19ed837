package inspect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"filemarker/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonInspector implements Inspector for Python source files.
// It uses Tree-sitter for parsing.
type PythonInspector struct{}

// NewPythonInspector creates a new Python inspector.
func NewPythonInspector() *PythonInspector {
	return &PythonInspector{}
}

// Language returns "py".
func (p *PythonInspector) Language() string {
	return "py"
}

// SupportedExtensions returns [".py", ".pyi"].
func (p *PythonInspector) SupportedExtensions() []string {
	return []string{".py", ".pyi"}
}

// Inspect reads module-level assignments of the form
//
//	NAME = ["a", "b"]
//	NAME = ("a", "b")
//	OTHER = NAME = ["a"]
//	NAME: list[str] = ["a"]
func (p *PythonInspector) Inspect(path string, content []byte, variable string) ([]string, error) {
	start := time.Now()

	// Parsers are not safe for concurrent use; inspections run in parallel.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.InspectError("PythonInspector: parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &Error{Path: path, Line: firstErrorLine(root), Err: ErrSyntax}
	}

	var marks []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "expression_statement" {
			continue
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			assign := stmt.NamedChild(j)
			if assign.Type() != "assignment" {
				continue
			}
			targets, value := flattenPythonAssignment(assign)
			if !pythonTargetsInclude(targets, variable, content) {
				continue
			}
			if value == nil {
				// Annotation without a value.
				continue
			}
			values, err := pythonSequence(path, variable, value, content)
			if err != nil {
				return nil, err
			}
			marks = append(marks, values...)
		}
	}

	logging.InspectDebug("PythonInspector: %s - %d marks in %v", filepath.Base(path), len(marks), time.Since(start))
	return marks, nil
}

// flattenPythonAssignment walks chained assignments (a = b = value) and
// returns every target along with the final value.
func flattenPythonAssignment(assign *sitter.Node) ([]*sitter.Node, *sitter.Node) {
	var targets []*sitter.Node
	node := assign
	for node != nil && node.Type() == "assignment" {
		if left := node.ChildByFieldName("left"); left != nil {
			targets = append(targets, left)
		}
		node = node.ChildByFieldName("right")
	}
	return targets, node
}

func pythonTargetsInclude(targets []*sitter.Node, variable string, content []byte) bool {
	for _, t := range targets {
		// Tuple and attribute targets never match.
		if t.Type() == "identifier" && t.Content(content) == variable {
			return true
		}
	}
	return false
}

func pythonSequence(path, variable string, value *sitter.Node, content []byte) ([]string, error) {
	value = unwrap(value, "parenthesized_expression")
	switch value.Type() {
	case "list", "tuple", "expression_list":
	default:
		return nil, &Error{Path: path, Line: nodeLine(value), Variable: variable, Err: ErrNotSequence}
	}

	var values []string
	for i := 0; i < int(value.NamedChildCount()); i++ {
		elt := value.NamedChild(i)
		if elt.Type() == "comment" {
			continue
		}
		s, err := pythonString(elt, content)
		if err != nil {
			return nil, &Error{Path: path, Line: nodeLine(elt), Variable: variable, Err: err}
		}
		values = append(values, s)
	}
	return values, nil
}

// pythonString evaluates a string or implicitly concatenated string literal.
func pythonString(n *sitter.Node, content []byte) (string, error) {
	n = unwrap(n, "parenthesized_expression")
	switch n.Type() {
	case "string":
		return pythonStringLiteral(n.Content(content))
	case "concatenated_string":
		var b strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			part := n.NamedChild(i)
			if part.Type() == "comment" {
				continue
			}
			s, err := pythonString(part, content)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	default:
		return "", ErrNonLiteral
	}
}

func pythonStringLiteral(text string) (string, error) {
	idx := strings.IndexAny(text, `'"`)
	if idx < 0 {
		return "", ErrNonLiteral
	}
	prefix := strings.ToLower(text[:idx])
	if strings.ContainsAny(prefix, "bf") {
		// bytes and f-strings are not plain string literals
		return "", ErrNonLiteral
	}
	body, ok := parseQuoted(text[idx:])
	if !ok {
		return "", ErrNonLiteral
	}
	if strings.Contains(prefix, "r") {
		return body, nil
	}
	return unescape(body), nil
}
