package inspect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"filemarker/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptInspector implements Inspector for TypeScript and JavaScript files.
// It uses Tree-sitter for parsing.
type TypeScriptInspector struct{}

// NewTypeScriptInspector creates a new TypeScript/JavaScript inspector.
func NewTypeScriptInspector() *TypeScriptInspector {
	return &TypeScriptInspector{}
}

// Language returns "ts".
func (t *TypeScriptInspector) Language() string {
	return "ts"
}

// SupportedExtensions returns TypeScript and JavaScript extensions.
func (t *TypeScriptInspector) SupportedExtensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}
}

func languageForExt(ext string) *sitter.Language {
	switch ext {
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Inspect reads top-level declarations of the form
//
//	const NAME = ["a", "b"];
//	export const NAME = ["a", "b"] as const;
//	var NAME = ['a'];
func (t *TypeScriptInspector) Inspect(path string, content []byte, variable string) ([]string, error) {
	start := time.Now()

	parser := sitter.NewParser()
	parser.SetLanguage(languageForExt(strings.ToLower(filepath.Ext(path))))

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.InspectError("TypeScriptInspector: parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &Error{Path: path, Line: firstErrorLine(root), Err: ErrSyntax}
	}

	var marks []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		if decl.Type() == "export_statement" {
			decl = decl.ChildByFieldName("declaration")
			if decl == nil {
				continue
			}
		}
		if decl.Type() != "lexical_declaration" && decl.Type() != "variable_declaration" {
			continue
		}
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			declarator := decl.NamedChild(j)
			if declarator.Type() != "variable_declarator" {
				continue
			}
			name := declarator.ChildByFieldName("name")
			if name == nil || name.Type() != "identifier" || name.Content(content) != variable {
				continue
			}
			value := declarator.ChildByFieldName("value")
			if value == nil {
				continue
			}
			values, err := jsArray(path, variable, value, content)
			if err != nil {
				return nil, err
			}
			marks = append(marks, values...)
		}
	}

	logging.InspectDebug("TypeScriptInspector: %s - %d marks in %v", filepath.Base(path), len(marks), time.Since(start))
	return marks, nil
}

func jsArray(path, variable string, value *sitter.Node, content []byte) ([]string, error) {
	for {
		value = unwrap(value, "parenthesized_expression", "as_expression", "satisfies_expression")
		// <const>[...] puts the type before the expression
		if value.Type() != "type_assertion" || value.NamedChildCount() == 0 {
			break
		}
		value = value.NamedChild(int(value.NamedChildCount()) - 1)
	}
	if value.Type() != "array" {
		return nil, &Error{Path: path, Line: nodeLine(value), Variable: variable, Err: ErrNotSequence}
	}

	var values []string
	for i := 0; i < int(value.NamedChildCount()); i++ {
		elt := value.NamedChild(i)
		if elt.Type() == "comment" {
			continue
		}
		s, err := jsString(elt, content)
		if err != nil {
			return nil, &Error{Path: path, Line: nodeLine(elt), Variable: variable, Err: err}
		}
		values = append(values, s)
	}
	return values, nil
}

func jsString(n *sitter.Node, content []byte) (string, error) {
	n = unwrap(n, "parenthesized_expression")
	switch n.Type() {
	case "string":
	case "template_string":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "template_substitution" {
				return "", ErrNonLiteral
			}
		}
	default:
		return "", ErrNonLiteral
	}
	body, ok := parseQuoted(n.Content(content))
	if !ok {
		return "", ErrNonLiteral
	}
	return unescape(body), nil
}
