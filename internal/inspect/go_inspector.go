package inspect

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"time"

	"filemarker/internal/logging"
)

// GoInspector implements Inspector for Go source files using go/ast.
type GoInspector struct{}

// NewGoInspector creates a new Go inspector.
func NewGoInspector() *GoInspector {
	return &GoInspector{}
}

// Language returns "go".
func (g *GoInspector) Language() string {
	return "go"
}

// SupportedExtensions returns [".go"].
func (g *GoInspector) SupportedExtensions() []string {
	return []string{".go"}
}

// Inspect reads the designated package-level var. Accepted forms:
//
//	var NAME = []string{"a", "b"}
//	var NAME = [...]string{"a", "b"}
//	var NAME [2]string = [2]string{"a", "b"}
func (g *GoInspector) Inspect(path string, content []byte, variable string) ([]string, error) {
	start := time.Now()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.SkipObjectResolution)
	if err != nil {
		logging.InspectError("GoInspector: parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var marks []string
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				if name.Name != variable {
					continue
				}
				line := fset.Position(name.Pos()).Line
				if len(vs.Values) == 0 {
					// Declared without a value: nil slice, no marks.
					continue
				}
				if len(vs.Values) != len(vs.Names) {
					// var a, b = f()
					return nil, &Error{Path: path, Line: line, Variable: variable, Err: ErrNotSequence}
				}
				values, err := goStringElements(fset, path, variable, vs.Values[i])
				if err != nil {
					return nil, err
				}
				marks = append(marks, values...)
			}
		}
	}

	logging.InspectDebug("GoInspector: %s - %d marks in %v", filepath.Base(path), len(marks), time.Since(start))
	return marks, nil
}

func goStringElements(fset *token.FileSet, path, variable string, expr ast.Expr) ([]string, error) {
	expr = ast.Unparen(expr)
	lit, ok := expr.(*ast.CompositeLit)
	if !ok {
		return nil, &Error{Path: path, Line: fset.Position(expr.Pos()).Line, Variable: variable, Err: ErrNotSequence}
	}
	if _, isArray := lit.Type.(*ast.ArrayType); !isArray {
		return nil, &Error{Path: path, Line: fset.Position(expr.Pos()).Line, Variable: variable, Err: ErrNotSequence}
	}

	values := make([]string, 0, len(lit.Elts))
	for _, elt := range lit.Elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			// [...]string{0: "a"}
			elt = kv.Value
		}
		elt = ast.Unparen(elt)
		basic, ok := elt.(*ast.BasicLit)
		if !ok || basic.Kind != token.STRING {
			return nil, &Error{Path: path, Line: fset.Position(elt.Pos()).Line, Variable: variable, Err: ErrNonLiteral}
		}
		s, err := strconv.Unquote(basic.Value)
		if err != nil {
			return nil, &Error{Path: path, Line: fset.Position(elt.Pos()).Line, Variable: variable, Err: err}
		}
		values = append(values, s)
	}
	return values, nil
}
