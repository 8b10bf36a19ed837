package inspect

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"filemarker/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// RustInspector implements Inspector for Rust source files.
type RustInspector struct{}

// NewRustInspector creates a new Rust inspector.
func NewRustInspector() *RustInspector {
	return &RustInspector{}
}

// Language returns "rs".
func (r *RustInspector) Language() string {
	return "rs"
}

// SupportedExtensions returns [".rs"].
func (r *RustInspector) SupportedExtensions() []string {
	return []string{".rs"}
}

// Inspect reads top-level items of the form
//
//	const NAME: &[&str] = &["a", "b"];
//	static NAME: [&str; 2] = ["a", "b"];
func (r *RustInspector) Inspect(path string, content []byte, variable string) ([]string, error) {
	start := time.Now()

	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.InspectError("RustInspector: parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &Error{Path: path, Line: firstErrorLine(root), Err: ErrSyntax}
	}

	var marks []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		item := root.NamedChild(i)
		if item.Type() != "const_item" && item.Type() != "static_item" {
			continue
		}
		name := item.ChildByFieldName("name")
		if name == nil || name.Content(content) != variable {
			continue
		}
		value := item.ChildByFieldName("value")
		if value == nil {
			continue
		}
		values, err := rustArray(path, variable, value, content)
		if err != nil {
			return nil, err
		}
		marks = append(marks, values...)
	}

	logging.InspectDebug("RustInspector: %s - %d marks in %v", filepath.Base(path), len(marks), time.Since(start))
	return marks, nil
}

func rustArray(path, variable string, value *sitter.Node, content []byte) ([]string, error) {
	for value.Type() == "reference_expression" || value.Type() == "parenthesized_expression" {
		inner := value.ChildByFieldName("value")
		if inner == nil {
			if value.NamedChildCount() == 0 {
				break
			}
			inner = value.NamedChild(int(value.NamedChildCount()) - 1)
		}
		value = inner
	}
	if value.Type() != "array_expression" {
		return nil, &Error{Path: path, Line: nodeLine(value), Variable: variable, Err: ErrNotSequence}
	}

	// [expr; N] repeats one element
	if length := value.ChildByFieldName("length"); length != nil {
		n, err := rustLength(length, content)
		if err != nil {
			return nil, &Error{Path: path, Line: nodeLine(length), Variable: variable, Err: err}
		}
		elt := value.NamedChild(0)
		s, err := rustString(elt, content)
		if err != nil {
			return nil, &Error{Path: path, Line: nodeLine(elt), Variable: variable, Err: err}
		}
		if n == 0 {
			return nil, nil
		}
		return []string{s}, nil
	}

	var values []string
	for i := 0; i < int(value.NamedChildCount()); i++ {
		elt := value.NamedChild(i)
		switch elt.Type() {
		case "line_comment", "block_comment":
			continue
		}
		s, err := rustString(elt, content)
		if err != nil {
			return nil, &Error{Path: path, Line: nodeLine(elt), Variable: variable, Err: err}
		}
		values = append(values, s)
	}
	return values, nil
}

// rustLength reads the integer literal of a repeat expression. Copies beyond
// the first add nothing to a mark set.
func rustLength(n *sitter.Node, content []byte) (uint64, error) {
	if n.Type() != "integer_literal" {
		return 0, ErrNonLiteral
	}
	text := strings.ReplaceAll(n.Content(content), "_", "")
	for _, suffix := range []string{"usize", "u64", "u32", "u16", "u8", "i64", "i32", "i16", "i8", "isize"} {
		text = strings.TrimSuffix(text, suffix)
	}
	base := 10
	if len(text) > 2 && text[0] == '0' && strings.ContainsRune("xob", rune(text[1])) {
		base = 0
	}
	v, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		return 0, ErrNonLiteral
	}
	return v, nil
}

func rustString(n *sitter.Node, content []byte) (string, error) {
	text := n.Content(content)
	switch n.Type() {
	case "string_literal":
		if !strings.HasPrefix(text, `"`) {
			// b"..." byte strings
			return "", ErrNonLiteral
		}
		body, ok := parseQuoted(text)
		if !ok {
			return "", ErrNonLiteral
		}
		return unescape(body), nil
	case "raw_string_literal":
		if !strings.HasPrefix(text, "r") {
			return "", ErrNonLiteral
		}
		text = strings.Trim(text[1:], "#")
		body, ok := parseQuoted(text)
		if !ok {
			return "", ErrNonLiteral
		}
		return body, nil
	default:
		return "", ErrNonLiteral
	}
}
