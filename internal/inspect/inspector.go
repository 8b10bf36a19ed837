// Package inspect extracts test mark names from source files without running them.
//
// Each language inspector parses a file into a syntax tree and reads the string
// literals assigned to one designated top-level variable, for example:
//
//	TEST_MARKS = ["db", "slow"]                 # Python
//	var TEST_MARKS = []string{"db", "slow"}     // Go
//	export const TEST_MARKS = ["db", "slow"]    // TypeScript / JavaScript
//	const TEST_MARKS: &[&str] = &["db", "slow"]; // Rust
//
// Go files are parsed with go/ast; the other languages use Tree-sitter.
package inspect

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSequence is returned when the designated variable is assigned
	// something other than a list, tuple or array literal.
	ErrNotSequence = errors.New("value must be a list or tuple literal")

	// ErrNonLiteral is returned when an element of the sequence is not a
	// plain string literal.
	ErrNonLiteral = errors.New("element is not a plain string literal")

	// ErrSyntax is returned when a Tree-sitter parse contains error nodes.
	ErrSyntax = errors.New("syntax error")
)

// Inspector defines the contract for language-specific mark inspectors.
type Inspector interface {
	// Inspect returns the string literals assigned to variable at the top
	// level of the file, in source order. A file that never assigns the
	// variable yields an empty result and no error.
	Inspect(path string, content []byte, variable string) ([]string, error)

	// SupportedExtensions returns the file extensions this inspector handles,
	// including the leading dot.
	SupportedExtensions() []string

	// Language returns a short lowercase language identifier.
	Language() string
}

// Error describes a failure tied to a location in a source file.
type Error struct {
	Path     string
	Line     int
	Variable string
	Err      error
}

func (e *Error) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("%s:%d: %s: %v", e.Path, e.Line, e.Variable, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
