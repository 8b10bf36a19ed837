package inspect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const variable = "TEST_MARKS"

func TestGoInspector_Inspect(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "slice literal",
			src:  "package p\n\nvar TEST_MARKS = []string{\"db\", \"slow\"}\n",
			want: []string{"db", "slow"},
		},
		{
			name: "array literal in var block",
			src:  "package p\n\nvar (\n\tother = 1\n\tTEST_MARKS = [...]string{`raw`, \"esc\\tape\"}\n)\n",
			want: []string{"raw", "esc\tape"},
		},
		{
			name: "multi name spec",
			src:  "package p\n\nvar A, TEST_MARKS = []string{\"a\"}, []string{\"b\"}\n",
			want: []string{"b"},
		},
		{
			name: "indexed elements",
			src:  "package p\n\nvar TEST_MARKS = [2]string{1: \"second\", 0: \"first\"}\n",
			want: []string{"second", "first"},
		},
		{
			name: "declared without value",
			src:  "package p\n\nvar TEST_MARKS []string\n",
			want: nil,
		},
		{
			name: "function locals ignored",
			src:  "package p\n\nfunc f() {\n\tvar TEST_MARKS = []string{\"local\"}\n\t_ = TEST_MARKS\n}\n",
			want: nil,
		},
		{
			name: "absent",
			src:  "package p\n",
			want: nil,
		},
	}

	in := NewGoInspector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.Inspect("marks.go", []byte(tt.src), variable)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGoInspector_Errors(t *testing.T) {
	in := NewGoInspector()

	_, err := in.Inspect("marks.go", []byte("package p\n\nvar TEST_MARKS = \"bad\"\n"), variable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSequence))
	assert.Contains(t, err.Error(), "must be a list or tuple")

	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 3, ie.Line)
	assert.Equal(t, "marks.go", ie.Path)

	_, err = in.Inspect("marks.go", []byte("package p\n\nvar TEST_MARKS = map[string]string{\"a\": \"b\"}\n"), variable)
	assert.True(t, errors.Is(err, ErrNotSequence))

	_, err = in.Inspect("marks.go", []byte("package p\n\nconst x = \"a\"\n\nvar TEST_MARKS = []string{x}\n"), variable)
	assert.True(t, errors.Is(err, ErrNonLiteral))

	_, err = in.Inspect("marks.go", []byte("package p\n\nvar A, TEST_MARKS = f()\n"), variable)
	assert.True(t, errors.Is(err, ErrNotSequence))

	_, err = in.Inspect("marks.go", []byte("package p\nvar = \n"), variable)
	assert.Error(t, err)
}

func TestPythonInspector_Inspect(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "list",
			src:  "TEST_MARKS = ['first', \"third\"]\n",
			want: []string{"first", "third"},
		},
		{
			name: "tuple",
			src:  "TEST_MARKS = ('a', 'b',)\n",
			want: []string{"a", "b"},
		},
		{
			name: "bare tuple",
			src:  "TEST_MARKS = 'a', 'b'\n",
			want: []string{"a", "b"},
		},
		{
			name: "chained assignment",
			src:  "OTHER = TEST_MARKS = ['chain']\n",
			want: []string{"chain"},
		},
		{
			name: "annotated assignment",
			src:  "TEST_MARKS: list[str] = ['typed']\n",
			want: []string{"typed"},
		},
		{
			name: "annotation only",
			src:  "TEST_MARKS: list[str]\n",
			want: nil,
		},
		{
			name: "prefixes and escapes",
			src:  "TEST_MARKS = [r'a\\d', u'uni', 'tab\\tbed', \"q\\\"uote\"]\n",
			want: []string{`a\d`, "uni", "tab\tbed", `q"uote`},
		},
		{
			name: "triple quoted",
			src:  "TEST_MARKS = ['''triple''', \"\"\"double\"\"\"]\n",
			want: []string{"triple", "double"},
		},
		{
			name: "implicit concatenation",
			src:  "TEST_MARKS = ['sl' 'ow']\n",
			want: []string{"slow"},
		},
		{
			name: "comments inside list",
			src:  "TEST_MARKS = [\n    'a',  # first\n    'b',\n]\n",
			want: []string{"a", "b"},
		},
		{
			name: "nested assignments ignored",
			src:  "def f():\n    TEST_MARKS = ['inner']\n\nclass C:\n    TEST_MARKS = ['cls']\n",
			want: nil,
		},
		{
			name: "reassignment accumulates",
			src:  "TEST_MARKS = ['a']\nTEST_MARKS = ['b']\n",
			want: []string{"a", "b"},
		},
		{
			name: "octal escape",
			src:  "TEST_MARKS = ['\\0x', '\\101']\n",
			want: []string{"\x00x", "A"},
		},
		{
			name: "empty file",
			src:  "",
			want: nil,
		},
	}

	in := NewPythonInspector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.Inspect("marks.py", []byte(tt.src), variable)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPythonInspector_CustomVariable(t *testing.T) {
	in := NewPythonInspector()
	got, err := in.Inspect("custom.py", []byte("CUSTOM = ['first', 'third']\nTEST_MARKS = ['no']\n"), "CUSTOM")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third"}, got)
}

func TestPythonInspector_Errors(t *testing.T) {
	in := NewPythonInspector()

	tests := []struct {
		name string
		src  string
		want error
	}{
		{"string value", "TEST_MARKS = 'bad'\n", ErrNotSequence},
		{"set value", "TEST_MARKS = {'a'}\n", ErrNotSequence},
		{"call value", "TEST_MARKS = list('ab')\n", ErrNotSequence},
		{"f-string element", "x = 1\nTEST_MARKS = [f'{x}']\n", ErrNonLiteral},
		{"bytes element", "TEST_MARKS = [b'a']\n", ErrNonLiteral},
		{"name element", "TEST_MARKS = [OTHER]\n", ErrNonLiteral},
		{"number element", "TEST_MARKS = [1]\n", ErrNonLiteral},
		{"syntax error", "TEST_MARKS = [\n", ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Inspect("marks.py", []byte(tt.src), variable)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTypeScriptInspector_Inspect(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want []string
	}{
		{"const", "marks.ts", "const TEST_MARKS = ['a', \"b\"];\n", []string{"a", "b"}},
		{"export as const", "marks.ts", "export const TEST_MARKS = ['a', 'b'] as const;\n", []string{"a", "b"}},
		{"type assertion", "marks.ts", "const TEST_MARKS = <const>['a'];\n", []string{"a"}},
		{"braced unicode escape", "marks.js", "const TEST_MARKS = ['caf\\u{e9}'];\n", []string{"café"}},
		{"var in js", "marks.js", "var TEST_MARKS = ['js'];\n", []string{"js"}},
		{"template without substitution", "marks.mjs", "export let TEST_MARKS = [`tpl`];\n", []string{"tpl"}},
		{"tsx", "view.tsx", "export const TEST_MARKS = ['ui'];\nexport const View = () => <div />;\n", []string{"ui"}},
		{"function locals ignored", "marks.js", "function f() { const TEST_MARKS = ['no']; }\n", nil},
	}

	in := NewTypeScriptInspector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.Inspect(tt.path, []byte(tt.src), variable)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeScriptInspector_Errors(t *testing.T) {
	in := NewTypeScriptInspector()

	_, err := in.Inspect("marks.ts", []byte("const TEST_MARKS = 'a';\n"), variable)
	assert.True(t, errors.Is(err, ErrNotSequence))

	_, err = in.Inspect("marks.js", []byte("const x = 1;\nconst TEST_MARKS = [`a${x}`];\n"), variable)
	assert.True(t, errors.Is(err, ErrNonLiteral))
}

func TestRustInspector_Inspect(t *testing.T) {
	in := NewRustInspector()

	got, err := in.Inspect("lib.rs", []byte("pub const TEST_MARKS: &[&str] = &[\"db\", r#\"raw\"#];\n"), variable)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "raw"}, got)

	got, err = in.Inspect("lib.rs", []byte("static TEST_MARKS: [&str; 1] = [\"s\"];\n"), variable)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, got)

	got, err = in.Inspect("lib.rs", []byte("const TEST_MARKS: [&str; 2] = [\"rep\"; 2_usize];\n"), variable)
	require.NoError(t, err)
	assert.Equal(t, []string{"rep"}, got)

	got, err = in.Inspect("lib.rs", []byte("const TEST_MARKS: [&str; 0] = [\"none\"; 0];\n"), variable)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = in.Inspect("lib.rs", []byte("const N: usize = 2;\nconst TEST_MARKS: [&str; N] = [\"rep\"; N];\n"), variable)
	assert.True(t, errors.Is(err, ErrNonLiteral))

	_, err = in.Inspect("lib.rs", []byte("const TEST_MARKS: &str = \"bad\";\n"), variable)
	assert.True(t, errors.Is(err, ErrNotSequence))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.Supports("a/b/marks.PY"))
	assert.True(t, r.Supports("x.go"))
	assert.True(t, r.Supports("x.tsx"))
	assert.False(t, r.Supports("README.md"))
	assert.False(t, r.Supports("Makefile"))
	assert.Contains(t, r.SupportedExtensions(), ".rs")
	assert.Equal(t, "py", r.ForPath("m.py").Language())

	_, err := r.Inspect("notes.txt", nil, variable)
	assert.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "mark.py")
	require.NoError(t, os.WriteFile(path, []byte("TEST_MARKS = ['first']\n"), 0644))
	got, err := r.InspectFile(path, variable)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, got)

	_, err = r.InspectFile(filepath.Join(dir, "missing.py"), variable)
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	tests := map[string]string{
		`plain`:       "plain",
		`a\nb`:        "a\nb",
		`\x41`:        "A",
		`\u00e9`:      "é",
		`\d`:          `\d`,
		`it\'s`:       "it's",
		"line\\\nend": "lineend",
		`trailing\`:   `trailing\`,
		`\0x`:         "\x00x",
		`\101\0`:      "A\x00",
		`\1234`:       "S4",
		`\u{1F600}`:   "\U0001F600",
		`\u{10_FFFF}`: "\U0010FFFF",
		`\u{zz}`:      `\u{zz}`,
		`\u00e9{}`:    "é{}",
	}
	for in, want := range tests {
		assert.Equal(t, want, unescape(in), "unescape(%q)", in)
	}
}
