package inspect

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeLine returns the 1-indexed line of a node.
func nodeLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// firstErrorLine returns the line of the first ERROR or MISSING node, or 0.
func firstErrorLine(n *sitter.Node) int {
	if n == nil || !n.HasError() {
		return 0
	}
	if n.Type() == "ERROR" || n.IsMissing() {
		return nodeLine(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if line := firstErrorLine(n.Child(i)); line > 0 {
			return line
		}
	}
	return nodeLine(n)
}

// unwrap strips wrapper nodes (parentheses, type assertions) around a value.
func unwrap(n *sitter.Node, wrappers ...string) *sitter.Node {
	for n != nil {
		matched := false
		for _, w := range wrappers {
			if n.Type() == w {
				matched = true
				break
			}
		}
		if !matched || n.NamedChildCount() == 0 {
			return n
		}
		n = n.NamedChild(0)
	}
	return n
}

// unescape interprets backslash escapes the way Python, JavaScript and Rust
// do for the common cases. Unknown escapes keep their backslash.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			b.WriteByte(c)
			break
		}
		switch next := s[i+1]; next {
		case '\n':
			// Line continuation
			i += 2
			continue
		case '\'', '"', '`':
			b.WriteByte(next)
			i += 2
			continue
		case '0', '1', '2', '3', '4', '5', '6', '7':
			// One to three octal digits; Rust only has \0
			j, v := i+1, rune(0)
			for ; j < len(s) && j < i+4 && s[j] >= '0' && s[j] <= '7'; j++ {
				v = v*8 + rune(s[j]-'0')
			}
			b.WriteRune(v)
			i = j
			continue
		case 'u':
			if r, n, ok := bracedCodePoint(s[i+2:]); ok {
				b.WriteRune(r)
				i += 2 + n
				continue
			}
		}
		value, _, tail, err := strconv.UnquoteChar(s[i:], 0)
		if err != nil {
			b.WriteByte(c)
			i++
			continue
		}
		b.WriteRune(value)
		i = len(s) - len(tail)
	}
	return b.String()
}

// bracedCodePoint decodes the {XXXX} part of a \u{XXXX} escape and returns the
// number of bytes consumed.
func bracedCodePoint(s string) (rune, int, bool) {
	if !strings.HasPrefix(s, "{") {
		return 0, 0, false
	}
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return 0, 0, false
	}
	digits := strings.ReplaceAll(s[1:end], "_", "")
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil || v > utf8.MaxRune || (v >= 0xD800 && v <= 0xDFFF) {
		return 0, 0, false
	}
	return rune(v), end + 1, true
}

// parseQuoted splits a quoted literal body out of its delimiters. quote may be
// one or three characters long.
func parseQuoted(text string) (body string, ok bool) {
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if len(text) >= 2*len(q) && strings.HasPrefix(text, q) && strings.HasSuffix(text, q) {
			return text[len(q) : len(text)-len(q)], true
		}
	}
	return "", false
}
