// Package marks unions the mark names declared across a set of source files.
package marks

import "sort"

// Set is a set of mark names.
type Set map[string]struct{}

// NewSet creates a Set holding names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	s.Add(names...)
	return s
}

// Add inserts names into the set.
func (s Set) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Union adds every member of other to s.
func (s Set) Union(other Set) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of marks.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the marks in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
