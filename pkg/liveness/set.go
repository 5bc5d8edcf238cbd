package liveness

import (
	"maps"
	"sort"
)

// Set is a set of variable names
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	s.Add(names...)
	return s
}

func (s Set) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Clone() Set {
	if s == nil {
		return Set{}
	}
	return maps.Clone(s)
}

// Union adds every member of other to s
func (s Set) Union(other Set) {
	for n := range other {
		s[n] = struct{}{}
	}
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
