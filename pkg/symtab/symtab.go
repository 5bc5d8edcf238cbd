// Package symtab holds the symbol table produced by semantic analysis.
//
// The back end only reads it: class identity, imports, field types and the
// signatures of the class's own methods.
package symtab

import (
	"slices"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ast"
)

// Symbol is a named, typed entry
type Symbol struct {
	Name string
	Type ast.Type
}

// Method is a resolved method signature
type Method struct {
	Name   string
	Static bool
	Return ast.Type
	Params []Symbol
	Locals []Symbol
}

// Offset returns the local slot of the named parameter, or -1
func (m *Method) Offset(name string) int {
	base := 1
	if m.Static {
		base = 0
	}
	for i, p := range m.Params {
		if p.Name == name {
			return base + i
		}
	}
	return -1
}

// Table is the symbol table of one class
type Table struct {
	Class   string
	Super   string
	Imports []string
	Fields  []Symbol
	Methods map[string]*Method
}

// FromClass derives a table from declarations in a typed tree
func FromClass(c *ast.Class) *Table {
	t := &Table{
		Class:   c.Name,
		Super:   c.Super,
		Imports: slices.Clone(c.Imports),
		Methods: make(map[string]*Method, len(c.Methods)),
	}
	for _, f := range c.Fields {
		t.Fields = append(t.Fields, Symbol{Name: f.Name, Type: f.Type})
	}
	for _, m := range c.Methods {
		sig := &Method{Name: m.Name, Static: m.Static, Return: m.Return}
		for _, p := range m.Params {
			sig.Params = append(sig.Params, Symbol{Name: p.Name, Type: p.Type})
		}
		for _, l := range m.Locals {
			sig.Locals = append(sig.Locals, Symbol{Name: l.Name, Type: l.Type})
		}
		t.Methods[m.Name] = sig
	}
	return t
}

// Method looks up one of the class's own methods
func (t *Table) Method(name string) (*Method, bool) {
	m, ok := t.Methods[name]
	return m, ok
}

// Field looks up a field of the class
func (t *Table) Field(name string) (Symbol, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Symbol{}, false
}

// IsImported reports whether name is an imported class
func (t *Table) IsImported(name string) bool {
	for _, imp := range t.Imports {
		if imp == name || hasSuffixSegment(imp, name) {
			return true
		}
	}
	return false
}

// hasSuffixSegment matches "a.b.C" against "C"
func hasSuffixSegment(path, name string) bool {
	n := len(path) - len(name)
	return n > 0 && path[n-1] == '.' && path[n:] == name
}
