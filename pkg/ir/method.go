package ir

import (
	"fmt"
	"sort"
)

// Class is the top-level IR container
type Class struct {
	Name    string
	Super   string
	Imports []string
	Fields  []*Field
	Methods []*Method
}

// Method looks up a method by name
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Param is a method parameter with its fixed local slot
type Param struct {
	Name   string
	Type   Type
	Offset int
}

// Method owns an ordered instruction list. Instruction 0 is the entry.
type Method struct {
	Name   string
	Static bool
	Params []*Param
	Return Type
	Insts  []Inst
	// Labels maps each label to the index of the instruction it marks
	Labels map[string]int
}

// Reserved is the number of slots pinned before allocation: this, then params
func (m *Method) Reserved() int {
	n := len(m.Params)
	if !m.Static {
		n++
	}
	return n
}

// IsParam reports whether name is one of the method's parameters
func (m *Method) IsParam(name string) bool {
	for _, p := range m.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Successors returns the indices control may reach after instruction i
func (m *Method) Successors(i int) []int {
	next := i + 1
	switch inst := m.Insts[i].(type) {
	case *Return:
		return nil
	case *Goto:
		if t, ok := m.Labels[inst.Label]; ok {
			return []int{t}
		}
		return nil
	case *CondBranch:
		succ := make([]int, 0, 2)
		if next < len(m.Insts) {
			succ = append(succ, next)
		}
		if t, ok := m.Labels[inst.Label]; ok && t != next {
			succ = append(succ, t)
		}
		return succ
	}
	if next < len(m.Insts) {
		return []int{next}
	}
	return nil
}

// LabelsAt inverts Labels: instruction index to the sorted labels marking it
func (m *Method) LabelsAt() map[int][]string {
	at := make(map[int][]string, len(m.Labels))
	for label, i := range m.Labels {
		at[i] = append(at[i], label)
	}
	for _, labels := range at {
		sort.Strings(labels)
	}
	return at
}

// Validate checks that every branch target resolves to an instruction
func (m *Method) Validate() error {
	for label, i := range m.Labels {
		if i < 0 || i >= len(m.Insts) {
			return &InvariantError{Method: m.Name, Msg: fmt.Sprintf("label %s marks no instruction", label)}
		}
	}
	for i, inst := range m.Insts {
		var target string
		switch b := inst.(type) {
		case *Goto:
			target = b.Label
		case *CondBranch:
			target = b.Label
		default:
			continue
		}
		if _, ok := m.Labels[target]; !ok {
			return &InvariantError{Method: m.Name, Msg: fmt.Sprintf("instruction %d branches to unknown label %s", i, target)}
		}
	}
	return nil
}

// InvariantError reports IR that the builder should never have produced
type InvariantError struct {
	Method string
	Msg    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal error in method %s: %s", e.Method, e.Msg)
}
