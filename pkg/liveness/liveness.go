// Package liveness computes per-instruction live variable sets.
//
// Design: Classic backward dataflow over the instruction-level CFG.
// in[n] = use[n] ∪ (out[n] \ def[n]), out[n] = ∪ in[s] for s in succ(n),
// iterated from empty sets in full passes until nothing changes.
package liveness

import (
	"fmt"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
)

// Result holds the dataflow sets of one method, indexed by instruction
type Result struct {
	Def []Set
	Use []Set
	In  []Set
	Out []Set
	// Order is the visiting order: breadth-first from the entry, then any
	// instruction the entry cannot reach
	Order []int
	// Passes is the number of full passes run, the last one changing nothing
	Passes int
}

// Analyze runs liveness analysis on m to a fixed point
func Analyze(m *ir.Method) *Result {
	n := len(m.Insts)
	r := &Result{
		Def: make([]Set, n),
		Use: make([]Set, n),
		In:  make([]Set, n),
		Out: make([]Set, n),
	}
	for i, inst := range m.Insts {
		r.Def[i], r.Use[i] = DefUse(inst)
		r.In[i] = Set{}
		r.Out[i] = Set{}
	}
	r.Order = visitOrder(m)

	for changed := true; changed; {
		changed = r.pass(m)
		r.Passes++
	}
	logger.LogLiveness(m.Name, r.Passes)
	return r
}

// pass recomputes every set once and reports whether any changed
func (r *Result) pass(m *ir.Method) bool {
	changed := false
	for _, i := range r.Order {
		out := Set{}
		for _, s := range m.Successors(i) {
			out.Union(r.In[s])
		}
		in := r.Use[i].Clone()
		for v := range out {
			if !r.Def[i].Has(v) {
				in.Add(v)
			}
		}
		if !in.Equal(r.In[i]) || !out.Equal(r.Out[i]) {
			changed = true
		}
		r.In[i], r.Out[i] = in, out
	}
	return changed
}

func visitOrder(m *ir.Method) []int {
	n := len(m.Insts)
	order := make([]int, 0, n)
	if n == 0 {
		return order
	}
	seen := make([]bool, n)
	queue := []int{0}
	seen[0] = true
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, s := range m.Successors(i) {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	for i := range seen {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}

// DefUse returns the variables an instruction writes and reads. Only a plain
// variable destination is a def; literals, this, field and class markers are
// never uses, while array bases and indices are.
func DefUse(inst ir.Inst) (def, use Set) {
	def, use = Set{}, Set{}
	if a, ok := inst.(*ir.Assign); ok {
		switch d := a.Dest.(type) {
		case *ir.Variable:
			def.Add(d.Name)
		case *ir.ArrayElement:
			addUse(use, d)
		}
		inst = a.RHS
	}
	for _, op := range ir.Operands(inst) {
		addUse(use, op)
	}
	return def, use
}

func addUse(use Set, op ir.Operand) {
	switch o := op.(type) {
	case *ir.Variable:
		use.Add(o.Name)
	case *ir.ArrayElement:
		use.Add(o.Array.Name)
		addUse(use, o.Index)
	}
}

// Verify checks the dataflow equations against m
func (r *Result) Verify(m *ir.Method) error {
	for i := range m.Insts {
		out := Set{}
		for _, s := range m.Successors(i) {
			out.Union(r.In[s])
		}
		if !out.Equal(r.Out[i]) {
			return fmt.Errorf("method %s: out[%d] = %v, want %v", m.Name, i, r.Out[i].Sorted(), out.Sorted())
		}
		in := r.Use[i].Clone()
		for v := range r.Out[i] {
			if !r.Def[i].Has(v) {
				in.Add(v)
			}
		}
		if !in.Equal(r.In[i]) {
			return fmt.Errorf("method %s: in[%d] = %v, want %v", m.Name, i, r.In[i].Sorted(), in.Sorted())
		}
	}
	return nil
}

// LiveIn returns the variables live on entry to the method
func (r *Result) LiveIn() Set {
	if len(r.In) == 0 {
		return Set{}
	}
	return r.In[0]
}
