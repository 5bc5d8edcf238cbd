// Package regalloc maps IR variables onto JVM local-variable slots.
//
// Design: Slot 0 holds this in instance methods and parameters follow in
// order; those slots are fixed. Every other variable is colored from the
// interference graph with the slots that remain. There is no spilling: a
// budget that cannot be met is reported, never silently exceeded.
package regalloc

import (
	"fmt"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/liveness"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
)

// Minimum as a register budget asks for the smallest count that works
const Minimum = 0

// Config holds the register budget of one allocation
type Config struct {
	// Registers is the total number of local slots, this and parameters
	// included, or Minimum
	Registers int
	// ReportMinimum makes a failed fixed-budget allocation also compute
	// the smallest budget that would have succeeded
	ReportMinimum bool
}

// Descriptor maps each variable name to its register
type Descriptor map[string]int

// Allocation is the outcome of a successful allocation
type Allocation struct {
	Method     string
	Descriptor Descriptor
	// K is the number of colors that were available to non-parameter variables
	K int
	// Registers is the number of slots actually used
	Registers int
}

// InfeasibleError reports a budget the interference graph cannot be colored in
type InfeasibleError struct {
	Method    string
	Registers int
	K         int
	// Minimum is the smallest workable budget, 0 when not computed
	Minimum int
}

func (e *InfeasibleError) Error() string {
	msg := fmt.Sprintf("method %s: %d registers are not enough (k=%d)", e.Method, e.Registers, e.K)
	if e.Minimum > 0 {
		msg += fmt.Sprintf("; at least %d needed", e.Minimum)
	}
	return msg
}

// Allocate colors the variables of m within the budget in cfg
func Allocate(m *ir.Method, live *liveness.Result, cfg Config) (*Allocation, error) {
	if cfg.Registers < 0 {
		return nil, fmt.Errorf("method %s: invalid register budget %d", m.Name, cfg.Registers)
	}
	logger.Debug("Starting register allocation", "method", m.Name, "registers", cfg.Registers)

	ig := BuildGraph(m, live)
	logger.Debug("Built interference graph",
		"method", m.Name,
		"nodes", len(ig.nodes),
		"edges", ig.EdgeCount())

	reserved := m.Reserved()
	var k int
	if cfg.Registers == Minimum {
		k = ig.MinColors()
	} else {
		k = cfg.Registers - reserved
	}

	var colors map[string]int
	var err error
	if k < 0 {
		err = &InfeasibleError{K: k}
	} else {
		colors, err = ig.Color(k)
	}
	if err != nil {
		ie := &InfeasibleError{Method: m.Name, Registers: cfg.Registers, K: k}
		if cfg.ReportMinimum {
			ie.Minimum = reserved + ig.MinColors()
		}
		logger.LogAllocationFailed(m.Name, cfg.Registers, k)
		return nil, ie
	}

	a := &Allocation{
		Method:     m.Name,
		Descriptor: make(Descriptor, len(colors)+len(m.Params)),
		K:          k,
		Registers:  reserved,
	}
	for _, p := range m.Params {
		a.Descriptor[p.Name] = p.Offset
	}
	for name, c := range colors {
		a.Descriptor[name] = reserved + c
		if reserved+c+1 > a.Registers {
			a.Registers = reserved + c + 1
		}
	}
	logger.LogAllocation(m.Name, k, a.Registers)
	return a, nil
}

// Apply writes the registers of d into every variable operand of m
func Apply(m *ir.Method, d Descriptor) {
	for _, inst := range m.Insts {
		for _, v := range ir.Variables(inst) {
			if r, ok := d[v.Name]; ok {
				v.Reg = r
			}
		}
	}
}

// Fallback gives every distinct variable its own register, in order of
// first appearance after this and the parameters. It returns the descriptor
// and the number of slots it needs.
func Fallback(m *ir.Method) (Descriptor, int) {
	d := make(Descriptor)
	for _, p := range m.Params {
		d[p.Name] = p.Offset
	}
	next := m.Reserved()
	for _, inst := range m.Insts {
		for _, v := range ir.Variables(inst) {
			if _, ok := d[v.Name]; !ok {
				d[v.Name] = next
				next++
			}
		}
	}
	return d, next
}
