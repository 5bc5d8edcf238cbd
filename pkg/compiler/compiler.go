// Package compiler runs the back end over a class and hands the result to
// the bytecode emitter.
//
// Design: Methods share nothing but the read-only symbol table, so each one
// goes through build, liveness and allocation on its own goroutine. A failing
// method never stops its siblings; every failure is reported together.
package compiler

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ast"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/codegen/regalloc"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/liveness"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/symtab"
)

// Unallocated as a register budget skips allocation altogether
const Unallocated = -1

// Options controls one compilation
type Options struct {
	// Registers is a fixed budget, regalloc.Minimum, or Unallocated
	Registers int
	// Workers bounds the methods compiled at once; 0 means GOMAXPROCS
	Workers int
	// ReportMinimum asks infeasible allocations for the smallest workable budget
	ReportMinimum bool
	// Verify re-checks the liveness equations of every method
	Verify bool
}

func DefaultOptions() Options {
	return Options{Registers: regalloc.Minimum}
}

// Unit is everything the emitter needs for one class
type Unit struct {
	Name    string
	Super   string
	Fields  []*ir.Field
	Methods []*MethodUnit
}

// MethodUnit is one method ready for emission
type MethodUnit struct {
	Method     *ir.Method
	ParamTypes []ir.Type
	Return     ir.Type
	// Allocated is false when allocation was skipped or failed; registers
	// then come from regalloc.Fallback
	Allocated bool
	// Locals is the number of local slots the method needs
	Locals int
	// Labels maps instruction indices to the labels placed before them
	Labels map[int][]string
}

// MethodError is a failure confined to one method
type MethodError struct {
	Method string
	Phase  string
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("%s: method %s: %v", e.Phase, e.Method, e.Err)
}

func (e *MethodError) Unwrap() error { return e.Err }

// Compile lowers every method of class. A nil table is derived from the
// class itself. The unit holds every method that got past IR construction,
// even when the returned error is non-nil.
func Compile(class *ast.Class, table *symtab.Table, opts Options) (*Unit, error) {
	if table == nil {
		table = symtab.FromClass(class)
	}
	logger.LogPhase("backend")
	b := ir.NewBuilder(table)
	skel := b.Skeleton(class)

	units, err := each(len(class.Methods), opts.Workers, func(i int) (*MethodUnit, error) {
		decl := class.Methods[i]
		m, err := b.BuildMethod(decl)
		if err != nil {
			return nil, &MethodError{Method: decl.Name, Phase: "ir", Err: err}
		}
		return Lower(m, opts)
	})
	logger.LogPhaseComplete("backend")
	return &Unit{Name: skel.Name, Super: skel.Super, Fields: skel.Fields, Methods: units}, err
}

// CompileIR runs liveness and allocation over IR that is already built,
// such as IR read back from text
func CompileIR(class *ir.Class, opts Options) (*Unit, error) {
	logger.LogPhase("regalloc")
	units, err := each(len(class.Methods), opts.Workers, func(i int) (*MethodUnit, error) {
		return Lower(class.Methods[i], opts)
	})
	logger.LogPhaseComplete("regalloc")
	return &Unit{Name: class.Name, Super: class.Super, Fields: class.Fields, Methods: units}, err
}

// Lower analyses and allocates one method in place. On an infeasible
// budget the method still comes back, numbered by regalloc.Fallback,
// together with the error.
func Lower(m *ir.Method, opts Options) (*MethodUnit, error) {
	mu := &MethodUnit{Method: m, Return: m.Return}
	for _, p := range m.Params {
		mu.ParamTypes = append(mu.ParamTypes, p.Type)
	}

	if opts.Registers == Unallocated {
		mu.Locals = fallback(m)
		mu.Labels = m.LabelsAt()
		return mu, nil
	}

	live := liveness.Analyze(m)
	if opts.Verify {
		if err := live.Verify(m); err != nil {
			return nil, &MethodError{Method: m.Name, Phase: "liveness", Err: err}
		}
	}

	alloc, err := regalloc.Allocate(m, live, regalloc.Config{
		Registers:     opts.Registers,
		ReportMinimum: opts.ReportMinimum,
	})
	if err != nil {
		mu.Locals = fallback(m)
		mu.Labels = m.LabelsAt()
		return mu, &MethodError{Method: m.Name, Phase: "regalloc", Err: err}
	}
	regalloc.Apply(m, alloc.Descriptor)
	mu.Allocated = true
	mu.Locals = alloc.Registers
	mu.Labels = m.LabelsAt()
	return mu, nil
}

func fallback(m *ir.Method) int {
	d, n := regalloc.Fallback(m)
	regalloc.Apply(m, d)
	return n
}

// each runs fn for 0..n-1 on at most workers goroutines and keeps results
// in index order
func each(n, workers int, fn func(i int) (*MethodUnit, error)) ([]*MethodUnit, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*MethodUnit, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i], errs[i] = fn(i)
			return nil
		})
	}
	_ = g.Wait()

	units := make([]*MethodUnit, 0, n)
	for i, mu := range results {
		if errs[i] != nil {
			var me *MethodError
			if errors.As(errs[i], &me) {
				logger.LogError(me.Phase, me.Method, me.Err.Error())
			}
		}
		if mu != nil {
			units = append(units, mu)
		}
	}
	return units, errors.Join(errs...)
}

// IsInfeasible reports whether err includes an allocation that did not fit
func IsInfeasible(err error) bool {
	var ie *regalloc.InfeasibleError
	return errors.As(err, &ie)
}
