// Package interp executes IR directly.
//
// Design: A tree-free fetch/execute loop over one method's instruction list.
// Values are int64 (ints and booleans as 0/1), *Array and *Object. A
// variable is read from its register once the allocator has resolved one
// and by name otherwise, so the same method can be run before and after
// allocation and the results compared.
package interp

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
)

// ErrStepLimit is returned once a run exceeds Machine.MaxSteps
var ErrStepLimit = errors.New("step limit exceeded")

type Array struct {
	Elems []int64
}

type Object struct {
	Class  string
	Fields map[string]any
}

// Host serves static calls on imported classes
type Host interface {
	CallStatic(class, method string, args []any) (any, error)
}

// HostFunc adapts a function to Host
type HostFunc func(class, method string, args []any) (any, error)

func (f HostFunc) CallStatic(class, method string, args []any) (any, error) {
	return f(class, method, args)
}

// RuntimeError locates a failure at an instruction
type RuntimeError struct {
	Method string
	Inst   int
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("method %s, instruction %d: %v", e.Method, e.Inst, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

type Machine struct {
	class *ir.Class
	host  Host
	// MaxSteps bounds the instructions executed per top-level call; 0 is unbounded
	MaxSteps int
	steps    int
}

func New(class *ir.Class, host Host) *Machine {
	return &Machine{class: class, host: host}
}

// NewObject returns an instance of the machine's class with zeroed fields
func (m *Machine) NewObject() *Object {
	obj := &Object{Class: m.class.Name, Fields: make(map[string]any, len(m.class.Fields))}
	for _, f := range m.class.Fields {
		obj.Fields[f.Name] = zero(f.Typ)
	}
	return obj
}

// Call runs method with receiver this (nil for static methods)
func (m *Machine) Call(method string, this *Object, args ...any) (any, error) {
	m.steps = 0
	return m.invoke(method, this, args)
}

func (m *Machine) invoke(name string, this *Object, args []any) (any, error) {
	meth := m.class.Method(name)
	if meth == nil {
		return nil, fmt.Errorf("no method %s in class %s", name, m.class.Name)
	}
	if len(args) != len(meth.Params) {
		return nil, fmt.Errorf("method %s takes %d arguments, got %d", name, len(meth.Params), len(args))
	}
	if !meth.Static && this == nil {
		this = m.NewObject()
	}
	f := &frame{
		m:    m,
		meth: meth,
		this: this,
		vars: make(map[string]any),
		regs: make(map[int]any),
	}
	for i, p := range meth.Params {
		f.vars[p.Name] = args[i]
		f.regs[p.Offset] = args[i]
	}
	logger.Debug("Interpreting method", "method", name, "args", len(args))
	return f.run()
}

type frame struct {
	m    *Machine
	meth *ir.Method
	this *Object
	vars map[string]any
	regs map[int]any
}

func (f *frame) run() (any, error) {
	insts := f.meth.Insts
	for pc := 0; pc < len(insts); {
		f.m.steps++
		if f.m.MaxSteps > 0 && f.m.steps > f.m.MaxSteps {
			return nil, &RuntimeError{Method: f.meth.Name, Inst: pc, Err: ErrStepLimit}
		}
		next, ret, done, err := f.step(insts[pc], pc)
		if err != nil {
			var re *RuntimeError
			if errors.As(err, &re) {
				return nil, err
			}
			return nil, &RuntimeError{Method: f.meth.Name, Inst: pc, Err: err}
		}
		if done {
			return ret, nil
		}
		pc = next
	}
	return nil, nil
}

func (f *frame) step(inst ir.Inst, pc int) (next int, ret any, done bool, err error) {
	switch i := inst.(type) {
	case *ir.Assign:
		v, err := f.eval(i.RHS)
		if err != nil {
			return 0, nil, false, err
		}
		return pc + 1, nil, false, f.store(i.Dest, v)
	case *ir.Goto:
		return f.meth.Labels[i.Label], nil, false, nil
	case *ir.CondBranch:
		v, err := f.eval(i.Cond)
		if err != nil {
			return 0, nil, false, err
		}
		b, err := asInt(v)
		if err != nil {
			return 0, nil, false, err
		}
		if b != 0 {
			return f.meth.Labels[i.Label], nil, false, nil
		}
		return pc + 1, nil, false, nil
	case *ir.Return:
		if i.Value == nil {
			return 0, nil, true, nil
		}
		v, err := f.load(i.Value)
		return 0, v, true, err
	case *ir.PutField:
		obj, err := f.object(i.Object)
		if err != nil {
			return 0, nil, false, err
		}
		v, err := f.load(i.Value)
		if err != nil {
			return 0, nil, false, err
		}
		obj.Fields[i.Field.Name] = v
		return pc + 1, nil, false, nil
	default:
		_, err := f.eval(inst)
		return pc + 1, nil, false, err
	}
}

func (f *frame) eval(inst ir.Inst) (any, error) {
	switch i := inst.(type) {
	case *ir.NoOp:
		return f.load(i.X)
	case *ir.BinaryOp:
		l, err := f.integer(i.Left)
		if err != nil {
			return nil, err
		}
		r, err := f.integer(i.Right)
		if err != nil {
			return nil, err
		}
		return binary(i.Op, l, r)
	case *ir.UnaryOp:
		x, err := f.integer(i.X)
		if err != nil {
			return nil, err
		}
		if i.Op != ir.OpNot {
			return nil, fmt.Errorf("unknown unary op %s", i.Op)
		}
		return boolInt(x == 0), nil
	case *ir.GetField:
		obj, err := f.object(i.Object)
		if err != nil {
			return nil, err
		}
		if v, ok := obj.Fields[i.Field.Name]; ok {
			return v, nil
		}
		return zero(i.Field.Typ), nil
	case *ir.Call:
		return f.call(i)
	}
	return nil, fmt.Errorf("cannot evaluate %T", inst)
}

func (f *frame) call(c *ir.Call) (any, error) {
	switch c.Kind {
	case ir.CallNew:
		ref, ok := c.Target.(*ir.ClassRef)
		if !ok {
			return nil, fmt.Errorf("new without a class")
		}
		if ref.Name == f.m.class.Name {
			return f.m.NewObject(), nil
		}
		return &Object{Class: ref.Name, Fields: make(map[string]any)}, nil
	case ir.CallNewArray:
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("new array takes one size")
		}
		n, err := f.integer(c.Args[0])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative array size %d", n)
		}
		return &Array{Elems: make([]int64, n)}, nil
	case ir.CallArrayLength:
		arr, err := f.array(c.Target)
		if err != nil {
			return nil, err
		}
		return int64(len(arr.Elems)), nil
	case ir.CallSpecial:
		// constructors have no body
		return nil, nil
	}

	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := f.load(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if c.Kind == ir.CallStatic {
		ref, ok := c.Target.(*ir.ClassRef)
		if !ok {
			return nil, fmt.Errorf("static call without a class")
		}
		if ref.Name == f.m.class.Name {
			return f.m.invoke(c.Method, nil, args)
		}
		if f.m.host == nil {
			return nil, fmt.Errorf("no host for %s.%s", ref.Name, c.Method)
		}
		return f.m.host.CallStatic(ref.Name, c.Method, args)
	}

	obj, err := f.object(c.Target)
	if err != nil {
		return nil, err
	}
	if obj.Class != f.m.class.Name {
		return nil, fmt.Errorf("cannot dispatch %s on %s", c.Method, obj.Class)
	}
	return f.m.invoke(c.Method, obj, args)
}

func (f *frame) load(op ir.Operand) (any, error) {
	switch o := op.(type) {
	case *ir.Literal:
		return strconv.ParseInt(o.Value, 10, 64)
	case *ir.Variable:
		if o.Reg != ir.NoReg {
			if v, ok := f.regs[o.Reg]; ok {
				return v, nil
			}
		} else if v, ok := f.vars[o.Name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("variable %s read before assignment", o.Name)
	case *ir.ArrayElement:
		arr, idx, err := f.element(o)
		if err != nil {
			return nil, err
		}
		return arr.Elems[idx], nil
	case *ir.This:
		if f.this == nil {
			return nil, fmt.Errorf("this in static method")
		}
		return f.this, nil
	}
	return nil, fmt.Errorf("cannot load %T", op)
}

func (f *frame) store(dest ir.Operand, v any) error {
	switch d := dest.(type) {
	case *ir.Variable:
		if d.Reg != ir.NoReg {
			f.regs[d.Reg] = v
		} else {
			f.vars[d.Name] = v
		}
		return nil
	case *ir.ArrayElement:
		arr, idx, err := f.element(d)
		if err != nil {
			return err
		}
		n, err := asInt(v)
		if err != nil {
			return err
		}
		arr.Elems[idx] = n
		return nil
	}
	return fmt.Errorf("cannot store to %T", dest)
}

func (f *frame) element(e *ir.ArrayElement) (*Array, int64, error) {
	arr, err := f.array(e.Array)
	if err != nil {
		return nil, 0, err
	}
	idx, err := f.integer(e.Index)
	if err != nil {
		return nil, 0, err
	}
	if idx < 0 || idx >= int64(len(arr.Elems)) {
		return nil, 0, fmt.Errorf("index %d out of range [0:%d]", idx, len(arr.Elems))
	}
	return arr, idx, nil
}

func (f *frame) integer(op ir.Operand) (int64, error) {
	v, err := f.load(op)
	if err != nil {
		return 0, err
	}
	return asInt(v)
}

func (f *frame) array(op ir.Operand) (*Array, error) {
	v, err := f.load(op)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, fmt.Errorf("%v is not an array", v)
	}
	return arr, nil
}

func (f *frame) object(op ir.Operand) (*Object, error) {
	v, err := f.load(op)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%v is not an object", v)
	}
	return obj, nil
}

// binary applies op with JVM int semantics: arithmetic wraps at 32 bits
func binary(op ir.Op, l, r int64) (int64, error) {
	switch op {
	case ir.OpAdd:
		return wrap(l + r), nil
	case ir.OpSub:
		return wrap(l - r), nil
	case ir.OpMul:
		return wrap(l * r), nil
	case ir.OpDiv:
		if r == 0 {
			return 0, errors.New("division by zero")
		}
		return wrap(l / r), nil
	case ir.OpLt:
		return boolInt(l < r), nil
	case ir.OpGt:
		return boolInt(l > r), nil
	case ir.OpLe:
		return boolInt(l <= r), nil
	case ir.OpGe:
		return boolInt(l >= r), nil
	case ir.OpEq:
		return boolInt(l == r), nil
	case ir.OpNe:
		return boolInt(l != r), nil
	case ir.OpAnd:
		return boolInt(l != 0 && r != 0), nil
	}
	return 0, fmt.Errorf("unknown binary op %s", op)
}

func wrap(n int64) int64 { return int64(int32(n)) }

func asInt(v any) (int64, error) {
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%v is not an int", v)
	}
	return n, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func zero(t ir.Type) any {
	if !t.Array && (t == ir.Int || t == ir.Bool) {
		return int64(0)
	}
	return nil
}
