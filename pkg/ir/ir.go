// Package ir implements the intermediate representation.
//
// Design: Three-address code over a flat, ordered instruction list per method.
// Control flow is explicit (labels, goto, conditional branch), operands are
// typed, and variables carry the register slot assigned by the allocator.
package ir

import (
	"fmt"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ast"
)

// NoReg marks a variable whose register has not been resolved
const NoReg = -1

// Type is an IR type: a JVM primitive, a class, or an array of either
type Type struct {
	Name  string
	Array bool
}

var (
	Int      = Type{Name: "int"}
	Bool     = Type{Name: "boolean"}
	Void     = Type{Name: "void"}
	IntArray = Type{Name: "int", Array: true}
)

// TypeOf converts a source type
func TypeOf(t ast.Type) Type {
	return Type{Name: t.Name, Array: t.IsArray}
}

// Elem returns the element type of an array type
func (t Type) Elem() Type {
	return Type{Name: t.Name}
}

// String renders the type in textual IR form (i32, bool, V, array.i32, Foo).
// A class whose name reads as one of the reserved spellings gets a class.
// prefix.
func (t Type) String() string {
	var s string
	switch t.Name {
	case "int":
		s = "i32"
	case "boolean":
		s = "bool"
	case "void":
		s = "V"
	case "i32", "bool", "V", "array", "class":
		s = "class." + t.Name
	default:
		s = t.Name
	}
	if t.Array {
		return "array." + s
	}
	return s
}

// Operands

type Operand interface {
	Type() Type
	operand()
}

// Literal is an integer or boolean constant
type Literal struct {
	Value string
	Typ   Type
}

func (l *Literal) Type() Type { return l.Typ }
func (*Literal) operand()     {}

// Variable is a source local, a parameter, or a temporary
type Variable struct {
	Name        string
	Typ         Type
	IsParameter bool
	Offset      int // parameter slot, meaningful when IsParameter
	Reg         int // resolved register, NoReg until allocation
}

func (v *Variable) Type() Type { return v.Typ }
func (*Variable) operand()     {}

// ArrayElement is Array[Index]
type ArrayElement struct {
	Array *Variable
	Index Operand
}

func (a *ArrayElement) Type() Type { return a.Array.Typ.Elem() }
func (*ArrayElement) operand()     {}

// This is the receiver of an instance method
type This struct {
	Typ Type
}

func (t *This) Type() Type { return t.Typ }
func (*This) operand()     {}

// Field names a field in getfield/putfield. It is not a variable.
type Field struct {
	Name string
	Typ  Type
}

func (f *Field) Type() Type { return f.Typ }
func (*Field) operand()     {}

// ClassRef names a class as a static call target or in new. Not a variable.
type ClassRef struct {
	Name string
}

func (c *ClassRef) Type() Type { return Type{Name: c.Name} }
func (*ClassRef) operand()     {}

// Constructors

func Var(name string, t Type) *Variable {
	return &Variable{Name: name, Typ: t, Reg: NoReg}
}

func ParamVar(name string, t Type, offset int) *Variable {
	return &Variable{Name: name, Typ: t, IsParameter: true, Offset: offset, Reg: NoReg}
}

func IntLit(v int64) *Literal {
	return &Literal{Value: fmt.Sprint(v), Typ: Int}
}

func BoolLit(v bool) *Literal {
	if v {
		return &Literal{Value: "1", Typ: Bool}
	}
	return &Literal{Value: "0", Typ: Bool}
}

// Instructions

type Inst interface {
	inst()
}

// Assign stores RHS into Dest (a *Variable or an *ArrayElement)
type Assign struct {
	Dest Operand
	Typ  Type
	RHS  Inst
}

func (*Assign) inst() {}

type BinaryOp struct {
	Op    Op
	Left  Operand
	Right Operand
	Typ   Type // result type
}

func (*BinaryOp) inst() {}

type UnaryOp struct {
	Op  Op
	X   Operand
	Typ Type
}

func (*UnaryOp) inst() {}

// CallKind distinguishes the dispatch forms of Call
type CallKind int

const (
	CallStatic CallKind = iota
	CallVirtual
	CallSpecial
	CallNew
	CallNewArray
	CallArrayLength
)

var callKindNames = [...]string{
	CallStatic:      "invokestatic",
	CallVirtual:     "invokevirtual",
	CallSpecial:     "invokespecial",
	CallNew:         "new",
	CallNewArray:    "new",
	CallArrayLength: "arraylength",
}

func (k CallKind) String() string {
	if k >= 0 && int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// Call covers invocations, object and array creation, and arraylength.
// Target is a *ClassRef for static calls and new, the receiver for virtual
// and special calls, the array for arraylength, and nil for new-array.
type Call struct {
	Kind   CallKind
	Target Operand
	Method string
	Args   []Operand
	Typ    Type
}

func (*Call) inst() {}

type GetField struct {
	Object Operand
	Field  *Field
}

func (*GetField) inst() {}

type PutField struct {
	Object Operand
	Field  *Field
	Value  Operand
}

func (*PutField) inst() {}

type Goto struct {
	Label string
}

func (*Goto) inst() {}

// CondBranch jumps to Label when Cond holds and falls through otherwise
type CondBranch struct {
	Cond  Inst
	Label string
}

func (*CondBranch) inst() {}

type Return struct {
	Value Operand // nil for void
	Typ   Type
}

func (*Return) inst() {}

// NoOp yields its operand unchanged
type NoOp struct {
	X Operand
}

func (*NoOp) inst() {}

// Operations
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpLt
	OpGt
	OpLe
	OpGe
	OpEq
	OpNe
	OpAnd
	OpNot
)

var opNames = [...]string{"+", "-", "*", "/", "<", ">", "<=", ">=", "==", "!=", "&&", "!"}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsRelational reports whether the op compares integers
func (o Op) IsRelational() bool {
	return o >= OpLt && o <= OpNe
}

// Inverse returns the relational op that holds exactly when o does not
func (o Op) Inverse() Op {
	switch o {
	case OpLt:
		return OpGe
	case OpGe:
		return OpLt
	case OpGt:
		return OpLe
	case OpLe:
		return OpGt
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	}
	return o
}

// ResultType is the type an op produces
func (o Op) ResultType() Type {
	if o.IsRelational() || o == OpAnd || o == OpNot {
		return Bool
	}
	return Int
}

func opFromAST(op ast.Op) Op {
	switch op {
	case ast.Add:
		return OpAdd
	case ast.Sub:
		return OpSub
	case ast.Mul:
		return OpMul
	case ast.Div:
		return OpDiv
	case ast.Lt:
		return OpLt
	case ast.Gt:
		return OpGt
	case ast.Le:
		return OpLe
	case ast.Ge:
		return OpGe
	case ast.Eq:
		return OpEq
	case ast.Ne:
		return OpNe
	default:
		return OpAnd
	}
}

// Operands returns every operand an instruction mentions, nested ones
// included, in evaluation order. An Assign's destination comes first.
func Operands(inst Inst) []Operand {
	var ops []Operand
	add := func(o Operand) {
		if o != nil {
			ops = append(ops, o)
		}
	}
	switch i := inst.(type) {
	case *Assign:
		add(i.Dest)
		ops = append(ops, Operands(i.RHS)...)
	case *BinaryOp:
		add(i.Left)
		add(i.Right)
	case *UnaryOp:
		add(i.X)
	case *Call:
		add(i.Target)
		for _, a := range i.Args {
			add(a)
		}
	case *GetField:
		add(i.Object)
		add(i.Field)
	case *PutField:
		add(i.Object)
		add(i.Field)
		add(i.Value)
	case *CondBranch:
		ops = append(ops, Operands(i.Cond)...)
	case *Return:
		add(i.Value)
	case *NoOp:
		add(i.X)
	}
	return ops
}

// Variables returns every variable operand, looking inside array elements
func Variables(inst Inst) []*Variable {
	var vars []*Variable
	for _, op := range Operands(inst) {
		switch o := op.(type) {
		case *Variable:
			vars = append(vars, o)
		case *ArrayElement:
			vars = append(vars, o.Array)
			if v, ok := o.Index.(*Variable); ok {
				vars = append(vars, v)
			}
		}
	}
	return vars
}
