// Package ir - AST to IR conversion
// Design: Single pass, explicit per-node results, per-method counters
package ir

import (
	"errors"
	"fmt"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ast"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/logger"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/symtab"
)

// UnhandledNodeError is returned for a node kind with no lowering rule
type UnhandledNodeError struct {
	Method string
	Kind   ast.Kind
	Pos    ast.Pos
	Detail string
}

func (e *UnhandledNodeError) Error() string {
	msg := fmt.Sprintf("method %s: unhandled node kind %s at %s", e.Method, e.Kind, e.Pos)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Builder lowers typed classes to IR. It holds no per-method state, so
// BuildMethod may be called from several goroutines at once.
type Builder struct {
	table *symtab.Table
}

func NewBuilder(table *symtab.Table) *Builder {
	return &Builder{table: table}
}

func (b *Builder) Build(class *ast.Class) (*Class, error) {
	logger.Debug("Building IR from AST", "class", class.Name, "methods", len(class.Methods))
	out := b.Skeleton(class)
	for _, decl := range class.Methods {
		m, err := b.BuildMethod(decl)
		if err != nil {
			logger.Error("Failed to build method", "name", decl.Name, "error", err)
			return nil, err
		}
		out.Methods = append(out.Methods, m)
	}
	logger.Info("IR build complete", "class", class.Name, "methods", len(out.Methods))
	return out, nil
}

// Skeleton returns the class with its fields but no methods
func (b *Builder) Skeleton(class *ast.Class) *Class {
	out := &Class{
		Name:    class.Name,
		Super:   class.Super,
		Imports: append([]string(nil), class.Imports...),
	}
	for _, f := range class.Fields {
		out.Fields = append(out.Fields, &Field{Name: f.Name, Typ: TypeOf(f.Type)})
	}
	return out
}

func (b *Builder) BuildMethod(decl *ast.MethodDecl) (*Method, error) {
	fb := newFuncBuilder(b.table, decl)
	c, err := fb.stmts(decl.Body, "")
	if err != nil {
		return nil, err
	}
	m, err := fb.finish(c)
	if err != nil {
		return nil, err
	}
	logger.LogIRBuild(m.Name, len(m.Insts), len(m.Labels))
	return m, nil
}

// step is either a label marker or an instruction
type step struct {
	label string
	inst  Inst
}

// code is a fragment of linear IR with labels not yet resolved to indices
type code []step

func (c *code) emit(i Inst) { *c = append(*c, step{inst: i}) }

func (c *code) mark(l string) { *c = append(*c, step{label: l}) }

func (c *code) add(more code) { *c = append(*c, more...) }

// endsInReturn reports whether control cannot fall off the fragment's end
func (c code) endsInReturn() bool {
	if len(c) == 0 {
		return false
	}
	_, ok := c[len(c)-1].inst.(*Return)
	return ok
}

// value is the result of lowering an expression. Exactly one of op and rhs
// is set: rhs is a computation nobody has stored yet, so a consumer can
// either bind it to a temporary or use it directly as an assignment source.
type value struct {
	op   Operand
	rhs  Inst
	typ  Type
	code code
}

type funcBuilder struct {
	table   *symtab.Table
	decl    *ast.MethodDecl
	method  *Method
	params  map[string]*Param
	taken   map[string]bool
	tempID  int
	labelID int
}

func newFuncBuilder(table *symtab.Table, decl *ast.MethodDecl) *funcBuilder {
	fb := &funcBuilder{
		table: table,
		decl:  decl,
		method: &Method{
			Name:   decl.Name,
			Static: decl.Static,
			Return: TypeOf(decl.Return),
			Labels: make(map[string]int),
		},
		params: make(map[string]*Param, len(decl.Params)),
		taken:  make(map[string]bool),
	}
	base := 1
	if decl.Static {
		base = 0
	}
	sig, _ := table.Method(decl.Name)
	for i, p := range decl.Params {
		param := &Param{Name: p.Name, Type: TypeOf(p.Type), Offset: base + i}
		if sig != nil {
			if off := sig.Offset(p.Name); off >= 0 {
				param.Offset = off
			}
		}
		fb.method.Params = append(fb.method.Params, param)
		fb.params[p.Name] = param
		fb.taken[p.Name] = true
	}
	for _, l := range decl.Locals {
		fb.taken[l.Name] = true
	}
	return fb
}

func (fb *funcBuilder) newTemp(t Type) *Variable {
	for {
		name := fmt.Sprintf("t%d", fb.tempID)
		fb.tempID++
		if !fb.taken[name] {
			return Var(name, t)
		}
	}
}

func (fb *funcBuilder) newLabel() int {
	n := fb.labelID
	fb.labelID++
	return n
}

func (fb *funcBuilder) this() *This {
	return &This{Typ: Type{Name: fb.table.Class}}
}

func (fb *funcBuilder) unhandled(n ast.Node, detail string) error {
	err := &UnhandledNodeError{Method: fb.decl.Name, Detail: detail}
	if n != nil {
		err.Kind = n.Kind()
		err.Pos = n.Position()
	} else {
		err.Kind = -1
	}
	return err
}

// finish resolves labels to instruction indices and drops labels no branch uses
func (fb *funcBuilder) finish(c code) (*Method, error) {
	m := fb.method
	used := make(map[string]bool)
	for _, st := range c {
		switch i := st.inst.(type) {
		case *Goto:
			used[i.Label] = true
		case *CondBranch:
			used[i.Label] = true
		}
	}

	var pending []string
	place := func(inst Inst) {
		for _, l := range pending {
			m.Labels[l] = len(m.Insts)
		}
		pending = pending[:0]
		m.Insts = append(m.Insts, inst)
	}
	for _, st := range c {
		if st.inst == nil {
			if used[st.label] {
				pending = append(pending, st.label)
			}
			continue
		}
		place(st.inst)
	}

	if m.Return == Void {
		if len(pending) > 0 || !c.endsInReturn() {
			place(&Return{Typ: Void})
		}
	} else if len(pending) > 0 {
		return nil, &InvariantError{Method: m.Name, Msg: fmt.Sprintf("label %s has no instruction to mark", pending[0])}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Statements

func (fb *funcBuilder) stmts(list []ast.Stmt, next string) (code, error) {
	var c code
	for i, s := range list {
		n := ""
		if i == len(list)-1 {
			n = next
		}
		sc, err := fb.stmt(s, n)
		if err != nil {
			return nil, err
		}
		c.add(sc)
	}
	return c, nil
}

// stmt lowers one statement. next, when set, names a label that is
// equivalent to falling off the end of the statement.
func (fb *funcBuilder) stmt(s ast.Stmt, next string) (code, error) {
	switch s := s.(type) {
	case *ast.Block:
		return fb.stmts(s.Stmts, next)
	case *ast.If:
		return fb.ifStmt(s, next)
	case *ast.While:
		return fb.whileStmt(s, next)
	case *ast.Assign:
		return fb.assign(s)
	case *ast.ExprStmt:
		v, err := fb.expr(s.X)
		if err != nil {
			return nil, err
		}
		c := v.code
		if call, ok := v.rhs.(*Call); ok {
			if call.Typ == Void {
				c.emit(call)
			} else {
				c.emit(&Assign{Dest: fb.newTemp(call.Typ), Typ: call.Typ, RHS: call})
			}
		}
		return c, nil
	case *ast.Return:
		if s.Value == nil {
			return code{{inst: &Return{Typ: Void}}}, nil
		}
		op, c, err := fb.operand(s.Value)
		if err != nil {
			return nil, err
		}
		c.emit(&Return{Value: op, Typ: fb.method.Return})
		return c, nil
	default:
		return nil, fb.unhandled(s, "")
	}
}

func (fb *funcBuilder) ifStmt(s *ast.If, next string) (code, error) {
	n := fb.newLabel()
	thenL := fmt.Sprintf("THEN_%d", n)
	elseL := fmt.Sprintf("ELSE_%d", n)
	end, own := next, next == ""
	if own {
		end = fmt.Sprintf("ENDIF_%d", n)
	}
	falseL := elseL
	if s.Else == nil {
		falseL = end
	}

	c, err := fb.branch(s.Cond, thenL, falseL, thenL)
	if err != nil {
		return nil, err
	}
	c.mark(thenL)
	then, err := fb.stmt(s.Then, end)
	if err != nil {
		return nil, err
	}
	c.add(then)
	if s.Else != nil {
		if !then.endsInReturn() {
			c.emit(&Goto{Label: end})
		}
		c.mark(elseL)
		els, err := fb.stmt(s.Else, end)
		if err != nil {
			return nil, err
		}
		c.add(els)
	}
	if own {
		c.mark(end)
	}
	return c, nil
}

func (fb *funcBuilder) whileStmt(s *ast.While, next string) (code, error) {
	n := fb.newLabel()
	head := fmt.Sprintf("WHILE_%d", n)
	body := fmt.Sprintf("BODY_%d", n)
	end, own := next, next == ""
	if own {
		end = fmt.Sprintf("ENDWHILE_%d", n)
	}

	var c code
	c.mark(head)
	cond, err := fb.branch(s.Cond, body, end, body)
	if err != nil {
		return nil, err
	}
	c.add(cond)
	c.mark(body)
	bc, err := fb.stmt(s.Body, head)
	if err != nil {
		return nil, err
	}
	c.add(bc)
	if !bc.endsInReturn() {
		c.emit(&Goto{Label: head})
	}
	if own {
		c.mark(end)
	}
	return c, nil
}

func (fb *funcBuilder) assign(s *ast.Assign) (code, error) {
	switch t := s.Target.(type) {
	case *ast.Ident:
		switch t.Ref {
		case ast.RefLocal, ast.RefParam:
			dest := fb.variable(t)
			v, err := fb.expr(s.Value)
			if err != nil {
				return nil, err
			}
			c := v.code
			c.emit(&Assign{Dest: dest, Typ: dest.Typ, RHS: rhsOf(v)})
			return c, nil
		case ast.RefField:
			val, c, err := fb.operand(s.Value)
			if err != nil {
				return nil, err
			}
			c.emit(&PutField{Object: fb.this(), Field: fb.field(t), Value: val})
			return c, nil
		}
		return nil, fb.unhandled(t, "cannot assign to "+t.Ref.String()+" "+t.Name)
	case *ast.Index:
		base, c, err := fb.arrayVar(t.Array)
		if err != nil {
			return nil, err
		}
		idx, ic, err := fb.operand(t.Index)
		if err != nil {
			return nil, err
		}
		val, vc, err := fb.operand(s.Value)
		if err != nil {
			return nil, err
		}
		c.add(ic)
		c.add(vc)
		elem := &ArrayElement{Array: base, Index: idx}
		c.emit(&Assign{Dest: elem, Typ: elem.Type(), RHS: &NoOp{X: val}})
		return c, nil
	default:
		return nil, fb.unhandled(s.Target, "not an assignable target")
	}
}

// Expressions

func (fb *funcBuilder) expr(e ast.Expr) (value, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		return value{op: IntLit(e.Value), typ: Int}, nil
	case *ast.BoolLit:
		return value{op: BoolLit(e.Value), typ: Bool}, nil
	case *ast.Paren:
		return fb.expr(e.X)
	case *ast.This:
		return value{op: fb.this(), typ: Type{Name: fb.table.Class}}, nil
	case *ast.Ident:
		return fb.ident(e)
	case *ast.Binary:
		if e.Op == ast.And || e.Op.IsRelational() {
			return fb.boolValue(e)
		}
		l, c, err := fb.operand(e.Left)
		if err != nil {
			return value{}, err
		}
		r, rc, err := fb.operand(e.Right)
		if err != nil {
			return value{}, err
		}
		c.add(rc)
		return value{rhs: &BinaryOp{Op: opFromAST(e.Op), Left: l, Right: r, Typ: Int}, typ: Int, code: c}, nil
	case *ast.Not:
		return fb.boolValue(e)
	case *ast.Index:
		base, c, err := fb.arrayVar(e.Array)
		if err != nil {
			return value{}, err
		}
		idx, ic, err := fb.operand(e.Index)
		if err != nil {
			return value{}, err
		}
		c.add(ic)
		elem := &ArrayElement{Array: base, Index: idx}
		return value{op: elem, typ: elem.Type(), code: c}, nil
	case *ast.Length:
		base, c, err := fb.arrayVar(e.Array)
		if err != nil {
			return value{}, err
		}
		return value{rhs: &Call{Kind: CallArrayLength, Target: base, Typ: Int}, typ: Int, code: c}, nil
	case *ast.Call:
		return fb.call(e)
	case *ast.NewObject:
		t := TypeOf(e.Type())
		tmp := fb.newTemp(t)
		var c code
		c.emit(&Assign{Dest: tmp, Typ: t, RHS: &Call{Kind: CallNew, Target: &ClassRef{Name: e.Class}, Typ: t}})
		c.emit(&Call{Kind: CallSpecial, Target: tmp, Method: "<init>", Typ: Void})
		return value{op: tmp, typ: t, code: c}, nil
	case *ast.NewArray:
		size, c, err := fb.operand(e.Size)
		if err != nil {
			return value{}, err
		}
		t := TypeOf(e.Type())
		return value{rhs: &Call{Kind: CallNewArray, Args: []Operand{size}, Typ: t}, typ: t, code: c}, nil
	default:
		return value{}, fb.unhandled(e, "")
	}
}

func (fb *funcBuilder) ident(id *ast.Ident) (value, error) {
	t := TypeOf(id.Typ)
	switch id.Ref {
	case ast.RefLocal, ast.RefParam:
		return value{op: fb.variable(id), typ: t}, nil
	case ast.RefField:
		f := fb.field(id)
		return value{rhs: &GetField{Object: fb.this(), Field: f}, typ: f.Typ}, nil
	default:
		return value{}, fb.unhandled(id, id.Ref.String()+" "+id.Name+" used as a value")
	}
}

// field types a field access from the table, falling back to the node's type
func (fb *funcBuilder) field(id *ast.Ident) *Field {
	if sym, ok := fb.table.Field(id.Name); ok {
		return &Field{Name: id.Name, Typ: TypeOf(sym.Type)}
	}
	return &Field{Name: id.Name, Typ: TypeOf(id.Typ)}
}

func (fb *funcBuilder) variable(id *ast.Ident) *Variable {
	if id.Ref != ast.RefParam {
		return Var(id.Name, TypeOf(id.Typ))
	}
	if p, ok := fb.params[id.Name]; ok {
		return ParamVar(p.Name, p.Type, p.Offset)
	}
	return ParamVar(id.Name, TypeOf(id.Typ), id.Offset)
}

func (fb *funcBuilder) call(e *ast.Call) (value, error) {
	var (
		c      code
		kind   CallKind
		target Operand
	)
	switch recv := e.Receiver.(type) {
	case nil:
		if sig, ok := fb.table.Method(e.Method); ok && sig.Static {
			kind, target = CallStatic, &ClassRef{Name: fb.table.Class}
		} else {
			kind, target = CallVirtual, fb.this()
		}
	case *ast.Ident:
		if recv.Ref == ast.RefImport {
			if !fb.table.IsImported(recv.Name) {
				return value{}, fb.unhandled(recv, "class "+recv.Name+" is not imported")
			}
			kind, target = CallStatic, &ClassRef{Name: recv.Name}
			break
		}
		op, rc, err := fb.operand(recv)
		if err != nil {
			return value{}, err
		}
		kind, target, c = CallVirtual, op, rc
	default:
		op, rc, err := fb.operand(recv)
		if err != nil {
			return value{}, err
		}
		kind, target, c = CallVirtual, op, rc
	}

	args := make([]Operand, 0, len(e.Args))
	for _, a := range e.Args {
		op, ac, err := fb.operand(a)
		if err != nil {
			return value{}, err
		}
		c.add(ac)
		args = append(args, op)
	}
	t := TypeOf(e.Typ)
	return value{rhs: &Call{Kind: kind, Target: target, Method: e.Method, Args: args, Typ: t}, typ: t, code: c}, nil
}

// operand lowers e to a literal, variable or this, binding a temporary when
// the value is a pending computation or an array element
func (fb *funcBuilder) operand(e ast.Expr) (Operand, code, error) {
	v, err := fb.expr(e)
	if err != nil {
		return nil, nil, err
	}
	op, c := fb.materialize(v)
	return op, c, nil
}

func (fb *funcBuilder) materialize(v value) (Operand, code) {
	c := v.code
	if v.rhs == nil {
		if _, ok := v.op.(*ArrayElement); !ok {
			return v.op, c
		}
	}
	tmp := fb.newTemp(v.typ)
	c.emit(&Assign{Dest: tmp, Typ: v.typ, RHS: rhsOf(v)})
	return tmp, c
}

// arrayVar lowers an array-valued expression to a variable
func (fb *funcBuilder) arrayVar(e ast.Expr) (*Variable, code, error) {
	op, c, err := fb.operand(e)
	if err != nil {
		return nil, nil, err
	}
	if v, ok := op.(*Variable); ok {
		return v, c, nil
	}
	return nil, nil, fb.unhandled(e, "array operand is not a variable")
}

func rhsOf(v value) Inst {
	if v.rhs != nil {
		return v.rhs
	}
	return &NoOp{X: v.op}
}

// IsUnhandled reports whether err came from a node without a lowering rule
func IsUnhandled(err error) bool {
	var u *UnhandledNodeError
	return errors.As(err, &u)
}
