// Conditions and boolean values
package ir

import (
	"fmt"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ast"
)

// branch lowers the condition of an if or while. Control reaches onTrue when
// e holds and onFalse otherwise. fall is the label laid out right after the
// fragment, so the branch to it can be left implicit.
//
// Only grouping, negation and && are looked through; && short-circuits.
// Anything else is evaluated in full and tested by a single CondBranch.
func (fb *funcBuilder) branch(e ast.Expr, onTrue, onFalse, fall string) (code, error) {
	switch e := e.(type) {
	case *ast.Paren:
		return fb.branch(e.X, onTrue, onFalse, fall)
	case *ast.Not:
		return fb.branch(e.X, onFalse, onTrue, fall)
	case *ast.Binary:
		if e.Op != ast.And {
			break
		}
		mid := fmt.Sprintf("AND_%d", fb.newLabel())
		c, err := fb.branch(e.Left, mid, onFalse, mid)
		if err != nil {
			return nil, err
		}
		c.mark(mid)
		rc, err := fb.branch(e.Right, onTrue, onFalse, fall)
		if err != nil {
			return nil, err
		}
		c.add(rc)
		return c, nil
	}

	switch fall {
	case onTrue:
		cond, c, err := fb.test(e, true)
		if err != nil {
			return nil, err
		}
		c.emit(&CondBranch{Cond: cond, Label: onFalse})
		return c, nil
	case onFalse:
		cond, c, err := fb.test(e, false)
		if err != nil {
			return nil, err
		}
		c.emit(&CondBranch{Cond: cond, Label: onTrue})
		return c, nil
	default:
		cond, c, err := fb.test(e, false)
		if err != nil {
			return nil, err
		}
		c.emit(&CondBranch{Cond: cond, Label: onTrue})
		c.emit(&Goto{Label: onFalse})
		return c, nil
	}
}

// test builds the condition of a CondBranch for a leaf expression. A
// comparison is tested directly, inverted when negate is set; any other
// boolean is reduced to an operand first.
func (fb *funcBuilder) test(e ast.Expr, negate bool) (Inst, code, error) {
	if b, ok := e.(*ast.Binary); ok && b.Op.IsRelational() {
		l, c, err := fb.operand(b.Left)
		if err != nil {
			return nil, nil, err
		}
		r, rc, err := fb.operand(b.Right)
		if err != nil {
			return nil, nil, err
		}
		c.add(rc)
		op := opFromAST(b.Op)
		if negate {
			op = op.Inverse()
		}
		return &BinaryOp{Op: op, Left: l, Right: r, Typ: Bool}, c, nil
	}
	x, c, err := fb.operand(e)
	if err != nil {
		return nil, nil, err
	}
	if negate {
		return &UnaryOp{Op: OpNot, X: x, Typ: Bool}, c, nil
	}
	return &NoOp{X: x}, c, nil
}

// boolValue materialises a comparison, && or ! outside a condition:
//
//	if (cond) goto TRUE_n; t := 0; goto NEXT_n; TRUE_n: t := 1; NEXT_n:
//
// Both operands of && are evaluated.
func (fb *funcBuilder) boolValue(e ast.Expr) (value, error) {
	var (
		cond Inst
		c    code
	)
	switch e := e.(type) {
	case *ast.Binary:
		l, lc, err := fb.operand(e.Left)
		if err != nil {
			return value{}, err
		}
		r, rc, err := fb.operand(e.Right)
		if err != nil {
			return value{}, err
		}
		c.add(lc)
		c.add(rc)
		cond = &BinaryOp{Op: opFromAST(e.Op), Left: l, Right: r, Typ: Bool}
	case *ast.Not:
		x, xc, err := fb.operand(e.X)
		if err != nil {
			return value{}, err
		}
		c.add(xc)
		cond = &UnaryOp{Op: OpNot, X: x, Typ: Bool}
	default:
		return value{}, fb.unhandled(e, "not a boolean operator")
	}

	n := fb.newLabel()
	trueL := fmt.Sprintf("TRUE_%d", n)
	nextL := fmt.Sprintf("NEXT_%d", n)
	tmp := fb.newTemp(Bool)
	c.emit(&CondBranch{Cond: cond, Label: trueL})
	c.emit(&Assign{Dest: tmp, Typ: Bool, RHS: &NoOp{X: BoolLit(false)}})
	c.emit(&Goto{Label: nextL})
	c.mark(trueL)
	c.emit(&Assign{Dest: tmp, Typ: Bool, RHS: &NoOp{X: BoolLit(true)}})
	c.mark(nextL)
	return value{op: tmp, typ: Bool, code: c}, nil
}
