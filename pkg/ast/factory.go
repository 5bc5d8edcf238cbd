package ast

// Node factories. They leave positions zeroed and exist so that tests and
// tools can assemble typed trees without a front end.

func Num(v int64) *IntLit { return &IntLit{Value: v} }

func Bool(v bool) *BoolLit { return &BoolLit{Value: v} }

func Local(name string, t Type) *Ident { return &Ident{Name: name, Ref: RefLocal, Typ: t} }

func Param(name string, t Type, offset int) *Ident {
	return &Ident{Name: name, Ref: RefParam, Offset: offset, Typ: t}
}

func Field(name string, t Type) *Ident { return &Ident{Name: name, Ref: RefField, Typ: t} }

func Import(name string) *Ident { return &Ident{Name: name, Ref: RefImport, Typ: Type{Name: name}} }

func Self(class string) *This { return &This{Class: class} }

func Bin(op Op, l, r Expr) *Binary { return &Binary{Op: op, Left: l, Right: r} }

func Negate(x Expr) *Not { return &Not{X: x} }

func Group(x Expr) *Paren { return &Paren{X: x} }

func At(array, index Expr) *Index { return &Index{Array: array, Index: index} }

func Len(array Expr) *Length { return &Length{Array: array} }

func Invoke(recv Expr, method string, ret Type, args ...Expr) *Call {
	return &Call{Receiver: recv, Method: method, Args: args, Typ: ret}
}

func New(class string) *NewObject { return &NewObject{Class: class} }

func NewInts(size Expr) *NewArray { return &NewArray{Elem: Int, Size: size} }

func Set(target, value Expr) *Assign { return &Assign{Target: target, Value: value} }

func Do(x Expr) *ExprStmt { return &ExprStmt{X: x} }

func Ret(x Expr) *Return { return &Return{Value: x} }

func Stmts(s ...Stmt) *Block { return &Block{Stmts: s} }

func IfElse(cond Expr, then, els Stmt) *If { return &If{Cond: cond, Then: then, Else: els} }

func Loop(cond Expr, body Stmt) *While { return &While{Cond: cond, Body: body} }

func Var(name string, t Type) *VarDecl { return &VarDecl{Name: name, Type: t} }
