// Package ast defines the typed syntax tree handed to the back end.
//
// Design: Semantic analysis has already run. Every expression carries its
// resolved type and every identifier carries its resolution, so the back end
// never has to look anything up by walking scopes.
package ast

import "fmt"

// Pos is a source position
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Type is a resolved source type
type Type struct {
	Name    string
	IsArray bool
}

var (
	Int     = Type{Name: "int"}
	Boolean = Type{Name: "boolean"}
	Void    = Type{Name: "void"}
	IntArr  = Type{Name: "int", IsArray: true}
	String  = Type{Name: "String"}
)

func (t Type) String() string {
	if t.IsArray {
		return t.Name + "[]"
	}
	return t.Name
}

// Elem returns the element type of an array type
func (t Type) Elem() Type {
	return Type{Name: t.Name}
}

// Kind identifies a node kind
type Kind int

const (
	KindClass Kind = iota
	KindMethod
	KindBlock
	KindIf
	KindWhile
	KindAssign
	KindExprStmt
	KindReturn
	KindIntLit
	KindBoolLit
	KindIdent
	KindThis
	KindBinary
	KindNot
	KindParen
	KindIndex
	KindLength
	KindCall
	KindNewObject
	KindNewArray
)

var kindNames = [...]string{
	KindClass:     "Class",
	KindMethod:    "Method",
	KindBlock:     "Block",
	KindIf:        "If",
	KindWhile:     "While",
	KindAssign:    "Assign",
	KindExprStmt:  "ExprStmt",
	KindReturn:    "Return",
	KindIntLit:    "IntLit",
	KindBoolLit:   "BoolLit",
	KindIdent:     "Ident",
	KindThis:      "This",
	KindBinary:    "Binary",
	KindNot:       "Negation",
	KindParen:     "Grouping",
	KindIndex:     "Index",
	KindLength:    "Length",
	KindCall:      "Call",
	KindNewObject: "NewObject",
	KindNewArray:  "NewArray",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is any tree node
type Node interface {
	Kind() Kind
	Position() Pos
}

// Stmt is a statement node
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node
type Expr interface {
	Node
	Type() Type
	expr()
}

// Declarations

type Class struct {
	Pos     Pos
	Name    string
	Super   string
	Imports []string
	Fields  []*VarDecl
	Methods []*MethodDecl
}

func (c *Class) Kind() Kind    { return KindClass }
func (c *Class) Position() Pos { return c.Pos }

type VarDecl struct {
	Name string
	Type Type
}

type MethodDecl struct {
	Pos    Pos
	Name   string
	Static bool
	Return Type
	Params []*VarDecl
	Locals []*VarDecl
	Body   []Stmt
}

func (m *MethodDecl) Kind() Kind    { return KindMethod }
func (m *MethodDecl) Position() Pos { return m.Pos }

// Statements

type Block struct {
	Pos   Pos
	Stmts []Stmt
}

func (*Block) Kind() Kind      { return KindBlock }
func (s *Block) Position() Pos { return s.Pos }
func (*Block) stmt()           {}

type If struct {
	Pos  Pos
	Cond Expr
	Then Stmt
	Else Stmt // nil when absent
}

func (*If) Kind() Kind      { return KindIf }
func (s *If) Position() Pos { return s.Pos }
func (*If) stmt()           {}

type While struct {
	Pos  Pos
	Cond Expr
	Body Stmt
}

func (*While) Kind() Kind      { return KindWhile }
func (s *While) Position() Pos { return s.Pos }
func (*While) stmt()           {}

// Assign stores Value into Target, which is an *Ident or an *Index
type Assign struct {
	Pos    Pos
	Target Expr
	Value  Expr
}

func (*Assign) Kind() Kind      { return KindAssign }
func (s *Assign) Position() Pos { return s.Pos }
func (*Assign) stmt()           {}

type ExprStmt struct {
	Pos Pos
	X   Expr
}

func (*ExprStmt) Kind() Kind      { return KindExprStmt }
func (s *ExprStmt) Position() Pos { return s.Pos }
func (*ExprStmt) stmt()           {}

type Return struct {
	Pos   Pos
	Value Expr // nil in void methods
}

func (*Return) Kind() Kind      { return KindReturn }
func (s *Return) Position() Pos { return s.Pos }
func (*Return) stmt()           {}

// Expressions

type IntLit struct {
	Pos   Pos
	Value int64
}

func (*IntLit) Kind() Kind      { return KindIntLit }
func (e *IntLit) Position() Pos { return e.Pos }
func (*IntLit) Type() Type      { return Int }
func (*IntLit) expr()           {}

type BoolLit struct {
	Pos   Pos
	Value bool
}

func (*BoolLit) Kind() Kind      { return KindBoolLit }
func (e *BoolLit) Position() Pos { return e.Pos }
func (*BoolLit) Type() Type      { return Boolean }
func (*BoolLit) expr()           {}

// RefKind says what an identifier resolved to
type RefKind int

const (
	RefLocal RefKind = iota
	RefParam
	RefField
	RefImport
)

func (r RefKind) String() string {
	switch r {
	case RefLocal:
		return "local"
	case RefParam:
		return "param"
	case RefField:
		return "field"
	case RefImport:
		return "import"
	}
	return "unknown"
}

type Ident struct {
	Pos  Pos
	Name string
	Ref  RefKind
	// Offset is the parameter slot when Ref is RefParam
	Offset int
	Typ    Type
}

func (*Ident) Kind() Kind      { return KindIdent }
func (e *Ident) Position() Pos { return e.Pos }
func (e *Ident) Type() Type    { return e.Typ }
func (*Ident) expr()           {}

type This struct {
	Pos   Pos
	Class string
}

func (*This) Kind() Kind      { return KindThis }
func (e *This) Position() Pos { return e.Pos }
func (e *This) Type() Type    { return Type{Name: e.Class} }
func (*This) expr()           {}

// Op is a binary operator
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
	And
)

var opNames = [...]string{"+", "-", "*", "/", "<", ">", "<=", ">=", "==", "!=", "&&"}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsRelational reports whether the operator compares two integers
func (o Op) IsRelational() bool {
	return o >= Lt && o <= Ne
}

type Binary struct {
	Pos   Pos
	Op    Op
	Left  Expr
	Right Expr
}

func (*Binary) Kind() Kind      { return KindBinary }
func (e *Binary) Position() Pos { return e.Pos }
func (e *Binary) Type() Type {
	if e.Op == And || e.Op.IsRelational() {
		return Boolean
	}
	return Int
}
func (*Binary) expr() {}

type Not struct {
	Pos Pos
	X   Expr
}

func (*Not) Kind() Kind      { return KindNot }
func (e *Not) Position() Pos { return e.Pos }
func (*Not) Type() Type      { return Boolean }
func (*Not) expr()           {}

type Paren struct {
	Pos Pos
	X   Expr
}

func (*Paren) Kind() Kind      { return KindParen }
func (e *Paren) Position() Pos { return e.Pos }
func (e *Paren) Type() Type    { return e.X.Type() }
func (*Paren) expr()           {}

type Index struct {
	Pos   Pos
	Array Expr
	Index Expr
}

func (*Index) Kind() Kind      { return KindIndex }
func (e *Index) Position() Pos { return e.Pos }
func (e *Index) Type() Type    { return e.Array.Type().Elem() }
func (*Index) expr()           {}

type Length struct {
	Pos   Pos
	Array Expr
}

func (*Length) Kind() Kind      { return KindLength }
func (e *Length) Position() Pos { return e.Pos }
func (*Length) Type() Type      { return Int }
func (*Length) expr()           {}

// Call invokes Method on Receiver. A nil Receiver means the enclosing class.
// A Receiver that is an *Ident with RefImport makes a static call.
type Call struct {
	Pos      Pos
	Receiver Expr
	Method   string
	Args     []Expr
	Typ      Type
}

func (*Call) Kind() Kind      { return KindCall }
func (e *Call) Position() Pos { return e.Pos }
func (e *Call) Type() Type    { return e.Typ }
func (*Call) expr()           {}

type NewObject struct {
	Pos   Pos
	Class string
}

func (*NewObject) Kind() Kind      { return KindNewObject }
func (e *NewObject) Position() Pos { return e.Pos }
func (e *NewObject) Type() Type    { return Type{Name: e.Class} }
func (*NewObject) expr()           {}

type NewArray struct {
	Pos  Pos
	Elem Type
	Size Expr
}

func (*NewArray) Kind() Kind      { return KindNewArray }
func (e *NewArray) Position() Pos { return e.Pos }
func (e *NewArray) Type() Type    { return Type{Name: e.Elem.Name, IsArray: true} }
func (*NewArray) expr()           {}
