package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError locates a malformed line of textual IR
type ParseError struct {
	Line int
	Msg  string
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Msg, e.Text)
}

// Parse reads a class written by Print
func Parse(src string) (*Class, error) {
	p := &parser{lines: strings.Split(src, "\n")}
	return p.class()
}

type parser struct {
	lines []string
	pos   int
	text  string
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.pos, Msg: fmt.Sprintf(format, args...), Text: p.text}
}

// next returns the next non-blank, non-comment line, trimmed
func (p *parser) next() (string, bool) {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		p.pos++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		p.text = line
		return line, true
	}
	return "", false
}

func (p *parser) class() (*Class, error) {
	line, ok := p.next()
	if !ok {
		return nil, p.errorf("empty input")
	}
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "class" || fields[len(fields)-1] != "{" {
		return nil, p.errorf("expected class header")
	}
	c := &Class{Name: fields[1]}
	if len(fields) == 5 && fields[2] == "extends" {
		c.Super = fields[3]
	} else if len(fields) != 3 {
		return nil, p.errorf("malformed class header")
	}

	for {
		line, ok := p.next()
		if !ok {
			return nil, p.errorf("unterminated class %s", c.Name)
		}
		switch {
		case line == "}":
			return c, nil
		case strings.HasPrefix(line, "import "):
			c.Imports = append(c.Imports, strings.TrimSuffix(strings.TrimPrefix(line, "import "), ";"))
		case strings.HasPrefix(line, ".field "):
			name, t, err := splitTyped(strings.TrimSuffix(strings.TrimPrefix(line, ".field "), ";"))
			if err != nil {
				return nil, p.errorf("%v", err)
			}
			c.Fields = append(c.Fields, &Field{Name: name, Typ: t})
		case strings.HasPrefix(line, ".method "):
			m, err := p.method(line)
			if err != nil {
				return nil, err
			}
			c.Methods = append(c.Methods, m)
		default:
			return nil, p.errorf("unexpected line in class body")
		}
	}
}

func (p *parser) method(header string) (*Method, error) {
	toks, err := tokenize(header)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	ts := &tokens{list: toks}
	ts.take() // .method
	m := &Method{Labels: make(map[string]int)}
	if ts.peek() == "static" {
		m.Static = true
		ts.take()
	}
	m.Name = ts.take()
	if ts.take() != "(" {
		return nil, p.errorf("expected ( after method name")
	}
	base := 1
	if m.Static {
		base = 0
	}
	for ts.peek() != ")" {
		name, t, err := splitTyped(ts.take())
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		m.Params = append(m.Params, &Param{Name: name, Type: t, Offset: base + len(m.Params)})
		if ts.peek() == "," {
			ts.take()
		} else if ts.peek() != ")" {
			return nil, p.errorf("malformed parameter list")
		}
	}
	ts.take()
	ret := ts.take()
	if !strings.HasPrefix(ret, ".") || ts.take() != "{" {
		return nil, p.errorf("expected return type and {")
	}
	m.Return = parseType(ret[1:])

	var pending []string
	for {
		line, ok := p.next()
		if !ok {
			return nil, p.errorf("unterminated method %s", m.Name)
		}
		if line == "}" {
			break
		}
		if isLabelLine(line) {
			pending = append(pending, strings.TrimSuffix(line, ":"))
			continue
		}
		if !strings.HasSuffix(line, ";") {
			return nil, p.errorf("missing ;")
		}
		inst, err := parseInst(strings.TrimSuffix(line, ";"))
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		for _, l := range pending {
			m.Labels[l] = len(m.Insts)
		}
		pending = pending[:0]
		m.Insts = append(m.Insts, inst)
	}
	if len(pending) > 0 {
		return nil, p.errorf("label %s marks no instruction", pending[0])
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func isLabelLine(line string) bool {
	if !strings.HasSuffix(line, ":") || len(line) < 2 {
		return false
	}
	for _, r := range line[:len(line)-1] {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// ParseInst reads one instruction, without its trailing semicolon
func ParseInst(s string) (Inst, error) {
	return parseInst(s)
}

func parseInst(s string) (Inst, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	ts := &tokens{list: toks}
	inst, err := ts.stmt()
	if err != nil {
		return nil, err
	}
	if !ts.done() {
		return nil, fmt.Errorf("unexpected %q", ts.peek())
	}
	return inst, nil
}

type tokens struct {
	list []string
	i    int
}

func (ts *tokens) peek() string {
	if ts.i < len(ts.list) {
		return ts.list[ts.i]
	}
	return ""
}

func (ts *tokens) peekAt(n int) string {
	if ts.i+n < len(ts.list) {
		return ts.list[ts.i+n]
	}
	return ""
}

func (ts *tokens) take() string {
	t := ts.peek()
	if ts.i < len(ts.list) {
		ts.i++
	}
	return t
}

func (ts *tokens) done() bool { return ts.i >= len(ts.list) }

func (ts *tokens) expect(t string) error {
	if got := ts.take(); got != t {
		return fmt.Errorf("expected %q, found %q", t, got)
	}
	return nil
}

func (ts *tokens) stmt() (Inst, error) {
	switch t := ts.peek(); {
	case t == "goto":
		ts.take()
		return &Goto{Label: ts.take()}, nil
	case t == "if":
		ts.take()
		if err := ts.expect("("); err != nil {
			return nil, err
		}
		cond, err := ts.expr()
		if err != nil {
			return nil, err
		}
		if err := ts.expect(")"); err != nil {
			return nil, err
		}
		if err := ts.expect("goto"); err != nil {
			return nil, err
		}
		return &CondBranch{Cond: cond, Label: ts.take()}, nil
	// a local may be named ret, so assignments are recognised first
	case strings.HasPrefix(ts.peekAt(1), ":=."):
		dest, err := parseOperand(ts.take())
		if err != nil {
			return nil, err
		}
		typ := parseType(ts.take()[len(":=."):])
		rhs, err := ts.expr()
		if err != nil {
			return nil, err
		}
		return &Assign{Dest: dest, Typ: typ, RHS: rhs}, nil
	case strings.HasPrefix(t, "ret."):
		ts.take()
		ret := &Return{Typ: parseType(t[len("ret."):])}
		if !ts.done() {
			v, err := parseOperand(ts.take())
			if err != nil {
				return nil, err
			}
			ret.Value = v
		}
		return ret, nil
	}
	return ts.expr()
}

var callKeywords = map[string]bool{
	"invokestatic": true, "invokevirtual": true, "invokespecial": true,
	"new": true, "arraylength": true, "getfield": true, "putfield": true,
}

func (ts *tokens) expr() (Inst, error) {
	t := ts.take()
	if callKeywords[t] && ts.peek() == "(" {
		return ts.call(t)
	}
	if op, typ, ok := parseOpToken(t); ok {
		x, err := parseOperand(ts.take())
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: op, X: x, Typ: typ}, nil
	}
	l, err := parseOperand(t)
	if err != nil {
		return nil, err
	}
	if op, typ, ok := parseOpToken(ts.peek()); ok {
		ts.take()
		r, err := parseOperand(ts.take())
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: op, Left: l, Right: r, Typ: typ}, nil
	}
	return &NoOp{X: l}, nil
}

func (ts *tokens) call(kw string) (Inst, error) {
	ts.take() // (
	var args []string
	for ts.peek() != ")" {
		if ts.done() {
			return nil, fmt.Errorf("unterminated %s", kw)
		}
		args = append(args, ts.take())
		if ts.peek() == "," {
			ts.take()
		}
	}
	ts.take()
	rt := ts.take()
	if !strings.HasPrefix(rt, ".") {
		return nil, fmt.Errorf("%s: missing result type", kw)
	}
	typ := parseType(rt[1:])

	operands := func(words []string) ([]Operand, error) {
		ops := make([]Operand, 0, len(words))
		for _, w := range words {
			op, err := parseOperand(w)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		return ops, nil
	}

	switch kw {
	case "invokestatic", "invokevirtual", "invokespecial":
		if len(args) < 2 {
			return nil, fmt.Errorf("%s needs a target and a method name", kw)
		}
		name, err := strconv.Unquote(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: bad method name %s", kw, args[1])
		}
		rest, err := operands(args[2:])
		if err != nil {
			return nil, err
		}
		c := &Call{Method: name, Args: rest, Typ: typ}
		switch kw {
		case "invokestatic":
			c.Kind, c.Target = CallStatic, &ClassRef{Name: args[0]}
		case "invokevirtual":
			c.Kind = CallVirtual
		default:
			c.Kind = CallSpecial
		}
		if c.Target == nil {
			if c.Target, err = parseOperand(args[0]); err != nil {
				return nil, err
			}
		}
		return c, nil
	case "new":
		if len(args) == 0 {
			return nil, fmt.Errorf("new needs an argument")
		}
		rest, err := operands(args[1:])
		if err != nil {
			return nil, err
		}
		if args[0] == "array" {
			return &Call{Kind: CallNewArray, Args: rest, Typ: typ}, nil
		}
		return &Call{Kind: CallNew, Target: &ClassRef{Name: args[0]}, Args: rest, Typ: typ}, nil
	case "arraylength":
		if len(args) != 1 {
			return nil, fmt.Errorf("arraylength takes one argument")
		}
		target, err := parseOperand(args[0])
		if err != nil {
			return nil, err
		}
		return &Call{Kind: CallArrayLength, Target: target, Typ: typ}, nil
	case "getfield", "putfield":
		want := 2
		if kw == "putfield" {
			want = 3
		}
		if len(args) != want {
			return nil, fmt.Errorf("%s takes %d arguments", kw, want)
		}
		obj, err := parseOperand(args[0])
		if err != nil {
			return nil, err
		}
		name, ft, err := splitTyped(args[1])
		if err != nil {
			return nil, err
		}
		field := &Field{Name: name, Typ: ft}
		if kw == "getfield" {
			return &GetField{Object: obj, Field: field}, nil
		}
		val, err := parseOperand(args[2])
		if err != nil {
			return nil, err
		}
		return &PutField{Object: obj, Field: field, Value: val}, nil
	}
	return nil, fmt.Errorf("unknown call form %s", kw)
}

var opTokens = map[string]Op{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv,
	"<": OpLt, ">": OpGt, "<=": OpLe, ">=": OpGe, "==": OpEq, "!=": OpNe,
	"&&": OpAnd, "!": OpNot,
}

// parseOpToken reads an operator token such as +.i32 or <.bool
func parseOpToken(t string) (Op, Type, bool) {
	dot := strings.IndexByte(t, '.')
	if dot <= 0 {
		return 0, Type{}, false
	}
	op, ok := opTokens[t[:dot]]
	if !ok {
		return 0, Type{}, false
	}
	return op, parseType(t[dot+1:]), true
}

// parseOperand reads a single operand word
func parseOperand(w string) (Operand, error) {
	if w == "" {
		return nil, fmt.Errorf("missing operand")
	}
	if open := strings.IndexByte(w, '['); open >= 0 {
		if !strings.HasSuffix(w, "]") {
			return nil, fmt.Errorf("malformed array element %s", w)
		}
		base, err := parseOperand(w[:open])
		if err != nil {
			return nil, err
		}
		arr, ok := base.(*Variable)
		if !ok {
			return nil, fmt.Errorf("array base %s is not a variable", w[:open])
		}
		idx, err := parseOperand(w[open+1 : len(w)-1])
		if err != nil {
			return nil, err
		}
		return &ArrayElement{Array: arr, Index: idx}, nil
	}
	if w == "this" {
		return &This{}, nil
	}
	if strings.HasPrefix(w, "this.") {
		return &This{Typ: parseType(w[len("this."):])}, nil
	}
	if isLiteral(w) {
		dot := strings.IndexByte(w, '.')
		if dot < 0 {
			return nil, fmt.Errorf("literal %s has no type", w)
		}
		return &Literal{Value: w[:dot], Typ: parseType(w[dot+1:])}, nil
	}

	reg := NoReg
	if at := strings.LastIndexByte(w, '@'); at >= 0 {
		r, err := strconv.Atoi(w[at+1:])
		if err != nil {
			return nil, fmt.Errorf("bad register in %s", w)
		}
		reg, w = r, w[:at]
	}
	if strings.HasPrefix(w, "$") {
		dot := strings.IndexByte(w, '.')
		if dot < 0 {
			return nil, fmt.Errorf("malformed parameter %s", w)
		}
		offset, err := strconv.Atoi(w[1:dot])
		if err != nil {
			return nil, fmt.Errorf("bad parameter slot in %s", w)
		}
		name, t, err := splitTyped(w[dot+1:])
		if err != nil {
			return nil, err
		}
		v := ParamVar(name, t, offset)
		v.Reg = reg
		return v, nil
	}
	if !strings.Contains(w, ".") {
		return &ClassRef{Name: w}, nil
	}
	name, t, err := splitTyped(w)
	if err != nil {
		return nil, err
	}
	v := Var(name, t)
	v.Reg = reg
	return v, nil
}

func isLiteral(w string) bool {
	if w[0] >= '0' && w[0] <= '9' {
		return true
	}
	return w[0] == '-' && len(w) > 1 && w[1] >= '0' && w[1] <= '9'
}

// splitTyped splits name.type at the first dot
func splitTyped(s string) (string, Type, error) {
	dot := strings.IndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return "", Type{}, fmt.Errorf("expected name.type, found %q", s)
	}
	return s[:dot], parseType(s[dot+1:]), nil
}

func parseType(s string) Type {
	if strings.HasPrefix(s, "array.") {
		t := parseType(s[len("array."):])
		t.Array = true
		return t
	}
	if name, ok := strings.CutPrefix(s, "class."); ok {
		return Type{Name: name}
	}
	switch s {
	case "i32":
		return Int
	case "bool":
		return Bool
	case "V":
		return Void
	}
	return Type{Name: s}
}

// tokenize splits a line into words, punctuation and quoted strings
func tokenize(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')' || c == ',':
			toks = append(toks, string(c))
			i++
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, s[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t(),\"", rune(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}
