// Textual IR
//
// One instruction per line, operands written as name.type, parameters as
// $slot.name.type and resolved registers as a trailing @reg. The form keeps
// every field of the in-memory IR, so Parse(Format(c)) rebuilds c.
package ir

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Format renders a class in textual IR
func Format(c *Class) string {
	var sb strings.Builder
	_ = Print(&sb, c)
	return sb.String()
}

// Print writes a class in textual IR to w
func Print(w io.Writer, c *Class) error {
	var sb strings.Builder
	sb.WriteString("class " + c.Name)
	if c.Super != "" {
		sb.WriteString(" extends " + c.Super)
	}
	sb.WriteString(" {\n")
	for _, imp := range c.Imports {
		fmt.Fprintf(&sb, "\timport %s;\n", imp)
	}
	for _, f := range c.Fields {
		fmt.Fprintf(&sb, "\t.field %s;\n", FormatOperand(f))
	}
	for _, m := range c.Methods {
		sb.WriteString("\n")
		writeMethod(&sb, m)
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatMethod renders a single method
func FormatMethod(m *Method) string {
	var sb strings.Builder
	writeMethod(&sb, m)
	return sb.String()
}

func writeMethod(sb *strings.Builder, m *Method) {
	sb.WriteString("\t.method ")
	if m.Static {
		sb.WriteString("static ")
	}
	sb.WriteString(m.Name + "(")
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name + "." + p.Type.String())
	}
	sb.WriteString(")." + m.Return.String() + " {\n")

	at := m.LabelsAt()
	for i, inst := range m.Insts {
		labels := at[i]
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(sb, "\t%s:\n", l)
		}
		fmt.Fprintf(sb, "\t\t%s;\n", FormatInst(inst))
	}
	sb.WriteString("\t}\n")
}

// FormatInst renders one instruction without the trailing semicolon
func FormatInst(inst Inst) string {
	switch i := inst.(type) {
	case *Assign:
		return fmt.Sprintf("%s :=.%s %s", FormatOperand(i.Dest), i.Typ, FormatInst(i.RHS))
	case *BinaryOp:
		return fmt.Sprintf("%s %s.%s %s", FormatOperand(i.Left), i.Op, i.Typ, FormatOperand(i.Right))
	case *UnaryOp:
		return fmt.Sprintf("%s.%s %s", i.Op, i.Typ, FormatOperand(i.X))
	case *NoOp:
		return FormatOperand(i.X)
	case *Call:
		return formatCall(i)
	case *GetField:
		return fmt.Sprintf("getfield(%s, %s).%s", FormatOperand(i.Object), FormatOperand(i.Field), i.Field.Typ)
	case *PutField:
		return fmt.Sprintf("putfield(%s, %s, %s).V", FormatOperand(i.Object), FormatOperand(i.Field), FormatOperand(i.Value))
	case *Goto:
		return "goto " + i.Label
	case *CondBranch:
		return fmt.Sprintf("if (%s) goto %s", FormatInst(i.Cond), i.Label)
	case *Return:
		if i.Value == nil {
			return "ret." + i.Typ.String()
		}
		return fmt.Sprintf("ret.%s %s", i.Typ, FormatOperand(i.Value))
	}
	return fmt.Sprintf("<%T>", inst)
}

func formatCall(c *Call) string {
	var args []string
	switch c.Kind {
	case CallNewArray:
		args = append(args, "array")
	case CallStatic, CallVirtual, CallSpecial:
		args = append(args, FormatOperand(c.Target), strconv.Quote(c.Method))
	default:
		args = append(args, FormatOperand(c.Target))
	}
	for _, a := range c.Args {
		args = append(args, FormatOperand(a))
	}
	return fmt.Sprintf("%s(%s).%s", c.Kind, strings.Join(args, ", "), c.Typ)
}

// FormatOperand renders one operand
func FormatOperand(op Operand) string {
	switch o := op.(type) {
	case *Literal:
		return o.Value + "." + o.Typ.String()
	case *Variable:
		var s string
		if o.IsParameter {
			s = fmt.Sprintf("$%d.", o.Offset)
		}
		s += o.Name + "." + o.Typ.String()
		if o.Reg != NoReg {
			s += "@" + strconv.Itoa(o.Reg)
		}
		return s
	case *ArrayElement:
		return fmt.Sprintf("%s[%s]", FormatOperand(o.Array), FormatOperand(o.Index))
	case *This:
		if o.Typ.Name == "" {
			return "this"
		}
		return "this." + o.Typ.String()
	case *Field:
		return o.Name + "." + o.Typ.String()
	case *ClassRef:
		return o.Name
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", op)
}
