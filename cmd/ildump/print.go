package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/clrmeta/cil"
	"github.com/wippyai/clrmeta/reader"
	"github.com/wippyai/clrmeta/typesys"
)

func typeLine(t *typesys.TypeDef) string {
	s := t.Kind.String() + " " + t.FullName()
	if base := t.BaseType(); base != nil && t.Kind == typesys.KindClass {
		s += " : " + base.String()
	}
	return s
}

// memberLines renders the members of t in declaration order, fields first.
func memberLines(t *typesys.TypeDef) []string {
	var out []string
	for _, f := range t.Fields() {
		line := "field " + f.Type().String() + " " + f.Name
		if c := f.Constant(); c != nil {
			line += " = " + c.String()
		}
		out = append(out, line)
	}
	for _, m := range t.Methods() {
		out = append(out, "method "+methodLine(m))
	}
	for _, p := range t.Properties() {
		out = append(out, "property "+p.Type().String()+" "+p.Name)
	}
	for _, e := range t.Events() {
		out = append(out, "event "+e.Type().String()+" "+e.Name)
	}
	return out
}

// methodLine is the method's signature without the declaring type.
func methodLine(m *typesys.Method) string {
	var b strings.Builder
	if sig := m.Signature(); sig != nil && sig.Return != nil {
		b.WriteString(sig.Return.String())
		b.WriteByte(' ')
	}
	b.WriteString(m.Name)
	if n := len(m.GenericParams); n > 0 {
		names := make([]string, n)
		for i, p := range m.GenericParams {
			names[i] = p.Name
		}
		b.WriteString("<" + strings.Join(names, ", ") + ">")
	}
	params := m.Parameters()
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Type.String()
		if p.Name != "" {
			parts[i] += " " + p.Name
		}
	}
	b.WriteString("(" + strings.Join(parts, ", ") + ")")
	return b.String()
}

// methodIL disassembles the body of m in flat or structured form.
func methodIL(m *typesys.Method, tree bool) (string, error) {
	if m.RVA == 0 {
		return "  (no body)", nil
	}
	if tree {
		nodes, err := reader.Tree(m)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", m.Name, err)
		}
		return strings.TrimRight(cil.Format(nodes), "\n"), nil
	}
	instrs, err := reader.Instructions(m)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", m.Name, err)
	}
	lines := make([]string, len(instrs))
	for i, in := range instrs {
		lines[i] = "  " + in.String()
	}
	return strings.Join(lines, "\n"), nil
}
