package cil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/clrmeta/typesys"
)

// Node is an element of a region: a basic *Block or a protected *Try.
type Node interface {
	node()
}

// Block is a basic block: a straight-line run of statements.
type Block struct {
	Offset uint32
	End    uint32
	Stmts  []Stmt
}

// Try is a protected region with its handlers. Catches are kept in clause
// order; Finally and Fault are nil when absent.
type Try struct {
	Offset  uint32
	End     uint32
	Body    []Node
	Catches []*Catch
	Finally []Node
	Fault   []Node
}

// Catch is a typed catch clause or, when Filter is set, a filter clause.
type Catch struct {
	Clause *typesys.ExceptionClause
	Type   typesys.Type
	Filter []Node
	Body   []Node
}

func (*Block) node() {}
func (*Try) node()   {}

// Stmt is a statement of a basic block.
type Stmt interface {
	stmt()
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	X Expr
}

// Store assigns Value to an argument, local, field, array element or
// indirect location.
type Store struct {
	Target Expr
	Value  Expr
}

// Return leaves the method; Value is nil for void methods.
type Return struct {
	Value Expr
}

// Throw raises Value; a nil Value rethrows the current exception.
type Throw struct {
	Value Expr
}

// Goto is an unconditional branch. Leave is set for leave instructions,
// which exit protected regions.
type Goto struct {
	Target uint32
	Leave  bool
}

// If branches to Target when the condition holds: X alone for brtrue and
// brfalse, X compared with Y otherwise.
type If struct {
	Op     Opcode
	X      Expr
	Y      Expr
	Target uint32
}

// Switch jumps through a table of targets.
type Switch struct {
	Value   Expr
	Targets []uint32
}

// EndFinally ends a finally or fault handler.
type EndFinally struct{}

// EndFilter ends a filter with its verdict.
type EndFilter struct {
	Value Expr
}

// Jump transfers control to another method with the current arguments.
type Jump struct {
	Method typesys.Entity
}

func (*ExprStmt) stmt()   {}
func (*Store) stmt()      {}
func (*Return) stmt()     {}
func (*Throw) stmt()      {}
func (*Goto) stmt()       {}
func (*If) stmt()         {}
func (*Switch) stmt()     {}
func (*EndFinally) stmt() {}
func (*EndFilter) stmt()  {}
func (*Jump) stmt()       {}

// Expr is an expression built on the operand stack.
type Expr interface {
	expr()
}

// Literal is a constant: int32, int64, float32, float64, string, or nil
// for ldnull.
type Literal struct {
	Value any
}

// Arg is a method argument. This is set for the implicit instance argument.
type Arg struct {
	Index   int
	This    bool
	Param   *typesys.Parameter
	Address bool
}

// LocalVar is a local variable.
type LocalVar struct {
	Index   int
	Var     *typesys.Local
	Address bool
}

// Binary is an arithmetic, bitwise or comparison operation.
type Binary struct {
	Op Opcode
	X  Expr
	Y  Expr
}

// Unary is a negation, conversion or other single-operand operation.
type Unary struct {
	Op Opcode
	X  Expr
}

// Call is a call, virtual call, indirect call or object creation. Args
// start with the instance for instance calls other than newobj.
type Call struct {
	Op          Opcode
	Method      typesys.Entity
	Signature   *typesys.MethodSignature
	Target      Expr
	Args        []Expr
	Tail        bool
	Constrained typesys.Entity
}

// FieldAccess loads a field or its address. Object is nil for static fields.
type FieldAccess struct {
	Field   typesys.Entity
	Object  Expr
	Address bool
}

// Element loads an array element or its address.
type Element struct {
	Op      Opcode
	Array   Expr
	Index   Expr
	Type    typesys.Entity
	Address bool
}

// Indirect dereferences an address.
type Indirect struct {
	Op   Opcode
	Addr Expr
	Type typesys.Entity
}

// TypeOp is a type test, cast, box, unbox, array creation or sizeof.
type TypeOp struct {
	Op   Opcode
	Type typesys.Entity
	X    Expr
}

// TokenRef is the runtime handle of a loaded token.
type TokenRef struct {
	Entity typesys.Entity
}

// FunctionRef is a method pointer. Object is set for ldvirtftn.
type FunctionRef struct {
	Method typesys.Entity
	Object Expr
}

// ExceptionValue is the exception object on entry to a handler or filter.
type ExceptionValue struct {
	Type typesys.Type
}

// StackValue stands for a value left on the stack by a predecessor block.
type StackValue struct {
	Offset uint32
}

// Operation is any other instruction with its operands.
type Operation struct {
	Op      Opcode
	Operand any
	Args    []Expr
}

func (*Literal) expr()        {}
func (*Arg) expr()            {}
func (*LocalVar) expr()       {}
func (*Binary) expr()         {}
func (*Unary) expr()          {}
func (*Call) expr()           {}
func (*FieldAccess) expr()    {}
func (*Element) expr()        {}
func (*Indirect) expr()       {}
func (*TypeOp) expr()         {}
func (*TokenRef) expr()       {}
func (*FunctionRef) expr()    {}
func (*ExceptionValue) expr() {}
func (*StackValue) expr()     {}
func (*Operation) expr()      {}

var binarySymbols = map[Opcode]string{
	OpAdd: "+", OpAddOvf: "+", OpAddOvfUn: "+",
	OpSub: "-", OpSubOvf: "-", OpSubOvfUn: "-",
	OpMul: "*", OpMulOvf: "*", OpMulOvfUn: "*",
	OpDiv: "/", OpDivUn: "/",
	OpRem: "%", OpRemUn: "%",
	OpAnd: "&", OpOr: "|", OpXor: "^",
	OpShl: "<<", OpShr: ">>", OpShrUn: ">>>",
	OpCeq: "==", OpCgt: ">", OpCgtUn: ">", OpClt: "<", OpCltUn: "<",
}

// FormatExpr renders an expression as text.
func FormatExpr(e Expr) string {
	switch x := e.(type) {
	case nil:
		return "<nil>"
	case *Literal:
		switch v := x.Value.(type) {
		case nil:
			return "null"
		case string:
			return strconv.Quote(v)
		}
		return fmt.Sprint(x.Value)
	case *Arg:
		name := "arg" + strconv.Itoa(x.Index)
		switch {
		case x.This:
			name = "this"
		case x.Param != nil && x.Param.Name != "":
			name = x.Param.Name
		}
		if x.Address {
			return "&" + name
		}
		return name
	case *LocalVar:
		name := "loc" + strconv.Itoa(x.Index)
		if x.Var != nil && x.Var.Name != "" {
			name = x.Var.Name
		}
		if x.Address {
			return "&" + name
		}
		return name
	case *Binary:
		if sym, ok := binarySymbols[x.Op]; ok {
			return "(" + FormatExpr(x.X) + " " + sym + " " + FormatExpr(x.Y) + ")"
		}
		return x.Op.Name() + "(" + FormatExpr(x.X) + ", " + FormatExpr(x.Y) + ")"
	case *Unary:
		switch x.Op {
		case OpNeg:
			return "-" + FormatExpr(x.X)
		case OpNot:
			return "~" + FormatExpr(x.X)
		}
		return x.Op.Name() + "(" + FormatExpr(x.X) + ")"
	case *Call:
		var b strings.Builder
		switch {
		case x.Op == OpNewobj:
			b.WriteString("new ")
			b.WriteString(declaringName(x.Method))
		case x.Op == OpCalli:
			b.WriteString("calli ")
			b.WriteString(FormatExpr(x.Target))
		default:
			b.WriteString(memberName(x.Method))
		}
		b.WriteString("(")
		b.WriteString(formatList(x.Args))
		b.WriteString(")")
		return b.String()
	case *FieldAccess:
		owner := declaringName(x.Field)
		if x.Object != nil {
			owner = FormatExpr(x.Object)
		}
		s := owner + "." + simpleName(x.Field)
		if x.Address {
			return "&" + s
		}
		return s
	case *Element:
		s := FormatExpr(x.Array) + "[" + FormatExpr(x.Index) + "]"
		if x.Address {
			return "&" + s
		}
		return s
	case *Indirect:
		return "*" + FormatExpr(x.Addr)
	case *TypeOp:
		t := "?"
		if x.Type != nil {
			t = x.Type.String()
		}
		if x.X == nil {
			return x.Op.Name() + "(" + t + ")"
		}
		return x.Op.Name() + "<" + t + ">(" + FormatExpr(x.X) + ")"
	case *TokenRef:
		return "token(" + entityString(x.Entity) + ")"
	case *FunctionRef:
		if x.Object != nil {
			return "&" + FormatExpr(x.Object) + "." + simpleName(x.Method)
		}
		return "&" + memberName(x.Method)
	case *ExceptionValue:
		if x.Type != nil {
			return "exception<" + x.Type.String() + ">"
		}
		return "exception"
	case *StackValue:
		return fmt.Sprintf("stack@IL_%04x", x.Offset)
	case *Operation:
		s := x.Op.Name()
		if x.Operand != nil {
			s += " " + formatOperand(x.Op, x.Operand)
		}
		return s + "(" + formatList(x.Args) + ")"
	}
	return fmt.Sprintf("%T", e)
}

func formatList(list []Expr) string {
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = FormatExpr(a)
	}
	return strings.Join(parts, ", ")
}

// FormatStmt renders a statement as text.
func FormatStmt(s Stmt) string {
	switch x := s.(type) {
	case *ExprStmt:
		return FormatExpr(x.X)
	case *Store:
		return FormatExpr(x.Target) + " = " + FormatExpr(x.Value)
	case *Return:
		if x.Value == nil {
			return "return"
		}
		return "return " + FormatExpr(x.Value)
	case *Throw:
		if x.Value == nil {
			return "rethrow"
		}
		return "throw " + FormatExpr(x.Value)
	case *Goto:
		if x.Leave {
			return fmt.Sprintf("leave IL_%04x", x.Target)
		}
		return fmt.Sprintf("goto IL_%04x", x.Target)
	case *If:
		cond := FormatExpr(x.X)
		switch {
		case x.Op == OpBrfalse || x.Op == OpBrfalseS:
			cond = "!" + cond
		case x.Y != nil:
			cond = x.Op.Name() + "(" + cond + ", " + FormatExpr(x.Y) + ")"
		}
		return fmt.Sprintf("if %s goto IL_%04x", cond, x.Target)
	case *Switch:
		return "switch " + FormatExpr(x.Value) + " " + formatOperand(OpSwitch, x.Targets)
	case *EndFinally:
		return "endfinally"
	case *EndFilter:
		return "endfilter " + FormatExpr(x.Value)
	case *Jump:
		return "jmp " + memberName(x.Method)
	}
	return fmt.Sprintf("%T", s)
}

// Format renders a region tree as indented text.
func Format(nodes []Node) string {
	var b strings.Builder
	formatNodes(&b, nodes, 0)
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch x := n.(type) {
		case *Block:
			fmt.Fprintf(b, "%sIL_%04x:\n", indent, x.Offset)
			for _, s := range x.Stmts {
				b.WriteString(indent + "  " + FormatStmt(s) + "\n")
			}
		case *Try:
			b.WriteString(indent + "try {\n")
			formatNodes(b, x.Body, depth+1)
			for _, c := range x.Catches {
				switch {
				case c.Filter != nil:
					b.WriteString(indent + "} filter {\n")
					formatNodes(b, c.Filter, depth+1)
					b.WriteString(indent + "} catch {\n")
				case c.Type != nil:
					b.WriteString(indent + "} catch " + c.Type.String() + " {\n")
				default:
					b.WriteString(indent + "} catch {\n")
				}
				formatNodes(b, c.Body, depth+1)
			}
			if x.Finally != nil {
				b.WriteString(indent + "} finally {\n")
				formatNodes(b, x.Finally, depth+1)
			}
			if x.Fault != nil {
				b.WriteString(indent + "} fault {\n")
				formatNodes(b, x.Fault, depth+1)
			}
			b.WriteString(indent + "}\n")
		}
	}
}

func entityString(e typesys.Entity) string {
	if e == nil {
		return "?"
	}
	return e.String()
}

func simpleName(e typesys.Entity) string {
	switch m := e.(type) {
	case *typesys.Method:
		return m.Name
	case *typesys.Field:
		return m.Name
	}
	return entityString(e)
}

func declaringName(e typesys.Entity) string {
	var d typesys.Type
	switch m := e.(type) {
	case *typesys.Method:
		d = m.Declaring()
	case *typesys.Field:
		d = m.Declaring()
	}
	if d == nil {
		return entityString(e)
	}
	return d.String()
}

func memberName(e typesys.Entity) string {
	switch e.(type) {
	case *typesys.Method, *typesys.Field:
		return declaringName(e) + "::" + simpleName(e)
	}
	return entityString(e)
}
