package cil

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// DecodeTree decodes body into a tree of protected regions and basic blocks
// of statements.
//
// The first pass finds block boundaries: branch targets, the instruction
// after every control transfer and every region edge. The second pass
// builds expressions on an operand stack; values still on the stack when a
// block ends, or when any statement is emitted, become expression
// statements ahead of it.
func DecodeTree(body *typesys.MethodBody, method *typesys.Method, res Resolver) ([]Node, error) {
	if method == nil {
		method = body.Method
	}
	root, _, err := buildRegions(body.Clauses, uint32(len(body.Code)))
	if err != nil {
		return nil, err
	}
	d := &treeDecoder{
		body:   body,
		method: method,
		res:    res,
		it:     NewIterator(body.Code),
	}
	if method != nil {
		d.ctx = method.Context()
		d.params = method.Parameters()
		if sig := method.Signature(); sig != nil {
			d.hasThis = sig.HasThis && !sig.ExplicitThis
			d.returns = !isVoid(sig.Return)
		} else {
			d.hasThis = !method.IsStatic()
		}
	}
	if d.boundaries, err = findBoundaries(body.Code, root); err != nil {
		return nil, err
	}
	return d.decodeSpan(root, nil)
}

// findBoundaries is the first pass.
func findBoundaries(code []byte, root *span) (map[uint32]bool, error) {
	b := map[uint32]bool{0: true}
	it := NewIterator(code)
	for it.Next() {
		raw := it.Instr()
		for _, t := range raw.Targets() {
			b[t] = true
		}
		if raw.Op.EndsBlock() {
			b[raw.Next()] = true
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	var mark func(s *span)
	mark = func(s *span) {
		b[s.start] = true
		b[s.end] = true
		for _, t := range s.children {
			for _, sub := range t.spans() {
				mark(sub)
			}
		}
	}
	mark(root)
	return b, nil
}

type treeDecoder struct {
	body       *typesys.MethodBody
	method     *typesys.Method
	res        Resolver
	ctx        typesys.GenericContext
	params     []*typesys.Parameter
	hasThis    bool
	returns    bool
	it         *Iterator
	boundaries map[uint32]bool

	block  *Block
	stack  []Expr
	prefix prefixes
}

type prefixes struct {
	tail        bool
	constrained typesys.Entity
}

// decodeSpan is the second pass over one span. Nested regions are decoded
// recursively and skipped over.
func (d *treeDecoder) decodeSpan(s *span, entry []Expr) ([]Node, error) {
	var nodes []Node
	saved, savedStack := d.block, d.stack
	d.block, d.stack = nil, entry
	defer func() { d.block, d.stack = saved, savedStack }()

	closeBlock := func(end uint32) {
		if d.block == nil {
			return
		}
		d.flush()
		d.block.End = end
		nodes = append(nodes, d.block)
		d.block = nil
	}

	pos := s.start
	next := 0
	for pos < s.end {
		if next < len(s.children) && s.children[next].body.start <= pos {
			closeBlock(pos)
			t := s.children[next]
			next++
			n, err := d.decodeTry(t)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
			pos = t.extent
			continue
		}
		if d.block != nil && d.boundaries[pos] && d.block.Offset != pos {
			closeBlock(pos)
		}
		if d.block == nil {
			d.block = &Block{Offset: pos}
		}
		if d.it.Offset() != pos {
			if err := d.it.Seek(pos); err != nil {
				return nil, errors.Wrap(errors.PhaseBody, errors.KindInvalidMetadata, err, "region boundary outside code")
			}
		}
		if !d.it.Next() {
			if err := d.it.Err(); err != nil {
				return nil, err
			}
			break
		}
		raw := d.it.Instr()
		if err := d.apply(raw); err != nil {
			return nil, err
		}
		pos = raw.Next()
	}
	closeBlock(pos)
	return nodes, nil
}

func (d *treeDecoder) decodeTry(t *tryRegion) (*Try, error) {
	body, err := d.decodeSpan(t.body, nil)
	if err != nil {
		return nil, err
	}
	node := &Try{Offset: t.body.start, End: t.body.end, Body: body}
	for _, h := range t.handlers {
		c := h.clause
		switch c.Kind {
		case typesys.ClauseCatch:
			typ, err := catchType(c, d.res, d.ctx)
			if err != nil {
				return nil, err
			}
			handler, err := d.decodeSpan(h.body, []Expr{&ExceptionValue{Type: typ}})
			if err != nil {
				return nil, err
			}
			node.Catches = append(node.Catches, &Catch{Clause: c, Type: typ, Body: handler})
		case typesys.ClauseFilter:
			filter, err := d.decodeSpan(h.filter, []Expr{&ExceptionValue{}})
			if err != nil {
				return nil, err
			}
			handler, err := d.decodeSpan(h.body, []Expr{&ExceptionValue{}})
			if err != nil {
				return nil, err
			}
			node.Catches = append(node.Catches, &Catch{Clause: c, Filter: nonNil(filter), Body: handler})
		case typesys.ClauseFinally, typesys.ClauseFault:
			handler, err := d.decodeSpan(h.body, nil)
			if err != nil {
				return nil, err
			}
			handler = nonNil(handler)
			if c.Kind == typesys.ClauseFinally {
				if node.Finally != nil {
					return nil, errors.InvalidMetadata(errors.PhaseBody, "protected region with two finally handlers")
				}
				node.Finally = handler
			} else {
				if node.Fault != nil {
					return nil, errors.InvalidMetadata(errors.PhaseBody, "protected region with two fault handlers")
				}
				node.Fault = handler
			}
		}
	}
	return node, nil
}

func nonNil(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	return nodes
}

func (d *treeDecoder) push(e Expr) {
	d.stack = append(d.stack, e)
}

func (d *treeDecoder) pop(offset uint32) Expr {
	if len(d.stack) == 0 {
		return &StackValue{Offset: offset}
	}
	e := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return e
}

// popN pops n values and returns them in push order.
func (d *treeDecoder) popN(n int, offset uint32) []Expr {
	out := make([]Expr, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = d.pop(offset)
	}
	return out
}

// flush moves the stack residue into the block as expression statements.
func (d *treeDecoder) flush() {
	for _, e := range d.stack {
		d.block.Stmts = append(d.block.Stmts, &ExprStmt{X: e})
	}
	d.stack = nil
}

// emit appends a statement after flushing the residue its opcode did not
// consume, so statements keep evaluation order.
func (d *treeDecoder) emit(s Stmt) {
	d.flush()
	d.block.Stmts = append(d.block.Stmts, s)
}

func (d *treeDecoder) arg(index int, address bool) *Arg {
	a := &Arg{Index: index, Address: address}
	if d.hasThis {
		if index == 0 {
			a.This = true
			return a
		}
		index--
	}
	if index >= 0 && index < len(d.params) {
		a.Param = d.params[index]
	}
	return a
}

func (d *treeDecoder) local(index int, address bool) *LocalVar {
	l := &LocalVar{Index: index, Address: address}
	if index >= 0 && index < len(d.body.Locals) {
		l.Var = d.body.Locals[index]
	}
	return l
}

func (d *treeDecoder) apply(raw Raw) error {
	op := raw.Op
	info, _ := op.Info()
	operand, err := operandValue(raw, d.res, d.ctx)
	if err != nil {
		return err
	}
	entity, _ := operand.(typesys.Entity)
	at := raw.Offset

	if info.Flow == FlowMeta {
		switch op {
		case OpTail:
			d.prefix.tail = true
		case OpConstrained:
			d.prefix.constrained = entity
		}
		return nil
	}
	pre := d.prefix
	d.prefix = prefixes{}

	switch op {
	case OpNop, OpBreak:
	case OpLdarg0, OpLdarg1, OpLdarg2, OpLdarg3:
		d.push(d.arg(int(op-OpLdarg0), false))
	case OpLdloc0, OpLdloc1, OpLdloc2, OpLdloc3:
		d.push(d.local(int(op-OpLdloc0), false))
	case OpStloc0, OpStloc1, OpStloc2, OpStloc3:
		d.emit(&Store{Target: d.local(int(op-OpStloc0), false), Value: d.pop(at)})
	case OpLdargS, OpLdarg, OpLdargaS, OpLdarga:
		d.push(d.arg(varIndex(operand), op == OpLdargaS || op == OpLdarga))
	case OpStargS, OpStarg:
		d.emit(&Store{Target: d.arg(varIndex(operand), false), Value: d.pop(at)})
	case OpLdlocS, OpLdloc, OpLdlocaS, OpLdloca:
		d.push(d.local(varIndex(operand), op == OpLdlocaS || op == OpLdloca))
	case OpStlocS, OpStloc:
		d.emit(&Store{Target: d.local(varIndex(operand), false), Value: d.pop(at)})

	case OpLdnull:
		d.push(&Literal{})
	case OpLdcI4M1, OpLdcI40, OpLdcI41, OpLdcI42, OpLdcI43, OpLdcI44, OpLdcI45, OpLdcI46, OpLdcI47, OpLdcI48:
		d.push(&Literal{Value: int32(op) - int32(OpLdcI40)})
	case OpLdcI4S:
		d.push(&Literal{Value: int32(operand.(int8))})
	case OpLdcI4, OpLdcI8, OpLdcR4, OpLdcR8, OpLdstr:
		d.push(&Literal{Value: operand})

	case OpDup:
		x := d.pop(at)
		d.push(x)
		d.push(x)
	case OpPop:
		d.emit(&ExprStmt{X: d.pop(at)})

	case OpJmp:
		d.emit(&Jump{Method: entity})
	case OpCall, OpCallvirt, OpNewobj, OpCalli:
		d.call(raw, operand, pre)
	case OpRet:
		var v Expr
		if d.returns || (d.method == nil && len(d.stack) > 0) {
			v = d.pop(at)
		}
		d.emit(&Return{Value: v})

	case OpBrS, OpBr:
		d.emit(&Goto{Target: operand.(uint32)})
	case OpLeaveS, OpLeave:
		d.emit(&Goto{Target: operand.(uint32), Leave: true})
	case OpBrfalseS, OpBrtrueS, OpBrfalse, OpBrtrue:
		x := d.pop(at)
		d.emit(&If{Op: op, X: x, Target: operand.(uint32)})
	case OpSwitch:
		x := d.pop(at)
		d.emit(&Switch{Value: x, Targets: operand.([]uint32)})

	case OpThrow:
		x := d.pop(at)
		d.emit(&Throw{Value: x})
	case OpRethrow:
		d.emit(&Throw{})
	case OpEndfinally:
		d.emit(&EndFinally{})
	case OpEndfilter:
		x := d.pop(at)
		d.emit(&EndFilter{Value: x})

	case OpLdindI1, OpLdindU1, OpLdindI2, OpLdindU2, OpLdindI4, OpLdindU4, OpLdindI8, OpLdindI, OpLdindR4, OpLdindR8, OpLdindRef:
		d.push(&Indirect{Op: op, Addr: d.pop(at)})
	case OpLdobj:
		d.push(&Indirect{Op: op, Addr: d.pop(at), Type: entity})
	case OpStindRef, OpStindI1, OpStindI2, OpStindI4, OpStindI8, OpStindR4, OpStindR8, OpStindI:
		v := d.pop(at)
		d.emit(&Store{Target: &Indirect{Op: op, Addr: d.pop(at)}, Value: v})
	case OpStobj:
		v := d.pop(at)
		d.emit(&Store{Target: &Indirect{Op: op, Addr: d.pop(at), Type: entity}, Value: v})

	case OpLdfld, OpLdflda:
		d.push(&FieldAccess{Field: entity, Object: d.pop(at), Address: op == OpLdflda})
	case OpLdsfld, OpLdsflda:
		d.push(&FieldAccess{Field: entity, Address: op == OpLdsflda})
	case OpStfld:
		v := d.pop(at)
		d.emit(&Store{Target: &FieldAccess{Field: entity, Object: d.pop(at)}, Value: v})
	case OpStsfld:
		d.emit(&Store{Target: &FieldAccess{Field: entity}, Value: d.pop(at)})

	case OpLdelema, OpLdelem, OpLdelemI1, OpLdelemU1, OpLdelemI2, OpLdelemU2, OpLdelemI4, OpLdelemU4, OpLdelemI8, OpLdelemI, OpLdelemR4, OpLdelemR8, OpLdelemRef:
		idx := d.pop(at)
		arr := d.pop(at)
		d.push(&Element{Op: op, Array: arr, Index: idx, Type: entity, Address: op == OpLdelema})
	case OpStelem, OpStelemI, OpStelemI1, OpStelemI2, OpStelemI4, OpStelemI8, OpStelemR4, OpStelemR8, OpStelemRef:
		v := d.pop(at)
		idx := d.pop(at)
		arr := d.pop(at)
		d.emit(&Store{Target: &Element{Op: op, Array: arr, Index: idx, Type: entity}, Value: v})

	case OpCastclass, OpIsinst, OpBox, OpUnbox, OpUnboxAny, OpNewarr, OpMkrefany, OpRefanyval:
		d.push(&TypeOp{Op: op, Type: entity, X: d.pop(at)})
	case OpSizeof:
		d.push(&TypeOp{Op: op, Type: entity})
	case OpLdtoken:
		d.push(&TokenRef{Entity: entity})
	case OpLdftn:
		d.push(&FunctionRef{Method: entity})
	case OpLdvirtftn:
		d.push(&FunctionRef{Method: entity, Object: d.pop(at)})

	default:
		switch {
		case info.Operand == OperandNone && info.Pop == 2 && info.Push == 1:
			y := d.pop(at)
			x := d.pop(at)
			d.push(&Binary{Op: op, X: x, Y: y})
		case info.Operand == OperandNone && info.Pop == 1 && info.Push == 1:
			d.push(&Unary{Op: op, X: d.pop(at)})
		case info.Flow == FlowCondBranch:
			y := d.pop(at)
			x := d.pop(at)
			d.emit(&If{Op: op, X: x, Y: y, Target: operand.(uint32)})
		default:
			o := &Operation{Op: op, Operand: operand, Args: d.popN(info.Pop, at)}
			if info.Push > 0 {
				d.push(o)
			} else {
				d.emit(&ExprStmt{X: o})
			}
		}
	}
	return nil
}

func (d *treeDecoder) call(raw Raw, operand any, pre prefixes) {
	at := raw.Offset
	c := &Call{Op: raw.Op, Tail: pre.tail, Constrained: pre.constrained}
	var sig *typesys.MethodSignature
	switch v := operand.(type) {
	case *typesys.MethodSignature:
		sig = v
		c.Signature = v
	case *typesys.Method:
		c.Method = v
		sig = v.Signature()
		c.Signature = sig
	case typesys.Entity:
		c.Method = v
	}
	if raw.Op == OpCalli {
		c.Target = d.pop(at)
	}

	n := 0
	pushes := raw.Op == OpNewobj
	if sig != nil {
		n = len(sig.Params) + len(sig.VarArgs)
		if sig.HasThis && !sig.ExplicitThis && raw.Op != OpNewobj {
			n++
		}
		if raw.Op != OpNewobj {
			pushes = !isVoid(sig.Return)
		}
	}
	c.Args = d.popN(n, at)
	if pushes {
		d.push(c)
	} else {
		d.emit(&ExprStmt{X: c})
	}
}

func varIndex(operand any) int {
	switch v := operand.(type) {
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	}
	return 0
}

func isVoid(t typesys.Type) bool {
	for {
		switch x := t.(type) {
		case nil:
			return true
		case *typesys.Modified:
			t = x.Elem
			continue
		case *typesys.Primitive:
			return x.Element == metadata.ElementVoid
		}
		return false
	}
}
