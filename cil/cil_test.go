package cil

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/internal/mdbuild"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

type fakeResolver struct {
	members map[metadata.Token]typesys.Entity
	strings map[metadata.Token]string
	sigs    map[metadata.Token]*typesys.MethodSignature
}

func (r *fakeResolver) ResolveMember(tok metadata.Token, _ typesys.GenericContext) (typesys.Entity, error) {
	if e, ok := r.members[tok]; ok {
		return e, nil
	}
	return nil, errors.BadTableIndex(errors.PhaseResolve, tok.Table().String(), int(tok.RID()), 0)
}

func (r *fakeResolver) ResolveString(tok metadata.Token) (string, error) {
	return r.strings[tok], nil
}

func (r *fakeResolver) ResolveSignature(tok metadata.Token, _ typesys.GenericContext) (*typesys.MethodSignature, error) {
	return r.sigs[tok], nil
}

var (
	typeRef1   = metadata.NewToken(metadata.TableTypeRef, 1)
	methodDef1 = metadata.NewToken(metadata.TableMethodDef, 1)
	string1    = metadata.Token(0x70000001)
)

func voidType() typesys.Type { return typesys.PrimitiveOf(metadata.ElementVoid) }
func i4Type() typesys.Type   { return typesys.PrimitiveOf(metadata.ElementI4) }

func TestOpcodeTable(t *testing.T) {
	for op, info := range opcodes {
		assert.NotEmpty(t, info.Name, "opcode %04x", uint16(op))
		if op > 0xFF {
			assert.Equal(t, Opcode(0xFE00), op&0xFF00, info.Name)
		}
	}
	assert.Equal(t, "ldc.i4.s", OpLdcI4S.Name())
	assert.Equal(t, OperandInt8, OpLdcI4S.Operand())
	assert.Equal(t, "constrained.", OpConstrained.Name())
	assert.True(t, OpConstrained.IsPrefix())
	assert.True(t, OpLeaveS.EndsBlock())
	assert.True(t, OpBrtrue.EndsBlock())
	assert.False(t, OpBrtrue.Unconditional())
	assert.True(t, OpThrow.Unconditional())
	assert.False(t, OpCall.EndsBlock())
	assert.Equal(t, "op_0024", Opcode(0x24).Name())
	assert.Equal(t, 8, OperandFloat64.Size())
	assert.Equal(t, -1, OperandSwitch.Size())
	assert.Equal(t, 4, OperandMethod.Size())
}

func TestIterator(t *testing.T) {
	code := []byte{
		0x1F, 0xFE,                   // ldc.i4.s -2
		0x2B, 0xFC,                   // br.s -4 -> 0
		0xFE, 0x0C, 0x02, 0x01,       // ldloc 0x0102
		0x45, 0x02, 0x00, 0x00, 0x00, // switch (2)
		0x00, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x00, 0x00,
		0x28, 0x01, 0x00, 0x00, 0x06,       // call 0x06000001
		0x23, 0, 0, 0, 0, 0, 0, 0xF0, 0x3F, // ldc.r8 1.0
	}
	raws, err := Scan(code)
	require.NoError(t, err)
	require.Len(t, raws, 6)

	assert.Equal(t, int8(-2), raws[0].Operand)
	assert.Equal(t, uint32(0), raws[1].Operand)
	assert.Equal(t, []uint32{0}, raws[1].Targets())
	assert.Equal(t, OpLdloc, raws[2].Op)
	assert.Equal(t, uint16(0x0102), raws[2].Operand)
	assert.Equal(t, uint32(8), raws[3].Offset)
	assert.Equal(t, []uint32{21, 26}, raws[3].Operand)
	assert.Equal(t, methodDef1, raws[4].Token())
	assert.Equal(t, float64(1), raws[5].Operand)
	assert.Equal(t, uint32(len(code)), raws[5].Next())
}

func TestIteratorErrors(t *testing.T) {
	_, err := Scan([]byte{0x00, 0x24})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidMetadata))

	_, err = Scan([]byte{0x20, 0x01})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	_, err = Scan([]byte{0xFE})
	require.Error(t, err)
}

func TestParseTinyBody(t *testing.T) {
	code := []byte{0x16, 0x17, 0x58, 0x2A}
	body, err := ParseBody(binary.NewReader(mdbuild.TinyBody(code)))
	require.NoError(t, err)
	assert.Equal(t, uint16(8), body.MaxStack)
	assert.Equal(t, code, body.Code)
	assert.Empty(t, body.Clauses)
	assert.True(t, body.LocalSignature.IsNil())
}

func TestParseFatBody(t *testing.T) {
	code := make([]byte, 10)
	locals := metadata.NewToken(metadata.TableStandAloneSig, 3)
	clauses := []mdbuild.Clause{
		{Flags: 0, TryOffset: 0, TryLength: 4, HandlerOffset: 4, HandlerLength: 3, ClassToken: typeRef1},
		{Flags: 1, TryOffset: 0, TryLength: 4, HandlerOffset: 8, HandlerLength: 2, FilterOffset: 7},
	}
	raw := mdbuild.FatBody(code, 5, locals, true, clauses)
	body, err := ParseBody(binary.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint16(5), body.MaxStack)
	assert.True(t, body.InitLocals)
	assert.Equal(t, locals, body.LocalSignature)
	require.Len(t, body.Clauses, 2)
	assert.Equal(t, typesys.ClauseCatch, body.Clauses[0].Kind)
	assert.Equal(t, typeRef1, body.Clauses[0].CatchToken)
	assert.Equal(t, typesys.ClauseFilter, body.Clauses[1].Kind)
	assert.Equal(t, uint32(7), body.Clauses[1].FilterOffset)
	assert.Equal(t, uint32(10), body.Clauses[1].HandlerEnd())
}

func TestParseFatSection(t *testing.T) {
	code := make([]byte, 0x200)
	clauses := []mdbuild.Clause{
		{Flags: 2, TryOffset: 0, TryLength: 0x100, HandlerOffset: 0x100, HandlerLength: 0x100},
	}
	body, err := ParseBody(binary.NewReader(mdbuild.FatBody(code, 1, 0, false, clauses)))
	require.NoError(t, err)
	require.Len(t, body.Clauses, 1)
	assert.Equal(t, typesys.ClauseFinally, body.Clauses[0].Kind)
	assert.Equal(t, uint32(0x100), body.Clauses[0].TryLength)
	assert.Equal(t, uint32(0x200), body.Clauses[0].HandlerEnd())
}

func TestParseBodyErrors(t *testing.T) {
	_, err := ParseBody(binary.NewReader([]byte{0x01}))
	assert.True(t, errors.IsFatal(err))

	_, err = ParseBody(binary.NewReader([]byte{0x0A, 0x00}))
	assert.True(t, errors.IsFatal(err))

	// fat header with a wrong header size
	_, err = ParseBody(binary.NewReader([]byte{0x03, 0x20, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	assert.True(t, errors.IsFatal(err))
}

// tryCatchBody protects nop; leave with a catch handler of pop; leave.
func tryCatchBody() *typesys.MethodBody {
	return &typesys.MethodBody{
		Code: []byte{
			0x00,       // IL_0000 nop
			0xDE, 0x03, // IL_0001 leave.s IL_0006
			0x26,       // IL_0003 pop
			0xDE, 0x00, // IL_0004 leave.s IL_0006
			0x2A,       // IL_0006 ret
		},
		Clauses: []typesys.ExceptionClause{{
			Kind: typesys.ClauseCatch, TryOffset: 0, TryLength: 3,
			HandlerOffset: 3, HandlerLength: 3, CatchToken: typeRef1,
		}},
	}
}

func exceptionType() *typesys.TypeDef {
	return typesys.NewPlaceholderType(nil, "mscorlib", "System", "Exception")
}

func TestFlatTryCatch(t *testing.T) {
	exc := exceptionType()
	res := &fakeResolver{members: map[metadata.Token]typesys.Entity{typeRef1: exc}}
	list, err := DecodeFlat(tryCatchBody(), nil, res)
	require.NoError(t, err)

	type rec struct {
		offset uint32
		marker Marker
		op     Opcode
	}
	var got []rec
	for _, in := range list {
		got = append(got, rec{in.Offset, in.Marker, in.Op})
	}
	assert.Equal(t, []rec{
		{0, MarkerTryBegin, 0},
		{0, MarkerNone, OpNop},
		{1, MarkerNone, OpLeaveS},
		{3, MarkerTryEnd, 0},
		{3, MarkerCatchBegin, 0},
		{3, MarkerNone, OpPop},
		{4, MarkerNone, OpLeaveS},
		{6, MarkerHandlerEnd, 0},
		{6, MarkerNone, OpRet},
	}, got)
	assert.Same(t, exc, list[4].CatchType)
	assert.Equal(t, uint32(6), list[2].Operand)
	assert.Equal(t, "IL_0001: leave.s IL_0006", list[2].String())
	assert.Equal(t, "IL_0003: .catch-begin System.Exception", list[4].String())
}

func TestFlatNestedRegions(t *testing.T) {
	body := &typesys.MethodBody{
		Code: []byte{
			0x00,       // IL_0000 nop
			0xDE, 0x01, // IL_0001 leave.s IL_0004
			0xDC,       // IL_0003 endfinally
			0xDE, 0x03, // IL_0004 leave.s IL_0009
			0x26,       // IL_0006 pop
			0xDE, 0x00, // IL_0007 leave.s IL_0009
			0x2A,       // IL_0009 ret
		},
		Clauses: []typesys.ExceptionClause{
			{Kind: typesys.ClauseFinally, TryOffset: 0, TryLength: 3, HandlerOffset: 3, HandlerLength: 1},
			{Kind: typesys.ClauseCatch, TryOffset: 0, TryLength: 6, HandlerOffset: 6, HandlerLength: 3, CatchType: exceptionType()},
		},
	}
	list, err := DecodeFlat(body, nil, nil)
	require.NoError(t, err)

	var markers []Marker
	var offsets []uint32
	for _, in := range list {
		markers = append(markers, in.Marker)
		offsets = append(offsets, in.Offset)
	}
	assert.Equal(t, []Marker{
		MarkerTryBegin, MarkerTryBegin, MarkerNone, MarkerNone,
		MarkerTryEnd, MarkerFinallyBegin, MarkerNone, MarkerHandlerEnd,
		MarkerNone, MarkerTryEnd, MarkerCatchBegin, MarkerNone, MarkerNone,
		MarkerHandlerEnd, MarkerNone,
	}, markers)
	assert.Equal(t, []uint32{0, 0, 0, 1, 3, 3, 3, 4, 4, 6, 6, 6, 7, 9, 9}, offsets)
	// the outer try opens first
	assert.Equal(t, uint32(6), list[0].Clause.TryLength)
	assert.Equal(t, uint32(3), list[1].Clause.TryLength)
}

func TestFlatFilter(t *testing.T) {
	body := &typesys.MethodBody{
		Code: []byte{
			0x00,       // IL_0000 nop
			0xDE, 0x07, // IL_0001 leave.s IL_000a
			0x26,       // IL_0003 pop
			0x17,       // IL_0004 ldc.i4.1
			0xFE, 0x11, // IL_0005 endfilter
			0x26,       // IL_0007 pop
			0xDE, 0x00, // IL_0008 leave.s IL_000a
			0x2A,       // IL_000a ret
		},
		Clauses: []typesys.ExceptionClause{{
			Kind: typesys.ClauseFilter, TryOffset: 0, TryLength: 3,
			FilterOffset: 3, HandlerOffset: 7, HandlerLength: 3,
		}},
	}
	list, err := DecodeFlat(body, nil, nil)
	require.NoError(t, err)
	var markers []Marker
	for _, in := range list {
		if in.IsMarker() {
			markers = append(markers, in.Marker)
		}
	}
	assert.Equal(t, []Marker{
		MarkerTryBegin, MarkerTryEnd, MarkerFilterBegin, MarkerFilterEnd,
		MarkerCatchBegin, MarkerHandlerEnd,
	}, markers)

	nodes, err := DecodeTree(body, nil, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	try := nodes[0].(*Try)
	require.Len(t, try.Catches, 1)
	c := try.Catches[0]
	require.Len(t, c.Filter, 1)
	assert.Equal(t, []Stmt{
		&ExprStmt{X: &ExceptionValue{}},
		&EndFilter{Value: &Literal{Value: int32(1)}},
	}, c.Filter[0].(*Block).Stmts)
}

func TestTreeAddReturn(t *testing.T) {
	body := &typesys.MethodBody{Code: []byte{0x16, 0x17, 0x58, 0x2A}}
	nodes, err := DecodeTree(body, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []Node{
		&Block{Offset: 0, End: 4, Stmts: []Stmt{
			&Return{Value: &Binary{Op: OpAdd, X: &Literal{Value: int32(0)}, Y: &Literal{Value: int32(1)}}},
		}},
	}, nodes)
	assert.Equal(t, "IL_0000:\n  return (0 + 1)\n", Format(nodes))
}

func TestTreeTryCatch(t *testing.T) {
	exc := exceptionType()
	res := &fakeResolver{members: map[metadata.Token]typesys.Entity{typeRef1: exc}}
	nodes, err := DecodeTree(tryCatchBody(), nil, res)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	try, ok := nodes[0].(*Try)
	require.True(t, ok)
	assert.Equal(t, uint32(0), try.Offset)
	assert.Equal(t, uint32(3), try.End)
	assert.Equal(t, []Node{&Block{Offset: 0, End: 3, Stmts: []Stmt{&Goto{Target: 6, Leave: true}}}}, try.Body)
	require.Len(t, try.Catches, 1)
	assert.Same(t, exc, try.Catches[0].Type)
	assert.Equal(t, []Node{&Block{Offset: 3, End: 6, Stmts: []Stmt{
		&ExprStmt{X: &ExceptionValue{Type: exc}},
		&Goto{Target: 6, Leave: true},
	}}}, try.Catches[0].Body)
	assert.Nil(t, try.Finally)

	assert.Equal(t, &Block{Offset: 6, End: 7, Stmts: []Stmt{&Return{}}}, nodes[1])
}

func TestTreeNestedFinally(t *testing.T) {
	body := &typesys.MethodBody{
		Code: []byte{0x00, 0xDE, 0x01, 0xDC, 0xDE, 0x03, 0x26, 0xDE, 0x00, 0x2A},
		Clauses: []typesys.ExceptionClause{
			{Kind: typesys.ClauseFinally, TryOffset: 0, TryLength: 3, HandlerOffset: 3, HandlerLength: 1},
			{Kind: typesys.ClauseCatch, TryOffset: 0, TryLength: 6, HandlerOffset: 6, HandlerLength: 3},
		},
	}
	nodes, err := DecodeTree(body, nil, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	outer := nodes[0].(*Try)
	require.Len(t, outer.Body, 2)
	inner := outer.Body[0].(*Try)
	assert.Equal(t, []Node{&Block{Offset: 3, End: 4, Stmts: []Stmt{&EndFinally{}}}}, inner.Finally)
	assert.Empty(t, inner.Catches)
	assert.Equal(t, &Block{Offset: 4, End: 6, Stmts: []Stmt{&Goto{Target: 9, Leave: true}}}, outer.Body[1])
	require.Len(t, outer.Catches, 1)
	assert.Nil(t, outer.Catches[0].Type)
}

func TestTreeCall(t *testing.T) {
	mod := typesys.NewModule("m", "")
	owner := typesys.NewPlaceholderType(mod, "", "N", "Math")
	add := typesys.NewPlaceholderMethod(mod, owner, "Add", &typesys.MethodSignature{
		Return: i4Type(), Params: []typesys.Type{i4Type(), i4Type()},
	})
	log := typesys.NewPlaceholderMethod(mod, owner, "Log", &typesys.MethodSignature{
		Return: voidType(), Params: []typesys.Type{typesys.PrimitiveOf(metadata.ElementString)},
	})
	logTok := metadata.NewToken(metadata.TableMethodDef, 2)
	res := &fakeResolver{
		members: map[metadata.Token]typesys.Entity{methodDef1: add, logTok: log},
		strings: map[metadata.Token]string{string1: "hi"},
	}
	caller := typesys.NewPlaceholderMethod(mod, owner, "Caller", &typesys.MethodSignature{
		Return: i4Type(), Params: []typesys.Type{i4Type(), i4Type()},
	})
	body := &typesys.MethodBody{Code: []byte{
		0x72, 0x01, 0x00, 0x00, 0x70, // ldstr "hi"
		0x28, 0x02, 0x00, 0x00, 0x06, // call Log
		0x02,                         // ldarg.0
		0x03,                         // ldarg.1
		0x28, 0x01, 0x00, 0x00, 0x06, // call Add
		0x2A,                         // ret
	}}
	nodes, err := DecodeTree(body, caller, res)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	stmts := nodes[0].(*Block).Stmts
	require.Len(t, stmts, 2)

	logCall := stmts[0].(*ExprStmt).X.(*Call)
	assert.Same(t, log, logCall.Method)
	assert.Equal(t, []Expr{&Literal{Value: "hi"}}, logCall.Args)

	ret := stmts[1].(*Return)
	call := ret.Value.(*Call)
	assert.Same(t, add, call.Method)
	require.Len(t, call.Args, 2)
	a0 := call.Args[0].(*Arg)
	assert.Equal(t, 0, a0.Index)
	assert.False(t, a0.This)
	require.NotNil(t, a0.Param)
	assert.Equal(t, uint16(1), a0.Param.Sequence)
	assert.Equal(t, "N.Math::Add(arg0, arg1)", FormatExpr(call))
}

func TestTreeResidue(t *testing.T) {
	mod := typesys.NewModule("m", "")
	m := typesys.NewPlaceholderMethod(mod, nil, "M", &typesys.MethodSignature{Return: voidType()})

	body := &typesys.MethodBody{Code: []byte{0x17, 0x18, 0x26, 0x2A}} // ldc.i4.1; ldc.i4.2; pop; ret
	nodes, err := DecodeTree(body, m, nil)
	require.NoError(t, err)
	assert.Equal(t, []Stmt{
		&ExprStmt{X: &Literal{Value: int32(1)}},
		&ExprStmt{X: &Literal{Value: int32(2)}},
		&Return{},
	}, nodes[0].(*Block).Stmts)

	// values do not cross block boundaries
	body = &typesys.MethodBody{Code: []byte{0x17, 0x18, 0x2B, 0x00, 0x58, 0x2A}}
	nodes, err = DecodeTree(body, nil, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, []Stmt{
		&ExprStmt{X: &Literal{Value: int32(1)}},
		&ExprStmt{X: &Literal{Value: int32(2)}},
		&Goto{Target: 4},
	}, nodes[0].(*Block).Stmts)
	assert.Equal(t, []Stmt{
		&Return{Value: &Binary{Op: OpAdd, X: &StackValue{Offset: 4}, Y: &StackValue{Offset: 4}}},
	}, nodes[1].(*Block).Stmts)
}

func TestTreeResidueBeforeStatements(t *testing.T) {
	mod := typesys.NewModule("m", "")
	owner := typesys.NewPlaceholderType(mod, "", "N", "C")
	f := typesys.NewPlaceholderMethod(mod, owner, "F", &typesys.MethodSignature{Return: i4Type()})
	g := typesys.NewPlaceholderMethod(mod, owner, "G", &typesys.MethodSignature{Return: voidType()})
	gTok := metadata.NewToken(metadata.TableMethodDef, 2)
	res := &fakeResolver{members: map[metadata.Token]typesys.Entity{methodDef1: f, gTok: g}}
	caller := typesys.NewPlaceholderMethod(mod, owner, "M", &typesys.MethodSignature{Return: voidType()})

	tests := []struct {
		name string
		code []byte
		want string
	}{
		{
			name: "void call",
			code: []byte{
				0x28, 0x01, 0x00, 0x00, 0x06, // call F
				0x28, 0x02, 0x00, 0x00, 0x06, // call G
				0x2A,                         // ret
			},
			want: "IL_0000:\n  N.C::F()\n  N.C::G()\n  return\n",
		},
		{
			name: "store",
			code: []byte{
				0x28, 0x01, 0x00, 0x00, 0x06, // call F
				0x17,                         // ldc.i4.1
				0x0A,                         // stloc.0
				0x2A,                         // ret
			},
			want: "IL_0000:\n  N.C::F()\n  loc0 = 1\n  return\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := DecodeTree(&typesys.MethodBody{Code: tt.code}, caller, res)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(nodes))
		})
	}
}

func TestTreeBranches(t *testing.T) {
	body := &typesys.MethodBody{Code: []byte{
		0x02,       // IL_0000 ldarg.0
		0x2C, 0x02, // IL_0001 brfalse.s IL_0005
		0x17,       // IL_0003 ldc.i4.1
		0x2A,       // IL_0004 ret
		0x16,       // IL_0005 ldc.i4.0
		0x2A,       // IL_0006 ret
	}}
	nodes, err := DecodeTree(body, nil, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, &If{Op: OpBrfalseS, X: &Arg{Index: 0}, Target: 5}, nodes[0].(*Block).Stmts[0])
	assert.Equal(t, uint32(3), nodes[1].(*Block).Offset)
	assert.Equal(t, uint32(5), nodes[2].(*Block).Offset)
	assert.Equal(t, "IL_0000:\n  if !arg0 goto IL_0005\nIL_0003:\n  return 1\nIL_0005:\n  return 0\n", Format(nodes))
}

func TestBadRegions(t *testing.T) {
	body := &typesys.MethodBody{
		Code:    []byte{0x2A},
		Clauses: []typesys.ExceptionClause{{TryOffset: 0, TryLength: 4, HandlerOffset: 4, HandlerLength: 1}},
	}
	_, err := DecodeFlat(body, nil, nil)
	assert.True(t, errors.IsFatal(err))
	_, err = DecodeTree(body, nil, nil)
	assert.True(t, errors.IsFatal(err))
}
