package cil

import "fmt"

// Opcode is a CIL opcode. One-byte opcodes occupy 0x00-0xFF; extended
// opcodes are 0xFE00 | second byte.
type Opcode uint16

// OperandShape is the encoding of an opcode's inline operand.
type OperandShape uint8

const (
	OperandNone OperandShape = iota
	OperandInt8
	OperandUint8
	OperandUint16
	OperandInt32
	OperandInt64
	OperandFloat32
	OperandFloat64
	OperandMethod
	OperandField
	OperandType
	OperandToken
	OperandString
	OperandSignature
	OperandShortBranch
	OperandBranch
	OperandSwitch
)

// Size returns the operand size in bytes, or -1 for a switch table.
func (s OperandShape) Size() int {
	switch s {
	case OperandNone:
		return 0
	case OperandInt8, OperandUint8, OperandShortBranch:
		return 1
	case OperandUint16:
		return 2
	case OperandInt64, OperandFloat64:
		return 8
	case OperandSwitch:
		return -1
	}
	return 4
}

// IsToken reports whether the operand is a metadata token.
func (s OperandShape) IsToken() bool {
	switch s {
	case OperandMethod, OperandField, OperandType, OperandToken, OperandString, OperandSignature:
		return true
	}
	return false
}

// Flow is the control flow behavior of an opcode.
type Flow uint8

const (
	FlowNext Flow = iota
	FlowBreak
	FlowBranch
	FlowCondBranch
	FlowReturn
	FlowThrow
	FlowCall
	FlowMeta
)

// Stack effects that depend on the operand signature.
const (
	VarPop  = -1
	VarPush = -1
)

// OpInfo describes an opcode.
type OpInfo struct {
	Name    string
	Operand OperandShape
	Flow    Flow
	Pop     int
	Push    int
}

// Info returns the description of op and whether op is defined.
func (op Opcode) Info() (OpInfo, bool) {
	info, ok := opcodes[op]
	return info, ok
}

// Name returns the assembler mnemonic.
func (op Opcode) Name() string {
	if info, ok := opcodes[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("op_%04x", uint16(op))
}

func (op Opcode) String() string { return op.Name() }

// Operand returns the operand shape.
func (op Opcode) Operand() OperandShape { return opcodes[op].Operand }

// Flow returns the control flow behavior.
func (op Opcode) Flow() Flow { return opcodes[op].Flow }

// IsPrefix reports whether op modifies the following instruction.
func (op Opcode) IsPrefix() bool { return opcodes[op].Flow == FlowMeta }

// EndsBlock reports whether control never falls through to the next
// instruction unconditionally.
func (op Opcode) EndsBlock() bool {
	switch opcodes[op].Flow {
	case FlowBranch, FlowCondBranch, FlowReturn, FlowThrow:
		return true
	}
	return op == OpJmp
}

// Unconditional reports whether control never reaches the next instruction.
func (op Opcode) Unconditional() bool {
	switch opcodes[op].Flow {
	case FlowBranch, FlowReturn, FlowThrow:
		return true
	}
	return op == OpJmp
}

// Opcodes. Two-byte opcodes carry the 0xFE prefix in the high byte.
const (
	OpNop         Opcode = 0x00
	OpBreak       Opcode = 0x01
	OpLdarg0      Opcode = 0x02
	OpLdarg1      Opcode = 0x03
	OpLdarg2      Opcode = 0x04
	OpLdarg3      Opcode = 0x05
	OpLdloc0      Opcode = 0x06
	OpLdloc1      Opcode = 0x07
	OpLdloc2      Opcode = 0x08
	OpLdloc3      Opcode = 0x09
	OpStloc0      Opcode = 0x0A
	OpStloc1      Opcode = 0x0B
	OpStloc2      Opcode = 0x0C
	OpStloc3      Opcode = 0x0D
	OpLdargS      Opcode = 0x0E
	OpLdargaS     Opcode = 0x0F
	OpStargS      Opcode = 0x10
	OpLdlocS      Opcode = 0x11
	OpLdlocaS     Opcode = 0x12
	OpStlocS      Opcode = 0x13
	OpLdnull      Opcode = 0x14
	OpLdcI4M1     Opcode = 0x15
	OpLdcI40      Opcode = 0x16
	OpLdcI41      Opcode = 0x17
	OpLdcI42      Opcode = 0x18
	OpLdcI43      Opcode = 0x19
	OpLdcI44      Opcode = 0x1A
	OpLdcI45      Opcode = 0x1B
	OpLdcI46      Opcode = 0x1C
	OpLdcI47      Opcode = 0x1D
	OpLdcI48      Opcode = 0x1E
	OpLdcI4S      Opcode = 0x1F
	OpLdcI4       Opcode = 0x20
	OpLdcI8       Opcode = 0x21
	OpLdcR4       Opcode = 0x22
	OpLdcR8       Opcode = 0x23
	OpDup         Opcode = 0x25
	OpPop         Opcode = 0x26
	OpJmp         Opcode = 0x27
	OpCall        Opcode = 0x28
	OpCalli       Opcode = 0x29
	OpRet         Opcode = 0x2A
	OpBrS         Opcode = 0x2B
	OpBrfalseS    Opcode = 0x2C
	OpBrtrueS     Opcode = 0x2D
	OpBeqS        Opcode = 0x2E
	OpBgeS        Opcode = 0x2F
	OpBgtS        Opcode = 0x30
	OpBleS        Opcode = 0x31
	OpBltS        Opcode = 0x32
	OpBneUnS      Opcode = 0x33
	OpBgeUnS      Opcode = 0x34
	OpBgtUnS      Opcode = 0x35
	OpBleUnS      Opcode = 0x36
	OpBltUnS      Opcode = 0x37
	OpBr          Opcode = 0x38
	OpBrfalse     Opcode = 0x39
	OpBrtrue      Opcode = 0x3A
	OpBeq         Opcode = 0x3B
	OpBge         Opcode = 0x3C
	OpBgt         Opcode = 0x3D
	OpBle         Opcode = 0x3E
	OpBlt         Opcode = 0x3F
	OpBneUn       Opcode = 0x40
	OpBgeUn       Opcode = 0x41
	OpBgtUn       Opcode = 0x42
	OpBleUn       Opcode = 0x43
	OpBltUn       Opcode = 0x44
	OpSwitch      Opcode = 0x45
	OpLdindI1     Opcode = 0x46
	OpLdindU1     Opcode = 0x47
	OpLdindI2     Opcode = 0x48
	OpLdindU2     Opcode = 0x49
	OpLdindI4     Opcode = 0x4A
	OpLdindU4     Opcode = 0x4B
	OpLdindI8     Opcode = 0x4C
	OpLdindI      Opcode = 0x4D
	OpLdindR4     Opcode = 0x4E
	OpLdindR8     Opcode = 0x4F
	OpLdindRef    Opcode = 0x50
	OpStindRef    Opcode = 0x51
	OpStindI1     Opcode = 0x52
	OpStindI2     Opcode = 0x53
	OpStindI4     Opcode = 0x54
	OpStindI8     Opcode = 0x55
	OpStindR4     Opcode = 0x56
	OpStindR8     Opcode = 0x57
	OpAdd         Opcode = 0x58
	OpSub         Opcode = 0x59
	OpMul         Opcode = 0x5A
	OpDiv         Opcode = 0x5B
	OpDivUn       Opcode = 0x5C
	OpRem         Opcode = 0x5D
	OpRemUn       Opcode = 0x5E
	OpAnd         Opcode = 0x5F
	OpOr          Opcode = 0x60
	OpXor         Opcode = 0x61
	OpShl         Opcode = 0x62
	OpShr         Opcode = 0x63
	OpShrUn       Opcode = 0x64
	OpNeg         Opcode = 0x65
	OpNot         Opcode = 0x66
	OpConvI1      Opcode = 0x67
	OpConvI2      Opcode = 0x68
	OpConvI4      Opcode = 0x69
	OpConvI8      Opcode = 0x6A
	OpConvR4      Opcode = 0x6B
	OpConvR8      Opcode = 0x6C
	OpConvU4      Opcode = 0x6D
	OpConvU8      Opcode = 0x6E
	OpCallvirt    Opcode = 0x6F
	OpCpobj       Opcode = 0x70
	OpLdobj       Opcode = 0x71
	OpLdstr       Opcode = 0x72
	OpNewobj      Opcode = 0x73
	OpCastclass   Opcode = 0x74
	OpIsinst      Opcode = 0x75
	OpConvRUn     Opcode = 0x76
	OpUnbox       Opcode = 0x79
	OpThrow       Opcode = 0x7A
	OpLdfld       Opcode = 0x7B
	OpLdflda      Opcode = 0x7C
	OpStfld       Opcode = 0x7D
	OpLdsfld      Opcode = 0x7E
	OpLdsflda     Opcode = 0x7F
	OpStsfld      Opcode = 0x80
	OpStobj       Opcode = 0x81
	OpConvOvfI1Un Opcode = 0x82
	OpConvOvfI2Un Opcode = 0x83
	OpConvOvfI4Un Opcode = 0x84
	OpConvOvfI8Un Opcode = 0x85
	OpConvOvfU1Un Opcode = 0x86
	OpConvOvfU2Un Opcode = 0x87
	OpConvOvfU4Un Opcode = 0x88
	OpConvOvfU8Un Opcode = 0x89
	OpConvOvfIUn  Opcode = 0x8A
	OpConvOvfUUn  Opcode = 0x8B
	OpBox         Opcode = 0x8C
	OpNewarr      Opcode = 0x8D
	OpLdlen       Opcode = 0x8E
	OpLdelema     Opcode = 0x8F
	OpLdelemI1    Opcode = 0x90
	OpLdelemU1    Opcode = 0x91
	OpLdelemI2    Opcode = 0x92
	OpLdelemU2    Opcode = 0x93
	OpLdelemI4    Opcode = 0x94
	OpLdelemU4    Opcode = 0x95
	OpLdelemI8    Opcode = 0x96
	OpLdelemI     Opcode = 0x97
	OpLdelemR4    Opcode = 0x98
	OpLdelemR8    Opcode = 0x99
	OpLdelemRef   Opcode = 0x9A
	OpStelemI     Opcode = 0x9B
	OpStelemI1    Opcode = 0x9C
	OpStelemI2    Opcode = 0x9D
	OpStelemI4    Opcode = 0x9E
	OpStelemI8    Opcode = 0x9F
	OpStelemR4    Opcode = 0xA0
	OpStelemR8    Opcode = 0xA1
	OpStelemRef   Opcode = 0xA2
	OpLdelem      Opcode = 0xA3
	OpStelem      Opcode = 0xA4
	OpUnboxAny    Opcode = 0xA5
	OpConvOvfI1   Opcode = 0xB3
	OpConvOvfU1   Opcode = 0xB4
	OpConvOvfI2   Opcode = 0xB5
	OpConvOvfU2   Opcode = 0xB6
	OpConvOvfI4   Opcode = 0xB7
	OpConvOvfU4   Opcode = 0xB8
	OpConvOvfI8   Opcode = 0xB9
	OpConvOvfU8   Opcode = 0xBA
	OpRefanyval   Opcode = 0xC2
	OpCkfinite    Opcode = 0xC3
	OpMkrefany    Opcode = 0xC6
	OpLdtoken     Opcode = 0xD0
	OpConvU2      Opcode = 0xD1
	OpConvU1      Opcode = 0xD2
	OpConvI       Opcode = 0xD3
	OpConvOvfI    Opcode = 0xD4
	OpConvOvfU    Opcode = 0xD5
	OpAddOvf      Opcode = 0xD6
	OpAddOvfUn    Opcode = 0xD7
	OpMulOvf      Opcode = 0xD8
	OpMulOvfUn    Opcode = 0xD9
	OpSubOvf      Opcode = 0xDA
	OpSubOvfUn    Opcode = 0xDB
	OpEndfinally  Opcode = 0xDC
	OpLeave       Opcode = 0xDD
	OpLeaveS      Opcode = 0xDE
	OpStindI      Opcode = 0xDF
	OpConvU       Opcode = 0xE0
	OpArglist     Opcode = 0xFE00
	OpCeq         Opcode = 0xFE01
	OpCgt         Opcode = 0xFE02
	OpCgtUn       Opcode = 0xFE03
	OpClt         Opcode = 0xFE04
	OpCltUn       Opcode = 0xFE05
	OpLdftn       Opcode = 0xFE06
	OpLdvirtftn   Opcode = 0xFE07
	OpLdarg       Opcode = 0xFE09
	OpLdarga      Opcode = 0xFE0A
	OpStarg       Opcode = 0xFE0B
	OpLdloc       Opcode = 0xFE0C
	OpLdloca      Opcode = 0xFE0D
	OpStloc       Opcode = 0xFE0E
	OpLocalloc    Opcode = 0xFE0F
	OpEndfilter   Opcode = 0xFE11
	OpUnaligned   Opcode = 0xFE12
	OpVolatile    Opcode = 0xFE13
	OpTail        Opcode = 0xFE14
	OpInitobj     Opcode = 0xFE15
	OpConstrained Opcode = 0xFE16
	OpCpblk       Opcode = 0xFE17
	OpInitblk     Opcode = 0xFE18
	OpNo          Opcode = 0xFE19
	OpRethrow     Opcode = 0xFE1A
	OpSizeof      Opcode = 0xFE1C
	OpRefanytype  Opcode = 0xFE1D
	OpReadonly    Opcode = 0xFE1E
)

var opcodes = map[Opcode]OpInfo{
	OpNop:         {"nop", OperandNone, FlowNext, 0, 0},
	OpBreak:       {"break", OperandNone, FlowBreak, 0, 0},
	OpLdarg0:      {"ldarg.0", OperandNone, FlowNext, 0, 1},
	OpLdarg1:      {"ldarg.1", OperandNone, FlowNext, 0, 1},
	OpLdarg2:      {"ldarg.2", OperandNone, FlowNext, 0, 1},
	OpLdarg3:      {"ldarg.3", OperandNone, FlowNext, 0, 1},
	OpLdloc0:      {"ldloc.0", OperandNone, FlowNext, 0, 1},
	OpLdloc1:      {"ldloc.1", OperandNone, FlowNext, 0, 1},
	OpLdloc2:      {"ldloc.2", OperandNone, FlowNext, 0, 1},
	OpLdloc3:      {"ldloc.3", OperandNone, FlowNext, 0, 1},
	OpStloc0:      {"stloc.0", OperandNone, FlowNext, 1, 0},
	OpStloc1:      {"stloc.1", OperandNone, FlowNext, 1, 0},
	OpStloc2:      {"stloc.2", OperandNone, FlowNext, 1, 0},
	OpStloc3:      {"stloc.3", OperandNone, FlowNext, 1, 0},
	OpLdargS:      {"ldarg.s", OperandUint8, FlowNext, 0, 1},
	OpLdargaS:     {"ldarga.s", OperandUint8, FlowNext, 0, 1},
	OpStargS:      {"starg.s", OperandUint8, FlowNext, 1, 0},
	OpLdlocS:      {"ldloc.s", OperandUint8, FlowNext, 0, 1},
	OpLdlocaS:     {"ldloca.s", OperandUint8, FlowNext, 0, 1},
	OpStlocS:      {"stloc.s", OperandUint8, FlowNext, 1, 0},
	OpLdnull:      {"ldnull", OperandNone, FlowNext, 0, 1},
	OpLdcI4M1:     {"ldc.i4.m1", OperandNone, FlowNext, 0, 1},
	OpLdcI40:      {"ldc.i4.0", OperandNone, FlowNext, 0, 1},
	OpLdcI41:      {"ldc.i4.1", OperandNone, FlowNext, 0, 1},
	OpLdcI42:      {"ldc.i4.2", OperandNone, FlowNext, 0, 1},
	OpLdcI43:      {"ldc.i4.3", OperandNone, FlowNext, 0, 1},
	OpLdcI44:      {"ldc.i4.4", OperandNone, FlowNext, 0, 1},
	OpLdcI45:      {"ldc.i4.5", OperandNone, FlowNext, 0, 1},
	OpLdcI46:      {"ldc.i4.6", OperandNone, FlowNext, 0, 1},
	OpLdcI47:      {"ldc.i4.7", OperandNone, FlowNext, 0, 1},
	OpLdcI48:      {"ldc.i4.8", OperandNone, FlowNext, 0, 1},
	OpLdcI4S:      {"ldc.i4.s", OperandInt8, FlowNext, 0, 1},
	OpLdcI4:       {"ldc.i4", OperandInt32, FlowNext, 0, 1},
	OpLdcI8:       {"ldc.i8", OperandInt64, FlowNext, 0, 1},
	OpLdcR4:       {"ldc.r4", OperandFloat32, FlowNext, 0, 1},
	OpLdcR8:       {"ldc.r8", OperandFloat64, FlowNext, 0, 1},
	OpDup:         {"dup", OperandNone, FlowNext, 1, 2},
	OpPop:         {"pop", OperandNone, FlowNext, 1, 0},
	OpJmp:         {"jmp", OperandMethod, FlowCall, 0, 0},
	OpCall:        {"call", OperandMethod, FlowCall, VarPop, VarPush},
	OpCalli:       {"calli", OperandSignature, FlowCall, VarPop, VarPush},
	OpRet:         {"ret", OperandNone, FlowReturn, VarPop, 0},
	OpBrS:         {"br.s", OperandShortBranch, FlowBranch, 0, 0},
	OpBrfalseS:    {"brfalse.s", OperandShortBranch, FlowCondBranch, 1, 0},
	OpBrtrueS:     {"brtrue.s", OperandShortBranch, FlowCondBranch, 1, 0},
	OpBeqS:        {"beq.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBgeS:        {"bge.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBgtS:        {"bgt.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBleS:        {"ble.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBltS:        {"blt.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBneUnS:      {"bne.un.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBgeUnS:      {"bge.un.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBgtUnS:      {"bgt.un.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBleUnS:      {"ble.un.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBltUnS:      {"blt.un.s", OperandShortBranch, FlowCondBranch, 2, 0},
	OpBr:          {"br", OperandBranch, FlowBranch, 0, 0},
	OpBrfalse:     {"brfalse", OperandBranch, FlowCondBranch, 1, 0},
	OpBrtrue:      {"brtrue", OperandBranch, FlowCondBranch, 1, 0},
	OpBeq:         {"beq", OperandBranch, FlowCondBranch, 2, 0},
	OpBge:         {"bge", OperandBranch, FlowCondBranch, 2, 0},
	OpBgt:         {"bgt", OperandBranch, FlowCondBranch, 2, 0},
	OpBle:         {"ble", OperandBranch, FlowCondBranch, 2, 0},
	OpBlt:         {"blt", OperandBranch, FlowCondBranch, 2, 0},
	OpBneUn:       {"bne.un", OperandBranch, FlowCondBranch, 2, 0},
	OpBgeUn:       {"bge.un", OperandBranch, FlowCondBranch, 2, 0},
	OpBgtUn:       {"bgt.un", OperandBranch, FlowCondBranch, 2, 0},
	OpBleUn:       {"ble.un", OperandBranch, FlowCondBranch, 2, 0},
	OpBltUn:       {"blt.un", OperandBranch, FlowCondBranch, 2, 0},
	OpSwitch:      {"switch", OperandSwitch, FlowCondBranch, 1, 0},
	OpLdindI1:     {"ldind.i1", OperandNone, FlowNext, 1, 1},
	OpLdindU1:     {"ldind.u1", OperandNone, FlowNext, 1, 1},
	OpLdindI2:     {"ldind.i2", OperandNone, FlowNext, 1, 1},
	OpLdindU2:     {"ldind.u2", OperandNone, FlowNext, 1, 1},
	OpLdindI4:     {"ldind.i4", OperandNone, FlowNext, 1, 1},
	OpLdindU4:     {"ldind.u4", OperandNone, FlowNext, 1, 1},
	OpLdindI8:     {"ldind.i8", OperandNone, FlowNext, 1, 1},
	OpLdindI:      {"ldind.i", OperandNone, FlowNext, 1, 1},
	OpLdindR4:     {"ldind.r4", OperandNone, FlowNext, 1, 1},
	OpLdindR8:     {"ldind.r8", OperandNone, FlowNext, 1, 1},
	OpLdindRef:    {"ldind.ref", OperandNone, FlowNext, 1, 1},
	OpStindRef:    {"stind.ref", OperandNone, FlowNext, 2, 0},
	OpStindI1:     {"stind.i1", OperandNone, FlowNext, 2, 0},
	OpStindI2:     {"stind.i2", OperandNone, FlowNext, 2, 0},
	OpStindI4:     {"stind.i4", OperandNone, FlowNext, 2, 0},
	OpStindI8:     {"stind.i8", OperandNone, FlowNext, 2, 0},
	OpStindR4:     {"stind.r4", OperandNone, FlowNext, 2, 0},
	OpStindR8:     {"stind.r8", OperandNone, FlowNext, 2, 0},
	OpAdd:         {"add", OperandNone, FlowNext, 2, 1},
	OpSub:         {"sub", OperandNone, FlowNext, 2, 1},
	OpMul:         {"mul", OperandNone, FlowNext, 2, 1},
	OpDiv:         {"div", OperandNone, FlowNext, 2, 1},
	OpDivUn:       {"div.un", OperandNone, FlowNext, 2, 1},
	OpRem:         {"rem", OperandNone, FlowNext, 2, 1},
	OpRemUn:       {"rem.un", OperandNone, FlowNext, 2, 1},
	OpAnd:         {"and", OperandNone, FlowNext, 2, 1},
	OpOr:          {"or", OperandNone, FlowNext, 2, 1},
	OpXor:         {"xor", OperandNone, FlowNext, 2, 1},
	OpShl:         {"shl", OperandNone, FlowNext, 2, 1},
	OpShr:         {"shr", OperandNone, FlowNext, 2, 1},
	OpShrUn:       {"shr.un", OperandNone, FlowNext, 2, 1},
	OpNeg:         {"neg", OperandNone, FlowNext, 1, 1},
	OpNot:         {"not", OperandNone, FlowNext, 1, 1},
	OpConvI1:      {"conv.i1", OperandNone, FlowNext, 1, 1},
	OpConvI2:      {"conv.i2", OperandNone, FlowNext, 1, 1},
	OpConvI4:      {"conv.i4", OperandNone, FlowNext, 1, 1},
	OpConvI8:      {"conv.i8", OperandNone, FlowNext, 1, 1},
	OpConvR4:      {"conv.r4", OperandNone, FlowNext, 1, 1},
	OpConvR8:      {"conv.r8", OperandNone, FlowNext, 1, 1},
	OpConvU4:      {"conv.u4", OperandNone, FlowNext, 1, 1},
	OpConvU8:      {"conv.u8", OperandNone, FlowNext, 1, 1},
	OpCallvirt:    {"callvirt", OperandMethod, FlowCall, VarPop, VarPush},
	OpCpobj:       {"cpobj", OperandType, FlowNext, 2, 0},
	OpLdobj:       {"ldobj", OperandType, FlowNext, 1, 1},
	OpLdstr:       {"ldstr", OperandString, FlowNext, 0, 1},
	OpNewobj:      {"newobj", OperandMethod, FlowCall, VarPop, 1},
	OpCastclass:   {"castclass", OperandType, FlowNext, 1, 1},
	OpIsinst:      {"isinst", OperandType, FlowNext, 1, 1},
	OpConvRUn:     {"conv.r.un", OperandNone, FlowNext, 1, 1},
	OpUnbox:       {"unbox", OperandType, FlowNext, 1, 1},
	OpThrow:       {"throw", OperandNone, FlowThrow, 1, 0},
	OpLdfld:       {"ldfld", OperandField, FlowNext, 1, 1},
	OpLdflda:      {"ldflda", OperandField, FlowNext, 1, 1},
	OpStfld:       {"stfld", OperandField, FlowNext, 2, 0},
	OpLdsfld:      {"ldsfld", OperandField, FlowNext, 0, 1},
	OpLdsflda:     {"ldsflda", OperandField, FlowNext, 0, 1},
	OpStsfld:      {"stsfld", OperandField, FlowNext, 1, 0},
	OpStobj:       {"stobj", OperandType, FlowNext, 2, 0},
	OpConvOvfI1Un: {"conv.ovf.i1.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfI2Un: {"conv.ovf.i2.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfI4Un: {"conv.ovf.i4.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfI8Un: {"conv.ovf.i8.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfU1Un: {"conv.ovf.u1.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfU2Un: {"conv.ovf.u2.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfU4Un: {"conv.ovf.u4.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfU8Un: {"conv.ovf.u8.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfIUn:  {"conv.ovf.i.un", OperandNone, FlowNext, 1, 1},
	OpConvOvfUUn:  {"conv.ovf.u.un", OperandNone, FlowNext, 1, 1},
	OpBox:         {"box", OperandType, FlowNext, 1, 1},
	OpNewarr:      {"newarr", OperandType, FlowNext, 1, 1},
	OpLdlen:       {"ldlen", OperandNone, FlowNext, 1, 1},
	OpLdelema:     {"ldelema", OperandType, FlowNext, 2, 1},
	OpLdelemI1:    {"ldelem.i1", OperandNone, FlowNext, 2, 1},
	OpLdelemU1:    {"ldelem.u1", OperandNone, FlowNext, 2, 1},
	OpLdelemI2:    {"ldelem.i2", OperandNone, FlowNext, 2, 1},
	OpLdelemU2:    {"ldelem.u2", OperandNone, FlowNext, 2, 1},
	OpLdelemI4:    {"ldelem.i4", OperandNone, FlowNext, 2, 1},
	OpLdelemU4:    {"ldelem.u4", OperandNone, FlowNext, 2, 1},
	OpLdelemI8:    {"ldelem.i8", OperandNone, FlowNext, 2, 1},
	OpLdelemI:     {"ldelem.i", OperandNone, FlowNext, 2, 1},
	OpLdelemR4:    {"ldelem.r4", OperandNone, FlowNext, 2, 1},
	OpLdelemR8:    {"ldelem.r8", OperandNone, FlowNext, 2, 1},
	OpLdelemRef:   {"ldelem.ref", OperandNone, FlowNext, 2, 1},
	OpStelemI:     {"stelem.i", OperandNone, FlowNext, 3, 0},
	OpStelemI1:    {"stelem.i1", OperandNone, FlowNext, 3, 0},
	OpStelemI2:    {"stelem.i2", OperandNone, FlowNext, 3, 0},
	OpStelemI4:    {"stelem.i4", OperandNone, FlowNext, 3, 0},
	OpStelemI8:    {"stelem.i8", OperandNone, FlowNext, 3, 0},
	OpStelemR4:    {"stelem.r4", OperandNone, FlowNext, 3, 0},
	OpStelemR8:    {"stelem.r8", OperandNone, FlowNext, 3, 0},
	OpStelemRef:   {"stelem.ref", OperandNone, FlowNext, 3, 0},
	OpLdelem:      {"ldelem", OperandType, FlowNext, 2, 1},
	OpStelem:      {"stelem", OperandType, FlowNext, 3, 0},
	OpUnboxAny:    {"unbox.any", OperandType, FlowNext, 1, 1},
	OpConvOvfI1:   {"conv.ovf.i1", OperandNone, FlowNext, 1, 1},
	OpConvOvfU1:   {"conv.ovf.u1", OperandNone, FlowNext, 1, 1},
	OpConvOvfI2:   {"conv.ovf.i2", OperandNone, FlowNext, 1, 1},
	OpConvOvfU2:   {"conv.ovf.u2", OperandNone, FlowNext, 1, 1},
	OpConvOvfI4:   {"conv.ovf.i4", OperandNone, FlowNext, 1, 1},
	OpConvOvfU4:   {"conv.ovf.u4", OperandNone, FlowNext, 1, 1},
	OpConvOvfI8:   {"conv.ovf.i8", OperandNone, FlowNext, 1, 1},
	OpConvOvfU8:   {"conv.ovf.u8", OperandNone, FlowNext, 1, 1},
	OpRefanyval:   {"refanyval", OperandType, FlowNext, 1, 1},
	OpCkfinite:    {"ckfinite", OperandNone, FlowNext, 1, 1},
	OpMkrefany:    {"mkrefany", OperandType, FlowNext, 1, 1},
	OpLdtoken:     {"ldtoken", OperandToken, FlowNext, 0, 1},
	OpConvU2:      {"conv.u2", OperandNone, FlowNext, 1, 1},
	OpConvU1:      {"conv.u1", OperandNone, FlowNext, 1, 1},
	OpConvI:       {"conv.i", OperandNone, FlowNext, 1, 1},
	OpConvOvfI:    {"conv.ovf.i", OperandNone, FlowNext, 1, 1},
	OpConvOvfU:    {"conv.ovf.u", OperandNone, FlowNext, 1, 1},
	OpAddOvf:      {"add.ovf", OperandNone, FlowNext, 2, 1},
	OpAddOvfUn:    {"add.ovf.un", OperandNone, FlowNext, 2, 1},
	OpMulOvf:      {"mul.ovf", OperandNone, FlowNext, 2, 1},
	OpMulOvfUn:    {"mul.ovf.un", OperandNone, FlowNext, 2, 1},
	OpSubOvf:      {"sub.ovf", OperandNone, FlowNext, 2, 1},
	OpSubOvfUn:    {"sub.ovf.un", OperandNone, FlowNext, 2, 1},
	OpEndfinally:  {"endfinally", OperandNone, FlowReturn, 0, 0},
	OpLeave:       {"leave", OperandBranch, FlowBranch, 0, 0},
	OpLeaveS:      {"leave.s", OperandShortBranch, FlowBranch, 0, 0},
	OpStindI:      {"stind.i", OperandNone, FlowNext, 2, 0},
	OpConvU:       {"conv.u", OperandNone, FlowNext, 1, 1},
	OpArglist:     {"arglist", OperandNone, FlowNext, 0, 1},
	OpCeq:         {"ceq", OperandNone, FlowNext, 2, 1},
	OpCgt:         {"cgt", OperandNone, FlowNext, 2, 1},
	OpCgtUn:       {"cgt.un", OperandNone, FlowNext, 2, 1},
	OpClt:         {"clt", OperandNone, FlowNext, 2, 1},
	OpCltUn:       {"clt.un", OperandNone, FlowNext, 2, 1},
	OpLdftn:       {"ldftn", OperandMethod, FlowNext, 0, 1},
	OpLdvirtftn:   {"ldvirtftn", OperandMethod, FlowNext, 1, 1},
	OpLdarg:       {"ldarg", OperandUint16, FlowNext, 0, 1},
	OpLdarga:      {"ldarga", OperandUint16, FlowNext, 0, 1},
	OpStarg:       {"starg", OperandUint16, FlowNext, 1, 0},
	OpLdloc:       {"ldloc", OperandUint16, FlowNext, 0, 1},
	OpLdloca:      {"ldloca", OperandUint16, FlowNext, 0, 1},
	OpStloc:       {"stloc", OperandUint16, FlowNext, 1, 0},
	OpLocalloc:    {"localloc", OperandNone, FlowNext, 1, 1},
	OpEndfilter:   {"endfilter", OperandNone, FlowReturn, 1, 0},
	OpUnaligned:   {"unaligned.", OperandUint8, FlowMeta, 0, 0},
	OpVolatile:    {"volatile.", OperandNone, FlowMeta, 0, 0},
	OpTail:        {"tail.", OperandNone, FlowMeta, 0, 0},
	OpInitobj:     {"initobj", OperandType, FlowNext, 1, 0},
	OpConstrained: {"constrained.", OperandType, FlowMeta, 0, 0},
	OpCpblk:       {"cpblk", OperandNone, FlowNext, 3, 0},
	OpInitblk:     {"initblk", OperandNone, FlowNext, 3, 0},
	OpNo:          {"no.", OperandUint8, FlowMeta, 0, 0},
	OpRethrow:     {"rethrow", OperandNone, FlowThrow, 0, 0},
	OpSizeof:      {"sizeof", OperandType, FlowNext, 0, 1},
	OpRefanytype:  {"refanytype", OperandNone, FlowNext, 1, 1},
	OpReadonly:    {"readonly.", OperandNone, FlowMeta, 0, 0},
}
