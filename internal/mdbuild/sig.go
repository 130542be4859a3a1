package mdbuild

import (
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
)

// Sig fragments are encoded type signatures that compose by nesting.

// Prim encodes a primitive element type.
func Prim(e metadata.ElementType) []byte {
	return []byte{byte(e)}
}

// Class encodes CLASS followed by a TypeDefOrRef token.
func Class(tok metadata.Token) []byte {
	return append([]byte{byte(metadata.ElementClass)}, TypeDefOrRef(tok)...)
}

// ValueType encodes VALUETYPE followed by a TypeDefOrRef token.
func ValueType(tok metadata.Token) []byte {
	return append([]byte{byte(metadata.ElementValueType)}, TypeDefOrRef(tok)...)
}

// TypeDefOrRef encodes a compressed TypeDefOrRef coded token.
func TypeDefOrRef(tok metadata.Token) []byte {
	return binary.AppendCompressedU32(nil, Coded(metadata.CodedTypeDefOrRef, tok))
}

// Ptr encodes an unmanaged pointer.
func Ptr(t []byte) []byte {
	return append([]byte{byte(metadata.ElementPtr)}, t...)
}

// ByRef encodes a managed reference.
func ByRef(t []byte) []byte {
	return append([]byte{byte(metadata.ElementByRef)}, t...)
}

// Pinned encodes a pinned local.
func Pinned(t []byte) []byte {
	return append([]byte{byte(metadata.ElementPinned)}, t...)
}

// SzArray encodes a single-dimension zero-based array.
func SzArray(t []byte) []byte {
	return append([]byte{byte(metadata.ElementSzArray)}, t...)
}

// Array encodes a general array with explicit sizes and lower bounds.
func Array(t []byte, rank uint32, sizes []uint32, lowBounds []int32) []byte {
	w := binary.NewWriter()
	w.Byte(byte(metadata.ElementArray))
	w.WriteBytes(t)
	w.CompressedU32(rank)
	w.CompressedU32(uint32(len(sizes)))
	for _, s := range sizes {
		w.CompressedU32(s)
	}
	w.CompressedU32(uint32(len(lowBounds)))
	for _, lb := range lowBounds {
		w.CompressedI32(lb)
	}
	return w.Bytes()
}

// GenericInst encodes a generic instantiation of a class or value type.
func GenericInst(valueType bool, tok metadata.Token, args ...[]byte) []byte {
	w := binary.NewWriter()
	w.Byte(byte(metadata.ElementGenericInst))
	if valueType {
		w.Byte(byte(metadata.ElementValueType))
	} else {
		w.Byte(byte(metadata.ElementClass))
	}
	w.WriteBytes(TypeDefOrRef(tok))
	w.CompressedU32(uint32(len(args)))
	for _, a := range args {
		w.WriteBytes(a)
	}
	return w.Bytes()
}

// Var encodes a type generic parameter reference.
func Var(n uint32) []byte {
	return binary.AppendCompressedU32([]byte{byte(metadata.ElementVar)}, n)
}

// MVar encodes a method generic parameter reference.
func MVar(n uint32) []byte {
	return binary.AppendCompressedU32([]byte{byte(metadata.ElementMVar)}, n)
}

// CModReqd wraps t with a required modifier.
func CModReqd(mod metadata.Token, t []byte) []byte {
	out := append([]byte{byte(metadata.ElementCModReqd)}, TypeDefOrRef(mod)...)
	return append(out, t...)
}

// CModOpt wraps t with an optional modifier.
func CModOpt(mod metadata.Token, t []byte) []byte {
	out := append([]byte{byte(metadata.ElementCModOpt)}, TypeDefOrRef(mod)...)
	return append(out, t...)
}

// FnPtr encodes a function pointer around a method signature.
func FnPtr(method []byte) []byte {
	return append([]byte{byte(metadata.ElementFnPtr)}, method...)
}

// MethodSig encodes a method signature. conv holds the calling convention
// and flags; a generic count above zero sets SigGeneric.
func MethodSig(conv byte, generic uint32, ret []byte, params ...[]byte) []byte {
	w := binary.NewWriter()
	if generic > 0 {
		conv |= metadata.SigGeneric
	}
	w.Byte(conv)
	if generic > 0 {
		w.CompressedU32(generic)
	}
	w.CompressedU32(uint32(len(params)))
	w.WriteBytes(ret)
	for _, p := range params {
		w.WriteBytes(p)
	}
	return w.Bytes()
}

// VarArgSig encodes a vararg call-site signature with a sentinel before
// the variable part.
func VarArgSig(conv byte, ret []byte, fixed, variable [][]byte) []byte {
	w := binary.NewWriter()
	w.Byte(conv | metadata.SigVarArg)
	w.CompressedU32(uint32(len(fixed) + len(variable)))
	w.WriteBytes(ret)
	for _, p := range fixed {
		w.WriteBytes(p)
	}
	if len(variable) > 0 {
		w.Byte(byte(metadata.ElementSentinel))
		for _, p := range variable {
			w.WriteBytes(p)
		}
	}
	return w.Bytes()
}

// FieldSig encodes a field signature.
func FieldSig(t []byte) []byte {
	return append([]byte{metadata.SigField}, t...)
}

// PropertySig encodes a property signature.
func PropertySig(hasThis bool, t []byte, params ...[]byte) []byte {
	w := binary.NewWriter()
	conv := metadata.SigProperty
	if hasThis {
		conv |= metadata.SigHasThis
	}
	w.Byte(conv)
	w.CompressedU32(uint32(len(params)))
	w.WriteBytes(t)
	for _, p := range params {
		w.WriteBytes(p)
	}
	return w.Bytes()
}

// LocalSig encodes a local variable signature.
func LocalSig(locals ...[]byte) []byte {
	w := binary.NewWriter()
	w.Byte(metadata.SigLocal)
	w.CompressedU32(uint32(len(locals)))
	for _, l := range locals {
		w.WriteBytes(l)
	}
	return w.Bytes()
}

// MethodSpecSig encodes a generic method instantiation blob.
func MethodSpecSig(args ...[]byte) []byte {
	w := binary.NewWriter()
	w.Byte(metadata.SigGenericInst)
	w.CompressedU32(uint32(len(args)))
	for _, a := range args {
		w.WriteBytes(a)
	}
	return w.Bytes()
}
