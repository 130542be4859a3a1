package typesys

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKey returns a canonical string for t. Structurally equal types have
// the same key; definitions are keyed by module and token so that equal
// names in different modules stay distinct.
func TypeKey(t Type) string {
	var b strings.Builder
	writeKey(&b, t)
	return b.String()
}

func writeKey(b *strings.Builder, t Type) {
	switch x := t.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Primitive:
		b.WriteString(x.String())
	case *TypeDef:
		if x.Placeholder {
			b.WriteString("?[")
			b.WriteString(x.Scope)
			b.WriteString("]")
			b.WriteString(x.FullName())
			return
		}
		fmt.Fprintf(b, "%p:%08x", x.Module, uint32(x.Token))
	case *GenericParam:
		if x.IsMethodParam() {
			fmt.Fprintf(b, "!!%p:%d", x.Owner, x.Number)
		} else {
			fmt.Fprintf(b, "!%p:%d", x.Owner, x.Number)
		}
	case *Pointer:
		writeKey(b, x.Elem)
		b.WriteByte('*')
	case *ByRef:
		writeKey(b, x.Elem)
		b.WriteByte('&')
	case *Pinned:
		writeKey(b, x.Elem)
		b.WriteString(" pinned")
	case *Array:
		writeKey(b, x.Elem)
		if x.SZ {
			b.WriteString("[]")
			return
		}
		b.WriteString("[" + strconv.Itoa(int(x.Rank)))
		for _, s := range x.Sizes {
			b.WriteString(",s" + strconv.FormatUint(uint64(s), 10))
		}
		for _, l := range x.LowerBounds {
			b.WriteString(",l" + strconv.Itoa(int(l)))
		}
		b.WriteByte(']')
	case *Modified:
		writeKey(b, x.Elem)
		if x.Required {
			b.WriteString(" modreq(")
		} else {
			b.WriteString(" modopt(")
		}
		writeKey(b, x.Modifier)
		b.WriteByte(')')
	case *FunctionPointer:
		b.WriteString("method ")
		writeSigKey(b, x.Signature)
	case *Instance:
		writeKey(b, x.Template)
		b.WriteByte('<')
		for i, a := range x.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, a)
		}
		b.WriteByte('>')
	default:
		b.WriteString(t.String())
	}
}

func writeSigKey(b *strings.Builder, s *MethodSignature) {
	if s == nil {
		b.WriteString("<nil>")
		return
	}
	fmt.Fprintf(b, "%02x`%d ", s.Convention, s.GenericCount)
	writeKey(b, s.Return)
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		writeKey(b, p)
	}
	if s.VarArgs != nil {
		b.WriteString(",...")
		for _, p := range s.VarArgs {
			b.WriteByte(',')
			writeKey(b, p)
		}
	}
	b.WriteByte(')')
}

// Equal reports whether a and b denote the same type. Definitions and
// generic parameters compare by identity; constructed types compare
// structurally.
func Equal(a, b Type) bool {
	return compare(a, b, false)
}

// SameShape reports whether a and b match for member reference binding.
// Generic parameters match by owner kind and position, and placeholder
// definitions match any definition with the same full name.
func SameShape(a, b Type) bool {
	return compare(a, b, true)
}

// SameSignature reports whether two method signatures match for member
// reference binding.
func SameSignature(a, b *MethodSignature) bool {
	return compareSig(a, b, true)
}

func compare(a, b Type, shape bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch x := a.(type) {
	case *Primitive:
		y, ok := b.(*Primitive)
		return ok && x.Element == y.Element
	case *TypeDef:
		y, ok := b.(*TypeDef)
		if !ok {
			return false
		}
		if x.Placeholder && y.Placeholder {
			return x.Scope == y.Scope && x.FullName() == y.FullName()
		}
		return shape && (x.Placeholder || y.Placeholder) && x.FullName() == y.FullName()
	case *GenericParam:
		y, ok := b.(*GenericParam)
		return ok && shape && x.IsMethodParam() == y.IsMethodParam() && x.Number == y.Number
	case *Pointer:
		y, ok := b.(*Pointer)
		return ok && compare(x.Elem, y.Elem, shape)
	case *ByRef:
		y, ok := b.(*ByRef)
		return ok && compare(x.Elem, y.Elem, shape)
	case *Pinned:
		y, ok := b.(*Pinned)
		return ok && compare(x.Elem, y.Elem, shape)
	case *Array:
		y, ok := b.(*Array)
		if !ok || x.SZ != y.SZ || x.Rank != y.Rank || !compare(x.Elem, y.Elem, shape) {
			return false
		}
		if len(x.Sizes) != len(y.Sizes) || len(x.LowerBounds) != len(y.LowerBounds) {
			return false
		}
		for i := range x.Sizes {
			if x.Sizes[i] != y.Sizes[i] {
				return false
			}
		}
		for i := range x.LowerBounds {
			if x.LowerBounds[i] != y.LowerBounds[i] {
				return false
			}
		}
		return true
	case *Modified:
		y, ok := b.(*Modified)
		return ok && x.Required == y.Required && compare(x.Modifier, y.Modifier, shape) && compare(x.Elem, y.Elem, shape)
	case *FunctionPointer:
		y, ok := b.(*FunctionPointer)
		return ok && compareSig(x.Signature, y.Signature, shape)
	case *Instance:
		y, ok := b.(*Instance)
		if !ok || !compare(x.Template, y.Template, shape) || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !compare(x.Args[i], y.Args[i], shape) {
				return false
			}
		}
		return true
	}
	return false
}

func compareSig(a, b *MethodSignature, shape bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Convention != b.Convention || a.GenericCount != b.GenericCount {
		return false
	}
	if !compare(a.Return, b.Return, shape) {
		return false
	}
	return equalTypeLists(a.Params, b.Params, shape) && equalTypeLists(a.VarArgs, b.VarArgs, shape)
}

func equalTypeLists(a, b []Type, shape bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !compare(a[i], b[i], shape) {
			return false
		}
	}
	return true
}

func equalLists(a, b []Type) bool {
	return equalTypeLists(a, b, false)
}
