package typesys

import (
	"strconv"
	"strings"

	"github.com/wippyai/clrmeta/metadata"
)

// Type is a type expression: a definition, a generic parameter, a
// primitive or a constructed type.
type Type interface {
	Entity
	typeNode()
}

// Entity is anything a metadata token can resolve to: a Type, *Field,
// *Method, *Property, *Event or a stand-alone *MethodSignature.
type Entity interface {
	String() string
	entity()
}

// Primitive is a built-in element type.
type Primitive struct {
	Element metadata.ElementType
}

var primitives = map[metadata.ElementType]*Primitive{}

func init() {
	for e := range primitiveNames {
		primitives[e] = &Primitive{Element: e}
	}
}

var primitiveNames = map[metadata.ElementType][2]string{
	metadata.ElementVoid:       {"void", "Void"},
	metadata.ElementBoolean:    {"bool", "Boolean"},
	metadata.ElementChar:       {"char", "Char"},
	metadata.ElementI1:         {"int8", "SByte"},
	metadata.ElementU1:         {"uint8", "Byte"},
	metadata.ElementI2:         {"int16", "Int16"},
	metadata.ElementU2:         {"uint16", "UInt16"},
	metadata.ElementI4:         {"int32", "Int32"},
	metadata.ElementU4:         {"uint32", "UInt32"},
	metadata.ElementI8:         {"int64", "Int64"},
	metadata.ElementU8:         {"uint64", "UInt64"},
	metadata.ElementR4:         {"float32", "Single"},
	metadata.ElementR8:         {"float64", "Double"},
	metadata.ElementString:     {"string", "String"},
	metadata.ElementObject:     {"object", "Object"},
	metadata.ElementI:          {"native int", "IntPtr"},
	metadata.ElementU:          {"native uint", "UIntPtr"},
	metadata.ElementTypedByRef: {"typedref", "TypedReference"},
}

// PrimitiveOf returns the shared Primitive for e, or nil when e is not a
// primitive element type.
func PrimitiveOf(e metadata.ElementType) *Primitive {
	return primitives[e]
}

// PrimitiveByName returns the primitive whose System type name is name.
func PrimitiveByName(name string) *Primitive {
	for e, n := range primitiveNames {
		if n[1] == name {
			return primitives[e]
		}
	}
	return nil
}

// SystemName returns the type name inside the System namespace.
func (p *Primitive) SystemName() string {
	return primitiveNames[p.Element][1]
}

func (p *Primitive) String() string {
	if n, ok := primitiveNames[p.Element]; ok {
		return n[0]
	}
	return "?"
}

// Pointer is an unmanaged pointer.
type Pointer struct {
	Elem Type
}

func (p *Pointer) String() string { return p.Elem.String() + "*" }

// ByRef is a managed reference.
type ByRef struct {
	Elem Type
}

func (r *ByRef) String() string { return r.Elem.String() + "&" }

// Pinned marks a pinned local variable type.
type Pinned struct {
	Elem Type
}

func (p *Pinned) String() string { return p.Elem.String() + " pinned" }

// Array is a single-dimension zero-based array (SZ) or a general array
// with rank, sizes and lower bounds.
type Array struct {
	Elem        Type
	Rank        uint32
	Sizes       []uint32
	LowerBounds []int32
	SZ          bool
}

// NewSZArray returns a vector of elem.
func NewSZArray(elem Type) *Array {
	return &Array{Elem: elem, Rank: 1, SZ: true}
}

func (a *Array) String() string {
	if a.SZ {
		return a.Elem.String() + "[]"
	}
	if a.Rank == 1 && len(a.Sizes) == 0 && len(a.LowerBounds) == 0 {
		return a.Elem.String() + "[*]"
	}
	return a.Elem.String() + "[" + strings.Repeat(",", int(a.Rank)-1) + "]"
}

// FunctionPointer is a pointer to a method with the given signature.
type FunctionPointer struct {
	Signature *MethodSignature
}

func (f *FunctionPointer) String() string {
	return "method " + f.Signature.String()
}

// Modified is a type carrying a custom modifier.
type Modified struct {
	Modifier Type
	Required bool
	Elem     Type
}

func (m *Modified) String() string {
	kw := " modopt("
	if m.Required {
		kw = " modreq("
	}
	return m.Elem.String() + kw + m.Modifier.String() + ")"
}

// GenericParam is a type or method generic parameter.
type GenericParam struct {
	Module *Module
	Token  metadata.Token
	Name   string
	Number uint16
	Flags  uint16
	// Owner is the declaring *TypeDef or *Method.
	Owner Entity

	loader      Loader
	constraints Slot[[]Type]
	attrs       Slot[[]*Attribute]
}

// Generic parameter flags.
const (
	GenericVarianceMask            uint16 = 0x0003
	GenericCovariant               uint16 = 0x0001
	GenericContravariant           uint16 = 0x0002
	GenericReferenceTypeConstraint uint16 = 0x0004
	GenericValueTypeConstraint     uint16 = 0x0008
	GenericDefaultCtorConstraint   uint16 = 0x0010
)

// SetLoader attaches the lazy loader.
func (p *GenericParam) SetLoader(l Loader) { p.loader = l }

// IsMethodParam reports whether the parameter belongs to a method.
func (p *GenericParam) IsMethodParam() bool {
	_, ok := p.Owner.(*Method)
	return ok
}

// Constraints returns the declared constraint types.
func (p *GenericParam) Constraints() []Type {
	return p.constraints.Load(func() []Type {
		if p.loader == nil {
			return nil
		}
		return p.loader.GenericConstraints(p)
	})
}

// Attributes returns the custom attributes of the parameter.
func (p *GenericParam) Attributes() []*Attribute {
	return p.attrs.Load(func() []*Attribute {
		if p.loader == nil {
			return nil
		}
		return p.loader.Attributes(p.Token)
	})
}

// IsClassConstrained reports whether any constraint is a class type:
// not an interface, and not the System.ValueType or System.Enum base of a
// value type.
func (p *GenericParam) IsClassConstrained() bool {
	for _, c := range p.Constraints() {
		if isClassType(c) {
			return true
		}
	}
	return false
}

func isClassType(t Type) bool {
	var def *TypeDef
	switch c := t.(type) {
	case *TypeDef:
		def = c
	case *Instance:
		def = c.Template
	case *Array:
		return true
	default:
		return false
	}
	if def.Kind == KindInterface {
		return false
	}
	if def.Namespace == "System" && def.Enclosing == nil && (def.Name == "ValueType" || def.Name == "Enum") {
		return false
	}
	return def.Kind == KindClass || def.Kind == KindDelegate
}

func (p *GenericParam) String() string {
	if p.Name != "" {
		return p.Name
	}
	if p.IsMethodParam() {
		return "!!" + strconv.Itoa(int(p.Number))
	}
	return "!" + strconv.Itoa(int(p.Number))
}

// MethodSignature is a decoded method, property or stand-alone call-site
// signature.
type MethodSignature struct {
	Convention   byte
	HasThis      bool
	ExplicitThis bool
	GenericCount uint32
	Return       Type
	Params       []Type
	// VarArgs holds the types after the sentinel of a vararg call site.
	VarArgs []Type
}

// Kind returns the calling convention kind (low nibble).
func (s *MethodSignature) Kind() byte {
	return s.Convention & metadata.SigKindMask
}

func (s *MethodSignature) String() string {
	var b strings.Builder
	if s.HasThis {
		b.WriteString("instance ")
	}
	if s.Return != nil {
		b.WriteString(s.Return.String())
	} else {
		b.WriteString("void")
	}
	b.WriteString(" (")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	if len(s.VarArgs) > 0 {
		b.WriteString(", ...")
		for _, p := range s.VarArgs {
			b.WriteString(", ")
			b.WriteString(p.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}

func (*Primitive) typeNode()       {}
func (*Pointer) typeNode()         {}
func (*ByRef) typeNode()           {}
func (*Pinned) typeNode()          {}
func (*Array) typeNode()           {}
func (*FunctionPointer) typeNode() {}
func (*Modified) typeNode()        {}
func (*GenericParam) typeNode()    {}
func (*TypeDef) typeNode()         {}
func (*Instance) typeNode()        {}

func (*Primitive) entity()       {}
func (*Pointer) entity()         {}
func (*ByRef) entity()           {}
func (*Pinned) entity()          {}
func (*Array) entity()           {}
func (*FunctionPointer) entity() {}
func (*Modified) entity()        {}
func (*GenericParam) entity()    {}
func (*TypeDef) entity()         {}
func (*Instance) entity()        {}
func (*Field) entity()           {}
func (*Method) entity()          {}
func (*Property) entity()        {}
func (*Event) entity()           {}
func (*MethodSignature) entity() {}
