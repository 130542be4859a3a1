package typesys

import (
	"strings"

	"github.com/wippyai/clrmeta/metadata"
)

// TypeKind classifies a type definition.
type TypeKind uint8

const (
	KindClass TypeKind = iota
	KindStruct
	KindInterface
	KindEnum
	KindDelegate
)

func (k TypeKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindDelegate:
		return "delegate"
	}
	return "unknown"
}

// TypeDef attribute flags.
const (
	TypeVisibilityMask   uint32 = 0x00000007
	TypeNotPublic        uint32 = 0x00000000
	TypePublic           uint32 = 0x00000001
	TypeNestedPublic     uint32 = 0x00000002
	TypeLayoutMask       uint32 = 0x00000018
	TypeSequentialLayout uint32 = 0x00000008
	TypeExplicitLayout   uint32 = 0x00000010
	TypeInterface        uint32 = 0x00000020
	TypeAbstract         uint32 = 0x00000080
	TypeSealed           uint32 = 0x00000100
	TypeSpecialName      uint32 = 0x00000400
	TypeImport           uint32 = 0x00001000
	TypeSerializable     uint32 = 0x00002000
	TypeBeforeFieldInit  uint32 = 0x00100000
	TypeHasSecurity      uint32 = 0x00040000
)

// Layout is the explicit layout of a type from ClassLayout.
type Layout struct {
	Packing uint16
	Size    uint32
	Present bool
}

// MethodImpl maps an interface or base method declaration to the body that
// implements it.
type MethodImpl struct {
	Body        *Method
	Declaration *Method
}

// TypeDef is a type definition of a module, or a placeholder synthesized
// for a reference that could not be resolved.
type TypeDef struct {
	Module    *Module
	Token     metadata.Token
	Name      string
	Namespace string
	Flags     uint32
	Kind      TypeKind
	Enclosing *TypeDef
	// GenericParams are the type's own parameters, excluding those
	// inherited from the enclosing type.
	GenericParams []*GenericParam
	// Placeholder is set for synthesized unresolved types. Scope names
	// where the reference pointed.
	Placeholder bool
	Scope       string

	loader     Loader
	base       Slot[Type]
	interfaces Slot[[]Type]
	fields     Slot[[]*Field]
	methods    Slot[[]*Method]
	properties Slot[[]*Property]
	events     Slot[[]*Event]
	nested     Slot[[]*TypeDef]
	layout     Slot[Layout]
	impls      Slot[[]MethodImpl]
	attrs      Slot[[]*Attribute]
	security   Slot[[]*SecurityDeclaration]
	consol     []*GenericParam
}

// NewPlaceholderType returns an unresolved stand-in type owned by mod.
func NewPlaceholderType(mod *Module, scope, namespace, name string) *TypeDef {
	return &TypeDef{Module: mod, Namespace: namespace, Name: name, Placeholder: true, Scope: scope}
}

// SetLoader attaches the lazy loader.
func (t *TypeDef) SetLoader(l Loader) { t.loader = l }

// FullName returns the namespace-qualified name; nested types are joined
// to their enclosing type with '/'.
func (t *TypeDef) FullName() string {
	if t.Enclosing != nil {
		return t.Enclosing.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// ReflectionName returns the name in serialized form, nesting with '+'.
func (t *TypeDef) ReflectionName() string {
	return strings.ReplaceAll(t.FullName(), "/", "+")
}

func (t *TypeDef) String() string { return t.FullName() }

// MemberName returns the simple name.
func (t *TypeDef) MemberName() string { return t.Name }

// IsInterface reports whether the type is an interface.
func (t *TypeDef) IsInterface() bool { return t.Flags&TypeInterface != 0 }

// IsValueType reports whether the type is a struct or enum.
func (t *TypeDef) IsValueType() bool { return t.Kind == KindStruct || t.Kind == KindEnum }

// IsGeneric reports whether the type has any generic parameters, own or
// inherited.
func (t *TypeDef) IsGeneric() bool { return len(t.ConsolidatedParams()) > 0 }

// Is reports whether t is the top-level type namespace.name.
func (t *TypeDef) Is(namespace, name string) bool {
	return t.Enclosing == nil && t.Namespace == namespace && t.Name == name
}

// ConsolidatedParams returns the enclosing type's consolidated parameters
// followed by the type's own, in declaration order. VAR indexes this list.
func (t *TypeDef) ConsolidatedParams() []*GenericParam {
	if t.consol != nil {
		return t.consol
	}
	if t.Enclosing == nil {
		t.consol = t.GenericParams
	} else {
		outer := t.Enclosing.ConsolidatedParams()
		list := make([]*GenericParam, 0, len(outer)+len(t.GenericParams))
		list = append(list, outer...)
		t.consol = append(list, t.GenericParams...)
	}
	if t.consol == nil {
		t.consol = []*GenericParam{}
	}
	return t.consol
}

// BaseType returns the base type, or nil for interfaces and System.Object.
func (t *TypeDef) BaseType() Type {
	return t.base.Load(func() Type {
		if t.loader == nil {
			return nil
		}
		return t.loader.BaseType(t)
	})
}

// Interfaces returns the directly implemented interfaces.
func (t *TypeDef) Interfaces() []Type {
	return t.interfaces.Load(func() []Type {
		if t.loader == nil {
			return nil
		}
		return t.loader.Interfaces(t)
	})
}

// Fields returns the declared fields.
func (t *TypeDef) Fields() []*Field {
	return t.fields.Load(func() []*Field {
		if t.loader == nil {
			return nil
		}
		return t.loader.Fields(t)
	})
}

// Methods returns the declared methods.
func (t *TypeDef) Methods() []*Method {
	return t.methods.Load(func() []*Method {
		if t.loader == nil {
			return nil
		}
		return t.loader.Methods(t)
	})
}

// Properties returns the declared properties.
func (t *TypeDef) Properties() []*Property {
	return t.properties.Load(func() []*Property {
		if t.loader == nil {
			return nil
		}
		return t.loader.Properties(t)
	})
}

// Events returns the declared events.
func (t *TypeDef) Events() []*Event {
	return t.events.Load(func() []*Event {
		if t.loader == nil {
			return nil
		}
		return t.loader.Events(t)
	})
}

// NestedTypes returns the types declared inside t.
func (t *TypeDef) NestedTypes() []*TypeDef {
	return t.nested.Load(func() []*TypeDef {
		if t.loader == nil {
			return nil
		}
		return t.loader.NestedTypes(t)
	})
}

// Layout returns the explicit class layout.
func (t *TypeDef) Layout() Layout {
	return t.layout.Load(func() Layout {
		if t.loader == nil {
			return Layout{}
		}
		return t.loader.Layout(t)
	})
}

// MethodImpls returns the explicit method implementations of t.
func (t *TypeDef) MethodImpls() []MethodImpl {
	return t.impls.Load(func() []MethodImpl {
		if t.loader == nil {
			return nil
		}
		return t.loader.MethodImpls(t)
	})
}

// Attributes returns the custom attributes of t.
func (t *TypeDef) Attributes() []*Attribute {
	return t.attrs.Load(func() []*Attribute {
		if t.loader == nil {
			return nil
		}
		return t.loader.Attributes(t.Token)
	})
}

// Security returns the declarative security of t.
func (t *TypeDef) Security() []*SecurityDeclaration {
	return t.security.Load(func() []*SecurityDeclaration {
		if t.loader == nil {
			return nil
		}
		return t.loader.Security(t.Token)
	})
}

// FindNested returns the directly nested type with the given name.
func (t *TypeDef) FindNested(name string) *TypeDef {
	for _, n := range t.NestedTypes() {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// FindField returns the first declared field named name.
func (t *TypeDef) FindField(name string) *Field {
	for _, f := range t.Fields() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindMethods returns the declared methods named name.
func (t *TypeDef) FindMethods(name string) []*Method {
	var out []*Method
	for _, m := range t.Methods() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// EnumUnderlying returns the type of the value__ field of an enum.
func (t *TypeDef) EnumUnderlying() Type {
	if t.Kind != KindEnum {
		return nil
	}
	for _, f := range t.Fields() {
		if f.Flags&FieldStatic == 0 {
			return f.Type()
		}
	}
	return nil
}

// ClassifyKind derives the kind of a type from its flags and the full name
// of its base type.
func ClassifyKind(flags uint32, namespace, name, baseNamespace, baseName string) TypeKind {
	if flags&TypeInterface != 0 {
		return KindInterface
	}
	if baseNamespace != "System" {
		return KindClass
	}
	switch baseName {
	case "Enum":
		return KindEnum
	case "ValueType":
		if namespace == "System" && name == "Enum" {
			return KindClass
		}
		return KindStruct
	case "MulticastDelegate":
		if namespace == "System" && name == "Delegate" {
			return KindClass
		}
		return KindDelegate
	}
	return KindClass
}
