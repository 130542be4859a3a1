package typesys

import "github.com/wippyai/clrmeta/metadata"

// Member access and attribute flags shared by fields and methods.
const (
	AccessMask        uint16 = 0x0007
	AccessPrivate     uint16 = 0x0001
	AccessFamANDAssem uint16 = 0x0002
	AccessAssembly    uint16 = 0x0003
	AccessFamily      uint16 = 0x0004
	AccessFamORAssem  uint16 = 0x0005
	AccessPublic      uint16 = 0x0006
)

// Field flags.
const (
	FieldStatic      uint16 = 0x0010
	FieldInitOnly    uint16 = 0x0020
	FieldLiteral     uint16 = 0x0040
	FieldHasFieldRVA uint16 = 0x0100
	FieldHasDefault  uint16 = 0x8000
)

// Method flags.
const (
	MethodStatic        uint16 = 0x0010
	MethodFinal         uint16 = 0x0020
	MethodVirtual       uint16 = 0x0040
	MethodHideBySig     uint16 = 0x0080
	MethodNewSlot       uint16 = 0x0100
	MethodAbstract      uint16 = 0x0400
	MethodSpecialName   uint16 = 0x0800
	MethodPInvokeImpl   uint16 = 0x2000
	MethodRTSpecialName uint16 = 0x1000
	MethodHasSecurity   uint16 = 0x4000
)

// Method implementation flags.
const (
	ImplCodeTypeMask uint16 = 0x0003
	ImplIL           uint16 = 0x0000
	ImplNative       uint16 = 0x0001
	ImplRuntime      uint16 = 0x0003
	ImplUnmanaged    uint16 = 0x0004
	ImplInternalCall uint16 = 0x1000
)

// Parameter flags.
const (
	ParamIn         uint16 = 0x0001
	ParamOut        uint16 = 0x0002
	ParamOptional   uint16 = 0x0010
	ParamHasDefault uint16 = 0x1000
)

// Method semantics of property and event accessors.
const (
	SemanticsSetter   uint16 = 0x0001
	SemanticsGetter   uint16 = 0x0002
	SemanticsOther    uint16 = 0x0004
	SemanticsAddOn    uint16 = 0x0008
	SemanticsRemoveOn uint16 = 0x0010
	SemanticsFire     uint16 = 0x0020
)

// Accessor links a property or event to one of its methods.
type Accessor struct {
	Semantics uint16
	Method    *Method
}

// FieldLayout holds the placement data of a field.
type FieldLayout struct {
	Offset    uint32
	HasOffset bool
	RVA       uint32
	Marshal   []byte
}

// PInvoke describes a platform invoke import from ImplMap.
type PInvoke struct {
	Flags      uint16
	ImportName string
	Module     string
}

// Field is a field of a type definition or of a generic instance.
type Field struct {
	Module        *Module
	Token         metadata.Token
	Name          string
	Flags         uint16
	DeclaringType *TypeDef
	// Instance and Definition are set when the field is specialized onto a
	// generic instance.
	Instance    *Instance
	Definition  *Field
	Placeholder bool

	loader   Loader
	typ      Slot[Type]
	layout   Slot[FieldLayout]
	constant Slot[*Value]
	attrs    Slot[[]*Attribute]
}

// NewPlaceholderField returns an unresolved stand-in field.
func NewPlaceholderField(mod *Module, declaring *TypeDef, name string, typ Type) *Field {
	f := &Field{Module: mod, DeclaringType: declaring, Name: name, Placeholder: true}
	f.typ.Complete(typ)
	return f
}

// SetLoader attaches the lazy loader.
func (f *Field) SetLoader(l Loader) { f.loader = l }

// Declaring returns the declaring instance or type definition.
func (f *Field) Declaring() Type {
	if f.Instance != nil {
		return f.Instance
	}
	if f.DeclaringType == nil {
		return nil
	}
	return f.DeclaringType
}

// MemberName returns the field name.
func (f *Field) MemberName() string { return f.Name }

// IsStatic reports whether the field is static.
func (f *Field) IsStatic() bool { return f.Flags&FieldStatic != 0 }

func (f *Field) String() string {
	var owner string
	if d := f.Declaring(); d != nil {
		owner = d.String() + "::"
	}
	if t := f.Type(); t != nil {
		return t.String() + " " + owner + f.Name
	}
	return owner + f.Name
}

// Type returns the field type.
func (f *Field) Type() Type {
	return f.typ.Load(func() Type {
		if f.Definition != nil {
			return f.Instance.Substitute(f.Definition.Type())
		}
		if f.loader == nil {
			return nil
		}
		return f.loader.FieldType(f)
	})
}

// Layout returns the explicit offset, RVA and marshaling data.
func (f *Field) Layout() FieldLayout {
	return f.layout.Load(func() FieldLayout {
		if f.Definition != nil {
			return f.Definition.Layout()
		}
		if f.loader == nil {
			return FieldLayout{}
		}
		return f.loader.FieldLayout(f)
	})
}

// Constant returns the default value of a literal field, or nil.
func (f *Field) Constant() *Value {
	return f.constant.Load(func() *Value {
		if f.Definition != nil {
			return f.Definition.Constant()
		}
		if f.loader == nil || f.Flags&FieldHasDefault == 0 {
			return nil
		}
		return f.loader.Constant(f.Token)
	})
}

// Attributes returns the custom attributes of the field.
func (f *Field) Attributes() []*Attribute {
	return f.attrs.Load(func() []*Attribute {
		if f.Definition != nil {
			return f.Definition.Attributes()
		}
		if f.loader == nil {
			return nil
		}
		return f.loader.Attributes(f.Token)
	})
}

// Method is a method definition, a method specialized onto a generic
// instance, an instantiated generic method or a vararg call site.
type Method struct {
	Module        *Module
	Token         metadata.Token
	Name          string
	Flags         uint16
	ImplFlags     uint16
	RVA           uint32
	DeclaringType *TypeDef
	GenericParams []*GenericParam
	// Instance is the generic instance the method was specialized onto.
	Instance *Instance
	// Definition is the method this one was derived from; TypeArgs are the
	// method's own generic arguments when it is an instantiation.
	Definition  *Method
	TypeArgs    []Type
	Placeholder bool

	loader   Loader
	sig      Slot[*MethodSignature]
	params   Slot[[]*Parameter]
	body     Slot[bodyResult]
	pinvoke  Slot[*PInvoke]
	attrs    Slot[[]*Attribute]
	security Slot[[]*SecurityDeclaration]
}

type bodyResult struct {
	body *MethodBody
	err  error
}

// NewPlaceholderMethod returns an unresolved stand-in method carrying the
// signature of the reference.
func NewPlaceholderMethod(mod *Module, declaring *TypeDef, name string, sig *MethodSignature) *Method {
	m := &Method{Module: mod, DeclaringType: declaring, Name: name, Placeholder: true}
	if sig != nil && !sig.HasThis {
		m.Flags |= MethodStatic
	}
	m.sig.Complete(sig)
	return m
}

// NewCallSite returns a view of def with a vararg call-site signature.
func NewCallSite(def *Method, sig *MethodSignature) *Method {
	m := &Method{
		Module:        def.Module,
		Token:         def.Token,
		Name:          def.Name,
		Flags:         def.Flags,
		ImplFlags:     def.ImplFlags,
		RVA:           def.RVA,
		DeclaringType: def.DeclaringType,
		GenericParams: def.GenericParams,
		Instance:      def.Instance,
		Definition:    def,
	}
	m.sig.Complete(sig)
	return m
}

// SetLoader attaches the lazy loader.
func (m *Method) SetLoader(l Loader) { m.loader = l }

// Declaring returns the declaring instance or type definition.
func (m *Method) Declaring() Type {
	if m.Instance != nil {
		return m.Instance
	}
	if m.DeclaringType == nil {
		return nil
	}
	return m.DeclaringType
}

// MemberName returns the method name.
func (m *Method) MemberName() string { return m.Name }

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool { return m.Flags&MethodStatic != 0 }

// IsConstructor reports whether the method is an instance or type initializer.
func (m *Method) IsConstructor() bool {
	return m.Flags&MethodRTSpecialName != 0 && (m.Name == ".ctor" || m.Name == ".cctor")
}

// Root returns the method definition this method derives from.
func (m *Method) Root() *Method {
	for m.Definition != nil {
		m = m.Definition
	}
	return m
}

// Context returns the generic context in which the method's body and
// signature are interpreted.
func (m *Method) Context() GenericContext {
	var ctx GenericContext
	switch {
	case m.Instance != nil:
		ctx.TypeArgs = m.Instance.Args
	case m.DeclaringType != nil:
		ctx.TypeArgs = paramTypes(m.DeclaringType.ConsolidatedParams())
	}
	if m.TypeArgs != nil {
		ctx.MethodArgs = m.TypeArgs
	} else {
		ctx.MethodArgs = paramTypes(m.Root().GenericParams)
	}
	return ctx
}

func (m *Method) String() string {
	sig := m.Signature()
	var b []byte
	if sig != nil && sig.Return != nil {
		b = append(b, sig.Return.String()...)
		b = append(b, ' ')
	}
	if d := m.Declaring(); d != nil {
		b = append(b, d.String()...)
		b = append(b, "::"...)
	}
	b = append(b, m.Name...)
	if len(m.TypeArgs) > 0 {
		b = append(b, '<')
		for i, a := range m.TypeArgs {
			if i > 0 {
				b = append(b, ", "...)
			}
			b = append(b, a.String()...)
		}
		b = append(b, '>')
	}
	b = append(b, '(')
	if sig != nil {
		for i, p := range sig.Params {
			if i > 0 {
				b = append(b, ", "...)
			}
			b = append(b, p.String()...)
		}
	}
	b = append(b, ')')
	return string(b)
}

// Signature returns the method signature, substituted for specialized and
// instantiated methods.
func (m *Method) Signature() *MethodSignature {
	return m.sig.Load(func() *MethodSignature {
		if m.Definition != nil {
			return substituteSig(m.Root().Signature(), m.instanceArgs(), m.TypeArgs)
		}
		if m.loader == nil {
			return nil
		}
		return m.loader.MethodSignature(m)
	})
}

func (m *Method) instanceArgs() []Type {
	if m.Instance != nil {
		return m.Instance.Args
	}
	return nil
}

// Parameters returns the ordinary parameters in signature order.
func (m *Method) Parameters() []*Parameter {
	all := m.allParams()
	if len(all) == 0 {
		return nil
	}
	return all[1:]
}

// ReturnParameter returns the parameter describing the return value.
func (m *Method) ReturnParameter() *Parameter {
	all := m.allParams()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func (m *Method) allParams() []*Parameter {
	return m.params.Load(func() []*Parameter {
		if m.Definition != nil {
			sig := m.Signature()
			defs := m.Definition.allParams()
			out := make([]*Parameter, len(defs))
			for i, p := range defs {
				cp := *p
				cp.Method = m
				if sig != nil {
					if i == 0 {
						cp.Type = sig.Return
					} else if i-1 < len(sig.Params) {
						cp.Type = sig.Params[i-1]
					}
				}
				out[i] = &cp
			}
			return out
		}
		if m.loader == nil {
			return syntheticParams(m)
		}
		return m.loader.Parameters(m)
	})
}

func syntheticParams(m *Method) []*Parameter {
	sig := m.Signature()
	if sig == nil {
		return nil
	}
	out := []*Parameter{{Method: m, Module: m.Module, Type: sig.Return}}
	for i, t := range sig.Params {
		out = append(out, &Parameter{Method: m, Module: m.Module, Sequence: uint16(i + 1), Type: t})
	}
	return out
}

// Body returns the method body, loading it on first use. A method without
// IL returns nil and no error.
func (m *Method) Body() (*MethodBody, error) {
	r := m.body.Load(func() bodyResult {
		if m.Definition != nil {
			b, err := m.Definition.Body()
			return bodyResult{b, err}
		}
		if m.loader == nil || m.RVA == 0 {
			return bodyResult{}
		}
		b, err := m.loader.MethodBody(m)
		return bodyResult{b, err}
	})
	return r.body, r.err
}

// BodyState reports whether the body has been loaded.
func (m *Method) BodyState() LoadState {
	return m.body.State()
}

// PInvoke returns the platform invoke import data, or nil.
func (m *Method) PInvoke() *PInvoke {
	return m.pinvoke.Load(func() *PInvoke {
		if m.Definition != nil {
			return m.Definition.PInvoke()
		}
		if m.loader == nil || m.Flags&MethodPInvokeImpl == 0 {
			return nil
		}
		return m.loader.PInvoke(m)
	})
}

// Attributes returns the custom attributes of the method.
func (m *Method) Attributes() []*Attribute {
	return m.attrs.Load(func() []*Attribute {
		if m.Definition != nil {
			return m.Definition.Attributes()
		}
		if m.loader == nil {
			return nil
		}
		return m.loader.Attributes(m.Token)
	})
}

// Security returns the declarative security of the method.
func (m *Method) Security() []*SecurityDeclaration {
	return m.security.Load(func() []*SecurityDeclaration {
		if m.Definition != nil {
			return m.Definition.Security()
		}
		if m.loader == nil {
			return nil
		}
		return m.loader.Security(m.Token)
	})
}

// Parameter is a method parameter. Sequence 0 describes the return value.
type Parameter struct {
	Module   *Module
	Method   *Method
	Token    metadata.Token
	Name     string
	Sequence uint16
	Flags    uint16
	Type     Type

	loader   Loader
	constant Slot[*Value]
	attrs    Slot[[]*Attribute]
}

// SetLoader attaches the lazy loader.
func (p *Parameter) SetLoader(l Loader) { p.loader = l }

// Default returns the default value of an optional parameter, or nil.
func (p *Parameter) Default() *Value {
	return p.constant.Load(func() *Value {
		if p.loader == nil || p.Token.IsNil() || p.Flags&ParamHasDefault == 0 {
			return nil
		}
		return p.loader.Constant(p.Token)
	})
}

// Attributes returns the custom attributes of the parameter.
func (p *Parameter) Attributes() []*Attribute {
	return p.attrs.Load(func() []*Attribute {
		if p.loader == nil || p.Token.IsNil() {
			return nil
		}
		return p.loader.Attributes(p.Token)
	})
}

// Property is a property of a type definition or generic instance.
type Property struct {
	Module        *Module
	Token         metadata.Token
	Name          string
	Flags         uint16
	DeclaringType *TypeDef
	Instance      *Instance
	Definition    *Property

	loader    Loader
	sig       Slot[*MethodSignature]
	accessors Slot[[]Accessor]
	constant  Slot[*Value]
	attrs     Slot[[]*Attribute]
}

// SetLoader attaches the lazy loader.
func (p *Property) SetLoader(l Loader) { p.loader = l }

// MemberName returns the property name.
func (p *Property) MemberName() string { return p.Name }

// Declaring returns the declaring instance or type definition.
func (p *Property) Declaring() Type {
	if p.Instance != nil {
		return p.Instance
	}
	if p.DeclaringType == nil {
		return nil
	}
	return p.DeclaringType
}

func (p *Property) String() string {
	owner := ""
	if d := p.Declaring(); d != nil {
		owner = d.String() + "::"
	}
	if t := p.Type(); t != nil {
		return t.String() + " " + owner + p.Name
	}
	return owner + p.Name
}

// Signature returns the property signature.
func (p *Property) Signature() *MethodSignature {
	return p.sig.Load(func() *MethodSignature {
		if p.Definition != nil {
			return substituteSig(p.Definition.Signature(), p.Instance.Args, nil)
		}
		if p.loader == nil {
			return nil
		}
		return p.loader.PropertySignature(p)
	})
}

// Type returns the property type.
func (p *Property) Type() Type {
	if sig := p.Signature(); sig != nil {
		return sig.Return
	}
	return nil
}

// Accessors returns the getter, setter and other methods.
func (p *Property) Accessors() []Accessor {
	return p.accessors.Load(func() []Accessor {
		if p.Definition != nil {
			return specializeAccessors(p.Instance, p.Definition.Accessors())
		}
		if p.loader == nil {
			return nil
		}
		return p.loader.Semantics(p.Token)
	})
}

// Getter returns the get accessor, or nil.
func (p *Property) Getter() *Method { return accessor(p.Accessors(), SemanticsGetter) }

// Setter returns the set accessor, or nil.
func (p *Property) Setter() *Method { return accessor(p.Accessors(), SemanticsSetter) }

// Constant returns the default value of the property, or nil.
func (p *Property) Constant() *Value {
	return p.constant.Load(func() *Value {
		if p.Definition != nil {
			return p.Definition.Constant()
		}
		if p.loader == nil {
			return nil
		}
		return p.loader.Constant(p.Token)
	})
}

// Attributes returns the custom attributes of the property.
func (p *Property) Attributes() []*Attribute {
	return p.attrs.Load(func() []*Attribute {
		if p.Definition != nil {
			return p.Definition.Attributes()
		}
		if p.loader == nil {
			return nil
		}
		return p.loader.Attributes(p.Token)
	})
}

// Event is an event of a type definition or generic instance.
type Event struct {
	Module        *Module
	Token         metadata.Token
	Name          string
	Flags         uint16
	DeclaringType *TypeDef
	Instance      *Instance
	Definition    *Event

	loader    Loader
	typ       Slot[Type]
	accessors Slot[[]Accessor]
	attrs     Slot[[]*Attribute]
}

// SetLoader attaches the lazy loader.
func (e *Event) SetLoader(l Loader) { e.loader = l }

// MemberName returns the event name.
func (e *Event) MemberName() string { return e.Name }

// Declaring returns the declaring instance or type definition.
func (e *Event) Declaring() Type {
	if e.Instance != nil {
		return e.Instance
	}
	if e.DeclaringType == nil {
		return nil
	}
	return e.DeclaringType
}

func (e *Event) String() string {
	owner := ""
	if d := e.Declaring(); d != nil {
		owner = d.String() + "::"
	}
	return "event " + owner + e.Name
}

// Type returns the delegate type of the event.
func (e *Event) Type() Type {
	return e.typ.Load(func() Type {
		if e.Definition != nil {
			return e.Instance.Substitute(e.Definition.Type())
		}
		if e.loader == nil {
			return nil
		}
		return e.loader.EventType(e)
	})
}

// Accessors returns the add, remove, raise and other methods.
func (e *Event) Accessors() []Accessor {
	return e.accessors.Load(func() []Accessor {
		if e.Definition != nil {
			return specializeAccessors(e.Instance, e.Definition.Accessors())
		}
		if e.loader == nil {
			return nil
		}
		return e.loader.Semantics(e.Token)
	})
}

// Adder returns the add accessor, or nil.
func (e *Event) Adder() *Method { return accessor(e.Accessors(), SemanticsAddOn) }

// Remover returns the remove accessor, or nil.
func (e *Event) Remover() *Method { return accessor(e.Accessors(), SemanticsRemoveOn) }

// Raiser returns the raise accessor, or nil.
func (e *Event) Raiser() *Method { return accessor(e.Accessors(), SemanticsFire) }

// Attributes returns the custom attributes of the event.
func (e *Event) Attributes() []*Attribute {
	return e.attrs.Load(func() []*Attribute {
		if e.Definition != nil {
			return e.Definition.Attributes()
		}
		if e.loader == nil {
			return nil
		}
		return e.loader.Attributes(e.Token)
	})
}

func accessor(list []Accessor, semantics uint16) *Method {
	for _, a := range list {
		if a.Semantics&semantics != 0 {
			return a.Method
		}
	}
	return nil
}

func specializeAccessors(inst *Instance, list []Accessor) []Accessor {
	out := make([]Accessor, len(list))
	for i, a := range list {
		out[i] = Accessor{Semantics: a.Semantics, Method: inst.Method(a.Method)}
	}
	return out
}

func paramTypes(params []*GenericParam) []Type {
	if len(params) == 0 {
		return nil
	}
	out := make([]Type, len(params))
	for i, p := range params {
		out[i] = p
	}
	return out
}
