package typesys

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// GenericContext carries the arguments that VAR and MVAR indexes refer to
// while a signature is decoded. For a definition the arguments are its own
// generic parameters; for an instance they are the bound types.
type GenericContext struct {
	TypeArgs   []Type
	MethodArgs []Type
}

// TypeContext returns the context of a type definition.
func TypeContext(t *TypeDef) GenericContext {
	if t == nil {
		return GenericContext{}
	}
	return GenericContext{TypeArgs: paramTypes(t.ConsolidatedParams())}
}

// TypeArg returns the type argument at index.
func (c GenericContext) TypeArg(index uint32) (Type, bool) {
	if int(index) < len(c.TypeArgs) {
		return c.TypeArgs[index], true
	}
	return nil, false
}

// MethodArg returns the method argument at index.
func (c GenericContext) MethodArg(index uint32) (Type, bool) {
	if int(index) < len(c.MethodArgs) {
		return c.MethodArgs[index], true
	}
	return nil, false
}

// Instance is a generic type definition bound to argument types. Instances
// are unique per (template, arguments) within the template's module.
type Instance struct {
	Template *TypeDef
	Args     []Type

	members    map[Entity]Entity
	base       Slot[Type]
	interfaces Slot[[]Type]
	fields     Slot[[]*Field]
	methods    Slot[[]*Method]
	properties Slot[[]*Property]
	events     Slot[[]*Event]
}

func (i *Instance) String() string {
	var b strings.Builder
	b.WriteString(i.Template.FullName())
	b.WriteByte('<')
	for n, a := range i.Args {
		if n > 0 {
			b.WriteString(", ")
		}
		if a == nil {
			b.WriteString("?")
			continue
		}
		b.WriteString(a.String())
	}
	b.WriteByte('>')
	return b.String()
}

// Instantiate returns the cached instance of template bound to args. The
// same template and structurally equal arguments yield the same instance.
func (m *Module) Instantiate(template *TypeDef, args []Type) *Instance {
	if template.Module != nil && template.Module != m {
		return template.Module.Instantiate(template, args)
	}
	key := instanceHash(TypeKey(template), args)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances[key] {
		if inst.Template == template && equalLists(inst.Args, args) {
			return inst
		}
	}
	inst := &Instance{Template: template, Args: append([]Type(nil), args...)}
	if m.instances == nil {
		m.instances = make(map[uint64][]*Instance)
	}
	m.instances[key] = append(m.instances[key], inst)
	return inst
}

// InstantiateMethod returns the cached instantiation of a generic method
// with the given method type arguments.
func (m *Module) InstantiateMethod(method *Method, args []Type) *Method {
	if method.Module != nil && method.Module != m {
		return method.Module.InstantiateMethod(method, args)
	}
	key := instanceHash(methodKey(method), args)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.methods[key] {
		if inst.Definition == method && equalLists(inst.TypeArgs, args) {
			return inst
		}
	}
	inst := &Method{
		Module:        method.Module,
		Token:         method.Token,
		Name:          method.Name,
		Flags:         method.Flags,
		ImplFlags:     method.ImplFlags,
		RVA:           method.RVA,
		DeclaringType: method.DeclaringType,
		GenericParams: method.GenericParams,
		Instance:      method.Instance,
		Definition:    method,
		TypeArgs:      append([]Type(nil), args...),
	}
	if m.methods == nil {
		m.methods = make(map[uint64][]*Method)
	}
	m.methods[key] = append(m.methods[key], inst)
	return inst
}

func instanceHash(prefix string, args []Type) uint64 {
	var b strings.Builder
	b.WriteString(prefix)
	for _, a := range args {
		b.WriteByte('|')
		b.WriteString(TypeKey(a))
	}
	return xxh3.HashString(b.String())
}

func methodKey(m *Method) string {
	return fmt.Sprintf("m%p", m)
}

// Substitute replaces the template's generic parameters in t with the
// instance arguments.
func (i *Instance) Substitute(t Type) Type {
	return substitute(t, i.Args, nil)
}

// Substitute replaces VAR and MVAR parameters in t with the arguments of
// ctx. Parameters without a matching argument are kept.
func Substitute(t Type, ctx GenericContext) Type {
	return substitute(t, ctx.TypeArgs, ctx.MethodArgs)
}

// SubstituteSignature is Substitute over every type of sig. The result is
// sig itself when nothing changes.
func SubstituteSignature(sig *MethodSignature, ctx GenericContext) *MethodSignature {
	return substituteSig(sig, ctx.TypeArgs, ctx.MethodArgs)
}

func substitute(t Type, typeArgs, methodArgs []Type) Type {
	if t == nil || (typeArgs == nil && methodArgs == nil) {
		return t
	}
	switch x := t.(type) {
	case *GenericParam:
		args := typeArgs
		if x.IsMethodParam() {
			args = methodArgs
		}
		if int(x.Number) < len(args) && args[x.Number] != nil {
			return args[x.Number]
		}
		return t
	case *Pointer:
		if e := substitute(x.Elem, typeArgs, methodArgs); e != x.Elem {
			return &Pointer{Elem: e}
		}
	case *ByRef:
		if e := substitute(x.Elem, typeArgs, methodArgs); e != x.Elem {
			return &ByRef{Elem: e}
		}
	case *Pinned:
		if e := substitute(x.Elem, typeArgs, methodArgs); e != x.Elem {
			return &Pinned{Elem: e}
		}
	case *Array:
		if e := substitute(x.Elem, typeArgs, methodArgs); e != x.Elem {
			cp := *x
			cp.Elem = e
			return &cp
		}
	case *Modified:
		e := substitute(x.Elem, typeArgs, methodArgs)
		mod := substitute(x.Modifier, typeArgs, methodArgs)
		if e != x.Elem || mod != x.Modifier {
			return &Modified{Modifier: mod, Required: x.Required, Elem: e}
		}
	case *FunctionPointer:
		if sig := substituteSig(x.Signature, typeArgs, methodArgs); sig != x.Signature {
			return &FunctionPointer{Signature: sig}
		}
	case *Instance:
		changed := false
		args := make([]Type, len(x.Args))
		for n, a := range x.Args {
			args[n] = substitute(a, typeArgs, methodArgs)
			changed = changed || args[n] != a
		}
		if changed {
			if x.Template.Module != nil {
				return x.Template.Module.Instantiate(x.Template, args)
			}
			return &Instance{Template: x.Template, Args: args}
		}
	}
	return t
}

func substituteSig(sig *MethodSignature, typeArgs, methodArgs []Type) *MethodSignature {
	if sig == nil || (typeArgs == nil && methodArgs == nil) {
		return sig
	}
	out := *sig
	changed := false
	out.Return = substitute(sig.Return, typeArgs, methodArgs)
	changed = out.Return != sig.Return
	out.Params = substituteList(sig.Params, typeArgs, methodArgs, &changed)
	out.VarArgs = substituteList(sig.VarArgs, typeArgs, methodArgs, &changed)
	if !changed {
		return sig
	}
	return &out
}

func substituteList(list, typeArgs, methodArgs []Type, changed *bool) []Type {
	if list == nil {
		return nil
	}
	out := make([]Type, len(list))
	for i, t := range list {
		out[i] = substitute(t, typeArgs, methodArgs)
		if out[i] != t {
			*changed = true
		}
	}
	return out
}

// specialize returns the cached view of a template member on the instance.
func (i *Instance) specialize(def Entity, build func() Entity) Entity {
	if i.members == nil {
		i.members = make(map[Entity]Entity)
	}
	if e, ok := i.members[def]; ok {
		return e
	}
	e := build()
	i.members[def] = e
	return e
}

// Method returns m specialized onto the instance. Methods not declared by
// the template are returned unchanged.
func (i *Instance) Method(m *Method) *Method {
	if m == nil || m.DeclaringType != i.Template || m.Instance != nil {
		return m
	}
	return i.specialize(m, func() Entity {
		return &Method{
			Module:        m.Module,
			Token:         m.Token,
			Name:          m.Name,
			Flags:         m.Flags,
			ImplFlags:     m.ImplFlags,
			RVA:           m.RVA,
			DeclaringType: m.DeclaringType,
			GenericParams: m.GenericParams,
			Instance:      i,
			Definition:    m,
		}
	}).(*Method)
}

// Field returns f specialized onto the instance.
func (i *Instance) Field(f *Field) *Field {
	if f == nil || f.DeclaringType != i.Template || f.Instance != nil {
		return f
	}
	return i.specialize(f, func() Entity {
		return &Field{
			Module:        f.Module,
			Token:         f.Token,
			Name:          f.Name,
			Flags:         f.Flags,
			DeclaringType: f.DeclaringType,
			Instance:      i,
			Definition:    f,
		}
	}).(*Field)
}

// Property returns p specialized onto the instance.
func (i *Instance) Property(p *Property) *Property {
	if p == nil || p.DeclaringType != i.Template || p.Instance != nil {
		return p
	}
	return i.specialize(p, func() Entity {
		return &Property{
			Module:        p.Module,
			Token:         p.Token,
			Name:          p.Name,
			Flags:         p.Flags,
			DeclaringType: p.DeclaringType,
			Instance:      i,
			Definition:    p,
		}
	}).(*Property)
}

// Event returns e specialized onto the instance.
func (i *Instance) Event(e *Event) *Event {
	if e == nil || e.DeclaringType != i.Template || e.Instance != nil {
		return e
	}
	return i.specialize(e, func() Entity {
		return &Event{
			Module:        e.Module,
			Token:         e.Token,
			Name:          e.Name,
			Flags:         e.Flags,
			DeclaringType: e.DeclaringType,
			Instance:      i,
			Definition:    e,
		}
	}).(*Event)
}

// BaseType returns the template's base type with the arguments substituted.
func (i *Instance) BaseType() Type {
	return i.base.Load(func() Type { return i.Substitute(i.Template.BaseType()) })
}

// Interfaces returns the template's interfaces with the arguments substituted.
func (i *Instance) Interfaces() []Type {
	return i.interfaces.Load(func() []Type {
		var changed bool
		return substituteList(i.Template.Interfaces(), i.Args, nil, &changed)
	})
}

// Fields returns the template's fields specialized onto the instance.
func (i *Instance) Fields() []*Field {
	return i.fields.Load(func() []*Field {
		defs := i.Template.Fields()
		out := make([]*Field, len(defs))
		for n, f := range defs {
			out[n] = i.Field(f)
		}
		return out
	})
}

// Methods returns the template's methods specialized onto the instance.
func (i *Instance) Methods() []*Method {
	return i.methods.Load(func() []*Method {
		defs := i.Template.Methods()
		out := make([]*Method, len(defs))
		for n, m := range defs {
			out[n] = i.Method(m)
		}
		return out
	})
}

// Properties returns the template's properties specialized onto the instance.
func (i *Instance) Properties() []*Property {
	return i.properties.Load(func() []*Property {
		defs := i.Template.Properties()
		out := make([]*Property, len(defs))
		for n, p := range defs {
			out[n] = i.Property(p)
		}
		return out
	})
}

// Events returns the template's events specialized onto the instance.
func (i *Instance) Events() []*Event {
	return i.events.Load(func() []*Event {
		defs := i.Template.Events()
		out := make([]*Event, len(defs))
		for n, e := range defs {
			out[n] = i.Event(e)
		}
		return out
	})
}

// Context returns the generic context of the instance.
func (i *Instance) Context() GenericContext {
	return GenericContext{TypeArgs: i.Args}
}
