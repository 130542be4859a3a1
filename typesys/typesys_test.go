package typesys

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clrmeta/metadata"
)

// fakeLoader serves preset graph parts.
type fakeLoader struct {
	base        map[*TypeDef]Type
	interfaces  map[*TypeDef][]Type
	fields      map[*TypeDef][]*Field
	methods     map[*TypeDef][]*Method
	properties  map[*TypeDef][]*Property
	fieldTypes  map[*Field]Type
	sigs        map[*Method]*MethodSignature
	propSigs    map[*Property]*MethodSignature
	semantics   map[metadata.Token][]Accessor
	constraints map[*GenericParam][]Type
	calls       int
}

func (l *fakeLoader) BaseType(t *TypeDef) Type {
	l.calls++
	return l.base[t]
}
func (l *fakeLoader) Interfaces(t *TypeDef) []Type { return l.interfaces[t] }
func (l *fakeLoader) Fields(t *TypeDef) []*Field { return l.fields[t] }
func (l *fakeLoader) Methods(t *TypeDef) []*Method { return l.methods[t] }
func (l *fakeLoader) Properties(t *TypeDef) []*Property { return l.properties[t] }
func (l *fakeLoader) Events(*TypeDef) []*Event { return nil }
func (l *fakeLoader) NestedTypes(*TypeDef) []*TypeDef { return nil }
func (l *fakeLoader) Layout(*TypeDef) Layout { return Layout{} }
func (l *fakeLoader) MethodImpls(*TypeDef) []MethodImpl { return nil }
func (l *fakeLoader) GenericConstraints(p *GenericParam) []Type {
	return l.constraints[p]
}
func (l *fakeLoader) Attributes(metadata.Token) []*Attribute { return nil }
func (l *fakeLoader) Security(metadata.Token) []*SecurityDeclaration { return nil }
func (l *fakeLoader) Constant(metadata.Token) *Value { return nil }
func (l *fakeLoader) Semantics(tok metadata.Token) []Accessor { return l.semantics[tok] }
func (l *fakeLoader) FieldType(f *Field) Type { return l.fieldTypes[f] }
func (l *fakeLoader) FieldLayout(*Field) FieldLayout { return FieldLayout{} }
func (l *fakeLoader) MethodSignature(m *Method) *MethodSignature { return l.sigs[m] }
func (l *fakeLoader) Parameters(m *Method) []*Parameter { return syntheticParams(m) }
func (l *fakeLoader) MethodBody(*Method) (*MethodBody, error) { return nil, nil }
func (l *fakeLoader) PInvoke(*Method) *PInvoke { return nil }
func (l *fakeLoader) PropertySignature(p *Property) *MethodSignature { return l.propSigs[p] }
func (l *fakeLoader) EventType(*Event) Type { return nil }
func (l *fakeLoader) ResolveAssembly(r *AssemblyReference) *Module { return nil }
func (l *fakeLoader) ResolveModule(r *ModuleReference) *Module { return nil }

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		base:        map[*TypeDef]Type{},
		interfaces:  map[*TypeDef][]Type{},
		fields:      map[*TypeDef][]*Field{},
		methods:     map[*TypeDef][]*Method{},
		properties:  map[*TypeDef][]*Property{},
		fieldTypes:  map[*Field]Type{},
		sigs:        map[*Method]*MethodSignature{},
		propSigs:    map[*Property]*MethodSignature{},
		semantics:   map[metadata.Token][]Accessor{},
		constraints: map[*GenericParam][]Type{},
	}
}

var (
	i4  = PrimitiveOf(metadata.ElementI4)
	str = PrimitiveOf(metadata.ElementString)
)

func genericType(mod *Module, rid uint32, ns, name string, params ...string) *TypeDef {
	t := &TypeDef{Module: mod, Token: metadata.NewToken(metadata.TableTypeDef, rid), Namespace: ns, Name: name}
	for i, p := range params {
		t.GenericParams = append(t.GenericParams, &GenericParam{Module: mod, Name: p, Number: uint16(i), Owner: t})
	}
	return t
}

func TestSlot(t *testing.T) {
	var s Slot[int]
	assert.Equal(t, Unloaded, s.State())

	require.True(t, s.Begin())
	assert.False(t, s.Begin())
	s.Publish(7)
	v, state := s.Get()
	assert.Equal(t, 7, v)
	assert.Equal(t, Loading, state)

	s.Complete(9)
	assert.Equal(t, Loaded, s.State())
	assert.Equal(t, 9, s.Load(func() int { return 1 }))

	var r Slot[int]
	got := r.Load(func() int {
		// reentrant load sees the zero value
		return r.Load(func() int { return 5 }) + 1
	})
	assert.Equal(t, 1, got)

	var a Slot[string]
	a.Begin()
	a.Publish("x")
	a.Abandon()
	assert.Equal(t, Unloaded, a.State())
	assert.Equal(t, "", a.value)
}

func TestLoadOnce(t *testing.T) {
	l := newFakeLoader()
	mod := NewModule("m", "")
	obj := &TypeDef{Module: mod, Namespace: "System", Name: "Object"}
	typ := &TypeDef{Module: mod, Name: "T"}
	typ.SetLoader(l)
	l.base[typ] = obj

	assert.Same(t, obj, typ.BaseType())
	assert.Same(t, obj, typ.BaseType())
	assert.Equal(t, 1, l.calls)
}

func TestConsolidatedParams(t *testing.T) {
	mod := NewModule("m", "")
	outer := genericType(mod, 1, "N", "Outer`1", "T")
	inner := &TypeDef{Module: mod, Name: "Inner`1", Enclosing: outer}
	inner.GenericParams = []*GenericParam{{Module: mod, Name: "U", Number: 1, Owner: inner}}

	params := inner.ConsolidatedParams()
	require.Len(t, params, 2)
	assert.Same(t, outer.GenericParams[0], params[0])
	assert.Equal(t, "U", params[1].Name)
	assert.Equal(t, uint16(1), params[1].Number)

	deeper := &TypeDef{Module: mod, Name: "Deep`1", Enclosing: inner}
	deeper.GenericParams = []*GenericParam{{Module: mod, Name: "V", Number: 2, Owner: deeper}}
	for i, p := range deeper.ConsolidatedParams() {
		assert.Equal(t, uint16(i), p.Number, p.Name)
	}
	ctx := TypeContext(deeper)
	v, ok := ctx.TypeArg(2)
	require.True(t, ok)
	assert.Same(t, deeper.GenericParams[0], v)
	assert.Equal(t, "N.Outer`1/Inner`1", inner.FullName())
	assert.Equal(t, "N.Outer`1+Inner`1", inner.ReflectionName())
	assert.True(t, inner.IsGeneric())

	plain := &TypeDef{Module: mod, Name: "Plain"}
	assert.NotNil(t, plain.ConsolidatedParams())
	assert.False(t, plain.IsGeneric())
}

func TestInstantiateCache(t *testing.T) {
	mod := NewModule("m", "")
	list := genericType(mod, 1, "System.Collections.Generic", "List`1", "T")
	dict := genericType(mod, 2, "System.Collections.Generic", "Dictionary`2", "K", "V")

	a := mod.Instantiate(list, []Type{i4})
	b := mod.Instantiate(list, []Type{PrimitiveOf(metadata.ElementI4)})
	c := mod.Instantiate(list, []Type{str})
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	d1 := mod.Instantiate(dict, []Type{str, NewSZArray(i4)})
	d2 := mod.Instantiate(dict, []Type{str, NewSZArray(i4)})
	assert.Same(t, d1, d2)
	assert.Equal(t, "System.Collections.Generic.Dictionary`2<string, int32[]>", d1.String())

	other := NewModule("other", "")
	assert.Same(t, a, other.Instantiate(list, []Type{i4}))

	nested := mod.Instantiate(list, []Type{a})
	assert.Same(t, nested, mod.Instantiate(list, []Type{mod.Instantiate(list, []Type{i4})}))
}

func TestInstanceMembers(t *testing.T) {
	l := newFakeLoader()
	mod := NewModule("m", "")
	list := genericType(mod, 1, "", "Box`1", "T")
	list.SetLoader(l)
	tp := list.GenericParams[0]

	value := &Field{Module: mod, Name: "value", DeclaringType: list}
	value.SetLoader(l)
	l.fieldTypes[value] = tp
	l.fields[list] = []*Field{value}

	get := &Method{Module: mod, Name: "Get", DeclaringType: list}
	get.SetLoader(l)
	l.sigs[get] = &MethodSignature{HasThis: true, Return: tp}

	conv := &Method{Module: mod, Name: "Convert", DeclaringType: list}
	conv.SetLoader(l)
	mp := &GenericParam{Module: mod, Name: "U", Number: 0, Owner: conv}
	conv.GenericParams = []*GenericParam{mp}
	l.sigs[conv] = &MethodSignature{HasThis: true, GenericCount: 1, Return: mp, Params: []Type{tp}}
	l.methods[list] = []*Method{get, conv}

	prop := &Property{Module: mod, Token: metadata.NewToken(metadata.TableProperty, 1), Name: "Value", DeclaringType: list}
	prop.SetLoader(l)
	l.propSigs[prop] = &MethodSignature{HasThis: true, Return: tp}
	l.semantics[prop.Token] = []Accessor{{Semantics: SemanticsGetter, Method: get}}
	l.properties[list] = []*Property{prop}

	inst := mod.Instantiate(list, []Type{str})
	fields := inst.Fields()
	require.Len(t, fields, 1)
	assert.Same(t, str, fields[0].Type())
	assert.Same(t, value, fields[0].Definition)
	assert.Same(t, inst, fields[0].Declaring())

	methods := inst.Methods()
	require.Len(t, methods, 2)
	assert.Same(t, str, methods[0].Signature().Return)
	assert.Same(t, methods[0], inst.Method(get))

	// the method parameter survives type substitution
	assert.Same(t, mp, methods[1].Signature().Return)
	assert.Same(t, str, methods[1].Signature().Params[0])

	gm := mod.InstantiateMethod(methods[1], []Type{i4})
	assert.Same(t, gm, mod.InstantiateMethod(methods[1], []Type{i4}))
	sig := gm.Signature()
	assert.Same(t, i4, sig.Return)
	assert.Same(t, str, sig.Params[0])
	assert.Same(t, conv, gm.Root())
	assert.Equal(t, []Type{str}, gm.Context().TypeArgs)
	assert.Equal(t, []Type{i4}, gm.Context().MethodArgs)

	props := inst.Properties()
	require.Len(t, props, 1)
	assert.Same(t, str, props[0].Type())
	assert.Same(t, methods[0], props[0].Getter())
	assert.Nil(t, props[0].Setter())

	// definitions keep their own parameters
	assert.Same(t, tp, get.Signature().Return)
}

func TestSubstituteConstructed(t *testing.T) {
	mod := NewModule("m", "")
	list := genericType(mod, 1, "", "List`1", "T")
	tp := list.GenericParams[0]

	got := Substitute(&ByRef{Elem: NewSZArray(tp)}, GenericContext{TypeArgs: []Type{i4}})
	assert.Equal(t, "int32[]&", got.String())

	open := mod.Instantiate(list, []Type{tp})
	closed := Substitute(open, GenericContext{TypeArgs: []Type{str}})
	assert.Same(t, mod.Instantiate(list, []Type{str}), closed)

	unbound := Substitute(tp, GenericContext{})
	assert.Same(t, tp, unbound)
}

func TestEqualAndShape(t *testing.T) {
	mod := NewModule("m", "")
	a := &TypeDef{Module: mod, Token: metadata.NewToken(metadata.TableTypeDef, 1), Namespace: "N", Name: "A"}
	a2 := &TypeDef{Module: mod, Token: metadata.NewToken(metadata.TableTypeDef, 2), Namespace: "N", Name: "A"}
	ph := NewPlaceholderType(mod, "Lib", "N", "A")

	assert.True(t, Equal(NewSZArray(a), NewSZArray(a)))
	assert.False(t, Equal(a, a2))
	assert.False(t, Equal(a, ph))
	assert.True(t, SameShape(a, ph))
	assert.True(t, Equal(ph, NewPlaceholderType(mod, "Lib", "N", "A")))

	m1 := &Method{Name: "M"}
	m2 := &Method{Name: "M"}
	p1 := &GenericParam{Number: 0, Owner: m1}
	p2 := &GenericParam{Number: 0, Owner: m2}
	assert.False(t, Equal(p1, p2))
	assert.True(t, SameShape(p1, p2))
	assert.False(t, SameShape(p1, &GenericParam{Number: 0, Owner: a}))

	s1 := &MethodSignature{Return: PrimitiveOf(metadata.ElementVoid), Params: []Type{p1, &Pointer{Elem: i4}}}
	s2 := &MethodSignature{Return: PrimitiveOf(metadata.ElementVoid), Params: []Type{p2, &Pointer{Elem: i4}}}
	assert.True(t, SameSignature(s1, s2))
	s2.Params[1] = &Pointer{Elem: str}
	assert.False(t, SameSignature(s1, s2))

	assert.Equal(t, TypeKey(&Array{Elem: i4, Rank: 2}), TypeKey(&Array{Elem: i4, Rank: 2}))
	assert.NotEqual(t, TypeKey(&Array{Elem: i4, Rank: 2}), TypeKey(&Array{Elem: i4, Rank: 3}))
}

func TestIsClassConstrained(t *testing.T) {
	l := newFakeLoader()
	mod := NewModule("m", "")
	class := &TypeDef{Module: mod, Name: "C", Kind: KindClass}
	iface := &TypeDef{Module: mod, Name: "I", Kind: KindInterface, Flags: TypeInterface}
	valueType := &TypeDef{Module: mod, Namespace: "System", Name: "ValueType", Kind: KindClass}

	p := &GenericParam{Module: mod, Name: "T"}
	p.SetLoader(l)
	l.constraints[p] = []Type{iface}
	assert.False(t, p.IsClassConstrained())

	q := &GenericParam{Module: mod, Name: "U"}
	q.SetLoader(l)
	l.constraints[q] = []Type{iface, class}
	assert.True(t, q.IsClassConstrained())

	r := &GenericParam{Module: mod, Name: "V"}
	r.SetLoader(l)
	l.constraints[r] = []Type{valueType}
	assert.False(t, r.IsClassConstrained())
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, KindInterface, ClassifyKind(TypeInterface, "N", "I", "", ""))
	assert.Equal(t, KindEnum, ClassifyKind(0, "N", "E", "System", "Enum"))
	assert.Equal(t, KindStruct, ClassifyKind(0, "N", "S", "System", "ValueType"))
	assert.Equal(t, KindClass, ClassifyKind(0, "System", "Enum", "System", "ValueType"))
	assert.Equal(t, KindDelegate, ClassifyKind(0, "N", "D", "System", "MulticastDelegate"))
	assert.Equal(t, KindClass, ClassifyKind(0, "N", "C", "N", "Base"))
}

func TestStrongName(t *testing.T) {
	// ECMA standard public key
	key, err := hex.DecodeString("00000000000000000400000000000000")
	require.NoError(t, err)
	id := &AssemblyIdentity{Name: "mscorlib", Version: Version{4, 0, 0, 0}, PublicKey: key}
	assert.Equal(t, "b77a5c561934e089", hex.EncodeToString(id.Token()))
	assert.True(t, id.IsStrongNamed())
	assert.Equal(t, "mscorlib, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089", id.String())
	assert.Equal(t, "mscorlib,4.0.0.0,neutral,b77a5c561934e089", id.StrongName())

	plain := &AssemblyIdentity{Name: "Lib"}
	assert.False(t, plain.IsStrongNamed())
	assert.Equal(t, -1, Version{1, 2, 0, 0}.Compare(Version{1, 10, 0, 0}))
}

func TestModuleIndex(t *testing.T) {
	mod := NewModule("m", "")
	a := &TypeDef{Module: mod, Namespace: "App.Models", Name: "User"}
	b := &TypeDef{Module: mod, Namespace: "App.Models", Name: "Group"}
	n := &TypeDef{Module: mod, Name: "Entry", Enclosing: a}
	c := &TypeDef{Module: mod, Namespace: "App", Name: "Program"}
	mod.SetTypes([]*TypeDef{a, b, n, c})

	assert.Same(t, a, mod.FindType("App.Models", "User"))
	assert.Nil(t, mod.FindType("App.Models", "Entry"))
	assert.Same(t, n, mod.FindTypeByName("App.Models.User+Entry"))
	assert.Len(t, mod.TopLevelTypes(), 3)

	got := mod.TypesWithPrefix("App.Models.")
	require.Len(t, got, 3)
	assert.Same(t, b, got[0])
	assert.Same(t, a, got[1])
	assert.Same(t, n, got[2])
	assert.Nil(t, mod.TypesWithPrefix("Zzz"))
}

func TestSequencePointAt(t *testing.T) {
	body := &MethodBody{}
	_, ok := body.SequencePointAt(0)
	assert.False(t, ok)
}
