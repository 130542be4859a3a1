package typesys

import "github.com/wippyai/clrmeta/metadata"

// Loader populates lazy parts of the graph of one module. It is implemented
// by the module reader, which is the only writer of load slots. Failures are
// recorded as module diagnostics and yield zero values.
type Loader interface {
	BaseType(t *TypeDef) Type
	Interfaces(t *TypeDef) []Type
	Fields(t *TypeDef) []*Field
	Methods(t *TypeDef) []*Method
	Properties(t *TypeDef) []*Property
	Events(t *TypeDef) []*Event
	NestedTypes(t *TypeDef) []*TypeDef
	Layout(t *TypeDef) Layout
	MethodImpls(t *TypeDef) []MethodImpl

	GenericConstraints(p *GenericParam) []Type
	Attributes(owner metadata.Token) []*Attribute
	Security(owner metadata.Token) []*SecurityDeclaration
	Constant(owner metadata.Token) *Value
	Semantics(owner metadata.Token) []Accessor

	FieldType(f *Field) Type
	FieldLayout(f *Field) FieldLayout
	MethodSignature(m *Method) *MethodSignature
	Parameters(m *Method) []*Parameter
	MethodBody(m *Method) (*MethodBody, error)
	PInvoke(m *Method) *PInvoke
	PropertySignature(p *Property) *MethodSignature
	EventType(e *Event) Type

	ResolveAssembly(ref *AssemblyReference) *Module
	ResolveModule(ref *ModuleReference) *Module
}
