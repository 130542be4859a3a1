package reader

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// The typesys.Loader methods below populate lazy slots. They never fail:
// a decode error is recorded on the module and the zero value is stored.

// BaseType implements typesys.Loader.
func (r *Reader) BaseType(t *typesys.TypeDef) typesys.Type {
	row, err := r.store.TypeDef(t.Token.RID())
	if err != nil {
		r.recordErr(t.Token, err)
		return nil
	}
	if row.Extends.IsNil() {
		return nil
	}
	base, err := r.typeFromToken(row.Extends, defContext(typesys.TypeContext(t), t.Token))
	if err != nil {
		r.recordErr(t.Token, err)
		return nil
	}
	return base
}

// Interfaces implements typesys.Loader.
func (r *Reader) Interfaces(t *typesys.TypeDef) []typesys.Type {
	start, end := r.store.OwnerRange(metadata.TableInterfaceImpl, metadata.ColInterfaceImplClass, t.Token.RID())
	if start == end {
		return nil
	}
	sc := defContext(typesys.TypeContext(t), t.Token)
	out := make([]typesys.Type, 0, end-start)
	for rid := start; rid < end; rid++ {
		row, err := r.store.InterfaceImpl(rid)
		if err != nil {
			r.recordErr(t.Token, err)
			continue
		}
		iface, err := r.typeFromToken(row.Interface, sc)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableInterfaceImpl, rid), err)
			continue
		}
		out = append(out, iface)
	}
	return out
}

// Fields implements typesys.Loader.
func (r *Reader) Fields(t *typesys.TypeDef) []*typesys.Field {
	rids := r.store.Fields(t.Token.RID())
	out := make([]*typesys.Field, 0, len(rids))
	for _, rid := range rids {
		f, err := r.FieldFromDef(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableField, rid), err)
			continue
		}
		out = append(out, f)
	}
	return out
}

// Methods implements typesys.Loader.
func (r *Reader) Methods(t *typesys.TypeDef) []*typesys.Method {
	rids := r.store.Methods(t.Token.RID())
	out := make([]*typesys.Method, 0, len(rids))
	for _, rid := range rids {
		m, err := r.MethodFromDef(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableMethodDef, rid), err)
			continue
		}
		out = append(out, m)
	}
	return out
}

// Properties implements typesys.Loader.
func (r *Reader) Properties(t *typesys.TypeDef) []*typesys.Property {
	rids := r.store.Properties(t.Token.RID())
	out := make([]*typesys.Property, 0, len(rids))
	for _, rid := range rids {
		p, err := r.PropertyFromDef(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableProperty, rid), err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Events implements typesys.Loader.
func (r *Reader) Events(t *typesys.TypeDef) []*typesys.Event {
	rids := r.store.Events(t.Token.RID())
	out := make([]*typesys.Event, 0, len(rids))
	for _, rid := range rids {
		e, err := r.EventFromDef(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableEvent, rid), err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// NestedTypes implements typesys.Loader.
func (r *Reader) NestedTypes(t *typesys.TypeDef) []*typesys.TypeDef {
	rids := r.store.NestedTypes(t.Token.RID())
	out := make([]*typesys.TypeDef, 0, len(rids))
	for _, rid := range rids {
		n, err := r.TypeFromDef(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableTypeDef, rid), err)
			continue
		}
		out = append(out, n)
	}
	return out
}

// Layout implements typesys.Loader.
func (r *Reader) Layout(t *typesys.TypeDef) typesys.Layout {
	start, end := r.store.OwnerRange(metadata.TableClassLayout, metadata.ColClassLayoutParent, t.Token.RID())
	if start == end {
		return typesys.Layout{}
	}
	row, err := r.store.ClassLayout(start)
	if err != nil {
		r.recordErr(t.Token, err)
		return typesys.Layout{}
	}
	return typesys.Layout{Packing: row.PackingSize, Size: row.ClassSize, Present: true}
}

// MethodImpls implements typesys.Loader.
func (r *Reader) MethodImpls(t *typesys.TypeDef) []typesys.MethodImpl {
	start, end := r.store.OwnerRange(metadata.TableMethodImpl, metadata.ColMethodImplClass, t.Token.RID())
	if start == end {
		return nil
	}
	ctx := typesys.TypeContext(t)
	out := make([]typesys.MethodImpl, 0, end-start)
	for rid := start; rid < end; rid++ {
		tok := metadata.NewToken(metadata.TableMethodImpl, rid)
		row, err := r.store.MethodImpl(rid)
		if err != nil {
			r.recordErr(tok, err)
			continue
		}
		body, err := r.methodFromToken(row.Body, ctx)
		if err != nil {
			r.recordErr(tok, err)
			continue
		}
		decl, err := r.methodFromToken(row.Declaration, ctx)
		if err != nil {
			r.recordErr(tok, err)
			continue
		}
		out = append(out, typesys.MethodImpl{Body: body, Declaration: decl})
	}
	return out
}

// methodFromToken resolves a MethodDefOrRef token that must name a method.
func (r *Reader) methodFromToken(tok metadata.Token, ctx typesys.GenericContext) (*typesys.Method, error) {
	e, err := r.MemberFromToken(tok, ctx)
	if err != nil {
		return nil, err
	}
	m, ok := e.(*typesys.Method)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
			Token(uint32(tok)).
			Detail("%s does not name a method", tok).
			Build()
	}
	return m, nil
}

// GenericConstraints implements typesys.Loader.
func (r *Reader) GenericConstraints(p *typesys.GenericParam) []typesys.Type {
	start, end := r.store.OwnerRange(metadata.TableGenericParamConstraint,
		metadata.ColGenericParamConstraintOwner, p.Token.RID())
	if start == end {
		return nil
	}
	var ctx typesys.GenericContext
	switch owner := p.Owner.(type) {
	case *typesys.TypeDef:
		ctx = typesys.TypeContext(owner)
	case *typesys.Method:
		ctx = owner.Context()
	}
	sc := defContext(ctx, p.Token)
	out := make([]typesys.Type, 0, end-start)
	for rid := start; rid < end; rid++ {
		row, err := r.store.GenericParamConstraint(rid)
		if err != nil {
			r.recordErr(p.Token, err)
			continue
		}
		c, err := r.typeFromToken(row.Constraint, sc)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableGenericParamConstraint, rid), err)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Attributes implements typesys.Loader.
func (r *Reader) Attributes(owner metadata.Token) []*typesys.Attribute {
	start, end := r.store.OwnerRangeToken(metadata.TableCustomAttribute,
		metadata.ColCustomAttributeParent, metadata.CodedHasCustomAttribute, owner)
	if start == end {
		return nil
	}
	out := make([]*typesys.Attribute, 0, end-start)
	for rid := start; rid < end; rid++ {
		a, err := r.AttributeFromRow(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableCustomAttribute, rid), err)
			continue
		}
		out = append(out, a)
	}
	return out
}

// Security implements typesys.Loader.
func (r *Reader) Security(owner metadata.Token) []*typesys.SecurityDeclaration {
	start, end := r.store.OwnerRangeToken(metadata.TableDeclSecurity,
		metadata.ColDeclSecurityParent, metadata.CodedHasDeclSecurity, owner)
	if start == end {
		return nil
	}
	out := make([]*typesys.SecurityDeclaration, 0, end-start)
	for rid := start; rid < end; rid++ {
		d, err := r.SecurityFromRow(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableDeclSecurity, rid), err)
			continue
		}
		out = append(out, d)
	}
	return out
}

// Constant implements typesys.Loader.
func (r *Reader) Constant(owner metadata.Token) *typesys.Value {
	start, end := r.store.OwnerRangeToken(metadata.TableConstant,
		metadata.ColConstantParent, metadata.CodedHasConstant, owner)
	if start == end {
		return nil
	}
	v, err := r.ConstantFromRow(start)
	if err != nil {
		r.recordErr(owner, err)
		return nil
	}
	return v
}

// Semantics implements typesys.Loader.
func (r *Reader) Semantics(owner metadata.Token) []typesys.Accessor {
	start, end := r.store.OwnerRangeToken(metadata.TableMethodSemantics,
		metadata.ColMethodSemanticsAssociation, metadata.CodedHasSemantics, owner)
	if start == end {
		return nil
	}
	out := make([]typesys.Accessor, 0, end-start)
	for rid := start; rid < end; rid++ {
		row, err := r.store.MethodSemantics(rid)
		if err != nil {
			r.recordErr(owner, err)
			continue
		}
		m, err := r.MethodFromDef(row.Method)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableMethodSemantics, rid), err)
			continue
		}
		out = append(out, typesys.Accessor{Semantics: row.Semantics, Method: m})
	}
	return out
}

// FieldType implements typesys.Loader.
func (r *Reader) FieldType(f *typesys.Field) typesys.Type {
	row, err := r.store.Field(f.Token.RID())
	if err != nil {
		r.recordErr(f.Token, err)
		return nil
	}
	c, err := r.blob(row.Signature, "field")
	if err != nil {
		r.recordErr(f.Token, err)
		return nil
	}
	t, err := r.decodeFieldSig(c, defContext(typesys.TypeContext(f.DeclaringType), f.Token))
	if err != nil {
		r.recordErr(f.Token, err)
		return nil
	}
	return t
}

// FieldLayout implements typesys.Loader.
func (r *Reader) FieldLayout(f *typesys.Field) typesys.FieldLayout {
	var out typesys.FieldLayout
	rid := f.Token.RID()

	if start, end := r.store.OwnerRange(metadata.TableFieldLayout, metadata.ColFieldLayoutField, rid); start < end {
		off, err := r.store.FieldLayoutOffset(start)
		if err != nil {
			r.recordErr(f.Token, err)
		} else {
			out.Offset, out.HasOffset = off, true
		}
	}
	if start, end := r.store.OwnerRange(metadata.TableFieldRVA, metadata.ColFieldRVAField, rid); start < end {
		rva, err := r.store.FieldRVA(start)
		if err != nil {
			r.recordErr(f.Token, err)
		} else {
			out.RVA = rva
		}
	}
	if start, end := r.store.OwnerRangeToken(metadata.TableFieldMarshal, metadata.ColFieldMarshalParent,
		metadata.CodedHasFieldMarshal, f.Token); start < end {
		row, err := r.store.FieldMarshal(start)
		if err == nil {
			out.Marshal, err = r.store.GetBlob(row.NativeType)
		}
		if err != nil {
			r.recordErr(f.Token, err)
		}
	}
	return out
}

// MethodSignature implements typesys.Loader.
func (r *Reader) MethodSignature(m *typesys.Method) *typesys.MethodSignature {
	row, err := r.store.MethodDef(m.Token.RID())
	if err != nil {
		r.recordErr(m.Token, err)
		return nil
	}
	c, err := r.blob(row.Signature, "method")
	if err != nil {
		r.recordErr(m.Token, err)
		return nil
	}
	sig, err := r.decodeMethodSig(c, defContext(m.Context(), m.Token))
	if err != nil {
		r.recordErr(m.Token, err)
		return nil
	}
	return sig
}

// Parameters implements typesys.Loader. Every signature position gets a
// parameter; Param rows add names, flags and tokens where present.
func (r *Reader) Parameters(m *typesys.Method) []*typesys.Parameter {
	sig := m.Signature()
	if sig == nil {
		return nil
	}
	out := make([]*typesys.Parameter, len(sig.Params)+1)
	out[0] = &typesys.Parameter{Module: r.mod, Method: m, Type: sig.Return}
	for i, t := range sig.Params {
		out[i+1] = &typesys.Parameter{Module: r.mod, Method: m, Sequence: uint16(i + 1), Type: t}
	}
	for _, rid := range r.store.Params(m.Token.RID()) {
		row, err := r.store.Param(rid)
		if err != nil {
			r.recordErr(m.Token, err)
			continue
		}
		if int(row.Sequence) >= len(out) {
			continue
		}
		p := out[row.Sequence]
		p.Token = metadata.NewToken(metadata.TableParam, rid)
		p.Name = row.Name
		p.Flags = row.Flags
		p.SetLoader(r)
	}
	return out
}

// PInvoke implements typesys.Loader.
func (r *Reader) PInvoke(m *typesys.Method) *typesys.PInvoke {
	start, end := r.store.OwnerRangeToken(metadata.TableImplMap, metadata.ColImplMapMemberForwarded,
		metadata.CodedMemberForwarded, m.Token)
	if start == end {
		return nil
	}
	row, err := r.store.ImplMap(start)
	if err != nil {
		r.recordErr(m.Token, err)
		return nil
	}
	p := &typesys.PInvoke{Flags: row.Flags, ImportName: row.ImportName}
	if ref, err := r.moduleRef(row.ImportScope); err == nil {
		p.Module = ref.Name
	} else {
		r.recordErr(m.Token, err)
	}
	return p
}

// PropertySignature implements typesys.Loader.
func (r *Reader) PropertySignature(p *typesys.Property) *typesys.MethodSignature {
	row, err := r.store.Property(p.Token.RID())
	if err != nil {
		r.recordErr(p.Token, err)
		return nil
	}
	c, err := r.blob(row.Signature, "property")
	if err != nil {
		r.recordErr(p.Token, err)
		return nil
	}
	sig, err := r.decodePropertySig(c, defContext(typesys.TypeContext(p.DeclaringType), p.Token))
	if err != nil {
		r.recordErr(p.Token, err)
		return nil
	}
	return sig
}

// EventType implements typesys.Loader.
func (r *Reader) EventType(e *typesys.Event) typesys.Type {
	row, err := r.store.Event(e.Token.RID())
	if err != nil {
		r.recordErr(e.Token, err)
		return nil
	}
	if row.EventType.IsNil() {
		return nil
	}
	t, err := r.typeFromToken(row.EventType, defContext(typesys.TypeContext(e.DeclaringType), e.Token))
	if err != nil {
		r.recordErr(e.Token, err)
		return nil
	}
	return t
}
