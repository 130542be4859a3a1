package reader

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// standAlone is a decoded StandAloneSig row: a call-site signature or a
// local variable list.
type standAlone struct {
	method *typesys.MethodSignature
	locals []typesys.Type
}

func ownerError(tok metadata.Token) error {
	return errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
		Token(uint32(tok)).
		Detail("%s has no declaring type", tok).
		Build()
}

// FieldFromDef returns the field of a Field row.
func (r *Reader) FieldFromDef(rid uint32) (*typesys.Field, error) {
	if !rowIndex(rid, len(r.fields)) {
		return nil, badRow(metadata.TableField, rid, len(r.fields))
	}
	slot := &r.fields[rid-1]
	if f, state := slot.Get(); state == typesys.Loaded {
		return f, nil
	}
	tok := metadata.NewToken(metadata.TableField, rid)
	row, err := r.store.Field(rid)
	if err != nil {
		return nil, err
	}
	owner := r.store.FieldOwner(rid)
	if owner == 0 {
		return nil, ownerError(tok)
	}
	decl, err := r.TypeFromDef(owner)
	if err != nil {
		return nil, err
	}
	f := &typesys.Field{
		Module:        r.mod,
		Token:         tok,
		Name:          row.Name,
		Flags:         row.Flags,
		DeclaringType: decl,
	}
	f.SetLoader(r)
	slot.Complete(f)
	return f, nil
}

// MethodFromDef returns the method of a MethodDef row. The method is
// published before its generic parameters are read.
func (r *Reader) MethodFromDef(rid uint32) (*typesys.Method, error) {
	if !rowIndex(rid, len(r.methods)) {
		return nil, badRow(metadata.TableMethodDef, rid, len(r.methods))
	}
	slot := &r.methods[rid-1]
	if m, state := slot.Get(); state != typesys.Unloaded {
		return m, nil
	}
	tok := metadata.NewToken(metadata.TableMethodDef, rid)
	row, err := r.store.MethodDef(rid)
	if err != nil {
		return nil, err
	}
	owner := r.store.MethodOwner(rid)
	if owner == 0 {
		return nil, ownerError(tok)
	}
	decl, err := r.TypeFromDef(owner)
	if err != nil {
		return nil, err
	}

	slot.Begin()
	m := &typesys.Method{
		Module:        r.mod,
		Token:         tok,
		Name:          row.Name,
		Flags:         row.Flags,
		ImplFlags:     row.ImplFlags,
		RVA:           row.RVA,
		DeclaringType: decl,
	}
	m.SetLoader(r)
	slot.Publish(m)

	params, err := r.genericParamsOf(tok, m)
	if err != nil {
		slot.Abandon()
		return nil, err
	}
	m.GenericParams = params
	slot.Complete(m)
	return m, nil
}

// PropertyFromDef returns the property of a Property row.
func (r *Reader) PropertyFromDef(rid uint32) (*typesys.Property, error) {
	if !rowIndex(rid, len(r.properties)) {
		return nil, badRow(metadata.TableProperty, rid, len(r.properties))
	}
	slot := &r.properties[rid-1]
	if p, state := slot.Get(); state == typesys.Loaded {
		return p, nil
	}
	tok := metadata.NewToken(metadata.TableProperty, rid)
	row, err := r.store.Property(rid)
	if err != nil {
		return nil, err
	}
	owner := r.store.PropertyOwner(rid)
	if owner == 0 {
		return nil, ownerError(tok)
	}
	decl, err := r.TypeFromDef(owner)
	if err != nil {
		return nil, err
	}
	p := &typesys.Property{
		Module:        r.mod,
		Token:         tok,
		Name:          row.Name,
		Flags:         row.Flags,
		DeclaringType: decl,
	}
	p.SetLoader(r)
	slot.Complete(p)
	return p, nil
}

// EventFromDef returns the event of an Event row.
func (r *Reader) EventFromDef(rid uint32) (*typesys.Event, error) {
	if !rowIndex(rid, len(r.events)) {
		return nil, badRow(metadata.TableEvent, rid, len(r.events))
	}
	slot := &r.events[rid-1]
	if e, state := slot.Get(); state == typesys.Loaded {
		return e, nil
	}
	tok := metadata.NewToken(metadata.TableEvent, rid)
	row, err := r.store.Event(rid)
	if err != nil {
		return nil, err
	}
	owner := r.store.EventOwner(rid)
	if owner == 0 {
		return nil, ownerError(tok)
	}
	decl, err := r.TypeFromDef(owner)
	if err != nil {
		return nil, err
	}
	e := &typesys.Event{
		Module:        r.mod,
		Token:         tok,
		Name:          row.Name,
		Flags:         row.Flags,
		DeclaringType: decl,
	}
	e.SetLoader(r)
	slot.Complete(e)
	return e, nil
}

// MemberFromToken resolves a type or member token in ctx. Rows that can
// be shared between generic definitions are bound to ctx on every call.
func (r *Reader) MemberFromToken(tok metadata.Token, ctx typesys.GenericContext) (typesys.Entity, error) {
	rid := tok.RID()
	switch tok.Table() {
	case metadata.TableTypeDef, metadata.TableTypeRef, metadata.TableTypeSpec:
		return r.TypeFromToken(tok, ctx)
	case metadata.TableField:
		return r.FieldFromDef(rid)
	case metadata.TableMethodDef:
		return r.MethodFromDef(rid)
	case metadata.TableProperty:
		return r.PropertyFromDef(rid)
	case metadata.TableEvent:
		return r.EventFromDef(rid)
	case metadata.TableMemberRef:
		e, err := r.MemberRefFromRow(rid)
		if err != nil {
			return nil, err
		}
		return bindMember(e, ctx), nil
	case metadata.TableMethodSpec:
		m, err := r.MethodSpecFromRow(rid)
		if err != nil {
			return nil, err
		}
		return bindMember(m, ctx), nil
	}
	return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
		Token(uint32(tok)).
		Detail("%s does not name a member", tok).
		Build()
}

// ResolveMember implements cil.Resolver.
func (r *Reader) ResolveMember(tok metadata.Token, ctx typesys.GenericContext) (typesys.Entity, error) {
	return r.MemberFromToken(tok, ctx)
}

// ResolveString implements cil.Resolver.
func (r *Reader) ResolveString(tok metadata.Token) (string, error) {
	if tok.Table() != metadata.TableUserString {
		return "", errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
			Token(uint32(tok)).
			Detail("%s is not a string token", tok).
			Build()
	}
	return r.store.GetUserString(tok.RID())
}

// ResolveSignature implements cil.Resolver.
func (r *Reader) ResolveSignature(tok metadata.Token, ctx typesys.GenericContext) (*typesys.MethodSignature, error) {
	if tok.Table() != metadata.TableStandAloneSig {
		return nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
			Token(uint32(tok)).
			Detail("%s is not a signature token", tok).
			Build()
	}
	sig, _, err := r.StandAloneSignature(tok.RID())
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
			Token(uint32(tok)).
			Detail("%s is a local signature", tok).
			Build()
	}
	return typesys.SubstituteSignature(sig, ctx), nil
}

// StandAloneSignature returns the open form of a StandAloneSig row: a
// call-site signature or a local variable list, the other being nil.
func (r *Reader) StandAloneSignature(rid uint32) (*typesys.MethodSignature, []typesys.Type, error) {
	if !rowIndex(rid, len(r.signatures)) {
		return nil, nil, badRow(metadata.TableStandAloneSig, rid, len(r.signatures))
	}
	tok := metadata.NewToken(metadata.TableStandAloneSig, rid)
	slot := &r.signatures[rid-1]
	switch s, state := slot.Get(); state {
	case typesys.Loaded:
		return s.method, s.locals, nil
	case typesys.Loading:
		return nil, nil, cycleError(tok)
	}
	index, err := r.store.StandAloneSig(rid)
	if err != nil {
		return nil, nil, err
	}
	c, err := r.blob(index, "stand-alone")
	if err != nil {
		return nil, nil, err
	}
	first, _ := c.PeekByte()

	slot.Begin()
	var s standAlone
	sc := openContext(tok)
	if first == metadata.SigLocal {
		s.locals, err = r.decodeLocalSig(c, sc)
	} else {
		s.method, err = r.decodeMethodSig(c, sc)
	}
	if err != nil {
		slot.Abandon()
		return nil, nil, err
	}
	slot.Complete(s)
	return s.method, s.locals, nil
}

// MemberRefFromRow returns the open form of a MemberRef row.
func (r *Reader) MemberRefFromRow(rid uint32) (typesys.Entity, error) {
	if !rowIndex(rid, len(r.memberRefs)) {
		return nil, badRow(metadata.TableMemberRef, rid, len(r.memberRefs))
	}
	tok := metadata.NewToken(metadata.TableMemberRef, rid)
	slot := &r.memberRefs[rid-1]
	switch e, state := slot.Get(); state {
	case typesys.Loaded:
		return e, nil
	case typesys.Loading:
		return nil, cycleError(tok)
	}
	row, err := r.store.MemberRef(rid)
	if err != nil {
		return nil, err
	}
	slot.Begin()
	e, err := r.resolveMemberRef(tok, row)
	if err != nil {
		slot.Abandon()
		return nil, err
	}
	slot.Complete(e)
	return e, nil
}

// memberRefSig is the decoded signature of a MemberRef: a field type or a
// method signature.
type memberRefSig struct {
	field  typesys.Type
	method *typesys.MethodSignature
}

func (s memberRefSig) isField() bool { return s.method == nil }

func (r *Reader) resolveMemberRef(tok metadata.Token, row metadata.MemberRefRow) (typesys.Entity, error) {
	c, err := r.blob(row.Signature, "member reference")
	if err != nil {
		return nil, err
	}
	sc := openContext(tok)
	var sig memberRefSig
	first, _ := c.PeekByte()
	if first&metadata.SigKindMask == metadata.SigField {
		sig.field, err = r.decodeFieldSig(c, sc)
	} else {
		sig.method, err = r.decodeMethodSig(c, sc)
	}
	if err != nil {
		return nil, err
	}

	parent := row.Class
	switch parent.Table() {
	case metadata.TableTypeDef, metadata.TableTypeRef, metadata.TableTypeSpec:
		t, err := r.typeFromToken(parent, sc)
		if err != nil {
			return nil, err
		}
		return r.matchMember(tok, t, row.Name, sig), nil

	case metadata.TableModuleRef:
		ref, err := r.moduleRef(parent.RID())
		if err != nil {
			return nil, err
		}
		global := ref.Resolve().FindType("", "<Module>")
		if global == nil {
			r.record(errors.Unresolved(uint32(tok), "global member", ref.Name+"::"+row.Name))
			return r.placeholderMember(nil, nil, row.Name, sig), nil
		}
		return r.matchMember(tok, global, row.Name, sig), nil

	case metadata.TableMethodDef:
		if sig.isField() {
			return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
				Token(uint32(tok)).
				Detail("field reference on a method").
				Build()
		}
		def, err := r.MethodFromDef(parent.RID())
		if err != nil {
			return nil, err
		}
		return typesys.NewCallSite(def, sig.method), nil
	}
	return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
		Token(uint32(tok)).
		Detail("invalid member reference parent %s", parent).
		Build()
}

// matchMember finds the member named name with a matching signature on
// parent, then its base chain, then its interfaces. The first match wins.
// A member of a generic instance comes back specialized onto it.
func (r *Reader) matchMember(tok metadata.Token, parent typesys.Type, name string, sig memberRefSig) typesys.Entity {
	def := typeDefOf(parent)
	inst, _ := parent.(*typesys.Instance)
	if def == nil {
		// Array and pointer parents carry runtime-provided methods.
		return r.placeholderMember(nil, nil, name, sig)
	}
	if def.Placeholder {
		return r.placeholderMember(def, inst, name, sig)
	}

	var want *typesys.MethodSignature
	if !sig.isField() {
		cp := *sig.method
		cp.VarArgs = nil
		want = &cp
	}

	seen := make(map[typesys.Type]bool)
	var interfaces []typesys.Type
	for cur := parent; cur != nil && !seen[cur]; cur = baseOf(cur) {
		seen[cur] = true
		if e := r.memberOf(cur, name, sig, want); e != nil {
			return e
		}
		interfaces = append(interfaces, interfacesOf(cur)...)
	}
	for len(interfaces) > 0 {
		cur := interfaces[0]
		interfaces = interfaces[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if e := r.memberOf(cur, name, sig, want); e != nil {
			return e
		}
		interfaces = append(interfaces, interfacesOf(cur)...)
	}

	r.record(errors.SignatureMismatch(uint32(tok), name, parent.String()))
	return r.placeholderMember(def, inst, name, sig)
}

// memberOf looks for the member on one type of the search.
func (r *Reader) memberOf(t typesys.Type, name string, sig memberRefSig, want *typesys.MethodSignature) typesys.Entity {
	def := typeDefOf(t)
	if def == nil || def.Placeholder {
		return nil
	}
	inst, _ := t.(*typesys.Instance)
	if sig.isField() {
		for _, f := range def.Fields() {
			if f.Name == name && typesys.SameShape(f.Type(), sig.field) {
				if inst != nil {
					return inst.Field(f)
				}
				return f
			}
		}
		return nil
	}
	for _, m := range def.Methods() {
		if m.Name != name || !typesys.SameSignature(m.Signature(), want) {
			continue
		}
		if inst != nil {
			m = inst.Method(m)
		}
		if sig.method.VarArgs != nil {
			return typesys.NewCallSite(m, sig.method)
		}
		return m
	}
	return nil
}

func (r *Reader) placeholderMember(decl *typesys.TypeDef, inst *typesys.Instance, name string, sig memberRefSig) typesys.Entity {
	if sig.isField() {
		f := typesys.NewPlaceholderField(r.mod, decl, name, sig.field)
		f.Instance = inst
		return f
	}
	m := typesys.NewPlaceholderMethod(r.mod, decl, name, sig.method)
	m.Instance = inst
	return m
}

func baseOf(t typesys.Type) typesys.Type {
	switch x := t.(type) {
	case *typesys.TypeDef:
		return x.BaseType()
	case *typesys.Instance:
		return x.BaseType()
	}
	return nil
}

func interfacesOf(t typesys.Type) []typesys.Type {
	switch x := t.(type) {
	case *typesys.TypeDef:
		return x.Interfaces()
	case *typesys.Instance:
		return x.Interfaces()
	}
	return nil
}

// MethodSpecFromRow returns the open form of a MethodSpec row: the
// generic method instantiated with arguments that may still refer to the
// caller's generic parameters.
func (r *Reader) MethodSpecFromRow(rid uint32) (*typesys.Method, error) {
	if !rowIndex(rid, len(r.methodSpecs)) {
		return nil, badRow(metadata.TableMethodSpec, rid, len(r.methodSpecs))
	}
	tok := metadata.NewToken(metadata.TableMethodSpec, rid)
	slot := &r.methodSpecs[rid-1]
	switch m, state := slot.Get(); state {
	case typesys.Loaded:
		return m, nil
	case typesys.Loading:
		return nil, cycleError(tok)
	}
	row, err := r.store.MethodSpec(rid)
	if err != nil {
		return nil, err
	}
	slot.Begin()
	m, err := r.resolveMethodSpec(tok, row)
	if err != nil {
		slot.Abandon()
		return nil, err
	}
	slot.Complete(m)
	return m, nil
}

func (r *Reader) resolveMethodSpec(tok metadata.Token, row metadata.MethodSpecRow) (*typesys.Method, error) {
	var method *typesys.Method
	switch row.Method.Table() {
	case metadata.TableMethodDef:
		m, err := r.MethodFromDef(row.Method.RID())
		if err != nil {
			return nil, err
		}
		method = m
	case metadata.TableMemberRef:
		e, err := r.MemberRefFromRow(row.Method.RID())
		if err != nil {
			return nil, err
		}
		m, ok := e.(*typesys.Method)
		if !ok {
			return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
				Token(uint32(tok)).
				Detail("method instantiation of a field").
				Build()
		}
		method = m
	default:
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
			Token(uint32(tok)).
			Detail("invalid method instantiation target %s", row.Method).
			Build()
	}
	c, err := r.blob(row.Instantiation, "method instantiation")
	if err != nil {
		return nil, err
	}
	args, err := r.decodeMethodSpec(c, openContext(tok))
	if err != nil {
		return nil, err
	}
	return r.mod.InstantiateMethod(method, args), nil
}

// bindMember binds the positional generic parameters of an open member to
// ctx. Members without open parameters come back unchanged.
func bindMember(e typesys.Entity, ctx typesys.GenericContext) typesys.Entity {
	if ctx.TypeArgs == nil && ctx.MethodArgs == nil {
		return e
	}
	switch x := e.(type) {
	case typesys.Type:
		return typesys.Substitute(x, ctx)
	case *typesys.Field:
		if x.Instance != nil && x.Definition != nil {
			if inst, ok := typesys.Substitute(x.Instance, ctx).(*typesys.Instance); ok && inst != x.Instance {
				return inst.Field(x.Definition)
			}
		}
		return x
	case *typesys.Method:
		return bindMethod(x, ctx)
	case *typesys.MethodSignature:
		return typesys.SubstituteSignature(x, ctx)
	}
	return e
}

func bindMethod(m *typesys.Method, ctx typesys.GenericContext) *typesys.Method {
	switch {
	case m.Definition == nil:
		return m

	case m.TypeArgs != nil:
		base := bindMethod(m.Definition, ctx)
		args := make([]typesys.Type, len(m.TypeArgs))
		changed := base != m.Definition
		for i, a := range m.TypeArgs {
			args[i] = typesys.Substitute(a, ctx)
			changed = changed || args[i] != a
		}
		if !changed {
			return m
		}
		return base.Module.InstantiateMethod(base, args)

	case m.Instance == m.Definition.Instance:
		def := bindMethod(m.Definition, ctx)
		sig := typesys.SubstituteSignature(m.Signature(), ctx)
		if def == m.Definition && sig == m.Signature() {
			return m
		}
		return typesys.NewCallSite(def, sig)

	default:
		inst, ok := typesys.Substitute(m.Instance, ctx).(*typesys.Instance)
		if !ok || inst == m.Instance {
			return m
		}
		return inst.Method(m.Definition)
	}
}
