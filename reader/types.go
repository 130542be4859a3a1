package reader

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// maxForwarders bounds the chain of ExportedType forwarders followed for
// one type reference.
const maxForwarders = 8

// coreLibraries are the assembly names that may define System types.
var coreLibraries = map[string]bool{
	"mscorlib":               true,
	"netstandard":            true,
	"System.Runtime":         true,
	"System.Private.CoreLib": true,
}

func cycleError(tok metadata.Token) error {
	return errors.New(errors.PhaseResolve, errors.KindCycle).
		Token(uint32(tok)).
		Detail("%s refers to itself", tok).
		Build()
}

// TypeFromDef returns the type definition of a TypeDef row. The object is
// published in its slot before the enclosing type and generic parameters
// are resolved, so reentrant lookups observe it.
func (r *Reader) TypeFromDef(rid uint32) (*typesys.TypeDef, error) {
	if !rowIndex(rid, len(r.typeDefs)) {
		return nil, badRow(metadata.TableTypeDef, rid, len(r.typeDefs))
	}
	slot := &r.typeDefs[rid-1]
	if t, state := slot.Get(); state != typesys.Unloaded {
		return t, nil
	}
	row, err := r.store.TypeDef(rid)
	if err != nil {
		return nil, err
	}

	slot.Begin()
	t := &typesys.TypeDef{
		Module:    r.mod,
		Token:     metadata.NewToken(metadata.TableTypeDef, rid),
		Name:      row.Name,
		Namespace: row.Namespace,
		Flags:     row.Flags,
	}
	t.SetLoader(r)
	slot.Publish(t)

	if err := r.fillTypeDef(t, rid, row); err != nil {
		slot.Abandon()
		return nil, err
	}
	slot.Complete(t)
	return t, nil
}

func (r *Reader) fillTypeDef(t *typesys.TypeDef, rid uint32, row metadata.TypeDefRow) error {
	baseNs, baseName, err := r.extendsName(row.Extends)
	if err != nil {
		return err
	}
	t.Kind = typesys.ClassifyKind(row.Flags, row.Namespace, row.Name, baseNs, baseName)

	if enc := r.store.EnclosingType(rid); enc != 0 {
		outer, err := r.TypeFromDef(enc)
		if err != nil {
			return err
		}
		for o := outer; o != nil; o = o.Enclosing {
			if o == t {
				return errors.New(errors.PhaseResolve, errors.KindCycle).
					Token(uint32(t.Token)).
					Detail("type %s encloses itself", row.Name).
					Build()
			}
		}
		t.Enclosing = outer
	}

	params, err := r.genericParamsOf(t.Token, t)
	if err != nil {
		return err
	}
	if t.Enclosing != nil {
		params = ownParams(params, len(t.Enclosing.ConsolidatedParams()))
	}
	t.GenericParams = params
	return nil
}

// ownParams drops the rows of a nested type that redeclare the enclosing
// type's parameters. params is ordered by number.
func ownParams(params []*typesys.GenericParam, inherited int) []*typesys.GenericParam {
	i := 0
	for i < len(params) && int(params[i].Number) < inherited {
		i++
	}
	if i == len(params) {
		return nil
	}
	return params[i:]
}

// extendsName reads the name of a base type without resolving it.
func (r *Reader) extendsName(tok metadata.Token) (namespace, name string, err error) {
	if tok.IsNil() {
		return "", "", nil
	}
	switch tok.Table() {
	case metadata.TableTypeDef:
		row, err := r.store.TypeDef(tok.RID())
		return row.Namespace, row.Name, err
	case metadata.TableTypeRef:
		row, err := r.store.TypeRef(tok.RID())
		return row.Namespace, row.Name, err
	}
	return "", "", nil
}

// genericParamsOf returns the generic parameters owned by a TypeDef or
// MethodDef, ordered by number.
func (r *Reader) genericParamsOf(owner metadata.Token, entity typesys.Entity) ([]*typesys.GenericParam, error) {
	start, end := r.store.OwnerRangeToken(metadata.TableGenericParam, metadata.ColGenericParamOwner,
		metadata.CodedTypeOrMethodDef, owner)
	if start == end {
		return nil, nil
	}
	params := make([]*typesys.GenericParam, 0, end-start)
	for rid := start; rid < end; rid++ {
		p, err := r.genericParam(rid, entity)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	sort.SliceStable(params, func(i, j int) bool { return params[i].Number < params[j].Number })
	return params, nil
}

func (r *Reader) genericParam(rid uint32, owner typesys.Entity) (*typesys.GenericParam, error) {
	slot := &r.genericParams[rid-1]
	if p, state := slot.Get(); state == typesys.Loaded {
		return p, nil
	}
	row, err := r.store.GenericParam(rid)
	if err != nil {
		return nil, err
	}
	p := &typesys.GenericParam{
		Module: r.mod,
		Token:  metadata.NewToken(metadata.TableGenericParam, rid),
		Name:   row.Name,
		Number: row.Number,
		Flags:  row.Flags,
		Owner:  owner,
	}
	p.SetLoader(r)
	slot.Complete(p)
	return p, nil
}

// GenericParamFromRow returns the generic parameter of a GenericParam row,
// resolving its owner first.
func (r *Reader) GenericParamFromRow(rid uint32) (*typesys.GenericParam, error) {
	if !rowIndex(rid, len(r.genericParams)) {
		return nil, badRow(metadata.TableGenericParam, rid, len(r.genericParams))
	}
	if p, state := r.genericParams[rid-1].Get(); state == typesys.Loaded {
		return p, nil
	}
	row, err := r.store.GenericParam(rid)
	if err != nil {
		return nil, err
	}
	switch row.Owner.Table() {
	case metadata.TableTypeDef:
		if _, err := r.TypeFromDef(row.Owner.RID()); err != nil {
			return nil, err
		}
	case metadata.TableMethodDef:
		if _, err := r.MethodFromDef(row.Owner.RID()); err != nil {
			return nil, err
		}
	}
	if p, state := r.genericParams[rid-1].Get(); state == typesys.Loaded {
		return p, nil
	}
	return nil, errors.InvalidMetadata(errors.PhaseResolve, "generic parameter without owner")
}

// TypeFromRef resolves a TypeRef row through its resolution scope. A
// reference that cannot be located yields a placeholder type and an
// unresolved diagnostic.
func (r *Reader) TypeFromRef(rid uint32) (*typesys.TypeDef, error) {
	if !rowIndex(rid, len(r.typeRefs)) {
		return nil, badRow(metadata.TableTypeRef, rid, len(r.typeRefs))
	}
	tok := metadata.NewToken(metadata.TableTypeRef, rid)
	slot := &r.typeRefs[rid-1]
	switch t, state := slot.Get(); state {
	case typesys.Loaded:
		return t, nil
	case typesys.Loading:
		return nil, cycleError(tok)
	}
	row, err := r.store.TypeRef(rid)
	if err != nil {
		return nil, err
	}
	slot.Begin()
	t, err := r.resolveTypeRef(tok, row)
	if err != nil {
		slot.Abandon()
		return nil, err
	}
	slot.Complete(t)
	return t, nil
}

func (r *Reader) resolveTypeRef(tok metadata.Token, row metadata.TypeRefRow) (*typesys.TypeDef, error) {
	scope := row.ResolutionScope
	if scope.IsNil() {
		if t := r.forwarded(row.Namespace, row.Name, 0); t != nil {
			return t, nil
		}
		if t := r.mod.FindType(row.Namespace, row.Name); t != nil {
			return t, nil
		}
		return r.placeholder(tok, r.mod.Name, row.Namespace, row.Name, nil), nil
	}

	switch scope.Table() {
	case metadata.TableModule:
		if t := r.mod.FindType(row.Namespace, row.Name); t != nil {
			return t, nil
		}
		return r.placeholder(tok, r.mod.Name, row.Namespace, row.Name, nil), nil

	case metadata.TableModuleRef:
		ref, err := r.moduleRef(scope.RID())
		if err != nil {
			return nil, err
		}
		if t := ref.Resolve().FindType(row.Namespace, row.Name); t != nil {
			return t, nil
		}
		return r.placeholder(tok, ref.Name, row.Namespace, row.Name, nil), nil

	case metadata.TableAssemblyRef:
		ref, err := r.assemblyRef(scope.RID())
		if err != nil {
			return nil, err
		}
		if t := r.findExported(ref.Resolve(), row.Namespace, row.Name, 0); t != nil {
			return t, nil
		}
		return r.placeholder(tok, ref.Identity.Name, row.Namespace, row.Name, nil), nil

	case metadata.TableTypeRef:
		outer, err := r.TypeFromRef(scope.RID())
		if err != nil {
			return nil, err
		}
		if !outer.Placeholder {
			if t := outer.FindNested(row.Name); t != nil {
				return t, nil
			}
		}
		return r.placeholder(tok, outer.Scope, row.Namespace, row.Name, outer), nil
	}
	return nil, errors.InvalidMetadata(errors.PhaseResolve, "invalid resolution scope "+scope.String())
}

// findExported looks up a top-level type in mod, following the type
// forwarders mod declares.
func (r *Reader) findExported(mod *typesys.Module, namespace, name string, depth int) *typesys.TypeDef {
	if mod == nil || depth > maxForwarders {
		return nil
	}
	if t := mod.FindType(namespace, name); t != nil {
		return t
	}
	if other := Of(mod); other != nil {
		return other.forwarded(namespace, name, depth+1)
	}
	return nil
}

// forwarded follows the ExportedType row naming namespace.name to the
// module that defines it.
func (r *Reader) forwarded(namespace, name string, depth int) *typesys.TypeDef {
	for rid := uint32(1); rid <= r.store.RowCount(metadata.TableExportedType); rid++ {
		row, err := r.store.ExportedType(rid)
		if err != nil {
			r.recordErr(metadata.NewToken(metadata.TableExportedType, rid), err)
			continue
		}
		if row.Name != name || row.Namespace != namespace {
			continue
		}
		impl := row.Implementation
		switch impl.Table() {
		case metadata.TableAssemblyRef:
			ref, err := r.assemblyRef(impl.RID())
			if err != nil {
				r.recordErr(impl, err)
				return nil
			}
			r.log.Debug("following type forwarder",
				zap.String("type", namespace+"."+name),
				zap.String("assembly", ref.Identity.Name))
			return r.findExported(ref.Resolve(), namespace, name, depth)
		case metadata.TableFile:
			mod := r.fileModule(impl)
			if mod == nil {
				return nil
			}
			return mod.FindType(namespace, name)
		}
		return nil
	}
	return nil
}

// fileModule resolves a File row of the manifest to a sibling module.
func (r *Reader) fileModule(tok metadata.Token) *typesys.Module {
	cells, err := r.store.Row(metadata.TableFile, tok.RID())
	if err != nil {
		r.recordErr(tok, err)
		return nil
	}
	name, err := r.store.GetString(cells[1])
	if err != nil {
		r.recordErr(tok, err)
		return nil
	}
	ref := &typesys.ModuleReference{Name: name, Token: tok, Referrer: r.mod}
	ref.SetLoader(r)
	return ref.Resolve()
}

// placeholder returns the cached stand-in for an unresolved type,
// recording the miss once.
func (r *Reader) placeholder(tok metadata.Token, scope, namespace, name string, enclosing *typesys.TypeDef) *typesys.TypeDef {
	full := name
	switch {
	case enclosing != nil:
		full = enclosing.FullName() + "/" + name
	case namespace != "":
		full = namespace + "." + name
	}
	key := scope + "|" + full
	if t, ok := r.placeholders[key]; ok {
		return t
	}
	t := typesys.NewPlaceholderType(r.mod, scope, namespace, name)
	t.Enclosing = enclosing
	r.placeholders[key] = t
	r.record(errors.Unresolved(uint32(tok), "type", "["+scope+"]"+full))
	return t
}

// coreType returns a System type from this module or from the core
// library it references.
func (r *Reader) coreType(namespace, name string) *typesys.TypeDef {
	if t := r.mod.FindType(namespace, name); t != nil {
		return t
	}
	for _, ref := range r.mod.AssemblyRefs {
		if !coreLibraries[ref.Identity.Name] {
			continue
		}
		if t := r.findExported(ref.Resolve(), namespace, name, 0); t != nil {
			return t
		}
	}
	return r.placeholder(0, "mscorlib", namespace, name, nil)
}

// TypeFromSpec returns the open form of a TypeSpec row: generic parameters
// in the blob are positional and are bound by the caller's context.
func (r *Reader) TypeFromSpec(rid uint32) (typesys.Type, error) {
	if !rowIndex(rid, len(r.typeSpecs)) {
		return nil, badRow(metadata.TableTypeSpec, rid, len(r.typeSpecs))
	}
	tok := metadata.NewToken(metadata.TableTypeSpec, rid)
	slot := &r.typeSpecs[rid-1]
	switch t, state := slot.Get(); state {
	case typesys.Loaded:
		return t, nil
	case typesys.Loading:
		return nil, cycleError(tok)
	}
	index, err := r.store.TypeSpec(rid)
	if err != nil {
		return nil, err
	}
	c, err := r.blob(index, "TypeSpec")
	if err != nil {
		return nil, err
	}
	slot.Begin()
	t, err := r.decodeElem(c, openContext(tok))
	if err != nil {
		slot.Abandon()
		return nil, err
	}
	slot.Complete(t)
	return t, nil
}

// TypeFromToken resolves a TypeDef, TypeRef or TypeSpec token in ctx.
func (r *Reader) TypeFromToken(tok metadata.Token, ctx typesys.GenericContext) (typesys.Type, error) {
	return r.typeFromToken(tok, defContext(ctx, tok))
}

func (r *Reader) typeFromToken(tok metadata.Token, sc sigContext) (typesys.Type, error) {
	switch tok.Table() {
	case metadata.TableTypeDef:
		t, err := r.TypeFromDef(tok.RID())
		if err != nil {
			return nil, err
		}
		return t, nil
	case metadata.TableTypeRef:
		t, err := r.TypeFromRef(tok.RID())
		if err != nil {
			return nil, err
		}
		return t, nil
	case metadata.TableTypeSpec:
		t, err := r.TypeFromSpec(tok.RID())
		if err != nil {
			return nil, err
		}
		if sc.open {
			return t, nil
		}
		return typesys.Substitute(t, sc.GenericContext), nil
	}
	return nil, errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).
		Token(uint32(tok)).
		Detail("%s is not a type token", tok).
		Build()
}

// typeDefOf returns the definition behind a type or instance.
func typeDefOf(t typesys.Type) *typesys.TypeDef {
	switch x := t.(type) {
	case *typesys.TypeDef:
		return x
	case *typesys.Instance:
		return x.Template
	}
	return nil
}
