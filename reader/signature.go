package reader

import (
	"math"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// sigContext is the generic context of one signature decode. An open
// decode binds VAR and MVAR to positional parameters instead of ctx.
type sigContext struct {
	typesys.GenericContext
	open  bool
	token metadata.Token
}

func defContext(ctx typesys.GenericContext, tok metadata.Token) sigContext {
	return sigContext{GenericContext: ctx, token: tok}
}

func openContext(tok metadata.Token) sigContext {
	return sigContext{open: true, token: tok}
}

// openParams holds the positional generic parameters used by open decodes
// and as stand-ins for indexes the context does not cover.
type openParams struct {
	typeOwner   *typesys.TypeDef
	methodOwner *typesys.Method
	vars        map[uint32]*typesys.GenericParam
	mvars       map[uint32]*typesys.GenericParam
	// unbound holds the out-of-context references already recorded.
	unbound map[unboundParam]bool
}

type unboundParam struct {
	token  metadata.Token
	method bool
	index  uint32
}

func newOpenParams() openParams {
	return openParams{
		typeOwner:   &typesys.TypeDef{Name: "?"},
		methodOwner: &typesys.Method{Name: "?"},
		vars:        make(map[uint32]*typesys.GenericParam),
		mvars:       make(map[uint32]*typesys.GenericParam),
		unbound:     make(map[unboundParam]bool),
	}
}

func (o *openParams) param(method bool, n uint32) *typesys.GenericParam {
	set, owner := o.vars, typesys.Entity(o.typeOwner)
	if method {
		set, owner = o.mvars, o.methodOwner
	}
	if p, ok := set[n]; ok {
		return p
	}
	p := &typesys.GenericParam{Number: uint16(n), Owner: owner}
	set[n] = p
	return p
}

// IsOpenParam reports whether p is a positional parameter of an open
// decode rather than a declared parameter.
func (r *Reader) IsOpenParam(p *typesys.GenericParam) bool {
	return p.Owner == typesys.Entity(r.open.typeOwner) || p.Owner == typesys.Entity(r.open.methodOwner)
}

func sigError(c *binary.Reader, detail string, cause error) error {
	b := errors.New(errors.PhaseSignature, errors.KindInvalidMetadata).Detail("%s", detail)
	if cause != nil {
		b = b.Cause(c.WrapError("signature", cause))
	}
	return b.Build()
}

// decodeType decodes one type at the cursor. A SENTINEL yields a nil type
// and no error; callers decoding parameter lists use it to start the vararg
// tail.
func (r *Reader) decodeType(c *binary.Reader, sc sigContext) (typesys.Type, error) {
	b, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "element type", err)
	}
	et := metadata.ElementType(b)
	if p := typesys.PrimitiveOf(et); p != nil {
		return p, nil
	}

	switch et {
	case metadata.ElementPtr:
		elem, err := r.decodeElem(c, sc)
		if err != nil {
			return nil, err
		}
		return &typesys.Pointer{Elem: elem}, nil

	case metadata.ElementByRef:
		elem, err := r.decodeElem(c, sc)
		if err != nil {
			return nil, err
		}
		return &typesys.ByRef{Elem: elem}, nil

	case metadata.ElementPinned:
		elem, err := r.decodeElem(c, sc)
		if err != nil {
			return nil, err
		}
		return &typesys.Pinned{Elem: elem}, nil

	case metadata.ElementSzArray:
		elem, err := r.decodeElem(c, sc)
		if err != nil {
			return nil, err
		}
		return typesys.NewSZArray(elem), nil

	case metadata.ElementArray:
		return r.decodeArray(c, sc)

	case metadata.ElementGenericInst:
		return r.decodeGenericInst(c, sc)

	case metadata.ElementCModReqd, metadata.ElementCModOpt:
		mod, err := r.decodeTypeDefOrRef(c, sc, false)
		if err != nil {
			return nil, err
		}
		elem, err := r.decodeElem(c, sc)
		if err != nil {
			return nil, err
		}
		return &typesys.Modified{Modifier: mod, Required: et == metadata.ElementCModReqd, Elem: elem}, nil

	case metadata.ElementClass, metadata.ElementValueType:
		return r.decodeTypeDefOrRef(c, sc, et == metadata.ElementValueType)

	case metadata.ElementVar, metadata.ElementMVar:
		n, err := c.ReadCompressedU32()
		if err != nil {
			return nil, sigError(c, "generic parameter index", err)
		}
		if n > math.MaxUint16 {
			return nil, sigError(c, "generic parameter index out of range", nil)
		}
		return r.genericArg(et == metadata.ElementMVar, n, sc), nil

	case metadata.ElementFnPtr:
		sig, err := r.decodeMethodSig(c, sc)
		if err != nil {
			return nil, err
		}
		return &typesys.FunctionPointer{Signature: sig}, nil

	case metadata.ElementSentinel:
		return nil, nil
	}
	return nil, errors.New(errors.PhaseSignature, errors.KindInvalidMetadata).
		Token(uint32(sc.token)).
		Detail("unexpected element type 0x%02x at offset %d", b, c.Offset()-1).
		Build()
}

// decodeElem decodes a type that may not be a sentinel.
func (r *Reader) decodeElem(c *binary.Reader, sc sigContext) (typesys.Type, error) {
	t, err := r.decodeType(c, sc)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, sigError(c, "sentinel outside a parameter list", nil)
	}
	return t, nil
}

func (r *Reader) decodeArray(c *binary.Reader, sc sigContext) (typesys.Type, error) {
	elem, err := r.decodeElem(c, sc)
	if err != nil {
		return nil, err
	}
	rank, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "array rank", err)
	}
	if rank == 0 {
		return nil, sigError(c, "array rank is zero", nil)
	}
	arr := &typesys.Array{Elem: elem, Rank: rank}

	n, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "array size count", err)
	}
	if n > rank {
		return nil, sigError(c, "more array sizes than dimensions", nil)
	}
	for i := uint32(0); i < n; i++ {
		size, err := c.ReadCompressedU32()
		if err != nil {
			return nil, sigError(c, "array size", err)
		}
		arr.Sizes = append(arr.Sizes, size)
	}

	n, err = c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "array bound count", err)
	}
	if n > rank {
		return nil, sigError(c, "more lower bounds than dimensions", nil)
	}
	for i := uint32(0); i < n; i++ {
		lo, err := c.ReadCompressedI32()
		if err != nil {
			return nil, sigError(c, "array lower bound", err)
		}
		arr.LowerBounds = append(arr.LowerBounds, lo)
	}
	return arr, nil
}

func (r *Reader) decodeGenericInst(c *binary.Reader, sc sigContext) (typesys.Type, error) {
	kind, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "generic instance kind", err)
	}
	et := metadata.ElementType(kind)
	if et != metadata.ElementClass && et != metadata.ElementValueType {
		return nil, sigError(c, "generic instance must name a class or value type", nil)
	}
	t, err := r.decodeTypeDefOrRef(c, sc, et == metadata.ElementValueType)
	if err != nil {
		return nil, err
	}
	template, ok := t.(*typesys.TypeDef)
	if !ok {
		return nil, sigError(c, "generic instance template is not a type definition", nil)
	}
	n, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "generic argument count", err)
	}
	if n == 0 || int(n) > c.Len() {
		return nil, sigError(c, "invalid generic argument count", nil)
	}
	args := make([]typesys.Type, n)
	for i := range args {
		if args[i], err = r.decodeElem(c, sc); err != nil {
			return nil, err
		}
	}
	return r.mod.Instantiate(template, args), nil
}

// decodeTypeDefOrRef reads a compressed TypeDefOrRef coded token and
// resolves it. A placeholder reached through VALUETYPE is marked a struct.
func (r *Reader) decodeTypeDefOrRef(c *binary.Reader, sc sigContext, valueType bool) (typesys.Type, error) {
	coded, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "type token", err)
	}
	tok, err := metadata.DecodeCoded(metadata.CodedTypeDefOrRef, coded)
	if err != nil {
		return nil, err
	}
	t, err := r.typeFromToken(tok, sc)
	if err != nil {
		return nil, err
	}
	if def, ok := t.(*typesys.TypeDef); ok && def.Placeholder && valueType && def.Kind == typesys.KindClass {
		def.Kind = typesys.KindStruct
	}
	return t, nil
}

// genericArg binds a VAR or MVAR index. Open decodes and indexes the
// context does not cover yield positional parameters; the latter are
// recorded as unresolved.
func (r *Reader) genericArg(method bool, n uint32, sc sigContext) typesys.Type {
	if sc.open {
		return r.open.param(method, n)
	}
	if method {
		if t, ok := sc.MethodArg(n); ok {
			return t
		}
	} else if t, ok := sc.TypeArg(n); ok {
		return t
	}
	p := r.open.param(method, n)
	key := unboundParam{token: sc.token, method: method, index: n}
	if !r.open.unbound[key] {
		r.open.unbound[key] = true
		r.record(errors.Unresolved(uint32(sc.token), "generic parameter", p.String()))
	}
	return p
}

// decodeMethodSig decodes a method, call-site or function pointer
// signature starting at its calling convention byte.
func (r *Reader) decodeMethodSig(c *binary.Reader, sc sigContext) (*typesys.MethodSignature, error) {
	conv, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "calling convention", err)
	}
	switch conv & metadata.SigKindMask {
	case metadata.SigField, metadata.SigLocal, metadata.SigProperty, metadata.SigGenericInst:
		return nil, sigError(c, "not a method signature", nil)
	}
	sig := &typesys.MethodSignature{
		Convention:   conv,
		HasThis:      conv&metadata.SigHasThis != 0,
		ExplicitThis: conv&metadata.SigExplicitThis != 0,
	}
	if conv&metadata.SigGeneric != 0 {
		if sig.GenericCount, err = c.ReadCompressedU32(); err != nil {
			return nil, sigError(c, "generic parameter count", err)
		}
	}
	count, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "parameter count", err)
	}
	if sig.Return, err = r.decodeElem(c, sc); err != nil {
		return nil, err
	}
	if sig.Params, sig.VarArgs, err = r.decodeParams(c, count, sc); err != nil {
		return nil, err
	}
	return sig, nil
}

// decodeParams decodes count parameter types. Types after a sentinel form
// the vararg tail, which is non-nil whenever a sentinel was present.
func (r *Reader) decodeParams(c *binary.Reader, count uint32, sc sigContext) (params, varargs []typesys.Type, err error) {
	if int(count) > c.Len() {
		return nil, nil, sigError(c, "parameter count exceeds signature", nil)
	}
	params = make([]typesys.Type, 0, count)
	tail := false
	for i := uint32(0); i < count; i++ {
		t, err := r.decodeType(c, sc)
		if err != nil {
			return nil, nil, err
		}
		if t == nil {
			if tail {
				return nil, nil, sigError(c, "second sentinel", nil)
			}
			tail = true
			varargs = []typesys.Type{}
			if t, err = r.decodeElem(c, sc); err != nil {
				return nil, nil, err
			}
		}
		if tail {
			varargs = append(varargs, t)
		} else {
			params = append(params, t)
		}
	}
	return params, varargs, nil
}

// decodeFieldSig decodes a FIELD signature.
func (r *Reader) decodeFieldSig(c *binary.Reader, sc sigContext) (typesys.Type, error) {
	b, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "field signature", err)
	}
	if b&metadata.SigKindMask != metadata.SigField {
		return nil, sigError(c, "not a field signature", nil)
	}
	return r.decodeElem(c, sc)
}

// decodePropertySig decodes a PROPERTY signature into a method signature
// whose return type is the property type.
func (r *Reader) decodePropertySig(c *binary.Reader, sc sigContext) (*typesys.MethodSignature, error) {
	b, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "property signature", err)
	}
	if b&metadata.SigKindMask != metadata.SigProperty {
		return nil, sigError(c, "not a property signature", nil)
	}
	count, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "property parameter count", err)
	}
	sig := &typesys.MethodSignature{Convention: b, HasThis: b&metadata.SigHasThis != 0}
	if sig.Return, err = r.decodeElem(c, sc); err != nil {
		return nil, err
	}
	if sig.Params, _, err = r.decodeParams(c, count, sc); err != nil {
		return nil, err
	}
	return sig, nil
}

// decodeLocalSig decodes a LOCAL_SIG. Pinned locals come back wrapped in
// typesys.Pinned.
func (r *Reader) decodeLocalSig(c *binary.Reader, sc sigContext) ([]typesys.Type, error) {
	b, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "local signature", err)
	}
	if b != metadata.SigLocal {
		return nil, sigError(c, "not a local signature", nil)
	}
	count, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "local count", err)
	}
	if int(count) > c.Len() {
		return nil, sigError(c, "local count exceeds signature", nil)
	}
	locals := make([]typesys.Type, count)
	for i := range locals {
		if locals[i], err = r.decodeElem(c, sc); err != nil {
			return nil, err
		}
	}
	return locals, nil
}

// decodeMethodSpec decodes the argument list of a MethodSpec instantiation.
func (r *Reader) decodeMethodSpec(c *binary.Reader, sc sigContext) ([]typesys.Type, error) {
	b, err := c.ReadByte()
	if err != nil {
		return nil, sigError(c, "method instantiation", err)
	}
	if b != metadata.SigGenericInst {
		return nil, sigError(c, "not a method instantiation", nil)
	}
	count, err := c.ReadCompressedU32()
	if err != nil {
		return nil, sigError(c, "method argument count", err)
	}
	if count == 0 || int(count) > c.Len() {
		return nil, sigError(c, "invalid method argument count", nil)
	}
	args := make([]typesys.Type, count)
	for i := range args {
		if args[i], err = r.decodeElem(c, sc); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// blob returns a cursor over a #Blob entry that must not be empty.
func (r *Reader) blob(index uint32, what string) (*binary.Reader, error) {
	data, err := r.store.GetBlob(index)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.InvalidMetadata(errors.PhaseSignature, "empty "+what+" signature")
	}
	return binary.NewReader(data), nil
}
