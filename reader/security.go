package reader

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// Permission set formats, keyed by the first blob byte.
const (
	permissionSetCompact = '.'
	permissionSetLegacy  = '*'
	permissionSetXML     = '<'
)

// SecurityFromRow decodes a DeclSecurity row. Binary permission sets
// become attribute constructions whose first argument is the action; XML
// sets are kept as text.
func (r *Reader) SecurityFromRow(rid uint32) (*typesys.SecurityDeclaration, error) {
	tok := metadata.NewToken(metadata.TableDeclSecurity, rid)
	row, err := r.store.DeclSecurity(rid)
	if err != nil {
		return nil, err
	}
	blob, err := r.store.GetBlob(row.PermissionSet)
	if err != nil {
		return nil, err
	}
	d := &typesys.SecurityDeclaration{Token: tok, Parent: row.Parent, Action: row.Action}
	if len(blob) == 0 {
		return d, nil
	}

	switch blob[0] {
	case permissionSetCompact:
		d.Attributes, err = r.decodePermissions(binary.NewReader(blob[1:]), row.Action, false)
	case permissionSetLegacy:
		d.Attributes, err = r.decodePermissions(binary.NewReader(blob[1:]), row.Action, true)
	case permissionSetXML:
		d.XML, err = metadata.DecodeUTF16(blob)
	default:
		err = errors.New(errors.PhaseAttribute, errors.KindUnsupported).
			Token(uint32(tok)).
			Detail("permission set format 0x%02x", blob[0]).
			Build()
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// decodePermissions reads the attribute list of a binary permission set.
// The compact form carries only named arguments per attribute; the legacy
// form carries a complete custom attribute blob.
func (r *Reader) decodePermissions(c *binary.Reader, action uint16, legacy bool) ([]*typesys.Attribute, error) {
	count, err := c.ReadCompressedU32()
	if err != nil {
		return nil, attrError(c, "permission count", err)
	}
	if int(count) > c.Len() {
		return nil, attrError(c, "permission count exceeds blob", nil)
	}
	out := make([]*typesys.Attribute, 0, count)
	for i := uint32(0); i < count; i++ {
		name, ok, err := c.ReadSerString()
		if err != nil || !ok {
			return nil, attrError(c, "permission type name", err)
		}
		size, err := c.ReadCompressedU32()
		if err != nil {
			return nil, attrError(c, "permission blob length", err)
		}
		body, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, attrError(c, "permission blob", err)
		}
		a, err := r.decodePermission(name, body, action, legacy)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Reader) decodePermission(name string, body []byte, action uint16, legacy bool) (*typesys.Attribute, error) {
	t, err := r.TypeFromName(name)
	if err != nil {
		return nil, err
	}
	def := typeDefOf(t)
	if def == nil {
		return nil, attrError(nil, "permission type "+name+" is not a type definition", nil)
	}
	actionType := r.coreType("System.Security.Permissions", "SecurityAction")
	a := &typesys.Attribute{Constructor: r.securityConstructor(def, actionType), Blob: body}

	c := binary.NewReader(body)
	if legacy {
		if err := r.decodeAttribute(c, a); err != nil {
			return nil, err
		}
		return a, nil
	}
	a.Args = []typesys.Value{{Type: actionType, Value: int32(action)}}
	if c.Len() == 0 {
		return a, nil
	}
	count, err := c.ReadCompressedU32()
	if err != nil {
		return nil, attrError(c, "named argument count", err)
	}
	for i := uint32(0); i < count; i++ {
		named, err := r.readNamedArg(c)
		if err != nil {
			return nil, err
		}
		a.Named = append(a.Named, named)
	}
	return a, nil
}

// securityConstructor returns the constructor of a permission attribute
// that takes a SecurityAction, or a synthesized one when the type does not
// declare it.
func (r *Reader) securityConstructor(def *typesys.TypeDef, actionType *typesys.TypeDef) *typesys.Method {
	for _, m := range def.FindMethods(".ctor") {
		sig := m.Signature()
		if sig == nil || len(sig.Params) != 1 {
			continue
		}
		if p, ok := sig.Params[0].(*typesys.TypeDef); ok && p.Is("System.Security.Permissions", "SecurityAction") {
			return m
		}
	}
	sig := &typesys.MethodSignature{
		Convention: metadata.SigHasThis,
		HasThis:    true,
		Return:     typesys.PrimitiveOf(metadata.ElementVoid),
		Params:     []typesys.Type{actionType},
	}
	return typesys.NewPlaceholderMethod(r.mod, def, ".ctor", sig)
}
