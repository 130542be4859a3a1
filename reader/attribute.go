package reader

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

const (
	attributeProlog uint16 = 0x0001
	nullArrayLength uint32 = 0xFFFFFFFF
)

func attrError(c *binary.Reader, detail string, cause error) error {
	b := errors.New(errors.PhaseAttribute, errors.KindInvalidMetadata).Detail("%s", detail)
	if cause != nil && c != nil {
		b = b.Cause(c.WrapError("custom attribute", cause))
	}
	return b.Build()
}

// AttributeFromRow decodes a CustomAttribute row into a constructor call.
func (r *Reader) AttributeFromRow(rid uint32) (*typesys.Attribute, error) {
	tok := metadata.NewToken(metadata.TableCustomAttribute, rid)
	row, err := r.store.CustomAttribute(rid)
	if err != nil {
		return nil, err
	}
	ctor, err := r.methodFromToken(row.Type, typesys.GenericContext{})
	if err != nil {
		return nil, err
	}
	blob, err := r.store.GetBlob(row.Value)
	if err != nil {
		return nil, err
	}
	a := &typesys.Attribute{Token: tok, Constructor: ctor, Blob: blob}
	if len(blob) == 0 {
		return a, nil
	}
	if err := r.decodeAttribute(binary.NewReader(blob), a); err != nil {
		return nil, err
	}
	return a, nil
}

// decodeAttribute reads a custom attribute value blob: the prolog, the
// fixed arguments typed by the constructor's parameters, then the named
// arguments.
func (r *Reader) decodeAttribute(c *binary.Reader, a *typesys.Attribute) error {
	prolog, err := c.ReadU16LE()
	if err != nil {
		return attrError(c, "prolog", err)
	}
	if prolog != attributeProlog {
		return attrError(c, "bad prolog", nil)
	}
	sig := a.Constructor.Signature()
	if sig == nil {
		return attrError(c, "constructor without signature", nil)
	}
	a.Args = make([]typesys.Value, 0, len(sig.Params))
	for _, p := range sig.Params {
		v, err := r.readFixedArg(c, p)
		if err != nil {
			return err
		}
		a.Args = append(a.Args, v)
	}
	if c.Len() == 0 {
		return nil
	}
	named, err := r.readNamedArgs(c)
	if err != nil {
		return err
	}
	a.Named = named
	return nil
}

func (r *Reader) readNamedArgs(c *binary.Reader) ([]typesys.NamedArgument, error) {
	count, err := c.ReadU16LE()
	if err != nil {
		return nil, attrError(c, "named argument count", err)
	}
	if int(count) > c.Len() {
		return nil, attrError(c, "named argument count exceeds blob", nil)
	}
	out := make([]typesys.NamedArgument, 0, count)
	for i := 0; i < int(count); i++ {
		named, err := r.readNamedArg(c)
		if err != nil {
			return nil, err
		}
		out = append(out, named)
	}
	return out, nil
}

// readNamedArg reads one field (0x53) or property (0x54) assignment.
func (r *Reader) readNamedArg(c *binary.Reader) (typesys.NamedArgument, error) {
	kind, err := c.ReadByte()
	if err != nil {
		return typesys.NamedArgument{}, attrError(c, "named argument kind", err)
	}
	switch metadata.ElementType(kind) {
	case metadata.ElementField, metadata.ElementProperty:
	default:
		return typesys.NamedArgument{}, attrError(c, "named argument is neither field nor property", nil)
	}
	typ, err := r.readFieldOrPropType(c)
	if err != nil {
		return typesys.NamedArgument{}, err
	}
	name, ok, err := c.ReadSerString()
	if err != nil || !ok {
		return typesys.NamedArgument{}, attrError(c, "named argument name", err)
	}
	v, err := r.readFixedArg(c, typ)
	if err != nil {
		return typesys.NamedArgument{}, err
	}
	return typesys.NamedArgument{
		IsField: metadata.ElementType(kind) == metadata.ElementField,
		Name:    name,
		Value:   v,
	}, nil
}

// readFieldOrPropType reads the type tag of a named or boxed argument.
func (r *Reader) readFieldOrPropType(c *binary.Reader) (typesys.Type, error) {
	tag, err := c.ReadByte()
	if err != nil {
		return nil, attrError(c, "argument type", err)
	}
	et := metadata.ElementType(tag)
	switch et {
	case metadata.ElementSystemType:
		return r.coreType("System", "Type"), nil
	case metadata.ElementBoxed:
		return typesys.PrimitiveOf(metadata.ElementObject), nil
	case metadata.ElementSzArray:
		elem, err := r.readFieldOrPropType(c)
		if err != nil {
			return nil, err
		}
		return typesys.NewSZArray(elem), nil
	case metadata.ElementEnum:
		name, ok, err := c.ReadSerString()
		if err != nil || !ok {
			return nil, attrError(c, "enum type name", err)
		}
		return r.TypeFromName(name)
	}
	if et >= metadata.ElementBoolean && et <= metadata.ElementString {
		return typesys.PrimitiveOf(et), nil
	}
	return nil, attrError(c, "invalid argument type tag", nil)
}

// readFixedArg reads one value of type t.
func (r *Reader) readFixedArg(c *binary.Reader, t typesys.Type) (typesys.Value, error) {
	switch x := t.(type) {
	case *typesys.Primitive:
		switch x.Element {
		case metadata.ElementString:
			return r.readString(c, t)
		case metadata.ElementObject:
			return r.readBoxed(c)
		}
		v, err := readPrimitive(c, x.Element)
		if err != nil {
			return typesys.Value{}, err
		}
		return typesys.Value{Type: t, Value: v}, nil

	case *typesys.Array:
		if !x.SZ {
			return typesys.Value{}, attrError(c, "multi-dimensional array argument", nil)
		}
		n, err := c.ReadU32LE()
		if err != nil {
			return typesys.Value{}, attrError(c, "array length", err)
		}
		if n == nullArrayLength {
			return typesys.Value{Type: t}, nil
		}
		if int(n) > c.Len() {
			return typesys.Value{}, attrError(c, "array length exceeds blob", nil)
		}
		elems := make([]typesys.Value, n)
		for i := range elems {
			if elems[i], err = r.readFixedArg(c, x.Elem); err != nil {
				return typesys.Value{}, err
			}
		}
		return typesys.Value{Type: t, Value: elems}, nil

	case *typesys.TypeDef:
		switch {
		case x.Is("System", "Type"):
			s, ok, err := c.ReadSerString()
			if err != nil {
				return typesys.Value{}, attrError(c, "type name", err)
			}
			if !ok {
				return typesys.Value{Type: t}, nil
			}
			named, err := r.TypeFromName(s)
			if err != nil {
				return typesys.Value{}, err
			}
			return typesys.Value{Type: t, Value: named}, nil
		case x.Is("System", "String"):
			return r.readString(c, typesys.PrimitiveOf(metadata.ElementString))
		case x.Is("System", "Object"):
			return r.readBoxed(c)
		}
		underlying := metadata.ElementI4
		if p, ok := x.EnumUnderlying().(*typesys.Primitive); ok {
			underlying = p.Element
		} else if !x.Placeholder {
			return typesys.Value{}, attrError(c, "argument of type "+x.FullName()+" is not an enum", nil)
		}
		v, err := readPrimitive(c, underlying)
		if err != nil {
			return typesys.Value{}, err
		}
		return typesys.Value{Type: t, Value: v}, nil
	}
	return typesys.Value{}, attrError(c, "unsupported argument type", nil)
}

func (r *Reader) readString(c *binary.Reader, t typesys.Type) (typesys.Value, error) {
	s, ok, err := c.ReadSerString()
	if err != nil {
		return typesys.Value{}, attrError(c, "string argument", err)
	}
	if !ok {
		return typesys.Value{Type: t}, nil
	}
	return typesys.Value{Type: t, Value: s}, nil
}

// readBoxed reads an object argument: a type tag and a value of that type.
func (r *Reader) readBoxed(c *binary.Reader) (typesys.Value, error) {
	typ, err := r.readFieldOrPropType(c)
	if err != nil {
		return typesys.Value{}, err
	}
	if p, ok := typ.(*typesys.Primitive); ok && p.Element == metadata.ElementObject {
		return typesys.Value{}, attrError(c, "boxed object inside a boxed object", nil)
	}
	return r.readFixedArg(c, typ)
}

// readPrimitive reads a little-endian primitive into its Go form.
func readPrimitive(c *binary.Reader, et metadata.ElementType) (any, error) {
	var (
		v   any
		err error
	)
	switch et {
	case metadata.ElementBoolean:
		var b byte
		b, err = c.ReadByte()
		v = b != 0
	case metadata.ElementI1:
		var b byte
		b, err = c.ReadByte()
		v = int8(b)
	case metadata.ElementU1:
		v, err = c.ReadByte()
	case metadata.ElementChar, metadata.ElementU2:
		v, err = c.ReadU16LE()
	case metadata.ElementI2:
		var n uint16
		n, err = c.ReadU16LE()
		v = int16(n)
	case metadata.ElementI4:
		var n uint32
		n, err = c.ReadU32LE()
		v = int32(n)
	case metadata.ElementU4:
		v, err = c.ReadU32LE()
	case metadata.ElementI8:
		var n uint64
		n, err = c.ReadU64LE()
		v = int64(n)
	case metadata.ElementU8:
		v, err = c.ReadU64LE()
	case metadata.ElementR4:
		v, err = c.ReadF32()
	case metadata.ElementR8:
		v, err = c.ReadF64()
	default:
		return nil, attrError(c, "element type is not a primitive value", nil)
	}
	if err != nil {
		return nil, attrError(c, "primitive value", err)
	}
	return v, nil
}

// ConstantFromRow decodes a Constant row. String constants are UTF-16;
// a class constant is the null reference.
func (r *Reader) ConstantFromRow(rid uint32) (*typesys.Value, error) {
	row, err := r.store.Constant(rid)
	if err != nil {
		return nil, err
	}
	blob, err := r.store.GetBlob(row.Value)
	if err != nil {
		return nil, err
	}
	switch row.Type {
	case metadata.ElementClass:
		return &typesys.Value{}, nil
	case metadata.ElementString:
		s, err := metadata.DecodeUTF16(blob)
		if err != nil {
			return nil, err
		}
		return &typesys.Value{Type: typesys.PrimitiveOf(metadata.ElementString), Value: s}, nil
	}
	v, err := readPrimitive(binary.NewReader(blob), row.Type)
	if err != nil {
		return nil, err
	}
	return &typesys.Value{Type: typesys.PrimitiveOf(row.Type), Value: v}, nil
}
