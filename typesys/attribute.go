package typesys

import (
	"fmt"
	"strings"

	"github.com/wippyai/clrmeta/metadata"
)

// Value is a decoded constant: a custom attribute argument or a field,
// parameter or property default.
//
// Go representation of V by element type: bool, uint16 (char), int8,
// uint8, int16, uint16, int32, uint32, int64, uint64, float32, float64,
// string, Type (System.Type arguments), []Value (arrays), and nil for null
// strings, null arrays and null references. Enum values carry the enum type
// in T and the underlying integer in V. Boxed object arguments carry the
// boxed value's type in T.
type Value struct {
	Type  Type
	Value any
}

func (v Value) String() string {
	switch x := v.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case Type:
		return "typeof(" + x.String() + ")"
	case []Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	if def, ok := v.Type.(*TypeDef); ok && def.Kind == KindEnum {
		return fmt.Sprintf("%s(%v)", def.FullName(), v.Value)
	}
	return fmt.Sprintf("%v", v.Value)
}

// NamedArgument is a field or property assignment of a custom attribute.
type NamedArgument struct {
	IsField bool
	Name    string
	Value   Value
}

// Attribute is a custom attribute as a constructor call: positional
// arguments followed by named field and property assignments.
type Attribute struct {
	Token       metadata.Token
	Constructor *Method
	Args        []Value
	Named       []NamedArgument
	Blob        []byte
}

// Type returns the attribute type.
func (a *Attribute) Type() Type {
	if a.Constructor == nil {
		return nil
	}
	return a.Constructor.Declaring()
}

// TypeName returns the full name of the attribute type.
func (a *Attribute) TypeName() string {
	if t := a.Type(); t != nil {
		return t.String()
	}
	return "?"
}

// Is reports whether the attribute type is namespace.name.
func (a *Attribute) Is(namespace, name string) bool {
	switch t := a.Type().(type) {
	case *TypeDef:
		return t.Is(namespace, name)
	case *Instance:
		return t.Template.Is(namespace, name)
	}
	return false
}

func (a *Attribute) String() string {
	var b strings.Builder
	b.WriteString(a.TypeName())
	b.WriteByte('(')
	n := 0
	for _, v := range a.Args {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
		n++
	}
	for _, na := range a.Named {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(na.Name)
		b.WriteString(" = ")
		b.WriteString(na.Value.String())
		n++
	}
	b.WriteByte(')')
	return b.String()
}

// Security actions of DeclSecurity rows.
const (
	SecurityRequest           uint16 = 1
	SecurityDemand            uint16 = 2
	SecurityAssert            uint16 = 3
	SecurityDeny              uint16 = 4
	SecurityPermitOnly        uint16 = 5
	SecurityLinkDemand        uint16 = 6
	SecurityInheritanceDemand uint16 = 7
	SecurityRequestMinimum    uint16 = 8
	SecurityRequestOptional   uint16 = 9
	SecurityRequestRefuse     uint16 = 10
)

// SecurityDeclaration is a decoded DeclSecurity row. Binary permission
// sets decode into Attributes whose first argument is the action; XML
// permission sets are kept as text.
type SecurityDeclaration struct {
	Token      metadata.Token
	Parent     metadata.Token
	Action     uint16
	Attributes []*Attribute
	XML        string
}
