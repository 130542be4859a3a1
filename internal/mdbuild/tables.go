package mdbuild

import (
	"github.com/google/uuid"

	"github.com/wippyai/clrmeta/metadata"
)

// Module adds the Module row.
func (b *Builder) Module(name string, mvid uuid.UUID) metadata.Token {
	return b.AddRow(metadata.TableModule, 0, b.String(name), b.GUID(mvid), 0, 0)
}

// Assembly adds the Assembly row.
func (b *Builder) Assembly(name string, version [4]uint16, publicKey []byte) metadata.Token {
	var flags uint32
	if len(publicKey) > 0 {
		flags = 0x0001
	}
	return b.AddRow(metadata.TableAssembly, 0x8004,
		uint32(version[0]), uint32(version[1]), uint32(version[2]), uint32(version[3]),
		flags, b.Blob(publicKey), b.String(name), 0)
}

// AssemblyRef adds an AssemblyRef row. publicKeyToken may be nil.
func (b *Builder) AssemblyRef(name string, version [4]uint16, publicKeyToken []byte) metadata.Token {
	return b.AddRow(metadata.TableAssemblyRef,
		uint32(version[0]), uint32(version[1]), uint32(version[2]), uint32(version[3]),
		0, b.Blob(publicKeyToken), b.String(name), 0, 0)
}

// ModuleRef adds a ModuleRef row.
func (b *Builder) ModuleRef(name string) metadata.Token {
	return b.AddRow(metadata.TableModuleRef, b.String(name))
}

// TypeRef adds a TypeRef row.
func (b *Builder) TypeRef(scope metadata.Token, ns, name string) metadata.Token {
	return b.AddRow(metadata.TableTypeRef, Coded(metadata.CodedResolutionScope, scope), b.String(name), b.String(ns))
}

// TypeDef adds a TypeDef row whose field and method lists start at the
// next Field and MethodDef rows. extends may be 0.
func (b *Builder) TypeDef(flags uint32, ns, name string, extends metadata.Token) metadata.Token {
	var ext uint32
	if extends != 0 {
		ext = Coded(metadata.CodedTypeDefOrRef, extends)
	}
	return b.AddRow(metadata.TableTypeDef, flags, b.String(name), b.String(ns), ext,
		b.RowCount(metadata.TableField)+1, b.RowCount(metadata.TableMethodDef)+1)
}

// TypeSpec adds a TypeSpec row.
func (b *Builder) TypeSpec(sig []byte) metadata.Token {
	return b.AddRow(metadata.TableTypeSpec, b.Blob(sig))
}

// Field adds a Field row owned by the last TypeDef.
func (b *Builder) Field(flags uint16, name string, sig []byte) metadata.Token {
	return b.AddRow(metadata.TableField, uint32(flags), b.String(name), b.Blob(sig))
}

// Method adds a MethodDef row owned by the last TypeDef whose parameter
// list starts at the next Param row.
func (b *Builder) Method(flags, implFlags uint16, name string, sig []byte, rva uint32) metadata.Token {
	return b.AddRow(metadata.TableMethodDef, rva, uint32(implFlags), uint32(flags), b.String(name), b.Blob(sig),
		b.RowCount(metadata.TableParam)+1)
}

// Param adds a Param row owned by the last MethodDef.
func (b *Builder) Param(flags, sequence uint16, name string) metadata.Token {
	return b.AddRow(metadata.TableParam, uint32(flags), uint32(sequence), b.String(name))
}

// InterfaceImpl adds an InterfaceImpl row.
func (b *Builder) InterfaceImpl(class, iface metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableInterfaceImpl, class.RID(), Coded(metadata.CodedTypeDefOrRef, iface))
}

// MemberRef adds a MemberRef row.
func (b *Builder) MemberRef(parent metadata.Token, name string, sig []byte) metadata.Token {
	return b.AddRow(metadata.TableMemberRef, Coded(metadata.CodedMemberRefParent, parent), b.String(name), b.Blob(sig))
}

// Constant adds a Constant row.
func (b *Builder) Constant(parent metadata.Token, typ metadata.ElementType, value []byte) metadata.Token {
	return b.AddRow(metadata.TableConstant, uint32(typ), Coded(metadata.CodedHasConstant, parent), b.Blob(value))
}

// CustomAttribute adds a CustomAttribute row.
func (b *Builder) CustomAttribute(parent, ctor metadata.Token, value []byte) metadata.Token {
	return b.AddRow(metadata.TableCustomAttribute,
		Coded(metadata.CodedHasCustomAttribute, parent), Coded(metadata.CodedCustomAttributeType, ctor), b.Blob(value))
}

// DeclSecurity adds a DeclSecurity row.
func (b *Builder) DeclSecurity(action uint16, parent metadata.Token, permissionSet []byte) metadata.Token {
	return b.AddRow(metadata.TableDeclSecurity, uint32(action), Coded(metadata.CodedHasDeclSecurity, parent), b.Blob(permissionSet))
}

// StandAloneSig adds a StandAloneSig row.
func (b *Builder) StandAloneSig(sig []byte) metadata.Token {
	return b.AddRow(metadata.TableStandAloneSig, b.Blob(sig))
}

// PropertyMap adds a PropertyMap row whose list starts at the next Property.
func (b *Builder) PropertyMap(parent metadata.Token) metadata.Token {
	return b.AddRow(metadata.TablePropertyMap, parent.RID(), b.RowCount(metadata.TableProperty)+1)
}

// Property adds a Property row.
func (b *Builder) Property(flags uint16, name string, sig []byte) metadata.Token {
	return b.AddRow(metadata.TableProperty, uint32(flags), b.String(name), b.Blob(sig))
}

// EventMap adds an EventMap row whose list starts at the next Event.
func (b *Builder) EventMap(parent metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableEventMap, parent.RID(), b.RowCount(metadata.TableEvent)+1)
}

// Event adds an Event row.
func (b *Builder) Event(flags uint16, name string, eventType metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableEvent, uint32(flags), b.String(name), Coded(metadata.CodedTypeDefOrRef, eventType))
}

// MethodSemantics adds a MethodSemantics row.
func (b *Builder) MethodSemantics(semantics uint16, method, association metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableMethodSemantics, uint32(semantics), method.RID(), Coded(metadata.CodedHasSemantics, association))
}

// MethodImpl adds a MethodImpl row.
func (b *Builder) MethodImpl(class, body, decl metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableMethodImpl, class.RID(),
		Coded(metadata.CodedMethodDefOrRef, body), Coded(metadata.CodedMethodDefOrRef, decl))
}

// NestedClass adds a NestedClass row.
func (b *Builder) NestedClass(nested, enclosing metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableNestedClass, nested.RID(), enclosing.RID())
}

// GenericParam adds a GenericParam row.
func (b *Builder) GenericParam(number, flags uint16, owner metadata.Token, name string) metadata.Token {
	return b.AddRow(metadata.TableGenericParam, uint32(number), uint32(flags), Coded(metadata.CodedTypeOrMethodDef, owner), b.String(name))
}

// GenericParamConstraint adds a GenericParamConstraint row.
func (b *Builder) GenericParamConstraint(owner, constraint metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableGenericParamConstraint, owner.RID(), Coded(metadata.CodedTypeDefOrRef, constraint))
}

// MethodSpec adds a MethodSpec row.
func (b *Builder) MethodSpec(method metadata.Token, sig []byte) metadata.Token {
	return b.AddRow(metadata.TableMethodSpec, Coded(metadata.CodedMethodDefOrRef, method), b.Blob(sig))
}

// ExportedType adds an ExportedType row.
func (b *Builder) ExportedType(flags uint32, ns, name string, implementation metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableExportedType, flags, 0, b.String(name), b.String(ns),
		Coded(metadata.CodedImplementation, implementation))
}

// ClassLayout adds a ClassLayout row.
func (b *Builder) ClassLayout(packing uint16, size uint32, parent metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableClassLayout, uint32(packing), size, parent.RID())
}

// ImplMap adds an ImplMap row.
func (b *Builder) ImplMap(flags uint16, member metadata.Token, importName string, scope metadata.Token) metadata.Token {
	return b.AddRow(metadata.TableImplMap, uint32(flags), Coded(metadata.CodedMemberForwarded, member),
		b.String(importName), scope.RID())
}
