package metadata

import (
	"fmt"

	"github.com/wippyai/clrmeta/errors"
)

// CodedKind identifies a coded index family (ECMA-335 II.24.2.6).
type CodedKind uint8

// Coded index kinds.
const (
	CodedTypeDefOrRef CodedKind = iota
	CodedHasConstant
	CodedHasCustomAttribute
	CodedHasFieldMarshal
	CodedHasDeclSecurity
	CodedMemberRefParent
	CodedHasSemantics
	CodedMethodDefOrRef
	CodedMemberForwarded
	CodedImplementation
	CodedCustomAttributeType
	CodedResolutionScope
	CodedTypeOrMethodDef

	codedKindCount
)

type codedInfo struct {
	name   string
	tables []Table
	bits   uint
}

var codedKinds = [codedKindCount]codedInfo{
	CodedTypeDefOrRef: {"TypeDefOrRef", []Table{TableTypeDef, TableTypeRef, TableTypeSpec}, 2},
	CodedHasConstant:  {"HasConstant", []Table{TableField, TableParam, TableProperty}, 2},
	CodedHasCustomAttribute: {"HasCustomAttribute", []Table{
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam, TableInterfaceImpl,
		TableMemberRef, TableModule, TableDeclSecurity, TableProperty, TableEvent,
		TableStandAloneSig, TableModuleRef, TableTypeSpec, TableAssembly, TableAssemblyRef,
		TableFile, TableExportedType, TableManifestResource, TableGenericParam,
		TableGenericParamConstraint, TableMethodSpec,
	}, 5},
	CodedHasFieldMarshal:     {"HasFieldMarshal", []Table{TableField, TableParam}, 1},
	CodedHasDeclSecurity:     {"HasDeclSecurity", []Table{TableTypeDef, TableMethodDef, TableAssembly}, 2},
	CodedMemberRefParent:     {"MemberRefParent", []Table{TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec}, 3},
	CodedHasSemantics:        {"HasSemantics", []Table{TableEvent, TableProperty}, 1},
	CodedMethodDefOrRef:      {"MethodDefOrRef", []Table{TableMethodDef, TableMemberRef}, 1},
	CodedMemberForwarded:     {"MemberForwarded", []Table{TableField, TableMethodDef}, 1},
	CodedImplementation:      {"Implementation", []Table{TableFile, TableAssemblyRef, TableExportedType}, 2},
	CodedCustomAttributeType: {"CustomAttributeType", []Table{tableNone, tableNone, TableMethodDef, TableMemberRef, tableNone}, 3},
	CodedResolutionScope:     {"ResolutionScope", []Table{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef}, 2},
	CodedTypeOrMethodDef:     {"TypeOrMethodDef", []Table{TableTypeDef, TableMethodDef}, 1},
}

func (k CodedKind) String() string {
	if k < codedKindCount {
		return codedKinds[k].name
	}
	return fmt.Sprintf("CodedKind(%d)", uint8(k))
}

// DecodeCoded splits a coded index into a token. A zero row yields a nil
// token of the tagged table.
func DecodeCoded(kind CodedKind, value uint32) (Token, error) {
	info := &codedKinds[kind]
	tag := value & (1<<info.bits - 1)
	if int(tag) >= len(info.tables) || info.tables[tag] == tableNone {
		return 0, errors.InvalidMetadata(errors.PhaseTables,
			fmt.Sprintf("invalid %s coded index tag %d", info.name, tag))
	}
	return NewToken(info.tables[tag], value>>info.bits), nil
}

// EncodeCoded builds the coded index value of tok. The second result is
// false when the token's table is not part of the kind.
func EncodeCoded(kind CodedKind, tok Token) (uint32, bool) {
	info := &codedKinds[kind]
	for tag, t := range info.tables {
		if t == tok.Table() && t != tableNone {
			return tok.RID()<<info.bits | uint32(tag), true
		}
	}
	return 0, false
}

// codedWide reports whether a coded index of kind needs 4 bytes given the
// row counts of its target tables.
func codedWide(kind CodedKind, rows *[TableCount]uint32) bool {
	info := &codedKinds[kind]
	limit := uint32(1) << (16 - info.bits)
	for _, t := range info.tables {
		if t == tableNone {
			continue
		}
		if rows[t] >= limit {
			return true
		}
	}
	return false
}
