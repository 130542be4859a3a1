package metadata

// Metadata root and stream constants.
const (
	// MetadataSignature is the "BSJB" magic at the start of the metadata root.
	MetadataSignature uint32 = 0x424A5342

	// CLIHeaderDirectory is the index of the CLI header in the PE data directories.
	CLIHeaderDirectory = 14
)

// Stream names.
const (
	StreamTables       = "#~"
	StreamTablesUncomp = "#-"
	StreamStrings      = "#Strings"
	StreamBlob         = "#Blob"
	StreamGUID         = "#GUID"
	StreamUserStrings  = "#US"
)

// Heap-size flags in the table stream header.
const (
	HeapStringsWide byte = 0x01
	HeapGUIDWide    byte = 0x02
	HeapBlobWide    byte = 0x04
	HeapExtraData   byte = 0x40
)

// Table identifies a metadata table. The value is the table number used in
// the high byte of a token.
type Table uint8

// Metadata tables in ECMA-335 order.
const (
	TableModule                 Table = 0x00
	TableTypeRef                Table = 0x01
	TableTypeDef                Table = 0x02
	TableFieldPtr               Table = 0x03
	TableField                  Table = 0x04
	TableMethodPtr              Table = 0x05
	TableMethodDef              Table = 0x06
	TableParamPtr               Table = 0x07
	TableParam                  Table = 0x08
	TableInterfaceImpl          Table = 0x09
	TableMemberRef              Table = 0x0A
	TableConstant               Table = 0x0B
	TableCustomAttribute        Table = 0x0C
	TableFieldMarshal           Table = 0x0D
	TableDeclSecurity           Table = 0x0E
	TableClassLayout            Table = 0x0F
	TableFieldLayout            Table = 0x10
	TableStandAloneSig          Table = 0x11
	TableEventMap               Table = 0x12
	TableEventPtr               Table = 0x13
	TableEvent                  Table = 0x14
	TablePropertyMap            Table = 0x15
	TablePropertyPtr            Table = 0x16
	TableProperty               Table = 0x17
	TableMethodSemantics        Table = 0x18
	TableMethodImpl             Table = 0x19
	TableModuleRef              Table = 0x1A
	TableTypeSpec               Table = 0x1B
	TableImplMap                Table = 0x1C
	TableFieldRVA               Table = 0x1D
	TableEncLog                 Table = 0x1E
	TableEncMap                 Table = 0x1F
	TableAssembly               Table = 0x20
	TableAssemblyProcessor      Table = 0x21
	TableAssemblyOS             Table = 0x22
	TableAssemblyRef            Table = 0x23
	TableAssemblyRefProcessor   Table = 0x24
	TableAssemblyRefOS          Table = 0x25
	TableFile                   Table = 0x26
	TableExportedType           Table = 0x27
	TableManifestResource       Table = 0x28
	TableNestedClass            Table = 0x29
	TableGenericParam           Table = 0x2A
	TableMethodSpec             Table = 0x2B
	TableGenericParamConstraint Table = 0x2C

	// TableCount is the number of table kinds.
	TableCount = 0x2D

	// TableUserString is the pseudo table number of #US tokens (ldstr).
	TableUserString Table = 0x70
	// TableString is the pseudo table number of #Strings tokens.
	TableString Table = 0x71

	tableNone Table = 0xFF
)

var tableNames = [TableCount]string{
	"Module", "TypeRef", "TypeDef", "FieldPtr", "Field", "MethodPtr", "MethodDef",
	"ParamPtr", "Param", "InterfaceImpl", "MemberRef", "Constant", "CustomAttribute",
	"FieldMarshal", "DeclSecurity", "ClassLayout", "FieldLayout", "StandAloneSig",
	"EventMap", "EventPtr", "Event", "PropertyMap", "PropertyPtr", "Property",
	"MethodSemantics", "MethodImpl", "ModuleRef", "TypeSpec", "ImplMap", "FieldRVA",
	"EncLog", "EncMap", "Assembly", "AssemblyProcessor", "AssemblyOS", "AssemblyRef",
	"AssemblyRefProcessor", "AssemblyRefOS", "File", "ExportedType", "ManifestResource",
	"NestedClass", "GenericParam", "MethodSpec", "GenericParamConstraint",
}

// String returns the ECMA-335 table name.
func (t Table) String() string {
	switch {
	case int(t) < TableCount:
		return tableNames[t]
	case t == TableUserString:
		return "UserString"
	case t == TableString:
		return "String"
	default:
		return "Unknown"
	}
}

// ElementType is a signature element-type tag (ECMA-335 II.23.1.16).
type ElementType byte

// Element types.
const (
	ElementEnd         ElementType = 0x00
	ElementVoid        ElementType = 0x01
	ElementBoolean     ElementType = 0x02
	ElementChar        ElementType = 0x03
	ElementI1          ElementType = 0x04
	ElementU1          ElementType = 0x05
	ElementI2          ElementType = 0x06
	ElementU2          ElementType = 0x07
	ElementI4          ElementType = 0x08
	ElementU4          ElementType = 0x09
	ElementI8          ElementType = 0x0A
	ElementU8          ElementType = 0x0B
	ElementR4          ElementType = 0x0C
	ElementR8          ElementType = 0x0D
	ElementString      ElementType = 0x0E
	ElementPtr         ElementType = 0x0F
	ElementByRef       ElementType = 0x10
	ElementValueType   ElementType = 0x11
	ElementClass       ElementType = 0x12
	ElementVar         ElementType = 0x13
	ElementArray       ElementType = 0x14
	ElementGenericInst ElementType = 0x15
	ElementTypedByRef  ElementType = 0x16
	ElementI           ElementType = 0x18
	ElementU           ElementType = 0x19
	ElementFnPtr       ElementType = 0x1B
	ElementObject      ElementType = 0x1C
	ElementSzArray     ElementType = 0x1D
	ElementMVar        ElementType = 0x1E
	ElementCModReqd    ElementType = 0x1F
	ElementCModOpt     ElementType = 0x20
	ElementInternal    ElementType = 0x21
	ElementModifier    ElementType = 0x40
	ElementSentinel    ElementType = 0x41
	ElementPinned      ElementType = 0x45

	// Custom attribute encodings.
	ElementSystemType ElementType = 0x50
	ElementBoxed      ElementType = 0x51
	ElementField      ElementType = 0x53
	ElementProperty   ElementType = 0x54
	ElementEnum       ElementType = 0x55
)

// Signature calling-convention byte (ECMA-335 II.23.2.1-3).
const (
	SigDefault      byte = 0x00
	SigC            byte = 0x01
	SigStdCall      byte = 0x02
	SigThisCall     byte = 0x03
	SigFastCall     byte = 0x04
	SigVarArg       byte = 0x05
	SigField        byte = 0x06
	SigLocal        byte = 0x07
	SigProperty     byte = 0x08
	SigUnmanaged    byte = 0x09
	SigGenericInst  byte = 0x0A
	SigNativeVarArg byte = 0x0B
	SigKindMask     byte = 0x0F

	SigGeneric      byte = 0x10
	SigHasThis      byte = 0x20
	SigExplicitThis byte = 0x40
)
