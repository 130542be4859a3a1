package metadata

type colKind uint8

const (
	colU16 colKind = iota
	colU32
	colString
	colGUID
	colBlob
	colTable
	colCoded
)

type column struct {
	name  string
	kind  colKind
	table Table
	coded CodedKind
}

func cU16(name string) column { return column{name: name, kind: colU16} }
func cU32(name string) column { return column{name: name, kind: colU32} }
func cStr(name string) column { return column{name: name, kind: colString} }
func cGUID(name string) column { return column{name: name, kind: colGUID} }
func cBlob(name string) column { return column{name: name, kind: colBlob} }
func cIdx(name string, t Table) column { return column{name: name, kind: colTable, table: t} }
func cCoded(name string, k CodedKind) column {
	return column{name: name, kind: colCoded, coded: k}
}

// schema lists the columns of every table (ECMA-335 II.22).
var schema = [TableCount][]column{
	TableModule:                 {cU16("Generation"), cStr("Name"), cGUID("Mvid"), cGUID("EncId"), cGUID("EncBaseId")},
	TableTypeRef:                {cCoded("ResolutionScope", CodedResolutionScope), cStr("TypeName"), cStr("TypeNamespace")},
	TableTypeDef:                {cU32("Flags"), cStr("TypeName"), cStr("TypeNamespace"), cCoded("Extends", CodedTypeDefOrRef), cIdx("FieldList", TableField), cIdx("MethodList", TableMethodDef)},
	TableFieldPtr:               {cIdx("Field", TableField)},
	TableField:                  {cU16("Flags"), cStr("Name"), cBlob("Signature")},
	TableMethodPtr:              {cIdx("Method", TableMethodDef)},
	TableMethodDef:              {cU32("RVA"), cU16("ImplFlags"), cU16("Flags"), cStr("Name"), cBlob("Signature"), cIdx("ParamList", TableParam)},
	TableParamPtr:               {cIdx("Param", TableParam)},
	TableParam:                  {cU16("Flags"), cU16("Sequence"), cStr("Name")},
	TableInterfaceImpl:          {cIdx("Class", TableTypeDef), cCoded("Interface", CodedTypeDefOrRef)},
	TableMemberRef:              {cCoded("Class", CodedMemberRefParent), cStr("Name"), cBlob("Signature")},
	TableConstant:               {cU16("Type"), cCoded("Parent", CodedHasConstant), cBlob("Value")},
	TableCustomAttribute:        {cCoded("Parent", CodedHasCustomAttribute), cCoded("Type", CodedCustomAttributeType), cBlob("Value")},
	TableFieldMarshal:           {cCoded("Parent", CodedHasFieldMarshal), cBlob("NativeType")},
	TableDeclSecurity:           {cU16("Action"), cCoded("Parent", CodedHasDeclSecurity), cBlob("PermissionSet")},
	TableClassLayout:            {cU16("PackingSize"), cU32("ClassSize"), cIdx("Parent", TableTypeDef)},
	TableFieldLayout:            {cU32("Offset"), cIdx("Field", TableField)},
	TableStandAloneSig:          {cBlob("Signature")},
	TableEventMap:               {cIdx("Parent", TableTypeDef), cIdx("EventList", TableEvent)},
	TableEventPtr:               {cIdx("Event", TableEvent)},
	TableEvent:                  {cU16("EventFlags"), cStr("Name"), cCoded("EventType", CodedTypeDefOrRef)},
	TablePropertyMap:            {cIdx("Parent", TableTypeDef), cIdx("PropertyList", TableProperty)},
	TablePropertyPtr:            {cIdx("Property", TableProperty)},
	TableProperty:               {cU16("Flags"), cStr("Name"), cBlob("Type")},
	TableMethodSemantics:        {cU16("Semantics"), cIdx("Method", TableMethodDef), cCoded("Association", CodedHasSemantics)},
	TableMethodImpl:             {cIdx("Class", TableTypeDef), cCoded("MethodBody", CodedMethodDefOrRef), cCoded("MethodDeclaration", CodedMethodDefOrRef)},
	TableModuleRef:              {cStr("Name")},
	TableTypeSpec:               {cBlob("Signature")},
	TableImplMap:                {cU16("MappingFlags"), cCoded("MemberForwarded", CodedMemberForwarded), cStr("ImportName"), cIdx("ImportScope", TableModuleRef)},
	TableFieldRVA:               {cU32("RVA"), cIdx("Field", TableField)},
	TableEncLog:                 {cU32("Token"), cU32("FuncCode")},
	TableEncMap:                 {cU32("Token")},
	TableAssembly:               {cU32("HashAlgId"), cU16("MajorVersion"), cU16("MinorVersion"), cU16("BuildNumber"), cU16("RevisionNumber"), cU32("Flags"), cBlob("PublicKey"), cStr("Name"), cStr("Culture")},
	TableAssemblyProcessor:      {cU32("Processor")},
	TableAssemblyOS:             {cU32("OSPlatformID"), cU32("OSMajorVersion"), cU32("OSMinorVersion")},
	TableAssemblyRef:            {cU16("MajorVersion"), cU16("MinorVersion"), cU16("BuildNumber"), cU16("RevisionNumber"), cU32("Flags"), cBlob("PublicKeyOrToken"), cStr("Name"), cStr("Culture"), cBlob("HashValue")},
	TableAssemblyRefProcessor:   {cU32("Processor"), cIdx("AssemblyRef", TableAssemblyRef)},
	TableAssemblyRefOS:          {cU32("OSPlatformID"), cU32("OSMajorVersion"), cU32("OSMinorVersion"), cIdx("AssemblyRef", TableAssemblyRef)},
	TableFile:                   {cU32("Flags"), cStr("Name"), cBlob("HashValue")},
	TableExportedType:           {cU32("Flags"), cU32("TypeDefId"), cStr("TypeName"), cStr("TypeNamespace"), cCoded("Implementation", CodedImplementation)},
	TableManifestResource:       {cU32("Offset"), cU32("Flags"), cStr("Name"), cCoded("Implementation", CodedImplementation)},
	TableNestedClass:            {cIdx("NestedClass", TableTypeDef), cIdx("EnclosingClass", TableTypeDef)},
	TableGenericParam:           {cU16("Number"), cU16("Flags"), cCoded("Owner", CodedTypeOrMethodDef), cStr("Name")},
	TableMethodSpec:             {cCoded("Method", CodedMethodDefOrRef), cBlob("Instantiation")},
	TableGenericParamConstraint: {cIdx("Owner", TableGenericParam), cCoded("Constraint", CodedTypeDefOrRef)},
}

// Column positions of owner keys used with OwnerRange.
const (
	ColInterfaceImplClass          = 0
	ColConstantParent              = 1
	ColCustomAttributeParent       = 0
	ColFieldMarshalParent          = 0
	ColDeclSecurityParent          = 1
	ColClassLayoutParent           = 2
	ColFieldLayoutField            = 1
	ColEventMapParent              = 0
	ColPropertyMapParent           = 0
	ColMethodSemanticsAssociation  = 2
	ColMethodImplClass             = 0
	ColImplMapMemberForwarded      = 1
	ColFieldRVAField               = 1
	ColNestedClassNested           = 0
	ColGenericParamOwner           = 2
	ColGenericParamConstraintOwner = 0
)

// Columns returns the column names of a table, in row order.
func Columns(t Table) []string {
	if int(t) >= TableCount {
		return nil
	}
	names := make([]string, len(schema[t]))
	for i, c := range schema[t] {
		names[i] = c.name
	}
	return names
}
