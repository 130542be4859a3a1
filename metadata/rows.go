package metadata

import "github.com/google/uuid"

// ModuleRow is a row of the Module table.
type ModuleRow struct {
	Generation uint16
	Name       string
	Mvid       uuid.UUID
}

// TypeRefRow is a row of the TypeRef table.
type TypeRefRow struct {
	ResolutionScope Token
	Name            string
	Namespace       string
}

// TypeDefRow is a row of the TypeDef table.
type TypeDefRow struct {
	Flags      uint32
	Name       string
	Namespace  string
	Extends    Token
	FieldList  uint32
	MethodList uint32
}

// FieldRow is a row of the Field table.
type FieldRow struct {
	Flags     uint16
	Name      string
	Signature uint32
}

// MethodDefRow is a row of the MethodDef table.
type MethodDefRow struct {
	RVA       uint32
	ImplFlags uint16
	Flags     uint16
	Name      string
	Signature uint32
	ParamList uint32
}

// ParamRow is a row of the Param table.
type ParamRow struct {
	Flags    uint16
	Sequence uint16
	Name     string
}

// InterfaceImplRow is a row of the InterfaceImpl table.
type InterfaceImplRow struct {
	Class     uint32
	Interface Token
}

// MemberRefRow is a row of the MemberRef table.
type MemberRefRow struct {
	Class     Token
	Name      string
	Signature uint32
}

// ConstantRow is a row of the Constant table.
type ConstantRow struct {
	Type   ElementType
	Parent Token
	Value  uint32
}

// CustomAttributeRow is a row of the CustomAttribute table.
type CustomAttributeRow struct {
	Parent Token
	Type   Token
	Value  uint32
}

// FieldMarshalRow is a row of the FieldMarshal table.
type FieldMarshalRow struct {
	Parent     Token
	NativeType uint32
}

// DeclSecurityRow is a row of the DeclSecurity table.
type DeclSecurityRow struct {
	Action        uint16
	Parent        Token
	PermissionSet uint32
}

// ClassLayoutRow is a row of the ClassLayout table.
type ClassLayoutRow struct {
	PackingSize uint16
	ClassSize   uint32
	Parent      uint32
}

// EventRow is a row of the Event table.
type EventRow struct {
	Flags     uint16
	Name      string
	EventType Token
}

// PropertyRow is a row of the Property table.
type PropertyRow struct {
	Flags     uint16
	Name      string
	Signature uint32
}

// MethodSemanticsRow is a row of the MethodSemantics table.
type MethodSemanticsRow struct {
	Semantics   uint16
	Method      uint32
	Association Token
}

// MethodImplRow is a row of the MethodImpl table.
type MethodImplRow struct {
	Class       uint32
	Body        Token
	Declaration Token
}

// ImplMapRow is a row of the ImplMap table.
type ImplMapRow struct {
	Flags       uint16
	Member      Token
	ImportName  string
	ImportScope uint32
}

// AssemblyRow is a row of the Assembly table.
type AssemblyRow struct {
	HashAlgID uint32
	Version   [4]uint16
	Flags     uint32
	PublicKey uint32
	Name      string
	Culture   string
}

// AssemblyRefRow is a row of the AssemblyRef table.
type AssemblyRefRow struct {
	Version          [4]uint16
	Flags            uint32
	PublicKeyOrToken uint32
	Name             string
	Culture          string
	HashValue        uint32
}

// ExportedTypeRow is a row of the ExportedType table.
type ExportedTypeRow struct {
	Flags          uint32
	TypeDefID      uint32
	Name           string
	Namespace      string
	Implementation Token
}

// ManifestResourceRow is a row of the ManifestResource table.
type ManifestResourceRow struct {
	Offset         uint32
	Flags          uint32
	Name           string
	Implementation Token
}

// GenericParamRow is a row of the GenericParam table.
type GenericParamRow struct {
	Number uint16
	Flags  uint16
	Owner  Token
	Name   string
}

// MethodSpecRow is a row of the MethodSpec table.
type MethodSpecRow struct {
	Method        Token
	Instantiation uint32
}

// GenericParamConstraintRow is a row of the GenericParamConstraint table.
type GenericParamConstraintRow struct {
	Owner      uint32
	Constraint Token
}

// rowReader decodes cells of one row, latching the first error.
type rowReader struct {
	s     *Store
	cells []uint32
	err   error
}

func (s *Store) row(t Table, rid uint32) *rowReader {
	cells, err := s.Row(t, rid)
	return &rowReader{s: s, cells: cells, err: err}
}

func (r *rowReader) u32(i int) uint32 {
	if r.err != nil {
		return 0
	}
	return r.cells[i]
}

func (r *rowReader) u16(i int) uint16 {
	return uint16(r.u32(i))
}

func (r *rowReader) str(i int) string {
	if r.err != nil {
		return ""
	}
	v, err := r.s.GetString(r.cells[i])
	if err != nil {
		r.err = err
	}
	return v
}

func (r *rowReader) guid(i int) uuid.UUID {
	if r.err != nil {
		return uuid.Nil
	}
	v, err := r.s.GetGUID(r.cells[i])
	if err != nil {
		r.err = err
	}
	return v
}

func (r *rowReader) coded(i int, k CodedKind) Token {
	if r.err != nil {
		return 0
	}
	v, err := DecodeCoded(k, r.cells[i])
	if err != nil {
		r.err = err
	}
	return v
}

// Module returns the Module row (there is exactly one).
func (s *Store) Module() (ModuleRow, error) {
	r := s.row(TableModule, 1)
	row := ModuleRow{Generation: r.u16(0), Name: r.str(1), Mvid: r.guid(2)}
	return row, r.err
}

// TypeRef returns a TypeRef row.
func (s *Store) TypeRef(rid uint32) (TypeRefRow, error) {
	r := s.row(TableTypeRef, rid)
	row := TypeRefRow{
		ResolutionScope: r.coded(0, CodedResolutionScope),
		Name:            r.str(1),
		Namespace:       r.str(2),
	}
	return row, r.err
}

// TypeDef returns a TypeDef row.
func (s *Store) TypeDef(rid uint32) (TypeDefRow, error) {
	r := s.row(TableTypeDef, rid)
	row := TypeDefRow{
		Flags:      r.u32(0),
		Name:       r.str(1),
		Namespace:  r.str(2),
		Extends:    r.coded(3, CodedTypeDefOrRef),
		FieldList:  r.u32(4),
		MethodList: r.u32(5),
	}
	return row, r.err
}

// Field returns a Field row.
func (s *Store) Field(rid uint32) (FieldRow, error) {
	r := s.row(TableField, rid)
	row := FieldRow{Flags: r.u16(0), Name: r.str(1), Signature: r.u32(2)}
	return row, r.err
}

// MethodDef returns a MethodDef row.
func (s *Store) MethodDef(rid uint32) (MethodDefRow, error) {
	r := s.row(TableMethodDef, rid)
	row := MethodDefRow{
		RVA:       r.u32(0),
		ImplFlags: r.u16(1),
		Flags:     r.u16(2),
		Name:      r.str(3),
		Signature: r.u32(4),
		ParamList: r.u32(5),
	}
	return row, r.err
}

// Param returns a Param row.
func (s *Store) Param(rid uint32) (ParamRow, error) {
	r := s.row(TableParam, rid)
	row := ParamRow{Flags: r.u16(0), Sequence: r.u16(1), Name: r.str(2)}
	return row, r.err
}

// InterfaceImpl returns an InterfaceImpl row.
func (s *Store) InterfaceImpl(rid uint32) (InterfaceImplRow, error) {
	r := s.row(TableInterfaceImpl, rid)
	row := InterfaceImplRow{Class: r.u32(0), Interface: r.coded(1, CodedTypeDefOrRef)}
	return row, r.err
}

// MemberRef returns a MemberRef row.
func (s *Store) MemberRef(rid uint32) (MemberRefRow, error) {
	r := s.row(TableMemberRef, rid)
	row := MemberRefRow{Class: r.coded(0, CodedMemberRefParent), Name: r.str(1), Signature: r.u32(2)}
	return row, r.err
}

// Constant returns a Constant row. Only the low byte of the type column
// is significant.
func (s *Store) Constant(rid uint32) (ConstantRow, error) {
	r := s.row(TableConstant, rid)
	row := ConstantRow{
		Type:   ElementType(r.u32(0) & 0xFF),
		Parent: r.coded(1, CodedHasConstant),
		Value:  r.u32(2),
	}
	return row, r.err
}

// CustomAttribute returns a CustomAttribute row.
func (s *Store) CustomAttribute(rid uint32) (CustomAttributeRow, error) {
	r := s.row(TableCustomAttribute, rid)
	row := CustomAttributeRow{
		Parent: r.coded(0, CodedHasCustomAttribute),
		Type:   r.coded(1, CodedCustomAttributeType),
		Value:  r.u32(2),
	}
	return row, r.err
}

// FieldMarshal returns a FieldMarshal row.
func (s *Store) FieldMarshal(rid uint32) (FieldMarshalRow, error) {
	r := s.row(TableFieldMarshal, rid)
	row := FieldMarshalRow{Parent: r.coded(0, CodedHasFieldMarshal), NativeType: r.u32(1)}
	return row, r.err
}

// DeclSecurity returns a DeclSecurity row.
func (s *Store) DeclSecurity(rid uint32) (DeclSecurityRow, error) {
	r := s.row(TableDeclSecurity, rid)
	row := DeclSecurityRow{
		Action:        r.u16(0),
		Parent:        r.coded(1, CodedHasDeclSecurity),
		PermissionSet: r.u32(2),
	}
	return row, r.err
}

// ClassLayout returns a ClassLayout row.
func (s *Store) ClassLayout(rid uint32) (ClassLayoutRow, error) {
	r := s.row(TableClassLayout, rid)
	row := ClassLayoutRow{PackingSize: r.u16(0), ClassSize: r.u32(1), Parent: r.u32(2)}
	return row, r.err
}

// FieldLayoutOffset returns the explicit offset of a FieldLayout row.
func (s *Store) FieldLayoutOffset(rid uint32) (uint32, error) {
	r := s.row(TableFieldLayout, rid)
	return r.u32(0), r.err
}

// FieldRVA returns the RVA column of a FieldRVA row.
func (s *Store) FieldRVA(rid uint32) (uint32, error) {
	r := s.row(TableFieldRVA, rid)
	return r.u32(0), r.err
}

// StandAloneSig returns the signature blob index of a StandAloneSig row.
func (s *Store) StandAloneSig(rid uint32) (uint32, error) {
	r := s.row(TableStandAloneSig, rid)
	return r.u32(0), r.err
}

// Event returns an Event row.
func (s *Store) Event(rid uint32) (EventRow, error) {
	r := s.row(TableEvent, rid)
	row := EventRow{Flags: r.u16(0), Name: r.str(1), EventType: r.coded(2, CodedTypeDefOrRef)}
	return row, r.err
}

// Property returns a Property row.
func (s *Store) Property(rid uint32) (PropertyRow, error) {
	r := s.row(TableProperty, rid)
	row := PropertyRow{Flags: r.u16(0), Name: r.str(1), Signature: r.u32(2)}
	return row, r.err
}

// MethodSemantics returns a MethodSemantics row.
func (s *Store) MethodSemantics(rid uint32) (MethodSemanticsRow, error) {
	r := s.row(TableMethodSemantics, rid)
	row := MethodSemanticsRow{
		Semantics:   r.u16(0),
		Method:      r.u32(1),
		Association: r.coded(2, CodedHasSemantics),
	}
	return row, r.err
}

// MethodImpl returns a MethodImpl row.
func (s *Store) MethodImpl(rid uint32) (MethodImplRow, error) {
	r := s.row(TableMethodImpl, rid)
	row := MethodImplRow{
		Class:       r.u32(0),
		Body:        r.coded(1, CodedMethodDefOrRef),
		Declaration: r.coded(2, CodedMethodDefOrRef),
	}
	return row, r.err
}

// ModuleRef returns the name of a ModuleRef row.
func (s *Store) ModuleRef(rid uint32) (string, error) {
	r := s.row(TableModuleRef, rid)
	name := r.str(0)
	return name, r.err
}

// TypeSpec returns the signature blob index of a TypeSpec row.
func (s *Store) TypeSpec(rid uint32) (uint32, error) {
	r := s.row(TableTypeSpec, rid)
	return r.u32(0), r.err
}

// ImplMap returns an ImplMap row.
func (s *Store) ImplMap(rid uint32) (ImplMapRow, error) {
	r := s.row(TableImplMap, rid)
	row := ImplMapRow{
		Flags:       r.u16(0),
		Member:      r.coded(1, CodedMemberForwarded),
		ImportName:  r.str(2),
		ImportScope: r.u32(3),
	}
	return row, r.err
}

// Assembly returns the Assembly row. The second result is false when the
// module carries no manifest.
func (s *Store) Assembly() (AssemblyRow, bool, error) {
	if s.RowCount(TableAssembly) == 0 {
		return AssemblyRow{}, false, nil
	}
	r := s.row(TableAssembly, 1)
	row := AssemblyRow{
		HashAlgID: r.u32(0),
		Version:   [4]uint16{r.u16(1), r.u16(2), r.u16(3), r.u16(4)},
		Flags:     r.u32(5),
		PublicKey: r.u32(6),
		Name:      r.str(7),
		Culture:   r.str(8),
	}
	return row, true, r.err
}

// AssemblyRef returns an AssemblyRef row.
func (s *Store) AssemblyRef(rid uint32) (AssemblyRefRow, error) {
	r := s.row(TableAssemblyRef, rid)
	row := AssemblyRefRow{
		Version:          [4]uint16{r.u16(0), r.u16(1), r.u16(2), r.u16(3)},
		Flags:            r.u32(4),
		PublicKeyOrToken: r.u32(5),
		Name:             r.str(6),
		Culture:          r.str(7),
		HashValue:        r.u32(8),
	}
	return row, r.err
}

// ExportedType returns an ExportedType row.
func (s *Store) ExportedType(rid uint32) (ExportedTypeRow, error) {
	r := s.row(TableExportedType, rid)
	row := ExportedTypeRow{
		Flags:          r.u32(0),
		TypeDefID:      r.u32(1),
		Name:           r.str(2),
		Namespace:      r.str(3),
		Implementation: r.coded(4, CodedImplementation),
	}
	return row, r.err
}

// ManifestResource returns a ManifestResource row.
func (s *Store) ManifestResource(rid uint32) (ManifestResourceRow, error) {
	r := s.row(TableManifestResource, rid)
	row := ManifestResourceRow{
		Offset:         r.u32(0),
		Flags:          r.u32(1),
		Name:           r.str(2),
		Implementation: r.coded(3, CodedImplementation),
	}
	return row, r.err
}

// NestedClass returns the nested and enclosing TypeDef RIDs of a NestedClass row.
func (s *Store) NestedClass(rid uint32) (nested, enclosing uint32, err error) {
	r := s.row(TableNestedClass, rid)
	return r.u32(0), r.u32(1), r.err
}

// GenericParam returns a GenericParam row.
func (s *Store) GenericParam(rid uint32) (GenericParamRow, error) {
	r := s.row(TableGenericParam, rid)
	row := GenericParamRow{
		Number: r.u16(0),
		Flags:  r.u16(1),
		Owner:  r.coded(2, CodedTypeOrMethodDef),
		Name:   r.str(3),
	}
	return row, r.err
}

// MethodSpec returns a MethodSpec row.
func (s *Store) MethodSpec(rid uint32) (MethodSpecRow, error) {
	r := s.row(TableMethodSpec, rid)
	row := MethodSpecRow{Method: r.coded(0, CodedMethodDefOrRef), Instantiation: r.u32(1)}
	return row, r.err
}

// GenericParamConstraint returns a GenericParamConstraint row.
func (s *Store) GenericParamConstraint(rid uint32) (GenericParamConstraintRow, error) {
	r := s.row(TableGenericParamConstraint, rid)
	row := GenericParamConstraintRow{Owner: r.u32(0), Constraint: r.coded(1, CodedTypeDefOrRef)}
	return row, r.err
}
