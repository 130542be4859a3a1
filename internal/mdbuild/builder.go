// Package mdbuild assembles ECMA-335 metadata and PE images for tests.
//
// A Builder accumulates heap entries, table rows and method bodies, then
// emits either a bare metadata root (Metadata) or a minimal PE32 image
// (Image) that metadata.Open accepts.
package mdbuild

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
)

// Builder accumulates metadata for one module.
type Builder struct {
	// Version is the runtime version string of the metadata root.
	Version string
	// EntryPoint is written to the CLI header.
	EntryPoint metadata.Token
	// Uncompressed emits the table stream as "#-" instead of "#~".
	Uncompressed bool

	strings   *binary.Writer
	stringIdx map[string]uint32
	blob      *binary.Writer
	blobIdx   map[string]uint32
	us        *binary.Writer
	guids     []uuid.UUID

	rows     [metadata.TableCount][][]uint32
	unsorted [metadata.TableCount]bool

	bodies *binary.Writer
}

// New returns an empty Builder.
func New() *Builder {
	b := &Builder{
		Version:   "v4.0.30319",
		strings:   binary.NewWriter(),
		stringIdx: map[string]uint32{"": 0},
		blob:      binary.NewWriter(),
		blobIdx:   map[string]uint32{},
		us:        binary.NewWriter(),
		bodies:    binary.NewWriter(),
	}
	b.strings.Byte(0)
	b.blob.Byte(0)
	b.us.Byte(0)
	return b
}

// String interns s in the #Strings heap.
func (b *Builder) String(s string) uint32 {
	if idx, ok := b.stringIdx[s]; ok {
		return idx
	}
	idx := uint32(b.strings.Len())
	b.strings.WriteBytes([]byte(s))
	b.strings.Byte(0)
	b.stringIdx[s] = idx
	return idx
}

// Blob interns data in the #Blob heap. A nil blob is index 0.
func (b *Builder) Blob(data []byte) uint32 {
	if data == nil {
		return 0
	}
	if idx, ok := b.blobIdx[string(data)]; ok {
		return idx
	}
	idx := uint32(b.blob.Len())
	b.blob.CompressedU32(uint32(len(data)))
	b.blob.WriteBytes(data)
	b.blobIdx[string(data)] = idx
	return idx
}

// GUID appends u to the #GUID heap and returns its 1-based index.
func (b *Builder) GUID(u uuid.UUID) uint32 {
	b.guids = append(b.guids, u)
	return uint32(len(b.guids))
}

// UserString appends s to the #US heap and returns its offset.
func (b *Builder) UserString(s string) uint32 {
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("mdbuild: encode user string: %v", err))
	}
	var flag byte
	for _, r := range s {
		if r >= 0x80 {
			flag = 1
			break
		}
	}
	idx := uint32(b.us.Len())
	b.us.CompressedU32(uint32(len(enc) + 1))
	b.us.WriteBytes(enc)
	b.us.Byte(flag)
	return idx
}

// AddRow appends a raw row to t and returns its token.
func (b *Builder) AddRow(t metadata.Table, cells ...uint32) metadata.Token {
	if want := len(metadata.Columns(t)); len(cells) != want {
		panic(fmt.Sprintf("mdbuild: %s row has %d cells, want %d", t, len(cells), want))
	}
	b.rows[t] = append(b.rows[t], cells)
	return metadata.NewToken(t, uint32(len(b.rows[t])))
}

// RowCount returns the rows added to t so far.
func (b *Builder) RowCount(t metadata.Table) uint32 {
	return uint32(len(b.rows[t]))
}

// Unsorted clears the sorted bit of t even when its rows are in key order.
func (b *Builder) Unsorted(t metadata.Table) {
	b.unsorted[t] = true
}

// Body appends an encoded method body and returns its RVA in Image output.
func (b *Builder) Body(body []byte) uint32 {
	b.bodies.Align(4)
	rva := textRVA + cliHeaderSize + uint32(b.bodies.Len())
	b.bodies.WriteBytes(body)
	return rva
}

// Coded encodes tok as a coded index of kind and panics on a mismatch.
func Coded(kind metadata.CodedKind, tok metadata.Token) uint32 {
	v, ok := metadata.EncodeCoded(kind, tok)
	if !ok {
		panic(fmt.Sprintf("mdbuild: %s is not a %s", tok, kind))
	}
	return v
}

// sortKeys lists the key column of tables that ECMA-335 requires sorted.
var sortKeys = map[metadata.Table]int{
	metadata.TableInterfaceImpl:          metadata.ColInterfaceImplClass,
	metadata.TableConstant:               metadata.ColConstantParent,
	metadata.TableCustomAttribute:        metadata.ColCustomAttributeParent,
	metadata.TableFieldMarshal:           metadata.ColFieldMarshalParent,
	metadata.TableDeclSecurity:           metadata.ColDeclSecurityParent,
	metadata.TableClassLayout:            metadata.ColClassLayoutParent,
	metadata.TableFieldLayout:            metadata.ColFieldLayoutField,
	metadata.TableMethodSemantics:        metadata.ColMethodSemanticsAssociation,
	metadata.TableMethodImpl:             metadata.ColMethodImplClass,
	metadata.TableImplMap:                metadata.ColImplMapMemberForwarded,
	metadata.TableFieldRVA:               metadata.ColFieldRVAField,
	metadata.TableNestedClass:            metadata.ColNestedClassNested,
	metadata.TableGenericParam:           metadata.ColGenericParamOwner,
	metadata.TableGenericParamConstraint: metadata.ColGenericParamConstraintOwner,
}

// sortedMask sets the sorted bit of every key-sorted table whose rows are
// in non-decreasing key order.
func (b *Builder) sortedMask() uint64 {
	var mask uint64
	for t, col := range sortKeys {
		if b.unsorted[t] {
			continue
		}
		ordered := true
		for i := 1; i < len(b.rows[t]); i++ {
			if b.rows[t][i][col] < b.rows[t][i-1][col] {
				ordered = false
				break
			}
		}
		if ordered {
			mask |= 1 << uint(t)
		}
	}
	return mask
}

func (b *Builder) heapSizes() byte {
	var f byte
	if b.strings.Len() > 0xFFFF {
		f |= metadata.HeapStringsWide
	}
	if len(b.guids) > 0xFFFF {
		f |= metadata.HeapGUIDWide
	}
	if b.blob.Len() > 0xFFFF {
		f |= metadata.HeapBlobWide
	}
	return f
}

func (b *Builder) tableStream() []byte {
	w := binary.NewWriter()
	w.U32(0)
	w.Byte(2)
	w.Byte(0)
	heaps := b.heapSizes()
	w.Byte(heaps)
	w.Byte(1)

	var rows [metadata.TableCount]uint32
	var valid uint64
	for t := range b.rows {
		rows[t] = uint32(len(b.rows[t]))
		if rows[t] > 0 {
			valid |= 1 << uint(t)
		}
	}
	w.U64(valid)
	w.U64(b.sortedMask())
	for t := range rows {
		if rows[t] > 0 {
			w.U32(rows[t])
		}
	}
	for t := metadata.Table(0); t < metadata.TableCount; t++ {
		widths := metadata.ColumnWidths(t, &rows, heaps)
		for _, row := range b.rows[t] {
			for i, v := range row {
				w.Index(v, widths[i] == 4)
			}
		}
	}
	w.Align(4)
	return w.Bytes()
}

type stream struct {
	name string
	data []byte
}

// Metadata returns the metadata root with all streams.
func (b *Builder) Metadata() []byte {
	guid := binary.NewWriter()
	for _, g := range b.guids {
		raw := g
		raw[0], raw[1], raw[2], raw[3] = raw[3], raw[2], raw[1], raw[0]
		raw[4], raw[5] = raw[5], raw[4]
		raw[6], raw[7] = raw[7], raw[6]
		guid.WriteBytes(raw[:])
	}
	tablesName := metadata.StreamTables
	if b.Uncompressed {
		tablesName = metadata.StreamTablesUncomp
	}
	streams := []stream{
		{tablesName, b.tableStream()},
		{metadata.StreamStrings, padded(b.strings.Bytes())},
		{metadata.StreamUserStrings, padded(b.us.Bytes())},
		{metadata.StreamGUID, guid.Bytes()},
		{metadata.StreamBlob, padded(b.blob.Bytes())},
	}

	version := []byte(b.Version)
	version = append(version, 0)
	for len(version)%4 != 0 {
		version = append(version, 0)
	}

	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		headerSize += 8 + align4(len(s.name)+1)
	}

	w := binary.NewWriter()
	w.U32(metadata.MetadataSignature)
	w.U16(1)
	w.U16(1)
	w.U32(0)
	w.U32(uint32(len(version)))
	w.WriteBytes(version)
	w.U16(0)
	w.U16(uint16(len(streams)))
	offset := headerSize
	for _, s := range streams {
		w.U32(uint32(offset))
		w.U32(uint32(len(s.data)))
		w.WriteBytes([]byte(s.name))
		w.Byte(0)
		w.Align(4)
		offset += len(s.data)
	}
	for _, s := range streams {
		w.WriteBytes(s.data)
	}
	return w.Bytes()
}

func padded(b []byte) []byte {
	out := append([]byte(nil), b...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func align4(n int) int {
	return (n + 3) &^ 3
}
