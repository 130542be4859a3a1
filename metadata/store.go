package metadata

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
)

// StreamHeader locates one metadata stream inside the metadata root.
type StreamHeader struct {
	Name   string
	Offset uint32
	Size   uint32
}

type tableData struct {
	cols   []column
	wide   []bool
	cells  []uint32
	rows   uint32
	width  int
	offset int
}

// Store holds the decoded metadata of one module: row arrays for every
// table, heap accessors and cursors over the image.
type Store struct {
	image      []byte
	img        *Image
	rootOffset int

	Version      string
	MajorVersion uint16
	MinorVersion uint16
	Streams      []StreamHeader

	TableMajor   uint8
	TableMinor   uint8
	HeapSizes    byte
	Valid        uint64
	Sorted       uint64
	Uncompressed bool

	strings []byte
	blob    []byte
	guid    []byte
	us      []byte

	tables [TableCount]tableData
}

// Open parses a PE/COFF managed image.
func Open(data []byte) (*Store, error) {
	img, err := parseImage(data)
	if err != nil {
		return nil, err
	}
	md := img.CLI.MetaData
	off, err := img.rvaToOffset(md.VirtualAddress, len(data))
	if err != nil {
		return nil, err
	}
	if int(off)+int(md.Size) > len(data) {
		return nil, errors.InvalidMetadata(errors.PhaseImage, "metadata directory extends past end of file")
	}
	s := &Store{image: data, img: img, rootOffset: int(off)}
	if err := s.parseRoot(data[off : off+md.Size]); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenMetadata parses a bare metadata root (starting with the BSJB
// signature) that is not wrapped in a PE container. RVA cursors are not
// available on such a store.
func OpenMetadata(root []byte) (*Store, error) {
	s := &Store{image: root}
	if err := s.parseRoot(root); err != nil {
		return nil, err
	}
	return s, nil
}

// Image returns the PE container description, or nil for bare metadata.
func (s *Store) Image() *Image {
	return s.img
}

// EntryPoint returns the entry point token from the CLI header.
func (s *Store) EntryPoint() Token {
	if s.img == nil {
		return 0
	}
	return s.img.CLI.EntryPointToken
}

func (s *Store) parseRoot(root []byte) error {
	r := binary.NewReaderAt(root, s.rootOffset)

	sig, err := r.ReadU32LE()
	if err != nil {
		return invalid(r.WrapError("metadata root", err))
	}
	if sig != MetadataSignature {
		return errors.InvalidMetadata(errors.PhaseTables, fmt.Sprintf("bad metadata signature 0x%08x", sig))
	}
	if s.MajorVersion, err = r.ReadU16LE(); err != nil {
		return invalid(err)
	}
	if s.MinorVersion, err = r.ReadU16LE(); err != nil {
		return invalid(err)
	}
	if err := r.Skip(4); err != nil {
		return invalid(err)
	}
	vlen, err := r.ReadU32LE()
	if err != nil {
		return invalid(err)
	}
	vbytes, err := r.ReadBytes(int(vlen))
	if err != nil {
		return invalid(r.WrapError("version string", err))
	}
	s.Version = strings.TrimRight(string(vbytes), "\x00")
	if err := r.Skip(2); err != nil { // flags
		return invalid(err)
	}
	count, err := r.ReadU16LE()
	if err != nil {
		return invalid(err)
	}

	for i := 0; i < int(count); i++ {
		var h StreamHeader
		if h.Offset, err = r.ReadU32LE(); err != nil {
			return invalid(r.WrapError("stream header", err))
		}
		if h.Size, err = r.ReadU32LE(); err != nil {
			return invalid(r.WrapError("stream header", err))
		}
		if h.Name, err = r.ReadNullTerminated(); err != nil {
			return invalid(r.WrapError("stream name", err))
		}
		if err := r.Align(4); err != nil {
			return invalid(err)
		}
		if int(h.Offset)+int(h.Size) > len(root) {
			return errors.InvalidMetadata(errors.PhaseTables,
				fmt.Sprintf("stream %s extends past metadata root", h.Name))
		}
		s.Streams = append(s.Streams, h)
	}

	var tables []byte
	for _, h := range s.Streams {
		data := root[h.Offset : h.Offset+h.Size]
		switch h.Name {
		case StreamTables:
			tables = data
		case StreamTablesUncomp:
			tables = data
			s.Uncompressed = true
		case StreamStrings:
			s.strings = data
		case StreamBlob:
			s.blob = data
		case StreamGUID:
			s.guid = data
		case StreamUserStrings:
			s.us = data
		}
	}
	if tables == nil {
		return errors.InvalidMetadata(errors.PhaseTables, "missing table stream")
	}
	return s.parseTables(tables)
}

func (s *Store) parseTables(data []byte) error {
	r := binary.NewReader(data)
	if err := r.Skip(4); err != nil {
		return invalid(err)
	}
	var err error
	if s.TableMajor, err = r.ReadByte(); err != nil {
		return invalid(err)
	}
	if s.TableMinor, err = r.ReadByte(); err != nil {
		return invalid(err)
	}
	if s.HeapSizes, err = r.ReadByte(); err != nil {
		return invalid(err)
	}
	if err := r.Skip(1); err != nil {
		return invalid(err)
	}
	if s.Valid, err = r.ReadU64LE(); err != nil {
		return invalid(err)
	}
	if s.Sorted, err = r.ReadU64LE(); err != nil {
		return invalid(err)
	}

	var rows [TableCount]uint32
	for t := 0; t < 64; t++ {
		if s.Valid&(1<<uint(t)) == 0 {
			continue
		}
		n, err := r.ReadU32LE()
		if err != nil {
			return invalid(r.WrapError("row counts", err))
		}
		if t >= TableCount {
			if n != 0 {
				return errors.InvalidMetadata(errors.PhaseTables, fmt.Sprintf("unknown table 0x%02x present", t))
			}
			continue
		}
		rows[t] = n
	}
	if s.HeapSizes&HeapExtraData != 0 {
		if err := r.Skip(4); err != nil {
			return invalid(err)
		}
	}

	for t := Table(0); t < TableCount; t++ {
		td := &s.tables[t]
		td.cols = schema[t]
		td.rows = rows[t]
		td.wide = make([]bool, len(td.cols))
		for i, c := range td.cols {
			w := columnWidth(c, &rows, s.HeapSizes)
			td.wide[i] = w == 4
			td.width += w
		}
	}

	for t := Table(0); t < TableCount; t++ {
		td := &s.tables[t]
		if td.rows == 0 {
			continue
		}
		td.offset = r.Position()
		size := int(td.rows) * td.width
		if r.Len() < size {
			return errors.InvalidMetadata(errors.PhaseTables,
				fmt.Sprintf("table %s truncated: need %d bytes, have %d", t, size, r.Len()))
		}
		td.cells = make([]uint32, int(td.rows)*len(td.cols))
		k := 0
		for row := uint32(0); row < td.rows; row++ {
			for i := range td.cols {
				v, err := r.ReadIndex(td.wide[i])
				if err != nil {
					return invalid(r.WrapError(t.String(), err))
				}
				td.cells[k] = v
				k++
			}
		}
	}
	return nil
}

// ColumnWidths returns the byte width of every column of t given the row
// counts of all tables and the heap-size flags.
func ColumnWidths(t Table, rows *[TableCount]uint32, heapSizes byte) []int {
	if int(t) >= TableCount {
		return nil
	}
	widths := make([]int, len(schema[t]))
	for i, c := range schema[t] {
		widths[i] = columnWidth(c, rows, heapSizes)
	}
	return widths
}

func columnWidth(c column, rows *[TableCount]uint32, heapSizes byte) int {
	switch c.kind {
	case colU16:
		return 2
	case colU32:
		return 4
	case colString:
		return heapWidth(heapSizes & HeapStringsWide)
	case colGUID:
		return heapWidth(heapSizes & HeapGUIDWide)
	case colBlob:
		return heapWidth(heapSizes & HeapBlobWide)
	case colTable:
		if rows[c.table] > 0xFFFF {
			return 4
		}
		return 2
	case colCoded:
		if codedWide(c.coded, rows) {
			return 4
		}
		return 2
	}
	return 2
}

func heapWidth(flag byte) int {
	if flag != 0 {
		return 4
	}
	return 2
}

// RowCount returns the number of rows of a table.
func (s *Store) RowCount(t Table) uint32 {
	if int(t) >= TableCount {
		return 0
	}
	return s.tables[t].rows
}

// IsSorted reports whether the sorted bit of a table is set.
func (s *Store) IsSorted(t Table) bool {
	return s.Sorted&(1<<uint(t)) != 0
}

// PresentTables returns the number of tables with the valid bit set.
func (s *Store) PresentTables() int {
	return bits.OnesCount64(s.Valid)
}

// RowSize returns the decoded byte width of one row of a table.
func (s *Store) RowSize(t Table) int {
	return s.tables[t].width
}

// Row returns the raw cells of a row. rid is 1-based.
func (s *Store) Row(t Table, rid uint32) ([]uint32, error) {
	if int(t) >= TableCount {
		return nil, errors.BadTableIndex(errors.PhaseTables, t.String(), int(rid), 0)
	}
	td := &s.tables[t]
	if rid == 0 || rid > td.rows {
		return nil, errors.BadTableIndex(errors.PhaseTables, t.String(), int(rid), int(td.rows))
	}
	n := len(td.cols)
	start := int(rid-1) * n
	return td.cells[start : start+n], nil
}

// cell returns one column of a row without bounds reporting; callers check
// rid against RowCount first.
func (s *Store) cell(t Table, rid uint32, col int) uint32 {
	td := &s.tables[t]
	return td.cells[int(rid-1)*len(td.cols)+col]
}

// GetString returns the #Strings heap entry at index.
func (s *Store) GetString(index uint32) (string, error) {
	if index == 0 {
		return "", nil
	}
	if int(index) >= len(s.strings) {
		return "", errors.BadTableIndex(errors.PhaseHeap, StreamStrings, int(index), len(s.strings))
	}
	r := binary.NewReader(s.strings)
	_ = r.Seek(int(index))
	str, err := r.ReadNullTerminated()
	if err != nil {
		return "", errors.Wrap(errors.PhaseHeap, errors.KindInvalidMetadata, err, "unterminated string")
	}
	return str, nil
}

// GetBlob returns the #Blob heap entry at index. The result aliases the image.
func (s *Store) GetBlob(index uint32) ([]byte, error) {
	if index == 0 {
		return nil, nil
	}
	if int(index) >= len(s.blob) {
		return nil, errors.BadTableIndex(errors.PhaseHeap, StreamBlob, int(index), len(s.blob))
	}
	r := binary.NewReader(s.blob)
	_ = r.Seek(int(index))
	n, err := r.ReadCompressedU32()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHeap, errors.KindInvalidMetadata, err, "blob length")
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHeap, errors.KindInvalidMetadata, err, "blob data")
	}
	return b, nil
}

// BlobCursor returns a cursor over the blob at index.
func (s *Store) BlobCursor(index uint32) (*binary.Reader, error) {
	b, err := s.GetBlob(index)
	if err != nil {
		return nil, err
	}
	return binary.NewReader(b), nil
}

// GetGUID returns the #GUID heap entry at the 1-based index. The on-disk
// layout stores the first three groups little-endian; the result is in
// RFC 4122 byte order.
func (s *Store) GetGUID(index uint32) (uuid.UUID, error) {
	if index == 0 {
		return uuid.Nil, nil
	}
	off := int(index-1) * 16
	if off+16 > len(s.guid) {
		return uuid.Nil, errors.BadTableIndex(errors.PhaseHeap, StreamGUID, int(index), len(s.guid)/16)
	}
	var raw [16]byte
	copy(raw[:], s.guid[off:off+16])
	raw[0], raw[1], raw[2], raw[3] = raw[3], raw[2], raw[1], raw[0]
	raw[4], raw[5] = raw[5], raw[4]
	raw[6], raw[7] = raw[7], raw[6]
	return uuid.FromBytes(raw[:])
}

// GetUserString returns the #US heap entry at index decoded from UTF-16LE.
func (s *Store) GetUserString(index uint32) (string, error) {
	if index == 0 {
		return "", nil
	}
	if int(index) >= len(s.us) {
		return "", errors.BadTableIndex(errors.PhaseHeap, StreamUserStrings, int(index), len(s.us))
	}
	r := binary.NewReader(s.us)
	_ = r.Seek(int(index))
	n, err := r.ReadCompressedU32()
	if err != nil {
		return "", errors.Wrap(errors.PhaseHeap, errors.KindInvalidMetadata, err, "user string length")
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", errors.Wrap(errors.PhaseHeap, errors.KindInvalidMetadata, err, "user string data")
	}
	// An odd length carries a trailing flag byte.
	b = b[:len(b)&^1]
	return DecodeUTF16(b)
}

// DecodeUTF16 decodes little-endian UTF-16 without a byte order mark.
func DecodeUTF16(b []byte) (string, error) {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(errors.PhaseHeap, errors.KindInvalidMetadata, err, "decode UTF-16")
	}
	return string(out), nil
}

// Cursor returns a cursor over the image positioned at a file offset.
func (s *Store) Cursor(offset uint32) (*binary.Reader, error) {
	r := binary.NewReader(s.image)
	if err := r.Seek(int(offset)); err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidMetadata, err, "position cursor")
	}
	return r, nil
}

// CursorAtRVA returns a cursor over the image positioned at the file
// offset an RVA maps to.
func (s *Store) CursorAtRVA(rva uint32) (*binary.Reader, error) {
	if s.img == nil {
		return nil, errors.Unsupported(errors.PhaseImage, "RVA cursor on bare metadata")
	}
	off, err := s.img.rvaToOffset(rva, len(s.image))
	if err != nil {
		return nil, err
	}
	return s.Cursor(off)
}

func invalid(err error) error {
	return errors.Wrap(errors.PhaseTables, errors.KindInvalidMetadata, err, "malformed metadata")
}
