package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// Errors returned by Reader.
var (
	ErrTruncated          = errors.New("unexpected end of data")
	ErrSeekOutOfRange     = errors.New("seek out of range")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 string")
	errNegativeReadLength = errors.New("negative read length")
)

// NullLength is the compressed-length byte that marks a null SerString or a
// null array in custom attribute blobs.
const NullLength byte = 0xFF

// Reader is a repositionable little-endian cursor over a byte slice with
// position tracking and ECMA-335 specific read methods.
type Reader struct {
	data []byte
	pos  int
	base int
}

// NewReader creates a Reader over data starting at position 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// NewReaderAt creates a Reader whose reported positions are offset by base.
// It is used for cursors over a sub-slice of a larger image so that errors
// report file offsets.
func NewReaderAt(data []byte, base int) *Reader {
	return &Reader{data: data, base: base}
}

// Position returns the current byte position relative to the start of data.
func (r *Reader) Position() int {
	return r.pos
}

// Offset returns the current position including the base offset.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Size returns the total length of the underlying data.
func (r *Reader) Size() int {
	return len(r.data)
}

// Seek moves to an absolute position relative to the start of data.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return r.wrapError(ErrSeekOutOfRange)
	}
	r.pos = pos
	return nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	return r.Seek(r.pos + n)
}

// Align advances to the next multiple of n relative to the start of data.
func (r *Reader) Align(n int) error {
	if rem := r.pos % n; rem != 0 {
		return r.Skip(n - rem)
	}
	return nil
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.wrapError(ErrTruncated)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without advancing.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.wrapError(ErrTruncated)
	}
	return r.data[r.pos], nil
}

// ReadBytes returns the next n bytes. The result aliases the underlying data.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, r.wrapError(errNegativeReadLength)
	}
	if r.pos+n > len(r.data) {
		return nil, r.wrapError(ErrTruncated)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU16LE reads a little-endian uint16.
func (r *Reader) ReadU16LE() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadU32LE reads a little-endian uint32.
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64LE reads a little-endian uint64.
func (r *Reader) ReadU64LE() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadF32 reads a little-endian IEEE 754 float32.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads a little-endian IEEE 754 float64.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64LE()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadIndex reads a 2-byte or 4-byte table or heap index.
func (r *Reader) ReadIndex(wide bool) (uint32, error) {
	if wide {
		return r.ReadU32LE()
	}
	v, err := r.ReadU16LE()
	return uint32(v), err
}

// ReadCompressedU32 reads an unsigned compressed integer. The width is
// selected by the leading bits of the first byte: 0 selects one byte,
// 10 two bytes and 11 four bytes.
func (r *Reader) ReadCompressedU32() (uint32, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	default:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	}
}

// ReadCompressedI32 reads a signed compressed integer. The sign is stored
// in the least significant bit of the unsigned encoding.
func (r *Reader) ReadCompressedI32() (int32, error) {
	start := r.pos
	u, err := r.ReadCompressedU32()
	if err != nil {
		return 0, err
	}
	v := int32(u >> 1)
	if u&1 == 0 {
		return v, nil
	}
	switch r.pos - start {
	case 1:
		return v - 0x40, nil
	case 2:
		return v - 0x2000, nil
	default:
		return v - 0x10000000, nil
	}
}

// ReadSerString reads a length-prefixed UTF-8 string as used in custom
// attribute blobs. A 0xFF length byte denotes a null string, reported with
// ok == false.
func (r *Reader) ReadSerString() (s string, ok bool, err error) {
	b, err := r.PeekByte()
	if err != nil {
		return "", false, err
	}
	if b == NullLength {
		r.pos++
		return "", false, nil
	}
	n, err := r.ReadCompressedU32()
	if err != nil {
		return "", false, err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return "", false, err
	}
	if !utf8.Valid(data) {
		return "", false, r.wrapError(ErrInvalidUTF8)
	}
	return string(data), true, nil
}

// ReadNullTerminated reads bytes up to (and consuming) a zero byte.
func (r *Reader) ReadNullTerminated() (string, error) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.pos:i])
			r.pos = i + 1
			return s, nil
		}
	}
	return "", r.wrapError(ErrTruncated)
}

// ReadRemaining reads all remaining bytes.
func (r *Reader) ReadRemaining() []byte {
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}

func (r *Reader) wrapError(err error) error {
	return fmt.Errorf("at offset %d: %w", r.base+r.pos, err)
}

// ParseError represents an error during binary parsing with position information.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("clr: %s at offset %d: %v", e.Section, e.Position, e.Err)
	}
	return fmt.Sprintf("clr: at offset %d: %v", e.Position, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapError creates a ParseError with the current position.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{
		Position: r.base + r.pos,
		Section:  section,
		Err:      err,
	}
}
