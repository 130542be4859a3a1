package binary

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Writer provides buffered writing utilities for ECMA-335 binary encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// U16 writes a little-endian uint16.
func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// U32 writes a little-endian uint32.
func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// U64 writes a little-endian uint64.
func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// F32 writes a little-endian float32.
func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

// F64 writes a little-endian float64.
func (w *Writer) F64(v float64) {
	w.U64(math.Float64bits(v))
}

// Index writes a 2-byte or 4-byte index.
func (w *Writer) Index(v uint32, wide bool) {
	if wide {
		w.U32(v)
		return
	}
	w.U16(uint16(v))
}

// CompressedU32 writes an unsigned compressed integer. Values above
// 0x1FFFFFFF are not representable and are truncated to 29 bits.
func (w *Writer) CompressedU32(v uint32) {
	w.buf.Write(AppendCompressedU32(nil, v))
}

// CompressedI32 writes a signed compressed integer.
func (w *Writer) CompressedI32(v int32) {
	w.buf.Write(AppendCompressedI32(nil, v))
}

// SerString writes a length-prefixed UTF-8 string.
func (w *Writer) SerString(s string) {
	w.CompressedU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// NullSerString writes the null string marker.
func (w *Writer) NullSerString() {
	w.buf.WriteByte(NullLength)
}

// Align pads with zero bytes to a multiple of n.
func (w *Writer) Align(n int) {
	for w.buf.Len()%n != 0 {
		w.buf.WriteByte(0)
	}
}

// AppendCompressedU32 appends the compressed encoding of v to dst.
func AppendCompressedU32(dst []byte, v uint32) []byte {
	switch {
	case v <= 0x7F:
		return append(dst, byte(v))
	case v <= 0x3FFF:
		return append(dst, byte(v>>8)|0x80, byte(v))
	default:
		v &= 0x1FFFFFFF
		return append(dst, byte(v>>24)|0xC0, byte(v>>16), byte(v>>8), byte(v))
	}
}

// AppendCompressedI32 appends the signed compressed encoding of v to dst.
func AppendCompressedI32(dst []byte, v int32) []byte {
	var sign uint32
	if v < 0 {
		sign = 1
	}
	switch {
	case v >= -0x40 && v < 0x40:
		u := (uint32(v)&0x3F)<<1 | sign
		return append(dst, byte(u))
	case v >= -0x2000 && v < 0x2000:
		u := (uint32(v)&0x1FFF)<<1 | sign
		return append(dst, byte(u>>8)|0x80, byte(u))
	default:
		u := (uint32(v)&0x0FFFFFFF)<<1 | sign
		return append(dst, byte(u>>24)|0xC0, byte(u>>16), byte(u>>8), byte(u))
	}
}
