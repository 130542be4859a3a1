package mdbuild

import (
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
)

// Clause is an exception handling clause for FatBody.
type Clause struct {
	Flags         uint32
	TryOffset     uint32
	TryLength     uint32
	HandlerOffset uint32
	HandlerLength uint32
	// ClassToken is the catch type token; FilterOffset is used for filters.
	ClassToken   metadata.Token
	FilterOffset uint32
}

// TinyBody encodes a tiny method header followed by code. Code must be
// shorter than 64 bytes.
func TinyBody(code []byte) []byte {
	return append([]byte{byte(len(code))<<2 | 0x02}, code...)
}

// FatBody encodes a fat method header, the code and, when clauses are
// given, one exception handling section. Small sections are used when every
// clause fits.
func FatBody(code []byte, maxStack uint16, locals metadata.Token, initLocals bool, clauses []Clause) []byte {
	w := binary.NewWriter()
	flags := uint16(0x3003)
	if initLocals {
		flags |= 0x10
	}
	if len(clauses) > 0 {
		flags |= 0x08
	}
	w.U16(flags)
	w.U16(maxStack)
	w.U32(uint32(len(code)))
	w.U32(uint32(locals))
	w.WriteBytes(code)
	if len(clauses) == 0 {
		return w.Bytes()
	}
	w.Align(4)

	small := len(clauses)*12+4 <= 0xFF
	for _, c := range clauses {
		if c.TryOffset > 0xFFFF || c.TryLength > 0xFF || c.HandlerOffset > 0xFFFF || c.HandlerLength > 0xFF {
			small = false
		}
	}
	if small {
		w.Byte(0x01)
		w.Byte(byte(len(clauses)*12 + 4))
		w.U16(0)
		for _, c := range clauses {
			w.U16(uint16(c.Flags))
			w.U16(uint16(c.TryOffset))
			w.Byte(byte(c.TryLength))
			w.U16(uint16(c.HandlerOffset))
			w.Byte(byte(c.HandlerLength))
			w.U32(clauseExtra(c))
		}
		return w.Bytes()
	}
	size := uint32(len(clauses)*24 + 4)
	w.Byte(0x41)
	w.Byte(byte(size))
	w.Byte(byte(size >> 8))
	w.Byte(byte(size >> 16))
	for _, c := range clauses {
		w.U32(c.Flags)
		w.U32(c.TryOffset)
		w.U32(c.TryLength)
		w.U32(c.HandlerOffset)
		w.U32(c.HandlerLength)
		w.U32(clauseExtra(c))
	}
	return w.Bytes()
}

func clauseExtra(c Clause) uint32 {
	if c.Flags == 0x0001 {
		return c.FilterOffset
	}
	return uint32(c.ClassToken)
}
