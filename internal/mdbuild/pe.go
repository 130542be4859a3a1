package mdbuild

import (
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
)

const (
	peHeaderOffset = 0x80
	fileAlignment  = 0x200
	textRVA        = 0x2000
	textOffset     = 0x200
	cliHeaderSize  = 72
)

// Image returns a PE32 image with one .text section holding the CLI
// header, method bodies and the metadata root.
func (b *Builder) Image() []byte {
	root := b.Metadata()

	text := binary.NewWriter()
	bodies := b.bodies.Bytes()
	mdRVA := textRVA + cliHeaderSize + uint32(align4(len(bodies)))

	text.U32(cliHeaderSize)
	text.U16(2)
	text.U16(5)
	text.U32(mdRVA)
	text.U32(uint32(len(root)))
	text.U32(metadata.CLIFlagILOnly)
	text.U32(uint32(b.EntryPoint))
	for i := 0; i < 6; i++ {
		text.U64(0)
	}
	text.WriteBytes(bodies)
	text.Align(4)
	text.WriteBytes(root)

	rawSize := (text.Len() + fileAlignment - 1) &^ (fileAlignment - 1)

	w := binary.NewWriter()
	// DOS header.
	w.WriteBytes([]byte("MZ"))
	for w.Len() < 0x3C {
		w.Byte(0)
	}
	w.U32(peHeaderOffset)
	for w.Len() < peHeaderOffset {
		w.Byte(0)
	}

	w.WriteBytes([]byte("PE\x00\x00"))
	// COFF file header.
	w.U16(0x14C)
	w.U16(1)
	w.U32(0)
	w.U32(0)
	w.U32(0)
	w.U16(0xE0)
	w.U16(0x2102)

	// PE32 optional header.
	w.U16(0x10B)
	w.Byte(8)
	w.Byte(0)
	w.U32(uint32(rawSize))
	w.U32(0)
	w.U32(0)
	w.U32(0)
	w.U32(textRVA)
	w.U32(0)
	w.U32(0x10000000)
	w.U32(0x2000)
	w.U32(fileAlignment)
	w.U16(4)
	w.U16(0)
	w.U16(0)
	w.U16(0)
	w.U16(4)
	w.U16(0)
	w.U32(0)
	w.U32(textRVA + uint32(align(rawSize, 0x2000)))
	w.U32(textOffset)
	w.U32(0)
	w.U16(3)
	w.U16(0x8540)
	w.U32(0x100000)
	w.U32(0x1000)
	w.U32(0x100000)
	w.U32(0x1000)
	w.U32(0)
	w.U32(16)
	for i := 0; i < 16; i++ {
		if i == metadata.CLIHeaderDirectory {
			w.U32(textRVA)
			w.U32(cliHeaderSize)
			continue
		}
		w.U64(0)
	}

	// Section table.
	w.WriteBytes([]byte(".text\x00\x00\x00"))
	w.U32(uint32(text.Len()))
	w.U32(textRVA)
	w.U32(uint32(rawSize))
	w.U32(textOffset)
	w.U32(0)
	w.U32(0)
	w.U16(0)
	w.U16(0)
	w.U32(0x60000020)

	for w.Len() < textOffset {
		w.Byte(0)
	}
	w.WriteBytes(text.Bytes())
	for w.Len() < textOffset+rawSize {
		w.Byte(0)
	}
	return w.Bytes()
}

func align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}
