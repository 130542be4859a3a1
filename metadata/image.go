package metadata

import (
	"bytes"
	"debug/pe"
	"fmt"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
)

// DataDirectory is an RVA and size pair.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// CLIHeader is the runtime header of a managed image (ECMA-335 II.25.3.3).
type CLIHeader struct {
	Cb                      uint32
	MajorRuntimeVersion     uint16
	MinorRuntimeVersion     uint16
	MetaData                DataDirectory
	Flags                   uint32
	EntryPointToken         Token
	Resources               DataDirectory
	StrongNameSignature     DataDirectory
	CodeManagerTable        DataDirectory
	VTableFixups            DataDirectory
	ExportAddressTableJumps DataDirectory
	ManagedNativeHeader     DataDirectory
}

// CLI header flags.
const (
	CLIFlagILOnly           uint32 = 0x00000001
	CLIFlag32BitRequired    uint32 = 0x00000002
	CLIFlagStrongNameSigned uint32 = 0x00000008
	CLIFlagNativeEntryPoint uint32 = 0x00000010
	CLIFlag32BitPreferred   uint32 = 0x00020000
)

// Section is a PE section mapping.
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	Offset         uint32
	Size           uint32
}

// Image describes the PE/COFF container of a managed module.
type Image struct {
	Machine  uint16
	PE32Plus bool
	Sections []Section
	CLI      CLIHeader
}

// parseImage reads the PE headers with debug/pe and decodes the CLI header.
func parseImage(data []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidMetadata, err, "parse PE headers")
	}
	defer f.Close()

	img := &Image{Machine: f.FileHeader.Machine}

	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		img.PE32Plus = true
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	default:
		return nil, errors.InvalidMetadata(errors.PhaseImage, "missing optional header")
	}
	if len(dirs) <= CLIHeaderDirectory || dirs[CLIHeaderDirectory].VirtualAddress == 0 {
		return nil, errors.InvalidMetadata(errors.PhaseImage, "image has no CLI header")
	}

	for _, s := range f.Sections {
		img.Sections = append(img.Sections, Section{
			Name:           s.Name,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			Offset:         s.Offset,
			Size:           s.Size,
		})
	}

	off, err := img.rvaToOffset(dirs[CLIHeaderDirectory].VirtualAddress, len(data))
	if err != nil {
		return nil, err
	}
	r := binary.NewReader(data)
	if err := r.Seek(int(off)); err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidMetadata, err, "seek CLI header")
	}
	if err := readCLIHeader(r, &img.CLI); err != nil {
		return nil, errors.Wrap(errors.PhaseImage, errors.KindInvalidMetadata, r.WrapError("CLI header", err), "read CLI header")
	}
	return img, nil
}

func readCLIHeader(r *binary.Reader, h *CLIHeader) error {
	var err error
	if h.Cb, err = r.ReadU32LE(); err != nil {
		return err
	}
	if h.MajorRuntimeVersion, err = r.ReadU16LE(); err != nil {
		return err
	}
	if h.MinorRuntimeVersion, err = r.ReadU16LE(); err != nil {
		return err
	}
	if h.MetaData, err = readDirectory(r); err != nil {
		return err
	}
	if h.Flags, err = r.ReadU32LE(); err != nil {
		return err
	}
	ep, err := r.ReadU32LE()
	if err != nil {
		return err
	}
	h.EntryPointToken = Token(ep)
	for _, d := range []*DataDirectory{&h.Resources, &h.StrongNameSignature, &h.CodeManagerTable,
		&h.VTableFixups, &h.ExportAddressTableJumps, &h.ManagedNativeHeader} {
		if *d, err = readDirectory(r); err != nil {
			return err
		}
	}
	return nil
}

func readDirectory(r *binary.Reader) (DataDirectory, error) {
	va, err := r.ReadU32LE()
	if err != nil {
		return DataDirectory{}, err
	}
	size, err := r.ReadU32LE()
	if err != nil {
		return DataDirectory{}, err
	}
	return DataDirectory{VirtualAddress: va, Size: size}, nil
}

// rvaToOffset maps an RVA to a file offset through the section table.
func (img *Image) rvaToOffset(rva uint32, fileSize int) (uint32, error) {
	for _, s := range img.Sections {
		extent := s.VirtualSize
		if s.Size > extent {
			extent = s.Size
		}
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+extent {
			delta := rva - s.VirtualAddress
			if delta >= s.Size {
				return 0, errors.InvalidMetadata(errors.PhaseImage,
					fmt.Sprintf("RVA 0x%x falls in uninitialized data of section %s", rva, s.Name))
			}
			off := s.Offset + delta
			if int(off) >= fileSize {
				return 0, errors.InvalidMetadata(errors.PhaseImage,
					fmt.Sprintf("RVA 0x%x maps beyond end of file", rva))
			}
			return off, nil
		}
	}
	return 0, errors.InvalidMetadata(errors.PhaseImage, fmt.Sprintf("RVA 0x%x is not inside any section", rva))
}
