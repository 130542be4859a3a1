package cil

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// Method header and data section flags.
const (
	headerTiny       = 0x02
	headerFat        = 0x03
	headerFormatMask = 0x03
	fatMoreSects     = 0x08
	fatInitLocals    = 0x10

	sectEHTable   = 0x01
	sectFatFormat = 0x40
	sectMoreSects = 0x80

	tinyMaxStack = 8
)

// ParseBody reads a method body at the cursor: the tiny or fat header, the
// code and any exception handling sections. Locals and catch types are left
// unresolved.
func ParseBody(r *binary.Reader) (*typesys.MethodBody, error) {
	start := r.Position()
	first, err := r.ReadByte()
	if err != nil {
		return nil, bodyError(r, err, "method header")
	}

	body := &typesys.MethodBody{}
	var size uint32
	more := false
	switch first & headerFormatMask {
	case headerTiny:
		body.MaxStack = tinyMaxStack
		size = uint32(first >> 2)
	case headerFat:
		second, err := r.ReadByte()
		if err != nil {
			return nil, bodyError(r, err, "method header")
		}
		flags := uint16(first) | uint16(second)<<8
		if headerSize := flags >> 12; headerSize != 3 {
			return nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
				Value(headerSize).
				Detail("fat header size %d", headerSize).
				Build()
		}
		if body.MaxStack, err = r.ReadU16LE(); err != nil {
			return nil, bodyError(r, err, "method header")
		}
		if size, err = r.ReadU32LE(); err != nil {
			return nil, bodyError(r, err, "method header")
		}
		tok, err := r.ReadU32LE()
		if err != nil {
			return nil, bodyError(r, err, "method header")
		}
		body.LocalSignature = metadata.Token(tok)
		body.InitLocals = flags&fatInitLocals != 0
		more = flags&fatMoreSects != 0
	default:
		return nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
			Value(first).
			Detail("unknown method header format 0x%02x", first).
			Build()
	}

	if body.Code, err = r.ReadBytes(int(size)); err != nil {
		return nil, bodyError(r, err, "method code")
	}

	for more {
		if pad := (r.Position() - start) % 4; pad != 0 {
			if err := r.Skip(4 - pad); err != nil {
				return nil, bodyError(r, err, "data section")
			}
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, bodyError(r, err, "data section")
		}
		more = kind&sectMoreSects != 0
		clauses, err := readSection(r, kind)
		if err != nil {
			return nil, err
		}
		body.Clauses = append(body.Clauses, clauses...)
	}
	return body, nil
}

func readSection(r *binary.Reader, kind byte) ([]typesys.ExceptionClause, error) {
	fat := kind&sectFatFormat != 0
	b, err := r.ReadBytes(3)
	if err != nil {
		return nil, bodyError(r, err, "data section")
	}
	dataSize := uint32(b[0])
	if fat {
		dataSize |= uint32(b[1])<<8 | uint32(b[2])<<16
	}
	if dataSize < 4 {
		return nil, errors.InvalidMetadata(errors.PhaseBody, "data section shorter than its header")
	}
	payload := dataSize - 4
	if kind&sectEHTable == 0 {
		// unknown section kinds are skipped
		if err := r.Skip(int(payload)); err != nil {
			return nil, bodyError(r, err, "data section")
		}
		return nil, nil
	}

	clauseSize := uint32(12)
	if fat {
		clauseSize = 24
	}
	n := payload / clauseSize
	out := make([]typesys.ExceptionClause, 0, n)
	for i := uint32(0); i < n; i++ {
		var c [6]uint32
		var err error
		if fat {
			for j := range c {
				if c[j], err = r.ReadU32LE(); err != nil {
					return nil, bodyError(r, err, "exception clause")
				}
			}
		} else {
			c, err = readSmallClause(r)
			if err != nil {
				return nil, bodyError(r, err, "exception clause")
			}
		}
		clause := typesys.ExceptionClause{
			Kind:          typesys.ClauseKindFromFlags(c[0]),
			TryOffset:     c[1],
			TryLength:     c[2],
			HandlerOffset: c[3],
			HandlerLength: c[4],
		}
		switch clause.Kind {
		case typesys.ClauseCatch:
			clause.CatchToken = metadata.Token(c[5])
		case typesys.ClauseFilter:
			clause.FilterOffset = c[5]
		}
		out = append(out, clause)
	}
	if rest := payload - n*clauseSize; rest > 0 {
		if err := r.Skip(int(rest)); err != nil {
			return nil, bodyError(r, err, "exception clause")
		}
	}
	return out, nil
}

func readSmallClause(r *binary.Reader) ([6]uint32, error) {
	var c [6]uint32
	flags, err := r.ReadU16LE()
	if err != nil {
		return c, err
	}
	tryOff, err := r.ReadU16LE()
	if err != nil {
		return c, err
	}
	tryLen, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	hOff, err := r.ReadU16LE()
	if err != nil {
		return c, err
	}
	hLen, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	extra, err := r.ReadU32LE()
	if err != nil {
		return c, err
	}
	return [6]uint32{uint32(flags), uint32(tryOff), uint32(tryLen), uint32(hOff), uint32(hLen), extra}, nil
}

func bodyError(r *binary.Reader, err error, section string) error {
	return errors.Wrap(errors.PhaseBody, errors.KindInvalidMetadata, r.WrapError(section, err), "malformed method body")
}
