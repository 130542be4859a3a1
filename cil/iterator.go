package cil

import (
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/metadata"
)

// Raw is one undecoded instruction: its offset, opcode and inline operand.
//
// Operand holds int8, uint8, uint16, int32, int64, float32 or float64 for
// immediates, metadata.Token for token operands, the absolute target offset
// as uint32 for branches, and []uint32 absolute targets for switch.
type Raw struct {
	Offset  uint32
	Op      Opcode
	Size    uint32
	Operand any
}

// Next returns the offset of the following instruction.
func (r Raw) Next() uint32 { return r.Offset + r.Size }

// Token returns the token operand.
func (r Raw) Token() metadata.Token {
	tok, _ := r.Operand.(metadata.Token)
	return tok
}

// Targets returns the branch targets of a branch or switch.
func (r Raw) Targets() []uint32 {
	switch v := r.Operand.(type) {
	case uint32:
		if s := r.Op.Operand(); s == OperandBranch || s == OperandShortBranch {
			return []uint32{v}
		}
	case []uint32:
		return v
	}
	return nil
}

// Iterator walks the instructions of a code buffer. Both the flat and the
// structured decoders consume it, so they see the same offsets.
type Iterator struct {
	r   *binary.Reader
	cur Raw
	err error
}

// NewIterator returns an iterator positioned at offset 0.
func NewIterator(code []byte) *Iterator {
	return &Iterator{r: binary.NewReader(code)}
}

// Seek repositions the iterator.
func (it *Iterator) Seek(offset uint32) error {
	it.err = nil
	return it.r.Seek(int(offset))
}

// Offset returns the offset of the next instruction.
func (it *Iterator) Offset() uint32 { return uint32(it.r.Position()) }

// Next decodes the next instruction. It returns false at the end of the
// code or on error.
func (it *Iterator) Next() bool {
	if it.err != nil || it.r.Len() == 0 {
		return false
	}
	raw, err := it.decode()
	if err != nil {
		it.err = err
		return false
	}
	it.cur = raw
	return true
}

// Instr returns the current instruction.
func (it *Iterator) Instr() Raw { return it.cur }

// Err returns the first decode error.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) decode() (Raw, error) {
	start := it.r.Position()
	b, err := it.r.ReadByte()
	if err != nil {
		return Raw{}, it.wrap(err)
	}
	op := Opcode(b)
	if b == 0xFE {
		next, err := it.r.ReadByte()
		if err != nil {
			return Raw{}, it.wrap(err)
		}
		op = 0xFE00 | Opcode(next)
	}
	info, ok := opcodes[op]
	if !ok {
		return Raw{}, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
			Value(uint16(op)).
			Detail("unknown opcode 0x%02x at offset %d", uint16(op), start).
			Build()
	}
	operand, err := it.operand(info.Operand)
	if err != nil {
		return Raw{}, it.wrap(err)
	}
	end := uint32(it.r.Position())
	switch info.Operand {
	case OperandShortBranch:
		operand = uint32(int64(end) + int64(operand.(int8)))
	case OperandBranch:
		operand = uint32(int64(end) + int64(operand.(int32)))
	case OperandSwitch:
		rel := operand.([]int32)
		targets := make([]uint32, len(rel))
		for i, d := range rel {
			targets[i] = uint32(int64(end) + int64(d))
		}
		operand = targets
	}
	return Raw{Offset: uint32(start), Op: op, Size: end - uint32(start), Operand: operand}, nil
}

func (it *Iterator) operand(shape OperandShape) (any, error) {
	r := it.r
	switch shape {
	case OperandNone:
		return nil, nil
	case OperandInt8, OperandShortBranch:
		b, err := r.ReadByte()
		return int8(b), err
	case OperandUint8:
		return r.ReadByte()
	case OperandUint16:
		return r.ReadU16LE()
	case OperandInt32, OperandBranch:
		v, err := r.ReadU32LE()
		return int32(v), err
	case OperandInt64:
		v, err := r.ReadU64LE()
		return int64(v), err
	case OperandFloat32:
		return r.ReadF32()
	case OperandFloat64:
		return r.ReadF64()
	case OperandSwitch:
		n, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		if int64(n)*4 > int64(r.Len()) {
			return nil, binary.ErrTruncated
		}
		rel := make([]int32, n)
		for i := range rel {
			v, err := r.ReadU32LE()
			if err != nil {
				return nil, err
			}
			rel[i] = int32(v)
		}
		return rel, nil
	}
	v, err := r.ReadU32LE()
	return metadata.Token(v), err
}

func (it *Iterator) wrap(err error) error {
	return errors.Wrap(errors.PhaseBody, errors.KindInvalidMetadata, it.r.WrapError("il", err), "truncated instruction")
}

// Scan decodes every instruction of code.
func Scan(code []byte) ([]Raw, error) {
	it := NewIterator(code)
	var out []Raw
	for it.Next() {
		out = append(out, it.Instr())
	}
	return out, it.Err()
}
