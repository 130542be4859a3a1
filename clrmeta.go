package clrmeta

import (
	"os"
)

// ByteSource owns the bytes of one module image for the module's lifetime.
type ByteSource interface {
	Bytes() []byte
	Close() error
}

// SymbolProvider supplies debug information for method bodies. It is used
// for enrichment only; a nil provider or any provider error never prevents
// a body from loading.
type SymbolProvider interface {
	// RootScope returns the outermost lexical scope of the method with the
	// given MethodDef token.
	RootScope(methodToken uint32) (Scope, error)
	// SequencePoints returns the IL-offset to source mappings of a method.
	SequencePoints(methodToken uint32) ([]SequencePoint, error)
}

// Scope is a lexical scope inside a method body.
type Scope interface {
	StartOffset() uint32
	EndOffset() uint32
	Locals() []LocalSymbol
	Children() []Scope
}

// LocalSymbol names a local variable slot.
type LocalSymbol struct {
	Name  string
	Slot  int
	Flags uint32
}

// SequencePoint maps an IL offset to a source range.
type SequencePoint struct {
	Document    string
	Offset      uint32
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	Hidden      bool
}

// memorySource is a heap copy of an image.
type memorySource struct {
	data []byte
}

// NewMemorySource wraps an in-memory image.
func NewMemorySource(data []byte) ByteSource {
	return &memorySource{data: data}
}

// ReadFileSource reads a whole file into memory.
func ReadFileSource(path string) (ByteSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &memorySource{data: data}, nil
}

func (s *memorySource) Bytes() []byte { return s.data }

func (s *memorySource) Close() error {
	s.data = nil
	return nil
}
