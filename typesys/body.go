package typesys

import (
	"github.com/wippyai/clrmeta"
	"github.com/wippyai/clrmeta/metadata"
)

// ClauseKind is the kind of an exception handling clause.
type ClauseKind uint8

const (
	ClauseCatch ClauseKind = iota
	ClauseFilter
	ClauseFinally
	ClauseFault
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseCatch:
		return "catch"
	case ClauseFilter:
		return "filter"
	case ClauseFinally:
		return "finally"
	case ClauseFault:
		return "fault"
	}
	return "unknown"
}

// ClauseKindFromFlags maps exception clause flags to a kind.
func ClauseKindFromFlags(flags uint32) ClauseKind {
	switch {
	case flags&0x0001 != 0:
		return ClauseFilter
	case flags&0x0002 != 0:
		return ClauseFinally
	case flags&0x0004 != 0:
		return ClauseFault
	}
	return ClauseCatch
}

// ExceptionClause ties a protected range to a handler.
type ExceptionClause struct {
	Kind          ClauseKind
	TryOffset     uint32
	TryLength     uint32
	HandlerOffset uint32
	HandlerLength uint32
	// FilterOffset is the start of the filter block of a filter clause.
	FilterOffset uint32
	// CatchToken is the raw catch type token; CatchType is its resolution.
	CatchToken metadata.Token
	CatchType  Type
}

// TryEnd returns the end offset of the protected range.
func (c *ExceptionClause) TryEnd() uint32 { return c.TryOffset + c.TryLength }

// HandlerEnd returns the end offset of the handler.
func (c *ExceptionClause) HandlerEnd() uint32 { return c.HandlerOffset + c.HandlerLength }

// Local is a local variable of a method body.
type Local struct {
	Index  int
	Type   Type
	Pinned bool
	Name   string
}

// MethodBody is the decoded header, code and exception clauses of a method.
type MethodBody struct {
	Method         *Method
	MaxStack       uint16
	InitLocals     bool
	LocalSignature metadata.Token
	Locals         []*Local
	Code           []byte
	Clauses        []ExceptionClause
	SequencePoints []clrmeta.SequencePoint
	Scope          clrmeta.Scope
}

// SequencePointAt returns the last sequence point at or before offset.
func (b *MethodBody) SequencePointAt(offset uint32) (clrmeta.SequencePoint, bool) {
	var best clrmeta.SequencePoint
	found := false
	for _, sp := range b.SequencePoints {
		if sp.Offset <= offset && (!found || sp.Offset >= best.Offset) {
			best, found = sp, true
		}
	}
	return best, found
}
