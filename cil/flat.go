package cil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wippyai/clrmeta/typesys"
)

// Marker identifies a synthetic region boundary record in a flat listing.
type Marker uint8

const (
	MarkerNone Marker = iota
	MarkerTryBegin
	MarkerTryEnd
	MarkerFilterBegin
	MarkerFilterEnd
	MarkerCatchBegin
	MarkerFinallyBegin
	MarkerFaultBegin
	MarkerHandlerEnd
)

func (m Marker) String() string {
	switch m {
	case MarkerNone:
		return "none"
	case MarkerTryBegin:
		return "try-begin"
	case MarkerTryEnd:
		return "try-end"
	case MarkerFilterBegin:
		return "filter-begin"
	case MarkerFilterEnd:
		return "filter-end"
	case MarkerCatchBegin:
		return "catch-begin"
	case MarkerFinallyBegin:
		return "finally-begin"
	case MarkerFaultBegin:
		return "fault-begin"
	case MarkerHandlerEnd:
		return "handler-end"
	}
	return "unknown"
}

func (m Marker) isEnd() bool {
	return m == MarkerTryEnd || m == MarkerFilterEnd || m == MarkerHandlerEnd
}

// Instruction is one record of a flat listing: either an opcode with its
// resolved operand or, when Marker is set, a region boundary.
//
// Operand holds the immediate for numeric operands, the absolute target as
// uint32 for branches, []uint32 for switch, string for ldstr,
// *typesys.MethodSignature for calli and a typesys.Entity for other token
// operands.
type Instruction struct {
	Offset  uint32
	Op      Opcode
	Operand any
	Marker  Marker
	// Clause is the exception clause of a marker; CatchType is the caught
	// type of a catch-begin marker.
	Clause    *typesys.ExceptionClause
	CatchType typesys.Type
}

// IsMarker reports whether the record is a region boundary.
func (i Instruction) IsMarker() bool { return i.Marker != MarkerNone }

func (i Instruction) String() string {
	if i.IsMarker() {
		s := fmt.Sprintf("IL_%04x: .%s", i.Offset, i.Marker)
		if i.CatchType != nil {
			s += " " + i.CatchType.String()
		}
		return s
	}
	s := fmt.Sprintf("IL_%04x: %s", i.Offset, i.Op.Name())
	if op := formatOperand(i.Op, i.Operand); op != "" {
		s += " " + op
	}
	return s
}

func formatOperand(op Opcode, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case uint32:
		if s := op.Operand(); s == OperandBranch || s == OperandShortBranch {
			return fmt.Sprintf("IL_%04x", x)
		}
	case []uint32:
		parts := make([]string, len(x))
		for n, t := range x {
			parts[n] = fmt.Sprintf("IL_%04x", t)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case string:
		return fmt.Sprintf("%q", x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

type event struct {
	offset uint32
	rank   int
	marker Marker
	clause *typesys.ExceptionClause
}

// regionEvents lists the boundary markers of every region. At one offset
// ends come before begins; inner ends precede outer ends and outer begins
// precede inner ones.
func regionEvents(regions []*tryRegion) []event {
	var events []event
	for _, t := range regions {
		rank := 2 * t.depth
		first := t.handlers[0].clause
		events = append(events,
			event{t.body.start, rank, MarkerTryBegin, first},
			event{t.body.end, rank, MarkerTryEnd, first})
		for _, h := range t.handlers {
			if h.filter != nil {
				events = append(events,
					event{h.filter.start, rank + 1, MarkerFilterBegin, h.clause},
					event{h.filter.end, rank + 1, MarkerFilterEnd, h.clause})
			}
			begin := MarkerCatchBegin
			switch h.clause.Kind {
			case typesys.ClauseFinally:
				begin = MarkerFinallyBegin
			case typesys.ClauseFault:
				begin = MarkerFaultBegin
			}
			events = append(events,
				event{h.body.start, rank + 1, begin, h.clause},
				event{h.body.end, rank + 1, MarkerHandlerEnd, h.clause})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		if a.marker.isEnd() != b.marker.isEnd() {
			return a.marker.isEnd()
		}
		if a.marker.isEnd() {
			return a.rank > b.rank
		}
		return a.rank < b.rank
	})
	return events
}

// DecodeFlat decodes body into one record per instruction with resolved
// operands, interleaved with region boundary markers. The generic context
// of method drives token resolution; a nil method falls back to the body's.
func DecodeFlat(body *typesys.MethodBody, method *typesys.Method, res Resolver) ([]Instruction, error) {
	if method == nil {
		method = body.Method
	}
	var ctx typesys.GenericContext
	if method != nil {
		ctx = method.Context()
	}
	_, regions, err := buildRegions(body.Clauses, uint32(len(body.Code)))
	if err != nil {
		return nil, err
	}
	events := regionEvents(regions)

	out := make([]Instruction, 0, len(body.Code)/2+len(events))
	flush := func(upTo uint32) error {
		for len(events) > 0 && events[0].offset <= upTo {
			ev := events[0]
			events = events[1:]
			rec := Instruction{Offset: ev.offset, Marker: ev.marker, Clause: ev.clause}
			if ev.marker == MarkerCatchBegin {
				t, err := catchType(ev.clause, res, ctx)
				if err != nil {
					return err
				}
				rec.CatchType = t
			}
			out = append(out, rec)
		}
		return nil
	}

	it := NewIterator(body.Code)
	for it.Next() {
		raw := it.Instr()
		if err := flush(raw.Offset); err != nil {
			return nil, err
		}
		operand, err := operandValue(raw, res, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, Instruction{Offset: raw.Offset, Op: raw.Op, Operand: operand})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if err := flush(^uint32(0)); err != nil {
		return nil, err
	}
	return out, nil
}

// catchType returns the caught type of a catch clause, resolving its token
// when the body loader has not done so.
func catchType(c *typesys.ExceptionClause, res Resolver, ctx typesys.GenericContext) (typesys.Type, error) {
	if c.Kind != typesys.ClauseCatch {
		return nil, nil
	}
	if c.CatchType != nil || res == nil || c.CatchToken.IsNil() {
		return c.CatchType, nil
	}
	e, err := res.ResolveMember(c.CatchToken, ctx)
	if err != nil {
		return nil, err
	}
	t, _ := e.(typesys.Type)
	return t, nil
}
