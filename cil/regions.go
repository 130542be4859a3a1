package cil

import (
	"sort"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/typesys"
)

// span is a contiguous code range that may contain protected regions.
type span struct {
	start, end uint32
	children   []*tryRegion
}

func (s *span) contains(start, end uint32) bool {
	return start >= s.start && end <= s.end
}

// handler is the filter and handler code of one clause.
type handler struct {
	clause *typesys.ExceptionClause
	filter *span
	body   *span
}

// tryRegion groups the clauses that protect the same range.
type tryRegion struct {
	depth    int
	body     *span
	handlers []*handler
	extent   uint32
}

func (t *tryRegion) spans() []*span {
	out := []*span{t.body}
	for _, h := range t.handlers {
		if h.filter != nil {
			out = append(out, h.filter)
		}
		out = append(out, h.body)
	}
	return out
}

// buildRegions arranges clauses into a tree of spans rooted at the whole
// code range. Clauses sharing a protected range form one region; regions
// nest inside the innermost span that contains them.
func buildRegions(clauses []typesys.ExceptionClause, codeLen uint32) (*span, []*tryRegion, error) {
	root := &span{start: 0, end: codeLen}
	byRange := map[[2]uint32]*tryRegion{}
	var regions []*tryRegion
	for i := range clauses {
		c := &clauses[i]
		if c.TryEnd() > codeLen || c.HandlerEnd() > codeLen || c.TryLength == 0 {
			return nil, nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
				Detail("exception clause %d out of code range", i).
				Build()
		}
		key := [2]uint32{c.TryOffset, c.TryLength}
		t := byRange[key]
		if t == nil {
			t = &tryRegion{body: &span{start: c.TryOffset, end: c.TryEnd()}, extent: c.TryEnd()}
			byRange[key] = t
			regions = append(regions, t)
		}
		h := &handler{clause: c, body: &span{start: c.HandlerOffset, end: c.HandlerEnd()}}
		if c.Kind == typesys.ClauseFilter {
			if c.FilterOffset >= c.HandlerOffset {
				return nil, nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
					Detail("filter of clause %d does not precede its handler", i).
					Build()
			}
			h.filter = &span{start: c.FilterOffset, end: c.HandlerOffset}
		}
		t.handlers = append(t.handlers, h)
		if e := c.HandlerEnd(); e > t.extent {
			t.extent = e
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if a.body.start != b.body.start {
			return a.body.start < b.body.start
		}
		return a.extent > b.extent
	})
	for _, t := range regions {
		parent, depth := innermost(root, t.body.start, t.extent, 0)
		t.depth = depth
		parent.children = append(parent.children, t)
	}
	return root, regions, nil
}

func innermost(s *span, start, end uint32, depth int) (*span, int) {
	for _, child := range s.children {
		for _, sub := range child.spans() {
			if sub.contains(start, end) {
				return innermost(sub, start, end, depth+1)
			}
		}
	}
	return s, depth
}
