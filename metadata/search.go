package metadata

import "sort"

// OwnerRange returns the half-open RID range [start, end) of rows in t whose
// column col equals owner. Sorted tables are binary searched; unsorted ones
// are scanned for the first match. In both cases the contiguous run of rows
// sharing the key is consumed. start == end when no row matches.
func (s *Store) OwnerRange(t Table, col int, owner uint32) (start, end uint32) {
	n := s.RowCount(t)
	if n == 0 || col >= len(s.tables[t].cols) {
		return 1, 1
	}
	var first uint32
	if s.IsSorted(t) {
		i := sort.Search(int(n), func(i int) bool {
			return s.cell(t, uint32(i)+1, col) >= owner
		})
		first = uint32(i) + 1
		if first > n || s.cell(t, first, col) != owner {
			return first, first
		}
	} else {
		first = n + 1
		for rid := uint32(1); rid <= n; rid++ {
			if s.cell(t, rid, col) == owner {
				first = rid
				break
			}
		}
		if first > n {
			return first, first
		}
	}
	last := first
	for last <= n && s.cell(t, last, col) == owner {
		last++
	}
	return first, last
}

// OwnerRangeToken is OwnerRange for a coded owner column.
func (s *Store) OwnerRangeToken(t Table, col int, kind CodedKind, owner Token) (start, end uint32) {
	key, ok := EncodeCoded(kind, owner)
	if !ok {
		return 1, 1
	}
	return s.OwnerRange(t, col, key)
}

// list describes a parent table whose column opens a run in a child table.
type list struct {
	parent Table
	col    int
	child  Table
	ptr    Table
}

var (
	fieldList    = list{TableTypeDef, 4, TableField, TableFieldPtr}
	methodList   = list{TableTypeDef, 5, TableMethodDef, TableMethodPtr}
	paramList    = list{TableMethodDef, 5, TableParam, TableParamPtr}
	eventList    = list{TableEventMap, 1, TableEvent, TableEventPtr}
	propertyList = list{TablePropertyMap, 1, TableProperty, TablePropertyPtr}
)

// childCount is the length of the list space, which is the pointer table
// when one is present.
func (s *Store) childCount(l list) uint32 {
	if n := s.RowCount(l.ptr); n > 0 {
		return n
	}
	return s.RowCount(l.child)
}

func (s *Store) listRange(l list, rid uint32) (start, end uint32) {
	n := s.RowCount(l.parent)
	limit := s.childCount(l) + 1
	if rid == 0 || rid > n {
		return limit, limit
	}
	start = min(s.cell(l.parent, rid, l.col), limit)
	end = limit
	if rid < n {
		end = min(s.cell(l.parent, rid+1, l.col), limit)
	}
	if start == 0 {
		start = 1
	}
	if end < start {
		end = start
	}
	return start, end
}

func (s *Store) listRIDs(l list, rid uint32) []uint32 {
	start, end := s.listRange(l, rid)
	if end <= start {
		return nil
	}
	out := make([]uint32, 0, end-start)
	indirect := s.RowCount(l.ptr) > 0
	for i := start; i < end; i++ {
		if indirect {
			out = append(out, s.cell(l.ptr, i, 0))
		} else {
			out = append(out, i)
		}
	}
	return out
}

// listOwner returns the parent RID whose list contains child, or 0.
func (s *Store) listOwner(l list, child uint32) uint32 {
	pos := child
	if s.RowCount(l.ptr) > 0 {
		pos = 0
		for i := uint32(1); i <= s.RowCount(l.ptr); i++ {
			if s.cell(l.ptr, i, 0) == child {
				pos = i
				break
			}
		}
		if pos == 0 {
			return 0
		}
	}
	n := s.RowCount(l.parent)
	// Last parent whose list starts at or before pos.
	i := sort.Search(int(n), func(i int) bool {
		return s.cell(l.parent, uint32(i)+1, l.col) > pos
	})
	if i == 0 {
		return 0
	}
	owner := uint32(i)
	if start, end := s.listRange(l, owner); pos < start || pos >= end {
		return 0
	}
	return owner
}

// FieldRange returns the list-space range of a type's fields.
func (s *Store) FieldRange(typeRID uint32) (start, end uint32) {
	return s.listRange(fieldList, typeRID)
}

// MethodRange returns the list-space range of a type's methods.
func (s *Store) MethodRange(typeRID uint32) (start, end uint32) {
	return s.listRange(methodList, typeRID)
}

// ParamRange returns the list-space range of a method's parameters.
func (s *Store) ParamRange(methodRID uint32) (start, end uint32) {
	return s.listRange(paramList, methodRID)
}

// EventRange returns the list-space range of an EventMap row's events.
func (s *Store) EventRange(mapRID uint32) (start, end uint32) {
	return s.listRange(eventList, mapRID)
}

// PropertyRange returns the list-space range of a PropertyMap row's properties.
func (s *Store) PropertyRange(mapRID uint32) (start, end uint32) {
	return s.listRange(propertyList, mapRID)
}

// Fields returns the Field RIDs of a type, following FieldPtr.
func (s *Store) Fields(typeRID uint32) []uint32 {
	return s.listRIDs(fieldList, typeRID)
}

// Methods returns the MethodDef RIDs of a type, following MethodPtr.
func (s *Store) Methods(typeRID uint32) []uint32 {
	return s.listRIDs(methodList, typeRID)
}

// Params returns the Param RIDs of a method, following ParamPtr.
func (s *Store) Params(methodRID uint32) []uint32 {
	return s.listRIDs(paramList, methodRID)
}

// Events returns the Event RIDs of a type, located through EventMap.
func (s *Store) Events(typeRID uint32) []uint32 {
	start, end := s.OwnerRange(TableEventMap, ColEventMapParent, typeRID)
	if start == end {
		return nil
	}
	return s.listRIDs(eventList, start)
}

// Properties returns the Property RIDs of a type, located through PropertyMap.
func (s *Store) Properties(typeRID uint32) []uint32 {
	start, end := s.OwnerRange(TablePropertyMap, ColPropertyMapParent, typeRID)
	if start == end {
		return nil
	}
	return s.listRIDs(propertyList, start)
}

// FieldOwner returns the TypeDef RID declaring a field, or 0.
func (s *Store) FieldOwner(fieldRID uint32) uint32 {
	return s.listOwner(fieldList, fieldRID)
}

// MethodOwner returns the TypeDef RID declaring a method, or 0.
func (s *Store) MethodOwner(methodRID uint32) uint32 {
	return s.listOwner(methodList, methodRID)
}

// ParamOwner returns the MethodDef RID declaring a parameter, or 0.
func (s *Store) ParamOwner(paramRID uint32) uint32 {
	return s.listOwner(paramList, paramRID)
}

// EventOwner returns the TypeDef RID declaring an event, or 0.
func (s *Store) EventOwner(eventRID uint32) uint32 {
	if m := s.listOwner(eventList, eventRID); m != 0 {
		return s.cell(TableEventMap, m, ColEventMapParent)
	}
	return 0
}

// PropertyOwner returns the TypeDef RID declaring a property, or 0.
func (s *Store) PropertyOwner(propertyRID uint32) uint32 {
	if m := s.listOwner(propertyList, propertyRID); m != 0 {
		return s.cell(TablePropertyMap, m, ColPropertyMapParent)
	}
	return 0
}

// EnclosingType returns the enclosing TypeDef RID of a nested type, or 0.
func (s *Store) EnclosingType(typeRID uint32) uint32 {
	start, end := s.OwnerRange(TableNestedClass, ColNestedClassNested, typeRID)
	if start == end {
		return 0
	}
	return s.cell(TableNestedClass, start, 1)
}

// NestedTypes returns the TypeDef RIDs nested directly inside typeRID.
// NestedClass is sorted by the nested column, so this is a scan.
func (s *Store) NestedTypes(typeRID uint32) []uint32 {
	var out []uint32
	for rid := uint32(1); rid <= s.RowCount(TableNestedClass); rid++ {
		if s.cell(TableNestedClass, rid, 1) == typeRID {
			out = append(out, s.cell(TableNestedClass, rid, 0))
		}
	}
	return out
}
