// Package metadata decodes the physical layer of an ECMA-335 managed module.
//
// A Store is built from a PE/COFF image (Open) or a bare metadata root
// (OpenMetadata). It holds one row array per table, heap accessors and
// cursors over the image:
//
//	store, err := metadata.Open(data)
//	if err != nil {
//	    return err
//	}
//	td, err := store.TypeDef(2)
//	name, err := store.GetString(cells[1])
//
// # Tables
//
// All 45 table kinds are decoded from a column schema. Column widths follow
// the heap-size flags and row counts, and coded indexes use the tag widths
// of their family. Rows are addressed by 1-based RID.
//
// # Owner lookups
//
// OwnerRange finds the contiguous run of rows keyed by an owner column,
// binary searching tables whose sorted bit is set. List columns (field,
// method, parameter, event and property lists) follow the next-row rule and
// the *Ptr indirection tables of uncompressed streams.
//
// # Errors
//
// Malformed headers and tables are reported as KindInvalidMetadata, and
// out-of-range RIDs or heap offsets as KindBadTableIndex.
package metadata
