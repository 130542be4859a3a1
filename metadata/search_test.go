package metadata_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clrmeta/internal/mdbuild"
	"github.com/wippyai/clrmeta/metadata"
)

// ownerTable builds n InterfaceImpl rows spread over k owner types. The
// class keys are written in ascending order when sorted is true.
func ownerTable(t *testing.T, n, k int, sorted bool, rng *rand.Rand) (*metadata.Store, []uint32) {
	t.Helper()
	b := mdbuild.New()
	b.Module("Owners.dll", uuid.New())
	iface := b.TypeRef(metadata.NewToken(metadata.TableModule, 1), "N", "I")
	for i := 0; i < k+2; i++ {
		b.TypeDef(0, "N", "T", 0)
	}

	keys := make([]uint32, n)
	for i := range keys {
		keys[i] = uint32(rng.Intn(k)) + 2
	}
	if sorted {
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	} else {
		// Contiguous runs in arbitrary owner order.
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		runs := map[uint32][]uint32{}
		var order []uint32
		for _, key := range keys {
			if _, ok := runs[key]; !ok {
				order = append(order, key)
			}
			runs[key] = append(runs[key], key)
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		keys = keys[:0]
		for _, key := range order {
			keys = append(keys, runs[key]...)
		}
		b.Unsorted(metadata.TableInterfaceImpl)
	}
	for _, key := range keys {
		b.InterfaceImpl(metadata.NewToken(metadata.TableTypeDef, key), iface)
	}

	s, err := metadata.OpenMetadata(b.Metadata())
	require.NoError(t, err)
	require.Equal(t, sorted, s.IsSorted(metadata.TableInterfaceImpl))
	return s, keys
}

func TestOwnerRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, sorted := range []bool{true, false} {
		for _, shape := range []struct{ n, k int }{{1, 1}, {10, 3}, {50, 7}, {200, 40}} {
			s, keys := ownerTable(t, shape.n, shape.k, sorted, rng)
			for owner := uint32(0); owner < uint32(shape.k)+4; owner++ {
				start, end := s.OwnerRange(metadata.TableInterfaceImpl, metadata.ColInterfaceImplClass, owner)

				var want []uint32
				for i, key := range keys {
					if key == owner {
						want = append(want, uint32(i)+1)
					}
				}
				if len(want) == 0 {
					assert.Equal(t, start, end, "owner %d sorted=%v", owner, sorted)
					continue
				}
				assert.Equal(t, want[0], start, "owner %d sorted=%v", owner, sorted)
				assert.Equal(t, want[len(want)-1]+1, end, "owner %d sorted=%v", owner, sorted)
			}
		}
	}
}

func TestOwnerRangeToken(t *testing.T) {
	b := mdbuild.New()
	b.Module("Attrs.dll", uuid.New())
	b.TypeDef(0, "", "<Module>", 0)
	widget := b.TypeDef(0, "N", "Widget", 0)
	ctor := b.MemberRef(metadata.NewToken(metadata.TableTypeRef, 0), ".ctor", nil)
	field := b.Field(0, "f", mdbuild.FieldSig(mdbuild.Prim(metadata.ElementI4)))
	// HasCustomAttribute puts Field (tag 1) before TypeDef (tag 3).
	b.CustomAttribute(field, ctor, []byte{1, 0, 0, 0})
	b.CustomAttribute(widget, ctor, []byte{1, 0, 0, 0})
	b.CustomAttribute(widget, ctor, []byte{1, 0, 0, 0})

	s, err := metadata.OpenMetadata(b.Metadata())
	require.NoError(t, err)
	require.True(t, s.IsSorted(metadata.TableCustomAttribute))

	start, end := s.OwnerRangeToken(metadata.TableCustomAttribute, metadata.ColCustomAttributeParent,
		metadata.CodedHasCustomAttribute, widget)
	assert.Equal(t, uint32(2), start)
	assert.Equal(t, uint32(4), end)

	row, err := s.CustomAttribute(start)
	require.NoError(t, err)
	assert.Equal(t, widget, row.Parent)
	assert.Equal(t, ctor, row.Type)
}

func TestCodedIndex(t *testing.T) {
	tok := metadata.NewToken(metadata.TableTypeRef, 5)
	v, ok := metadata.EncodeCoded(metadata.CodedTypeDefOrRef, tok)
	require.True(t, ok)
	assert.Equal(t, uint32(5<<2|1), v)

	back, err := metadata.DecodeCoded(metadata.CodedTypeDefOrRef, v)
	require.NoError(t, err)
	assert.Equal(t, tok, back)

	_, ok = metadata.EncodeCoded(metadata.CodedTypeDefOrRef, metadata.NewToken(metadata.TableField, 1))
	assert.False(t, ok)

	_, err = metadata.DecodeCoded(metadata.CodedTypeDefOrRef, 3)
	assert.Error(t, err)
	_, err = metadata.DecodeCoded(metadata.CodedCustomAttributeType, 0)
	assert.Error(t, err)
}

func TestColumnWidths(t *testing.T) {
	var rows [metadata.TableCount]uint32

	widths := metadata.ColumnWidths(metadata.TableTypeDef, &rows, 0)
	assert.Equal(t, []int{4, 2, 2, 2, 2, 2}, widths)

	widths = metadata.ColumnWidths(metadata.TableTypeDef, &rows, metadata.HeapStringsWide)
	assert.Equal(t, []int{4, 4, 4, 2, 2, 2}, widths)

	// TypeDefOrRef has two tag bits: 2^14 rows overflow a 2-byte index.
	rows[metadata.TableTypeSpec] = 1<<14 - 1
	assert.Equal(t, 2, metadata.ColumnWidths(metadata.TableTypeDef, &rows, 0)[3])
	rows[metadata.TableTypeSpec] = 1 << 14
	assert.Equal(t, 4, metadata.ColumnWidths(metadata.TableTypeDef, &rows, 0)[3])

	rows[metadata.TableField] = 1 << 16
	assert.Equal(t, 4, metadata.ColumnWidths(metadata.TableTypeDef, &rows, 0)[4])
	assert.Nil(t, metadata.ColumnWidths(metadata.TableCount, &rows, 0))
}

func TestToken(t *testing.T) {
	tok := metadata.NewToken(metadata.TableMethodDef, 0x12)
	assert.Equal(t, metadata.Token(0x06000012), tok)
	assert.Equal(t, metadata.TableMethodDef, tok.Table())
	assert.Equal(t, uint32(0x12), tok.RID())
	assert.False(t, tok.IsNil())
	assert.True(t, metadata.NewToken(metadata.TableField, 0).IsNil())
	assert.Equal(t, "MethodDef[0x06000012]", tok.String())
}
