package metadata_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/mdbuild"
	"github.com/wippyai/clrmeta/metadata"
)

var testMvid = uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")

func buildSample() *mdbuild.Builder {
	b := mdbuild.New()
	b.Module("Sample.dll", testMvid)
	b.Assembly("Sample", [4]uint16{1, 2, 3, 4}, nil)
	corlib := b.AssemblyRef("mscorlib", [4]uint16{4, 0, 0, 0}, []byte{0xb7, 0x7a, 0x5c, 0x56, 0x19, 0x34, 0xe0, 0x89})
	object := b.TypeRef(corlib, "System", "Object")

	b.TypeDef(0, "", "<Module>", 0)
	b.TypeDef(0x00100001, "Acme", "Widget", object)
	b.Field(0x0001, "count", mdbuild.FieldSig(mdbuild.Prim(metadata.ElementI4)))
	b.Field(0x0001, "name", mdbuild.FieldSig(mdbuild.Prim(metadata.ElementString)))
	rva := b.Body(mdbuild.TinyBody([]byte{0x16, 0x2A}))
	b.Method(0x0006, 0, "Get", mdbuild.MethodSig(metadata.SigHasThis, 0, mdbuild.Prim(metadata.ElementI4)), rva)
	b.Method(0x0006, 0, "Set", mdbuild.MethodSig(metadata.SigHasThis, 0, mdbuild.Prim(metadata.ElementVoid),
		mdbuild.Prim(metadata.ElementI4)), 0)
	b.Param(0, 1, "value")
	b.TypeDef(0x00100001, "Acme", "Empty", object)
	return b
}

func TestOpen(t *testing.T) {
	s, err := metadata.Open(buildSample().Image())
	require.NoError(t, err)

	assert.Equal(t, "v4.0.30319", s.Version)
	assert.False(t, s.Uncompressed)
	assert.NotNil(t, s.Image())
	assert.Equal(t, uint32(3), s.RowCount(metadata.TableTypeDef))
	assert.Equal(t, uint32(2), s.RowCount(metadata.TableField))
	assert.Equal(t, uint32(0), s.RowCount(metadata.TableEvent))

	mod, err := s.Module()
	require.NoError(t, err)
	assert.Equal(t, "Sample.dll", mod.Name)
	assert.Equal(t, testMvid, mod.Mvid)

	asm, ok, err := s.Assembly()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Sample", asm.Name)
	assert.Equal(t, [4]uint16{1, 2, 3, 4}, asm.Version)

	td, err := s.TypeDef(2)
	require.NoError(t, err)
	assert.Equal(t, "Acme", td.Namespace)
	assert.Equal(t, "Widget", td.Name)
	assert.Equal(t, metadata.NewToken(metadata.TableTypeRef, 1), td.Extends)

	ref, err := s.AssemblyRef(1)
	require.NoError(t, err)
	token, err := s.GetBlob(ref.PublicKeyOrToken)
	require.NoError(t, err)
	assert.Len(t, token, 8)
}

func TestOpenMetadata(t *testing.T) {
	b := buildSample()
	b.Uncompressed = true
	s, err := metadata.OpenMetadata(b.Metadata())
	require.NoError(t, err)
	assert.True(t, s.Uncompressed)
	assert.Nil(t, s.Image())

	_, err = s.CursorAtRVA(0x2000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &errors.Error{Kind: errors.KindUnsupported}))
}

func TestCursorAtRVA(t *testing.T) {
	s, err := metadata.Open(buildSample().Image())
	require.NoError(t, err)

	m, err := s.MethodDef(1)
	require.NoError(t, err)
	require.NotZero(t, m.RVA)

	r, err := s.CursorAtRVA(m.RVA)
	require.NoError(t, err)
	header, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(2<<2|0x02), header)
}

func TestHeaps(t *testing.T) {
	b := buildSample()
	hello := b.UserString("héllo")
	plain := b.UserString("abc")
	s, err := metadata.OpenMetadata(b.Metadata())
	require.NoError(t, err)

	str, err := s.GetUserString(hello)
	require.NoError(t, err)
	assert.Equal(t, "héllo", str)

	str, err = s.GetUserString(plain)
	require.NoError(t, err)
	assert.Equal(t, "abc", str)

	empty, err := s.GetString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	g, err := s.GetGUID(0)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, g)

	_, err = s.GetString(1 << 20)
	assert.True(t, errors.Is(err, errors.ErrBadTableIndex))
	_, err = s.GetBlob(1 << 20)
	assert.True(t, errors.Is(err, errors.ErrBadTableIndex))
	_, err = s.GetGUID(99)
	assert.True(t, errors.Is(err, errors.ErrBadTableIndex))
}

func TestRowOutOfRange(t *testing.T) {
	s, err := metadata.OpenMetadata(buildSample().Metadata())
	require.NoError(t, err)

	_, err = s.TypeDef(0)
	assert.True(t, errors.Is(err, errors.ErrBadTableIndex))
	_, err = s.TypeDef(4)
	assert.True(t, errors.Is(err, errors.ErrBadTableIndex))
	assert.True(t, errors.IsFatal(err))
}

func TestMalformed(t *testing.T) {
	root := buildSample().Metadata()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad signature", append([]byte{'X', 'X', 'X', 'X'}, root[4:]...)},
		{"truncated header", root[:12]},
		{"truncated tables", root[:len(root)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metadata.OpenMetadata(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidMetadata), "got %v", err)
		})
	}

	_, err := metadata.Open([]byte("MZ not really a PE file"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidMetadata))
}

func TestLists(t *testing.T) {
	s, err := metadata.Open(buildSample().Image())
	require.NoError(t, err)

	assert.Empty(t, s.Fields(1))
	assert.Equal(t, []uint32{1, 2}, s.Fields(2))
	assert.Equal(t, []uint32{1, 2}, s.Methods(2))
	assert.Empty(t, s.Methods(3))
	assert.Empty(t, s.Params(1))
	assert.Equal(t, []uint32{1}, s.Params(2))

	assert.Equal(t, uint32(2), s.FieldOwner(2))
	assert.Equal(t, uint32(2), s.MethodOwner(1))
	assert.Equal(t, uint32(2), s.ParamOwner(1))
	assert.Equal(t, uint32(0), s.MethodOwner(9))
}

func TestPointerTables(t *testing.T) {
	b := mdbuild.New()
	b.Uncompressed = true
	b.Module("Ptr.dll", uuid.New())
	// Method lists index MethodPtr rows, not MethodDef rows.
	for _, td := range []struct {
		ns, name string
		methods  uint32
	}{{"", "<Module>", 1}, {"N", "A", 1}, {"N", "B", 3}} {
		b.AddRow(metadata.TableTypeDef, 0, b.String(td.name), b.String(td.ns), 0, 1, td.methods)
	}
	for _, rid := range []uint32{3, 1, 2} {
		b.AddRow(metadata.TableMethodPtr, rid)
	}
	for _, name := range []string{"m1", "m2", "m3"} {
		b.Method(0, 0, name, mdbuild.MethodSig(0, 0, mdbuild.Prim(metadata.ElementVoid)), 0)
	}
	s, err := metadata.OpenMetadata(b.Metadata())
	require.NoError(t, err)

	assert.Empty(t, s.Methods(1))
	assert.Equal(t, []uint32{3, 1}, s.Methods(2))
	assert.Equal(t, []uint32{2}, s.Methods(3))
	assert.Equal(t, uint32(3), s.MethodOwner(2))
	assert.Equal(t, uint32(2), s.MethodOwner(3))
}
