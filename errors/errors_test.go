package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseResolve,
				Kind:   KindUnresolved,
				Token:  0x01000004,
				Path:   []string{"System", "Object"},
				Detail: "assembly not found",
			},
			contains: []string{"[resolve]", "unresolved", "0x01000004", "System.Object", "assembly not found"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseTables,
				Kind:  KindBadTableIndex,
			},
			contains: []string{"[tables]", "bad_table_index"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindIO,
				Detail: "read image",
				Cause:  stderrors.New("underlying error"),
			},
			contains: []string{"[load]", "io", "read image", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.True(t, strings.Contains(msg, s), "error message %q does not contain %q", msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := &Error{
		Phase: PhaseSignature,
		Kind:  KindInvalidMetadata,
		Cause: cause,
	}

	assert.True(t, stderrors.Is(err.Unwrap(), cause))
	assert.True(t, stderrors.Is(err, cause))
}

func TestError_Is(t *testing.T) {
	err := InvalidMetadata(PhaseSignature, "truncated blob")

	assert.True(t, stderrors.Is(err, &Error{Phase: PhaseSignature, Kind: KindInvalidMetadata}))
	assert.False(t, stderrors.Is(err, &Error{Phase: PhaseTables, Kind: KindInvalidMetadata}))
	assert.True(t, stderrors.Is(err, ErrInvalidMetadata), "empty phase matches on kind")
	assert.False(t, stderrors.Is(err, ErrBadTableIndex))

	wrapped := fmt.Errorf("open module: %w", err)
	assert.True(t, Is(wrapped, ErrInvalidMetadata))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(InvalidMetadata(PhaseImage, "bad magic")))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", BadTableIndex(PhaseTables, "Field", 9, 3))))
	assert.False(t, IsFatal(Unresolved(0x01000001, "type", "System.Object")))
	assert.False(t, IsFatal(stderrors.New("plain")))
}

func TestBuilder(t *testing.T) {
	err := New(PhaseResolve, KindSignatureMismatch).
		Token(0x0a000003).
		Path("Foo", "Bar").
		Value(42).
		Detail("expected %d params", 2).
		Cause(stderrors.New("inner")).
		Build()

	assert.Equal(t, PhaseResolve, err.Phase)
	assert.Equal(t, KindSignatureMismatch, err.Kind)
	assert.Equal(t, uint32(0x0a000003), err.Token)
	assert.Equal(t, []string{"Foo", "Bar"}, err.Path)
	assert.Equal(t, 42, err.Value)
	assert.Equal(t, "expected 2 params", err.Detail)
	require.NotNil(t, err.Cause)
}

func TestConstructors(t *testing.T) {
	bad := BadTableIndex(PhaseTables, "TypeDef", 12, 10)
	assert.Equal(t, KindBadTableIndex, bad.Kind)
	assert.Equal(t, 12, bad.Value)
	assert.Contains(t, bad.Error(), "index 12 out of range (length 10)")

	mm := SignatureMismatch(0x0a000001, "Invoke", "Handler")
	assert.Equal(t, []string{"Handler", "Invoke"}, mm.Path)

	dbg := MissingDebugInfo(0x06000001, stderrors.New("no pdb"))
	assert.Equal(t, PhaseSymbols, dbg.Phase)
	assert.False(t, IsFatal(dbg))

	nf := NotFound(PhaseLoad, "assembly", "System.Xml")
	assert.Contains(t, nf.Error(), `assembly "System.Xml" not found`)
}

func TestDiagnostics(t *testing.T) {
	var d Diagnostics
	d.Record(nil)
	assert.Equal(t, 0, d.Len())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				d.Record(Unresolved(uint32(i), "type", "T"))
			} else {
				d.Record(MissingDebugInfo(uint32(i), nil))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, d.Len())
	assert.Len(t, d.Filter(KindUnresolved), 10)
	assert.Len(t, d.Filter(KindMissingDebugInfo), 10)

	snapshot := d.List()
	d.Record(Unsupported(PhaseBody, "x"))
	assert.Len(t, snapshot, 20, "snapshot is not affected by later records")
}
