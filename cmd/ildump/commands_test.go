package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/clrmeta"
	"github.com/wippyai/clrmeta/internal/binary"
	"github.com/wippyai/clrmeta/internal/mdbuild"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/reader"
	"github.com/wippyai/clrmeta/typesys"
)

// sumCode is ldc.i4.0; ldc.i4.1; add; ret.
var sumCode = []byte{0x16, 0x17, 0x58, 0x2A}

func buildCalc() *mdbuild.Builder {
	b := mdbuild.New()
	b.Module("Calc.dll", uuid.New())
	asm := b.Assembly("Calc", [4]uint16{1, 0, 0, 0}, nil)
	corlib := b.AssemblyRef("mscorlib", [4]uint16{4, 0, 0, 0}, nil)
	object := b.TypeRef(corlib, "System", "Object")
	obsolete := b.TypeRef(corlib, "System", "ObsoleteAttribute")

	i4 := mdbuild.Prim(metadata.ElementI4)
	str := mdbuild.Prim(metadata.ElementString)
	void := mdbuild.Prim(metadata.ElementVoid)

	b.TypeDef(0, "", "<Module>", 0)
	calc := b.TypeDef(0x00100001, "Acme", "Calc", object)
	seed := b.Field(0x0056, "seed", mdbuild.FieldSig(i4))
	b.Method(0x0016, 0, "Sum", mdbuild.MethodSig(metadata.SigDefault, 0, i4), b.Body(mdbuild.TinyBody(sumCode)))
	b.Method(0x0016, 0, "Sum", mdbuild.MethodSig(metadata.SigDefault, 0, i4, i4), b.Body(mdbuild.TinyBody(sumCode)))
	b.Param(0, 1, "x")
	b.TypeDef(0x00100001, "Other", "Thing", object)

	b.Constant(seed, metadata.ElementI4, []byte{7, 0, 0, 0})

	ctor := b.MemberRef(obsolete, ".ctor", mdbuild.MethodSig(metadata.SigHasThis, 0, void, str))
	value := binary.NewWriter()
	value.U16(0x0001)
	value.SerString("old")
	value.U16(0)
	b.CustomAttribute(asm, ctor, value.Bytes())
	b.CustomAttribute(calc, ctor, value.Bytes())
	return b
}

func writeCalc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Calc.dll")
	require.NoError(t, os.WriteFile(path, buildCalc().Image(), 0o644))
	return path
}

func openCalc(t *testing.T) *typesys.Module {
	t.Helper()
	mod, err := reader.Open(clrmeta.NewMemorySource(buildCalc().Image()), reader.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mod.Close() })
	return mod
}

// run executes ildump with an empty config and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "absent.yml")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestTypesCommand(t *testing.T) {
	path := writeCalc(t)

	out, err := run(t, "types", path)
	require.NoError(t, err)
	assert.Contains(t, out, "class Acme.Calc : System.Object")
	assert.Contains(t, out, "class Other.Thing")

	out, err = run(t, "types", "--prefix", "Acme.", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme.Calc")
	assert.NotContains(t, out, "Other.Thing")
}

func TestMembersCommand(t *testing.T) {
	out, err := run(t, "members", writeCalc(t), "Acme.Calc")
	require.NoError(t, err)
	assert.Contains(t, out, "field int32 seed = 7")
	assert.Contains(t, out, "method int32 Sum()")
	assert.Contains(t, out, "method int32 Sum(int32 x)")

	_, err = run(t, "members", writeCalc(t), "Acme.Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Acme.Missing")
}

func TestILCommand(t *testing.T) {
	path := writeCalc(t)

	out, err := run(t, "il", path, "Acme.Calc", "Sum")
	require.NoError(t, err)
	assert.Contains(t, out, "IL_0000: ldc.i4.0")
	assert.Contains(t, out, "IL_0002: add")
	assert.Contains(t, out, "IL_0003: ret")

	out, err = run(t, "il", "--tree", path, "Acme.Calc", "Sum")
	require.NoError(t, err)
	assert.Contains(t, out, "return (0 + 1)")

	_, err = run(t, "il", path, "Acme.Calc", "Missing")
	require.Error(t, err)
}

func TestRefsCommand(t *testing.T) {
	out, err := run(t, "refs", writeCalc(t))
	require.NoError(t, err)
	assert.Contains(t, out, "assembly mscorlib, Version=4.0.0.0")
	assert.Contains(t, out, "=> unresolved")
	assert.Contains(t, out, "diagnostics:")
}

func TestAttrsCommand(t *testing.T) {
	path := writeCalc(t)

	out, err := run(t, "attrs", path, "Acme.Calc")
	require.NoError(t, err)
	assert.Contains(t, out, `[System.ObsoleteAttribute("old")]`)

	out, err = run(t, "attrs", path)
	require.NoError(t, err)
	assert.Contains(t, out, "System.ObsoleteAttribute")
}

func TestBrowseRequiresTerminal(t *testing.T) {
	if f, err := os.Stdout.Stat(); err == nil && f.Mode()&os.ModeCharDevice != 0 {
		t.Skip("stdout is a terminal")
	}
	_, err := run(t, "browse", writeCalc(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: loud\n"), 0o600))

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfg, "types", writeCalc(t)})
	require.Error(t, root.Execute())

	_, err := run(t, "--log-level", "loud", "types", writeCalc(t))
	require.Error(t, err)
}

func TestSearchDirFlag(t *testing.T) {
	libDir := t.TempDir()
	lib := mdbuild.New()
	lib.Module("mscorlib.dll", uuid.New())
	lib.Assembly("mscorlib", [4]uint16{4, 0, 0, 0}, nil)
	lib.TypeDef(0x00100001, "System", "Object", 0)
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "mscorlib.dll"), lib.Image(), 0o644))

	out, err := run(t, "--search-dir", libDir, "refs", writeCalc(t))
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(libDir, "mscorlib.dll"))
	assert.NotContains(t, out, "=> unresolved")
}
