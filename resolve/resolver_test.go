package resolve_test

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/internal/mdbuild"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/reader"
	"github.com/wippyai/clrmeta/resolve"
	"github.com/wippyai/clrmeta/typesys"
)

var v1 = [4]uint16{1, 0, 0, 0}

var libKey = []byte{
	0x00, 0x24, 0x00, 0x00, 0x04, 0x80, 0x00, 0x00,
	0x94, 0x00, 0x00, 0x00, 0x06, 0x02, 0x00, 0x00,
}

func keyToken(key []byte) []byte {
	return (&typesys.AssemblyIdentity{PublicKey: key}).Token()
}

// library builds an assembly defining <name>.Base.
func library(name string, publicKey []byte) *mdbuild.Builder {
	b := mdbuild.New()
	b.Module(name+".dll", uuid.New())
	b.Assembly(name, v1, publicKey)
	b.TypeDef(0x00100001, name, "Base", 0)
	return b
}

// application builds App referencing <ref>.Base.
func application(ref string, version [4]uint16, token []byte) *mdbuild.Builder {
	b := mdbuild.New()
	b.Module("App.dll", uuid.New())
	b.Assembly("App", v1, nil)
	scope := b.AssemblyRef(ref, version, token)
	b.TypeRef(scope, ref, "Base")
	return b
}

func writeImage(t *testing.T, path string, b *mdbuild.Builder) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, b.Image(), 0o644))
	return path
}

func newResolver(t *testing.T, opts resolve.Options) *resolve.Resolver {
	t.Helper()
	if opts.Cache == nil {
		opts.Cache = resolve.NewCache(16)
	}
	r := resolve.New(opts)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func baseOf(t *testing.T, app *typesys.Module) *typesys.TypeDef {
	t.Helper()
	typ, err := reader.Of(app).TypeFromRef(1)
	require.NoError(t, err)
	return typ
}

// unresolved returns the Unresolved diagnostics recorded against rows of
// table.
func unresolved(mod *typesys.Module, table metadata.Table) []*errors.Error {
	var out []*errors.Error
	for _, d := range mod.Diagnostics() {
		if d.Kind == errors.KindUnresolved && metadata.Token(d.Token).Table() == table {
			out = append(out, d)
		}
	}
	return out
}

func TestProbeReferrerDirectory(t *testing.T) {
	dir := t.TempDir()
	libPath := writeImage(t, filepath.Join(dir, "Lib.dll"), library("Lib", nil))
	appPath := writeImage(t, filepath.Join(dir, "App.exe"), application("Lib", v1, nil))

	r := newResolver(t, resolve.Options{})
	app, err := r.Open(appPath)
	require.NoError(t, err)

	base := baseOf(t, app)
	assert.False(t, base.Placeholder)
	assert.Equal(t, "Lib.Base", base.FullName())
	assert.Empty(t, app.Diagnostics())

	lib, err := r.Open(libPath)
	require.NoError(t, err)
	assert.Same(t, lib.FindType("Lib", "Base"), base)

	again, err := r.Open(appPath)
	require.NoError(t, err)
	assert.Same(t, app, again)
}

func TestProbeSearchDirsAndExtensions(t *testing.T) {
	appDir, libDir, baseDir := t.TempDir(), t.TempDir(), t.TempDir()
	writeImage(t, filepath.Join(libDir, "Lib.exe"), library("Lib", nil))
	writeImage(t, filepath.Join(baseDir, "Other.winmd"), library("Other", nil))
	appPath := writeImage(t, filepath.Join(appDir, "App.dll"), application("Lib", v1, nil))

	r := newResolver(t, resolve.Options{SearchDirs: []string{libDir}, AppBase: baseDir})
	app, err := r.Open(appPath)
	require.NoError(t, err)
	assert.False(t, baseOf(t, app).Placeholder)

	only := newResolver(t, resolve.Options{SearchDirs: []string{libDir}, Extensions: []string{".dll"}})
	app2, err := only.Open(appPath)
	require.NoError(t, err)
	assert.True(t, baseOf(t, app2).Placeholder)
	assert.Len(t, unresolved(app2, metadata.TableAssemblyRef), 1)
}

func TestProbeRejectsOtherIdentity(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "Lib.dll"), library("Impostor", nil))
	appPath := writeImage(t, filepath.Join(dir, "App.dll"), application("Lib", v1, nil))

	r := newResolver(t, resolve.Options{})
	app, err := r.Open(appPath)
	require.NoError(t, err)

	base := baseOf(t, app)
	assert.True(t, base.Placeholder)
	diags := unresolved(app, metadata.TableAssemblyRef)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Detail, "Lib")
	assert.Len(t, unresolved(app, metadata.TableTypeRef), 1)
	assert.Equal(t, uint32(metadata.NewToken(metadata.TableAssemblyRef, 1)), diags[0].Token)
}

func TestHook(t *testing.T) {
	dir := t.TempDir()
	appPath := writeImage(t, filepath.Join(dir, "App.dll"), application("Virtual", v1, nil))

	var calls int
	virtual := typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: "Virtual"})
	r := newResolver(t, resolve.Options{
		Hook: func(ref *typesys.AssemblyReference, referrer *typesys.Module) *typesys.Module {
			calls++
			assert.Equal(t, "App", referrer.Assembly.Name)
			if ref.Identity.Name == "Virtual" {
				return virtual
			}
			return nil
		},
	})
	app, err := r.Open(appPath)
	require.NoError(t, err)

	assert.Same(t, virtual, app.AssemblyRefs[0].Resolve())
	assert.Equal(t, 1, calls)
	assert.Empty(t, unresolved(app, metadata.TableAssemblyRef))
}

func TestStrongNameCacheSharedAcrossResolvers(t *testing.T) {
	libDir := t.TempDir()
	writeImage(t, filepath.Join(libDir, "Signed.dll"), library("Signed", libKey))
	tok := keyToken(libKey)

	cache := resolve.NewCache(4)
	first := newResolver(t, resolve.Options{Cache: cache, SearchDirs: []string{libDir}})
	second := newResolver(t, resolve.Options{Cache: cache})

	appDir1, appDir2 := t.TempDir(), t.TempDir()
	app1, err := first.Open(writeImage(t, filepath.Join(appDir1, "App.dll"), application("Signed", v1, tok)))
	require.NoError(t, err)
	app2, err := second.Open(writeImage(t, filepath.Join(appDir2, "App.dll"), application("Signed", v1, tok)))
	require.NoError(t, err)

	base1 := baseOf(t, app1)
	require.False(t, base1.Placeholder)
	assert.Equal(t, 1, cache.Len())

	// second has no search dirs; only the shared cache can satisfy it.
	base2 := baseOf(t, app2)
	assert.Same(t, base1, base2)

	id := typesys.AssemblyIdentity{Name: "Signed", Version: typesys.Version(v1), PublicKeyToken: tok}
	cached, ok := cache.Get(id.StrongName())
	require.True(t, ok)
	assert.Same(t, base1.Module, cached)
}

func TestCacheAddRace(t *testing.T) {
	cache := resolve.NewCache(8)
	var closed atomic.Int32
	const n = 8

	mods := make([]*typesys.Module, n)
	for i := range mods {
		mods[i] = typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: "Race"})
		mods[i].SetCloser(func() error {
			closed.Add(1)
			return nil
		})
	}

	winners := make([]*typesys.Module, n)
	var wg sync.WaitGroup
	for i := range mods {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winners[i] = cache.Add("Race,1.0.0.0,neutral,0011223344556677", mods[i])
		}(i)
	}
	wg.Wait()

	for _, w := range winners[1:] {
		assert.Same(t, winners[0], w)
	}
	assert.Equal(t, int32(n-1), closed.Load())
	assert.Equal(t, 1, cache.Len())

	got, ok := cache.Get("RACE,1.0.0.0,NEUTRAL,0011223344556677")
	require.True(t, ok)
	assert.Same(t, winners[0], got)
}

func TestCacheEvictAndPurge(t *testing.T) {
	cache := resolve.NewCache(2)
	a := typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: "A"})
	b := typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: "B"})
	c := typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: "C"})

	cache.Add("a", a)
	cache.Add("b", b)
	cache.Evict("A")
	_, ok := cache.Get("a")
	assert.False(t, ok)

	cache.Add("a", a)
	cache.Add("c", c)
	assert.Equal(t, 2, cache.Len())
	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently used entry is dropped at capacity")

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestPlatformUnification(t *testing.T) {
	runtimeKey := []byte{0x00, 0x24, 0x00, 0x00, 0x04, 0x80, 0x00, 0x00, 0x01}
	tok := keyToken(runtimeKey)
	dir := t.TempDir()
	runtimePath := writeImage(t, filepath.Join(dir, "platform", "System.Runtime.dll"), func() *mdbuild.Builder {
		b := mdbuild.New()
		b.Module("System.Runtime.dll", uuid.New())
		b.Assembly("System.Runtime", [4]uint16{8, 0, 0, 0}, runtimeKey)
		b.TypeDef(0x00100001, "System.Runtime", "Base", 0)
		return b
	}())
	appPath := writeImage(t, filepath.Join(dir, "App.dll"), application("System.Runtime", [4]uint16{4, 2, 0, 0}, tok))

	cache := resolve.NewCache(4)
	loader := newResolver(t, resolve.Options{Cache: cache})
	platform, err := loader.Open(runtimePath)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	unified := newResolver(t, resolve.Options{Cache: cache, PlatformVersion: typesys.Version{8, 0, 0, 0}})
	app, err := unified.Open(appPath)
	require.NoError(t, err)
	assert.Same(t, platform, app.AssemblyRefs[0].Resolve())

	plain := newResolver(t, resolve.Options{Cache: cache})
	app2, err := plain.Open(writeImage(t, filepath.Join(t.TempDir(), "App.dll"), application("System.Runtime", [4]uint16{4, 2, 0, 0}, tok)))
	require.NoError(t, err)
	assert.True(t, app2.AssemblyRefs[0].Resolve().Placeholder)

	assert.True(t, resolve.IsPlatformAssembly("MSCORLIB"))
	assert.False(t, resolve.IsPlatformAssembly("Acme.Core"))
}

func TestGACProbe(t *testing.T) {
	root := t.TempDir()
	tok := keyToken(libKey)
	leaf := "v4.0_1.0.0.0__" + hex.EncodeToString(tok)
	writeImage(t, filepath.Join(root, "GAC_MSIL", "Signed", leaf, "Signed.dll"), library("Signed", libKey))
	appPath := writeImage(t, filepath.Join(t.TempDir(), "App.dll"), application("Signed", v1, tok))

	r := newResolver(t, resolve.Options{GACRoots: []string{root}})
	app, err := r.Open(appPath)
	require.NoError(t, err)
	lib := app.AssemblyRefs[0].Resolve()
	assert.False(t, lib.Placeholder)
	assert.Equal(t, filepath.Join(root, "GAC_MSIL", "Signed", leaf, "Signed.dll"), lib.Location)

	monoRoot := t.TempDir()
	writeImage(t, filepath.Join(monoRoot, "Signed", "1.0.0.0__"+hex.EncodeToString(tok), "Signed.dll"), library("Signed", libKey))
	mono := newResolver(t, resolve.Options{GACRoots: []string{monoRoot}, Cache: resolve.NewCache(4)})
	app2, err := mono.Open(writeImage(t, filepath.Join(t.TempDir(), "App.dll"), application("Signed", v1, tok)))
	require.NoError(t, err)
	assert.False(t, app2.AssemblyRefs[0].Resolve().Placeholder)
}

func TestResolveModule(t *testing.T) {
	dir := t.TempDir()
	part := mdbuild.New()
	part.Module("Part.netmodule", uuid.New())
	part.TypeDef(0x00100001, "Acme", "Part", 0)
	writeImage(t, filepath.Join(dir, "Part.netmodule"), part)

	app := mdbuild.New()
	app.Module("App.dll", uuid.New())
	app.Assembly("App", v1, nil)
	app.ModuleRef("Part.netmodule")
	app.ModuleRef("Gone.netmodule")
	appPath := writeImage(t, filepath.Join(dir, "App.dll"), app)

	r := newResolver(t, resolve.Options{})
	mod, err := r.Open(appPath)
	require.NoError(t, err)
	require.Len(t, mod.ModuleRefs, 2)

	found := mod.ModuleRefs[0].Resolve()
	assert.False(t, found.Placeholder)
	assert.NotNil(t, found.FindType("Acme", "Part"))

	gone := mod.ModuleRefs[1].Resolve()
	assert.True(t, gone.Placeholder)
	diags := unresolved(mod, metadata.TableModuleRef)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Detail, "Gone.netmodule")
}

func TestCloseReleasesSession(t *testing.T) {
	dir := t.TempDir()
	appPath := writeImage(t, filepath.Join(dir, "App.dll"), application("Lib", v1, nil))

	r := resolve.New(resolve.Options{Cache: resolve.NewCache(4)})
	first, err := r.Open(appPath)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	second, err := r.Open(appPath)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.NoError(t, r.Close())
}

func TestSetLoggerConcurrent(t *testing.T) {
	t.Cleanup(func() { resolve.SetLogger(nil) })
	require.NotNil(t, resolve.Logger())

	l := zap.NewExample()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				resolve.SetLogger(l)
				return
			}
			assert.NotNil(t, resolve.Logger())
		}(i)
	}
	wg.Wait()
	assert.Same(t, l, resolve.Logger())

	resolve.SetLogger(nil)
	assert.NotNil(t, resolve.Logger())
}
