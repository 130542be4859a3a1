package resolve

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/reader"
	"github.com/wippyai/clrmeta/typesys"
)

// ResolveFunc is a caller hook consulted after the caches. It returns nil
// when it does not know the reference.
type ResolveFunc func(ref *typesys.AssemblyReference, referrer *typesys.Module) *typesys.Module

// DefaultExtensions are probed in order when Options.Extensions is empty.
var DefaultExtensions = []string{".dll", ".exe", ".winmd"}

// gacFlavors are the architecture directories of an assembly cache root.
var gacFlavors = []string{"GAC_MSIL", "GAC_64", "GAC_32", "GAC"}

// Options configure a Resolver.
type Options struct {
	// SearchDirs are probed after the referrer's directory and AppBase.
	SearchDirs []string
	AppBase    string
	Extensions []string
	// GACRoots are assembly cache roots, such as the Windows assembly
	// directory or a Mono gac directory.
	GACRoots []string
	// PlatformVersion, when set, replaces the version of references to
	// well-known system assemblies.
	PlatformVersion typesys.Version
	Hook            ResolveFunc
	// Cache holds strong-named modules. Nil uses Shared().
	Cache  *Cache
	Logger *zap.Logger
}

// Resolver locates the assemblies and modules referenced by the modules it
// opens. It implements reader.AssemblyResolver.
//
// Assembly resolution priority:
//  1. Modules this resolver already loaded, by simple name or location
//  2. The strong-name cache, for strong-named references
//  3. The platform table, which unifies system assembly versions
//  4. The caller's hook
//  5. The referrer's directory, AppBase and SearchDirs
//  6. The assembly cache roots
//  7. A placeholder module and an Unresolved diagnostic on the referrer
//
// Resolver is thread-safe.
type Resolver struct {
	opts  Options
	cache *Cache
	log   *zap.Logger

	mu     sync.RWMutex
	byName map[string]*typesys.Module
	byPath map[string]*typesys.Module
	owned  []*typesys.Module
}

var _ reader.AssemblyResolver = (*Resolver)(nil)

// New creates a resolver.
func New(opts Options) *Resolver {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	r := &Resolver{
		opts:   opts,
		cache:  opts.Cache,
		log:    opts.Logger,
		byName: make(map[string]*typesys.Module),
		byPath: make(map[string]*typesys.Module),
	}
	if r.cache == nil {
		r.cache = Shared()
	}
	if r.log == nil {
		r.log = Logger()
	}
	return r
}

// Open reads the module at path with this resolver attached. Opening the
// same path twice returns the same module.
func (r *Resolver) Open(path string) (*typesys.Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Load("resolve path "+path, err)
	}
	r.mu.RLock()
	mod := r.byPath[abs]
	r.mu.RUnlock()
	if mod != nil {
		return mod, nil
	}
	mod, err = reader.OpenFile(abs, reader.Options{Location: abs, Resolver: r, Logger: r.log})
	if err != nil {
		return nil, err
	}
	return r.register(abs, mod), nil
}

// ResolveAssembly implements reader.AssemblyResolver.
func (r *Resolver) ResolveAssembly(ref *typesys.AssemblyReference, referrer *typesys.Module) *typesys.Module {
	id := ref.Identity
	log := r.log.With(zap.String("assembly", id.String()))

	if mod := r.session(id.Name); mod != nil {
		return mod
	}
	if mod := r.cached(&id); mod != nil {
		log.Debug("resolved from strong-name cache")
		return r.remember(mod)
	}
	if r.unify(&id) {
		log.Debug("unified platform assembly", zap.Stringer("version", id.Version))
		if mod := r.cached(&id); mod != nil {
			return r.remember(mod)
		}
	}
	if r.opts.Hook != nil {
		if mod := r.opts.Hook(ref, referrer); mod != nil {
			log.Debug("resolved by hook")
			return r.remember(mod)
		}
	}
	if mod := r.probe(&id, r.probeDirs(referrer)); mod != nil {
		log.Debug("resolved by probing", zap.String("location", mod.Location))
		return mod
	}
	if mod := r.probeGAC(&id); mod != nil {
		log.Debug("resolved from assembly cache", zap.String("location", mod.Location))
		return mod
	}

	log.Debug("unresolved")
	if referrer != nil {
		referrer.Record(errors.Unresolved(uint32(ref.Token), "assembly", ref.Identity.String()))
	}
	return typesys.NewPlaceholderModule(ref.Identity)
}

// ResolveModule implements reader.AssemblyResolver. Module references are
// looked up next to the referrer only.
func (r *Resolver) ResolveModule(ref *typesys.ModuleReference, referrer *typesys.Module) *typesys.Module {
	if referrer != nil && referrer.Location != "" {
		path := filepath.Join(filepath.Dir(referrer.Location), ref.Name)
		if isFile(path) {
			mod, err := r.Open(path)
			if err == nil {
				return mod
			}
			r.log.Debug("module open failed", zap.String("module", ref.Name), zap.Error(err))
		}
	}
	if referrer != nil {
		referrer.Record(errors.Unresolved(uint32(ref.Token), "module", ref.Name))
	}
	return typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: ref.Name})
}

// Close closes every module this resolver opened that is not held by the
// strong-name cache.
func (r *Resolver) Close() error {
	r.mu.Lock()
	owned := r.owned
	r.owned = nil
	r.byName = make(map[string]*typesys.Module)
	r.byPath = make(map[string]*typesys.Module)
	r.mu.Unlock()

	var first error
	for _, mod := range owned {
		if err := mod.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Resolver) session(name string) *typesys.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[strings.ToLower(name)]
}

func (r *Resolver) cached(id *typesys.AssemblyIdentity) *typesys.Module {
	if !id.IsStrongNamed() {
		return nil
	}
	mod, _ := r.cache.Get(id.StrongName())
	return mod
}

// remember records a module found outside this session under its name.
func (r *Resolver) remember(mod *typesys.Module) *typesys.Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(assemblyName(mod))
	if prev := r.byName[key]; prev != nil {
		return prev
	}
	r.byName[key] = mod
	if mod.Location != "" {
		r.byPath[mod.Location] = mod
	}
	return mod
}

// register adds a module this resolver opened from path. Strong-named
// assemblies go through the shared cache, which may hand back another
// session's module in place of mod.
func (r *Resolver) register(path string, mod *typesys.Module) *typesys.Module {
	r.mu.RLock()
	prev := r.byPath[path]
	r.mu.RUnlock()
	if prev != nil {
		_ = mod.Close()
		return prev
	}

	own := true
	if mod.Assembly != nil && mod.Assembly.IsStrongNamed() {
		mod = r.cache.Add(mod.Assembly.StrongName(), mod)
		own = false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath[path] = mod
	key := strings.ToLower(assemblyName(mod))
	if _, ok := r.byName[key]; !ok {
		r.byName[key] = mod
	}
	if own {
		r.owned = append(r.owned, mod)
	}
	return mod
}

func (r *Resolver) probeDirs(referrer *typesys.Module) []string {
	var dirs []string
	if referrer != nil && referrer.Location != "" {
		dirs = append(dirs, filepath.Dir(referrer.Location))
	}
	if r.opts.AppBase != "" {
		dirs = append(dirs, r.opts.AppBase)
	}
	return append(dirs, r.opts.SearchDirs...)
}

// probe tries name+extension in each directory and accepts the first file
// whose assembly name matches.
func (r *Resolver) probe(id *typesys.AssemblyIdentity, dirs []string) *typesys.Module {
	seen := make(map[string]bool)
	for _, dir := range dirs {
		for _, ext := range r.opts.Extensions {
			path := filepath.Join(dir, id.Name+ext)
			if seen[path] {
				continue
			}
			seen[path] = true
			if mod := r.tryOpen(path, id); mod != nil {
				return mod
			}
		}
	}
	return nil
}

// probeGAC looks for <root>/<flavor>/<name>/<prefix><version>_<culture>_<token>/<name>.dll.
func (r *Resolver) probeGAC(id *typesys.AssemblyIdentity) *typesys.Module {
	tok := id.Token()
	if len(tok) == 0 || len(r.opts.GACRoots) == 0 {
		return nil
	}
	culture := id.Culture
	if strings.EqualFold(culture, "neutral") {
		culture = ""
	}
	leaf := id.Version.String() + "_" + culture + "_" + hex.EncodeToString(tok)
	for _, root := range r.opts.GACRoots {
		for _, flavor := range gacFlavors {
			for _, prefix := range []string{"v4.0_", ""} {
				path := filepath.Join(root, flavor, id.Name, prefix+leaf, id.Name+".dll")
				if mod := r.tryOpen(path, id); mod != nil {
					return mod
				}
			}
		}
		// Mono layout: <root>/<name>/<version>_<culture>_<token>/<name>.dll
		if mod := r.tryOpen(filepath.Join(root, id.Name, leaf, id.Name+".dll"), id); mod != nil {
			return mod
		}
	}
	return nil
}

func (r *Resolver) tryOpen(path string, id *typesys.AssemblyIdentity) *typesys.Module {
	if !isFile(path) {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	r.mu.RLock()
	mod := r.byPath[abs]
	r.mu.RUnlock()
	if mod == nil {
		mod, err = reader.OpenFile(abs, reader.Options{Location: abs, Resolver: r, Logger: r.log})
		if err != nil {
			r.log.Debug("probe candidate rejected", zap.String("location", abs), zap.Error(err))
			return nil
		}
		if !strings.EqualFold(assemblyName(mod), id.Name) {
			r.log.Debug("probe candidate has another identity",
				zap.String("location", abs),
				zap.String("found", assemblyName(mod)))
			_ = mod.Close()
			return nil
		}
		return r.register(abs, mod)
	}
	if !strings.EqualFold(assemblyName(mod), id.Name) {
		return nil
	}
	return mod
}

func assemblyName(mod *typesys.Module) string {
	if mod.Assembly != nil && mod.Assembly.Name != "" {
		return mod.Assembly.Name
	}
	return strings.TrimSuffix(mod.Name, filepath.Ext(mod.Name))
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
