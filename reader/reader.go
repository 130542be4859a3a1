package reader

import (
	"go.uber.org/zap"

	"github.com/wippyai/clrmeta"
	"github.com/wippyai/clrmeta/cil"
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// AssemblyResolver locates the modules that assembly and module references
// point to. Package resolve provides the standard probing chain. A resolver
// never fails: a reference it cannot satisfy yields a placeholder module
// and a diagnostic on the referrer.
type AssemblyResolver interface {
	ResolveAssembly(ref *typesys.AssemblyReference, referrer *typesys.Module) *typesys.Module
	ResolveModule(ref *typesys.ModuleReference, referrer *typesys.Module) *typesys.Module
}

var (
	_ typesys.Loader = (*Reader)(nil)
	_ cil.Resolver   = (*Reader)(nil)
)

// Options configure how a module is opened.
type Options struct {
	// Location is the file path of the module, used for probing siblings.
	Location string
	// Resolver resolves references to other assemblies and modules. Nil
	// leaves every reference unresolved.
	Resolver AssemblyResolver
	// Symbols enriches method bodies with local names and sequence points.
	Symbols clrmeta.SymbolProvider
	// Logger overrides the package logger for this module.
	Logger *zap.Logger
}

// Reader materializes the object graph of one module. It implements
// typesys.Loader and cil.Resolver and is the only writer of the load slots
// of the entities it creates. A Reader is not safe for concurrent use.
type Reader struct {
	store *metadata.Store
	mod   *typesys.Module
	opts  Options
	log   *zap.Logger

	typeDefs      []typesys.Slot[*typesys.TypeDef]
	typeRefs      []typesys.Slot[*typesys.TypeDef]
	typeSpecs     []typesys.Slot[typesys.Type]
	fields        []typesys.Slot[*typesys.Field]
	methods       []typesys.Slot[*typesys.Method]
	properties    []typesys.Slot[*typesys.Property]
	events        []typesys.Slot[*typesys.Event]
	memberRefs    []typesys.Slot[typesys.Entity]
	methodSpecs   []typesys.Slot[*typesys.Method]
	genericParams []typesys.Slot[*typesys.GenericParam]
	signatures    []typesys.Slot[standAlone]

	placeholders map[string]*typesys.TypeDef
	namedRefs    map[string]*typesys.AssemblyReference
	open         openParams
}

// Open reads a managed module from src. The source is owned by the module
// and released by Module.Close; on any error it is closed before Open
// returns.
func Open(src clrmeta.ByteSource, opts Options) (mod *typesys.Module, err error) {
	defer func() {
		if err != nil {
			_ = src.Close()
		}
	}()

	store, err := metadata.Open(src.Bytes())
	if err != nil {
		return nil, err
	}
	r, err := New(store, opts)
	if err != nil {
		return nil, err
	}
	r.mod.SetCloser(src.Close)
	return r.mod, nil
}

// OpenFile reads the module at path into memory and opens it.
func OpenFile(path string, opts Options) (*typesys.Module, error) {
	src, err := clrmeta.ReadFileSource(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	if opts.Location == "" {
		opts.Location = path
	}
	return Open(src, opts)
}

// New builds the module graph of an already parsed store. Failures to
// decode the module's own identity or type definitions are fatal.
func New(store *metadata.Store, opts Options) (*Reader, error) {
	r := &Reader{
		store:        store,
		opts:         opts,
		log:          opts.Logger,
		placeholders: make(map[string]*typesys.TypeDef),
		namedRefs:    make(map[string]*typesys.AssemblyReference),
	}
	if r.log == nil {
		r.log = Logger()
	}
	r.allocate()
	if err := r.load(); err != nil {
		return nil, err
	}
	r.log.Debug("module loaded",
		zap.String("module", r.mod.Name),
		zap.String("location", r.mod.Location),
		zap.Int("types", len(r.mod.Types())))
	return r, nil
}

// Of returns the reader that populates mod, or nil when mod was not
// produced by this package.
func Of(mod *typesys.Module) *Reader {
	if mod == nil {
		return nil
	}
	r, _ := mod.Loader().(*Reader)
	return r
}

// Module returns the module being read.
func (r *Reader) Module() *typesys.Module { return r.mod }

// Store returns the underlying table store.
func (r *Reader) Store() *metadata.Store { return r.store }

func (r *Reader) allocate() {
	n := func(t metadata.Table) int { return int(r.store.RowCount(t)) }
	r.typeDefs = make([]typesys.Slot[*typesys.TypeDef], n(metadata.TableTypeDef))
	r.typeRefs = make([]typesys.Slot[*typesys.TypeDef], n(metadata.TableTypeRef))
	r.typeSpecs = make([]typesys.Slot[typesys.Type], n(metadata.TableTypeSpec))
	r.fields = make([]typesys.Slot[*typesys.Field], n(metadata.TableField))
	r.methods = make([]typesys.Slot[*typesys.Method], n(metadata.TableMethodDef))
	r.properties = make([]typesys.Slot[*typesys.Property], n(metadata.TableProperty))
	r.events = make([]typesys.Slot[*typesys.Event], n(metadata.TableEvent))
	r.memberRefs = make([]typesys.Slot[typesys.Entity], n(metadata.TableMemberRef))
	r.methodSpecs = make([]typesys.Slot[*typesys.Method], n(metadata.TableMethodSpec))
	r.genericParams = make([]typesys.Slot[*typesys.GenericParam], n(metadata.TableGenericParam))
	r.signatures = make([]typesys.Slot[standAlone], n(metadata.TableStandAloneSig))
}

func (r *Reader) load() error {
	row, err := r.store.Module()
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidMetadata, err, "module row")
	}
	mod := typesys.NewModule(row.Name, r.opts.Location)
	mod.Mvid = row.Mvid
	mod.RuntimeVersion = r.store.Version
	mod.EntryPoint = r.store.EntryPoint()
	if img := r.store.Image(); img != nil {
		mod.Machine = img.Machine
		mod.CLIFlags = img.CLI.Flags
	}
	mod.SetLoader(r)
	r.mod = mod
	r.open = newOpenParams()

	if err := r.loadAssembly(); err != nil {
		return err
	}
	if err := r.loadReferences(); err != nil {
		return err
	}

	types := make([]*typesys.TypeDef, 0, len(r.typeDefs))
	for rid := uint32(1); rid <= uint32(len(r.typeDefs)); rid++ {
		t, err := r.TypeFromDef(rid)
		if err != nil {
			return err
		}
		types = append(types, t)
	}
	mod.SetTypes(types)
	return nil
}

func (r *Reader) loadAssembly() error {
	row, ok, err := r.store.Assembly()
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidMetadata, err, "assembly row")
	}
	if !ok {
		return nil
	}
	key, err := r.store.GetBlob(row.PublicKey)
	if err != nil {
		return err
	}
	r.mod.Assembly = &typesys.AssemblyIdentity{
		Name:          row.Name,
		Version:       typesys.Version(row.Version),
		Culture:       row.Culture,
		PublicKey:     key,
		Flags:         row.Flags,
		HashAlgorithm: row.HashAlgID,
	}
	return nil
}

// Assembly reference flags.
const assemblyRefPublicKey uint32 = 0x0001

func (r *Reader) loadReferences() error {
	for rid := uint32(1); rid <= r.store.RowCount(metadata.TableAssemblyRef); rid++ {
		row, err := r.store.AssemblyRef(rid)
		if err != nil {
			return err
		}
		blob, err := r.store.GetBlob(row.PublicKeyOrToken)
		if err != nil {
			return err
		}
		ref := &typesys.AssemblyReference{
			Identity: typesys.AssemblyIdentity{
				Name:    row.Name,
				Version: typesys.Version(row.Version),
				Culture: row.Culture,
				Flags:   row.Flags,
			},
			Token:    metadata.NewToken(metadata.TableAssemblyRef, rid),
			Referrer: r.mod,
		}
		if row.Flags&assemblyRefPublicKey != 0 {
			ref.Identity.PublicKey = blob
		} else {
			ref.Identity.PublicKeyToken = blob
		}
		ref.SetLoader(r)
		r.mod.AssemblyRefs = append(r.mod.AssemblyRefs, ref)
	}
	for rid := uint32(1); rid <= r.store.RowCount(metadata.TableModuleRef); rid++ {
		name, err := r.store.ModuleRef(rid)
		if err != nil {
			return err
		}
		ref := &typesys.ModuleReference{
			Name:     name,
			Token:    metadata.NewToken(metadata.TableModuleRef, rid),
			Referrer: r.mod,
		}
		ref.SetLoader(r)
		r.mod.ModuleRefs = append(r.mod.ModuleRefs, ref)
	}
	return nil
}

// ResolveAssembly implements typesys.Loader.
func (r *Reader) ResolveAssembly(ref *typesys.AssemblyReference) *typesys.Module {
	if r.opts.Resolver != nil {
		return r.opts.Resolver.ResolveAssembly(ref, r.mod)
	}
	r.mod.Record(errors.Unresolved(uint32(ref.Token), "assembly", ref.Identity.String()))
	return typesys.NewPlaceholderModule(ref.Identity)
}

// ResolveModule implements typesys.Loader.
func (r *Reader) ResolveModule(ref *typesys.ModuleReference) *typesys.Module {
	if r.opts.Resolver != nil {
		return r.opts.Resolver.ResolveModule(ref, r.mod)
	}
	r.mod.Record(errors.Unresolved(uint32(ref.Token), "module", ref.Name))
	return typesys.NewPlaceholderModule(typesys.AssemblyIdentity{Name: ref.Name})
}

// assemblyRef returns the AssemblyReference of a 1-based row.
func (r *Reader) assemblyRef(rid uint32) (*typesys.AssemblyReference, error) {
	if rid == 0 || int(rid) > len(r.mod.AssemblyRefs) {
		return nil, errors.BadTableIndex(errors.PhaseResolve, metadata.TableAssemblyRef.String(), int(rid), len(r.mod.AssemblyRefs))
	}
	return r.mod.AssemblyRefs[rid-1], nil
}

// moduleRef returns the ModuleReference of a 1-based row.
func (r *Reader) moduleRef(rid uint32) (*typesys.ModuleReference, error) {
	if rid == 0 || int(rid) > len(r.mod.ModuleRefs) {
		return nil, errors.BadTableIndex(errors.PhaseResolve, metadata.TableModuleRef.String(), int(rid), len(r.mod.ModuleRefs))
	}
	return r.mod.ModuleRefs[rid-1], nil
}

// record appends a diagnostic to the module and logs it.
func (r *Reader) record(err *errors.Error) {
	r.mod.Record(err)
	r.log.Debug("diagnostic",
		zap.String("module", r.mod.Name),
		zap.Uint32("token", err.Token),
		zap.String("kind", string(err.Kind)),
		zap.String("detail", err.Detail))
}

// recordErr records a lazy decode failure. Errors that are already
// structured keep their kind.
func (r *Reader) recordErr(tok metadata.Token, err error) {
	var e *errors.Error
	if errors.As(err, &e) {
		if e.Token == 0 {
			cp := *e
			cp.Token = uint32(tok)
			e = &cp
		}
		r.record(e)
		return
	}
	r.record(errors.New(errors.PhaseResolve, errors.KindInvalidMetadata).Token(uint32(tok)).Cause(err).Build())
}

func rowIndex(rid uint32, n int) bool {
	return rid != 0 && int(rid) <= n
}

func badRow(t metadata.Table, rid uint32, n int) error {
	return errors.BadTableIndex(errors.PhaseResolve, t.String(), int(rid), n)
}
