package typesys

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/derekparker/trie"
	"github.com/google/uuid"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
)

// Version is an assembly version: major, minor, build, revision.
type Version [4]uint16

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	for i := range v {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	return 0
}

// AssemblyIdentity names an assembly definition or reference.
type AssemblyIdentity struct {
	Name    string
	Version Version
	Culture string
	// PublicKey is the full key of a definition or a reference flagged
	// with a full key; PublicKeyToken is its 8-byte token.
	PublicKey      []byte
	PublicKeyToken []byte
	Flags          uint32
	HashAlgorithm  uint32
}

// Token returns the public key token, deriving it from the public key when
// only the key is known.
func (id *AssemblyIdentity) Token() []byte {
	if len(id.PublicKeyToken) > 0 {
		return id.PublicKeyToken
	}
	if len(id.PublicKey) == 0 {
		return nil
	}
	sum := sha1.Sum(id.PublicKey)
	tok := make([]byte, 8)
	for i := range tok {
		tok[i] = sum[len(sum)-1-i]
	}
	id.PublicKeyToken = tok
	return tok
}

// IsStrongNamed reports whether the identity carries a public key token.
func (id *AssemblyIdentity) IsStrongNamed() bool {
	return len(id.Token()) > 0
}

// StrongName returns the case-insensitive cache key of a strong-named
// identity.
func (id *AssemblyIdentity) StrongName() string {
	return strings.ToLower(fmt.Sprintf("%s,%s,%s,%s", id.Name, id.Version, id.cultureName(), hex.EncodeToString(id.Token())))
}

func (id *AssemblyIdentity) cultureName() string {
	if id.Culture == "" {
		return "neutral"
	}
	return id.Culture
}

func (id *AssemblyIdentity) String() string {
	tok := "null"
	if t := id.Token(); len(t) > 0 {
		tok = hex.EncodeToString(t)
	}
	return fmt.Sprintf("%s, Version=%s, Culture=%s, PublicKeyToken=%s", id.Name, id.Version, id.cultureName(), tok)
}

// AssemblyReference is an AssemblyRef row of a module.
type AssemblyReference struct {
	Identity AssemblyIdentity
	Token    metadata.Token
	Referrer *Module

	loader   Loader
	resolved Slot[*Module]
}

// SetLoader attaches the lazy loader.
func (r *AssemblyReference) SetLoader(l Loader) { r.loader = l }

// Resolve returns the referenced module, or a placeholder module when it
// cannot be located.
func (r *AssemblyReference) Resolve() *Module {
	return r.resolved.Load(func() *Module {
		if r.loader == nil {
			return NewPlaceholderModule(r.Identity)
		}
		return r.loader.ResolveAssembly(r)
	})
}

func (r *AssemblyReference) String() string { return r.Identity.String() }

// ModuleReference is a ModuleRef row naming a sibling module or native
// library.
type ModuleReference struct {
	Name     string
	Token    metadata.Token
	Referrer *Module

	loader   Loader
	resolved Slot[*Module]
}

// SetLoader attaches the lazy loader.
func (r *ModuleReference) SetLoader(l Loader) { r.loader = l }

// Resolve returns the referenced module, or a placeholder.
func (r *ModuleReference) Resolve() *Module {
	return r.resolved.Load(func() *Module {
		if r.loader == nil {
			return NewPlaceholderModule(AssemblyIdentity{Name: r.Name})
		}
		return r.loader.ResolveModule(r)
	})
}

// Module is the root of the graph of one managed module. It owns every
// entity reachable from it.
type Module struct {
	Name           string
	Location       string
	Mvid           uuid.UUID
	RuntimeVersion string
	EntryPoint     metadata.Token
	Machine        uint16
	CLIFlags       uint32
	// Assembly is nil for a module without a manifest.
	Assembly     *AssemblyIdentity
	AssemblyRefs []*AssemblyReference
	ModuleRefs   []*ModuleReference
	// Placeholder is set on a synthesized module standing in for an
	// assembly that could not be located.
	Placeholder bool

	loader Loader
	closer func() error
	diag   errors.Diagnostics

	types  []*TypeDef
	byName map[string]*TypeDef
	index  *trie.Trie

	attrs       Slot[[]*Attribute]
	asmAttrs    Slot[[]*Attribute]
	asmSecurity Slot[[]*SecurityDeclaration]

	mu        sync.Mutex
	instances map[uint64][]*Instance
	methods   map[uint64][]*Method
}

// NewModule returns an empty module.
func NewModule(name, location string) *Module {
	return &Module{Name: name, Location: location}
}

// NewPlaceholderModule returns an empty module standing in for an
// unresolved assembly.
func NewPlaceholderModule(id AssemblyIdentity) *Module {
	m := &Module{Name: id.Name, Placeholder: true}
	m.Assembly = &id
	return m
}

// SetLoader attaches the lazy loader.
func (m *Module) SetLoader(l Loader) { m.loader = l }

// Loader returns the loader that populates the module.
func (m *Module) Loader() Loader { return m.loader }

// SetCloser registers the release of the module's backing bytes.
func (m *Module) SetCloser(fn func() error) { m.closer = fn }

// Close releases the backing bytes. Entities already materialized stay
// valid; lazy loads after Close fail.
func (m *Module) Close() error {
	if m.closer == nil {
		return nil
	}
	fn := m.closer
	m.closer = nil
	return fn()
}

// Record appends a diagnostic to the module.
func (m *Module) Record(err *errors.Error) {
	m.diag.Record(err)
}

// Diagnostics returns the recorded diagnostics in order.
func (m *Module) Diagnostics() []*errors.Error {
	return m.diag.List()
}

// Identity returns the assembly identity, or one made of the module name
// for a module without a manifest.
func (m *Module) Identity() AssemblyIdentity {
	if m.Assembly != nil {
		return *m.Assembly
	}
	return AssemblyIdentity{Name: m.Name}
}

func (m *Module) String() string {
	if m.Assembly != nil {
		return m.Assembly.String()
	}
	return m.Name
}

// SetTypes installs the type definitions of the module and indexes them
// by full name.
func (m *Module) SetTypes(types []*TypeDef) {
	m.types = types
	m.byName = make(map[string]*TypeDef, len(types))
	m.index = trie.New()
	for _, t := range types {
		name := t.FullName()
		if _, dup := m.byName[name]; dup {
			continue
		}
		m.byName[name] = t
		m.index.Add(name, t)
	}
}

// Types returns every type definition, nested ones included, in table order.
func (m *Module) Types() []*TypeDef {
	return m.types
}

// TopLevelTypes returns the types that are not nested.
func (m *Module) TopLevelTypes() []*TypeDef {
	var out []*TypeDef
	for _, t := range m.types {
		if t.Enclosing == nil {
			out = append(out, t)
		}
	}
	return out
}

// FindType returns the top-level type namespace.name, or nil.
func (m *Module) FindType(namespace, name string) *TypeDef {
	full := name
	if namespace != "" {
		full = namespace + "." + name
	}
	if t := m.byName[full]; t != nil && t.Enclosing == nil {
		return t
	}
	return nil
}

// FindTypeByName returns a type by full name. Nested types are separated
// by '/' or '+'.
func (m *Module) FindTypeByName(fullName string) *TypeDef {
	return m.byName[strings.ReplaceAll(fullName, "+", "/")]
}

// TypesWithPrefix returns the types whose full name starts with prefix,
// sorted by name.
func (m *Module) TypesWithPrefix(prefix string) []*TypeDef {
	if m.index == nil || !m.index.HasKeysWithPrefix(prefix) {
		return nil
	}
	keys := m.index.PrefixSearch(prefix)
	sort.Strings(keys)
	out := make([]*TypeDef, 0, len(keys))
	for _, k := range keys {
		if t := m.byName[k]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Attributes returns the custom attributes of the module.
func (m *Module) Attributes() []*Attribute {
	return m.attrs.Load(func() []*Attribute {
		if m.loader == nil {
			return nil
		}
		return m.loader.Attributes(metadata.NewToken(metadata.TableModule, 1))
	})
}

// AssemblyAttributes returns the custom attributes of the assembly manifest.
func (m *Module) AssemblyAttributes() []*Attribute {
	return m.asmAttrs.Load(func() []*Attribute {
		if m.loader == nil || m.Assembly == nil {
			return nil
		}
		return m.loader.Attributes(metadata.NewToken(metadata.TableAssembly, 1))
	})
}

// AssemblySecurity returns the declarative security of the assembly.
func (m *Module) AssemblySecurity() []*SecurityDeclaration {
	return m.asmSecurity.Load(func() []*SecurityDeclaration {
		if m.loader == nil || m.Assembly == nil {
			return nil
		}
		return m.loader.Security(metadata.NewToken(metadata.TableAssembly, 1))
	})
}
