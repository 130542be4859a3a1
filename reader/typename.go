package reader

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/typesys"
)

// SuffixKind is a type constructor applied after a serialized type name.
type SuffixKind uint8

const (
	SuffixSZArray SuffixKind = iota
	SuffixArray
	SuffixPointer
	SuffixByRef
)

// Suffix is one array, pointer or by-reference constructor.
type Suffix struct {
	Kind SuffixKind
	Rank uint32
}

// TypeName is a parsed serialized type name as written in custom
// attribute blobs and permission sets:
//
//	Ns.Outer+Inner`1[[Arg, ArgAssembly]][], Assembly, Version=1.0.0.0
type TypeName struct {
	Namespace string
	Name      string
	Nested    []string
	Args      []*TypeName
	Suffixes  []Suffix
	Assembly  string
}

func (n *TypeName) String() string {
	var b strings.Builder
	n.write(&b)
	if n.Assembly != "" {
		b.WriteString(", ")
		b.WriteString(n.Assembly)
	}
	return b.String()
}

func (n *TypeName) write(b *strings.Builder) {
	if n.Namespace != "" {
		b.WriteString(n.Namespace)
		b.WriteByte('.')
	}
	b.WriteString(n.Name)
	for _, nested := range n.Nested {
		b.WriteByte('+')
		b.WriteString(nested)
	}
	if len(n.Args) > 0 {
		b.WriteByte('[')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			if a.Assembly != "" {
				b.WriteByte('[')
				b.WriteString(a.String())
				b.WriteByte(']')
			} else {
				a.write(b)
			}
		}
		b.WriteByte(']')
	}
	for _, s := range n.Suffixes {
		switch s.Kind {
		case SuffixSZArray:
			b.WriteString("[]")
		case SuffixArray:
			if s.Rank == 1 {
				b.WriteString("[*]")
			} else {
				b.WriteByte('[')
				b.WriteString(strings.Repeat(",", int(s.Rank-1)))
				b.WriteByte(']')
			}
		case SuffixPointer:
			b.WriteByte('*')
		case SuffixByRef:
			b.WriteByte('&')
		}
	}
}

// name parsing modes
const (
	nameTop       = iota // assembly qualifier runs to the end
	nameQualified        // assembly qualifier runs to the closing bracket
	nameBare             // no assembly qualifier
)

type typeNameParser struct {
	s   string
	pos int
}

// ParseTypeName parses a serialized type name.
func ParseTypeName(s string) (*TypeName, error) {
	p := &typeNameParser{s: s}
	n, err := p.parse(nameTop)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, p.fail("trailing characters")
	}
	return n, nil
}

func (p *typeNameParser) fail(detail string) error {
	return errors.New(errors.PhaseAttribute, errors.KindInvalidMetadata).
		Detail("type name %q at %d: %s", p.s, p.pos, detail).
		Build()
}

func (p *typeNameParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *typeNameParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeNameParser) consume(c byte) bool {
	p.skipSpace()
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

// arrayAhead reports whether the bracket at pos opens an array suffix
// rather than a generic argument list.
func (p *typeNameParser) arrayAhead() bool {
	i := p.pos + 1
	for i < len(p.s) && p.s[i] == ' ' {
		i++
	}
	if i >= len(p.s) {
		return false
	}
	switch p.s[i] {
	case ']', ',', '*':
		return true
	}
	return false
}

func (p *typeNameParser) ident() (string, error) {
	p.skipSpace()
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '\\' && p.pos+1 < len(p.s) {
			b.WriteByte(p.s[p.pos+1])
			p.pos += 2
			continue
		}
		if strings.IndexByte("[]+,*&", c) >= 0 {
			break
		}
		b.WriteByte(c)
		p.pos++
	}
	name := strings.TrimRight(b.String(), " ")
	if name == "" {
		return "", p.fail("expected a name")
	}
	return name, nil
}

func (p *typeNameParser) parse(mode int) (*TypeName, error) {
	full, err := p.ident()
	if err != nil {
		return nil, err
	}
	n := &TypeName{}
	n.Namespace, n.Name = splitTypeName(full)
	for p.peek() == '+' {
		p.pos++
		nested, err := p.ident()
		if err != nil {
			return nil, err
		}
		n.Nested = append(n.Nested, nested)
	}

	if p.peek() == '[' && !p.arrayAhead() {
		p.pos++
		if err := p.parseArgs(n); err != nil {
			return nil, err
		}
	}
	if err := p.parseSuffixes(n); err != nil {
		return nil, err
	}

	if mode == nameBare {
		return n, nil
	}
	p.skipSpace()
	if p.peek() != ',' {
		return n, nil
	}
	p.pos++
	end := len(p.s)
	if mode == nameQualified {
		end = strings.IndexByte(p.s[p.pos:], ']')
		if end < 0 {
			return nil, p.fail("unterminated assembly name")
		}
		end += p.pos
	}
	n.Assembly = strings.TrimSpace(p.s[p.pos:end])
	p.pos = end
	if n.Assembly == "" {
		return nil, p.fail("empty assembly name")
	}
	return n, nil
}

func (p *typeNameParser) parseArgs(n *TypeName) error {
	for {
		p.skipSpace()
		var (
			arg *TypeName
			err error
		)
		if p.peek() == '[' {
			p.pos++
			if arg, err = p.parse(nameQualified); err != nil {
				return err
			}
			if !p.consume(']') {
				return p.fail("expected ] after generic argument")
			}
		} else if arg, err = p.parse(nameBare); err != nil {
			return err
		}
		n.Args = append(n.Args, arg)
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			return nil
		}
		return p.fail("expected , or ] in generic arguments")
	}
}

func (p *typeNameParser) parseSuffixes(n *TypeName) error {
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			n.Suffixes = append(n.Suffixes, Suffix{Kind: SuffixPointer})
		case '&':
			p.pos++
			n.Suffixes = append(n.Suffixes, Suffix{Kind: SuffixByRef})
		case '[':
			if !p.arrayAhead() {
				return p.fail("generic arguments after a type constructor")
			}
			p.pos++
			s := Suffix{Kind: SuffixSZArray, Rank: 1}
			for {
				p.skipSpace()
				c := p.peek()
				p.pos++
				switch c {
				case ']':
					n.Suffixes = append(n.Suffixes, s)
				case ',':
					s.Kind = SuffixArray
					s.Rank++
					continue
				case '*':
					s.Kind = SuffixArray
					continue
				default:
					p.pos--
					return p.fail("malformed array suffix")
				}
				break
			}
		default:
			return nil
		}
	}
}

// splitTypeName splits a top-level name at its last dot.
func splitTypeName(full string) (namespace, name string) {
	if i := strings.LastIndexByte(full, '.'); i > 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

// ParseAssemblyName parses a display name such as
// "mscorlib, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089".
// Unknown attributes are ignored.
func ParseAssemblyName(s string) (typesys.AssemblyIdentity, error) {
	parts := strings.Split(s, ",")
	id := typesys.AssemblyIdentity{Name: strings.TrimSpace(parts[0])}
	if id.Name == "" {
		return id, errors.InvalidInput(errors.PhaseAttribute, "empty assembly name in "+strconv.Quote(s))
	}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return id, errors.InvalidInput(errors.PhaseAttribute, "malformed assembly name attribute "+strconv.Quote(part))
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "version":
			v, err := ParseVersion(value)
			if err != nil {
				return id, err
			}
			id.Version = v
		case "culture":
			if !strings.EqualFold(value, "neutral") {
				id.Culture = value
			}
		case "publickeytoken":
			if strings.EqualFold(value, "null") || value == "" {
				continue
			}
			tok, err := hex.DecodeString(value)
			if err != nil {
				return id, errors.Wrap(errors.PhaseAttribute, errors.KindInvalidInput, err, "public key token")
			}
			id.PublicKeyToken = tok
		case "publickey":
			key, err := hex.DecodeString(value)
			if err != nil {
				return id, errors.Wrap(errors.PhaseAttribute, errors.KindInvalidInput, err, "public key")
			}
			id.PublicKey = key
			id.Flags |= assemblyRefPublicKey
		}
	}
	return id, nil
}

// ParseVersion parses a dotted version of up to four components.
func ParseVersion(s string) (typesys.Version, error) {
	var v typesys.Version
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return v, errors.InvalidInput(errors.PhaseAttribute, "malformed version "+strconv.Quote(s))
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return v, errors.Wrap(errors.PhaseAttribute, errors.KindInvalidInput, err, "version component")
		}
		v[i] = uint16(n)
	}
	return v, nil
}

// TypeFromName resolves a serialized type name. Names without an assembly
// qualifier are looked up in this module, then in the core library.
func (r *Reader) TypeFromName(s string) (typesys.Type, error) {
	n, err := ParseTypeName(s)
	if err != nil {
		return nil, err
	}
	return r.typeFromName(n)
}

func (r *Reader) typeFromName(n *TypeName) (typesys.Type, error) {
	def, err := r.definitionFromName(n)
	if err != nil {
		return nil, err
	}
	var t typesys.Type = def
	if len(n.Args) > 0 {
		args := make([]typesys.Type, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = r.typeFromName(a); err != nil {
				return nil, err
			}
		}
		t = r.mod.Instantiate(def, args)
	}
	for _, s := range n.Suffixes {
		switch s.Kind {
		case SuffixSZArray:
			t = typesys.NewSZArray(t)
		case SuffixArray:
			t = &typesys.Array{Elem: t, Rank: s.Rank}
		case SuffixPointer:
			t = &typesys.Pointer{Elem: t}
		case SuffixByRef:
			t = &typesys.ByRef{Elem: t}
		}
	}
	return t, nil
}

func (r *Reader) definitionFromName(n *TypeName) (*typesys.TypeDef, error) {
	scope := r.mod.Name
	var top *typesys.TypeDef
	if n.Assembly != "" {
		id, err := ParseAssemblyName(n.Assembly)
		if err != nil {
			return nil, err
		}
		scope = id.Name
		top = r.findExported(r.assemblyModule(id), n.Namespace, n.Name, 0)
	} else {
		top = r.coreType(n.Namespace, n.Name)
	}
	if top == nil {
		top = r.placeholder(0, scope, n.Namespace, n.Name, nil)
	}
	t := top
	for _, name := range n.Nested {
		var next *typesys.TypeDef
		if !t.Placeholder {
			next = t.FindNested(name)
		}
		if next == nil {
			next = r.placeholder(0, scope, "", name, t)
		}
		t = next
	}
	return t, nil
}

// assemblyModule returns the module of the named assembly: this module,
// a referenced assembly, or one only named in blobs.
func (r *Reader) assemblyModule(id typesys.AssemblyIdentity) *typesys.Module {
	if r.mod.Assembly != nil && strings.EqualFold(r.mod.Assembly.Name, id.Name) {
		return r.mod
	}
	for _, ref := range r.mod.AssemblyRefs {
		if strings.EqualFold(ref.Identity.Name, id.Name) {
			return ref.Resolve()
		}
	}
	key := strings.ToLower(id.Name)
	ref, ok := r.namedRefs[key]
	if !ok {
		ref = &typesys.AssemblyReference{Identity: id, Referrer: r.mod}
		ref.SetLoader(r)
		r.namedRefs[key] = ref
	}
	return ref.Resolve()
}
