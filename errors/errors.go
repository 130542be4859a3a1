package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseImage     Phase = "image"     // PE/COFF and CLI header
	PhaseTables    Phase = "tables"    // metadata root, streams and tables
	PhaseHeap      Phase = "heap"      // #Strings/#Blob/#GUID/#US access
	PhaseSignature Phase = "signature" // signature blobs
	PhaseResolve   Phase = "resolve"   // token and reference resolution
	PhaseAttribute Phase = "attribute" // custom attribute and permission blobs
	PhaseBody      Phase = "body"      // method bodies and IL
	PhaseSymbols   Phase = "symbols"   // debug symbol enrichment
	PhaseLoad      Phase = "load"      // module loading and assembly probing
	PhaseConfig    Phase = "config"    // configuration files
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidMetadata   Kind = "invalid_metadata"
	KindBadTableIndex     Kind = "bad_table_index"
	KindUnresolved        Kind = "unresolved"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindMissingDebugInfo  Kind = "missing_debug_info"
	KindUnsupported       Kind = "unsupported"
	KindCycle             Kind = "cycle"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindIO                Kind = "io"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
	Token  uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Token != 0 {
		fmt.Fprintf(&b, " token 0x%08x", e.Token)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks that only care about the Kind.
var (
	ErrInvalidMetadata = &Error{Kind: KindInvalidMetadata}
	ErrBadTableIndex   = &Error{Kind: KindBadTableIndex}
	ErrUnresolved      = &Error{Kind: KindUnresolved}
)

// IsFatal reports whether err aborts module construction.
func IsFatal(err error) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	return e.Kind == KindInvalidMetadata || e.Kind == KindBadTableIndex
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Token sets the metadata token involved
func (b *Builder) Token(tok uint32) *Builder {
	b.err.Token = tok
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidMetadata creates a fatal malformed-metadata error
func InvalidMetadata(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidMetadata,
		Detail: detail,
	}
}

// BadTableIndex creates an out-of-range row or heap index error
func BadTableIndex(phase Phase, table string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadTableIndex,
		Path:   []string{table},
		Detail: fmt.Sprintf("index %d out of range (length %d)", index, length),
		Value:  index,
	}
}

// Unresolved creates an unresolved-reference diagnostic
func Unresolved(tok uint32, what, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolved,
		Token:  tok,
		Detail: fmt.Sprintf("%s %q could not be resolved", what, name),
	}
}

// SignatureMismatch creates a diagnostic for a member reference whose
// signature matches no member of the referenced type
func SignatureMismatch(tok uint32, member, owner string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindSignatureMismatch,
		Token:  tok,
		Path:   []string{owner, member},
		Detail: "no member with a matching signature",
	}
}

// MissingDebugInfo creates a debug-symbol diagnostic
func MissingDebugInfo(tok uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseSymbols,
		Kind:   KindMissingDebugInfo,
		Token:  tok,
		Detail: "debug symbols unavailable",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}
