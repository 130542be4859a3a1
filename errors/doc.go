// Package errors provides structured error types for the clrmeta library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: the metadata token involved, a member path,
// a human-readable detail and a cause chain.
//
// Two severities exist. Fatal errors (KindInvalidMetadata, KindBadTableIndex raised
// while a module is being constructed) abort loading and are returned to the caller.
// Everything else is recorded as a diagnostic on the owning module while a placeholder
// is substituted, so consumers keep a valid graph.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnresolved).
//		Token(0x01000004).
//		Path("System.Collections", "List`1").
//		Detail("assembly %q not found", "mscorlib").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidMetadata(errors.PhaseTables, "row size mismatch")
//	err := errors.BadTableIndex(errors.PhaseTables, "TypeDef", 12, 10)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
