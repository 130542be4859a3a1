// Package clrmeta reads ECMA-335 managed modules and materializes an
// in-memory object graph of types, members, signatures and method bodies.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	clrmeta/            Root package with collaborator interfaces (byte source, symbols)
//	├── metadata/       PE/CLI headers, metadata streams, tables and heaps
//	├── typesys/        Object graph: modules, types, members, generic instances
//	├── reader/         Token resolution, signatures, custom attributes, bodies
//	├── cil/            CIL opcode table and the flat and structured body decoders
//	├── resolve/        Assembly and module resolution with process-wide caching
//	├── config/         YAML configuration for probing and logging
//	├── errors/         Structured error types and module diagnostics
//	└── cmd/ildump/     Command-line inspector and interactive browser
//
// # Quick Start
//
// Load a module and walk its types:
//
//	mod, err := reader.OpenFile("Library.dll", reader.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mod.Close()
//
//	for _, t := range mod.Types() {
//	    fmt.Println(t.FullName())
//	}
//
// Decode a method body in either form:
//
//	instrs, err := reader.Instructions(method)   // flat, with region markers
//	root, err := reader.Tree(method)             // blocks, expressions, try regions
//
// # Laziness
//
// Type identity (name, namespace, flags, generic parameters) is built when a
// token is first resolved. Base types, interfaces, members, attributes and
// method bodies are populated on first access and then cached for the
// lifetime of the module.
//
// # Thread Safety
//
// A module and everything reachable from it must be used by a single
// goroutine. Separate modules may be loaded concurrently; the process-wide
// strong-name cache in package resolve is safe for concurrent use.
//
// # Errors
//
// Malformed metadata aborts loading with a fatal error. Unresolvable
// references, signature mismatches and missing debug information are
// recorded on the module (Module.Diagnostics) and replaced by placeholders.
package clrmeta
