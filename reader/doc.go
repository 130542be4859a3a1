// Package reader turns the tables of a managed module into the typesys
// object graph.
//
// A Reader owns one metadata.Store and keeps one load slot per table row,
// so every token resolves to exactly one object for the lifetime of the
// module. Type definitions are published in their slot before anything
// they reference is resolved; members, attributes and bodies are filled in
// on first access through the typesys.Loader interface, which Reader
// implements.
//
// Signatures are decoded against an explicit generic context. Rows that
// may be shared between generic definitions (TypeSpec, MemberRef,
// MethodSpec, StandAloneSig) are cached in an open form whose VAR and MVAR
// parameters are positional, then bound to the caller's context on use.
package reader
