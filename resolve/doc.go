// Package resolve locates the assemblies and modules a managed module
// refers to.
//
// A Resolver is handed to the reader as its AssemblyResolver, so every
// module it opens resolves its own references through the same session:
//
//	r := resolve.New(resolve.Options{SearchDirs: []string{"lib"}})
//	defer r.Close()
//	mod, err := r.Open("bin/App.dll")
//
// Strong-named assemblies are shared between resolvers through a bounded
// process-wide Cache; concurrent loads of the same strong name converge on
// one module and the losing copy is closed. A reference that cannot be
// located never fails: it yields a placeholder module and an Unresolved
// diagnostic on the referring module.
package resolve
