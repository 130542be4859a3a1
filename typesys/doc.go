// Package typesys holds the resolved type graph of a managed module:
// type definitions, members, generic parameters and instances, custom
// attributes and method bodies.
//
// Entities are populated lazily. Each lazily loaded part lives in a Slot
// that moves from Unloaded through Loading to Loaded exactly once; the
// module's Loader is the only writer. A TypeDef is visible in its slot
// while it is still Loading so that self-referential metadata resolves to
// the same object.
//
// Generic instances are cached per module of the template definition, so
// the same template bound to equal arguments is always the same *Instance:
//
//	list := mod.FindType("System.Collections.Generic", "List`1")
//	a := list.Module.Instantiate(list, []typesys.Type{typesys.PrimitiveOf(metadata.ElementI4)})
//	b := list.Module.Instantiate(list, []typesys.Type{typesys.PrimitiveOf(metadata.ElementI4)})
//	// a == b
//
// Graph objects are not safe for concurrent population; use a module from
// one goroutine at a time.
package typesys
