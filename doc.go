/*
Package crate is an archetype-based Entity-Component-System (ECS) runtime.

Crate stores a dynamic population of entities, each associated with an
arbitrary subset of strongly-typed component values, in column-major
chunked storage keyed by component-set signature ("archetype"). It favors
cache-friendly traversal over flexibility: adding or removing a component
moves an entity's row to a different archetype rather than leaving holes in
a shared table.

Core concepts:

  - Entity: a packed 32-bit handle (index + generation) naming a row.
  - Component: a plain Go struct registered once with a ComponentRegistry.
  - Archetype: the chunked column storage for one exact component set.
  - View: a runtime filter over archetypes (required / excluded / any-of /
    one-of component ids) whose rows are read through typed ComponentType
    handles; an optional component is read with GetFromView, which returns
    nil where the row lacks it.
  - Relations: a parent/children and symmetric peer graph maintained
    alongside storage, cleaned up automatically on destroy.

Basic usage:

	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)

	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)

	e, _ := reg.CreateEntity(position.New(Position{X: 1, Y: 2}), velocity.New(Velocity{X: 1}))
	_ = e

	view := reg.NewView([]crate.ComponentID{position.ID(), velocity.ID()})
	for view.Next() {
		pos := position.GetFromView(view)
		vel := velocity.GetFromView(view)
		pos.X += vel.X
		pos.Y += vel.Y
	}

Crate is single-writer: every mutating operation on a Registry must be
externally synchronized; there is no internal locking.
*/
package crate
