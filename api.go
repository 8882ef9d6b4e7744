package crate

// Hooks lets a caller observe structural changes without taking part in
// them. Every hook defaults to a no-op; a Registry only guarantees the
// call sites exist, not that anything dispatches from them.
type Hooks struct {
	OnEntityCreated   func(Entity)
	OnEntityDestroyed func(Entity)
	OnComponentAdded  func(Entity, ComponentID)
	OnComponentRemoved func(Entity, ComponentID)
}

func (h Hooks) entityCreated(e Entity) {
	if h.OnEntityCreated != nil {
		h.OnEntityCreated(e)
	}
}

func (h Hooks) entityDestroyed(e Entity) {
	if h.OnEntityDestroyed != nil {
		h.OnEntityDestroyed(e)
	}
}

func (h Hooks) componentAdded(e Entity, id ComponentID) {
	if h.OnComponentAdded != nil {
		h.OnComponentAdded(e, id)
	}
}

func (h Hooks) componentRemoved(e Entity, id ComponentID) {
	if h.OnComponentRemoved != nil {
		h.OnComponentRemoved(e, id)
	}
}
