package crate

import "github.com/TheBitDrifter/mask"

// Registry is the top-level façade binding an EntityPool, a
// ComponentRegistry, an ArchetypeManager and a RelationshipGraph into one
// coherent ECS world — the primary type callers construct and operate
// against.
//
// Registry is single-writer, matching doc.go's contract: concurrent
// mutation must be externally synchronized. What Registry does guard
// against on its own is a narrower hazard — a structural change (entity
// destroy, component add/remove) arriving while a View has archetypes
// pinned for iteration. Those calls are buffered onto a queue and applied
// once the last active View unlocks.
type Registry struct {
	cfg        RegistryConfig
	components *ComponentRegistry
	entities   *EntityPool
	manager    *ArchetypeManager
	relations  *RelationshipGraph
	hooks      Hooks
	signalMask mask.Mask256

	lockDepth int
	deferred  []func()
}

// NewRegistry builds a Registry from cfg, sharing no state with any other
// Registry unless the caller arranges to reuse a ComponentRegistry via
// NewRegistryWithComponents.
func NewRegistry(cfg RegistryConfig) *Registry {
	return NewRegistryWithComponents(cfg, NewComponentRegistry())
}

// NewRegistryWithComponents builds a Registry sharing components with
// other registries that were given the same *ComponentRegistry, so a
// ComponentID assigned in one is valid (and means the same type) in all
// of them.
func NewRegistryWithComponents(cfg RegistryConfig, components *ComponentRegistry) *Registry {
	return &Registry{
		cfg:        cfg,
		components: components,
		entities:   NewEntityPool(cfg.EntityPool),
		manager:    NewArchetypeManager(components, cfg.ChunkPool),
		relations:  NewRelationshipGraph(cfg.RelationshipCapacity),
		hooks:      cfg.Hooks,
		signalMask: cfg.SignalMask,
	}
}

// Components returns the registry's shared component-type registry, for
// passing to Register[T] or to a sibling Registry constructed with
// NewRegistryWithComponents.
func (r *Registry) Components() *ComponentRegistry { return r.components }

// lockStructural and unlockStructural bracket a View's lifetime
// (View.init / View.Reset, View.ForEachChunk). Depth-counted so nested or
// concurrent views within one goroutine nest correctly; the deferred
// queue only drains once the outermost lock releases.
func (r *Registry) lockStructural() { r.lockDepth++ }

func (r *Registry) unlockStructural() {
	if r.lockDepth == 0 {
		return
	}
	r.lockDepth--
	if r.lockDepth == 0 {
		r.drain()
	}
}

func (r *Registry) locked() bool { return r.lockDepth > 0 }

// enqueue buffers a structural mutation for later application, or applies
// it immediately if the registry isn't currently locked.
func (r *Registry) enqueue(f func()) {
	if r.locked() {
		r.deferred = append(r.deferred, f)
		return
	}
	f()
}

func (r *Registry) drain() {
	for len(r.deferred) > 0 {
		pending := r.deferred
		r.deferred = nil
		for _, f := range pending {
			f()
		}
	}
}

// Tick advances the registry's logical clock used to age empty archetypes.
func (r *Registry) Tick() { r.manager.Tick() }

// IsValid reports whether e currently names a live entity.
func (r *Registry) IsValid(e Entity) bool { return r.entities.IsValid(e) }

// CreateEntity allocates a fresh entity and places it directly into the
// archetype matching the given initial component values.
func (r *Registry) CreateEntity(inits ...ComponentInit) (Entity, error) {
	e, err := r.entities.Create()
	if err != nil {
		return NullEntity, err
	}
	if err := r.manager.createEntity(e, inits); err != nil {
		r.entities.Destroy(e)
		return NullEntity, err
	}
	r.hooks.entityCreated(e)
	return e, nil
}

// CreateEntities allocates n entities, calling build(i) to get the i'th
// entity's initial components. Allocation is all-or-nothing at the
// entity-pool level; a placement failure for entity i leaves entities
// [0, i) created and returns the error — partial batches are not
// unwound past the pool for placement failures specifically, as opposed
// to pool exhaustion, which is unwound by EntityPool.CreateBatch
// itself.
func (r *Registry) CreateEntities(n int, build func(i int) []ComponentInit) ([]Entity, error) {
	out := make([]Entity, n)
	if err := r.entities.CreateBatch(n, out); err != nil {
		return nil, err
	}
	for i, e := range out {
		if err := r.manager.createEntity(e, build(i)); err != nil {
			return out[:i], err
		}
		r.hooks.entityCreated(e)
	}
	return out, nil
}

// DestroyEntity invalidates e, removing its row and scrubbing it from the
// relationship graph. If a View is currently iterating, the destroy is
// buffered and applied once the last active View releases its lock.
func (r *Registry) DestroyEntity(e Entity) bool {
	if !r.entities.IsValid(e) {
		return false
	}
	r.enqueue(func() {
		if !r.entities.IsValid(e) {
			return
		}
		r.manager.destroyEntity(e)
		r.relations.OnEntityDestroyed(e)
		r.entities.Destroy(e)
		r.hooks.entityDestroyed(e)
	})
	return true
}

// DestroyEntities destroys every currently-valid entity in es, returning
// the count that was valid at call time.
func (r *Registry) DestroyEntities(es []Entity) int {
	n := 0
	for _, e := range es {
		if r.DestroyEntity(e) {
			n++
		}
	}
	return n
}

// NewView builds a View over this registry requiring every id in
// required, narrowed by any Not/Any/OneOf options.
func (r *Registry) NewView(required []ComponentID, opts ...FilterOption) *View {
	return NewView(r, required, opts...)
}

// SetParent makes child a child of parent in the relationship graph
// stored alongside archetype storage rather than as components.
func (r *Registry) SetParent(child, parent Entity) {
	r.relations.SetParent(child, parent)
}

// RemoveParent clears child's parent link, if any.
func (r *Registry) RemoveParent(child Entity) {
	r.relations.RemoveParent(child)
}

// Parent returns child's parent, if set.
func (r *Registry) Parent(child Entity) (Entity, bool) {
	return r.relations.Parent(child)
}

// AddLink makes a and b symmetric peers.
func (r *Registry) AddLink(a, b Entity) {
	r.relations.AddLink(a, b)
}

// RemoveLink breaks the peer relation between a and b, if present.
func (r *Registry) RemoveLink(a, b Entity) {
	r.relations.RemoveLink(a, b)
}

// GetRelations returns a traversal handle over the registry's
// relationship graph, restricted to entities whose archetype matches
// filter (nil for no restriction).
func (r *Registry) GetRelations(filter *Filter) *Relations {
	return r.relations.GetRelations(r, filter)
}

// CleanupEmptyArchetypes reclaims archetypes that have been empty for at
// least opts.MinEmptyDuration ticks.
func (r *Registry) CleanupEmptyArchetypes(opts CleanupOptions) int {
	return r.manager.CleanupEmptyArchetypes(opts)
}

// EntityCount returns the number of currently live entities.
func (r *Registry) EntityCount() int { return r.entities.Size() }
