package crate

import (
	"errors"
	"hash/fnv"
	"reflect"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// MaxComponents is the width of a ComponentMask.
const MaxComponents = 64

// ComponentID is a small, per-ComponentRegistry identifier in
// [0, MaxComponents).
type ComponentID uint8

// Constructor is an optional hook a component type may implement to
// observe construction of a new cell: OnConstruct runs once on the cell
// after its initial value (from CreateEntity or Add) has been written.
type Constructor interface {
	OnConstruct()
}

// Destructor is an optional hook a component type may implement to
// observe a cell being torn down on remove, archetype transition, or
// entity destroy. Types with no meaningful cleanup should simply not
// implement it.
type Destructor interface {
	OnDestroy()
}

// Marshaler lets a component type supply its own persistence encoding
// components that don't implement it fall back to gob (see persistence.go).
type Marshaler interface {
	MarshalComponent() ([]byte, error)
}

// Unmarshaler is the load-side counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalComponent([]byte) error
}

// ComponentDescriptor holds the per-type metadata a Registry assigns the
// first time a component type is registered.
type ComponentDescriptor struct {
	ID         ComponentID
	Name       string
	StableHash uint64
	Type       reflect.Type

	hasCtor bool
	hasDtor bool
	hasMarshal bool
}

// ComponentRegistry assigns stable small ids to component types and
// holds their descriptors. It is reference-counted in spirit: a single
// instance may back several independent Registry values so ids line up
// across them.
type ComponentRegistry struct {
	byType []reflect.Type
	byID   []*ComponentDescriptor
	index  map[reflect.Type]ComponentID
}

// NewComponentRegistry returns an empty, ready-to-use registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{index: make(map[reflect.Type]ComponentID)}
}

func stableHash(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// registerType is idempotent: the first call for a given type assigns an
// id, subsequent calls return the same one.
func (r *ComponentRegistry) registerType(t reflect.Type) *ComponentDescriptor {
	if id, ok := r.index[t]; ok {
		return r.byID[id]
	}
	if len(r.byID) >= MaxComponents {
		panic(bark.AddTrace(errors.New("crate: component registry exhausted (MaxComponents = 64)")))
	}
	id := ComponentID(len(r.byID))
	name := t.String()
	d := &ComponentDescriptor{
		ID:         id,
		Name:       name,
		StableHash: stableHash(name),
		Type:       t,
		hasCtor:    reflect.PointerTo(t).Implements(reflect.TypeOf((*Constructor)(nil)).Elem()),
		hasDtor:    reflect.PointerTo(t).Implements(reflect.TypeOf((*Destructor)(nil)).Elem()),
		hasMarshal: reflect.PointerTo(t).Implements(reflect.TypeOf((*Marshaler)(nil)).Elem()),
	}
	r.index[t] = id
	r.byID = append(r.byID, d)
	r.byType = append(r.byType, t)
	return d
}

// Descriptor returns the descriptor for id, or nil if unregistered.
func (r *ComponentRegistry) Descriptor(id ComponentID) *ComponentDescriptor {
	if int(id) >= len(r.byID) {
		return nil
	}
	return r.byID[id]
}

// DescriptorByHash finds a descriptor by its stable hash, used when
// resolving a persisted stream's component table against a live
// registry.
func (r *ComponentRegistry) DescriptorByHash(h uint64) *ComponentDescriptor {
	for _, d := range r.byID {
		if d.StableHash == h {
			return d
		}
	}
	return nil
}

// ComponentType is a typed handle to a registered component, returned by
// Register: a compile-time-typed key into archetype columns.
type ComponentType[T any] struct {
	id  ComponentID
	reg *ComponentRegistry
}

// Register assigns T a small id in reg (idempotent).
func Register[T any](reg *ComponentRegistry) ComponentType[T] {
	var zero T
	d := reg.registerType(reflect.TypeOf(zero))
	return ComponentType[T]{id: d.ID, reg: reg}
}

// ID returns the component's small id.
func (c ComponentType[T]) ID() ComponentID { return c.id }

func (c ComponentType[T]) mask() mask.Mask {
	var m mask.Mask
	m.Mark(uint32(c.id))
	return m
}

// ComponentInit pairs a component id with an initial value, produced by
// ComponentType[T].New and consumed by Registry.CreateEntity /
// CreateEntities.
type ComponentInit struct {
	id    ComponentID
	value reflect.Value
}

// New packages an initial value for use with Registry.CreateEntity.
func (c ComponentType[T]) New(v T) ComponentInit {
	return ComponentInit{id: c.id, value: reflect.ValueOf(v)}
}

// Get returns a pointer to T on e's row, or nil if e is invalid or
// lacks T.
func (c ComponentType[T]) Get(reg *Registry, e Entity) *T {
	loc, arch, ok := reg.manager.locate(e)
	if !ok {
		return nil
	}
	ci, ok := arch.colIndex[c.id]
	if !ok {
		return nil
	}
	return arch.columnPtr(ci, loc).Interface().(*T)
}

// Has reports whether e currently carries T.
func (c ComponentType[T]) Has(reg *Registry, e Entity) bool {
	_, arch, ok := reg.manager.locate(e)
	if !ok {
		return false
	}
	_, has := arch.colIndex[c.id]
	return has
}

// Add attaches T to e with the given value, moving its row to the
// destination archetype. Returns nil if e is invalid or already has T
// If e already has T. If a View is currently iterating,
// the move is buffered and applied once the last active View releases
// its lock; in that case Add always returns nil since the
// eventual pointer can't be handed back synchronously — callers that
// need the value back should re-fetch it with Get after the view ends.
func (c ComponentType[T]) Add(reg *Registry, e Entity, value T) *T {
	if reg.locked() {
		reg.enqueue(func() {
			ptr, err := reg.manager.addComponent(e, c.id, reflect.ValueOf(value))
			if err == nil && ptr.IsValid() {
				reg.hooks.componentAdded(e, c.id)
			}
		})
		return nil
	}
	ptr, err := reg.manager.addComponent(e, c.id, reflect.ValueOf(value))
	if err != nil || !ptr.IsValid() {
		return nil
	}
	reg.hooks.componentAdded(e, c.id)
	return ptr.Interface().(*T)
}

// Remove detaches T from e, moving its row to the destination
// archetype. Returns false if e is invalid or lacks T. If a View is
// currently iterating, the move is buffered the same way Add's is; the
// reported bool then only reflects whether e currently carries T, not
// whether the buffered removal will later succeed: a removal queued
// behind another buffered change to e (a destroy, or an earlier Remove
// of T) finds T already gone and does nothing.
func (c ComponentType[T]) Remove(reg *Registry, e Entity) (bool, error) {
	if reg.locked() {
		if !c.Has(reg, e) {
			return false, nil
		}
		reg.enqueue(func() {
			ok, err := reg.manager.removeComponent(e, c.id)
			if ok && err == nil {
				reg.hooks.componentRemoved(e, c.id)
			}
		})
		return true, nil
	}
	ok, err := reg.manager.removeComponent(e, c.id)
	if ok {
		reg.hooks.componentRemoved(e, c.id)
	}
	return ok, err
}
