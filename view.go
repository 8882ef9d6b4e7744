package crate

import (
	"reflect"

	"github.com/TheBitDrifter/mask"
)

// Filter computes the required / excluded / any-of / one-of masks a
// View matches against. Required components fold directly into
// bitmasks; Any and OneOf groups are kept distinct since "exactly one
// of" can't be expressed as a single bitmask test.
type Filter struct {
	required mask.Mask
	excluded mask.Mask
	anyOf    []mask.Mask
	oneOf    [][]ComponentID
}

// FilterOption adds one Not/Any/OneOf term to a Filter being built by
// NewView.
type FilterOption func(*Filter)

// Not excludes entities carrying any of the given components.
func Not(ids ...ComponentID) FilterOption {
	return func(f *Filter) {
		for _, id := range ids {
			f.excluded.Mark(uint32(id))
		}
	}
}

// Any requires at least one of the given components to be present.
func Any(ids ...ComponentID) FilterOption {
	return func(f *Filter) {
		var m mask.Mask
		for _, id := range ids {
			m.Mark(uint32(id))
		}
		f.anyOf = append(f.anyOf, m)
	}
}

// OneOf requires exactly one of the given components to be present.
func OneOf(ids ...ComponentID) FilterOption {
	return func(f *Filter) {
		group := append([]ComponentID(nil), ids...)
		f.oneOf = append(f.oneOf, group)
	}
}

// matches reports whether M satisfies every required/excluded/any/one-of
// term.
func (f *Filter) matches(M mask.Mask) bool {
	if !M.ContainsAll(f.required) {
		return false
	}
	if !M.ContainsNone(f.excluded) {
		return false
	}
	for _, a := range f.anyOf {
		if !M.ContainsAny(a) {
			return false
		}
	}
	for _, group := range f.oneOf {
		count := 0
		for _, id := range group {
			var single mask.Mask
			single.Mark(uint32(id))
			if M.ContainsAll(single) {
				count++
			}
		}
		if count != 1 {
			return false
		}
	}
	return true
}

// View is a query over a Registry's archetypes: every entity whose
// archetype mask satisfies the filter is visited in archetype-order,
// chunk-order, row-order. Column access goes through ComponentType[T]'s
// GetFromView, so a View carries no type parameters itself and one View
// value composes with any number of ComponentType handles — a dynamic
// alternative to a variadic compile-time term DSL, which would be
// unidiomatic in Go.
type View struct {
	reg     *Registry
	filter  *Filter
	matched []*Archetype

	archIdx  int
	chunkIdx int
	row      int

	initialized bool
	locked      bool
}

// NewFilter builds a Filter requiring every id in required, narrowed by
// any Not/Any/OneOf options — the same predicate NewView builds
// internally, exposed standalone so it can be passed to
// Registry.GetRelations / RelationshipGraph.GetRelations without also
// constructing a View.
func NewFilter(required []ComponentID, opts ...FilterOption) *Filter {
	f := &Filter{}
	for _, id := range required {
		f.required.Mark(uint32(id))
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewView builds a view requiring every id in required and applying any
// Not/Any/OneOf options.
func NewView(reg *Registry, required []ComponentID, opts ...FilterOption) *View {
	return &View{reg: reg, filter: NewFilter(required, opts...)}
}

func (v *View) init() {
	if v.initialized {
		return
	}
	v.reg.lockStructural()
	v.locked = true
	v.matched = v.reg.manager.queryArchetypes(v.filter)
	v.initialized = true
}

// Next advances to the next matching row, returning false (and
// releasing the structural lock) once exhausted.
func (v *View) Next() bool {
	v.init()
	for v.archIdx < len(v.matched) {
		arch := v.matched[v.archIdx]
		for v.chunkIdx < len(arch.chunks) {
			c := arch.chunks[v.chunkIdx]
			if v.row < c.rowCount {
				v.row++
				return true
			}
			v.chunkIdx++
			v.row = 0
		}
		v.archIdx++
		v.chunkIdx = 0
	}
	v.Reset()
	return false
}

// Reset rewinds the view and releases the structural lock taken by
// Next/ForEachChunk. Safe to call even if the view was never iterated.
func (v *View) Reset() {
	if v.locked {
		v.reg.unlockStructural()
		v.locked = false
	}
	v.archIdx, v.chunkIdx, v.row = 0, 0, 0
	v.matched = nil
	v.initialized = false
}

func (v *View) currentChunk() (*Archetype, *chunk, int) {
	arch := v.matched[v.archIdx]
	return arch, arch.chunks[v.chunkIdx], v.row - 1
}

// Entity returns the entity at the current cursor position.
func (v *View) Entity() Entity {
	_, c, row := v.currentChunk()
	return c.entities[row]
}

// TotalMatched counts every row across matching archetypes without
// leaving the view positioned mid-iteration.
func (v *View) TotalMatched() int {
	v.init()
	total := 0
	for _, a := range v.matched {
		total += a.count
	}
	v.Reset()
	return total
}

// ForEachChunk is the chunk-batched iteration path: f receives, per
// chunk, the live entity slice and the live slices for each requested
// column id, for vectorization-friendly processing. It must agree with
// Next-based iteration on the resulting multiset of rows.
func (v *View) ForEachChunk(ids []ComponentID, f func(entities []Entity, columns []reflect.Value) bool) {
	v.reg.lockStructural()
	defer v.reg.unlockStructural()
	matched := v.reg.manager.queryArchetypes(v.filter)
	for _, arch := range matched {
		stop := false
		arch.ForEachChunk(ids, func(entities []Entity, columns []reflect.Value) bool {
			if !f(entities, columns) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			break
		}
	}
}

// GetFromView returns a pointer to T on the view's current row, or nil
// if the current row's archetype doesn't carry T — how optional terms
// are read: simply don't put the component in the required list and
// call GetFromView where a nil result is expected.
func (c ComponentType[T]) GetFromView(v *View) *T {
	arch, ch, row := v.currentChunk()
	ci, ok := arch.colIndex[c.id]
	if !ok {
		return nil
	}
	return ch.columns[ci].Index(row).Addr().Interface().(*T)
}

// CheckView reports whether the view's current row's archetype carries
// T, without materializing a pointer.
func (c ComponentType[T]) CheckView(v *View) bool {
	arch, _, _ := v.currentChunk()
	_, ok := arch.colIndex[c.id]
	return ok
}
