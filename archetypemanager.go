package crate

import (
	"reflect"

	"github.com/TheBitDrifter/mask"

	"github.com/tesseractecs/crate/internal/chunkpool"
)

type entityLocation struct {
	arch *Archetype
	loc  PackedLocation
}

// ArchetypeManager owns the set of archetypes, the chunk pool and
// component registry they share, and the entity -> (archetype, location)
// index.
type ArchetypeManager struct {
	components *ComponentRegistry
	pool       *chunkpool.Pool

	byMask  map[mask.Mask]*Archetype
	root    *Archetype
	nextID  ArchetypeID

	// locations is indexed by Entity.Index() as a dense slice rather
	// than a hash map.
	locations []entityLocation

	tick int64
}

// NewArchetypeManager wires a fresh manager around a shared component
// registry and a chunk pool built from cfg.
func NewArchetypeManager(components *ComponentRegistry, cfg ChunkPoolConfig) *ArchetypeManager {
	m := &ArchetypeManager{
		components: components,
		pool: chunkpool.New(chunkpool.Config{
			ChunksPerBlock: cfg.ChunksPerBlock,
			MaxChunks:      cfg.MaxChunks,
			InitialBlocks:  cfg.InitialBlocks,
			UseHugePages:   cfg.UseHugePages,
		}),
		byMask: make(map[mask.Mask]*Archetype),
		nextID: 1,
	}
	m.root = m.getOrCreate(mask.Mask{}, nil)
	return m
}

// Tick advances the manager's logical clock, used to age empty
// archetypes for CleanupEmptyArchetypes's time-since-empty eligibility check.
func (m *ArchetypeManager) Tick() { m.tick++ }

func (m *ArchetypeManager) growLocations(idx uint32) {
	need := int(idx) + 1
	if need <= len(m.locations) {
		return
	}
	newCap := max(need, 2*cap(m.locations))
	grown := make([]entityLocation, len(m.locations), newCap)
	copy(grown, m.locations)
	m.locations = grown[:need]
}

func (m *ArchetypeManager) locate(e Entity) (PackedLocation, *Archetype, bool) {
	idx := e.Index()
	if int(idx) >= len(m.locations) {
		return 0, nil, false
	}
	l := m.locations[idx]
	if l.arch == nil {
		return 0, nil, false
	}
	// A stale handle shares its index with the slot's current occupant;
	// only the handle stored at the recorded row is located.
	if l.arch.chunks[l.loc.chunkIndex()].entities[l.loc.row()] != e {
		return 0, nil, false
	}
	return l.loc, l.arch, true
}

func (m *ArchetypeManager) setLocation(e Entity, arch *Archetype, loc PackedLocation) {
	m.growLocations(e.Index())
	m.locations[e.Index()] = entityLocation{arch: arch, loc: loc}
}

func (m *ArchetypeManager) clearLocation(e Entity) {
	idx := e.Index()
	if int(idx) < len(m.locations) {
		m.locations[idx] = entityLocation{}
	}
}

// getOrCreate returns the archetype for mask M, building one from
// descriptors (in mask order) if it doesn't exist yet.
func (m *ArchetypeManager) getOrCreate(M mask.Mask, descriptors []*ComponentDescriptor) *Archetype {
	if a, ok := m.byMask[M]; ok {
		return a
	}
	a := newArchetypeStorage(m.nextID, descriptors, m.pool)
	m.nextID++
	m.byMask[a.mask] = a
	return a
}

func (m *ArchetypeManager) descriptorsFor(ids []ComponentID) []*ComponentDescriptor {
	out := make([]*ComponentDescriptor, 0, len(ids))
	for _, id := range ids {
		if d := m.components.Descriptor(id); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func maskOf(ids []ComponentID) mask.Mask {
	var M mask.Mask
	for _, id := range ids {
		M.Mark(uint32(id))
	}
	return M
}

// Root returns the archetype with the empty component mask.
func (m *ArchetypeManager) Root() *Archetype { return m.root }

// createEntity places e into the archetype matching inits and constructs
// every initial component value via constructComponent.
func (m *ArchetypeManager) createEntity(e Entity, inits []ComponentInit) error {
	ids := make([]ComponentID, len(inits))
	for i, in := range inits {
		ids[i] = in.id
	}
	M := maskOf(ids)
	arch, ok := m.byMask[M]
	if !ok {
		arch = m.getOrCreate(M, m.descriptorsFor(ids))
	}
	loc, err := arch.AddEntity(e)
	if err != nil {
		return err
	}
	for _, in := range inits {
		arch.constructComponent(in.id, loc, in.value)
	}
	m.setLocation(e, arch, loc)
	return nil
}

// destroyEntity removes e's row from its archetype. The caller
// (Registry) is responsible for relationship-graph cleanup.
func (m *ArchetypeManager) destroyEntity(e Entity) {
	loc, arch, ok := m.locate(e)
	if !ok {
		return
	}
	moved, didMove := arch.RemoveEntity(loc)
	if didMove {
		m.setLocation(moved, arch, loc)
	}
	if arch.count == 0 {
		arch.emptySince = m.tick
	}
	m.clearLocation(e)
}

// archetypeWithEdge resolves the destination archetype for "add id" or
// "remove id" from src, consulting and populating the edge cache.
func (m *ArchetypeManager) archetypeWithEdge(src *Archetype, id ComponentID, adding bool) *Archetype {
	edges := src.removeEdge
	if adding {
		edges = src.addEdge
	}
	if dest, ok := edges[id]; ok {
		return dest
	}
	ids := append([]ComponentID(nil), src.ids...)
	if adding {
		ids = append(ids, id)
	} else {
		filtered := ids[:0]
		for _, existing := range ids {
			if existing != id {
				filtered = append(filtered, existing)
			}
		}
		ids = filtered
	}
	M := maskOf(ids)
	dest := m.getOrCreate(M, m.descriptorsFor(ids))
	edges[id] = dest
	return dest
}

// addComponent moves e's row into the archetype with id added. Returns
// invalid (zero) reflect.Value if e is invalid or already carries id.
func (m *ArchetypeManager) addComponent(e Entity, id ComponentID, value reflect.Value) (reflect.Value, error) {
	loc, src, ok := m.locate(e)
	if !ok {
		return reflect.Value{}, nil
	}
	if _, has := src.colIndex[id]; has {
		return reflect.Value{}, nil
	}
	dest := m.archetypeWithEdge(src, id, true)
	newLoc, moved, didMove, err := src.MoveEntityTo(e, dest, loc)
	if err != nil {
		return reflect.Value{}, err
	}
	if didMove {
		m.setLocation(moved, src, loc)
	}
	if src.count == 0 {
		src.emptySince = m.tick
	}
	dest.constructComponent(id, newLoc, value)
	m.setLocation(e, dest, newLoc)
	return dest.columnPtr(dest.colIndex[id], newLoc), nil
}

// removeComponent implements Registry.RemoveComponent<T>: false if e is
// invalid or lacks id. The only error it can return is OutOfMemory from
// allocating a row in the destination archetype — allocation errors
// propagate, structural ones don't.
func (m *ArchetypeManager) removeComponent(e Entity, id ComponentID) (bool, error) {
	loc, src, ok := m.locate(e)
	if !ok {
		return false, nil
	}
	if _, has := src.colIndex[id]; !has {
		return false, nil
	}
	dest := m.archetypeWithEdge(src, id, false)
	newLoc, moved, didMove, err := src.MoveEntityTo(e, dest, loc)
	if err != nil {
		return false, err
	}
	if didMove {
		m.setLocation(moved, src, loc)
	}
	if src.count == 0 {
		src.emptySince = m.tick
	}
	m.setLocation(e, dest, newLoc)
	return true, nil
}

// queryArchetypes returns every archetype whose mask satisfies f.
func (m *ArchetypeManager) queryArchetypes(f *Filter) []*Archetype {
	var out []*Archetype
	for _, a := range m.byMask {
		if f.matches(a.mask) {
			out = append(out, a)
		}
	}
	return out
}

// CleanupEmptyArchetypes frees archetypes that have been empty for at
// least opts.MinEmptyDuration ticks, subject to the keep-floor and
// per-call cap.
func (m *ArchetypeManager) CleanupEmptyArchetypes(opts CleanupOptions) int {
	type candidate struct {
		M mask.Mask
		a *Archetype
	}
	var candidates []candidate
	for M, a := range m.byMask {
		if a == m.root || a.count != 0 {
			continue
		}
		if m.tick-a.emptySince < opts.MinEmptyDuration {
			continue
		}
		candidates = append(candidates, candidate{M, a})
	}
	removed := 0
	for _, c := range candidates {
		if opts.MaxArchetypesToRemove > 0 && removed >= opts.MaxArchetypesToRemove {
			break
		}
		if len(m.byMask) <= opts.MinArchetypesToKeep {
			break
		}
		delete(m.byMask, c.M)
		m.dropEdgesTo(c.a)
		removed++
	}
	return removed
}

func (m *ArchetypeManager) dropEdgesTo(dead *Archetype) {
	for _, a := range m.byMask {
		for id, dest := range a.addEdge {
			if dest == dead {
				delete(a.addEdge, id)
			}
		}
		for id, dest := range a.removeEdge {
			if dest == dead {
				delete(a.removeEdge, id)
			}
		}
	}
}
