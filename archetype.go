package crate

import (
	"reflect"
	"sort"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"

	"github.com/tesseractecs/crate/internal/chunkpool"
)

// ArchetypeID uniquely identifies an archetype within one
// ArchetypeManager for its lifetime.
type ArchetypeID uint32

// pageSize and chunkHeaderSize model a fixed 16 KiB page; chunkHeaderSize
// stands in for the per-chunk bookkeeping a C-like layout would reserve
// (row count, free-list next, alignment padding). Go's runtime doesn't
// give raw pages to carve up, so these only size chunkCapacity.
const (
	pageSize       = 16 * 1024
	chunkHeaderSize = 64
	entitySize      = 4 // uint32
)

// PackedLocation packs a chunk index and a row-within-chunk index into a
// single word.
type PackedLocation uint64

func packLocation(chunkIdx, row int) PackedLocation {
	return PackedLocation(uint64(uint32(chunkIdx))<<32 | uint64(uint32(row)))
}

func (p PackedLocation) chunkIndex() int { return int(uint32(p >> 32)) }
func (p PackedLocation) row() int        { return int(uint32(p)) }

// chunk is one fixed-capacity page of column storage. Columns are
// reflect.Value slices of the concrete component type, a type-erasure
// technique folded directly into the archetype rather than split out
// into a separate row/accessor abstraction.
type chunk struct {
	token    chunkpool.Token
	entities []Entity
	columns  []reflect.Value // len == len(Archetype.descriptors), each a slice of cap == capacity
	rowCount int
	capacity int
}

func newChunk(pool *chunkpool.Pool, capacity int, descriptors []*ComponentDescriptor) (*chunk, error) {
	tok, ok := pool.Acquire()
	if !ok {
		return nil, OutOfMemoryError{Reason: "chunk pool exhausted"}
	}
	c := &chunk{
		token:    tok,
		entities: make([]Entity, capacity),
		columns:  make([]reflect.Value, len(descriptors)),
		capacity: capacity,
	}
	for i, d := range descriptors {
		c.columns[i] = reflect.MakeSlice(reflect.SliceOf(d.Type), capacity, capacity)
	}
	return c, nil
}

func (c *chunk) zeroRow(row int, descriptors []*ComponentDescriptor) {
	c.entities[row] = 0
	for i, d := range descriptors {
		c.columns[i].Index(row).Set(reflect.Zero(d.Type))
	}
}

// Archetype is the chunked column storage for every entity whose
// component set equals mask exactly.
type Archetype struct {
	id   ArchetypeID
	mask mask.Mask

	ids         []ComponentID // sorted ascending: canonical column order
	descriptors []*ComponentDescriptor
	colIndex    map[ComponentID]int

	chunkCapacity int
	chunks        []*chunk
	pool          *chunkpool.Pool

	count     int
	peakCount int
	totalSeen uint64

	addEdge    map[ComponentID]*Archetype
	removeEdge map[ComponentID]*Archetype

	// emptySince is the manager tick at which count last dropped to
	// zero; -1 while non-empty.
	emptySince int64
}

func newArchetypeStorage(id ArchetypeID, descriptors []*ComponentDescriptor, pool *chunkpool.Pool) *Archetype {
	sorted := append([]*ComponentDescriptor(nil), descriptors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	a := &Archetype{
		id:          id,
		descriptors: sorted,
		colIndex:    make(map[ComponentID]int, len(sorted)),
		pool:        pool,
		addEdge:     make(map[ComponentID]*Archetype),
		removeEdge:  make(map[ComponentID]*Archetype),
		emptySince:  0,
	}
	footprint := entitySize
	for i, d := range sorted {
		a.ids = append(a.ids, d.ID)
		a.colIndex[d.ID] = i
		a.mask.Mark(uint32(d.ID))
		footprint += int(d.Type.Size())
	}
	capacity := (pageSize - chunkHeaderSize) / footprint
	if capacity < 1 {
		capacity = 1
	}
	a.chunkCapacity = capacity
	return a
}

// ID returns the archetype's manager-scoped identifier.
func (a *Archetype) ID() ArchetypeID { return a.id }

// Mask returns the archetype's component mask.
func (a *Archetype) Mask() mask.Mask { return a.mask }

// Count returns the number of entities currently stored.
func (a *Archetype) Count() int { return a.count }

// AddEntity appends e to the first chunk with spare capacity, allocating
// a new chunk from the pool if none has room. Components at the new row
// are left uninitialized (zero value); callers construct/set them next.
func (a *Archetype) AddEntity(e Entity) (PackedLocation, error) {
	for i, c := range a.chunks {
		if c.rowCount < c.capacity {
			return a.insertInto(i, c, e), nil
		}
	}
	c, err := newChunk(a.pool, a.chunkCapacity, a.descriptors)
	if err != nil {
		return 0, err
	}
	a.chunks = append(a.chunks, c)
	return a.insertInto(len(a.chunks)-1, c, e), nil
}

func (a *Archetype) insertInto(chunkIdx int, c *chunk, e Entity) PackedLocation {
	row := c.rowCount
	c.entities[row] = e
	c.rowCount++
	a.count++
	if a.count > a.peakCount {
		a.peakCount = a.count
	}
	a.totalSeen++
	a.emptySince = -1
	return packLocation(chunkIdx, row)
}

// columnPtr returns an addressable reflect.Value pointer (*T, boxed) at
// loc for the column at index ci.
func (a *Archetype) columnPtr(ci int, loc PackedLocation) reflect.Value {
	c := a.chunks[loc.chunkIndex()]
	return c.columns[ci].Index(loc.row()).Addr()
}

func (a *Archetype) setComponent(id ComponentID, loc PackedLocation, value reflect.Value) bool {
	ci, ok := a.colIndex[id]
	if !ok {
		return false
	}
	c := a.chunks[loc.chunkIndex()]
	c.columns[ci].Index(loc.row()).Set(value)
	return true
}

// constructComponent sets value into id's cell at loc and, if the type
// implements Constructor, fires OnConstruct on that cell exactly once —
// the single path every newly-placed component value goes through,
// whether from CreateEntity's initial set or a later Add.
func (a *Archetype) constructComponent(id ComponentID, loc PackedLocation, value reflect.Value) bool {
	if !a.setComponent(id, loc, value) {
		return false
	}
	ci := a.colIndex[id]
	d := a.descriptors[ci]
	if !d.hasCtor {
		return true
	}
	ptr := a.columnPtr(ci, loc)
	if ctor, ok := ptr.Interface().(Constructor); ok {
		ctor.OnConstruct()
	}
	return true
}

func (a *Archetype) destroyCell(ci int, row int, c *chunk) {
	d := a.descriptors[ci]
	if !d.hasDtor {
		return
	}
	v := c.columns[ci].Index(row)
	if dt, ok := v.Addr().Interface().(Destructor); ok {
		dt.OnDestroy()
	}
}

// RemoveEntity swaps the last row of loc's chunk into loc and shrinks
// that chunk by one, running any destructor hooks on the vacated row
// first. It reports the entity that was moved into loc,
// if any, so the caller can patch its recorded location.
func (a *Archetype) RemoveEntity(loc PackedLocation) (moved Entity, didMove bool) {
	ci := loc.chunkIndex()
	row := loc.row()
	c := a.chunks[ci]
	if c.rowCount-1 < 0 {
		panic(bark.AddTrace(errCorruptArchetype("RemoveEntity on an empty chunk")))
	}

	for col := range a.descriptors {
		a.destroyCell(col, row, c)
	}
	return a.removeRow(c, row)
}

// removeRow performs the swap-with-last removal of row from c without
// invoking any destructor hooks. Callers are responsible for destroying
// whichever of the row's columns still need it before calling this —
// RemoveEntity destroys every column first; MoveEntityTo has already
// destroyed the columns dropped by the transition and calls this
// directly so the columns it copied into the destination archetype are
// never destroyed.
func (a *Archetype) removeRow(c *chunk, row int) (moved Entity, didMove bool) {
	last := c.rowCount - 1
	if row != last {
		c.entities[row] = c.entities[last]
		for col := range a.descriptors {
			c.columns[col].Index(row).Set(c.columns[col].Index(last))
		}
		moved = c.entities[row]
		didMove = true
	}
	c.zeroRow(last, a.descriptors)
	c.rowCount--
	a.count--
	return moved, didMove
}

// MoveEntityTo relocates e from loc in a to a fresh row in dest,
// move-constructing every component shared by both archetypes, then
// removes the source row via swap-with-last. Components present only in
// dest are left uninitialized for the caller to populate; components
// present only in a have their destructor hook invoked before the
// source row is dropped.
func (a *Archetype) MoveEntityTo(e Entity, dest *Archetype, loc PackedLocation) (newLoc PackedLocation, moved Entity, didMove bool, err error) {
	newLoc, err = dest.AddEntity(e)
	if err != nil {
		return 0, 0, false, err
	}
	srcChunk := a.chunks[loc.chunkIndex()]
	srcRow := loc.row()
	dstChunk := dest.chunks[newLoc.chunkIndex()]
	dstRow := newLoc.row()

	for col, id := range a.ids {
		dstCol, ok := dest.colIndex[id]
		if !ok {
			// dropped component: run its destructor before it's gone.
			a.destroyCell(col, srcRow, srcChunk)
			continue
		}
		dstChunk.columns[dstCol].Index(dstRow).Set(srcChunk.columns[col].Index(srcRow))
	}

	moved, didMove = a.removeRow(srcChunk, srcRow)
	return newLoc, moved, didMove, nil
}

// ForEachChunk is the chunk-batched iteration path: it hands the caller
// the live entity slice and, for the requested column
// ids, the matching live slices for vectorized / prefetch-friendly
// processing. The callback returning false stops iteration.
func (a *Archetype) ForEachChunk(ids []ComponentID, f func(entities []Entity, columns []reflect.Value) bool) {
	for _, c := range a.chunks {
		if c.rowCount == 0 {
			continue
		}
		cols := make([]reflect.Value, len(ids))
		for i, id := range ids {
			ci, ok := a.colIndex[id]
			if !ok {
				continue
			}
			cols[i] = c.columns[ci].Slice(0, c.rowCount)
		}
		if !f(c.entities[:c.rowCount], cols) {
			return
		}
	}
}

func errCorruptArchetype(reason string) error {
	return CorruptedDataError{Reason: reason}
}
