package crate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseractecs/crate"
)

func TestEntityPoolCreateAndDestroy(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})

	e, err := pool.Create()
	require.NoError(t, err)
	assert.True(t, pool.IsValid(e))
	assert.Equal(t, 1, pool.Size())

	assert.True(t, pool.Destroy(e))
	assert.False(t, pool.IsValid(e))
	assert.Equal(t, 0, pool.Size())

	// Destroying an already-invalid handle is a silent no-op.
	assert.False(t, pool.Destroy(e))
}

func TestEntityPoolRecyclesIndexWithBumpedVersion(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})

	e1, err := pool.Create()
	require.NoError(t, err)
	v1 := e1.Version()
	idx1 := e1.Index()

	require.True(t, pool.Destroy(e1))

	e2, err := pool.Create()
	require.NoError(t, err)

	assert.Equal(t, idx1, e2.Index(), "freed index should be recycled before growing the bump allocator")
	assert.Equal(t, v1+1, e2.Version())
	assert.NotEqual(t, e1, e2)

	// The stale handle must never be valid again.
	assert.False(t, pool.IsValid(e1))
	assert.True(t, pool.IsValid(e2))
}

func TestEntityPoolVersionWraparoundSkipsZero(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})

	e, err := pool.Create()
	require.NoError(t, err)
	idx := e.Index()

	for i := 0; i < 256; i++ {
		require.True(t, pool.Destroy(e))
		e, err = pool.Create()
		require.NoError(t, err)
		require.Equal(t, idx, e.Index())
		assert.NotEqual(t, uint8(0), e.Version(), "version must wrap around skipping 0")
	}
}

func TestEntityPoolVersionOfAbsentSlotIsZero(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})

	assert.Equal(t, uint8(0), pool.VersionOf(0), "never-allocated slot reports version 0")

	e, err := pool.Create()
	require.NoError(t, err)
	assert.NotEqual(t, uint8(0), pool.VersionOf(e.Index()))

	require.True(t, pool.Destroy(e))
	assert.Equal(t, uint8(0), pool.VersionOf(e.Index()), "freed slot reports version 0, not its last destroyed version")
}

func TestEntityPoolCreateBatchAllOrNothing(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})

	out := make([]crate.Entity, 5)
	require.NoError(t, pool.CreateBatch(5, out))
	assert.Equal(t, 5, pool.Size())
	for _, e := range out {
		assert.True(t, pool.IsValid(e))
	}
}

func TestEntityPoolIterYieldsLiveEntitiesAscending(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})

	out := make([]crate.Entity, 4)
	require.NoError(t, pool.CreateBatch(4, out))
	require.True(t, pool.Destroy(out[1]))

	var seen []uint32
	pool.Iter(func(e crate.Entity) bool {
		seen = append(seen, e.Index())
		return true
	})

	assert.Equal(t, []uint32{out[0].Index(), out[2].Index(), out[3].Index()}, seen)
}

func TestEntityNullHandle(t *testing.T) {
	assert.True(t, crate.NullEntity.IsNull())
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 1024})
	assert.False(t, pool.IsValid(crate.NullEntity))
}

func TestEntityPoolAutoReleasePreservesFreeListAcrossOtherSegments(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{
		SegmentSize:      4,
		AutoRelease:      true,
		MaxEmptySegments: 0,
	})

	out := make([]crate.Entity, 8)
	require.NoError(t, pool.CreateBatch(8, out))

	// Free one slot in the first segment, then free every slot of the
	// second segment last-to-trigger-release, so the free-list head ends
	// up chained through the segment about to be released and back out
	// into the surviving one.
	require.True(t, pool.Destroy(out[1]))
	require.True(t, pool.Destroy(out[4]))
	require.True(t, pool.Destroy(out[5]))
	require.True(t, pool.Destroy(out[6]))
	require.True(t, pool.Destroy(out[7])) // drops the now-empty second segment

	e, err := pool.Create()
	require.NoError(t, err)
	assert.Equal(t, out[1].Index(), e.Index(), "the surviving segment's free slot must still be recyclable after the other segment's release")
}

func TestEntityPoolShrinkToFitDropsTrailingEmptySegments(t *testing.T) {
	pool := crate.NewEntityPool(crate.EntityPoolConfig{SegmentSize: 4})

	out := make([]crate.Entity, 8)
	require.NoError(t, pool.CreateBatch(8, out))
	require.Equal(t, 2, pool.DestroyBatch(out[4:6]))
	require.Equal(t, 6, pool.DestroyBatch(out))

	pool.ShrinkToFit()
	assert.Equal(t, 0, pool.Size())
}
