package crate_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseractecs/crate"
)

func TestViewMatchesRequiredAndExcludesNot(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)
	tag := crate.Register[Tag](components)

	moving, err := reg.CreateEntity(position.New(Position{X: 1}), velocity.New(Velocity{X: 1}))
	require.NoError(t, err)
	tagged, err := reg.CreateEntity(position.New(Position{X: 2}), velocity.New(Velocity{X: 2}), tag.New(Tag{}))
	require.NoError(t, err)
	still, err := reg.CreateEntity(position.New(Position{X: 3}))
	require.NoError(t, err)
	_ = still

	view := reg.NewView([]crate.ComponentID{position.ID(), velocity.ID()}, crate.Not(tag.ID()))

	var seen []crate.Entity
	for view.Next() {
		seen = append(seen, view.Entity())
	}
	assert.ElementsMatch(t, []crate.Entity{moving}, seen)
	_ = tagged
}

func TestViewAnyOfRequiresAtLeastOne(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)
	health := crate.Register[Health](components)

	withVel, err := reg.CreateEntity(position.New(Position{}), velocity.New(Velocity{}))
	require.NoError(t, err)
	withHealth, err := reg.CreateEntity(position.New(Position{}), health.New(Health{Current: 1, Max: 1}))
	require.NoError(t, err)
	neither, err := reg.CreateEntity(position.New(Position{}))
	require.NoError(t, err)
	_ = neither

	view := reg.NewView([]crate.ComponentID{position.ID()}, crate.Any(velocity.ID(), health.ID()))

	var seen []crate.Entity
	for view.Next() {
		seen = append(seen, view.Entity())
	}
	assert.ElementsMatch(t, []crate.Entity{withVel, withHealth}, seen)
}

func TestViewOneOfRequiresExactlyOne(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)
	health := crate.Register[Health](components)

	onlyVel, err := reg.CreateEntity(position.New(Position{}), velocity.New(Velocity{}))
	require.NoError(t, err)
	_, err = reg.CreateEntity(position.New(Position{}), velocity.New(Velocity{}), health.New(Health{}))
	require.NoError(t, err)
	_, err = reg.CreateEntity(position.New(Position{}))
	require.NoError(t, err)

	view := reg.NewView([]crate.ComponentID{position.ID()}, crate.OneOf(velocity.ID(), health.ID()))

	var seen []crate.Entity
	for view.Next() {
		seen = append(seen, view.Entity())
	}
	assert.ElementsMatch(t, []crate.Entity{onlyVel}, seen)
}

func TestViewOptionalReadViaGetFromView(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)

	withVel, err := reg.CreateEntity(position.New(Position{X: 1}), velocity.New(Velocity{X: 5}))
	require.NoError(t, err)
	withoutVel, err := reg.CreateEntity(position.New(Position{X: 2}))
	require.NoError(t, err)

	view := reg.NewView([]crate.ComponentID{position.ID()})

	results := map[crate.Entity]*Velocity{}
	for view.Next() {
		results[view.Entity()] = velocity.GetFromView(view)
	}

	require.NotNil(t, results[withVel])
	assert.Equal(t, Velocity{X: 5}, *results[withVel])
	assert.Nil(t, results[withoutVel])
}

func TestViewStreamingAndBatchedIterationAgreeOnRows(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)

	var want []crate.Entity
	for i := 0; i < 50; i++ {
		e, err := reg.CreateEntity(position.New(Position{X: float64(i)}), velocity.New(Velocity{X: float64(i)}))
		require.NoError(t, err)
		want = append(want, e)
	}

	streamed := []crate.Entity{}
	view := reg.NewView([]crate.ComponentID{position.ID(), velocity.ID()})
	for view.Next() {
		streamed = append(streamed, view.Entity())
	}

	batched := []crate.Entity{}
	view2 := reg.NewView([]crate.ComponentID{position.ID(), velocity.ID()})
	view2.ForEachChunk([]crate.ComponentID{position.ID()}, func(entities []crate.Entity, columns []reflect.Value) bool {
		batched = append(batched, entities...)
		return true
	})

	assert.ElementsMatch(t, want, streamed)
	assert.ElementsMatch(t, want, batched)
}

func TestViewTotalMatchedDoesNotConsumeIteration(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)

	for i := 0; i < 7; i++ {
		_, err := reg.CreateEntity(position.New(Position{}))
		require.NoError(t, err)
	}

	view := reg.NewView([]crate.ComponentID{position.ID()})
	assert.Equal(t, 7, view.TotalMatched())

	count := 0
	for view.Next() {
		count++
	}
	assert.Equal(t, 7, count)
}

func TestStructuralEditDuringIterationIsBuffered(t *testing.T) {
	components := crate.NewComponentRegistry()
	reg := crate.NewRegistryWithComponents(crate.DefaultConfig(), components)
	position := crate.Register[Position](components)
	velocity := crate.Register[Velocity](components)

	var all []crate.Entity
	for i := 0; i < 5; i++ {
		e, err := reg.CreateEntity(position.New(Position{}))
		require.NoError(t, err)
		all = append(all, e)
	}

	view := reg.NewView([]crate.ComponentID{position.ID()})
	visited := 0
	for view.Next() {
		visited++
		// Adding a component mid-iteration must not perturb this view's
		// archetype snapshot; the move is buffered until the view
		// releases its lock.
		velocity.Add(reg, view.Entity(), Velocity{})
	}
	assert.Equal(t, 5, visited, "every entity present at view start must still be visited exactly once")

	for _, e := range all {
		assert.True(t, velocity.Has(reg, e), "buffered adds must apply once the view completes")
	}
}
