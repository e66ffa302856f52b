package reduce

import (
	"testing"

	"github.com/Sternrassler/neo-hunter/pkg/neo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approach(body, au string) neo.CloseApproach {
	return neo.CloseApproach{
		CloseApproachDate: "2021-10-01",
		OrbitingBody:      body,
		MissDistance:      neo.MissDistance{Astronomical: au},
	}
}

func asteroid(id string, approaches ...neo.CloseApproach) neo.Asteroid {
	return neo.Asteroid{ID: id, Name: "(" + id + ")", CloseApproachData: approaches}
}

func page(asteroids ...neo.Asteroid) *neo.Page {
	return &neo.Page{NearEarthObjects: asteroids}
}

func distances(t *testing.T, a neo.Asteroid) []string {
	t.Helper()
	out := make([]string, 0, len(a.CloseApproachData))
	for _, c := range a.CloseApproachData {
		out = append(out, c.MissDistance.Astronomical)
	}
	return out
}

func TestClosestApproach(t *testing.T) {
	pages := []*neo.Page{
		page(
			asteroid("first-is-closest", approach("Earth", "0.1"), approach("Earth", "0.5")),
			asteroid("last-is-closest", approach("Earth", "0.9"), approach("Mars", "0.01"), approach("Earth", "0.3")),
		),
		nil,
		page(
			asteroid("no-earth", approach("Venus", "0.2"), approach("Jupiter", "0.1")),
			asteroid("no-approaches"),
			asteroid("tie", approach("Earth", "0.4"), approach("Earth", "0.4")),
			asteroid("bad-distance", approach("Earth", "n/a"), approach("Earth", "0.7")),
		),
	}

	got := ClosestApproach(pages)
	require.Len(t, got, 6)

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
		assert.LessOrEqual(t, len(a.CloseApproachData), 1, a.ID)
		for _, c := range a.CloseApproachData {
			assert.True(t, c.IsEarth(), a.ID)
		}
	}
	assert.Equal(t, []string{"first-is-closest", "last-is-closest", "no-earth", "no-approaches", "tie", "bad-distance"}, ids)

	assert.Equal(t, []string{"0.1"}, distances(t, got[0]))
	assert.Equal(t, []string{"0.3"}, distances(t, got[1]))
	assert.Empty(t, got[2].CloseApproachData)
	assert.NotNil(t, got[2].CloseApproachData)
	assert.Empty(t, got[3].CloseApproachData)
	assert.Equal(t, []string{"0.4"}, distances(t, got[4]))
	assert.Equal(t, []string{"0.7"}, distances(t, got[5]))
}

func TestClosestApproach_TieKeepsFirst(t *testing.T) {
	first := approach("Earth", "0.4")
	first.CloseApproachDate = "1990-01-01"
	second := approach("Earth", "0.4")
	second.CloseApproachDate = "2030-01-01"

	got := ClosestApproach([]*neo.Page{page(asteroid("tie", first, second))})
	require.Len(t, got, 1)
	require.Len(t, got[0].CloseApproachData, 1)
	assert.Equal(t, "1990-01-01", got[0].CloseApproachData[0].CloseApproachDate)
}

func TestClosestApproach_DoesNotModifyPages(t *testing.T) {
	pages := []*neo.Page{page(asteroid("a", approach("Earth", "0.3"), approach("Earth", "0.2")))}

	first := ClosestApproach(pages)
	second := ClosestApproach(pages)

	assert.Len(t, pages[0].NearEarthObjects[0].CloseApproachData, 2)
	assert.Equal(t, first, second)
}

func TestClosestApproach_Empty(t *testing.T) {
	assert.Empty(t, ClosestApproach(nil))
	assert.Empty(t, ClosestApproach([]*neo.Page{nil, nil}))
}

func TestNearestMisses_InvalidThreshold(t *testing.T) {
	pages := []*neo.Page{page(asteroid("a", approach("Earth", "0.3")))}

	for _, threshold := range []int{0, -1} {
		got, err := NearestMisses(pages, threshold)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
		assert.Nil(t, got)
	}
}

func TestNearestMisses_SelectsGlobalNearest(t *testing.T) {
	pages := []*neo.Page{
		page(
			asteroid("a", approach("Earth", "0.50"), approach("Earth", "0.05"), approach("Earth", "0.01")),
			asteroid("b", approach("Earth", "0.90")),
		),
		nil,
		page(
			asteroid("c", approach("Mars", "0.001"), approach("Earth", "0.03")),
			asteroid("d", approach("Earth", "0.02"), approach("Earth", "0.60")),
		),
	}

	got, err := NearestMisses(pages, 4)
	require.NoError(t, err)

	total := 0
	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
		total += len(a.CloseApproachData)
		for _, c := range a.CloseApproachData {
			assert.True(t, c.IsEarth(), a.ID)
		}
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"a", "c", "d"}, ids)

	// Selected approaches keep their original order.
	assert.Equal(t, []string{"0.05", "0.01"}, distances(t, got[0]))
	assert.Equal(t, []string{"0.03"}, distances(t, got[1]))
	assert.Equal(t, []string{"0.02"}, distances(t, got[2]))
}

func TestNearestMisses_FewerEligibleThanThreshold(t *testing.T) {
	pages := []*neo.Page{page(
		asteroid("a", approach("Earth", "0.3"), approach("Moon", "0.001")),
		asteroid("b", approach("Earth", "0.2")),
	)}

	got, err := NearestMisses(pages, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0].CloseApproachData, 1)
	assert.Len(t, got[1].CloseApproachData, 1)
}

func TestNearestMissLocations_TieWithWorstIsRejected(t *testing.T) {
	pages := []*neo.Page{page(
		asteroid("a", approach("Earth", "1")),
		asteroid("b", approach("Earth", "2")),
		asteroid("c", approach("Earth", "2")),
	)}

	locs, err := NearestMissLocations(pages, 2)
	require.NoError(t, err)
	assert.Equal(t, []Location{
		{Page: 0, Asteroid: 0, Approach: 0},
		{Page: 0, Asteroid: 1, Approach: 0},
	}, locs)
}

func TestNearestMissLocations_NearestFirst(t *testing.T) {
	pages := []*neo.Page{
		page(asteroid("a", approach("Earth", "3"), approach("Earth", "1"))),
		page(asteroid("b", approach("Earth", "2"))),
	}

	locs, err := NearestMissLocations(pages, 3)
	require.NoError(t, err)
	assert.Equal(t, []Location{
		{Page: 0, Asteroid: 0, Approach: 1},
		{Page: 1, Asteroid: 0, Approach: 0},
		{Page: 0, Asteroid: 0, Approach: 0},
	}, locs)
}

func TestNearestMisses_Idempotent(t *testing.T) {
	pages := []*neo.Page{page(
		asteroid("a", approach("Earth", "0.3"), approach("Earth", "0.1")),
		asteroid("b", approach("Earth", "0.2")),
	)}

	first, err := NearestMisses(pages, 1)
	require.NoError(t, err)
	second, err := NearestMisses(pages, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, []string{"0.1"}, distances(t, first[0]))
	assert.Len(t, pages[0].NearEarthObjects[0].CloseApproachData, 2)
}

func TestCandidates_Bounded(t *testing.T) {
	c := newCandidates(3)
	for i, d := range []float64{9, 8, 7, 6, 5, 4} {
		c.offer(d, Location{Approach: i})
		assert.LessOrEqual(t, len(c.list), 3)
	}
	assert.Equal(t, []Location{{Approach: 5}, {Approach: 4}, {Approach: 3}}, c.locations())
}

func TestReductions_NonFiniteDistanceIsIneligible(t *testing.T) {
	pages := []*neo.Page{page(
		asteroid("a",
			approach("Earth", "NaN"),
			approach("Earth", "0.1"),
			approach("Earth", "+Inf"),
			approach("Earth", "0.2"),
			approach("Earth", "0.3"),
		),
	)}

	closest := ClosestApproach(pages)
	require.Len(t, closest, 1)
	assert.Equal(t, []string{"0.1"}, distances(t, closest[0]))

	misses, err := NearestMisses(pages, 2)
	require.NoError(t, err)
	require.Len(t, misses, 1)
	assert.Equal(t, []string{"0.1", "0.2"}, distances(t, misses[0]))

	misses, err = NearestMisses(pages, 10)
	require.NoError(t, err)
	require.Len(t, misses, 1)
	assert.Equal(t, []string{"0.1", "0.2", "0.3"}, distances(t, misses[0]))
}

func TestClosestApproach_OnlyNaN(t *testing.T) {
	got := ClosestApproach([]*neo.Page{page(asteroid("a", approach("Earth", "NaN")))})
	require.Len(t, got, 1)
	assert.Empty(t, got[0].CloseApproachData)
}
