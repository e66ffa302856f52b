package reduce

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Sternrassler/neo-hunter/pkg/neo"
)

// ErrInvalidThreshold is returned for a threshold below 1.
var ErrInvalidThreshold = errors.New("threshold must be >= 1")

// Location addresses one approach within a page set.
type Location struct {
	Page     int
	Asteroid int
	Approach int
}

type candidate struct {
	distance float64
	location Location
	sentinel bool
}

// candidates holds the nearest approaches seen so far, ascending by
// distance, never longer than limit. It starts with one +Inf sentinel so
// the first eligible approach always gets in.
type candidates struct {
	limit int
	list  []candidate
}

func newCandidates(limit int) *candidates {
	list := make([]candidate, 0, limit+1)
	list = append(list, candidate{distance: math.Inf(1), sentinel: true})
	return &candidates{limit: limit, list: list}
}

// offer inserts an approach nearer than the current worst candidate.
// An approach tying the worst one is rejected.
func (c *candidates) offer(distance float64, loc Location) {
	if distance >= c.list[len(c.list)-1].distance {
		return
	}
	c.list = append(c.list, candidate{distance: distance, location: loc})
	slices.SortStableFunc(c.list, func(a, b candidate) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		default:
			return 0
		}
	})
	if len(c.list) > c.limit {
		c.list = c.list[:c.limit]
	}
}

// locations returns the surviving approach locations without sentinels.
func (c *candidates) locations() []Location {
	locs := make([]Location, 0, len(c.list))
	for _, cand := range c.list {
		if !cand.sentinel {
			locs = append(locs, cand.location)
		}
	}
	return locs
}

// NearestMissLocations scans every eligible approach and returns the
// locations of the threshold nearest ones, nearest first.
func NearestMissLocations(pages []*neo.Page, threshold int) ([]Location, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidThreshold, threshold)
	}

	c := newCandidates(threshold)
	for i, page := range pages {
		if page == nil {
			continue
		}
		for j, asteroid := range page.NearEarthObjects {
			for k, approach := range asteroid.CloseApproachData {
				if d, ok := eligible(approach); ok {
					c.offer(d, Location{Page: i, Asteroid: j, Approach: k})
				}
			}
		}
	}
	return c.locations(), nil
}

// NearestMisses returns the asteroids owning the threshold nearest Earth
// approaches across all pages. Each asteroid keeps only its selected
// approaches, in their original order; asteroids are ordered by page, then
// by position within the page.
func NearestMisses(pages []*neo.Page, threshold int) ([]neo.Asteroid, error) {
	locs, err := NearestMissLocations(pages, threshold)
	if err != nil {
		return nil, err
	}

	// page -> asteroid -> approach indices
	grouped := make(map[int]map[int][]int)
	for _, loc := range locs {
		if grouped[loc.Page] == nil {
			grouped[loc.Page] = make(map[int][]int)
		}
		grouped[loc.Page][loc.Asteroid] = append(grouped[loc.Page][loc.Asteroid], loc.Approach)
	}

	result := make([]neo.Asteroid, 0, len(locs))
	for i, page := range pages {
		byAsteroid, ok := grouped[i]
		if !ok || page == nil {
			continue
		}
		for j, asteroid := range page.NearEarthObjects {
			indices, ok := byAsteroid[j]
			if !ok {
				continue
			}
			slices.Sort(indices)
			result = append(result, asteroid.WithApproaches(indices...))
		}
	}
	return result, nil
}
