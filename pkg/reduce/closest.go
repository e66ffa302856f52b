package reduce

import (
	"math"

	"github.com/Sternrassler/neo-hunter/pkg/neo"
)

// closest is the position of the nearest eligible approach of an asteroid.
type closest struct {
	found    bool
	index    int
	distance float64
}

func closestOf(a neo.Asteroid) closest {
	var c closest
	for i, approach := range a.CloseApproachData {
		d, ok := eligible(approach)
		if !ok {
			continue
		}
		// Strict comparison keeps the first of equal distances.
		if !c.found || d < c.distance {
			c = closest{found: true, index: i, distance: d}
		}
	}
	return c
}

// ClosestApproach returns every asteroid of every page in encounter order,
// each with its approach list reduced to its nearest Earth approach, or to
// an empty list when it has none.
func ClosestApproach(pages []*neo.Page) []neo.Asteroid {
	result := make([]neo.Asteroid, 0, countAsteroids(pages))
	for _, page := range pages {
		if page == nil {
			continue
		}
		for _, asteroid := range page.NearEarthObjects {
			if c := closestOf(asteroid); c.found {
				result = append(result, asteroid.WithApproaches(c.index))
			} else {
				result = append(result, asteroid.WithApproaches())
			}
		}
	}
	return result
}

func countAsteroids(pages []*neo.Page) int {
	n := 0
	for _, page := range pages {
		if page != nil {
			n += len(page.NearEarthObjects)
		}
	}
	return n
}

func eligible(approach neo.CloseApproach) (float64, bool) {
	if !approach.IsEarth() {
		return 0, false
	}
	d, err := approach.Astronomical()
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}
