// Package neo defines the NeoWs (Near Earth Object Web Service) data model.
//
// Records are decoded into typed fields for the members this module works
// with. Every other member of an upstream object is kept verbatim in Extra and
// written back on marshal, so asteroids re-emitted by the reducers carry the
// full upstream record.
package neo

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EarthBody is the orbiting_body value of approaches eligible for reduction.
const EarthBody = "Earth"

// MissDistance is the miss distance of a close approach in several units.
// NeoWs encodes every unit as a decimal string.
type MissDistance struct {
	Astronomical string `json:"astronomical"`
	Lunar        string `json:"lunar,omitempty"`
	Kilometers   string `json:"kilometers,omitempty"`
	Miles        string `json:"miles,omitempty"`
}

// CloseApproach is one recorded or predicted passage of an asteroid.
type CloseApproach struct {
	CloseApproachDate string
	OrbitingBody      string
	MissDistance      MissDistance

	// Extra holds upstream members not modelled above.
	Extra map[string]json.RawMessage
}

// IsEarth reports whether the approach is eligible for reduction.
func (c CloseApproach) IsEarth() bool {
	return c.OrbitingBody == EarthBody
}

// Astronomical returns the miss distance in astronomical units.
func (c CloseApproach) Astronomical() (float64, error) {
	d, err := strconv.ParseFloat(c.MissDistance.Astronomical, 64)
	if err != nil {
		return 0, fmt.Errorf("parse astronomical miss distance %q: %w", c.MissDistance.Astronomical, err)
	}
	return d, nil
}

var closeApproachKeys = []string{"close_approach_date", "orbiting_body", "miss_distance"}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CloseApproach) UnmarshalJSON(data []byte) error {
	var known struct {
		CloseApproachDate string       `json:"close_approach_date"`
		OrbitingBody      string       `json:"orbiting_body"`
		MissDistance      MissDistance `json:"miss_distance"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extraFields(data, closeApproachKeys)
	if err != nil {
		return err
	}

	c.CloseApproachDate = known.CloseApproachDate
	c.OrbitingBody = known.OrbitingBody
	c.MissDistance = known.MissDistance
	c.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c CloseApproach) MarshalJSON() ([]byte, error) {
	return mergeFields(c.Extra, map[string]any{
		"close_approach_date": c.CloseApproachDate,
		"orbiting_body":       c.OrbitingBody,
		"miss_distance":       c.MissDistance,
	})
}

// Asteroid is a catalogued near-Earth object and its close approaches.
type Asteroid struct {
	ID                     string
	NeoReferenceID         string
	Name                   string
	IsPotentiallyHazardous bool
	CloseApproachData      []CloseApproach

	// Extra holds upstream members not modelled above (orbital data,
	// estimated diameter, links, ...).
	Extra map[string]json.RawMessage
}

// WithApproaches returns a copy of the asteroid whose approach list is
// replaced by the approaches at the given indices, in the given order.
// The receiver is left untouched.
func (a Asteroid) WithApproaches(indices ...int) Asteroid {
	selected := make([]CloseApproach, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, a.CloseApproachData[i])
	}
	a.CloseApproachData = selected
	return a
}

var asteroidKeys = []string{"id", "neo_reference_id", "name", "is_potentially_hazardous_asteroid", "close_approach_data"}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Asteroid) UnmarshalJSON(data []byte) error {
	var known struct {
		ID                     string          `json:"id"`
		NeoReferenceID         string          `json:"neo_reference_id"`
		Name                   string          `json:"name"`
		IsPotentiallyHazardous bool            `json:"is_potentially_hazardous_asteroid"`
		CloseApproachData      []CloseApproach `json:"close_approach_data"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extraFields(data, asteroidKeys)
	if err != nil {
		return err
	}

	a.ID = known.ID
	a.NeoReferenceID = known.NeoReferenceID
	a.Name = known.Name
	a.IsPotentiallyHazardous = known.IsPotentiallyHazardous
	a.CloseApproachData = known.CloseApproachData
	a.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Asteroid) MarshalJSON() ([]byte, error) {
	approaches := a.CloseApproachData
	if approaches == nil {
		approaches = []CloseApproach{}
	}
	return mergeFields(a.Extra, map[string]any{
		"id":                                a.ID,
		"neo_reference_id":                  a.NeoReferenceID,
		"name":                              a.Name,
		"is_potentially_hazardous_asteroid": a.IsPotentiallyHazardous,
		"close_approach_data":               approaches,
	})
}

// PageInfo is the pagination block of a browse response.
type PageInfo struct {
	Size          int `json:"size"`
	TotalElements int `json:"total_elements"`
	TotalPages    int `json:"total_pages"`
	Number        int `json:"number"`
}

// Page is one page of the browse endpoint.
type Page struct {
	NearEarthObjects []Asteroid `json:"near_earth_objects"`
	Page             PageInfo   `json:"page"`
}

// Links are the cursors returned by the feed endpoint.
type Links struct {
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
	Self string `json:"self"`
}

// FeedPage is one date window of the feed endpoint.
type FeedPage struct {
	ElementCount     int                   `json:"element_count"`
	NearEarthObjects map[string][]Asteroid `json:"near_earth_objects"`
	Links            Links                 `json:"links"`
}

// MonthAggregate is the merge of every feed window covering a calendar month.
type MonthAggregate struct {
	ElementCount     int                   `json:"element_count"`
	NearEarthObjects map[string][]Asteroid `json:"near_earth_objects"`
}

// NewMonthAggregate returns an empty aggregate ready for merging.
func NewMonthAggregate() *MonthAggregate {
	return &MonthAggregate{NearEarthObjects: make(map[string][]Asteroid)}
}

// Merge folds a feed window into the aggregate. A date present in both keeps
// the window's list.
func (m *MonthAggregate) Merge(p *FeedPage) {
	m.ElementCount += p.ElementCount
	for date, asteroids := range p.NearEarthObjects {
		m.NearEarthObjects[date] = asteroids
	}
}
