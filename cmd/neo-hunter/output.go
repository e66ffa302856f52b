package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/Sternrassler/neo-hunter/pkg/neo"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// report is a result ready for either output format.
type report struct {
	payload  any
	sections []section
}

// section is one titled table of the table output.
type section struct {
	title  string
	header []string
	rows   [][]string
	footer string
}

type allResult struct {
	Closest []neo.Asteroid      `json:"closest_approach"`
	Month   *neo.MonthAggregate `json:"month_closest_approaches"`
	Misses  []neo.Asteroid      `json:"nearest_misses"`
}

func (a *app) render(w io.Writer, r report) error {
	if a.output != "table" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.payload)
	}

	for i, s := range r.sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, s.title)
		if err := newTable(w, s.header, s.rows); err != nil {
			return err
		}
		if s.footer != "" {
			fmt.Fprintln(w, s.footer)
		}
	}
	return nil
}

func newTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func asteroidsSection(title string, asteroids []neo.Asteroid) section {
	s := section{
		title:  title,
		header: []string{"ID", "NAME", "HAZARDOUS", "DATE", "BODY", "DISTANCE (AU)"},
	}
	for _, a := range asteroids {
		if len(a.CloseApproachData) == 0 {
			s.rows = append(s.rows, []string{a.ID, a.Name, hazardous(a), "-", "-", "-"})
			continue
		}
		for _, c := range a.CloseApproachData {
			s.rows = append(s.rows, []string{a.ID, a.Name, hazardous(a), c.CloseApproachDate, c.OrbitingBody, c.MissDistance.Astronomical})
		}
	}
	s.footer = fmt.Sprintf("%d asteroids", len(asteroids))
	return s
}

func asteroidsReport(title string, asteroids []neo.Asteroid) report {
	return report{payload: asteroids, sections: []section{asteroidsSection(title, asteroids)}}
}

func monthSection(date string, agg *neo.MonthAggregate) section {
	s := section{
		title:  "Approaches in " + date,
		header: []string{"DATE", "ID", "NAME", "HAZARDOUS"},
	}

	dates := make([]string, 0, len(agg.NearEarthObjects))
	for d := range agg.NearEarthObjects {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	for _, d := range dates {
		for _, a := range agg.NearEarthObjects[d] {
			s.rows = append(s.rows, []string{d, a.ID, a.Name, hazardous(a)})
		}
	}
	s.footer = "element_count: " + strconv.Itoa(agg.ElementCount)
	return s
}

func monthReport(date string, agg *neo.MonthAggregate) report {
	return report{payload: agg, sections: []section{monthSection(date, agg)}}
}

func allReport(date string, res allResult) report {
	return report{
		payload: res,
		sections: []section{
			asteroidsSection("Closest approaches", res.Closest),
			monthSection(date, res.Month),
			asteroidsSection("Nearest misses", res.Misses),
		},
	}
}

func hazardous(a neo.Asteroid) string {
	if a.IsPotentiallyHazardous {
		return "yes"
	}
	return "no"
}
