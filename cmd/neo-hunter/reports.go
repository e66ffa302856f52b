package main

import (
	"github.com/Sternrassler/neo-hunter/pkg/hunter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// DefaultMonth is the month reported when --date is not given.
const DefaultMonth = "2021-10"

func newClosestCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "closest",
		Short: "Closest Earth approach of every asteroid",
		Long: `Fetch the browse catalogue and keep, for every asteroid, only its closest
approach to Earth. Asteroids without an Earth approach are listed with none.

Examples:
  neo-hunter closest                 # Whole catalogue
  neo-hunter closest --limit 2       # First two pages (40 asteroids)`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command) error {
		asteroids, err := a.hunter.ClosestApproach(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return a.render(cmd.OutOrStdout(), asteroidsReport("Closest approaches", asteroids))
	})

	cmd.Flags().IntVar(&limit, "limit", 0, "number of browse pages to fetch (0 = all)")
	return cmd
}

func newMonthCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "month",
		Short: "Every asteroid approach of a calendar month",
		Long: `Walk the feed across one calendar month and report its asteroids by day.

Examples:
  neo-hunter month                   # October 2021
  neo-hunter month --date 2022-02`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command) error {
		agg, err := a.hunter.MonthAggregate(cmd.Context(), date)
		if err != nil {
			return err
		}
		return a.render(cmd.OutOrStdout(), monthReport(date, agg))
	})

	cmd.Flags().StringVar(&date, "date", DefaultMonth, "month to report (YYYY-MM)")
	return cmd
}

func newMissesCmd(a *app) *cobra.Command {
	var threshold, limit int

	cmd := &cobra.Command{
		Use:   "misses",
		Short: "Nearest Earth misses across the catalogue",
		Long: `Select the nearest recorded or predicted Earth approaches across the browse
catalogue. An asteroid can own several of them.

Examples:
  neo-hunter misses                          # Ten nearest misses
  neo-hunter misses --threshold 3 --limit 5`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command) error {
		asteroids, err := a.hunter.NearestMisses(cmd.Context(), threshold, limit)
		if err != nil {
			return err
		}
		return a.render(cmd.OutOrStdout(), asteroidsReport("Nearest misses", asteroids))
	})

	cmd.Flags().IntVar(&threshold, "threshold", hunter.DefaultThreshold, "number of nearest misses")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of browse pages to fetch (0 = all)")
	return cmd
}

func newAllCmd(a *app) *cobra.Command {
	var (
		limit     int
		threshold int
		date      string
	)

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run the three reports",
		Long: `Run the closest, month and misses reports concurrently and print them in
that order. Any failing report fails the command.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command) error {
		var res allResult

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			var err error
			res.Closest, err = a.hunter.ClosestApproach(ctx, limit)
			return err
		})
		g.Go(func() error {
			var err error
			res.Month, err = a.hunter.MonthAggregate(ctx, date)
			return err
		})
		g.Go(func() error {
			var err error
			res.Misses, err = a.hunter.NearestMisses(ctx, threshold, limit)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		return a.render(cmd.OutOrStdout(), allReport(date, res))
	})

	cmd.Flags().IntVar(&limit, "limit", 0, "number of browse pages to fetch (0 = all)")
	cmd.Flags().StringVar(&date, "date", DefaultMonth, "month to report (YYYY-MM)")
	cmd.Flags().IntVar(&threshold, "threshold", hunter.DefaultThreshold, "number of nearest misses")
	return cmd
}
