// Package feed walks the NeoWs feed endpoint across a calendar month.
//
// The feed serves at most seven days per request and links to the following
// window through links.next. The walker follows that cursor from the first
// day of the month, clamps any window reaching into the next month to the
// month's last day and merges every window into a neo.MonthAggregate.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/neo-hunter/pkg/logging"
	"github.com/Sternrassler/neo-hunter/pkg/neo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DateLayout is the date format of the feed query parameters.
const DateLayout = "2006-01-02"

// MonthLayout is the accepted year-month input format. The month takes one
// or two digits, so "2021-1" and "2021-01" are the same month.
const MonthLayout = "2006-1"

var neowsFeedWindowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "neows_feed_windows_total",
	Help: "Feed windows fetched by result",
}, []string{"result"})

var (
	// ErrInvalidMonth is returned for a month outside 1..12 or a
	// year-month string not in YYYY-MM form.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrBadCursor is returned when a feed response lacks a usable
	// links.self or links.next cursor.
	ErrBadCursor = errors.New("bad feed cursor")

	// ErrTooManyWindows is returned when a month takes more windows than
	// Config.MaxWindows.
	ErrTooManyWindows = errors.New("too many feed windows")
)

// Fetcher is implemented by the NeoWs client.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
	FeedURL(start, end string) string
}

// Config holds walker configuration.
type Config struct {
	// MaxWindows bounds the number of feed requests per month.
	MaxWindows int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxWindows: 8}
}

// Window is the date range of one feed response, both ends inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// open reports whether the walk continues past w.
func (w Window) open(year int, month time.Month) bool {
	return w.Start.Year() == year && w.Start.Month() == month && !w.Start.Equal(w.End)
}

// ParseWindow reads the window bounds from a feed cursor link.
func ParseWindow(link string) (Window, error) {
	u, err := url.Parse(link)
	if err != nil || link == "" {
		return Window{}, fmt.Errorf("%w: %q", ErrBadCursor, link)
	}
	q := u.Query()
	start, err := time.Parse(DateLayout, q.Get("start_date"))
	if err != nil {
		return Window{}, fmt.Errorf("%w: start_date in %q", ErrBadCursor, link)
	}
	end, err := time.Parse(DateLayout, q.Get("end_date"))
	if err != nil {
		return Window{}, fmt.Errorf("%w: end_date in %q", ErrBadCursor, link)
	}
	return Window{Start: start, End: end}, nil
}

// ClampCursor rewrites the end_date of link to last when it lies beyond it.
func ClampCursor(link string, last time.Time) (string, error) {
	u, err := url.Parse(link)
	if err != nil || link == "" {
		return "", fmt.Errorf("%w: next %q", ErrBadCursor, link)
	}
	q := u.Query()
	end, err := time.Parse(DateLayout, q.Get("end_date"))
	if err != nil {
		return "", fmt.Errorf("%w: end_date in next %q", ErrBadCursor, link)
	}
	if !end.After(last) {
		return link, nil
	}
	q.Set("end_date", last.Format(DateLayout))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(yearMonth string) (int, time.Month, error) {
	t, err := time.Parse(MonthLayout, yearMonth)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, yearMonth)
	}
	return t.Year(), t.Month(), nil
}

// Walker follows the feed cursor across a month.
type Walker struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewWalker creates a new walker.
func NewWalker(fetcher Fetcher, config Config) *Walker {
	if config.MaxWindows <= 0 {
		config.MaxWindows = DefaultConfig().MaxWindows
	}
	return &Walker{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentFeed),
	}
}

// FetchMonth returns every feed window of the month merged into one
// aggregate. Any failed window fails the whole month.
func (w *Walker) FetchMonth(ctx context.Context, year int, month time.Month) (*neo.MonthAggregate, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	window := Window{Start: first, End: first.AddDate(0, 0, 7)}
	page, err := w.fetch(ctx, w.fetcher.FeedURL(window.Start.Format(DateLayout), window.End.Format(DateLayout)), window)
	if err != nil {
		return nil, err
	}

	agg := neo.NewMonthAggregate()
	fetched := 1

	for window.open(year, month) {
		agg.Merge(page)

		next, err := ClampCursor(page.Links.Next, last)
		if err != nil {
			return nil, err
		}
		nextWindow, err := ParseWindow(next)
		if err != nil {
			return nil, err
		}

		if fetched >= w.config.MaxWindows {
			return nil, fmt.Errorf("%w: %d for %d-%02d", ErrTooManyWindows, fetched, year, month)
		}
		page, err = w.fetch(ctx, next, nextWindow)
		if err != nil {
			return nil, err
		}
		fetched++

		current, err := ParseWindow(page.Links.Self)
		if err != nil {
			return nil, err
		}
		if !current.Start.After(window.Start) {
			w.logger.Warn().
				Str("window_start", current.Start.Format(DateLayout)).
				Str("window_end", current.End.Format(DateLayout)).
				Msg("Feed cursor stalled")
			break
		}
		window = current
	}

	w.logger.Info().
		Int("windows", fetched).
		Int("days", len(agg.NearEarthObjects)).
		Int("element_count", agg.ElementCount).
		Msg("Month walk complete")

	return agg, nil
}

func (w *Walker) fetch(ctx context.Context, rawURL string, window Window) (*neo.FeedPage, error) {
	w.logger.Debug().
		Str("window_start", window.Start.Format(DateLayout)).
		Str("window_end", window.End.Format(DateLayout)).
		Msg("Fetching feed window")

	var page neo.FeedPage
	if err := w.fetcher.GetJSON(ctx, rawURL, &page); err != nil {
		neowsFeedWindowsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("fetch feed window %s: %w", window, err)
	}
	neowsFeedWindowsTotal.WithLabelValues("ok").Inc()
	return &page, nil
}
