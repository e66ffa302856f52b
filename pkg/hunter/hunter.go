// Package hunter exposes the three asteroid reports built on the NeoWs
// browse and feed endpoints.
//
// Every operation validates its arguments before any request is made and
// reports failure through its error: invalid arguments wrap
// ErrInvalidArgument, fetch failures wrap the client error, and a batch
// in which no page could be fetched wraps ErrUnavailable.
package hunter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/neo-hunter/pkg/client"
	"github.com/Sternrassler/neo-hunter/pkg/feed"
	"github.com/Sternrassler/neo-hunter/pkg/logging"
	"github.com/Sternrassler/neo-hunter/pkg/neo"
	"github.com/Sternrassler/neo-hunter/pkg/pagination"
	"github.com/Sternrassler/neo-hunter/pkg/reduce"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultThreshold is the default number of nearest misses.
const DefaultThreshold = 10

var (
	// ErrInvalidArgument is returned for a rejected limit, threshold or month.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable is returned when not a single page of a batch could be fetched.
	ErrUnavailable = errors.New("no page could be fetched")
)

// Config holds the configuration of every layer below the hunter.
type Config struct {
	Client     client.Config
	Pagination pagination.Config
	Feed       feed.Config
}

// DefaultConfig returns the default configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		Client:     client.DefaultConfig(apiKey),
		Pagination: pagination.DefaultConfig(),
		Feed:       feed.DefaultConfig(),
	}
}

// Hunter runs the asteroid reports. It is safe for concurrent use.
type Hunter struct {
	client  *client.Client
	fetcher *pagination.BatchFetcher
	walker  *feed.Walker
	logger  zerolog.Logger
}

// New creates a hunter and its NeoWs client.
func New(cfg Config) (*Hunter, error) {
	c, err := client.New(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Hunter{
		client:  c,
		fetcher: pagination.NewBatchFetcher(c, cfg.Pagination),
		walker:  feed.NewWalker(c, cfg.Feed),
		logger:  logging.NewLogger(logging.ComponentHunter),
	}, nil
}

// Close releases the client's idle connections.
func (h *Hunter) Close() error {
	return h.client.Close()
}

// ClosestApproach returns every asteroid of the first limit browse pages
// (all pages when limit is 0), each reduced to its closest Earth approach.
func (h *Hunter) ClosestApproach(ctx context.Context, limit int) ([]neo.Asteroid, error) {
	if limit < 0 {
		return nil, invalid(fmt.Errorf("%w (got %d)", pagination.ErrInvalidPageLimit, limit))
	}

	logger := h.runLogger("closest_approach")
	start := time.Now()

	pages, err := h.fetchPages(ctx, logger, limit)
	if err != nil {
		return nil, err
	}
	result := reduce.ClosestApproach(pages)

	logger.Info().
		Int("asteroids", len(result)).
		Dur("duration", time.Since(start)).
		Msg("Closest approach complete")
	return result, nil
}

// MonthAggregate returns every feed entry of the month given as YYYY-MM,
// keyed by date.
func (h *Hunter) MonthAggregate(ctx context.Context, yearMonth string) (*neo.MonthAggregate, error) {
	year, month, err := feed.ParseMonth(yearMonth)
	if err != nil {
		return nil, invalid(err)
	}

	logger := h.runLogger("month_aggregate")
	start := time.Now()

	agg, err := h.walker.FetchMonth(ctx, year, month)
	if err != nil {
		logger.Error().Err(err).Str("month", yearMonth).Msg("Month aggregate failed")
		return nil, err
	}

	logger.Info().
		Str("month", yearMonth).
		Int("days", len(agg.NearEarthObjects)).
		Int("element_count", agg.ElementCount).
		Dur("duration", time.Since(start)).
		Msg("Month aggregate complete")
	return agg, nil
}

// NearestMisses returns the asteroids owning the threshold nearest Earth
// approaches within the first limit browse pages (all pages when limit is 0).
func (h *Hunter) NearestMisses(ctx context.Context, threshold, limit int) ([]neo.Asteroid, error) {
	if threshold < 1 {
		return nil, invalid(fmt.Errorf("%w (got %d)", reduce.ErrInvalidThreshold, threshold))
	}
	if limit < 0 {
		return nil, invalid(fmt.Errorf("%w (got %d)", pagination.ErrInvalidPageLimit, limit))
	}

	logger := h.runLogger("nearest_misses")
	start := time.Now()

	pages, err := h.fetchPages(ctx, logger, limit)
	if err != nil {
		return nil, err
	}
	result, err := reduce.NearestMisses(pages, threshold)
	if err != nil {
		return nil, invalid(err)
	}

	logger.Info().
		Int("threshold", threshold).
		Int("asteroids", len(result)).
		Dur("duration", time.Since(start)).
		Msg("Nearest misses complete")
	return result, nil
}

func (h *Hunter) fetchPages(ctx context.Context, logger zerolog.Logger, limit int) ([]*neo.Page, error) {
	pages, err := h.fetcher.FetchAllPages(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Int("limit", limit).Msg("Page fetch failed")
		return nil, err
	}

	failed := 0
	for _, page := range pages {
		if page == nil {
			failed++
		}
	}
	if len(pages) > 0 && failed == len(pages) {
		logger.Error().Int("pages", len(pages)).Msg("Every page failed")
		return nil, fmt.Errorf("%w: %d of %d pages failed", ErrUnavailable, failed, len(pages))
	}
	if failed > 0 {
		logger.Warn().Int("failed", failed).Int("pages", len(pages)).Msg("Skipping failed pages")
	}
	return pages, nil
}

func (h *Hunter) runLogger(operation string) zerolog.Logger {
	return h.logger.With().
		Str("run_id", uuid.NewString()).
		Str("operation", operation).
		Logger()
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}
