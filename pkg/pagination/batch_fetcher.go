package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/neo-hunter/pkg/logging"
	"github.com/Sternrassler/neo-hunter/pkg/neo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var neowsPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "neows_pages_fetched_total",
	Help: "Browse pages fetched by result",
}, []string{"result"})

// ErrInvalidPageLimit is returned for a negative page limit.
var ErrInvalidPageLimit = errors.New("page limit must be >= 0")

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch, retries included. 0 disables it.
	Timeout time.Duration
	// ProgressEvery logs progress after this many completed pages
	ProgressEvery int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 20,
		Timeout:        2 * time.Minute,
		ProgressEvery:  50,
	}
}

// PageFetcher is implemented by the NeoWs client.
type PageFetcher interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
	BrowseURL() string
	PageURL(page int) string
}

// BatchFetcher handles parallel fetching of browse pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 20
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 50
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination),
	}
}

// TotalPages fetches the unpaginated listing and returns page.total_pages.
func (bf *BatchFetcher) TotalPages(ctx context.Context) (int, error) {
	var index neo.Page
	if err := bf.fetcher.GetJSON(ctx, bf.fetcher.BrowseURL(), &index); err != nil {
		return 0, fmt.Errorf("fetch browse index: %w", err)
	}
	return index.Page.TotalPages, nil
}

// FetchAllPages fetches browse pages [0, n) in parallel, where n is pageLimit
// when positive and page.total_pages otherwise.
//
// The result is ordered by page index. A page whose fetch failed is a nil
// slot; callers must skip it. An error is returned only when the listing
// itself cannot be fetched or pageLimit is invalid.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, pageLimit int) ([]*neo.Page, error) {
	if pageLimit < 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPageLimit, pageLimit)
	}

	start := time.Now()

	totalPages, err := bf.TotalPages(ctx)
	if err != nil {
		return nil, err
	}

	count := totalPages
	if pageLimit > 0 {
		count = pageLimit
	}

	bf.logger.Info().
		Int("total_pages", totalPages).
		Int("requested_pages", count).
		Int("workers", bf.config.MaxConcurrency).
		Msg("Starting parallel page fetch")

	results := make([]*neo.Page, count)
	pageQueue := make(chan int)

	go func() {
		defer close(pageQueue)
		for page := 0; page < count; page++ {
			select {
			case pageQueue <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := bf.config.MaxConcurrency
	if workers > count {
		workers = count
	}

	var (
		wg        sync.WaitGroup
		completed atomic.Int64
		failed    atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, i, pageQueue, results, &completed, &failed, count, &wg)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}

	bf.logger.Info().
		Int("pages", count).
		Int64("failed", failed.Load()).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// worker fetches pages from the queue into their result slot.
func (bf *BatchFetcher) worker(ctx context.Context, workerID int, pageQueue <-chan int, results []*neo.Page,
	completed, failed *atomic.Int64, total int, wg *sync.WaitGroup) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		page, err := bf.fetchPage(ctx, pageNum)
		if err != nil {
			bf.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")
			neowsPagesFetchedTotal.WithLabelValues("failed").Inc()
			failed.Add(1)
		} else {
			results[pageNum] = page
			neowsPagesFetchedTotal.WithLabelValues("ok").Inc()
		}
		pagesProcessed++

		if done := completed.Add(1); done%int64(bf.config.ProgressEvery) == 0 {
			bf.logger.Info().
				Int64("fetched", done).
				Int("total", total).
				Float64("progress_pct", float64(done)/float64(total)*100).
				Msg("Fetch progress")
		}
	}

	bf.logger.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

func (bf *BatchFetcher) fetchPage(ctx context.Context, pageNum int) (*neo.Page, error) {
	if bf.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bf.config.Timeout)
		defer cancel()
	}

	var page neo.Page
	if err := bf.fetcher.GetJSON(ctx, bf.fetcher.PageURL(pageNum), &page); err != nil {
		return nil, err
	}
	return &page, nil
}
