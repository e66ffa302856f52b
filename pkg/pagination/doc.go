// Package pagination provides parallel batch fetching of the NeoWs browse endpoint.
//
// The browse endpoint reports its size in page.total_pages. This package
// fetches the unpaginated listing once to learn that count, then spreads the
// page requests over a bounded worker pool and gathers the results in page
// order.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(neowsClient, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, 0)
//
// The batch fetcher:
//   - Fetches the listing to determine total pages
//   - Spawns a worker pool (default 20 workers)
//   - Writes each page into its own result slot
//   - Leaves a nil slot for a page that could not be fetched
//   - Logs progress every 50 pages
//
// Page order matters: reducers address approaches by
// (page, asteroid, approach) index triples.
package pagination
