// Package reduce derives summary views from fetched browse pages.
//
// Pages come from pagination.BatchFetcher in page order; a nil page is a
// page that could not be fetched and is skipped. Only approaches whose
// orbiting body is Earth and whose astronomical miss distance parses to a
// finite number are eligible. Reductions never modify their input: emitted asteroids are
// copies carrying a replaced approach list.
package reduce
