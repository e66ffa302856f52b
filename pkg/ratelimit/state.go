// Package ratelimit tracks the NeoWs hourly request quota and gates requests.
// api.nasa.gov reports the quota on every response through the
// X-RateLimit-Limit and X-RateLimit-Remaining headers; once a key runs out,
// every request fails until the rolling hour frees capacity.
package ratelimit

import (
	"time"
)

// Redis key suffixes for quota state storage. Keys are namespaced per API key
// fingerprint, see Tracker.
const (
	redisKeyLimit      = "limit"
	redisKeyRemaining  = "remaining"
	redisKeyLastUpdate = "last_update"
)

// QuotaWindow is the rolling window over which api.nasa.gov counts requests.
const QuotaWindow = time.Hour

// Thresholds for quota decisions.
const (
	// RemainingThresholdCritical blocks all requests when remaining falls below this value.
	RemainingThresholdCritical = 5

	// RemainingThresholdWarning applies throttling when remaining falls below this value.
	RemainingThresholdWarning = 20

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 100
)

// QuotaState represents the last observed quota of an API key.
// The state is shared across processes using the same key via Redis.
type QuotaState struct {
	// Limit is the hourly request limit (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// LastUpdate is when the headers were observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy
	// or Remaining covers the whole limit.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A state older than the quota window no longer says anything about the key.
func (s *QuotaState) NeedsCriticalBlock() bool {
	if s.IsStale(QuotaWindow) {
		return false
	}
	return s.Remaining < RemainingThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	if s.IsStale(QuotaWindow) {
		return false
	}
	return s.Remaining < RemainingThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns how long until the observation falls out of the
// rolling window. Returns 0 if it already has.
func (s *QuotaState) TimeUntilReset() time.Duration {
	d := time.Until(s.LastUpdate.Add(QuotaWindow))
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Remaining and Limit.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy || (s.Limit > 0 && s.Remaining >= s.Limit)
}
