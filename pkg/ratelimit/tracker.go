package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	neowsRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neows_rate_limit_remaining",
		Help: "Requests remaining in the current NeoWs quota window",
	})

	neowsRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neows_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical quota",
	})

	neowsRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neows_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to low quota",
	})
)

// Header names reported by api.nasa.gov.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
)

// ThrottleDelay is how long a request waits when the quota is in warning state.
var ThrottleDelay = 1 * time.Second

// Tracker monitors the NeoWs quota of one API key and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	prefix string
}

// NewTracker creates a quota tracker for apiKey. The key itself is never
// stored; state lives under a fingerprint of it.
func NewTracker(redisClient *redis.Client, apiKey string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		prefix: "neows:quota:" + Fingerprint(apiKey),
	}
}

// Fingerprint returns a short, non-reversible identifier for an API key.
func Fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:12]
}

func (t *Tracker) key(suffix string) string {
	return t.prefix + ":" + suffix
}

// GetState retrieves the current quota state from Redis.
// Returns a default healthy state if no data exists.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	remaining, err := t.redis.Get(ctx, t.key(redisKeyRemaining)).Int()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No quota state in Redis, assuming healthy")
		return &QuotaState{
			Remaining:  RemainingThresholdHealthy,
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	limit, err := t.redis.Get(ctx, t.key(redisKeyLimit)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, t.key(redisKeyLastUpdate)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &QuotaState{
		Limit:      limit,
		Remaining:  remaining,
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses the quota headers of a response and stores them.
// Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := strings.TrimSpace(headers.Get(HeaderRemaining))
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	var limit int
	if limitStr := strings.TrimSpace(headers.Get(HeaderLimit)); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	state := &QuotaState{
		Limit:      limit,
		Remaining:  remain,
		LastUpdate: time.Now(),
	}
	state.UpdateHealth()

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// State outlives the window only as long as it can matter.
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, t.key(redisKeyRemaining), remain, QuotaWindow)
	pipe.Set(ctx, t.key(redisKeyLimit), limit, QuotaWindow)
	pipe.Set(ctx, t.key(redisKeyLastUpdate), lastUpdateJSON, QuotaWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	neowsRateLimitRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("NeoWs quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("NeoWs quota WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Bool("is_healthy", state.IsHealthy).
			Msg("NeoWs quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed.
// Returns false when the quota is critical. Sleeps for ThrottleDelay when it
// is in warning state, honouring ctx.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("NeoWs quota critical - blocking request")

		neowsRateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("NeoWs quota warning - throttling request")

		neowsRateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(ThrottleDelay):
		}
	}

	return true, nil
}
