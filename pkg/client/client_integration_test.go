//go:build integration

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_QuotaSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	// Each response spends one request of a 6 request quota.
	var remaining atomic.Int32
	remaining.Store(6)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		left := remaining.Add(-1)
		w.Header().Set("X-RateLimit-Limit", "6")
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(left)))
		w.Write([]byte(`{"near_earth_objects": []}`))
	}))
	defer server.Close()

	newClient := func() *Client {
		cfg := DefaultConfig("shared-key")
		cfg.BaseURL = server.URL
		cfg.Redis = redisClient
		cfg.RateLimit = 0
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		return c
	}
	first, second := newClient(), newClient()
	ctx := context.Background()

	var body map[string]any
	// remaining 5 after this one: throttled but allowed.
	if err := first.GetJSON(ctx, first.BrowseURL(), &body); err != nil {
		t.Fatalf("first client request error = %v", err)
	}
	// remaining 4: recorded by the first client, enforced on the second.
	if err := first.GetJSON(ctx, first.BrowseURL(), &body); err != nil {
		t.Fatalf("first client second request error = %v", err)
	}

	err := second.GetJSON(ctx, second.BrowseURL(), &body)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited on second client, got %v", err)
	}
}

func TestIntegration_HealthyQuotaPassesThrough(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "1000")
		w.Header().Set("X-RateLimit-Remaining", "998")
		w.Write([]byte(`{"element_count": 0}`))
	}))
	defer server.Close()

	cfg := DefaultConfig("healthy-key")
	cfg.BaseURL = server.URL
	cfg.Redis = redisClient
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		var body map[string]any
		if err := c.GetJSON(ctx, c.FeedURL("2021-10-01", "2021-10-08"), &body); err != nil {
			t.Fatalf("request %d error = %v", i, err)
		}
	}
}
