package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/neo-hunter/internal/testutil"
	"github.com/Sternrassler/neo-hunter/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T, mock *testutil.MockNeoWs, apiKey string) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(apiKey)
	cfg.BaseURL = mock.URL()
	cfg.RateLimit = 0
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond

	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFetchAllPages_AllPagesInOrder(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()
	mock.TotalPages = 7

	fetcher := NewBatchFetcher(newMockClient(t, mock, "test-key"), Config{MaxConcurrency: 3})

	pages, err := fetcher.FetchAllPages(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pages, 7)

	for i, page := range pages {
		require.NotNil(t, page, "page %d", i)
		assert.Equal(t, i, page.Page.Number)
		assert.Len(t, page.NearEarthObjects, 20)
		assert.Equal(t, fmt.Sprint(2000000+i*1000), page.NearEarthObjects[0].ID)
	}
	// listing + one request per page
	assert.Equal(t, 8, mock.GetRequestCount())
}

func TestFetchAllPages_PageLimit(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()

	fetcher := NewBatchFetcher(newMockClient(t, mock, "test-key"), DefaultConfig())

	pages, err := fetcher.FetchAllPages(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	total := 0
	for _, page := range pages {
		total += len(page.NearEarthObjects)
	}
	assert.Equal(t, 40, total)
}

func TestFetchAllPages_LimitBeyondTotalPages(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()
	mock.TotalPages = 2

	fetcher := NewBatchFetcher(newMockClient(t, mock, "test-key"), DefaultConfig())

	pages, err := fetcher.FetchAllPages(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, pages, 4)
	assert.Empty(t, pages[3].NearEarthObjects)
}

func TestFetchAllPages_InvalidLimit(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()

	fetcher := NewBatchFetcher(newMockClient(t, mock, "test-key"), DefaultConfig())

	pages, err := fetcher.FetchAllPages(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidPageLimit)
	assert.Nil(t, pages)
	assert.Zero(t, mock.GetRequestCount())
}

func TestFetchAllPages_FailedPageIsNilSlot(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()
	mock.TotalPages = 4
	mock.FailPages[2] = http.StatusInternalServerError

	fetcher := NewBatchFetcher(newMockClient(t, mock, "test-key"), DefaultConfig())

	pages, err := fetcher.FetchAllPages(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pages, 4)

	assert.NotNil(t, pages[0])
	assert.NotNil(t, pages[1])
	assert.Nil(t, pages[2])
	assert.NotNil(t, pages[3])
}

func TestFetchAllPages_BadKey(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()

	fetcher := NewBatchFetcher(newMockClient(t, mock, "wrong-key"), DefaultConfig())

	pages, err := fetcher.FetchAllPages(context.Background(), 2)
	require.Error(t, err)
	assert.Nil(t, pages)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestFetchAllPages_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockNeoWs("test-key")
	defer mock.Close()
	mock.TotalPages = 50
	mock.SetHandler("/neo/browse", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			w.Write([]byte(`{"page":{"total_pages":50},"near_earth_objects":[]}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	fetcher := NewBatchFetcher(newMockClient(t, mock, "test-key"), DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pages, err := fetcher.FetchAllPages(ctx, 0)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Nil(t, pages)
}
