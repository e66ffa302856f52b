// Package testutil provides a mock NeoWs server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockNeoWs is a configurable mock of the NeoWs browse and feed endpoints.
//
// Browse pages hold PerPage generated asteroids. Asteroid i of page p has
// three approaches: two to Earth and one to Mars. For even i the closest
// Earth approach is at index 0, for odd i at index 2. Every fifth asteroid
// has no approaches at all.
//
// The feed reports FeedPerDay asteroids per day of the requested window and
// links to the next window starting on the current end date, as NeoWs does.
type MockNeoWs struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// APIKey is the only accepted key. Other keys get 403.
	APIKey     string
	TotalPages int
	PerPage    int
	FeedPerDay int

	// FailPages answers the listed browse pages with the given status.
	FailPages map[int]int
	// FailFeedFrom answers feed windows starting on or after this date with 500.
	FailFeedFrom string

	requestCount int
	feedRequests []string
}

// NewMockNeoWs creates a started mock server accepting apiKey.
func NewMockNeoWs(apiKey string) *MockNeoWs {
	mock := &MockNeoWs{
		handlers:   make(map[string]http.HandlerFunc),
		APIKey:     apiKey,
		TotalPages: 5,
		PerPage:    20,
		FeedPerDay: 2,
		FailPages:  make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		if r.URL.Query().Get("api_key") != mock.APIKey {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":"API_KEY_INVALID","message":"An invalid api_key was supplied."}}`))
			return
		}

		switch r.URL.Path {
		case "/neo/browse":
			mock.browseHandler(w, r)
		case "/feed":
			mock.feedHandler(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return mock
}

// URL returns the mock server URL, usable as client base URL.
func (m *MockNeoWs) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockNeoWs) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockNeoWs) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.feedRequests = nil
}

// SetHandler overrides the handler for a path.
func (m *MockNeoWs) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockNeoWs) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockNeoWs) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// FeedWindows returns the "start..end" windows requested from the feed.
func (m *MockNeoWs) FeedWindows() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.feedRequests...)
}

// Asteroid returns the generated asteroid i of page p.
func (m *MockNeoWs) Asteroid(p, i int) map[string]any {
	id := strconv.Itoa(2000000 + p*1000 + i)
	approaches := []map[string]any{}
	if i%5 != 4 {
		base := float64(p*m.PerPage+i+1) * 0.001
		near, far := base, base+0.5
		if i%2 == 1 {
			near, far = far, near
		}
		approaches = []map[string]any{
			approach("1990-01-01", "Earth", near),
			approach("2000-01-01", "Mars", base/10),
			approach("2010-01-01", "Earth", far),
		}
	}
	return map[string]any{
		"id":                                id,
		"neo_reference_id":                  id,
		"name":                              fmt.Sprintf("(%s test)", id),
		"absolute_magnitude_h":              20.5,
		"is_potentially_hazardous_asteroid": i%7 == 0,
		"close_approach_data":               approaches,
	}
}

func approach(date, body string, au float64) map[string]any {
	return map[string]any{
		"close_approach_date": date,
		"orbiting_body":       body,
		"miss_distance": map[string]string{
			"astronomical": strconv.FormatFloat(au, 'f', -1, 64),
			"lunar":        strconv.FormatFloat(au*389.17, 'f', -1, 64),
			"kilometers":   strconv.FormatFloat(au*149597870.7, 'f', -1, 64),
			"miles":        strconv.FormatFloat(au*92955807.3, 'f', -1, 64),
		},
	}
}

func (m *MockNeoWs) browseHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 0
	if raw := q.Get("page"); raw != "" {
		var err error
		if page, err = strconv.Atoi(raw); err != nil || page < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	m.mu.RLock()
	status, fail := m.FailPages[page]
	m.mu.RUnlock()
	if fail && q.Get("page") != "" {
		w.WriteHeader(status)
		return
	}

	objects := make([]map[string]any, 0, m.PerPage)
	if page < m.TotalPages {
		for i := 0; i < m.PerPage; i++ {
			objects = append(objects, m.Asteroid(page, i))
		}
	}

	writeJSON(w, map[string]any{
		"links": map[string]string{"self": r.URL.String()},
		"page": map[string]int{
			"size":           m.PerPage,
			"total_elements": m.TotalPages * m.PerPage,
			"total_pages":    m.TotalPages,
			"number":         page,
		},
		"near_earth_objects": objects,
	})
}

func (m *MockNeoWs) feedHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err1 := time.Parse(dateLayout, q.Get("start_date"))
	end, err2 := time.Parse(dateLayout, q.Get("end_date"))
	if err1 != nil || err2 != nil || end.Before(start) || end.Sub(start) > 7*24*time.Hour {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_message":"Date Format Exception"}`))
		return
	}

	m.mu.Lock()
	m.feedRequests = append(m.feedRequests, q.Get("start_date")+".."+q.Get("end_date"))
	failFrom := m.FailFeedFrom
	m.mu.Unlock()

	if failFrom != "" && q.Get("start_date") >= failFrom {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	days := make(map[string][]map[string]any)
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		objects := make([]map[string]any, 0, m.FeedPerDay)
		for i := 0; i < m.FeedPerDay; i++ {
			objects = append(objects, m.Asteroid(d.YearDay(), i))
		}
		days[d.Format(dateLayout)] = objects
		count += len(objects)
	}

	link := func(s, e time.Time) string {
		v := url.Values{}
		v.Set("start_date", s.Format(dateLayout))
		v.Set("end_date", e.Format(dateLayout))
		v.Set("detailed", "false")
		v.Set("api_key", m.APIKey)
		return m.server.URL + "/feed?" + v.Encode()
	}

	writeJSON(w, map[string]any{
		"links": map[string]string{
			"next": link(end, end.AddDate(0, 0, 7)),
			"prev": link(start.AddDate(0, 0, -7), start),
			"self": link(start, end),
		},
		"element_count":      count,
		"near_earth_objects": days,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "1000")
	w.Header().Set("X-RateLimit-Remaining", "999")
	json.NewEncoder(w).Encode(v)
}
