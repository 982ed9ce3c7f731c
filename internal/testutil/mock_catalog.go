// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock catalog endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock Aquabrowser API server for testing.
//
// Search requests with refine=false are answered as probes with the
// configured count and context token. Page requests return result records
// numbered from 1 up to the count.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	count        int
	contextToken string
	apiKey       string
	probeError   *MockResponse
	pageFailures map[int]int
	pageDelay    time.Duration
	records      map[string]string

	// Tracking
	requests     []string
	probeCount   int
	pageCount    int
	inflight     int
	peakInflight int
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pageFailures: make(map[int]int),
		records:      make(map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, r.URL.String())
		mock.mu.Unlock()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the API base URL of the mock, ending in "/api/v1/".
func (m *MockCatalog) URL() string {
	return m.server.URL + "/api/v1/"
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.probeCount = 0
	m.pageCount = 0
	m.peakInflight = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSearchResults sets the result count and context token reported by probes.
func (m *MockCatalog) SetSearchResults(count int, contextToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = count
	m.contextToken = contextToken
}

// RequireKey makes every request without the given authorization key
// answer with an embedded 401 error.
func (m *MockCatalog) RequireKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
}

// SetProbeResponse overrides the probe response.
func (m *MockCatalog) SetProbeResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeError = &resp
}

// FailPage makes the given 1-based page answer with status.
func (m *MockCatalog) FailPage(page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageFailures[page] = status
}

// SetPageDelay delays every page response.
func (m *MockCatalog) SetPageDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageDelay = d
}

// SetRecord registers the response body for a details or availability id.
func (m *MockCatalog) SetRecord(id, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = body
}

// Requests returns the request URLs received so far.
func (m *MockCatalog) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// GetProbeCount returns the number of probe requests.
func (m *MockCatalog) GetProbeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.probeCount
}

// GetPageCount returns the number of page requests.
func (m *MockCatalog) GetPageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageCount
}

// GetPeakInflight returns the highest number of concurrent page requests seen.
func (m *MockCatalog) GetPeakInflight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakInflight
}

// defaultHandler provides Aquabrowser-like responses.
func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.RLock()
	apiKey := m.apiKey
	m.mu.RUnlock()
	if apiKey != "" && q.Get("authorization") != apiKey {
		writeXML(w, ErrorXML("401", "Invalid authorization key"))
		return
	}

	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/api/v1/search":
		if q.Get("refine") == "false" {
			m.handleProbe(w)
			return
		}
		m.handlePage(w, q.Get("page"), q.Get("pagesize"))
	case "/api/v1/details", "/api/v1/availability":
		m.handleRecord(w, q.Get("frabl"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockCatalog) handleProbe(w http.ResponseWriter) {
	m.mu.Lock()
	m.probeCount++
	override := m.probeError
	count, token := m.count, m.contextToken
	m.mu.Unlock()

	if override != nil {
		writeResponse(w, *override)
		return
	}
	writeXML(w, ProbeXML(count, token))
}

func (m *MockCatalog) handlePage(w http.ResponseWriter, pageParam, sizeParam string) {
	page, _ := strconv.Atoi(pageParam)
	size, _ := strconv.Atoi(sizeParam)

	m.mu.Lock()
	m.pageCount++
	m.inflight++
	if m.inflight > m.peakInflight {
		m.peakInflight = m.inflight
	}
	delay := m.pageDelay
	status, fail := m.pageFailures[page]
	count := m.count
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		w.WriteHeader(status)
		return
	}

	var ids []int
	for id := (page-1)*size + 1; id <= page*size && id <= count; id++ {
		ids = append(ids, id)
	}
	writeXML(w, PageXML(ids))
}

func (m *MockCatalog) handleRecord(w http.ResponseWriter, id string) {
	m.mu.RLock()
	body, ok := m.records[id]
	m.mu.RUnlock()

	if !ok {
		writeXML(w, ErrorXML("404", "Record not found"))
		return
	}
	writeXML(w, body)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
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
}

// ProbeXML renders a probe response.
func ProbeXML(count int, contextToken string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<aquabrowser>
  <meta>
    <count>%d</count>
    <rctx>%s</rctx>
  </meta>
</aquabrowser>`, count, contextToken)
}

// PageXML renders a page of result records with the given ids.
func PageXML(ids []int) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<aquabrowser>\n  <results>\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "    <result>\n      <id nativeid=\"%d\">|oba-catalogus|%d</id>\n      <titles>\n        <title>Record %d</title>\n      </titles>\n    </result>\n", id, id, id)
	}
	b.WriteString("  </results>\n</aquabrowser>")
	return b.String()
}

// ErrorXML renders an embedded API error.
func ErrorXML(code, reason string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<aquabrowser>
  <error>
    <code>%s</code>
    <reason>%s</reason>
  </error>
</aquabrowser>`, code, reason)
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "Service Unavailable",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}
