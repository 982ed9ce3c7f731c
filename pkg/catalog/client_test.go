package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-client/internal/testutil"
	"github.com/Sternrassler/catalog-client/pkg/aquabrowser"
	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/fetch"
	"github.com/Sternrassler/catalog-client/pkg/query"
	"github.com/Sternrassler/catalog-client/pkg/xmltree"
)

// newTestClient creates a client against mock with fast retries.
func newTestClient(t *testing.T, mock *testutil.MockCatalog, mutate ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.APIBaseURL = mock.URL()
	cfg.APIKey = "test-key"
	cfg.Fetch.Retry = fetch.RetryConfig{
		MaxAttempts: 2,
		BackoffUnit: time.Millisecond,
		MaxJitter:   0,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func pageParam(t *testing.T, rawURL, name string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Invalid URL %s: %v", rawURL, err)
	}
	return u.Query().Get(name)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "proxy prefix", mutate: func(c *Config) { c.ProxyPrefix = "https://cors-anywhere.herokuapp.com/" }},
		{name: "empty policy defaults", mutate: func(c *Config) { c.ErrorPolicy = "" }},
		{name: "missing base url", mutate: func(c *Config) { c.APIBaseURL = "" }, expectErr: true},
		{name: "base url without slash", mutate: func(c *Config) { c.APIBaseURL = "https://zoeken.oba.nl/api/v1" }, expectErr: true},
		{name: "invalid proxy", mutate: func(c *Config) { c.ProxyPrefix = "not a url" }, expectErr: true},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, expectErr: true},
		{name: "unknown policy", mutate: func(c *Config) { c.ErrorPolicy = "ignore" }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := New(cfg)
			if tt.expectErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.APIBaseURL != "https://zoeken.oba.nl/api/v1/" {
		t.Errorf("APIBaseURL = %s", cfg.APIBaseURL)
	}
	if cfg.APIKey != "NO_KEY_PROVIDED" {
		t.Errorf("APIKey = %s", cfg.APIKey)
	}
	if cfg.ErrorPolicy != PolicySubstitute {
		t.Errorf("ErrorPolicy = %s", cfg.ErrorPolicy)
	}
}

func TestCreateStream_SingleBatch(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(12, "AWNk")

	client := newTestClient(t, mock)
	ctx := testContext(t)

	stream, err := client.CreateStream(ctx, "search/cats{5,5}")
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}
	pages, err := stream.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("Expected 1 page, got %d", len(pages))
	}
	if mock.GetPageCount() != 1 {
		t.Errorf("Expected 1 page request, got %d", mock.GetPageCount())
	}
	if mock.GetProbeCount() != 1 {
		t.Errorf("Expected 1 probe, got %d", mock.GetProbeCount())
	}
	if len(pages[0].Records) != 5 {
		t.Errorf("Expected 5 records, got %d", len(pages[0].Records))
	}
	if got := pageParam(t, pages[0].URL, "rctx"); got != "AWNk" {
		t.Errorf("rctx = %q, want AWNk", got)
	}
	if got := pageParam(t, pages[0].URL, "pagesize"); got != "5" {
		t.Errorf("pagesize = %q, want 5", got)
	}
}

func TestCreate_NoResults(t *testing.T) {
	modes := map[string]func(*Client, context.Context, string) error{
		"stream": func(c *Client, ctx context.Context, s string) error {
			_, err := c.CreateStream(ctx, s)
			return err
		},
		"iterator": func(c *Client, ctx context.Context, s string) error {
			_, err := c.CreateIterator(ctx, s)
			return err
		},
		"promise": func(c *Client, ctx context.Context, s string) error {
			_, err := c.CreatePromise(ctx, s)
			return err
		},
		"collect": func(c *Client, ctx context.Context, s string) error {
			_, err := c.Collect(ctx, s)
			return err
		},
	}

	for name, create := range modes {
		t.Run(name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()
			mock.SetSearchResults(0, "")

			err := create(newTestClient(t, mock), testContext(t), "search/dogs")
			if !errors.Is(err, ErrNoResults) {
				t.Fatalf("Expected ErrNoResults, got %v", err)
			}
			if mock.GetPageCount() != 0 {
				t.Errorf("Expected no page requests, got %d", mock.GetPageCount())
			}
		})
	}
}

func TestCreate_InvalidShorthand(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	client := newTestClient(t, mock)

	tests := []struct {
		shorthand string
		expected  error
	}{
		{shorthand: "search", expected: query.ErrInvalidSyntax},
		{shorthand: "", expected: query.ErrInvalidSyntax},
		{shorthand: "browse/cats", expected: query.ErrUnsupportedEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.shorthand, func(t *testing.T) {
			_, err := client.CreateStream(testContext(t), tt.shorthand)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}

	if mock.GetRequestCount() != 0 {
		t.Errorf("Expected no requests, got %d", mock.GetRequestCount())
	}
}

func TestCreate_ProbeFailureMeansNoResults(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testutil.MockCatalog)
	}{
		{
			name: "http error",
			setup: func(m *testutil.MockCatalog) {
				m.SetProbeResponse(testutil.MockResponse{StatusCode: 404, Body: "Not Found"})
			},
		},
		{
			name: "embedded api error",
			setup: func(m *testutil.MockCatalog) {
				m.SetSearchResults(50, "tok")
				m.RequireKey("other-key")
			},
		},
		{
			name: "server unavailable",
			setup: func(m *testutil.MockCatalog) {
				m.SetProbeResponse(testutil.NewServerErrorResponse())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()
			tt.setup(mock)

			_, err := newTestClient(t, mock).CreateStream(testContext(t), "search/cats")
			if !errors.Is(err, ErrNoResults) {
				t.Errorf("Expected ErrNoResults, got %v", err)
			}
		})
	}
}

func TestCreateIterator_Sequential(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(55, "tok")
	mock.SetPageDelay(20 * time.Millisecond)

	client := newTestClient(t, mock)
	ctx := testContext(t)

	it, err := client.CreateIterator(ctx, "search/cats{60,20}")
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}
	if it.Len() != 3 || it.Remaining() != 3 {
		t.Fatalf("Len/Remaining = %d/%d, want 3/3", it.Len(), it.Remaining())
	}
	if mock.GetPageCount() != 0 {
		t.Errorf("Iterator fetched %d pages before Next", mock.GetPageCount())
	}

	var indexes []int
	var records int
	for it.Next(ctx) {
		page := it.Page()
		indexes = append(indexes, page.Index)
		records += len(page.Records)
		if mock.GetPageCount() != page.Index+1 {
			t.Errorf("After page %d, %d page requests were made", page.Index, mock.GetPageCount())
		}
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Iterator error: %v", err)
	}

	if len(indexes) != 3 || indexes[0] != 0 || indexes[1] != 1 || indexes[2] != 2 {
		t.Errorf("page order = %v", indexes)
	}
	if records != 55 {
		t.Errorf("records = %d, want 55", records)
	}
	if peak := mock.GetPeakInflight(); peak != 1 {
		t.Errorf("peak inflight = %d, want 1", peak)
	}
	if it.Remaining() != 0 || it.Next(ctx) {
		t.Error("Iterator should be exhausted")
	}
	if it.TotalCount() != 55 || it.ContextToken() != "tok" {
		t.Errorf("TotalCount/ContextToken = %d/%q", it.TotalCount(), it.ContextToken())
	}
}

func TestIterator_Pages(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(40, "tok")

	client := newTestClient(t, mock)
	ctx := testContext(t)

	it, err := client.CreateIterator(ctx, "search/cats{40,20}")
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}

	var count int
	for page := range it.Pages(ctx) {
		count++
		if page.Index == 0 {
			break
		}
	}
	if count != 1 {
		t.Errorf("Expected early break after 1 page, got %d", count)
	}
	if mock.GetPageCount() != 1 {
		t.Errorf("Expected 1 page request after break, got %d", mock.GetPageCount())
	}
	if it.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", it.Remaining())
	}
}

func TestIterator_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(40, "tok")

	client := newTestClient(t, mock)
	ctx, cancel := context.WithCancel(context.Background())

	it, err := client.CreateIterator(ctx, "search/cats{40,20}")
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}
	cancel()

	if it.Next(ctx) {
		t.Error("Next should fail on a cancelled context")
	}
	if !errors.Is(it.Err(), context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", it.Err())
	}
}

func TestCreateStream_Concurrent(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(100, "tok")
	mock.SetPageDelay(100 * time.Millisecond)

	client := newTestClient(t, mock)
	ctx := testContext(t)

	stream, err := client.CreateStream(ctx, "search/cats{60,20}")
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}
	pages, err := stream.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Index != i {
			t.Errorf("pages[%d].Index = %d", i, p.Index)
		}
		if got := pageParam(t, p.URL, "page"); got != string(rune('1'+i)) {
			t.Errorf("pages[%d] page param = %s", i, got)
		}
	}
	if peak := mock.GetPeakInflight(); peak < 2 {
		t.Errorf("peak inflight = %d, expected concurrent dispatch", peak)
	}
}

func TestCreatePromise(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(30, "tok")
	mock.SetPageDelay(100 * time.Millisecond)

	client := newTestClient(t, mock)
	ctx := testContext(t)

	futures, err := client.CreatePromise(ctx, "search/cats{30,10}")
	if err != nil {
		t.Fatalf("CreatePromise failed: %v", err)
	}
	if len(futures) != 3 {
		t.Fatalf("Expected 3 futures, got %d", len(futures))
	}

	// Await in reverse; positions stay fixed.
	for i := len(futures) - 1; i >= 0; i-- {
		page, err := futures[i].Await(ctx)
		if err != nil {
			t.Fatalf("future %d failed: %v", i, err)
		}
		if page.Index != i || len(page.Records) != 10 {
			t.Errorf("future %d: index %d, %d records", i, page.Index, len(page.Records))
		}
	}
	if peak := mock.GetPeakInflight(); peak < 2 {
		t.Errorf("peak inflight = %d, expected concurrent dispatch", peak)
	}
}

func TestCreateStream_FailedPageSubstituted(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(60, "tok")
	mock.FailPage(2, 404)

	client := newTestClient(t, mock)
	ctx := testContext(t)

	stream, err := client.CreateStream(ctx, "search/cats{60,20}")
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}
	pages, err := stream.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(pages))
	}
	if pages[0].Failed() || pages[2].Failed() {
		t.Error("Sibling pages should succeed")
	}
	if !pages[1].Failed() || !errors.Is(pages[1].Err, fetch.ErrNonRetryable) {
		t.Errorf("pages[1].Err = %v, want non-retryable", pages[1].Err)
	}
	if pages[1].Index != 1 || pages[1].URL == "" {
		t.Errorf("Substituted page lost its position: %+v", pages[1])
	}
}

func TestCreateStream_PropagatePolicy(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(60, "tok")
	mock.FailPage(3, 503)

	client := newTestClient(t, mock, func(c *Config) { c.ErrorPolicy = PolicyPropagate })
	ctx := testContext(t)

	stream, err := client.CreateStream(ctx, "search/cats{60,20}")
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}
	_, err = stream.All(ctx)
	if !errors.Is(err, fetch.ErrRetriesExhausted) {
		t.Errorf("Expected ErrRetriesExhausted, got %v", err)
	}
}

func TestCreateIterator_PropagatePolicy(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(60, "tok")
	mock.FailPage(2, 400)

	client := newTestClient(t, mock, func(c *Config) { c.ErrorPolicy = PolicyPropagate })
	ctx := testContext(t)

	it, err := client.CreateIterator(ctx, "search/cats{60,20}")
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}

	var pages int
	for it.Next(ctx) {
		pages++
	}
	if pages != 1 {
		t.Errorf("Expected 1 page before failure, got %d", pages)
	}
	if !errors.Is(it.Err(), fetch.ErrNonRetryable) {
		t.Errorf("Err = %v, want non-retryable", it.Err())
	}
}

func TestCreateIterator_SubstitutePolicy(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(60, "tok")
	mock.FailPage(2, 400)

	client := newTestClient(t, mock)
	ctx := testContext(t)

	it, err := client.CreateIterator(ctx, "search/cats{60,20}")
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}

	var failed, ok int
	for it.Next(ctx) {
		if it.Page().Failed() {
			failed++
		} else {
			ok++
		}
	}
	if it.Err() != nil || failed != 1 || ok != 2 {
		t.Errorf("ok=%d failed=%d err=%v", ok, failed, it.Err())
	}
}

func TestCreate_Options(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(100, "fresh")

	client := newTestClient(t, mock)
	ctx := testContext(t)

	it, err := client.CreateIterator(ctx, "search/cats",
		WithQueryValue("harry potter"),
		WithMaxResults(40),
		WithPageSize(10),
		WithContextToken("previous"),
	)
	if err != nil {
		t.Fatalf("CreateIterator failed: %v", err)
	}
	if it.Len() != 4 {
		t.Errorf("Len = %d, want 4", it.Len())
	}

	requests := mock.Requests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 probe request, got %d", len(requests))
	}
	probeURL := requests[0]
	for _, want := range []string{"q=harry%20potter", "pagesize=1", "refine=false", "rctx=previous", "authorization=test-key"} {
		if !strings.Contains(probeURL, want) {
			t.Errorf("probe URL %s missing %s", probeURL, want)
		}
	}

	if !it.Next(ctx) {
		t.Fatalf("Next failed: %v", it.Err())
	}
	pageURL := it.Page().URL
	for _, want := range []string{"pagesize=10", "refine=true", "page=1", "rctx=fresh"} {
		if !strings.Contains(pageURL, want) {
			t.Errorf("page URL %s missing %s", pageURL, want)
		}
	}
}

func TestCreate_InvalidOption(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	client := newTestClient(t, mock)

	_, err := client.CreateStream(testContext(t), "search/cats", WithEndpoint("browse"))
	if !errors.Is(err, query.ErrUnsupportedEndpoint) {
		t.Errorf("Expected ErrUnsupportedEndpoint, got %v", err)
	}
	_, err = client.CreateStream(testContext(t), "search/cats", WithMaxResults(-1))
	if !errors.Is(err, query.ErrInvalidSyntax) {
		t.Errorf("Expected ErrInvalidSyntax, got %v", err)
	}
}

func TestCreateStream_Cached(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(40, "tok")

	store := cache.NewMemoryStore()
	client := newTestClient(t, mock, func(c *Config) { c.Store = store })
	ctx := testContext(t)

	run := func() []Page {
		stream, err := client.CreateStream(ctx, "search/cats{40,20}")
		if err != nil {
			t.Fatalf("CreateStream failed: %v", err)
		}
		pages, err := stream.All(ctx)
		if err != nil {
			t.Fatalf("All failed: %v", err)
		}
		return pages
	}

	first := run()
	requests := mock.GetRequestCount()
	second := run()

	if mock.GetRequestCount() != requests {
		t.Errorf("Second run made %d network requests", mock.GetRequestCount()-requests)
	}
	if len(first) != len(second) || len(second[1].Records) != 20 {
		t.Errorf("Cached pages differ: %d vs %d", len(first), len(second))
	}
	if store.Len() != 3 {
		t.Errorf("Expected 3 cached bodies (probe + 2 pages), got %d", store.Len())
	}
}

func TestCollect(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(45, "tok")
	mock.FailPage(2, 404)

	client := newTestClient(t, mock)
	pages, err := client.Collect(testContext(t), "search/cats{100,20}")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(pages))
	}
	if pages[1].Err == nil {
		t.Error("Expected page 2 to be substituted")
	}
	if len(pages[2].Records) != 5 {
		t.Errorf("Last page records = %d, want 5", len(pages[2].Records))
	}
}

func TestCollect_PropagatePolicy(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetSearchResults(45, "tok")
	mock.FailPage(2, 404)

	client := newTestClient(t, mock, func(c *Config) { c.ErrorPolicy = PolicyPropagate })
	pages, err := client.Collect(testContext(t), "search/cats{100,20}")

	if !errors.Is(err, fetch.ErrNonRetryable) {
		t.Fatalf("Expected ErrNonRetryable, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 2") {
		t.Errorf("Expected the failed page in the error, got %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("Expected the pages before the failure, got %d", len(pages))
	}
}

func TestFetchDetails(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetRecord("|oba-catalogus|1", `<aquabrowser><record><title>Cats</title></record></aquabrowser>`)

	client := newTestClient(t, mock)
	ctx := testContext(t)

	tree, err := client.FetchDetails(ctx, "|oba-catalogus|1")
	if err != nil {
		t.Fatalf("FetchDetails failed: %v", err)
	}
	if title, _ := tree.Text(aquabrowser.RootElement, "record", "title"); title != "Cats" {
		t.Errorf("title = %q", title)
	}

	requests := mock.Requests()
	last := requests[len(requests)-1]
	if !strings.Contains(last, "/api/v1/details?") || !strings.Contains(last, "frabl=%7Coba-catalogus%7C1") {
		t.Errorf("details URL = %s", last)
	}
	if mock.GetProbeCount() != 0 {
		t.Error("Lookups must not probe")
	}
}

func TestFetchAvailability_NotFound(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	client := newTestClient(t, mock)
	_, err := client.FetchAvailability(testContext(t), "missing")

	var apiErr *aquabrowser.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "404" {
		t.Errorf("Expected APIError 404, got %v", err)
	}
	if !strings.Contains(mock.Requests()[0], "/api/v1/availability?") {
		t.Errorf("availability URL = %s", mock.Requests()[0])
	}
}

func TestPage_Records(t *testing.T) {
	page, err := decodePage(0, "u", testutil.PageXML([]int{7}))
	if err != nil {
		t.Fatalf("decodePage failed: %v", err)
	}
	record := page.Records[0].(map[string]any)
	node, _ := xmltree.Lookup(record, "titles", "title")
	title, _ := xmltree.Text(node)
	if title != "Record 7" {
		t.Errorf("title = %q", title)
	}
}
