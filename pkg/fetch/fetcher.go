// Package fetch provides the retrying, caching HTTP GET used for every
// catalog API call.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Config holds the fetcher configuration.
type Config struct {
	// Retry controls attempts and quadratic backoff.
	Retry RetryConfig

	// Timeout bounds a single HTTP attempt. Zero disables the timeout.
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Retry:     DefaultRetryConfig(),
		Timeout:   30 * time.Second,
		UserAgent: "catalog-client/0.1.0",
	}
}

// Fetcher performs cached GET requests with bounded retry.
type Fetcher struct {
	httpClient *http.Client
	store      cache.Store
	config     Config
	logger     zerolog.Logger

	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// New creates a Fetcher. A nil store disables caching.
func New(store cache.Store, cfg Config) *Fetcher {
	defaults := DefaultRetryConfig()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Retry.BackoffUnit < 0 {
		cfg.Retry.BackoffUnit = defaults.BackoffUnit
	}
	if cfg.Retry.MaxJitter < 0 {
		cfg.Retry.MaxJitter = 0
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		store:  store,
		config: cfg,
		logger: logging.NewLogger("catalog-fetch"),
		sleep:  sleepContext,
		jitter: randomJitter,
	}
}

// Fetch returns the body for url.
//
// A cached body is returned without touching the network. Otherwise the
// request is retried with quadratic backoff on retryable failures, and a
// successful body is cached before it is returned.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	endpoint := endpointLabel(rawURL)

	// Step 1: Check cache
	if f.store != nil {
		cached, err := f.store.Get(ctx, rawURL)
		switch {
		case err == nil:
			cacheLookupsTotal.WithLabelValues("hit").Inc()
			f.logger.Debug().Str("endpoint", endpoint).Str("url", Redact(rawURL)).Msg("Cache match")
			return string(cached), nil
		case errors.Is(err, cache.ErrCacheMiss):
			cacheLookupsTotal.WithLabelValues("miss").Inc()
		default:
			cacheLookupsTotal.WithLabelValues("error").Inc()
			f.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 2: Request with retry
	var body []byte
	err := f.retryWithBackoff(ctx, endpoint, func(attempt int) error {
		var attemptErr error
		body, attemptErr = f.do(ctx, rawURL, endpoint)
		return attemptErr
	})
	if err != nil {
		return "", err
	}

	// Step 3: Update cache on success
	if f.store != nil {
		if err := f.store.Set(ctx, rawURL, body); err != nil {
			f.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return string(body), nil
}

// do performs a single GET attempt.
func (f *Fetcher) do(ctx context.Context, rawURL, endpoint string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain, application/xml")
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		f.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, fmt.Errorf("%w: request %s: %w", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Reason:     reasonPhrase(resp),
		}
		f.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Bool("retryable", httpErr.Retryable()).
			Msg("Catalog request error")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, httpErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// reasonPhrase extracts "Service Unavailable" from "503 Service Unavailable".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

// endpointLabel returns the last path segment of a request URL ("search",
// "details", ...) for metric labels.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return path.Base(strings.TrimSuffix(u.Path, "/"))
}

var authorizationParam = regexp.MustCompile(`(authorization=)[^&]*`)

// Redact hides the API key in a request URL for logs and errors.
func Redact(rawURL string) string {
	return authorizationParam.ReplaceAllString(rawURL, "${1}REDACTED")
}
