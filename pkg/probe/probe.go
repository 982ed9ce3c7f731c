// Package probe implements the single-result "ping" request that sizes a
// paginated fetch.
//
// A probe asks the API for one result with refinement disabled and reads
// back the total result count and the context token (rctx) that later page
// requests must echo. Probing is advisory: every failure is logged and
// turned into the zero Pong, so a broken probe reads as "no results".
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/catalog-client/pkg/aquabrowser"
	"github.com/Sternrassler/catalog-client/pkg/fetch"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var probeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_probe_failures_total",
	Help: "Suppressed probe failures by reason",
}, []string{"reason"}) // "transport", "parse", "api", "malformed"

// Pong is the result of a probe.
type Pong struct {
	Count        int
	ContextToken string
}

// TransportError is a probe request that did not produce a usable response.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cannot ping %s (status %d): %v", fetch.Redact(e.URL), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("cannot ping %s: %v", fetch.Redact(e.URL), e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fetcher is the subset of fetch.Fetcher the prober needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Prober issues probe requests.
type Prober struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// New creates a Prober that fetches through f.
func New(f Fetcher) *Prober {
	return &Prober{
		fetcher: f,
		logger:  logging.NewLogger("catalog-probe"),
	}
}

// URL builds the probe URL for baseURL, appending the context token when
// one is known.
func URL(baseURL, contextToken string) string {
	u := baseURL + "&pagesize=1&refine=false"
	if contextToken != "" {
		u += "&rctx=" + url.QueryEscape(contextToken)
	}
	return u
}

// Probe returns the result count and context token for baseURL. It never
// fails: any error is logged and the zero Pong is returned.
func (p *Prober) Probe(ctx context.Context, baseURL, contextToken string) Pong {
	pong, err := p.probe(ctx, URL(baseURL, contextToken))
	if err != nil {
		probeFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		p.logger.Warn().Err(err).Msg("Suppressed probe failure")
		return Pong{}
	}

	p.logger.Debug().
		Int("count", pong.Count).
		Bool("has_context", pong.ContextToken != "").
		Msg("Probe completed")
	return pong
}

func (p *Prober) probe(ctx context.Context, probeURL string) (Pong, error) {
	body, err := p.fetcher.Fetch(ctx, probeURL)
	if err != nil {
		transportErr := &TransportError{URL: probeURL, Err: err}
		var httpErr *fetch.HTTPError
		if errors.As(err, &httpErr) {
			transportErr.StatusCode = httpErr.StatusCode
		}
		return Pong{}, transportErr
	}

	tree, err := aquabrowser.Decode(body)
	if err != nil {
		return Pong{}, err
	}

	meta, err := aquabrowser.ParseMeta(tree)
	if err != nil {
		return Pong{}, err
	}
	return Pong{Count: meta.Count, ContextToken: meta.ContextToken}, nil
}

func failureReason(err error) string {
	var transportErr *TransportError
	var apiErr *aquabrowser.APIError
	switch {
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &apiErr):
		return "api"
	case errors.Is(err, aquabrowser.ErrMalformed):
		return "malformed"
	default:
		return "parse"
	}
}
