// Package catalog is the client for the Aquabrowser library-catalog API.
//
// Every multi-page request runs the same pipeline: the shorthand is parsed,
// a probe learns the result count and context token, the pages are planned,
// and then the pages are fetched and decoded. The delivery mode decides how
// pages reach the caller:
//
//   - CreateStream returns a batch of concurrently fetched pages
//   - CreateIterator returns a cursor fetching one page per step
//   - CreatePromise returns one future per page, all dispatched at once
//
// Example:
//
//	client, err := catalog.New(catalog.DefaultConfig())
//	it, err := client.CreateIterator(ctx, "search/harry potter{40,10}")
//	for it.Next(ctx) {
//		page := it.Page()
//		...
//	}
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/catalog-client/pkg/aquabrowser"
	"github.com/Sternrassler/catalog-client/pkg/batch"
	"github.com/Sternrassler/catalog-client/pkg/fetch"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/pagination"
	"github.com/Sternrassler/catalog-client/pkg/probe"
	"github.com/Sternrassler/catalog-client/pkg/query"
	"github.com/Sternrassler/catalog-client/pkg/xmltree"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog requests.
var (
	requestsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_client_requests_total",
		Help: "Paginated catalog requests by delivery mode and outcome",
	}, []string{"mode", "outcome"}) // outcome: "planned", "no_results", "invalid"

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pages_total",
		Help: "Delivered pages by result",
	}, []string{"result"}) // "ok", "substituted", "failed"
)

// Client is the catalog API client. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	config  Config
	fetcher *fetch.Fetcher
	prober  *probe.Prober
	logger  zerolog.Logger
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.ErrorPolicy == "" {
		cfg.ErrorPolicy = PolicySubstitute
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fetcher := fetch.New(cfg.Store, cfg.Fetch)

	return &Client{
		config:  cfg,
		fetcher: fetcher,
		prober:  probe.New(fetcher),
		logger:  logging.NewLogger("catalog-client"),
	}, nil
}

// Fetcher returns the underlying fetcher.
func (c *Client) Fetcher() *fetch.Fetcher {
	return c.fetcher
}

// request is the planned state of one logical multi-page request.
type request struct {
	id     string
	desc   query.Descriptor
	plan   pagination.BatchPlan
	logger zerolog.Logger
}

// ContextToken returns the token received from the probe.
func (r *request) ContextToken() string {
	return r.plan.ContextToken
}

// endpointURL returns the URL of endpoint up to the authorization parameter.
func (c *Client) endpointURL(e query.Endpoint) string {
	return c.config.ProxyPrefix + c.config.APIBaseURL + string(e) +
		"?authorization=" + url.QueryEscape(c.config.APIKey)
}

// prepare runs parse, probe and plan. It fails with ErrNoResults before any
// page is fetched when the probe reports zero results.
func (c *Client) prepare(ctx context.Context, mode, shorthand string, opts []Option) (*request, error) {
	o := collectOptions(opts)

	desc, err := query.Parse(shorthand)
	if err == nil {
		desc, err = desc.Apply(o.overrides)
	}
	if err != nil {
		requestsStartedTotal.WithLabelValues(mode, "invalid").Inc()
		return nil, err
	}

	id := uuid.NewString()
	logger := c.logger.With().
		Str("request_id", id).
		Str("mode", mode).
		Str("endpoint", string(desc.Endpoint)).
		Logger()

	endpointURL := c.endpointURL(desc.Endpoint)
	pong := c.prober.Probe(ctx, pagination.ProbeBase(desc, endpointURL), o.contextToken)
	if pong.Count == 0 {
		requestsStartedTotal.WithLabelValues(mode, "no_results").Inc()
		logger.Info().Str("query", desc.RawValue).Msg("No results")
		return nil, fmt.Errorf("%w for %q", ErrNoResults, shorthand)
	}

	plan := pagination.Plan(desc, endpointURL, pong)
	requestsStartedTotal.WithLabelValues(mode, "planned").Inc()
	logger.Debug().
		Int("count", plan.TotalCount).
		Int("batches", plan.NumBatches).
		Int("page_size", plan.PageSize).
		Msg("Request planned")

	return &request{id: id, desc: desc, plan: plan, logger: logger}, nil
}

// fetchPage fetches and decodes page i of r.
func (c *Client) fetchPage(ctx context.Context, r *request, i int) (Page, error) {
	pageURL := r.plan.PageURL(i)
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("page %d: %w", i+1, err)
	}
	return decodePage(i, pageURL, body)
}

// handlePageError logs a failed page and applies the error policy.
func (c *Client) handlePageError(r *request, err error, i int) (Page, error) {
	r.logger.Error().Err(err).Int("page", i+1).Msg("Page request failed")

	if c.config.ErrorPolicy == PolicyPropagate || isCancellation(err) {
		pagesTotal.WithLabelValues("failed").Inc()
		return Page{}, err
	}
	pagesTotal.WithLabelValues("substituted").Inc()
	return Page{Index: i, URL: r.plan.PageURL(i), Err: err}, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, fetch.ErrContextCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// dispatch starts every page fetch of r concurrently and returns the
// decoded pages with the error policy attached.
func (c *Client) dispatch(ctx context.Context, r *request) *batch.Batch[Page] {
	bodies := batch.New[string]()
	for i := 0; i < r.plan.NumBatches; i++ {
		pageURL := r.plan.PageURL(i)
		bodies.Append(batch.Go(func() (string, error) {
			body, err := c.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				return "", fmt.Errorf("page %d: %w", i+1, err)
			}
			return body, nil
		}))
	}

	pages := batch.Pipe(bodies, func(body string, i int, _ []*batch.Future[string]) (Page, error) {
		page, err := decodePage(i, r.plan.PageURL(i), body)
		if err == nil {
			pagesTotal.WithLabelValues("ok").Inc()
		}
		return page, err
	})

	return pages.Catch(func(err error, i int, _ []*batch.Future[Page]) (Page, error) {
		return c.handlePageError(r, err, i)
	})
}

// CreateStream plans the request and dispatches all page fetches at once.
// The returned batch may be piped further or resolved with All.
func (c *Client) CreateStream(ctx context.Context, shorthand string, opts ...Option) (*batch.Batch[Page], error) {
	r, err := c.prepare(ctx, "stream", shorthand, opts)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, r), nil
}

// CreatePromise plans the request and returns one future per page. All
// fetches are dispatched immediately.
func (c *Client) CreatePromise(ctx context.Context, shorthand string, opts ...Option) ([]*batch.Future[Page], error) {
	r, err := c.prepare(ctx, "promise", shorthand, opts)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, r).Futures(), nil
}

// CreateIterator plans the request and returns a cursor that fetches one
// page per Next call. No page is fetched before the first Next.
func (c *Client) CreateIterator(ctx context.Context, shorthand string, opts ...Option) (*Iterator, error) {
	r, err := c.prepare(ctx, "iterator", shorthand, opts)
	if err != nil {
		return nil, err
	}
	return &Iterator{client: c, req: r}, nil
}

// Collect plans the request and fetches all pages with the bounded worker
// pool from Config.Collect. Pages are returned in order; failed pages follow
// the error policy.
func (c *Client) Collect(ctx context.Context, shorthand string, opts ...Option) ([]Page, error) {
	r, err := c.prepare(ctx, "collect", shorthand, opts)
	if err != nil {
		return nil, err
	}

	// The joined error only summarizes the per-page errors handled below.
	results, _ := pagination.NewBatchFetcher(c.fetcher, c.config.Collect).FetchAll(ctx, r.plan)

	pages := make([]Page, 0, len(results))
	for _, res := range results {
		var page Page
		err := res.Err
		if err == nil {
			page, err = decodePage(res.Index, res.URL, res.Body)
		} else {
			err = fmt.Errorf("page %d: %w", res.Index+1, err)
		}
		if err != nil {
			page, err = c.handlePageError(r, err, res.Index)
			if err != nil {
				return pages, err
			}
		} else {
			pagesTotal.WithLabelValues("ok").Inc()
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// FetchDetails returns the cleaned details document of a record.
func (c *Client) FetchDetails(ctx context.Context, id string) (xmltree.Tree, error) {
	return c.lookup(ctx, query.EndpointDetails, id)
}

// FetchAvailability returns the cleaned availability document of a record.
func (c *Client) FetchAvailability(ctx context.Context, id string) (xmltree.Tree, error) {
	return c.lookup(ctx, query.EndpointAvailability, id)
}

// lookup fetches a single record by frabl id, bypassing probe and paging.
func (c *Client) lookup(ctx context.Context, endpoint query.Endpoint, id string) (xmltree.Tree, error) {
	logger := c.logger.With().
		Str("request_id", uuid.NewString()).
		Str("endpoint", string(endpoint)).
		Logger()

	body, err := c.fetcher.Fetch(ctx, c.endpointURL(endpoint)+"&frabl="+url.QueryEscape(id))
	if err == nil {
		var tree xmltree.Tree
		if tree, err = aquabrowser.Decode(body); err == nil {
			return aquabrowser.Document(tree), nil
		}
	}

	logger.Error().Err(err).Str("id", id).Msg("Lookup failed")
	return nil, fmt.Errorf("%s %q: %w", endpoint, id, err)
}
