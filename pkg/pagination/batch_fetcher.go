package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// Timeout per page fetch, including retries. Zero means no limit.
	Timeout time.Duration
}

// DefaultConfig returns a conservative configuration for the public API
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        0,
	}
}

// PageFetcher fetches a single page body by URL
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// PageResult is the outcome of fetching one planned page
type PageResult struct {
	Index int
	URL   string
	Body  string
	Err   error
}

// BatchFetcher fetches the pages of a plan with a bounded worker pool
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every page of plan. Results are returned in page order;
// failed pages carry their error and the returned error summarizes them.
func (bf *BatchFetcher) FetchAll(ctx context.Context, plan BatchPlan) ([]PageResult, error) {
	start := time.Now()
	total := plan.NumBatches
	results := make([]PageResult, total)
	if total == 0 {
		return results, nil
	}

	log.Info().
		Int("total_pages", total).
		Int("workers", min(bf.config.MaxConcurrency, total)).
		Msg("Starting parallel page fetch")

	pageQueue := make(chan int, total)
	for i := 0; i < total; i++ {
		pageQueue <- i
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for w := 0; w < min(bf.config.MaxConcurrency, total); w++ {
		wg.Add(1)
		go bf.worker(ctx, plan, pageQueue, results, &wg, w)
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", r.Index+1, r.Err))
		}
	}

	log.Info().
		Int("pages", total-len(errs)).
		Int("total", total).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	if len(errs) > 0 {
		return results, fmt.Errorf("%d/%d pages failed: %w", len(errs), total, errors.Join(errs...))
	}
	return results, nil
}

// worker processes pages from the queue. Each worker owns distinct indexes
// of results.
func (bf *BatchFetcher) worker(ctx context.Context, plan BatchPlan, pageQueue <-chan int, results []PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for i := range pageQueue {
		url := plan.PageURL(i)
		results[i] = PageResult{Index: i, URL: url}

		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		pageCtx, cancel := ctx, context.CancelFunc(func() {})
		if bf.config.Timeout > 0 {
			pageCtx, cancel = context.WithTimeout(ctx, bf.config.Timeout)
		}
		body, err := bf.fetcher.Fetch(pageCtx, url)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", i+1).
				Msg("Page fetch failed")
			results[i].Err = err
			continue
		}

		results[i].Body = body
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
