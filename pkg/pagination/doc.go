// Package pagination turns a parsed query and a probe result into page
// requests.
//
// Plan computes how many pages to request from the maximum result count,
// the page size and the count reported by the probe:
//
//	pageSize   = min(maxResults, requestedPageSize)
//	numBatches = ceil(min(maxResults, count) / pageSize)
//
// with numBatches = 0 when pageSize or count is zero. Page URLs are built
// lazily from the plan's base URL, the 1-based page number and the context
// token returned by the probe.
//
// BatchFetcher fetches all pages of a plan with a bounded worker pool:
//
//	plan := pagination.Plan(desc, endpointURL, pong)
//	results, err := pagination.NewBatchFetcher(fetcher, pagination.DefaultConfig()).FetchAll(ctx, plan)
//
// Failed pages keep their position in the result slice and carry their
// error, so partial results stay usable.
package pagination
