package catalog

import (
	"context"
	"iter"
)

// Iterator walks the planned pages of a request one at a time, in
// ascending order. Next fetches and decodes exactly one page, so no two
// page fetches are ever in flight. An Iterator is single-pass and not safe
// for concurrent use.
type Iterator struct {
	client *Client
	req    *request
	next   int
	page   Page
	err    error
}

// Next fetches the next page. It returns false when all pages have been
// delivered, when ctx is done, or when a page failed under PolicyPropagate.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.err != nil || it.next >= it.req.plan.NumBatches {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}

	i := it.next
	it.next++

	page, err := it.client.fetchPage(ctx, it.req, i)
	if err != nil {
		page, err = it.client.handlePageError(it.req, err, i)
		if err != nil {
			it.err = err
			it.page = Page{}
			return false
		}
	} else {
		pagesTotal.WithLabelValues("ok").Inc()
	}

	it.page = page
	return true
}

// Page returns the page fetched by the last successful Next.
func (it *Iterator) Page() Page {
	return it.page
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Len returns the total number of planned pages.
func (it *Iterator) Len() int {
	return it.req.plan.NumBatches
}

// Remaining returns the number of pages not yet fetched.
func (it *Iterator) Remaining() int {
	return it.req.plan.NumBatches - it.next
}

// TotalCount returns the result count reported by the probe.
func (it *Iterator) TotalCount() int {
	return it.req.plan.TotalCount
}

// ContextToken returns the context token of the request, for use with
// WithContextToken on a follow-up request.
func (it *Iterator) ContextToken() string {
	return it.req.ContextToken()
}

// Pages returns the remaining pages as a sequence. Check Err after the
// loop.
func (it *Iterator) Pages(ctx context.Context) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		for it.Next(ctx) {
			if !yield(it.Page()) {
				return
			}
		}
	}
}
