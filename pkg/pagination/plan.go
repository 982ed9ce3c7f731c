package pagination

import (
	"net/url"
	"strconv"

	"github.com/Sternrassler/catalog-client/pkg/probe"
	"github.com/Sternrassler/catalog-client/pkg/query"
)

// BatchPlan describes the page requests of one logical request.
type BatchPlan struct {
	// NumBatches is the number of page requests to issue.
	NumBatches int

	// BaseURL carries endpoint, query, page size and refine=true.
	BaseURL string

	// TotalCount is the result count reported by the probe.
	TotalCount int

	// PageSize is the effective page size.
	PageSize int

	// ContextToken is echoed on every page request.
	ContextToken string
}

// Plan computes the batch plan for desc against endpointURL, sized by pong.
//
// endpointURL is the endpoint URL up to and including the authorization
// parameter; the descriptor's query fragment is appended to it.
func Plan(desc query.Descriptor, endpointURL string, pong probe.Pong) BatchPlan {
	pageSize := min(desc.MaxResults, desc.PageSize)

	return BatchPlan{
		NumBatches:   numBatches(desc.MaxResults, pageSize, pong.Count),
		BaseURL:      endpointURL + desc.Query() + "&pagesize=" + strconv.Itoa(pageSize) + "&refine=true",
		TotalCount:   pong.Count,
		PageSize:     pageSize,
		ContextToken: pong.ContextToken,
	}
}

// numBatches returns ceil(min(maxResults, count) / pageSize), or 0 when
// pageSize or count leave nothing to fetch.
func numBatches(maxResults, pageSize, count int) int {
	if pageSize <= 0 || count <= 0 {
		return 0
	}
	wanted := min(maxResults, count)
	if wanted <= 0 {
		return 0
	}
	n := wanted / pageSize
	if wanted%pageSize != 0 {
		n++
	}
	return n
}

// PageURL returns the URL of batch i (0-indexed).
func (p BatchPlan) PageURL(i int) string {
	return p.BaseURL + "&page=" + strconv.Itoa(i+1) + "&rctx=" + url.QueryEscape(p.ContextToken)
}

// PageURLs returns the URLs of all batches in page order.
func (p BatchPlan) PageURLs() []string {
	urls := make([]string, p.NumBatches)
	for i := range urls {
		urls[i] = p.PageURL(i)
	}
	return urls
}

// ProbeBase returns the URL the probe is sent to: endpoint plus query.
func ProbeBase(desc query.Descriptor, endpointURL string) string {
	return endpointURL + desc.Query()
}
