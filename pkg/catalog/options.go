package catalog

import "github.com/Sternrassler/catalog-client/pkg/query"

// Option overrides part of a request.
type Option func(*requestOptions)

type requestOptions struct {
	overrides    query.Overrides
	contextToken string
}

// WithEndpoint replaces the endpoint of the shorthand.
func WithEndpoint(e query.Endpoint) Option {
	return func(o *requestOptions) {
		o.overrides.Endpoint = e
	}
}

// WithQueryValue replaces the query value of the shorthand.
func WithQueryValue(v string) Option {
	return func(o *requestOptions) {
		o.overrides.QueryValue = v
	}
}

// WithMaxResults replaces the maximum number of results.
func WithMaxResults(n int) Option {
	return func(o *requestOptions) {
		o.overrides.MaxResults = &n
	}
}

// WithPageSize replaces the page size. Values above the API cap are clamped.
func WithPageSize(n int) Option {
	return func(o *requestOptions) {
		o.overrides.PageSize = &n
	}
}

// WithContextToken sends a context token from an earlier request with the
// probe, keeping result ordering consistent across requests.
func WithContextToken(token string) Option {
	return func(o *requestOptions) {
		o.contextToken = token
	}
}

func collectOptions(opts []Option) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
