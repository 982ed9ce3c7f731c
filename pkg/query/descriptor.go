// Package query parses catalog shorthand strings into request descriptors.
//
// A shorthand has the form
//
//	<endpoint>/<value>[{<max>[,<pageSize>]}]
//
// for example "search/harry potter{40,10}" or "details/|oba-catalogus|12345".
package query

import (
	"net/url"
	"strings"
)

// Endpoint names a catalog API endpoint.
type Endpoint string

const (
	// EndpointSearch is the full-text search endpoint (query param "q").
	EndpointSearch Endpoint = "search"

	// EndpointDetails returns a single record (query param "id").
	EndpointDetails Endpoint = "details"

	// EndpointAvailability returns holdings for a single record (query param "id").
	EndpointAvailability Endpoint = "availability"
)

const (
	// DefaultMaxResults is used when the shorthand carries no limit.
	DefaultMaxResults = 20

	// DefaultPageSize is used when the shorthand carries no page size.
	DefaultPageSize = 20

	// MaxPageSize is the hard per-request cap enforced by the API.
	MaxPageSize = 20
)

// QueryParam returns the query parameter name used by the endpoint,
// or "" when the endpoint is not supported.
func (e Endpoint) QueryParam() string {
	switch e {
	case EndpointSearch:
		return "q"
	case EndpointDetails, EndpointAvailability:
		return "id"
	default:
		return ""
	}
}

// Descriptor is the structured form of a shorthand request.
type Descriptor struct {
	Endpoint   Endpoint
	QueryParam string
	RawValue   string
	MaxResults int
	PageSize   int
}

// Query renders the percent-encoded "&<param>=<value>" fragment.
func (d Descriptor) Query() string {
	return "&" + d.QueryParam + "=" + escape(d.RawValue)
}

// escape percent-encodes a query value, writing spaces as %20 rather than '+'.
func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Overrides replace parts of a parsed descriptor. Zero values leave the
// parsed field untouched.
type Overrides struct {
	Endpoint   Endpoint
	QueryValue string
	MaxResults *int
	PageSize   *int
}

// Apply returns a copy of d with the overrides applied. The result is
// validated the same way a freshly parsed descriptor is.
func (d Descriptor) Apply(o Overrides) (Descriptor, error) {
	if o.Endpoint != "" {
		param := o.Endpoint.QueryParam()
		if param == "" {
			return Descriptor{}, unsupported(string(o.Endpoint))
		}
		d.Endpoint = o.Endpoint
		d.QueryParam = param
	}
	if v := normalizeValue(o.QueryValue); v != "" {
		d.RawValue = v
	}
	if o.MaxResults != nil {
		if *o.MaxResults < 0 {
			return Descriptor{}, invalid("max results must be >= 0")
		}
		d.MaxResults = *o.MaxResults
	}
	if o.PageSize != nil {
		if *o.PageSize < 0 {
			return Descriptor{}, invalid("page size must be >= 0")
		}
		d.PageSize = clampPageSize(*o.PageSize)
	}
	return d, nil
}
