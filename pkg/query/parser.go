package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

// Parse errors.
var (
	// ErrInvalidSyntax is returned when a shorthand does not match the grammar.
	ErrInvalidSyntax = errors.New("invalid query syntax")

	// ErrUnsupportedEndpoint is returned for endpoints other than search, details and availability.
	ErrUnsupportedEndpoint = errors.New("unsupported endpoint")
)

var shorthandPattern = regexp.MustCompile(
	`^(?P<endpoint>[A-Za-z0-9]+)/(?P<value>[^/{]+)(?:\{(?P<max>\d*)(?:,\s*(?P<pagesize>\d*))?\})?$`)

// Parse converts a shorthand string into a Descriptor.
func Parse(raw string) (Descriptor, error) {
	m := shorthandPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Descriptor{}, invalid(fmt.Sprintf("%q is not a valid endpoint and/or query", raw))
	}
	group := func(name string) string {
		return m[shorthandPattern.SubexpIndex(name)]
	}

	endpoint := Endpoint(group("endpoint"))
	param := endpoint.QueryParam()
	if param == "" {
		return Descriptor{}, unsupported(string(endpoint))
	}

	value := normalizeValue(group("value"))
	if value == "" {
		return Descriptor{}, invalid(fmt.Sprintf("%q has an empty query value", raw))
	}

	maxResults, err := intOrDefault(group("max"), DefaultMaxResults)
	if err != nil {
		return Descriptor{}, invalid(fmt.Sprintf("max results: %v", err))
	}
	pageSize, err := intOrDefault(group("pagesize"), DefaultPageSize)
	if err != nil {
		return Descriptor{}, invalid(fmt.Sprintf("page size: %v", err))
	}

	return Descriptor{
		Endpoint:   endpoint,
		QueryParam: param,
		RawValue:   value,
		MaxResults: maxResults,
		PageSize:   clampPageSize(pageSize),
	}, nil
}

// clampPageSize caps n at MaxPageSize, warning when the caller asked for more.
func clampPageSize(n int) int {
	if n > MaxPageSize {
		log.Warn().
			Int("requested", n).
			Int("max", MaxPageSize).
			Msg("API supports at most 20 results per request, clamping page size")
		return MaxPageSize
	}
	return n
}

func normalizeValue(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}

func intOrDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSyntax, msg)
}

func unsupported(endpoint string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, endpoint)
}
