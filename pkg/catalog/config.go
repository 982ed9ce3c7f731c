package catalog

import (
	"fmt"
	"sync"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/fetch"
	"github.com/Sternrassler/catalog-client/pkg/pagination"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultAPIBaseURL is the public OBA Aquabrowser API.
	DefaultAPIBaseURL = "https://zoeken.oba.nl/api/v1/"

	// DefaultAPIKey is sent when no key is configured.
	DefaultAPIKey = "NO_KEY_PROVIDED"
)

// ErrorPolicy decides what happens to a page whose fetch or decode failed.
type ErrorPolicy string

const (
	// PolicySubstitute logs the failure and delivers a Page carrying the error
	// in place of the failed page. Sibling pages are unaffected.
	PolicySubstitute ErrorPolicy = "substitute"

	// PolicyPropagate logs the failure and surfaces the error to the caller.
	PolicyPropagate ErrorPolicy = "propagate"
)

// Config holds the client configuration.
type Config struct {
	// ProxyPrefix is prepended to every request URL, e.g. a CORS proxy.
	ProxyPrefix string `validate:"omitempty,url"`

	// APIBaseURL is the API root including the version path.
	APIBaseURL string `validate:"required,url,endswith=/"`

	// APIKey is sent as the authorization query parameter.
	APIKey string `validate:"required"`

	// Fetch configures retries and the HTTP timeout.
	Fetch fetch.Config

	// Store caches response bodies by URL. Nil disables caching.
	Store cache.Store `validate:"-"`

	// ErrorPolicy applies to failed pages in all delivery modes.
	ErrorPolicy ErrorPolicy `validate:"oneof=substitute propagate"`

	// Collect bounds the worker pool used by Collect.
	Collect pagination.Config
}

// DefaultConfig returns a configuration for the public API without a cache.
func DefaultConfig() Config {
	return Config{
		ProxyPrefix: "",
		APIBaseURL:  DefaultAPIBaseURL,
		APIKey:      DefaultAPIKey,
		Fetch:       fetch.DefaultConfig(),
		ErrorPolicy: PolicySubstitute,
		Collect:     pagination.DefaultConfig(),
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the configuration.
func (c Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog config: %w", err)
	}
	return nil
}
