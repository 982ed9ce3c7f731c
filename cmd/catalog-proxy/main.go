// Command catalog-proxy serves catalog queries over HTTP as JSON, backed by
// a shared Redis response cache.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/aquabrowser"
	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/catalog"
	"github.com/Sternrassler/catalog-client/pkg/fetch"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/metrics"
	"github.com/Sternrassler/catalog-client/pkg/query"
	"github.com/Sternrassler/catalog-client/pkg/xmltree"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// pingFunc reports whether a dependency is reachable.
type pingFunc func(ctx context.Context) error

func main() {
	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")

	logger := logging.Setup(logging.Config{
		Level:  logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

	cfg := catalog.DefaultConfig()
	cfg.APIBaseURL = getEnv("CATALOG_API_BASE", catalog.DefaultAPIBaseURL)
	cfg.APIKey = getEnv("CATALOG_API_KEY", catalog.DefaultAPIKey)
	cfg.ProxyPrefix = getEnv("CATALOG_PROXY", "")
	cfg.Store = cache.NewCompressed(cache.NewRedisStore(redisClient))

	client, err := catalog.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create catalog client")
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(client, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Str("api", cfg.APIBaseURL).Msg("Starting catalog proxy")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func newRouter(client *catalog.Client, ping pingFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(ping))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(2 * time.Minute))
		r.Get("/search", searchHandler(client))
		r.Get("/details/{id}", lookupHandler(client.FetchDetails))
		r.Get("/availability/{id}", lookupHandler(client.FetchAvailability))
	})
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func readyHandler(ping pingFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// searchResponse is the JSON body of /search.
type searchResponse struct {
	Count        int          `json:"count"`
	ContextToken string       `json:"context_token,omitempty"`
	Pages        []pageResult `json:"pages"`
}

type pageResult struct {
	Page    int    `json:"page"`
	Records []any  `json:"records"`
	Error   string `json:"error,omitempty"`
}

func searchHandler(client *catalog.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		q := params.Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "missing q parameter")
			return
		}

		// The placeholder value is replaced by WithQueryValue, so q may
		// contain characters the shorthand grammar reserves.
		opts := []catalog.Option{catalog.WithQueryValue(q)}
		for _, p := range []struct {
			name string
			opt  func(int) catalog.Option
		}{
			{"max", catalog.WithMaxResults},
			{"pagesize", catalog.WithPageSize},
		} {
			raw := params.Get(p.name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+p.name+" parameter")
				return
			}
			opts = append(opts, p.opt(n))
		}
		if token := params.Get("rctx"); token != "" {
			opts = append(opts, catalog.WithContextToken(token))
		}

		resp := searchResponse{Pages: []pageResult{}}
		it, err := client.CreateIterator(r.Context(), "search/*", opts...)
		switch {
		case errors.Is(err, catalog.ErrNoResults):
			writeJSON(w, http.StatusOK, resp)
			return
		case err != nil:
			writeError(w, statusFor(err), err.Error())
			return
		}

		resp.Count = it.TotalCount()
		resp.ContextToken = it.ContextToken()
		for page := range it.Pages(r.Context()) {
			result := pageResult{Page: page.Index + 1, Records: page.Records}
			if result.Records == nil {
				result.Records = []any{}
			}
			if page.Err != nil {
				result.Error = page.Err.Error()
			}
			resp.Pages = append(resp.Pages, result)
		}
		if err := it.Err(); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func lookupHandler(fn func(context.Context, string) (xmltree.Tree, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, tree)
	}
}

// statusFor maps a client error to the proxy response status.
func statusFor(err error) int {
	var apiErr *aquabrowser.APIError
	switch {
	case errors.Is(err, query.ErrInvalidSyntax), errors.Is(err, query.ErrUnsupportedEndpoint):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Code == "404":
		return http.StatusNotFound
	case errors.Is(err, fetch.ErrContextCancelled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
