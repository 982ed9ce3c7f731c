// Package cli implements the catalog CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/catalog"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	apiBase     string
	apiKey      string
	proxyPrefix string
	policyFlag  string

	cacheBackend string
	cachePath    string
	redisAddr    string
	compress     bool

	logLevel  string
	logPretty bool
	logFile   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query an Aquabrowser library catalog",
	Long: "Run shorthand queries such as \"search/harry potter{40,10}\" against an Aquabrowser " +
		"catalog API and print the results as JSON lines.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: logPretty,
			Output: cmd.ErrOrStderr(),
			File:   logging.FileConfig{Path: logFile},
		})
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&apiBase, "api-base", getEnv("CATALOG_API_BASE", catalog.DefaultAPIBaseURL), "API base URL ($CATALOG_API_BASE)")
	flags.StringVar(&apiKey, "api-key", getEnv("CATALOG_API_KEY", catalog.DefaultAPIKey), "API key ($CATALOG_API_KEY)")
	flags.StringVar(&proxyPrefix, "proxy", getEnv("CATALOG_PROXY", ""), "Prefix prepended to every request URL ($CATALOG_PROXY)")
	flags.StringVar(&policyFlag, "policy", getEnv("CATALOG_POLICY", string(catalog.PolicySubstitute)), "Failed page policy: substitute or propagate")

	flags.StringVar(&cacheBackend, "cache", getEnv("CATALOG_CACHE", "memory"), "Cache backend: none, memory, sqlite or redis")
	flags.StringVar(&cachePath, "cache-path", getEnv("CATALOG_CACHE_PATH", "catalog-cache.db"), "SQLite cache file")
	flags.StringVar(&redisAddr, "redis-addr", getEnv("REDIS_URL", "localhost:6379"), "Redis address for the redis cache")
	flags.BoolVar(&compress, "compress", getEnvBool("CATALOG_CACHE_COMPRESS", true), "zstd-compress cached bodies")

	flags.StringVar(&logLevel, "log-level", getEnv("LOG_LEVEL", "warn"), "Log level: debug, info, warn or error")
	flags.BoolVar(&logPretty, "log-pretty", false, "Human-readable log output")
	flags.StringVar(&logFile, "log-file", getEnv("CATALOG_LOG_FILE", ""), "Also write JSON logs to a rotating file")
}

// openStore returns the configured cache store and a function releasing it.
func openStore(ctx context.Context) (cache.Store, func(), error) {
	var (
		store   cache.Store
		closeFn = func() {}
	)

	switch cacheBackend {
	case "none", "":
		return nil, closeFn, nil
	case "memory":
		store = cache.NewMemoryStore()
	case "sqlite":
		s, err := cache.NewSQLiteStore(cachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		store, closeFn = s, func() { s.Close() }
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", redisAddr, err)
		}
		store, closeFn = cache.NewRedisStore(rdb), func() { rdb.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cacheBackend)
	}

	if compress {
		store = cache.NewCompressed(store)
	}
	return store, closeFn, nil
}

// newClient builds a catalog client from the persistent flags.
func newClient(ctx context.Context) (*catalog.Client, func(), error) {
	store, closeFn, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := catalog.DefaultConfig()
	cfg.APIBaseURL = apiBase
	cfg.APIKey = apiKey
	cfg.ProxyPrefix = proxyPrefix
	cfg.ErrorPolicy = catalog.ErrorPolicy(policyFlag)
	cfg.Store = store

	c, err := catalog.New(cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return c, closeFn, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
