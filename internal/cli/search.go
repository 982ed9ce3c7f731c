package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/catalog-client/pkg/catalog"
	"github.com/Sternrassler/catalog-client/pkg/query"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [shorthand]",
		Short: "Run a paginated catalog request",
		Long: "Run a shorthand request and print one JSON line per page. A bare query is " +
			"treated as \"search/<query>\".",
		Example: `  catalog search "search/harry potter{40,10}"
  catalog search --mode iterator tolkien`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringP("mode", "m", "stream", "Delivery mode: stream, iterator, promise or collect")
	cmd.Flags().String("rctx", "", "Context token from an earlier request")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	token, _ := cmd.Flags().GetString("rctx")

	shorthand, opts := parseArgs(strings.Join(args, " "))

	ctx := cmd.Context()
	client, closeFn, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if token != "" {
		opts = append(opts, catalog.WithContextToken(token))
	}

	err = deliver(ctx, cmd.OutOrStdout(), client, mode, shorthand, opts)
	if errors.Is(err, catalog.ErrNoResults) {
		return nil
	}
	return err
}

// parseArgs returns text unchanged when it starts with a supported endpoint.
// Anything else is a bare search query, passed as the query value so it may
// contain characters the shorthand grammar reserves, such as "AC/DC".
func parseArgs(text string) (string, []catalog.Option) {
	endpoint, _, found := strings.Cut(text, "/")
	if (found && query.Endpoint(endpoint).QueryParam() != "") || strings.TrimSpace(text) == "" {
		return text, nil
	}
	return "search/*", []catalog.Option{catalog.WithQueryValue(text)}
}

// deliver runs shorthand in the given mode and prints every page in order.
func deliver(ctx context.Context, w io.Writer, client *catalog.Client, mode, shorthand string, opts []catalog.Option) error {
	switch mode {
	case "stream":
		b, err := client.CreateStream(ctx, shorthand, opts...)
		if err != nil {
			return err
		}
		pages, err := b.All(ctx)
		if err != nil {
			return err
		}
		return writePages(w, pages)

	case "iterator":
		it, err := client.CreateIterator(ctx, shorthand, opts...)
		if err != nil {
			return err
		}
		for page := range it.Pages(ctx) {
			if err := writePage(w, page); err != nil {
				return err
			}
		}
		return it.Err()

	case "promise":
		futures, err := client.CreatePromise(ctx, shorthand, opts...)
		if err != nil {
			return err
		}
		for _, f := range futures {
			page, err := f.Await(ctx)
			if err != nil {
				return err
			}
			if err := writePage(w, page); err != nil {
				return err
			}
		}
		return nil

	case "collect":
		pages, err := client.Collect(ctx, shorthand, opts...)
		if err != nil {
			return err
		}
		return writePages(w, pages)

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func writePages(w io.Writer, pages []catalog.Page) error {
	for _, page := range pages {
		if err := writePage(w, page); err != nil {
			return err
		}
	}
	return nil
}
