package cli

import (
	"context"

	"github.com/Sternrassler/catalog-client/pkg/catalog"
	"github.com/Sternrassler/catalog-client/pkg/xmltree"
	"github.com/spf13/cobra"
)

type lookupFunc func(*catalog.Client, context.Context, string) (xmltree.Tree, error)

func init() {
	RootCmd.AddCommand(
		lookupCommand("details", "Print the details document of a record", (*catalog.Client).FetchDetails),
		lookupCommand("availability", "Print the availability of a record", (*catalog.Client).FetchAvailability),
	)
}

func lookupCommand(name, short string, fn lookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			tree, err := fn(client, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tree)
		},
	}
}
