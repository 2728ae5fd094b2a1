package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Fetch transactions once and print them grouped by account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return runList(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runList(ctx context.Context, a *app, out io.Writer) error {
	// Failures are logged by the store and leave the list empty.
	_ = a.store.Refresh(ctx)

	groups := a.store.GroupByAccount()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No transactions available.")
		return nil
	}

	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, g.Account)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Date\tName\tAmount\tCategory")
		for _, r := range g.Records {
			fmt.Fprintf(tw, "%s\t%s\t$%s\t%s\n", r.Date, r.Name, r.DisplayAmount(), r.CategoryPath(" / "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
