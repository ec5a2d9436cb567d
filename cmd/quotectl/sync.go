package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

func (c *cli) syncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace local quotes with the posts service snapshot",
		Long: `Fetch the posts service and replace the local collection with it.
The remote snapshot wins. With --watch, keep syncing on the configured
interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if watch {
				c.comps.Sync.Start(ctx)
				<-ctx.Done()

				fmt.Fprintf(out, "stopped; last state %s\n", c.comps.Sync.Status().State)

				return nil
			}

			result, err := c.comps.Sync.SyncNow(ctx)
			if domain.IsTransientNetwork(err) {
				return fmt.Errorf("sync failed, local quotes unchanged: %w", err)
			}

			if err != nil {
				return err
			}

			fmt.Fprintf(out, "synced %d quote(s)\n%s\n", result.Count, result.Display.Text)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep syncing every "+app.DefaultSyncInterval.String()+" (or sync.interval)")

	return cmd
}
