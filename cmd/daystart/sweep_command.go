package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"daystart/internal/cleanup"
	"daystart/internal/config"
	"daystart/internal/queue"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the storage retention sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger := quietLogger()
				sweeper := cleanup.New(store, contentManager(cfg, store, logger), cfg, logger)

				report, err := sweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if report.Skipped {
					fmt.Fprintln(out, "Sweep skipped: last run is within the minimum interval")
					return nil
				}
				fmt.Fprintf(out, "Artifacts removed: %d of %d scanned\n", report.FilesDeleted, report.FilesScanned)
				fmt.Fprintf(out, "Cache rows removed: %d\n", report.CacheRowsDeleted)
				fmt.Fprintf(out, "Jobs removed: %d\n", report.JobsDeleted)
				if report.Errors > 0 {
					fmt.Fprintf(out, "Errors: %d (see daemon log)\n", report.Errors)
				}
				return nil
			})
		},
	}
}
