package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/queue"
	"daystart/internal/sources"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [contentType...]",
		Short: "Refresh cached content from upstream sources",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger := quietLogger()
				manager := contentManager(cfg, store, logger)
				sources.RegisterAll(manager, cfg.Sources, content.NewBudget(store.DB()), logger)

				results := manager.RefreshAll(cmd.Context(), args...)

				types := make([]string, 0, len(results))
				for contentType := range results {
					types = append(types, contentType)
				}
				sort.Strings(types)

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				failures := 0
				for _, contentType := range types {
					if err := results[contentType]; err != nil {
						failures++
						fmt.Fprintln(out, renderStatusLine(contentType, statusError, err.Error(), colorize))
						continue
					}
					fmt.Fprintln(out, renderStatusLine(contentType, statusOK, "refreshed", colorize))
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d sources failed to refresh", failures, len(types))
				}
				return nil
			})
		},
	}
}
