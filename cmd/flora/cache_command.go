package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the recognition cache",
		Long: "Inspect or clear the recognition cache.\n\n" +
			"Answers are keyed by image content plus plantnet project, organ, language and max_results.\n" +
			"A cached image is never sent to PlantNet, so an invalid API key only shows up for\n" +
			"uncached images. Use `flora identify --no-cache` to check the key against the service.",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show recognition cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}
			rows := [][]string{
				{"Path", stats.Path},
				{"Enabled", yesNo(cfg.Cache.Enabled)},
				{"Entries", strconv.Itoa(stats.Entries)},
				{"Oldest", formatTime(stats.Oldest)},
				{"Newest", formatTime(stats.Newest)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValueTable(rows))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached recognition answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int64{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached answer(s)\n", removed)
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
