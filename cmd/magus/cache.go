package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/magus-names/magus/pkg/cache"
	"github.com/magus-names/magus/pkg/models"
)

// The in-process backend lives only as long as the command, so these commands
// are useful against redis.
func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the generation cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			printCacheStats(a.cache.Stats(ctx), a.cache.Ping(ctx))
			return nil
		},
	}

	var pattern string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			if pattern == "" {
				if err := a.cache.ClearAll(ctx); err != nil {
					return err
				}
				fmt.Println("All cache entries cleared.")
				return nil
			}
			n, err := a.cache.ClearByPattern(ctx, pattern)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %s entries matching %q.\n", humanize.Comma(int64(n)), pattern)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&pattern, "pattern", "", "only clear keys matching this glob, e.g. "+cache.CulturePattern("elvish"))

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <culture>",
		Short: "Drop cached results for one culture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.InvalidateCulture(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Invalidated %s cached results for %s.\n", humanize.Comma(int64(n)), args[0])
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd, invalidateCmd)
	return cmd
}

func printCacheStats(s models.CacheStats, reachable bool) {
	status := "reachable"
	if !reachable {
		status = "unreachable"
	}
	fmt.Fprintf(os.Stdout, "Backend:   %s (%s)\n", s.Backend, status)
	fmt.Fprintf(os.Stdout, "Entries:   %s / %s\n", humanize.Comma(s.Size), humanize.Comma(s.Capacity))
	fmt.Fprintf(os.Stdout, "Hits:      %s\n", humanize.Comma(s.Hits))
	fmt.Fprintf(os.Stdout, "Misses:    %s\n", humanize.Comma(s.Misses))
	fmt.Fprintf(os.Stdout, "Evictions: %s\n", humanize.Comma(s.Evictions))
	fmt.Fprintf(os.Stdout, "Hit rate:  %.1f%%\n", s.HitRate*100)
}
