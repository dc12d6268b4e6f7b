package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"romident/internal/config"
	"romident/internal/hashstore"
	"romident/internal/matchcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the match and checksum caches",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

// matchCache opens the match cache for maintenance. The returned warning is
// printed when the cache is disabled.
func matchCache(ctx *commandContext) (*matchcache.Cache, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	if !cfg.MatchCache.Enabled {
		return nil, "Match cache is disabled (set match_cache.enabled = true in config.toml)", nil
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, "", err
	}
	return ctx.openMatchCache(cfg, logger), "", nil
}

func checksumStore(ctx *commandContext) (*hashstore.Store, *config.Config, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, "", err
	}
	if !cfg.HashCache.Enabled {
		return nil, cfg, "Checksum cache is disabled (set hash_cache.enabled = true in config.toml)", nil
	}
	store, err := ctx.openHashStore(cfg)
	if err != nil {
		return nil, cfg, "", err
	}
	return store, cfg, "", nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache locations and entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			matches := "disabled"
			if cache, _, err := matchCache(ctx); err != nil {
				return err
			} else if cache != nil {
				matches = humanize.Comma(int64(cache.Count()))
			}
			checksums := "disabled"
			store, _, _, err := checksumStore(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				defer closeQuietly(cmd.ErrOrStderr(), "checksum cache", store)
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				checksums = humanize.Comma(int64(n))
			}

			writeRows(out, []string{"Cache", "Enabled", "Entries", "Path"}, [][]string{
				{"matches", yesNo(cfg.MatchCache.Enabled), matches, cfg.MatchCache.Path},
				{"checksums", yesNo(cfg.HashCache.Enabled), checksums, cfg.HashCache.Path},
			}, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
			return nil
		},
	}
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached identifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, warn, err := matchCache(ctx)
			if warn != "" {
				fmt.Fprintln(cmd.OutOrStdout(), warn)
			}
			if err != nil || cache == nil {
				return err
			}
			entries := cache.List()
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Match cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.CRC32, e.Catalog, e.Record, e.Description, humanize.IBytes(uint64(max(e.Size, 0))), humanize.Time(e.CachedAt)})
			}
			writeRows(out, []string{"CRC32", "Catalog", "Record", "Title", "Size", "Cached"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output entries as JSON")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <crc32>...",
		Short: "Remove cached identifications by CRC32",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, warn, err := matchCache(ctx)
			if warn != "" {
				fmt.Fprintln(cmd.OutOrStdout(), warn)
			}
			if err != nil || cache == nil {
				return err
			}
			var errs []error
			for _, arg := range args {
				if err := cache.Remove(arg); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", arg)
			}
			return errors.Join(errs...)
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var checksums bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached identifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if checksums {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := hashstore.Open(cfg.HashCache.Path)
				if err != nil {
					return fmt.Errorf("open checksum cache: %w", err)
				}
				defer closeQuietly(cmd.ErrOrStderr(), "checksum cache", store)
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %s checksum entries\n", humanize.Comma(n))
				return nil
			}

			cache, warn, err := matchCache(ctx)
			if warn != "" {
				fmt.Fprintln(out, warn)
			}
			if err != nil || cache == nil {
				return err
			}
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %s cached identifications\n", humanize.Comma(int64(count)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&checksums, "checksums", false, "Clear the checksum cache instead of the match cache")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop checksum entries for files that changed or no longer exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, warn, err := checksumStore(ctx)
			if warn != "" {
				fmt.Fprintln(cmd.OutOrStdout(), warn)
			}
			if err != nil || store == nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "checksum cache", store)
			n, err := store.Prune(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No checksum entries pruned")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s checksum entries\n", humanize.Comma(int64(n)))
			return nil
		},
	}
}
