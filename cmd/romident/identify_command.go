package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"romident/internal/catalog"
	"romident/internal/errkind"
	"romident/internal/identification"
	"romident/internal/logging"
	"romident/internal/media"
)

type identifyOptions struct {
	name     string
	fuzzy    bool
	catalogs []string
	json     bool
	suggest  int
}

// identifyReport is the per-image output of the identify command.
type identifyReport struct {
	Path          string             `json:"path"`
	Matched       bool               `json:"matched"`
	Catalog       string             `json:"catalog,omitempty"`
	Record        string             `json:"record,omitempty"`
	Description   string             `json:"description,omitempty"`
	Phase         string             `json:"phase,omitempty"`
	Cached        bool               `json:"cached,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	CRC32         string             `json:"crc32,omitempty"`
	SHA1          string             `json:"sha1,omitempty"`
	Size          int64              `json:"size,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Error         string             `json:"error,omitempty"`
	Suggestions   []suggestionReport `json:"suggestions,omitempty"`
}

type suggestionReport struct {
	Catalog string  `json:"catalog"`
	Record  string  `json:"record"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

const minSuggestionScore = 0.3

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var opts identifyOptions

	cmd := &cobra.Command{
		Use:   "identify <path>...",
		Short: "Identify images against the configured catalogs",
		Long: `Identify ROM files, archives, disc images, folders and playlists by checksum,
falling back to name matching when enabled.

Examples:
  romident identify game.sfc
  romident identify "Game (Disc 1).cue" --name "Game (Europe)"
  romident identify roms/*.zip --catalog ~/dats/snes.dat --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if opts.name != "" && len(args) > 1 {
				return errors.New("--name can only be used with a single path")
			}
			fuzzy := cfg.Identification.Fuzzy
			if cmd.Flags().Changed("fuzzy") {
				fuzzy = opts.fuzzy
			}

			dbs, loadErr := ctx.loadCatalogs(cfg, logger, opts.catalogs)
			dbs, err = requireCatalogs(dbs, loadErr, logger)
			if err != nil {
				return err
			}

			store, err := ctx.openHashStore(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "checksum cache unavailable", "hash_cache_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "checksums are computed for every image"),
					logging.String(logging.FieldErrorHint, "check hash_cache.path or run 'romident cache clear --checksums'"),
				)
				store = nil
			}
			if store != nil {
				defer closeQuietly(cmd.ErrOrStderr(), "checksum cache", store)
			}

			engineOpts := identification.Options{
				PreferSHA1: cfg.Identification.PreferSHA1,
				Fuzzy:      fuzzy,
				Logger:     logger,
			}
			if cache := ctx.openMatchCache(cfg, logger); cache != nil {
				engineOpts.Cache = cache
			}
			engine := identification.NewEngine(engineOpts)
			mediaOpts := mediaOptions(cfg, store, logger)

			var (
				reports []identifyReport
				errs    []error
			)
			for _, path := range args {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				name := opts.name
				if name == "" && fuzzy {
					name = identification.NameFromPath(path)
				}
				report, err := identifyOne(cmd.Context(), engine, path, name, dbs, mediaOpts, opts.suggest)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				}
				reports = append(reports, report)
			}

			if opts.json {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				printReports(cmd.OutOrStdout(), reports)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Title used for name matching (default: derived from the file name)")
	cmd.Flags().BoolVar(&opts.fuzzy, "fuzzy", false, "Enable name matching when no checksum matches (default from config)")
	cmd.Flags().StringSliceVar(&opts.catalogs, "catalog", nil, "Catalog file or directory to use instead of the configured ones (repeatable)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output results as JSON")
	cmd.Flags().IntVar(&opts.suggest, "suggest", 3, "Number of similar titles to show for unidentified images")
	return cmd
}

func identifyOne(ctx context.Context, engine *identification.Engine, path, name string, dbs []*catalog.Database, opts media.Options, suggest int) (identifyReport, error) {
	report := identifyReport{Path: path}
	img, err := media.Open(path, opts)
	if err != nil {
		report.Error = err.Error()
		logOpenFailure(opts.Logger, path, err)
		return report, err
	}
	defer img.Close()

	result, err := engine.Identify(ctx, img, dbs, name)
	report.CorrelationID = result.CorrelationID
	report.SHA1 = result.Query.SHA1
	report.Size = result.Query.Size
	if result.Query.HasCRC {
		report.CRC32 = fmt.Sprintf("%08x", result.Query.CRC32)
	}
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	report.Matched = result.Matched
	report.Reason = result.Reason
	if result.Matched {
		report.Catalog = result.Catalog
		report.Record = result.Record.Name
		report.Description = result.Record.Title()
		report.Phase = string(result.Phase)
		report.Cached = result.Cached
		return report, nil
	}
	if name != "" && suggest > 0 {
		for _, s := range identification.Suggest(name, dbs, suggest, minSuggestionScore) {
			report.Suggestions = append(report.Suggestions, suggestionReport{
				Catalog: s.Catalog,
				Record:  s.Record.Name,
				Title:   s.Record.Title(),
				Score:   s.Score,
			})
		}
	}
	return report, nil
}

// logOpenFailure reports images that could not be opened. Read failures
// after opening are logged by the engine.
func logOpenFailure(logger *slog.Logger, path string, err error) {
	hint := "verify the image is complete and readable"
	switch errkind.Kind(err) {
	case "geometry":
		hint = "only MODE1 data tracks and 2048-byte ISO images are supported"
	case "format":
		hint = "convert the archive to zip, xz or gz"
	case "corrupt", "decode":
		hint = "re-create the image from a good source"
	}
	logging.ErrorWithContext(logger, "image could not be opened", "image_open_failed",
		logging.String(logging.FieldPath, path),
		logging.Error(err),
		logging.Bool("fatal", errkind.Fatal(err)),
		logging.String(logging.FieldErrorHint, hint),
	)
}

func printReports(out io.Writer, reports []identifyReport) {
	headers := []string{"Path", "Result", "Catalog", "Record", "Title", "Phase", "CRC32", "Size"}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		result := "no match"
		switch {
		case r.Error != "":
			result = "error"
		case r.Matched && r.Cached:
			result = "match (cached)"
		case r.Matched:
			result = "match"
		}
		size := ""
		if r.Size > 0 {
			size = humanize.IBytes(uint64(r.Size))
		}
		rows = append(rows, []string{r.Path, result, r.Catalog, r.Record, r.Description, r.Phase, r.CRC32, size})
	}
	writeRows(out, headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight})

	for _, r := range reports {
		switch {
		case r.Error != "":
			fmt.Fprintf(out, "\n%s: %s\n", r.Path, r.Error)
		case !r.Matched && len(r.Suggestions) > 0:
			fmt.Fprintf(out, "\nSimilar titles for %s:\n", r.Path)
			for _, s := range r.Suggestions {
				fmt.Fprintf(out, "  - %s [%s/%s] %.0f%%\n", s.Title, s.Catalog, s.Record, s.Score*100)
			}
		}
	}
	if len(reports) > 1 {
		matched := 0
		for _, r := range reports {
			if r.Matched {
				matched++
			}
		}
		fmt.Fprintf(out, "\n%s of %s images identified\n", humanize.Comma(int64(matched)), humanize.Comma(int64(len(reports))))
	}
}
