package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"romident/internal/catalog"
	"romident/internal/matchcache"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var sources []string

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect catalog databases",
	}
	catalogCmd.PersistentFlags().StringSliceVar(&sources, "catalog", nil, "Catalog file or directory to use instead of the configured ones (repeatable)")

	catalogCmd.AddCommand(newCatalogStatsCommand(ctx, &sources))
	catalogCmd.AddCommand(newCatalogLookupCommand(ctx, &sources))
	return catalogCmd
}

func (c *commandContext) catalogsFor(sources []string) ([]*catalog.Database, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	dbs, loadErr := c.loadCatalogs(cfg, logger, sources)
	return requireCatalogs(dbs, loadErr, logger)
}

func newCatalogStatsCommand(ctx *commandContext, sources *[]string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record and segment counts per catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbs, err := ctx.catalogsFor(*sources)
			if err != nil {
				return err
			}
			type catalogStats struct {
				Name       string   `json:"name"`
				Convention string   `json:"convention"`
				Sources    []string `json:"sources"`
				catalog.Stats
			}
			all := make([]catalogStats, 0, len(dbs))
			for _, db := range dbs {
				all = append(all, catalogStats{
					Name:       db.Name,
					Convention: string(db.Convention),
					Sources:    db.Sources,
					Stats:      db.Stats(),
				})
			}
			if asJSON {
				return writeJSON(cmd, all)
			}

			headers := []string{"Catalog", "Keyed by", "Records", "Parts", "Segments", "Disks", "Unusable", "Files"}
			rows := make([][]string, 0, len(all))
			for _, s := range all {
				rows = append(rows, []string{
					s.Name,
					s.Convention,
					humanize.Comma(int64(s.Records)),
					humanize.Comma(int64(s.Parts)),
					humanize.Comma(int64(s.Segments)),
					humanize.Comma(int64(s.Disks)),
					humanize.Comma(int64(s.Unusable)),
					strconv.Itoa(len(s.Sources)),
				})
			}
			writeRows(cmd.OutOrStdout(), headers, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output statistics as JSON")
	return cmd
}

func newCatalogLookupCommand(ctx *commandContext, sources *[]string) *cobra.Command {
	var crc, sha1, serial, name string

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find a record by CRC32, SHA1, serial or name",
		Long: `Look up a record directly in the loaded catalogs without reading an image.

Examples:
  romident catalog lookup --crc deadbeef
  romident catalog lookup --serial SLUS-00067
  romident catalog lookup --name sonic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, v := range []string{crc, sha1, serial, name} {
				if strings.TrimSpace(v) != "" {
					set++
				}
			}
			if set != 1 {
				return errors.New("exactly one of --crc, --sha1, --serial or --name is required")
			}
			var crcValue uint32
			if crc != "" {
				normalized, err := matchcache.NormalizeCRC(crc)
				if err != nil {
					return err
				}
				parsed, _ := strconv.ParseUint(normalized, 16, 32)
				crcValue = uint32(parsed)
			}

			dbs, err := ctx.catalogsFor(*sources)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, db := range dbs {
				var (
					rec *catalog.SoftwareRecord
					ok  bool
				)
				switch {
				case crc != "":
					rec, ok = db.LookupCRC(crcValue)
				case sha1 != "":
					rec, ok = db.LookupSHA1(sha1)
				case serial != "":
					rec, ok = db.LookupSerial(serial)
				default:
					rec, ok = db.LookupName(name)
				}
				if !ok {
					continue
				}
				rows = append(rows, []string{db.Name, rec.Name, rec.Title(), rec.Serial, rec.Year, rec.Publisher})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No matching record")
				return nil
			}
			writeRows(out, []string{"Catalog", "Record", "Title", "Serial", "Year", "Publisher"}, rows, nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&crc, "crc", "", "CRC32 as eight hex digits")
	cmd.Flags().StringVar(&sha1, "sha1", "", "SHA1 as forty hex digits")
	cmd.Flags().StringVar(&serial, "serial", "", "Product serial")
	cmd.Flags().StringVar(&name, "name", "", "Record short name")
	return cmd
}
