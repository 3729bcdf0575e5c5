package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"romlib/internal/catalog"
	"romlib/internal/logging"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var updateCatalog bool

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Discover and classify program images",
		Long: `Walk the given files and directories, descending into enabled archive
formats, and list every recognized program image with its checksums.

Use --catalog to record the results in the scan catalog.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			images, err := discoverImages(cmd, ctx, args)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			records := make([]catalog.Record, 0, len(images))
			for _, img := range images {
				rec, err := catalog.RecordFromImage(img)
				if err != nil {
					logging.WarnWithContext(logger, "checksum failed; skipping", "checksum_failed",
						logging.String(logging.FieldPath, img.Primary.String()),
						logging.Error(err),
					)
					continue
				}
				records = append(records, rec)
			}

			if updateCatalog {
				store, err := ctx.openCatalog()
				if err != nil {
					return err
				}
				for _, rec := range records {
					if err := store.Upsert(cmd.Context(), rec); err != nil {
						return err
					}
				}
				logger.Info("catalog updated",
					logging.Int("records", len(records)),
					logging.String(logging.FieldPath, store.Path()),
					logging.String(logging.FieldEventType, "catalog_updated"),
				)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No program images found")
				return nil
			}
			fmt.Fprint(out, renderRecords(records))
			return nil
		},
	}

	cmd.Flags().BoolVar(&updateCatalog, "catalog", false, "Record results in the scan catalog")
	return cmd
}

func renderRecords(records []catalog.Record) string {
	r := newReport(
		column{"Location", locationColumn},
		column{"Format", textColumn},
		column{"CRC", checksumColumn},
		column{"Config CRC", checksumColumn},
		column{"Size", bytesColumn},
	)
	for _, rec := range records {
		var companion any
		if rec.Companion != "" {
			companion = rec.CompanionCRC
			if rec.StockCompanion {
				companion = formatCRC(rec.CompanionCRC) + " (stock)"
			}
		}
		r.add(rec.Location, rec.FormatName, rec.PrimaryCRC, companion, rec.SizeBytes)
	}
	return r.withTotals(fmt.Sprintf("%d programs", len(records))).render()
}
