package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"romlib/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the scan catalog",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogLookupCommand(ctx))
	catalogCmd.AddCommand(newCatalogDuplicatesCommand(ctx))
	catalogCmd.AddCommand(newCatalogPruneCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every cataloged program",
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return printRecords(cmd, ctx, records, "Catalog is empty")
		},
	}
}

func newCatalogLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <crc|location>",
		Short: "Find cataloged programs by checksum",
		Long: `Find cataloged programs whose primary checksum matches. The argument
is either a hexadecimal CRC32 (optionally 0x-prefixed) or a program location
whose checksum is computed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			crc, ok := parseChecksumArg(args[0])
			if !ok {
				img, err := classifyArg(ctx, args[0])
				if err != nil {
					return err
				}
				if crc, err = img.PrimaryChecksum(); err != nil {
					return err
				}
			}
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			records, err := store.FindByChecksum(cmd.Context(), crc)
			if err != nil {
				return err
			}
			return printRecords(cmd, ctx, records, fmt.Sprintf("No cataloged programs with checksum %s", formatCRC(crc)))
		},
	}
}

func newCatalogDuplicatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List cataloged programs sharing a checksum",
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			groups, err := store.Duplicates(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if groups == nil {
					groups = [][]catalog.Record{}
				}
				return writeJSON(cmd, groups)
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No duplicate checksums in catalog")
				return nil
			}
			for _, group := range groups {
				fmt.Fprintf(out, "%s:\n", formatCRC(group[0].PrimaryCRC))
				for _, rec := range group {
					fmt.Fprintf(out, "  - %s\n", rec.Location)
				}
			}
			return nil
		},
	}
}

func newCatalogPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove records whose program no longer exists",
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			opts, err := ctx.archiveOptions()
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				paths := make([]string, 0, len(removed))
				for _, rec := range removed {
					paths = append(paths, rec.Location)
				}
				return writeJSON(cmd, map[string]any{"removed": paths})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale records\n", len(removed))
			return nil
		},
	}
}

func printRecords(cmd *cobra.Command, ctx *commandContext, records []catalog.Record, empty string) error {
	if ctx.JSONMode() {
		if records == nil {
			records = []catalog.Record{}
		}
		return writeJSON(cmd, records)
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, empty)
		return nil
	}
	fmt.Fprint(out, renderRecords(records))
	return nil
}

// parseChecksumArg accepts 1-8 hex digits with an optional 0x prefix.
// Values that look like paths are treated as locations instead.
func parseChecksumArg(value string) (uint32, bool) {
	value = strings.TrimSpace(value)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if trimmed == "" || len(trimmed) > 8 || strings.ContainsAny(value, "/.\\!") {
		return 0, false
	}
	parsed, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(parsed), true
}
