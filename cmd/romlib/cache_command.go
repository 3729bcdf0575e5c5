package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"romlib/internal/program"
	"romlib/internal/stagecache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the staging cache",
	}

	cacheCmd.AddCommand(newCacheStatusCommand(ctx))
	cacheCmd.AddCommand(newCacheStageCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))

	return cacheCmd
}

func newCacheStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <location>",
		Short: "Report whether a program's staged copy is current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := classifyArg(ctx, args[0])
			if err != nil {
				return err
			}
			manager, err := ctx.stageManager()
			if err != nil {
				return err
			}
			present, changed, err := manager.IsInCache(img)
			if err != nil {
				return err
			}
			_, hasCanonical := manager.StagedCanonical(img)

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"location":       img.Primary.String(),
					"present":        present,
					"changed":        changed,
					"staged_primary": manager.PrimaryPath(img),
					"staged_config":  stagedConfigPath(manager, img),
					"canonical":      hasCanonical,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Program:   %s\n", img)
			fmt.Fprintf(out, "Staged:    %s\n", yesNo(present))
			fmt.Fprintf(out, "Changed:   %s\n", yesNo(changed))
			fmt.Fprintf(out, "Canonical: %s\n", yesNo(hasCanonical))
			fmt.Fprintf(out, "Path:      %s\n", manager.PrimaryPath(img))
			return nil
		},
	}
}

func stagedConfigPath(manager *stagecache.Manager, img *program.Image) string {
	if !img.HasCompanion() {
		return ""
	}
	return manager.CompanionPath(img)
}

func newCacheStageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <location>",
		Short: "Copy a program into the staging cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := classifyArg(ctx, args[0])
			if err != nil {
				return err
			}
			manager, err := ctx.stageManager()
			if err != nil {
				return err
			}
			staged, err := manager.Stage(cmd.Context(), img)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				payload := map[string]any{"primary": staged.Primary.String()}
				if staged.HasCompanion() {
					payload["config"] = staged.Companion.String()
				}
				return writeJSON(cmd, payload)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Staged %s\n", staged)
			return nil
		},
	}
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show staging cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.stageManager()
			if err != nil {
				return err
			}
			stats, err := manager.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if stats.Entries == nil {
					stats.Entries = []stagecache.EntrySummary{}
				}
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root:        %s\n", manager.Root())
			fmt.Fprintf(out, "Directories: %d\n", stats.Directories)
			fmt.Fprintf(out, "Files:       %d\n", stats.Files)
			fmt.Fprintf(out, "Size:        %s\n", humanBytes(stats.TotalBytes))
			if stats.TotalFSBytes > 0 {
				ratio := float64(stats.FreeBytes) / float64(stats.TotalFSBytes)
				fmt.Fprintf(out, "Disk:        %s free (%.1f%%)\n", humanBytes(int64(stats.FreeBytes)), ratio*100)
			}
			printCacheEntries(out, stats.Entries)
			return nil
		},
	}
}

func printCacheEntries(out io.Writer, entries []stagecache.EntrySummary) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Staged directories: none")
		return
	}
	const stampLayout = "2006-01-02 15:04"
	r := newReport(
		column{"Directory", textColumn},
		column{"Files", countColumn},
		column{"Size", bytesColumn},
		column{"Updated", textColumn},
	)
	for _, entry := range entries {
		updated := "unknown"
		if !entry.ModifiedAt.IsZero() {
			updated = entry.ModifiedAt.Local().Format(stampLayout)
		}
		r.add(filepath.Base(entry.Directory), entry.FileCount, entry.SizeBytes, updated)
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, r.withTotals("Total").render())
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every staged directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.stageManager()
			if err != nil {
				return err
			}
			removed, err := manager.Purge(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"removed": removed})
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Staging cache already empty")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staged directories\n", removed)
			return nil
		},
	}
}
