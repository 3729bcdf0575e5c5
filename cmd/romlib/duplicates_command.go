package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"romlib/internal/compare"
)

func newDuplicatesCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "duplicates <path>...",
		Short: "Group equivalent programs found under the given paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			images, err := discoverImages(cmd, ctx, args)
			if err != nil {
				return err
			}
			comparer, mode, err := ctx.comparer(cmd, modeFlag)
			if err != nil {
				return err
			}
			groups, findErr := compare.FindDuplicates(cmd.Context(), comparer, images)

			if ctx.JSONMode() {
				payload := make([][]string, 0, len(groups))
				for _, group := range groups {
					names := make([]string, 0, len(group))
					for _, img := range group {
						names = append(names, img.Primary.String())
					}
					payload = append(payload, names)
				}
				if err := writeJSON(cmd, map[string]any{
					"mode":    mode.String(),
					"scanned": len(images),
					"groups":  payload,
				}); err != nil {
					return err
				}
				return findErr
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintf(out, "No duplicates among %d programs (%s)\n", len(images), mode)
				return findErr
			}
			for i, group := range groups {
				fmt.Fprintf(out, "Group %d:\n", i+1)
				for _, img := range group {
					fmt.Fprintf(out, "  - %s\n", img.Primary)
				}
			}
			fmt.Fprintf(out, "\n%d duplicate groups among %d programs (%s)\n", len(groups), len(images), mode)
			return findErr
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "Comparison mode (defaults to comparison.mode)")
	return cmd
}
