package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"romlib/internal/program"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Report whether two locations hold the same program",
		Long: `Compare two program images. Locations inside archives use
"archive.zip!member.bin".

Modes: crc, strict, canonical, canonical-strict. Canonical modes convert
both sides with the configured converter tools and compare the results.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			defer ctx.closeInto(&runErr)

			a, err := classifyArg(ctx, args[0])
			if err != nil {
				return err
			}
			b, err := classifyArg(ctx, args[1])
			if err != nil {
				return err
			}
			comparer, mode, err := ctx.comparer(cmd, modeFlag)
			if err != nil {
				return err
			}
			result, err := comparer.Compare(cmd.Context(), a, program.Info{}, b, program.Info{})
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"a":          a.Primary.String(),
					"b":          b.Primary.String(),
					"mode":       mode.String(),
					"equivalent": result == 0,
				})
			}
			verdict := "different"
			if result == 0 {
				verdict = "equivalent"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", verdict, mode)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "Comparison mode (defaults to comparison.mode)")
	return cmd
}
