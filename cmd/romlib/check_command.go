package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"romlib/internal/deps"
	"romlib/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories and converter tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			tools := preflight.CheckSystemDeps(cfg)

			failed := len(deps.Missing(tools))
			for _, r := range results {
				if !r.Passed {
					failed++
				}
			}

			if ctx.JSONMode() {
				if err := writeJSON(cmd, map[string]any{
					"checks": results,
					"tools":  tools,
				}); err != nil {
					return err
				}
			} else {
				r := newReport(
					column{"Check", textColumn},
					column{"Status", textColumn},
					column{"Detail", textColumn},
				)
				for _, res := range results {
					r.add(res.Name, passLabel(res.Passed, false), res.Detail)
				}
				for _, s := range tools {
					detail := s.Resolved
					if !s.Available {
						detail = s.Detail
					}
					r.add(s.Name, passLabel(s.Available, s.Optional), detail)
				}
				fmt.Fprint(cmd.OutOrStdout(), r.render())
			}
			if failed > 0 {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func passLabel(passed, optional bool) string {
	switch {
	case passed:
		return "ok"
	case optional:
		return "missing (optional)"
	default:
		return "FAILED"
	}
}
