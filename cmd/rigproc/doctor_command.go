package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rigproc/internal/preflight"
	"rigproc/internal/report"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check a process directory for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), proc.path)
			failed := preflight.Failed(results)
			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := report.ColorEnabled(out)
				fmt.Fprintf(out, "Process %s (%s)\n", proc.name, proc.path)
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
