package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rigproc/internal/history"
	"rigproc/internal/report"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var all bool
	var prune int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			store, err := history.Open(cmd.Context(), cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			opts := report.Options{Color: report.ColorEnabled(out)}

			if cmd.Flags().Changed("prune") {
				removed, err := store.Prune(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d run(s)\n", removed)
				return nil
			}

			if len(args) == 1 {
				runID, steps, err := store.Steps(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, steps)
				}
				fmt.Fprintf(out, "Run %s\n", runID)
				fmt.Fprint(out, report.RenderSteps(steps, opts))
				return nil
			}

			process := ""
			if !all {
				process = strings.TrimSpace(ctx.processName())
				if process == "" {
					process = cfg.Run.DefaultProcess
				}
			}
			runs, err := store.Runs(cmd.Context(), process, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			fmt.Fprint(out, report.RenderRuns(runs, opts))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&all, "all", false, "Show runs of every process")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N runs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
