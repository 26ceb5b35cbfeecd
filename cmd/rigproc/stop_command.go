package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var clearStop bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask a running process to stop after its current step",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if clearStop {
				if err := proc.signals.ClearStop(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Stop request cleared")
				return nil
			}
			running, err := proc.signals.Running()
			if err != nil {
				return err
			}
			if err := proc.signals.RequestStop(); err != nil {
				return err
			}
			if running {
				fmt.Fprintf(out, "Stop requested for %s\n", proc.name)
			} else {
				fmt.Fprintf(out, "Stop requested for %s (not running; the next run clears it)\n", proc.name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearStop, "clear", false, "Remove a pending stop request")
	return cmd
}
