package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rigproc/internal/manifest"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the manifest in sync with the steps directory until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			watcher, err := manifest.NewWatcher(proc.manifest, proc.repo, proc.repo.Root(), manifest.WatcherOptions{
				Debounce: time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond,
				Logger:   ctx.loggerValue(),
				OnSync: func(result manifest.SyncResult) {
					for _, name := range result.Added {
						fmt.Fprintf(out, "+ %s (disabled)\n", name)
					}
					for _, name := range result.Removed {
						fmt.Fprintf(out, "- %s\n", name)
					}
				},
			})
			if err != nil {
				return err
			}

			watchCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := watcher.Start(watchCtx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", proc.repo.Root())
			<-watchCtx.Done()
			return watcher.Stop()
		},
	}
}
