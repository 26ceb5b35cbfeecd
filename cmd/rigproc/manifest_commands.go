package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rigproc/internal/manifest"
	"rigproc/internal/report"
	"rigproc/internal/services"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:     "manifest",
		Aliases: []string{"steps"},
		Short:   "Inspect and edit the ordered step list of a process",
	}

	manifestCmd.AddCommand(newManifestListCommand(ctx))
	manifestCmd.AddCommand(newManifestSyncCommand(ctx))
	manifestCmd.AddCommand(newManifestStateCommand(ctx, "enable", true))
	manifestCmd.AddCommand(newManifestStateCommand(ctx, "disable", false))
	return manifestCmd
}

type manifestEntryJSON struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Depth   int    `json:"depth"`
	HasUnit bool   `json:"has_unit"`
	Orphan  bool   `json:"orphan"`
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manifest entries in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			entries, err := proc.manifest.Entries()
			if err != nil {
				return err
			}
			tree := manifest.BuildTree(entries)
			orphans := make(map[string]bool, len(tree.Orphans))
			for _, node := range tree.Orphans {
				orphans[node.Name] = true
			}

			items := make([]manifestEntryJSON, 0, len(entries))
			for _, entry := range entries {
				_, findErr := proc.repo.Find(entry.Name)
				items = append(items, manifestEntryJSON{
					Name:    entry.Name,
					Enabled: entry.Enabled,
					Depth:   entry.Depth(),
					HasUnit: findErr == nil,
					Orphan:  orphans[entry.Name],
				})
			}

			if jsonOutput {
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Manifest is empty")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for i, item := range items {
				note := ""
				switch {
				case item.Orphan:
					note = "orphan (never runs)"
				case !item.HasUnit:
					note = "missing unit"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					strings.Repeat("  ", item.Depth) + manifestLeaf(item.Name),
					yesNo(item.Enabled),
					note,
				})
			}
			fmt.Fprintln(out, report.Table([]string{"#", "Step", "Enabled", "Note"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newManifestSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the manifest with the step units on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			result, err := proc.manifest.Sync(cmd.Context(), proc.repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Changed() {
				fmt.Fprintln(out, "Manifest already in sync")
				return nil
			}
			for _, name := range result.Added {
				fmt.Fprintf(out, "+ %s (disabled)\n", name)
			}
			for _, name := range result.Removed {
				fmt.Fprintf(out, "- %s\n", name)
			}
			return nil
		},
	}
}

func newManifestStateCommand(ctx *commandContext, use string, enabled bool) *cobra.Command {
	short := "Enable steps"
	if !enabled {
		short = "Disable steps"
	}
	return &cobra.Command{
		Use:   use + " <step>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			var errs []error
			for _, name := range args {
				name = strings.Trim(strings.TrimSpace(name), "/")
				if !proc.manifest.Contains(name) {
					errs = append(errs, services.Wrap(services.ErrNotFound, name, use, "step not in manifest", nil))
					continue
				}
				if err := proc.manifest.SetState(name, enabled); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, map[bool]string{true: "enabled", false: "disabled"}[enabled])
			}
			return errors.Join(errs...)
		},
	}
}

func manifestLeaf(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
