package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rigproc/internal/steprunner"
)

func newStepCommand(ctx *commandContext) *cobra.Command {
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Author and remove step units",
	}
	stepCmd.AddCommand(newStepNewCommand(ctx))
	stepCmd.AddCommand(newStepDeleteCommand(ctx))
	return stepCmd
}

func newStepNewCommand(ctx *commandContext) *cobra.Command {
	var description string
	var actions []string
	var command []string
	var enable bool

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a step unit and append it to the manifest",
		Long: "Create steps/<name>/step.yaml and append <name> to the manifest, disabled unless --enable is set.\n" +
			"Nested names such as build/test create a child of build.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			name := strings.Trim(strings.TrimSpace(args[0]), "/")
			desc := steprunner.Descriptor{
				Description: description,
				Actions:     actions,
				Command:     command,
			}
			if len(desc.Actions) == 0 && len(desc.Command) == 0 {
				desc.Actions = []string{fmt.Sprintf("log(%q)", "step "+name+" ran")}
			}
			handle, err := proc.repo.Create(name, desc)
			if err != nil {
				return err
			}
			if err := proc.manifest.Add(handle.Name); err != nil {
				return err
			}
			if enable {
				if err := proc.manifest.SetState(handle.Name, true); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", handle.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Step description")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "Expression to evaluate (repeatable)")
	cmd.Flags().StringArrayVar(&command, "command", nil, "Command argv element (repeatable)")
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the step in the manifest")
	return cmd
}

func newStepDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a step unit, its children, and their manifest entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			name := strings.Trim(strings.TrimSpace(args[0]), "/")
			if err := proc.repo.Delete(name); err != nil {
				return err
			}
			if err := proc.manifest.Remove(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			return nil
		},
	}
}
