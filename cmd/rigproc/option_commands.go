package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rigproc/internal/options"
	"rigproc/internal/report"
)

func newOptionCommand(ctx *commandContext) *cobra.Command {
	optionCmd := &cobra.Command{
		Use:     "option",
		Aliases: []string{"options"},
		Short:   "Read and write process options",
	}
	optionCmd.AddCommand(newOptionGetCommand(ctx))
	optionCmd.AddCommand(newOptionSetCommand(ctx, false))
	optionCmd.AddCommand(newOptionSetCommand(ctx, true))
	optionCmd.AddCommand(newOptionListCommand(ctx))
	return optionCmd
}

type optionGetJSON struct {
	Requested string `json:"requested"`
	Key       string `json:"key,omitempty"`
	Match     string `json:"match"`
	Value     any    `json:"value"`
	Warning   string `json:"warning,omitempty"`
}

func newOptionGetCommand(ctx *commandContext) *cobra.Command {
	var group string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Resolve an option the way a step would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			store, err := ctx.openOptions(proc)
			if err != nil {
				return err
			}
			value, res := store.Get(args[0], group)
			if jsonOutput {
				payload := optionGetJSON{
					Requested: res.Requested,
					Key:       res.Key,
					Match:     res.Kind.String(),
					Value:     value,
				}
				if res.Warning != nil {
					payload.Warning = res.Warning.Error()
				}
				return writeJSON(cmd, payload)
			}
			if res.Warning != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", res.Warning)
			}
			if res.Kind == options.ResolvedMissing {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderOptionValue(value))
			return nil
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Option group (dot separated)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newOptionSetCommand(ctx *commandContext, addOnly bool) *cobra.Command {
	var group string
	var typeName string
	var raw bool

	use, short := "set <name> <value>", "Set an option value, replacing any existing one"
	if addOnly {
		use, short = "add <name> <value>", "Add an option unless it already exists"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, ok := options.ParseTag(typeName)
			if !ok {
				return fmt.Errorf("unknown option type %q", typeName)
			}
			value, err := parseOptionValue(args[1], raw)
			if err != nil {
				return err
			}
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			store, err := ctx.openOptions(proc)
			if err != nil {
				return err
			}
			key := options.Key(args[0], group)
			out := cmd.OutOrStdout()
			if addOnly {
				stored, err := store.Add(args[0], value, group, tag)
				if err != nil {
					return err
				}
				if !stored {
					fmt.Fprintf(out, "%s already set; unchanged\n", key)
					return nil
				}
				fmt.Fprintf(out, "%s added\n", key)
				return nil
			}
			if _, exists := store.Entry(key); !exists && tag != options.TagPlain {
				if _, err := store.Add(args[0], value, group, tag); err != nil {
					return err
				}
			} else if err := store.Set(args[0], value, group); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s set\n", key)
			return nil
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Option group (dot separated)")
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Type tag for new options (script, ui, dictionary, reference_group, note)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Store the value as a plain string without parsing")
	return cmd
}

type optionListJSON struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func newOptionListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored options in file order",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := ctx.openProcess()
			if err != nil {
				return err
			}
			store, err := ctx.openOptions(proc)
			if err != nil {
				return err
			}
			keys := store.Keys()
			items := make([]optionListJSON, 0, len(keys))
			for _, key := range keys {
				v, _ := store.Entry(key)
				items = append(items, optionListJSON{Key: key, Type: v.Type.String(), Value: v.Raw})
			}
			if jsonOutput {
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No options stored")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{item.Key, item.Type, renderOptionValue(item.Value)})
			}
			fmt.Fprintln(out, report.Table([]string{"Key", "Type", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// parseOptionValue reads a command line value as YAML so numbers, booleans,
// and flow lists keep their type. raw keeps the text unchanged.
func parseOptionValue(text string, raw bool) (any, error) {
	if raw {
		return text, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", text, err)
	}
	if value == nil && strings.TrimSpace(text) != "" && strings.TrimSpace(text) != "null" && strings.TrimSpace(text) != "~" {
		return text, nil
	}
	return normalizeYAML(value), nil
}

// normalizeYAML converts YAML maps to string keyed maps so they encode as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	default:
		return v
	}
}

func renderOptionValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
