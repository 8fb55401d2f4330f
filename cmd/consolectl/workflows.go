package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"naimuAdmin/internal/console/workflow"
)

func newWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Validate and show status workflows",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a workflow overrides file against the built-in table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			registry, err := workflow.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entity types\n", len(registry.Entities()))
			return nil
		},
	})

	var file string
	show := &cobra.Command{
		Use:   "show <entity>",
		Short: "Show the statuses and transitions of an entity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := workflow.Load(file)
			if err != nil {
				return err
			}
			def, ok := registry.Definition(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", workflow.ErrUnknownEntity, args[0])
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, def)
			}

			fmt.Fprintf(out, "%s\n", def.Entity)
			for _, st := range def.Statuses {
				marker := ""
				if registry.IsTerminal(def.Entity, st.Name) {
					marker = " (terminal)"
				}
				next := registry.ReachableFrom(def.Entity, st.Name)
				if len(next) == 0 {
					fmt.Fprintf(out, "  %-12s%s\n", st.Name, marker)
					continue
				}
				fmt.Fprintf(out, "  %-12s -> %s%s\n", st.Name, strings.Join(next, ", "), marker)
			}
			return nil
		},
	}
	show.Flags().StringVar(&file, "file", "", "workflow overrides file")
	cmd.AddCommand(show)

	return cmd
}
