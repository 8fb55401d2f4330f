package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"naimuAdmin/internal/console/permission"
)

func newCapsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "caps <screen> <role>",
		Short: "Resolve the capability of a role on a screen",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := permission.LoadFile(file)
			if err != nil {
				return err
			}
			c := permission.NewGate(table).CapabilitiesFor(args[0], args[1])
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, c)
			}
			fmt.Fprintf(out, "%s/%s view=%t add=%t edit=%t delete=%t\n",
				args[0], args[1], c.View, c.Add, c.Edit, c.Delete)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/permissions.yaml", "permissions file")
	return cmd
}
