package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"uiagent/internal/registry"
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the component registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		descs := registry.Default().Descriptors()
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(descs)
		}
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, p.Components(descs))
		return err
	},
}

func init() {
	componentsCmd.Flags().Bool("json", false, "print descriptors as JSON")
	componentsCmd.Flags().Bool("color", false, "colorize terminal output")
	rootCmd.AddCommand(componentsCmd)
}
