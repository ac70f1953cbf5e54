package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/types"
)

var renderCmd = &cobra.Command{
	Use:   "render <plan.json|->",
	Short: "Resolve a saved plan against the component registry without calling a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		var plan types.Plan
		if err := json.Unmarshal(jsonc.ToJSON(raw), &plan); err != nil {
			return fmt.Errorf("parse plan: %w", err)
		}
		nodes := render.New(registry.Default()).ResolvePlan(plan)

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, p.Tree(nodes))
		if errs := render.Errors(nodes); len(errs) > 0 {
			return fmt.Errorf("%d node(s) failed to resolve", len(errs))
		}
		return err
	},
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func init() {
	renderCmd.Flags().Bool("json", false, "print the resolved tree as JSON")
	renderCmd.Flags().Bool("color", false, "colorize terminal output")
	rootCmd.AddCommand(renderCmd)
}
