package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"uiagent/internal/preview"
)

var generateCmd = &cobra.Command{
	Use:   "generate <intent>",
	Short: "Run one Plan, Validate, Generate, Explain pass and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer core.Close()

		s := core.Sessions.Create()
		res, err := core.Sessions.Generate(cmd.Context(), s.ID, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res)
		}
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, p.Turn(*res.Turn, res.Tree))
		return err
	},
}

func newPrinter(cmd *cobra.Command) (*preview.Printer, error) {
	color, _ := cmd.Flags().GetBool("color")
	return preview.New(preview.Options{Color: color, Width: 100})
}

func init() {
	generateCmd.Flags().Bool("json", false, "print the turn and resolved tree as JSON")
	generateCmd.Flags().Bool("color", false, "colorize terminal output")
	rootCmd.AddCommand(generateCmd)
}
