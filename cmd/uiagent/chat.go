package main

import (
	"github.com/spf13/cobra"

	"uiagent/internal/preview"
	"uiagent/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Refine a UI interactively, one intent per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer core.Close()

		p, err := preview.New(preview.Options{Color: true, Width: 100})
		if err != nil {
			return err
		}
		s := core.Sessions.Create()
		return tui.Run(cmd.Context(), core.Sessions, s.ID, p)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
