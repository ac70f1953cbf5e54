package main

import (
	"github.com/spf13/cobra"

	"uiagent/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the generator as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer core.Close()

		core.Log.Info("serving mcp on stdio")
		return mcpserver.New(core.Sessions, core.Registry, version, core.Log).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
