package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"uiagent/internal/gateway/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, connect and websocket gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")
		cfg.SetPort(port)

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(a.Start)
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.Shutdown(shutdownCtx)
		})
		if err := g.Wait(); err != nil {
			logger.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen address (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}
