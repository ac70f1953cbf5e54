package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"uiagent/internal/gateway/app"
	"uiagent/internal/gateway/config"
	"uiagent/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "uiagent",
	Short:         "Generate UI from natural language",
	Long:          `uiagent plans, validates, generates and explains React UI built from a fixed component library.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().String("provider", "", "model provider: groq, gemini or fake (overrides LLM_PROVIDER)")
	rootCmd.PersistentFlags().String("model", "", "model name (overrides LLM_MODEL)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")
}

// loadConfig reads the environment and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("provider"); v != "" {
		cfg.LLM.Provider = v
	}
	if v, _ := flags.GetString("model"); v != "" {
		cfg.LLM.Model = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newCore builds the shared object graph for commands that run the pipeline.
func newCore(cmd *cobra.Command) (*app.Core, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewCore(cmd.Context(), cfg, logger)
}
