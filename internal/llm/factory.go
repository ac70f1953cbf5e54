package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config selects and tunes a backend.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxAttempts int
	BaseURL     string
}

// New builds the configured backend wrapped with logging, metrics and retry.
func New(ctx context.Context, cfg Config, logger *zap.Logger, obs Observer) (Client, error) {
	var inner Client
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "groq":
		inner = NewGroqClient(cfg.APIKey, cfg.Model, cfg.Temperature, WithBaseURL(cfg.BaseURL))
	case "gemini":
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		inner = g
	case "fake":
		inner = NewScriptedClient(DemoReplies())
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	return Wrap(inner,
		WithLogging(logger),
		WithObserver(obs),
		Retry(cfg.MaxAttempts, 500*time.Millisecond),
	), nil
}
