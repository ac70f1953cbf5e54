package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultGroqModel   = "llama-3.1-8b-instant"
	defaultGroqBaseURL = "https://api.groq.com/openai/v1/chat/completions"
)

// ErrMissingAPIKey is returned on every call when no Groq key is configured.
var ErrMissingAPIKey = errors.New("GROQ_API_KEY is not defined; add it to the environment or .env")

// GroqClient calls the Groq Chat Completions API (OpenAI-compatible).
// See: https://console.groq.com/docs/api-reference
type GroqClient struct {
	http        *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float32
}

// GroqOption customizes a GroqClient.
type GroqOption func(*GroqClient)

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(u string) GroqOption {
	return func(g *GroqClient) {
		if strings.TrimSpace(u) != "" {
			g.baseURL = u
		}
	}
}

// WithHTTPClient replaces the default 60s-timeout http.Client.
func WithHTTPClient(c *http.Client) GroqOption {
	return func(g *GroqClient) {
		if c != nil {
			g.http = c
		}
	}
}

// NewGroqClient creates a Groq client. A missing key is not an error here;
// every Complete call fails with ErrMissingAPIKey instead.
func NewGroqClient(apiKey, model string, temperature float32, opts ...GroqOption) *GroqClient {
	if strings.TrimSpace(model) == "" {
		model = DefaultGroqModel
	}
	g := &GroqClient{
		http:        &http.Client{Timeout: 60 * time.Second},
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		baseURL:     defaultGroqBaseURL,
		temperature: temperature,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *GroqClient) Name() string { return "Groq:" + g.model }
func (g *GroqClient) Close() error { return nil }

type groqChatReq struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}
type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type groqChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the system instruction followed by the user content.
func (g *GroqClient) Complete(ctx context.Context, system, user string) (string, error) {
	if g.apiKey == "" {
		return "", NewPermanentError(ErrMissingAPIKey)
	}
	reqBody := groqChatReq{
		Model: g.model,
		Messages: []groqMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: g.temperature,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("groq: unexpected status %s: %s", resp.Status, string(body))
		switch {
		case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), `"code":"context_length_exceeded"`):
			return "", NewPermanentError(err)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return "", NewPermanentError(err)
		}
		return "", err
	}
	var out groqChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("groq: decode response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}
