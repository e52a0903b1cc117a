// Package ai wraps the generative model behind a small interface so the
// contract intake, matchmaking and chat paths can swap providers and be
// tested without network access.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/config"
)

var (
	// ErrNotConfigured no API key was supplied
	ErrNotConfigured = errors.New("ai: model is not configured")
	// ErrEmptyResponse the model returned no text
	ErrEmptyResponse = errors.New("ai: empty model response")
)

// Attachment inline binary input (a contract scan or PDF)
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request one generation call
type Request struct {
	Model       string // empty = provider default
	System      string
	Prompt      string
	Attachments []Attachment
	JSON        bool // ask for a JSON-only answer
}

// Model generates text from a prompt
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New builds the provider selected by cfg.Provider
func New(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (Model, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case "genai":
		return NewGenAI(ctx, cfg, logger)
	case "langchain", "":
		return NewLangChain(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
}

// StripCodeFences removes markdown code fences models like to wrap JSON in
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// withTimeout bounds a single model call
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
