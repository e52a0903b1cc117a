package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"praxihub/backend/config"
)

// GenAI Gemini access through the Google SDK
type GenAI struct {
	client       *genai.Client
	defaultModel string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewGenAI creates the SDK client
func NewGenAI(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (*GenAI, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("ai: create genai client: %w", err)
	}
	return &GenAI{
		client:       client,
		defaultModel: cfg.ChatModel,
		timeout:      cfg.RequestTimeout,
		logger:       logger,
	}, nil
}

// Generate implements Model
func (g *GenAI) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	name := req.Model
	if name == "" {
		name = g.defaultModel
	}
	m := g.client.GenerativeModel(name)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(req.Attachments)+1)
	parts = append(parts, genai.Text(req.Prompt))
	for _, a := range req.Attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("ai: generate: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("model call finished",
		zap.String("model", name),
		zap.Int("attachments", len(req.Attachments)),
		zap.Duration("latency", time.Since(start)),
	)
	return sb.String(), nil
}

// Close releases the SDK connection
func (g *GenAI) Close() error {
	return g.client.Close()
}
