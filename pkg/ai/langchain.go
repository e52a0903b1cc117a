package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"praxihub/backend/config"
)

// LangChain Gemini access through langchaingo
type LangChain struct {
	llm          llms.Model
	defaultModel string
	timeout      time.Duration
	logger       *zap.Logger
}

// NewLangChain creates the googleai-backed client
func NewLangChain(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (*LangChain, error) {
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("ai: create googleai client: %w", err)
	}

	return &LangChain{
		llm:          llm,
		defaultModel: cfg.ChatModel,
		timeout:      cfg.RequestTimeout,
		logger:       logger,
	}, nil
}

// Generate implements Model
func (l *LangChain) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	parts := make([]llms.ContentPart, 0, len(req.Attachments)+2)
	if req.System != "" {
		parts = append(parts, llms.TextPart(req.System))
	}
	parts = append(parts, llms.TextPart(req.Prompt))
	for _, a := range req.Attachments {
		parts = append(parts, llms.BinaryPart(a.MIMEType, a.Data))
	}

	model := req.Model
	if model == "" {
		model = l.defaultModel
	}
	opts := []llms.CallOption{llms.WithModel(model)}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := l.llm.GenerateContent(ctx, []llms.MessageContent{
		{Role: schema.ChatMessageTypeHuman, Parts: parts},
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("ai: generate: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}

	l.logger.Debug("model call finished",
		zap.String("model", model),
		zap.Int("attachments", len(req.Attachments)),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.Choices[0].Content, nil
}
