package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"praxihub/backend/config"
	"praxihub/backend/internal/model"
	"praxihub/backend/pkg/ai"
)

// ErrEmptyMessage chat message was blank
var ErrEmptyMessage = errors.New("message must not be empty")

const assistantPrompt = `You are the PraxiHub assistant. PraxiHub is the internship portal of the university:
students upload or generate internship contracts, an AI reads the contract and a
coordinator approves it; companies publish what skills they look for and rate
their interns; coordinators approve organizations and contracts.
Answer briefly and in the language of the question. If you do not know, say so.`

// AssistantService stateless chat
type AssistantService interface {
	Chat(ctx context.Context, role, message string) (string, error)
}

type assistantService struct {
	cfg    *config.Config
	model  ai.Model
	logger *zap.Logger
}

// NewAssistantService creates an AssistantService. model may be nil.
func NewAssistantService(cfg *config.Config, m ai.Model, logger *zap.Logger) AssistantService {
	return &assistantService{cfg: cfg, model: m, logger: logger}
}

func (s *assistantService) Chat(ctx context.Context, role, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if s.model == nil {
		return "", ErrModelUnavailable
	}
	if role == "" {
		role = model.RoleVisitor
	}

	reply, err := s.model.Generate(ctx, ai.Request{
		Model:  s.cfg.AI.ChatModel,
		System: assistantPrompt + "\nThe user's role is " + role + ".",
		Prompt: message,
	})
	if err != nil {
		s.logger.Error("assistant model call failed", zap.String("role", role), zap.Error(err))
		return "", err
	}
	return reply, nil
}
