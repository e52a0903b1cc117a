package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/config"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/ai"
	"praxihub/backend/pkg/blob"
	"praxihub/backend/pkg/jwt"
)

// Caller the authenticated principal behind a request
type Caller struct {
	UserID string
	Role   string
	Email  string
}

// TokenStore revoked-token registry, backed by Redis
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// FontSource supplies the TTF embedded into generated contracts
type FontSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Infra external clients the services depend on. Tokens, Model and Store
// may be nil when the backing service is not configured.
type Infra struct {
	JWT    *jwt.Manager
	Tokens TokenStore
	Model  ai.Model
	Store  blob.Store
	Fonts  FontSource
	Bus    events.Bus
}

// Service aggregate of all services
type Service struct {
	Auth         AuthService
	User         UserService
	Internship   InternshipService
	Notification NotificationService
	Matchmaking  MatchmakingService
	Assistant    AssistantService
	Contract     ContractService
	Export       ExportService
}

// NewService builds the aggregate
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	infra Infra,
	logger *zap.Logger,
) *Service {
	hosts := blob.NewHostAllowlist(cfg.Storage.AllowedHosts)
	internships := NewInternshipService(repo, infra.Store, hosts, infra.Bus, logger)
	return &Service{
		Auth:         NewAuthService(cfg, repo, infra.JWT, infra.Tokens, logger),
		User:         NewUserService(repo, logger),
		Internship:   internships,
		Notification: NewNotificationService(repo, logger),
		Matchmaking:  NewMatchmakingService(cfg, repo, infra.Model, logger),
		Assistant:    NewAssistantService(cfg, infra.Model, logger),
		Contract:     NewContractService(repo, infra.Store, infra.Fonts, internships, logger),
		Export:       NewExportService(repo, logger),
	}
}
