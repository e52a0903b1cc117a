package handler

import (
	"praxihub/backend/config"
	"praxihub/backend/internal/service"
)

// Handler aggregate of all HTTP handlers
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Internship   *InternshipHandler
	Notification *NotificationHandler
	Assistant    *AssistantHandler
	Matchmaking  *MatchmakingHandler
	Contract     *ContractHandler
	Export       *ExportHandler
}

// NewHandler builds the aggregate
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Internship:   NewInternshipHandler(svc.Internship, cfg.Storage.MaxFileSize),
		Notification: NewNotificationHandler(svc.Notification),
		Assistant:    NewAssistantHandler(svc.Assistant),
		Matchmaking:  NewMatchmakingHandler(svc.Matchmaking),
		Contract:     NewContractHandler(svc.Contract),
		Export:       NewExportHandler(svc.Export),
	}
}
