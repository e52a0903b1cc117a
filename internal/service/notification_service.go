package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/repository"
)

// ErrNotificationNotFound no such notification for the caller
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService in-app notifications
type NotificationService interface {
	List(ctx context.Context, caller Caller, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, caller Caller, id string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService creates a NotificationService
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, caller Caller, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	list, total, err := s.repo.Notification.ListByUser(ctx, caller.UserID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list notifications failed", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, 0, err
	}

	out := make([]dto.NotificationResponse, 0, len(list))
	for _, n := range list {
		item := dto.NotificationResponse{
			ID:        n.NotificationID,
			Title:     n.Title,
			Body:      n.Body,
			Status:    string(n.Status),
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
		if n.InternshipID != nil {
			item.InternshipID = *n.InternshipID
		}
		out = append(out, item)
	}
	return out, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, caller Caller, id string) error {
	if err := s.repo.Notification.MarkRead(ctx, id, caller.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("mark notification read failed", zap.String("notification_id", id), zap.Error(err))
		return err
	}
	return nil
}
