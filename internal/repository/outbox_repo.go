package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"praxihub/backend/internal/model"
)

// OutboxRepository queued email data access
type OutboxRepository interface {
	Create(ctx context.Context, m *model.MailOutbox) (bool, error)
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]model.MailOutbox, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string, final bool) error
}

type outboxRepo struct {
	db *gorm.DB
}

// NewOutboxRepo creates an OutboxRepository
func NewOutboxRepo(db *gorm.DB) OutboxRepository {
	return &outboxRepo{db: db}
}

// Create queues m. A row whose EventKey already exists is skipped and
// reported as not created.
func (r *outboxRepo) Create(ctx context.Context, m *model.MailOutbox) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_key"}}, DoNothing: true}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimPending leases the oldest pending mails to the caller and counts the
// attempt. Leased rows stay invisible to other dispatchers until MarkSent,
// MarkFailed or the lease running out releases them.
func (r *outboxRepo) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]model.MailOutbox, error) {
	var list []model.MailOutbox
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND (locked_until IS NULL OR locked_until < ?)", model.MailPending, now).
			Order("created_at ASC").
			Limit(limit).
			Find(&list).Error; err != nil {
			return err
		}
		if len(list) == 0 {
			return nil
		}
		until := now.Add(lease)
		ids := make([]string, len(list))
		for i := range list {
			ids[i] = list[i].MailID
			list[i].Attempts++
			list[i].LockedUntil = &until
		}
		return tx.Model(&model.MailOutbox{}).
			Where("mail_id IN ?", ids).
			Updates(map[string]interface{}{
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_until": until,
				"updated_at":   now,
			}).Error
	})
	return list, err
}

func (r *outboxRepo) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&model.MailOutbox{}).
		Where("mail_id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.MailSent,
			"sent_at":      &now,
			"last_error":   "",
			"locked_until": nil,
		}).Error
}

// MarkFailed records the error and releases the lease; final moves the row
// to ERROR, otherwise it stays PENDING for the next poll
func (r *outboxRepo) MarkFailed(ctx context.Context, id, errMsg string, final bool) error {
	status := model.MailPending
	if final {
		status = model.MailError
	}
	return r.db.WithContext(ctx).
		Model(&model.MailOutbox{}).
		Where("mail_id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"last_error":   errMsg,
			"locked_until": nil,
		}).Error
}
