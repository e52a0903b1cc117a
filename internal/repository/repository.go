package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregate of all repositories
type Repository struct {
	User         UserRepository
	Internship   InternshipRepository
	Notification NotificationRepository
	Outbox       OutboxRepository

	db *gorm.DB
}

// NewRepository builds the aggregate on db
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:         NewUserRepo(db),
		Internship:   NewInternshipRepo(db),
		Notification: NewNotificationRepo(db),
		Outbox:       NewOutboxRepo(db),
		db:           db,
	}
}

// Transaction runs fn with repositories bound to one database transaction.
// An aggregate built without a database (tests) runs fn directly.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
