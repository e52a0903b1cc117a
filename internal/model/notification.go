package model

import "time"

// Notification in-app notification shown on the student dashboard
type Notification struct {
	NotificationID string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string           `gorm:"type:uuid;not null"                             json:"user_id"`
	InternshipID   *string          `gorm:"type:uuid"                                      json:"internship_id,omitempty"`
	Title          string           `gorm:"type:varchar(255);not null"                     json:"title"`
	Body           string           `gorm:"type:text;not null;default:''"                  json:"body"`
	Status         InternshipStatus `gorm:"type:varchar(32);not null;default:''"           json:"status"`
	IsRead         bool             `gorm:"not null;default:false"                         json:"is_read"`
	EventKey       *string          `gorm:"type:varchar(128)"                              json:"-"` // one notification per change event
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName notifications
func (Notification) TableName() string { return "notifications" }
