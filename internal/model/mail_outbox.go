package model

import "time"

// Outbox delivery states
const (
	MailPending = "PENDING"
	MailSent    = "SENT"
	MailError   = "ERROR"
)

// MailOutbox queued email, drained by the outbox dispatcher
type MailOutbox struct {
	MailID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"mail_id"`
	Recipient    string     `gorm:"type:varchar(255);not null"                     json:"to"`
	Subject      string     `gorm:"type:varchar(255);not null"                     json:"subject"`
	TextBody     string     `gorm:"type:text;not null;default:''"                  json:"text"`
	HTMLBody     string     `gorm:"column:html_body;type:text;not null;default:''" json:"html"`
	InternshipID *string    `gorm:"type:uuid"                                      json:"internship_id,omitempty"`
	EventKey     *string    `gorm:"type:varchar(128)"                              json:"-"` // one mail per change event
	Status       string     `gorm:"type:varchar(16);not null;default:'PENDING'"    json:"status"`
	Attempts     int        `gorm:"not null;default:0"                             json:"attempts"`
	LastError    string     `gorm:"type:text;not null;default:''"                  json:"error,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	LockedUntil  *time.Time `json:"-"` // claim lease of the dispatcher sending it
	BaseModel
}

// TableName mail_outbox
func (MailOutbox) TableName() string { return "mail_outbox" }
