package trigger

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/config"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
)

const notifySubject = "PraxiHub: internship status changed"

var statusLabels = map[model.InternshipStatus]string{
	model.StatusPendingOrgApproval: "waiting for organization approval",
	model.StatusOrgApproved:        "organization approved",
	model.StatusUploaded:           "contract uploaded",
	model.StatusAnalyzing:          "contract being analyzed",
	model.StatusNeedsReview:        "waiting for coordinator review",
	model.StatusApproved:           "approved",
	model.StatusRejected:           "rejected",
}

// StatusLabel human readable status
func StatusLabel(s model.InternshipStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return strings.ToLower(string(s))
}

// Notify queues an email and an in-app notification for the student on
// every status change
type Notify struct {
	repo   *repository.Repository
	cfg    *config.MailConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewNotify creates the notification handler
func NewNotify(repo *repository.Repository, cfg *config.MailConfig, logger *zap.Logger) *Notify {
	return &Notify{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

func (h *Notify) Name() string { return "notify" }

func (h *Notify) Match(ch events.Change) bool {
	return ch.StatusChanged()
}

// Handle writes the notification, the mail and the delivery marker in one
// transaction. A change already delivered once (same record version) only
// refreshes the marker.
func (h *Notify) Handle(ctx context.Context, ch events.Change) error {
	rec := ch.After
	id := rec.InternshipID
	key := eventKey(ch)

	return h.repo.Transaction(ctx, func(tx *repository.Repository) error {
		note := h.buildNotification(rec)
		note.EventKey = &key
		created, err := tx.Notification.Create(ctx, note)
		if err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		switch {
		case !created:
			h.logger.Info("notify: change already delivered", zap.String("event_key", key))
		case rec.StudentEmail == "":
			h.logger.Warn("notify: student has no email, in-app notification only",
				zap.String("internship_id", id))
		default:
			mail := h.buildMail(rec)
			mail.EventKey = &key
			if _, err := tx.Outbox.Create(ctx, mail); err != nil {
				return fmt.Errorf("queue mail: %w", err)
			}
		}

		if err := tx.Internship.MarkNotified(ctx, id, rec.Status, rec.Version); err != nil {
			return fmt.Errorf("mark notified: %w", err)
		}

		if created {
			h.logger.Info("notify: status change queued",
				zap.String("internship_id", id),
				zap.String("from", string(ch.Before.Status)),
				zap.String("to", string(rec.Status)))
		}
		return nil
	})
}

// Sweep finds records whose latest status change never reached the student,
// typically because its event was dropped, and replays it
func (h *Notify) Sweep(ctx context.Context) ([]events.Change, error) {
	now := h.now().UTC()
	recs, err := h.repo.Internship.ListUnnotified(ctx, now.Add(-sweepGrace), sweepLimit)
	if err != nil {
		return nil, fmt.Errorf("list unnotified changes: %w", err)
	}
	changes := make([]events.Change, 0, len(recs))
	for i := range recs {
		before := recs[i].Clone()
		before.Status = recs[i].NotifiedStatus
		changes = append(changes, events.Change{Before: before, After: &recs[i], At: now})
	}
	return changes, nil
}

func (h *Notify) buildMail(rec *model.Internship) *model.MailOutbox {
	label := StatusLabel(rec.Status)
	org := rec.OrganizationName
	if org == "" {
		org = "your internship"
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\n", greetingName(rec))
	fmt.Fprintf(&text, "the status of %s is now: %s (%s).\n", org, label, rec.Status)
	if rec.Status == model.StatusRejected && rec.AIErrorMessage != "" {
		fmt.Fprintf(&text, "Reason: %s\n", rec.AIErrorMessage)
	}
	if h.cfg.DashboardURL != "" {
		fmt.Fprintf(&text, "\nOpen your dashboard: %s\n", h.cfg.DashboardURL)
	}
	text.WriteString("\nPraxiHub")

	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hello %s,</p>", html.EscapeString(greetingName(rec)))
	fmt.Fprintf(&body, "<p>the status of <strong>%s</strong> is now: <strong>%s</strong> (%s).</p>",
		html.EscapeString(org), html.EscapeString(label), rec.Status)
	if rec.Status == model.StatusRejected && rec.AIErrorMessage != "" {
		fmt.Fprintf(&body, "<p>Reason: %s</p>", html.EscapeString(rec.AIErrorMessage))
	}
	if h.cfg.DashboardURL != "" {
		fmt.Fprintf(&body, `<p><a href="%s">Open your dashboard</a></p>`, html.EscapeString(h.cfg.DashboardURL))
	}
	body.WriteString("<p>PraxiHub</p>")

	id := rec.InternshipID
	return &model.MailOutbox{
		Recipient:    rec.StudentEmail,
		Subject:      notifySubject,
		TextBody:     text.String(),
		HTMLBody:     body.String(),
		InternshipID: &id,
		Status:       model.MailPending,
	}
}

func (h *Notify) buildNotification(rec *model.Internship) *model.Notification {
	id := rec.InternshipID
	body := "Status: " + StatusLabel(rec.Status)
	if rec.Status == model.StatusRejected && rec.AIErrorMessage != "" {
		body += ". Reason: " + rec.AIErrorMessage
	}
	return &model.Notification{
		UserID:       rec.StudentID,
		InternshipID: &id,
		Title:        "Internship status changed",
		Body:         body,
		Status:       rec.Status,
	}
}

func greetingName(rec *model.Internship) string {
	if rec.StudentName != "" {
		return rec.StudentName
	}
	return "student"
}
