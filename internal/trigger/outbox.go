package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/config"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/mailer"
)

// Outbox drains queued mail through the configured sender
type Outbox struct {
	repo   repository.OutboxRepository
	sender mailer.Sender
	cfg    *config.MailConfig
	logger *zap.Logger
}

// NewOutbox creates the outbox dispatcher
func NewOutbox(repo repository.OutboxRepository, sender mailer.Sender, cfg *config.MailConfig, logger *zap.Logger) *Outbox {
	return &Outbox{repo: repo, sender: sender, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled
func (o *Outbox) Run(ctx context.Context) error {
	interval := o.cfg.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.Info("mail outbox started", zap.Duration("interval", interval))
	for {
		if _, err := o.Drain(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("mail outbox drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			o.logger.Info("mail outbox stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain sends one batch and returns the number of delivered mails
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	batch := o.cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}
	lease := o.cfg.ClaimLease
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	list, err := o.repo.ClaimPending(ctx, batch, lease)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range list {
		m := &list[i]
		err := o.sender.Send(ctx, mailer.Message{
			To:      m.Recipient,
			Subject: m.Subject,
			Text:    m.TextBody,
			HTML:    m.HTMLBody,
		})
		if err != nil {
			final := o.cfg.MaxAttempts <= 0 || m.Attempts >= o.cfg.MaxAttempts
			o.logger.Warn("mail delivery failed",
				zap.String("mail_id", m.MailID),
				zap.Int("attempts", m.Attempts),
				zap.Bool("final", final),
				zap.Error(err))
			if markErr := o.repo.MarkFailed(ctx, m.MailID, err.Error(), final); markErr != nil {
				o.logger.Error("mark mail failed", zap.String("mail_id", m.MailID), zap.Error(markErr))
			}
			continue
		}
		if err := o.repo.MarkSent(ctx, m.MailID); err != nil {
			o.logger.Error("mark mail sent", zap.String("mail_id", m.MailID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		o.logger.Info("mail outbox delivered", zap.Int("sent", sent), zap.Int("batch", len(list)))
	}
	return sent, nil
}
