package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"praxihub/backend/config"
)

// GmailSender sends through the Gmail API as the authorised account
type GmailSender struct {
	svc    *gmail.Service
	from   string
	logger *zap.Logger
}

// NewGmailSender builds a Gmail client from an OAuth refresh token
func NewGmailSender(ctx context.Context, cfg *config.MailConfig, logger *zap.Logger) (*GmailSender, error) {
	if cfg.GmailClientID == "" || cfg.GmailClientSecret == "" || cfg.GmailRefreshToken == "" {
		return nil, errors.New("mailer: gmail client id, secret and refresh token are required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("mailer: create gmail service: %w", err)
	}

	return &GmailSender{svc: svc, from: cfg.From, logger: logger}, nil
}

// Send implements Sender
func (s *GmailSender) Send(ctx context.Context, msg Message) error {
	raw := BuildRaw(s.from, msg, time.Now())
	gm := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	sent, err := s.svc.Users.Messages.Send("me", gm).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mailer: gmail send: %w", err)
	}

	s.logger.Debug("mail sent", zap.String("to", msg.To), zap.String("gmail_id", sent.Id))
	return nil
}
