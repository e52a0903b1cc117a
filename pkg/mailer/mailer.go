// Package mailer delivers queued outbox messages.
package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Message one outgoing email
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them.
// Used in development and when no mail provider is configured.
type LogSender struct {
	from   string
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(from string, logger *zap.Logger) *LogSender {
	return &LogSender{from: from, logger: logger}
}

// Send implements Sender
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail (log sender)",
		zap.String("from", s.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

// BuildRaw renders msg as an RFC 5322 message with a text and an HTML part
func BuildRaw(from string, msg Message, now time.Time) []byte {
	var buf bytes.Buffer
	boundary := randomBoundary()

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", msg.To)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")

	if msg.HTML == "" {
		writeHeader(&buf, "Content-Type", `text/plain; charset="UTF-8"`)
		writeHeader(&buf, "Content-Transfer-Encoding", "base64")
		buf.WriteString("\r\n")
		writeBase64(&buf, msg.Text)
		return buf.Bytes()
	}

	writeHeader(&buf, "Content-Type", fmt.Sprintf(`multipart/alternative; boundary="%s"`, boundary))
	buf.WriteString("\r\n")

	for _, part := range []struct{ ct, body string }{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	} {
		buf.WriteString("--" + boundary + "\r\n")
		writeHeader(&buf, "Content-Type", part.ct+`; charset="UTF-8"`)
		writeHeader(&buf, "Content-Transfer-Encoding", "base64")
		buf.WriteString("\r\n")
		writeBase64(&buf, part.body)
	}
	buf.WriteString("--" + boundary + "--\r\n")

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	buf.WriteString(key + ": " + value + "\r\n")
}

// writeBase64 wraps encoded lines at 76 characters
func writeBase64(buf *bytes.Buffer, body string) {
	enc := base64.StdEncoding.EncodeToString([]byte(body))
	for len(enc) > 76 {
		buf.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	buf.WriteString(enc + "\r\n")
}

func randomBoundary() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "praxihub-" + hex.EncodeToString(b)
}
