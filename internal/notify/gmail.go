package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender delivers notifications through the Gmail API
type GmailSender struct {
	service *gmail.Service
	from    string
	logger  zerolog.Logger
}

// NewGmailSender creates a sender using credentials at credentialsPath
func NewGmailSender(ctx context.Context, credentialsPath, from string, logger zerolog.Logger) (*GmailSender, error) {
	service, err := gmail.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailSender{service: service, from: from, logger: logger}, nil
}

// Send delivers the message, attaching the invite as text/calendar
func (s *GmailSender) Send(ctx context.Context, msg Message) error {
	raw := buildMIME(s.from, msg)

	_, err := s.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send notification to %s: %w", msg.To, err)
	}

	s.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification sent")
	return nil
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	boundary := "voicebridge-invite"

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.Invite == nil {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/calendar; method=REQUEST; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"invite.ics\"\r\n\r\n")
	b.Write(msg.Invite.ICS())
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// LogSender is a no-op Sender for development; it only logs
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification suppressed (log sender)")
	return nil
}
