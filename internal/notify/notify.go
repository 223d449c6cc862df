// Package notify delivers outbound e-mail. Messages are queued on an Outbox
// and sent by a single background worker.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Message is a plain-text e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ConfirmationLink builds the link a user follows to confirm their address.
func ConfirmationLink(baseURL string, userID uuid.UUID, token string) string {
	return strings.TrimSuffix(baseURL, "/") + "/api/users/" + userID.String() + "/confirm?token=" + url.QueryEscape(token)
}

// ConfirmationMessage is sent after registration and after an address change.
func ConfirmationMessage(baseURL string, userID uuid.UUID, username, email, token string) Message {
	link := ConfirmationLink(baseURL, userID, token)
	return Message{
		To:      email,
		Subject: "Confirm your e-mail address",
		Body: fmt.Sprintf("Hello %s,\n\nplease confirm your e-mail address by opening the link below:\n\n%s\n\nIf you did not sign up, ignore this message.\n",
			username, link),
	}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail not sent, smtp disabled", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
