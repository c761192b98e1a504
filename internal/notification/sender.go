package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sender delivers one message. Delivery is at-least-once from the caller's
// perspective; retried deliveries are harmless because state transitions are
// idempotent.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Default in
// development and tests.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "notification (log sender)",
		"kind", string(msg.Kind),
		"recipient", msg.Recipient,
		"endorsement_id", msg.EndorsementID,
	)
	return nil
}

// SMTPSender delivers over plain SMTP. Transport-level concerns (DKIM,
// provider APIs) belong to the mail relay this points at.
type SMTPSender struct {
	Addr          string // host:port
	From          string
	VerifyBaseURL string
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	subject, body := s.render(msg)
	payload := strings.Join([]string{
		"From: " + s.From,
		"To: " + msg.Recipient,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.Addr, nil, s.From, []string{msg.Recipient}, []byte(payload)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) render(msg Message) (subject, body string) {
	name := msg.Name
	if name == "" {
		name = "there"
	}
	switch msg.Kind {
	case KindVerification:
		return "Confirm your endorsement",
			fmt.Sprintf("Hi %s,\r\n\r\nPlease confirm your endorsement within 24 hours:\r\n%s?token=%s\r\n",
				name, s.VerifyBaseURL, msg.Token)
	case KindApproved:
		return "Your endorsement is live",
			fmt.Sprintf("Hi %s,\r\n\r\nYour endorsement has been approved and published.\r\n", name)
	case KindRejected:
		return "About your endorsement",
			fmt.Sprintf("Hi %s,\r\n\r\nYour endorsement was not approved for publication.\r\n", name)
	default:
		return "Notification", ""
	}
}
