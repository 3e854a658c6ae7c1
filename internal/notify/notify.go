// Package notify delivers templated notifications to registrants.
package notify

import (
	"context"
	"log/slog"
)

// Template names a notification template.
type Template string

const (
	TemplateRegistration         Template = "registration"
	TemplateRolesChanged         Template = "roles_changed"
	TemplateSubeventsChanged     Template = "subevents_changed"
	TemplateRegistrationCanceled Template = "registration_canceled"
	TemplateMaturityReminder     Template = "maturity_reminder"
)

// Message is one templated notification.
type Message struct {
	Recipient string            `json:"recipient"`
	Template  Template          `json:"template"`
	Variables map[string]string `json:"variables"`
}

// Sender delivers a Message.
type Sender interface {
	SendTemplated(ctx context.Context, msg Message) error
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

// SendTemplated logs msg at info level.
func (s LogSender) SendTemplated(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "notification",
		"recipient", msg.Recipient,
		"template", string(msg.Template),
		"variables", msg.Variables,
	)
	return nil
}
