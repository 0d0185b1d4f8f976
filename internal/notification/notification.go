// Package notification defines the transport the command pipeline
// consumes to send templated messages (spec §6.2): send(template_id,
// recipient, data) for email/SMS. The transport itself is an external
// collaborator out of this core's scope; this package trims the
// teacher's 459-line worker-pool notification.Service (push/SMS/email
// provider fan-out, retry queue, delivery receipts) down to the
// interface plus a logging stub, since nothing in SPEC_FULL.md needs a
// concrete delivery provider — only something that satisfies Sender.
package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender is the notification transport interface (spec §6.2).
type Sender interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]any) error
}

// LoggingSender is a Sender that records the send instead of delivering
// it — suitable for development and for the audit trail of what would
// have been sent.
type LoggingSender struct {
	log zerolog.Logger
}

func NewLoggingSender(log zerolog.Logger) *LoggingSender {
	return &LoggingSender{log: log}
}

func (s *LoggingSender) Send(ctx context.Context, templateID, recipient string, data map[string]any) error {
	s.log.Info().
		Str("template_id", templateID).
		Str("recipient", recipient).
		Interface("data", data).
		Msg("notification")
	return nil
}
