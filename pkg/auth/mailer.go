package auth

import (
	"context"

	"github.com/atelierhq/atelier/pkg/observability"
)

// Mailer delivers magic-link emails
type Mailer interface {
	SendMagicLink(ctx context.Context, email, token string) error
}

// LogMailer logs deliveries instead of sending email. Used in development
// and tests.
type LogMailer struct {
	logger *observability.Logger
}

// NewLogMailer creates a mailer that logs deliveries
func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendMagicLink logs the delivery. The token is not logged.
func (m *LogMailer) SendMagicLink(ctx context.Context, email, token string) error {
	m.logger.WithField("email", email).Info("magic link email queued")
	return nil
}
