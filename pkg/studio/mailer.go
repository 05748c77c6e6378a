package studio

import (
	"context"

	"github.com/atelierhq/atelier/pkg/observability"
)

// LogMailer logs invitations instead of sending email. Used in
// development and tests.
type LogMailer struct {
	logger *observability.Logger
}

// NewLogMailer creates a mailer that logs deliveries
func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendInvitation logs the invitation. The token is not logged.
func (m *LogMailer) SendInvitation(ctx context.Context, email, token string) error {
	m.logger.WithField("email", email).Info("invitation email queued")
	return nil
}
