package tasks

import (
	"context"
	"log/slog"
)

// Mailer delivers a rendered invitation email. Rendering and transport are
// outside this service; the log mailer records what would have been sent.
type Mailer interface {
	Send(ctx context.Context, kind string, msg InvitationEmailPayload) error
}

type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, kind string, msg InvitationEmailPayload) error {
	m.logger.InfoContext(ctx, "email",
		"kind", kind,
		"to", msg.To,
		"org_id", msg.OrganizationID,
		"organization", msg.OrganizationName,
		"role", msg.Role,
		"invitation_id", msg.InvitationID,
		"accept_url", msg.AcceptURL,
	)
	return nil
}
