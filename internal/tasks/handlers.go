package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// StaleExpirer flips PENDING invitations whose deadline has passed to EXPIRED.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type Handler struct {
	logger  *slog.Logger
	mailer  Mailer
	expirer StaleExpirer
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, mailer Mailer, expirer StaleExpirer) *Handler {
	return &Handler{
		logger:  logger,
		mailer:  mailer,
		expirer: expirer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitationCreated, h.HandleInvitationEmail)
	mux.HandleFunc(TypeInvitationAccepted, h.HandleInvitationEmail)
	mux.HandleFunc(TypeInvitationCanceled, h.HandleInvitationEmail)
	mux.HandleFunc(TypeExpireInvitations, h.HandleExpireInvitations)
}

func (h *Handler) HandleInvitationEmail(ctx context.Context, t *asynq.Task) error {
	var payload InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("invitation email %s has no recipient: %w", payload.InvitationID, asynq.SkipRetry)
	}

	if err := h.mailer.Send(ctx, t.Type(), payload); err != nil {
		h.logger.Error("failed to send email",
			"kind", t.Type(),
			"invitation_id", payload.InvitationID,
			"error", err,
		)
		return err
	}
	return nil
}

func (h *Handler) HandleExpireInvitations(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	n, err := h.expirer.ExpireStale(ctx, h.now())
	if err != nil {
		h.logger.Error("invitation sweep failed", "error", err)
		return err
	}

	h.logger.Info("invitation sweep completed",
		"expired", n,
		"duration", time.Since(start),
	)
	return nil
}
