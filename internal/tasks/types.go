package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeInvitationCreated  = "email:invitation_created"
	TypeInvitationAccepted = "email:invitation_accepted"
	TypeInvitationCanceled = "email:invitation_canceled"
	TypeExpireInvitations  = "invitation:expire_stale"
)

// InvitationEmailPayload carries everything a mailer needs; handlers never
// reload the invitation, so a row that changed state after enqueue is not an error.
type InvitationEmailPayload struct {
	InvitationID     uuid.UUID `json:"invitation_id"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	To               string    `json:"to"`
	InviterName      string    `json:"inviter_name,omitempty"`
	Role             string    `json:"role"`
	Message          string    `json:"message,omitempty"`
	AcceptURL        string    `json:"accept_url,omitempty"`
	ExpiresAt        int64     `json:"expires_at"`
}

func NewInvitationCreatedTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	return newEmailTask(TypeInvitationCreated, payload)
}

func NewInvitationAcceptedTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	return newEmailTask(TypeInvitationAccepted, payload)
}

func NewInvitationCanceledTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	return newEmailTask(TypeInvitationCanceled, payload)
}

func newEmailTask(typ string, payload InvitationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, asynq.MaxRetry(5), asynq.Queue("default")), nil
}

// ExpireInvitationsPayload is empty - the sweep covers every organization
type ExpireInvitationsPayload struct{}

func NewExpireInvitationsTask() *asynq.Task {
	return asynq.NewTask(TypeExpireInvitations, nil, asynq.Queue("low"), asynq.MaxRetry(1))
}
