package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/rbac"
	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationCanceled InvitationStatus = "CANCELED"
)

// Terminal reports whether no further transition is allowed from s.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// Invitation is a single-use, time-bounded offer of membership.
// The partial unique index allows one PENDING invitation per (organization, email).
type Invitation struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Token            string           `gorm:"uniqueIndex;not null" json:"-"`
	Email            string           `gorm:"not null;index;uniqueIndex:idx_invitations_pending,where:status = 'PENDING'" json:"email"`
	Role             rbac.Role        `gorm:"type:varchar(32);not null" json:"role"`
	OrganizationID   uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_invitations_pending,where:status = 'PENDING'" json:"organization_id"`
	InvitedByUserID  uuid.UUID        `gorm:"type:uuid;not null" json:"invited_by_user_id"`
	Message          string           `gorm:"type:text" json:"message,omitempty"`
	Status           InvitationStatus `gorm:"type:varchar(16);not null;index;default:'PENDING'" json:"status"`
	ExpiresAt        time.Time        `gorm:"not null;index" json:"expires_at"`
	AcceptedByUserID *uuid.UUID       `gorm:"type:uuid" json:"accepted_by_user_id,omitempty"`
	RespondedAt      *time.Time       `json:"responded_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	InvitedBy    *User         `gorm:"foreignKey:InvitedByUserID" json:"-"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the invitation's deadline has passed at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
