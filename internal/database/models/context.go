package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/rbac"
)

// OrganizationContext is a user's currently selected organization. Role is a cached
// copy of the membership role and is revalidated on every authorization.
type OrganizationContext struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Role           rbac.Role `gorm:"type:varchar(32);not null" json:"role"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (OrganizationContext) TableName() string {
	return "organization_contexts"
}
