package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/rbac"
	"gorm.io/gorm"
)

type Organization struct {
	Base
	Name         string `gorm:"not null" json:"name"`
	Slug         string `gorm:"uniqueIndex;not null" json:"slug"`
	Plan         string `gorm:"default:'free'" json:"plan"` // free, pro, enterprise
	MaxUsers     int    `gorm:"default:5" json:"max_users"`
	MaxEquipment int    `gorm:"default:100" json:"max_equipment"`

	// Relationships
	Memberships []OrganizationMembership `gorm:"foreignKey:OrganizationID" json:"-"`
	Equipment   []Equipment              `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

// OrganizationMembership grants a user a role within one organization.
// Rows are never physically deleted; IsDeleted marks removal.
type OrganizationMembership struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_org" json:"user_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_org;index" json:"organization_id"`
	Role           rbac.Role `gorm:"type:varchar(32);not null" json:"role"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	IsVerified     bool      `gorm:"not null;default:false" json:"is_verified"`
	IsDeleted      bool      `gorm:"not null;default:false;index" json:"is_deleted"`
	JoinedAt       time.Time `gorm:"not null" json:"joined_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relationships
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (OrganizationMembership) TableName() string {
	return "organization_memberships"
}

func (m *OrganizationMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return nil
}

// Usable reports whether the membership can back an authorization decision.
func (m *OrganizationMembership) Usable() bool {
	return m != nil && m.IsActive && !m.IsDeleted
}
