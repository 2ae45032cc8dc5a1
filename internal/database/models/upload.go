package models

import "github.com/google/uuid"

// Upload is a document attached to an organization (manuals, photos, certificates).
// The blob itself lives in object storage, age-encrypted, under StorageKey.
type Upload struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	EquipmentID    *uuid.UUID `gorm:"type:uuid;index" json:"equipment_id,omitempty"`
	UploadedBy     uuid.UUID  `gorm:"type:uuid;not null" json:"uploaded_by"`

	FileName    string `gorm:"not null" json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	SHA256      string `gorm:"size:64" json:"sha256"`

	StorageKey string `gorm:"uniqueIndex;not null" json:"-"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Equipment    *Equipment    `gorm:"foreignKey:EquipmentID" json:"-"`
}

func (Upload) TableName() string {
	return "uploads"
}
