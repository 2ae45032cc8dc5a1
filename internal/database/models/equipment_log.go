package models

import "github.com/google/uuid"

type LogKind string

const (
	LogKindInspection LogKind = "inspection"
	LogKindService    LogKind = "service"
	LogKindRepair     LogKind = "repair"
	LogKindReading    LogKind = "reading"
	LogKindNote       LogKind = "note"
)

// EquipmentLog is an append-only entry in an equipment's history.
type EquipmentLog struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	EquipmentID    uuid.UUID `gorm:"type:uuid;index;not null" json:"equipment_id"`
	AuthorID       uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`

	Kind    LogKind `gorm:"not null;index" json:"kind"`
	Summary string  `gorm:"not null" json:"summary"`
	Details string  `gorm:"type:text" json:"details,omitempty"`

	// Readings (e.g. hours meter, pressure) as JSON
	Readings string `gorm:"type:text;default:'{}'" json:"readings,omitempty"`

	PerformedAt int64 `gorm:"index" json:"performed_at"`

	// Relationships
	Equipment *Equipment `gorm:"foreignKey:EquipmentID" json:"-"`
}

func (EquipmentLog) TableName() string {
	return "equipment_logs"
}
