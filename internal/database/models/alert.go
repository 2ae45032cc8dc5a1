package models

import "github.com/google/uuid"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

type Alert struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	EquipmentID    uuid.UUID `gorm:"type:uuid;index;not null" json:"equipment_id"`

	Title       string      `gorm:"not null" json:"title"`
	Description string      `json:"description,omitempty"`
	Severity    Severity    `gorm:"not null;index" json:"severity"`
	Status      AlertStatus `gorm:"not null;index;default:'open'" json:"status"`

	RaisedBy   uuid.UUID  `gorm:"type:uuid" json:"raised_by"`
	ResolvedAt int64      `json:"resolved_at,omitempty"`
	ResolvedBy *uuid.UUID `gorm:"type:uuid" json:"resolved_by,omitempty"`
	Resolution string     `gorm:"type:text" json:"resolution,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Equipment    *Equipment    `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}
