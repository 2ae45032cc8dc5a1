package models

import "github.com/google/uuid"

type EquipmentStatus string

const (
	EquipmentStatusOperational EquipmentStatus = "operational"
	EquipmentStatusMaintenance EquipmentStatus = "maintenance"
	EquipmentStatusDown        EquipmentStatus = "down"
	EquipmentStatusRetired     EquipmentStatus = "retired"
)

type Equipment struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`

	Name         string          `gorm:"not null" json:"name"`
	SerialNumber string          `gorm:"index" json:"serial_number,omitempty"`
	Model        string          `json:"model,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Location     string          `json:"location,omitempty"`
	Status       EquipmentStatus `gorm:"not null;index;default:'operational'" json:"status"`

	InstalledAt       int64 `json:"installed_at,omitempty"`
	LastServicedAt    int64 `json:"last_serviced_at,omitempty"`
	ServiceIntervalDs int   `gorm:"default:0" json:"service_interval_days"`

	// Free-form attributes (JSON)
	Metadata string `gorm:"type:text;default:'{}'" json:"metadata,omitempty"`

	// Relationships
	Organization *Organization  `gorm:"foreignKey:OrganizationID" json:"-"`
	Logs         []EquipmentLog `gorm:"foreignKey:EquipmentID" json:"-"`
	Alerts       []Alert        `gorm:"foreignKey:EquipmentID" json:"-"`
}

func (Equipment) TableName() string {
	return "equipment"
}
