package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// AuditLog is append-only; nothing in the service updates or deletes rows.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// nil for actions taken by the system, such as bootstrap seeding
	UserID *uint `gorm:"index" json:"user_id"`
	User   *User `json:"-"`

	Entity    string         `gorm:"size:50;not null" json:"entity"` // table name, "clock_records" or "users"
	EntityID  uint           `json:"entity_id"`
	Action    string         `gorm:"size:50;not null;index" json:"action"`
	OldValues datatypes.JSON `json:"old_values,omitempty"`
	NewValues datatypes.JSON `json:"new_values,omitempty"`
	IPAddress string         `gorm:"size:45" json:"ip_address"`
}
