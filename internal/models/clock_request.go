package models

import "time"

type RequestType string
type RequestStatus string

const (
	RequestClockIn  RequestType = "clock_in"
	RequestClockOut RequestType = "clock_out"

	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (t RequestType) Valid() bool {
	return t == RequestClockIn || t == RequestClockOut
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// ClockRequest is a retroactive ("make-up punch") request.
type ClockRequest struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `json:"-"`

	Type        RequestType   `gorm:"column:request_type;type:varchar(20);not null" json:"request_type"`
	RequestDate string        `gorm:"type:varchar(10);not null;index" json:"request_date"` // YYYY-MM-DD
	RequestTime string        `gorm:"type:varchar(5);not null" json:"request_time"`        // HH:MM
	Reason      string        `gorm:"type:text;not null" json:"reason"`
	Status      RequestStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`

	AdminID    *uint      `json:"admin_id"`
	Admin      *User      `gorm:"foreignKey:AdminID" json:"-"`
	AdminNote  string     `gorm:"type:text" json:"admin_note"`
	ReviewedAt *time.Time `json:"reviewed_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
