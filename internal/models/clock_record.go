package models

import "time"

// SessionStatus is derived from ClockOut and never stored.
type SessionStatus string

const (
	SessionIn  SessionStatus = "in"
	SessionOut SessionStatus = "out"
)

// DefaultBreakMinutes is the column default applied to new sessions.
const DefaultBreakMinutes = 30

// ClockRecord is one clock-in/clock-out interval. A nil ClockOut means the
// session is open; at most one open session exists per user.
type ClockRecord struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `json:"-"`

	ClockIn      time.Time  `gorm:"not null;index" json:"clock_in"`
	ClockOut     *time.Time `json:"clock_out"`
	BreakMinutes int        `gorm:"not null;default:30" json:"break_minutes"`
	Notes        string     `gorm:"type:text" json:"notes"`
	Location     string     `gorm:"size:255;index" json:"location"`

	ModifiedBy *uint `json:"modified_by"`
	Modifier   *User `gorm:"foreignKey:ModifiedBy" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ClockRecord) TableName() string { return "clock_records" }

// SessionState is the tagged view of a record: Open, or Closed with its end
// and break.
type SessionState struct {
	Open         bool
	End          time.Time
	BreakMinutes int
}

func (r ClockRecord) State() SessionState {
	if r.ClockOut == nil {
		return SessionState{Open: true}
	}
	return SessionState{End: *r.ClockOut, BreakMinutes: r.BreakMinutes}
}

func (r ClockRecord) Status() SessionStatus {
	if r.State().Open {
		return SessionIn
	}
	return SessionOut
}
