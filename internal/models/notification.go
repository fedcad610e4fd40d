package models

import "time"

type NotificationType string

const (
	NotifyClockRequest         NotificationType = "clock_request"
	NotifyClockRequestApproved NotificationType = "clock_request_approved"
	NotifyClockRequestRejected NotificationType = "clock_request_rejected"
	NotifySystem               NotificationType = "system"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	User      User             `json:"-"`
	Type      NotificationType `gorm:"type:varchar(40);not null;index" json:"type"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	RelatedID *uint            `gorm:"index" json:"related_id"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	ReadAt    *time.Time       `json:"read_at"`
}
