package models

import "time"

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName     string     `gorm:"size:100;not null" json:"full_name"`
	Role         UserRole   `gorm:"type:varchar(20);not null;default:user" json:"role"`
	Status       UserStatus `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActiveAdmin reports whether the user counts toward the active admin quorum.
func (u User) IsActiveAdmin() bool {
	return u.Role == RoleAdmin && u.Status == StatusActive
}
