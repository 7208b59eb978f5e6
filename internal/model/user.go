package model

import (
	"time"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Plans
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Account statuses
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// Sign-in methods
const (
	SignTypeCredential = "credential"
	SignTypeGoogle     = "google"
)

// UserAccount is a registered identity and its profile
type UserAccount struct {
	UID          string     `gorm:"primaryKey;type:varchar(36)" json:"uid"`
	DisplayName  string     `gorm:"type:varchar(100)" json:"displayName"`
	Email        string     `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	Phone        string     `gorm:"type:varchar(32)" json:"phone,omitempty"`
	PhotoURL     string     `gorm:"type:varchar(1024)" json:"photoUrl,omitempty"`
	Role         string     `gorm:"type:varchar(10);not null;default:user" json:"role"`
	Plan         string     `gorm:"type:varchar(10);not null;default:free" json:"plan"`
	Status       string     `gorm:"type:varchar(10);not null;default:active;index" json:"status"`
	SignType     string     `gorm:"type:varchar(16);not null" json:"signType"`
	PasswordHash string     `gorm:"type:varchar(100)" json:"-"`
	GoogleID     string     `gorm:"type:varchar(64);index" json:"-"`
	BannedReason string     `gorm:"type:varchar(500)" json:"bannedReason,omitempty"`
	BannedUntil  *time.Time `json:"bannedUntil,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	// SessionVersion is bumped to revoke every session issued before it
	SessionVersion int `gorm:"not null;default:0" json:"-"`
}

// TableName specifies the table name for UserAccount
func (UserAccount) TableName() string {
	return "users"
}

// IsAdmin reports whether the account has the admin role
func (u *UserAccount) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsBanned reports whether the account status is banned
func (u *UserAccount) IsBanned() bool {
	return u.Status == StatusBanned
}
