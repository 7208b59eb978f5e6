package model

import (
	"time"
)

// BanRecord is the per-identity ban entry. Permanent bans have no BannedUntil.
type BanRecord struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UID         string     `gorm:"uniqueIndex;type:varchar(36);not null" json:"uid"`
	Email       string     `gorm:"type:varchar(255)" json:"email"`
	DisplayName string     `gorm:"type:varchar(100)" json:"displayName"`
	BannedAt    time.Time  `gorm:"not null" json:"bannedAt"`
	BannedBy    string     `gorm:"type:varchar(36)" json:"bannedBy"`
	Reason      string     `gorm:"type:varchar(500)" json:"reason"`
	Permanent   bool       `gorm:"not null;default:false" json:"permanent"`
	BannedUntil *time.Time `json:"bannedUntil,omitempty"`
}

// TableName specifies the table name for BanRecord
func (BanRecord) TableName() string {
	return "bans"
}

// IsExpired reports whether a temporary ban's end time has passed
func (b *BanRecord) IsExpired(now time.Time) bool {
	if b.Permanent || b.BannedUntil == nil {
		return false
	}
	return now.After(*b.BannedUntil)
}
