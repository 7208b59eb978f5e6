package model

import (
	"time"
)

// ShortLink maps a slug to its destination URL
type ShortLink struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Title               string     `gorm:"type:varchar(100);not null" json:"title"`
	LongURL             string     `gorm:"type:varchar(2048);not null" json:"longUrl"`
	Slug                string     `gorm:"uniqueIndex;type:varchar(25);not null" json:"shortUrl"`
	Clicks              uint64     `gorm:"not null;default:0" json:"clicks"`
	IsPasswordProtected bool       `gorm:"not null;default:false" json:"isPasswordProtected"`
	HashedPassword      string     `gorm:"type:varchar(100)" json:"-"`
	UID                 string     `gorm:"index;type:varchar(36);not null" json:"uid"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	LastClicked         *time.Time `json:"lastClicked"`
}

// TableName specifies the table name for ShortLink
func (ShortLink) TableName() string {
	return "short_links"
}

// OwnedBy reports whether uid owns the link
func (l *ShortLink) OwnedBy(uid string) bool {
	return uid != "" && l.UID == uid
}
