package model

import (
	"time"
)

// ClickEvent records one resolved redirect. Rows are append-only.
type ClickEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	URLID     int64     `gorm:"index;not null" json:"urlId,string"`
	UserID    *string   `gorm:"type:varchar(36)" json:"userId"`
	UserEmail *string   `gorm:"type:varchar(255)" json:"userEmail"`
	ClickedAt time.Time `gorm:"index;not null" json:"clickedAt"`
	UserAgent string    `gorm:"type:varchar(512)" json:"userAgent,omitempty"`
	IP        string    `gorm:"type:varchar(45)" json:"ip,omitempty"`
	ShortURL  string    `gorm:"type:varchar(25)" json:"shortUrl"`
	LongURL   string    `gorm:"type:varchar(2048)" json:"longUrl"`
	URLTitle  string    `gorm:"type:varchar(100)" json:"urlTitle"`
}

// TableName specifies the table name for ClickEvent
func (ClickEvent) TableName() string {
	return "click_events"
}
