package models

import "time"

// BasketSnapshot stores one session's persisted basket record.
type BasketSnapshot struct {
	SessionKey string     `gorm:"column:session_key;primaryKey;size:128"`
	Payload    string     `gorm:"column:payload;type:text;not null"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (BasketSnapshot) TableName() string {
	return "basket_snapshots"
}
