package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationTrade  = "TRADE"
	NotificationPrice  = "PRICE"
	NotificationSystem = "SYSTEM"
)

type Notification struct {
	ID      uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  uint64         `gorm:"not null;index" json:"userId"`
	Type    string         `gorm:"type:varchar(20);not null" json:"type"`
	Message string         `gorm:"type:text;not null" json:"message"`
	Data    datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"`
	Read    bool           `gorm:"not null;default:false;index" json:"read"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}
