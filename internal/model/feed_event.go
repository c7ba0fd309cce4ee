package model

import (
	"time"

	"gorm.io/datatypes"
)

type FeedEvent struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	Kind      string         `gorm:"type:varchar(32);not null;index"`
	Level     string         `gorm:"type:varchar(8);not null"`
	Symbol    string         `gorm:"type:varchar(32);index"`
	Msg       string         `gorm:"type:text"`
	Data      datatypes.JSON `gorm:"type:jsonb"`
	Ts        time.Time      `gorm:"not null;index"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (FeedEvent) TableName() string {
	return "feed_events"
}
