package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

type TradeJournal struct {
	ID         uint        `gorm:"primaryKey"`
	Symbol     string      `gorm:"type:varchar(32);not null;index"`
	Side       string      `gorm:"type:varchar(8);not null"`
	Status     TradeStatus `gorm:"type:varchar(16);not null;index"`
	EntryPrice float64     `gorm:"not null"`
	ExitPrice  sql.NullFloat64
	Size       float64 `gorm:"not null"`
	Margin     float64
	Confidence float64
	Policy     string `gorm:"type:varchar(16)"`
	FiredSteps int
	MaxRoi     float64
	FinalRoi   sql.NullFloat64
	ExitReason sql.NullString `gorm:"type:varchar(32)"`
	State      datatypes.JSON `gorm:"type:jsonb"`
	OpenedAt   time.Time      `gorm:"not null"`
	ClosedAt   sql.NullTime
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (TradeJournal) TableName() string {
	return "trade_journals"
}

type GetTradeJournalParam struct {
	Symbol *string
	Status *TradeStatus
	Limit  *int
}
