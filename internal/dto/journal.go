package dto

import "time"

type JournalQuery struct {
	Symbol string `query:"symbol" validate:"omitempty,max=32"`
	Status string `query:"status" validate:"omitempty,oneof=open closed"`
	Limit  int    `query:"limit" validate:"gte=0,lte=500"`
}

// TradeJournalEntry is the API view of one journaled trade.
type TradeJournalEntry struct {
	ID         uint       `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	Status     string     `json:"status"`
	Policy     string     `json:"policy,omitempty"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	Size       float64    `json:"size"`
	Margin     float64    `json:"margin"`
	Confidence float64    `json:"confidence"`
	FiredSteps int        `json:"fired_steps"`
	MaxRoi     float64    `json:"max_roi"`
	FinalRoi   *float64   `json:"final_roi,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}
