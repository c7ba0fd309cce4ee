package dto

import "time"

type EvaluateOptions struct {
	Manual bool `json:"manual"`
}

// SignalAnalysisRecord is produced once per pipeline pass and discarded after it is consumed.
type SignalAnalysisRecord struct {
	Symbol       string          `json:"symbol"`
	Signal       SignalDirection `json:"signal"`
	Confidence   float64         `json:"confidence"`
	RSI          float64         `json:"rsi"`
	MACDSignal   MACDSignal      `json:"macd_signal"`
	BBSignal     BBSignal        `json:"bb_signal"`
	Volume       float64         `json:"volume"`
	Price        float64         `json:"price"`
	TrapWarning  bool            `json:"trap_warning"`
	VolumeSpike  bool            `json:"volume_spike"`
	OpenPosition bool            `json:"open_position"`
	Skipped      bool            `json:"skipped"`
	SkipReason   string          `json:"skip_reason,omitempty"`
	Phase        Phase           `json:"phase,omitempty"`
	Category     Category        `json:"category"`
	Manual       bool            `json:"manual"`
	LotSize      float64         `json:"lot_size"`
	EvaluatedAt  time.Time       `json:"evaluated_at"`
}
