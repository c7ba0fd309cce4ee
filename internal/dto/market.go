package dto

// ScannerRow is one contract from the exchange-wide ticker sweep.
type ScannerRow struct {
	Symbol       string  `json:"symbol"`
	BaseCurrency string  `json:"base_currency"`
	Price        float64 `json:"price"`
	QuoteVolume  float64 `json:"quote_volume"`
	ChangePct24h float64 `json:"change_pct_24h"`
	LotSize      float64 `json:"lot_size"`
	Multiplier   float64 `json:"multiplier"`
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type PriceRange struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

func (r PriceRange) Valid() bool {
	return r.High > 0 && r.Low > 0 && r.High > r.Low
}

// TASnapshot is the technical-analysis reading for one symbol.
type TASnapshot struct {
	Symbol      string          `json:"symbol"`
	Price       float64         `json:"price"`
	RSI         float64         `json:"rsi"`
	MACDSignal  MACDSignal      `json:"macd_signal"`
	BBSignal    BBSignal        `json:"bb_signal"`
	VolumeSpike bool            `json:"volume_spike"`
	TrapWarning bool            `json:"trap_warning"`
	Signal      SignalDirection `json:"signal"`
	Range24h    PriceRange      `json:"range_24h"`
	Range7d     PriceRange      `json:"range_7d"`
	Range30d    PriceRange      `json:"range_30d"`
	Category    Category        `json:"category"`
}

type TrendPhase struct {
	Phase      Phase   `json:"phase"`
	Change1h   float64 `json:"change_1h"`
	Velocity   float64 `json:"velocity"`
	Histogram  float64 `json:"histogram"`
	PriorRise  float64 `json:"prior_rise"`
	BBBreakout string  `json:"bb_breakout"`
	Reason     string  `json:"reason"`
}

type ConfidenceResult struct {
	Score     float64            `json:"score"`
	Bias      SignalDirection    `json:"bias"`
	Breakdown map[string]float64 `json:"breakdown"`
}
