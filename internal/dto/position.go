package dto

type OpenPosition struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	Margin        float64 `json:"margin"`
	Leverage      float64 `json:"leverage"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Size       float64 `json:"size"`
	Leverage   float64 `json:"leverage"`
	RefPrice   float64 `json:"ref_price"`
	LotSize    float64 `json:"lot_size"`
	MinSize    float64 `json:"min_size"`
	Confidence float64 `json:"confidence"`
}

type PlacedOrder struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	Size       float64 `json:"size"`
	Margin     float64 `json:"margin"`
	LotSize    float64 `json:"lot_size"`
	MinSize    float64 `json:"min_size"`
}
