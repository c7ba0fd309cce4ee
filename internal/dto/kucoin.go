package dto

// KucoinCodeOK is the success code of the KuCoin response envelope.
const KucoinCodeOK = "200000"

type KucoinResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type KucoinContract struct {
	Symbol         string  `json:"symbol"`
	BaseCurrency   string  `json:"baseCurrency"`
	QuoteCurrency  string  `json:"quoteCurrency"`
	Status         string  `json:"status"`
	LotSize        float64 `json:"lotSize"`
	Multiplier     float64 `json:"multiplier"`
	LastTradePrice float64 `json:"lastTradePrice"`
	TurnoverOf24h  float64 `json:"turnoverOf24h"`
	VolumeOf24h    float64 `json:"volumeOf24h"`
	PriceChgPct    float64 `json:"priceChgPct"`
	MaxLeverage    float64 `json:"maxLeverage"`
}

type KucoinTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Ts     int64  `json:"ts"`
}
