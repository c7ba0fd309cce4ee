package dto

// BridgeResponse is the envelope returned by the execution bridge service.
type BridgeResponse[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data"`
}

type BridgePartialCloseRequest struct {
	Symbol string  `json:"symbol"`
	Qty    float64 `json:"qty"`
}

type BridgeCloseRequest struct {
	Symbol string `json:"symbol"`
}
