package contract

import (
	"context"
	"poseidon/internal/dto"
	"time"
)

type ScannerSource interface {
	GetScannerRows(ctx context.Context) ([]dto.ScannerRow, error)
	FindRow(ctx context.Context, base string) (*dto.ScannerRow, error)
}

type CandleSource interface {
	GetKlines(ctx context.Context, symbol string, granularityMinutes int, from, to time.Time) ([]dto.Candle, error)
}

type PriceSource interface {
	GetTicker(ctx context.Context, symbol string) (float64, error)
}

// TASource returns nil when no snapshot could be derived.
type TASource interface {
	GetTA(ctx context.Context, symbol string) *dto.TASnapshot
}
