package contract

import (
	"context"
	"poseidon/internal/dto"
)

// Executor places and closes orders. The tracker calls each method at most once per logical event.
type Executor interface {
	PlaceOrder(ctx context.Context, req dto.OrderRequest) (*dto.PlacedOrder, error)
	PartialClose(ctx context.Context, symbol string, qty float64) error
	CloseAll(ctx context.Context, symbol string) error
}

type PositionSource interface {
	ListOpenPositions(ctx context.Context) ([]dto.OpenPosition, error)
}

// Broker is an executor that can also report its open positions.
type Broker interface {
	Executor
	PositionSource
}
