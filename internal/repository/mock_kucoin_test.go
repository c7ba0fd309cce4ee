package repository

import (
	"context"
	"poseidon/internal/dto"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockKucoin struct {
	mock.Mock
}

func (m *mockKucoin) GetActiveContracts(ctx context.Context) ([]dto.ScannerRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]dto.ScannerRow)
	return rows, args.Error(1)
}

func (m *mockKucoin) GetTicker(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockKucoin) GetKlines(ctx context.Context, symbol string, granularityMinutes int, from, to time.Time) ([]dto.Candle, error) {
	args := m.Called(ctx, symbol, granularityMinutes, from, to)
	candles, _ := args.Get(0).([]dto.Candle)
	return candles, args.Error(1)
}
