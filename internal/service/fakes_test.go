package service

import (
	"context"
	"errors"
	"poseidon/internal/dto"
	"sync"
	"time"
)

type fakeExecutor struct {
	mu         sync.Mutex
	partials   []float64
	closes     []string
	orders     []dto.OrderRequest
	partialErr error
	closeErr   error
	block      bool
	positions  []dto.OpenPosition
	posErr     error
}

func (f *fakeExecutor) PlaceOrder(_ context.Context, req dto.OrderRequest) (*dto.PlacedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	return &dto.PlacedOrder{
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: req.RefPrice,
		Size:       req.Size,
		Margin:     req.RefPrice * req.Size / req.Leverage,
		LotSize:    req.LotSize,
		MinSize:    req.MinSize,
	}, nil
}

func (f *fakeExecutor) PartialClose(ctx context.Context, _ string, qty float64) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partialErr != nil {
		f.partials = append(f.partials, -qty)
		return f.partialErr
	}
	f.partials = append(f.partials, qty)
	return nil
}

func (f *fakeExecutor) CloseAll(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closes = append(f.closes, symbol)
	return nil
}

func (f *fakeExecutor) ListOpenPositions(_ context.Context) ([]dto.OpenPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, f.posErr
}

func (f *fakeExecutor) setPositions(positions []dto.OpenPosition, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions, f.posErr = positions, err
}

func (f *fakeExecutor) partialCalls() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.partials...)
}

func (f *fakeExecutor) closeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closes...)
}

func (f *fakeExecutor) orderCalls() []dto.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.OrderRequest(nil), f.orders...)
}

type fakeFeed struct {
	mu     sync.Mutex
	events []dto.FeedEvent
	keys   map[string]bool
}

func (f *fakeFeed) Emit(event dto.FeedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeFeed) EmitThrottled(key string, _ time.Duration, event dto.FeedEvent) bool {
	f.mu.Lock()
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		f.mu.Unlock()
		return false
	}
	f.keys[key] = true
	f.mu.Unlock()
	f.Emit(event)
	return true
}

func (f *fakeFeed) count(kind dto.FeedKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeFeed) last(kind dto.FeedKind) *dto.FeedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Kind == kind {
			e := f.events[i]
			return &e
		}
	}
	return nil
}

var errExchange = errors.New("exchange rejected order")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptr(v float64) *float64 {
	return &v
}
