package repository

import (
	"context"
	"fmt"
	"net/http"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/pkg/httpclient"
	"poseidon/pkg/logger"
)

// HTTPExecutor forwards execution intents to the bridge service that holds exchange credentials.
type HTTPExecutor struct {
	httpClient httpclient.HTTPClient
	log        *logger.Logger
}

func NewHTTPExecutor(cfg *config.Config, log *logger.Logger) *HTTPExecutor {
	return newHTTPExecutor(httpclient.New(cfg.Executor.BaseURL, cfg.Executor.Timeout), log)
}

func newHTTPExecutor(client httpclient.HTTPClient, log *logger.Logger) *HTTPExecutor {
	return &HTTPExecutor{httpClient: client, log: log}
}

func (e *HTTPExecutor) check(ctx context.Context, op string, resp *httpclient.BaseResponse, success bool, msg string) error {
	if resp.StatusCode != http.StatusOK {
		e.log.WarnContext(ctx, "Bridge returned Non-OK status",
			logger.StringField("op", op),
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return fmt.Errorf("%w: bridge %s status %d", dto.ErrUpstream, op, resp.StatusCode)
	}
	if !success {
		return fmt.Errorf("%w: bridge %s: %s", dto.ErrUpstream, op, msg)
	}
	return nil
}

func (e *HTTPExecutor) PlaceOrder(ctx context.Context, req dto.OrderRequest) (*dto.PlacedOrder, error) {
	var result dto.BridgeResponse[dto.PlacedOrder]
	resp, err := e.httpClient.Post(ctx, "/api/place-trade", req, nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to place order for %s: %w", req.Symbol, err)
	}
	if err := e.check(ctx, "place-trade", resp, result.Success, result.Error); err != nil {
		return nil, err
	}
	placed := result.Data
	if placed.Symbol == "" {
		placed.Symbol = req.Symbol
	}
	if placed.Side == "" {
		placed.Side = req.Side
	}
	if placed.LotSize == 0 {
		placed.LotSize = req.LotSize
	}
	if placed.MinSize == 0 {
		placed.MinSize = req.MinSize
	}
	return &placed, nil
}

func (e *HTTPExecutor) PartialClose(ctx context.Context, symbol string, qty float64) error {
	var result dto.BridgeResponse[any]
	resp, err := e.httpClient.Post(ctx, "/api/partial-close", dto.BridgePartialCloseRequest{Symbol: symbol, Qty: qty}, nil, &result)
	if err != nil {
		return fmt.Errorf("failed to partially close %s: %w", symbol, err)
	}
	return e.check(ctx, "partial-close", resp, result.Success, result.Error)
}

func (e *HTTPExecutor) CloseAll(ctx context.Context, symbol string) error {
	var result dto.BridgeResponse[any]
	resp, err := e.httpClient.Post(ctx, "/api/close-trade", dto.BridgeCloseRequest{Symbol: symbol}, nil, &result)
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", symbol, err)
	}
	return e.check(ctx, "close-trade", resp, result.Success, result.Error)
}

func (e *HTTPExecutor) ListOpenPositions(ctx context.Context) ([]dto.OpenPosition, error) {
	var result dto.BridgeResponse[[]dto.OpenPosition]
	resp, err := e.httpClient.Get(ctx, "/api/positions", nil, nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	if err := e.check(ctx, "positions", resp, result.Success, result.Error); err != nil {
		return nil, err
	}
	return result.Data, nil
}
