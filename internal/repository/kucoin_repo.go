package repository

import (
	"context"
	"fmt"
	"net/http"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/pkg/httpclient"
	"poseidon/pkg/logger"
	"poseidon/pkg/ratelimit"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// request weights of the public futures endpoints
const (
	weightContracts = 3
	weightTicker    = 2
	weightKlines    = 3
)

type KucoinRepository interface {
	GetActiveContracts(ctx context.Context) ([]dto.ScannerRow, error)
	GetTicker(ctx context.Context, symbol string) (float64, error)
	GetKlines(ctx context.Context, symbol string, granularityMinutes int, from, to time.Time) ([]dto.Candle, error)
}

type kucoinRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	weightLimiter  *ratelimit.TokenLimiter
}

func NewKucoinRepository(cfg *config.Config, log *logger.Logger) KucoinRepository {
	client := httpclient.New(cfg.Kucoin.BaseURL, cfg.Kucoin.Timeout,
		httpclient.WithRetry(cfg.Kucoin.RetryCount, 500*time.Millisecond))
	return newKucoinRepository(cfg, log, client)
}

func newKucoinRepository(cfg *config.Config, log *logger.Logger, client httpclient.HTTPClient) *kucoinRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.Kucoin.MaxRequestPerMin)
	return &kucoinRepository{
		httpClient:     client,
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 5),
		weightLimiter:  ratelimit.NewTokenLimiter(cfg.Kucoin.WeightQuota, cfg.Kucoin.QuotaWindow),
	}
}

func (r *kucoinRepository) wait(ctx context.Context, weight int) error {
	if err := r.weightLimiter.Wait(ctx, weight); err != nil {
		return err
	}
	return r.requestLimiter.Wait(ctx)
}

func (r *kucoinRepository) checkResponse(ctx context.Context, op string, resp *httpclient.BaseResponse, code, msg string) error {
	if resp.StatusCode != http.StatusOK {
		r.logger.WarnContext(ctx, "KuCoin API returned Non-OK status",
			logger.StringField("op", op),
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return fmt.Errorf("%w: kucoin %s status %d", dto.ErrUpstream, op, resp.StatusCode)
	}
	if code != dto.KucoinCodeOK {
		r.logger.WarnContext(ctx, "KuCoin API returned error code",
			logger.StringField("op", op),
			logger.StringField("code", code),
			logger.StringField("msg", msg))
		return fmt.Errorf("%w: kucoin %s code %s: %s", dto.ErrUpstream, op, code, msg)
	}
	return nil
}

// GetActiveContracts returns every open USDT-margined contract as a scanner row.
func (r *kucoinRepository) GetActiveContracts(ctx context.Context) ([]dto.ScannerRow, error) {
	if err := r.wait(ctx, weightContracts); err != nil {
		return nil, err
	}

	var result dto.KucoinResponse[[]dto.KucoinContract]
	resp, err := r.httpClient.Get(ctx, "/api/v1/contracts/active", nil, nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active contracts from kucoin: %w", err)
	}
	if err := r.checkResponse(ctx, "contracts", resp, result.Code, result.Msg); err != nil {
		return nil, err
	}

	rows := make([]dto.ScannerRow, 0, len(result.Data))
	for _, c := range result.Data {
		if !strings.EqualFold(c.QuoteCurrency, "USDT") {
			continue
		}
		if c.Status != "" && !strings.EqualFold(c.Status, "Open") {
			continue
		}
		rows = append(rows, dto.ScannerRow{
			Symbol:       c.Symbol,
			BaseCurrency: strings.ToUpper(c.BaseCurrency),
			Price:        c.LastTradePrice,
			QuoteVolume:  c.TurnoverOf24h,
			ChangePct24h: c.PriceChgPct * 100,
			LotSize:      c.LotSize,
			Multiplier:   c.Multiplier,
		})
	}
	return rows, nil
}

func (r *kucoinRepository) GetTicker(ctx context.Context, symbol string) (float64, error) {
	if err := r.wait(ctx, weightTicker); err != nil {
		return 0, err
	}

	var result dto.KucoinResponse[dto.KucoinTicker]
	resp, err := r.httpClient.Get(ctx, "/api/v1/ticker", map[string]string{"symbol": symbol}, nil, &result)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}
	if err := r.checkResponse(ctx, "ticker", resp, result.Code, result.Msg); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(result.Data.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: %s ticker price %q", dto.ErrNoPrice, symbol, result.Data.Price)
	}
	return price, nil
}

// GetKlines returns candles sorted by time ascending.
func (r *kucoinRepository) GetKlines(ctx context.Context, symbol string, granularityMinutes int, from, to time.Time) ([]dto.Candle, error) {
	if err := r.wait(ctx, weightKlines); err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"symbol":      symbol,
		"granularity": strconv.Itoa(granularityMinutes),
		"from":        strconv.FormatInt(from.UnixMilli(), 10),
		"to":          strconv.FormatInt(to.UnixMilli(), 10),
	}

	var result dto.KucoinResponse[[][]float64]
	resp, err := r.httpClient.Get(ctx, "/api/v1/kline/query", queryParams, nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}
	if err := r.checkResponse(ctx, "klines", resp, result.Code, result.Msg); err != nil {
		return nil, err
	}

	candles := make([]dto.Candle, 0, len(result.Data))
	for _, k := range result.Data {
		if len(k) < 6 {
			continue
		}
		candles = append(candles, dto.Candle{
			Time:   int64(k[0]),
			Open:   k[1],
			High:   k[2],
			Low:    k[3],
			Close:  k[4],
			Volume: k[5],
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}
