package repository

import (
	"context"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/pkg/cache"
	"poseidon/pkg/common"
	"poseidon/pkg/logger"
	"strings"
)

type ScannerRepository interface {
	GetScannerRows(ctx context.Context) ([]dto.ScannerRow, error)
	FindRow(ctx context.Context, base string) (*dto.ScannerRow, error)
}

type scannerRepository struct {
	cfg    *config.Config
	log    *logger.Logger
	kucoin KucoinRepository
	cache  cache.Cache
}

func NewScannerRepository(cfg *config.Config, log *logger.Logger, kucoin KucoinRepository, c cache.Cache) ScannerRepository {
	return &scannerRepository{
		cfg:    cfg,
		log:    log,
		kucoin: kucoin,
		cache:  c,
	}
}

// GetScannerRows serves the contract sweep from cache for scanner.cache_ttl.
// Concurrent misses share one sweep.
func (r *scannerRepository) GetScannerRows(ctx context.Context) ([]dto.ScannerRow, error) {
	return cache.Remember(r.cache, common.KEY_SCANNER_ROWS, r.cfg.Scanner.CacheTTL, func() ([]dto.ScannerRow, error) {
		rows, err := r.kucoin.GetActiveContracts(ctx)
		if err != nil {
			return nil, err
		}
		r.log.DebugContext(ctx, "Scanner rows refreshed", logger.IntField("rows", len(rows)))
		return rows, nil
	})
}

// FindRow matches the normalized base symbol exactly, then falls back to the
// highest-volume row whose base starts with it. Returns nil when nothing matches.
func (r *scannerRepository) FindRow(ctx context.Context, base string) (*dto.ScannerRow, error) {
	rows, err := r.GetScannerRows(ctx)
	if err != nil {
		return nil, err
	}
	return MatchScannerRow(rows, base), nil
}

func MatchScannerRow(rows []dto.ScannerRow, base string) *dto.ScannerRow {
	base = strings.ToUpper(base)
	if base == "" {
		return nil
	}
	contract := base + common.CONTRACT_SUFFIX
	for i := range rows {
		if rows[i].Symbol == contract || rows[i].BaseCurrency == base {
			row := rows[i]
			return &row
		}
	}

	var best *dto.ScannerRow
	for i := range rows {
		if !strings.HasPrefix(rows[i].BaseCurrency, base) && !strings.HasPrefix(rows[i].Symbol, base) {
			continue
		}
		if best == nil || rows[i].QuoteVolume > best.QuoteVolume {
			row := rows[i]
			best = &row
		}
	}
	return best
}
