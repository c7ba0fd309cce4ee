package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"poseidon/config"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type MarketScanResult struct {
	Evaluated  int      `json:"evaluated"`
	Candidates []string `json:"candidates"`
	Skipped    int      `json:"skipped"`
	Rejected   int      `json:"rejected"`
}

type MarketScanStrategy struct {
	cfg       *config.Config
	log       *logger.Logger
	scanner   contract.ScannerSource
	evaluator contract.SignalEvaluator
}

func NewMarketScanStrategy(cfg *config.Config, log *logger.Logger, scanner contract.ScannerSource, evaluator contract.SignalEvaluator) JobExecutionStrategy {
	return &MarketScanStrategy{
		cfg:       cfg,
		log:       log,
		scanner:   scanner,
		evaluator: evaluator,
	}
}

func (s *MarketScanStrategy) GetType() JobType {
	return JobTypeMarketScan
}

func (s *MarketScanStrategy) Execute(ctx context.Context, job *dto.JobDefinition) (JobResult, error) {
	rows, err := s.scanner.GetScannerRows(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get scanner rows", logger.ErrorField(err))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to get scanner rows: %v", err)}, fmt.Errorf("failed to get scanner rows: %w", err)
	}

	symbols := s.universe(rows)
	if len(symbols) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no symbols to scan"}, nil
	}

	var (
		mu     sync.Mutex
		result = MarketScanResult{Candidates: []string{}}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scanner.MaxConcurrency)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			if !utils.ShouldContinue(gctx, s.log) {
				return gctx.Err()
			}
			record := s.evaluator.Evaluate(gctx, symbol, dto.EvaluateOptions{})

			mu.Lock()
			defer mu.Unlock()
			result.Evaluated++
			switch {
			case record == nil:
				result.Rejected++
			case record.Skipped:
				result.Skipped++
			default:
				result.Candidates = append(result.Candidates, record.Symbol)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WarnContext(ctx, "Market scan interrupted", logger.ErrorField(err), logger.IntField("evaluated", result.Evaluated))
		return JobResult{ExitCode: JOB_EXIT_CODE_PARTIAL_SUCCESS, Output: fmt.Sprintf("scan interrupted after %d symbols: %v", result.Evaluated, err)}, nil
	}

	sort.Strings(result.Candidates)
	s.log.InfoContext(ctx, "Market scan completed",
		logger.IntField("evaluated", result.Evaluated),
		logger.IntField("candidates", len(result.Candidates)),
		logger.IntField("skipped", result.Skipped),
		logger.IntField("rejected", result.Rejected),
	)

	res, err := json.Marshal(result)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal results: %v", err)}, fmt.Errorf("failed to marshal results: %w", err)
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(res)}, nil
}

// universe is the top N rows by quote volume plus the watchlist, deduplicated by base currency.
func (s *MarketScanStrategy) universe(rows []dto.ScannerRow) []string {
	sorted := make([]dto.ScannerRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QuoteVolume > sorted[j].QuoteVolume
	})

	topN := s.cfg.Scanner.TopN
	if topN <= 0 || topN > len(sorted) {
		topN = len(sorted)
	}

	seen := make(map[string]struct{})
	var out []string
	push := func(base string) {
		base = strings.ToUpper(strings.TrimSpace(base))
		if base == "" {
			return
		}
		if _, ok := seen[base]; ok {
			return
		}
		seen[base] = struct{}{}
		out = append(out, base)
	}
	for _, row := range sorted[:topN] {
		base := row.BaseCurrency
		if base == "" {
			base = row.Symbol
		}
		push(base)
	}
	for _, w := range s.cfg.Scanner.Watchlist {
		push(w)
	}
	return out
}
