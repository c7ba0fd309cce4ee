package cmd

import (
	"encoding/json"
	"fmt"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/repository"
	"poseidon/internal/service"
	"poseidon/pkg/cache"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var evaluateJSON bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate SYMBOL [SYMBOL...]",
	Short: "Run the signal pipeline once for the given symbols without placing orders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "print the analysis records as JSON")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: "warn", Encoding: "console"})
	if err != nil {
		return err
	}

	c := cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval)
	kucoin := repository.NewKucoinRepository(cfg, log)
	feed := service.NewFeedService(cfg, log, c, nil, nil, nil)
	scorer := service.NewConfidenceScorer(cfg.SessionBias, utils.SystemClock)
	phase := service.NewTrendPhaseDetector(kucoin, log, utils.SystemClock)

	// no consumer: records are printed, never traded
	pipeline, err := service.NewSignalPipeline(cfg, log,
		repository.NewScannerRepository(cfg, log, kucoin, c),
		repository.NewTARepository(cfg, log, kucoin, c),
		scorer, phase,
		repository.NewPaperExecutor(log, kucoin, cfg.Executor.PaperBalanceUSDT),
		feed, nil)
	if err != nil {
		return err
	}

	records := make([]*dto.SignalAnalysisRecord, 0, len(args))
	rejected := make([]string, 0)
	for _, symbol := range args {
		record := pipeline.Evaluate(cmd.Context(), strings.ToUpper(symbol), dto.EvaluateOptions{Manual: true})
		if record == nil {
			rejected = append(rejected, strings.ToUpper(symbol))
			continue
		}
		records = append(records, record)
	}

	if evaluateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"records": records, "rejected": rejected})
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Category", "Signal", "Confidence", "RSI", "MACD", "BB", "Phase", "Price", "Trap", "Result"})
	for _, r := range records {
		result := "candidate"
		if r.Skipped {
			result = "skip: " + r.SkipReason
		}
		t.AppendRow(table.Row{
			r.Symbol, r.Category, r.Signal,
			fmt.Sprintf("%.1f", r.Confidence), fmt.Sprintf("%.1f", r.RSI),
			r.MACDSignal, r.BBSignal, r.Phase,
			utils.FormatFloat(r.Price), r.TrapWarning, result,
		})
	}
	for _, symbol := range rejected {
		t.AppendRow(table.Row{symbol, "", "", "", "", "", "", "", "", "", "rejected"})
	}
	t.Render()
	return nil
}
