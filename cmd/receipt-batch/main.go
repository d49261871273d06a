package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/export"
	"github.com/fraudsight/fraudsight/internal/ingest"
	"github.com/fraudsight/fraudsight/internal/ocr"
	"github.com/fraudsight/fraudsight/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type fileResult struct {
	MerchantName string  `json:"merchant_name"`
	TotalAmount  float64 `json:"total_amount"`
}

func main() {
	// Parse CLI flags
	var (
		dir   = flag.String("dir", "", "directory to process receipt images from (required)")
		out   = flag.String("out", "", "output JSON file path (defaults to <dir>/ocr_results.json)")
		xlsx  = flag.String("xlsx", "", "also write an XLSX report to this path (optional)")
		watch = flag.Bool("watch", false, "keep watching the directory for new images")
	)
	flag.Parse()

	// Validate required flags
	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(*dir, "ocr_results.json")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	common.LoadEnv()
	cfg := common.LoadConfig()

	ctx := context.Background()

	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
		OEM:           cfg.OCR.OEM,
	}, logger)
	proc := ingest.NewProcessor(engine, logger)

	results := map[string]fileResult{}
	process := func(path string) {
		start := time.Now()
		fields, err := proc.ProcessFile(ctx, path)
		if err != nil {
			logger.Error("processing failed", "path", path, "error", err)
			return
		}
		results[filepath.Base(path)] = fileResult{
			MerchantName: fields.MerchantName,
			TotalAmount:  fields.TotalAmount,
		}
		logger.Info("processed receipt",
			"path", path,
			"merchant", fields.MerchantName,
			"total", fields.TotalAmount,
			"total_found", fields.TotalFound,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	paths, err := ingest.ScanDir(*dir)
	if err != nil {
		logger.Error("scan failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, p := range paths {
		process(p)
	}

	if *watch {
		watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		evCh, errCh, err := ingest.StartWatcher(watchCtx, ingest.WatchConfig{
			Roots:    []string{*dir},
			Debounce: 500 * time.Millisecond,
		})
		if err != nil {
			logger.Error("watcher failed", "error", err)
			os.Exit(1)
		}
		logger.Info("watching for new receipts", "dir", *dir)
	loop:
		for {
			select {
			case path, ok := <-evCh:
				if !ok {
					break loop
				}
				process(path)
				writeResults(logger, *out, results)
			case werr := <-errCh:
				if werr != nil {
					logger.Error("watch error", "error", werr)
				}
			case <-watchCtx.Done():
				break loop
			}
		}
	}

	writeResults(logger, *out, results)

	if *xlsx != "" {
		if err := writeXLSX(ctx, logger, *xlsx, results); err != nil {
			logger.Error("xlsx write failed", "path", *xlsx, "error", err)
			os.Exit(1)
		}
		logger.Info("xlsx report written", "path", *xlsx)
	}
}

func writeResults(logger *slog.Logger, path string, results map[string]fileResult) {
	data, err := json.MarshalIndent(results, "", "    ")
	if err != nil {
		logger.Error("encode results", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("write results", "path", path, "error", err)
		return
	}
	logger.Info("results saved", "path", path, "receipts", len(results))
}

// writeXLSX reuses the audit-store exporter over an in-memory sqlite database
// so the batch report and the daemon export share one format.
func writeXLSX(ctx context.Context, logger *slog.Logger, path string, results map[string]fileResult) error {
	db, err := repository.Open(ctx, repository.Config{SQLitePath: ":memory:"}, logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)

	store, err := repository.NewPredictionStore(ctx, db, logger)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, r := range results {
		rec := repository.PredictionRecord{
			ID:           uuid.New(),
			CreatedAt:    now,
			MerchantName: r.MerchantName,
			TotalAmount:  r.TotalAmount,
		}
		if err := store.Insert(ctx, rec); err != nil {
			return err
		}
	}

	out, err := export.NewService(store, logger).PredictionsXLSX(ctx, len(results))
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
