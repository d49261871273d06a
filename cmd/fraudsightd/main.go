package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fraudsight/fraudsight/internal/async"
	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/export"
	"github.com/fraudsight/fraudsight/internal/ocr"
	"github.com/fraudsight/fraudsight/internal/pipeline"
	"github.com/fraudsight/fraudsight/internal/repository"
	"github.com/fraudsight/fraudsight/internal/risk"
	"github.com/fraudsight/fraudsight/internal/server"
)

func main() {
	common.LoadEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Classifier: the process starts even when loading fails, but every
	// scoring request fails until a restart with a valid artifact.
	var cls risk.Classifier
	onnxCls, err := risk.LoadONNXClassifier(cfg.Model.Path, cfg.Model.MetadataPath, logger)
	if err != nil {
		logger.Error("classifier load failed, scoring unavailable",
			"model", cfg.Model.Path, "error", err)
	} else {
		cls = onnxCls
		defer onnxCls.Close()
	}
	scorer := risk.NewScorer(cls, logger)

	// Audit store; optional, the daemon serves predictions without it.
	var store repository.PredictionStore
	var exporter *export.Service
	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		SQLitePath:      cfg.Database.SQLitePath,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("audit store unavailable, predictions will not be recorded", "error", err)
	} else {
		defer db.Close(logger)
		if err := db.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
			logger.Error("audit store health failed", "error", err)
		} else if store, err = repository.NewPredictionStore(ctx, db, logger); err != nil {
			logger.Error("audit store init failed", "error", err)
			store = nil
		} else {
			exporter = export.NewService(store, logger)
		}
	}

	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
		OEM:           cfg.OCR.OEM,
	}, logger)

	pool := async.NewPool(logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithTaskTimeout(cfg.Queue.Timeout),
	)

	coord := pipeline.NewCoordinator(scorer, engine, pool, store, logger)
	srv := server.New(coord, exporter, logger)

	go func() {
		if err := srv.Listen(cfg.Server.Addr); err != nil {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	if err := srv.Shutdown(); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool.Shutdown(shCtx)
	cancel()
	logger.Info("stopped")
}
