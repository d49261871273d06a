package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/fraudsight/fraudsight/internal/async"
	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/extract"
	"github.com/fraudsight/fraudsight/internal/imaging"
	"github.com/fraudsight/fraudsight/internal/ocr"
	"github.com/fraudsight/fraudsight/internal/repository"
	"github.com/fraudsight/fraudsight/internal/risk"
)

// Prediction is the terminal artifact returned to the caller.
type Prediction struct {
	FraudPrediction  bool    `json:"fraud_prediction"`
	FraudProbability float64 `json:"fraud_probability"`
	MerchantName     string  `json:"merchant_name"`
	TotalAmount      float64 `json:"total_amount"`
}

// Coordinator runs the risk scorer and the receipt sub-pipeline for one
// request and merges both into a Prediction. Scoring failures are fatal to
// the request; any failure on the receipt path is absorbed into the degraded
// default so a risk decision is still delivered.
type Coordinator struct {
	scorer     *risk.Scorer
	recognizer ocr.Recognizer
	pool       *async.Pool
	store      repository.PredictionStore
	logger     *slog.Logger
}

// NewCoordinator wires the pipeline. pool may be nil, in which case the
// receipt sub-pipeline runs inline on the caller (batch tooling, tests).
// store may be nil to disable the audit log.
func NewCoordinator(scorer *risk.Scorer, recognizer ocr.Recognizer, pool *async.Pool, store repository.PredictionStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		scorer:     scorer,
		recognizer: recognizer,
		pool:       pool,
		store:      store,
		logger:     logger,
	}
}

// Ready reports whether the scorer has a loaded classifier.
func (c *Coordinator) Ready() bool {
	return c.scorer.Ready()
}

// Handle scores the transaction and extracts receipt fields. The returned
// probability is rounded to 4 decimal places; no other field is transformed.
func (c *Coordinator) Handle(ctx context.Context, f risk.Features, receipt []byte) (Prediction, error) {
	score, err := c.scorer.Score(ctx, f)
	if err != nil {
		return Prediction{}, err
	}

	fields := c.extractReceipt(ctx, receipt)

	resp := Prediction{
		FraudPrediction:  score.Fraud,
		FraudProbability: round4(score.Probability),
		MerchantName:     fields.MerchantName,
		TotalAmount:      fields.TotalAmount,
	}

	c.audit(ctx, f, score, fields)
	return resp, nil
}

func (c *Coordinator) extractReceipt(ctx context.Context, raw []byte) extract.Fields {
	if c.pool == nil {
		return c.runExtraction(ctx, raw)
	}

	resCh := make(chan extract.Fields, 1)
	err := c.pool.Submit(ctx, func(taskCtx context.Context) {
		resCh <- c.runExtraction(taskCtx, raw)
	})
	if err != nil {
		c.logger.Warn("receipt extraction not scheduled", "error", err)
		return extract.Degraded()
	}

	select {
	case fields := <-resCh:
		return fields
	case <-ctx.Done():
		c.logger.Warn("request gone before receipt extraction finished", "error", ctx.Err())
		return extract.Degraded()
	}
}

func (c *Coordinator) runExtraction(ctx context.Context, raw []byte) extract.Fields {
	img, err := imaging.Normalize(raw)
	if err != nil {
		if errors.Is(err, common.ErrImageDecode) {
			c.logger.Warn("receipt image not decodable, degrading", "error", err)
		} else {
			c.logger.Warn("receipt normalization failed, degrading", "error", err)
		}
		return extract.Degraded()
	}

	text, err := c.recognizer.Recognize(ctx, img)
	if err != nil {
		c.logger.Warn("ocr failed, degrading", "error", err)
		return extract.Degraded()
	}

	return extract.FromText(text)
}

func (c *Coordinator) audit(ctx context.Context, f risk.Features, score risk.Score, fields extract.Fields) {
	if c.store == nil {
		return
	}
	rec := repository.PredictionRecord{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		Amount:       f.Amount,
		Geo:          f.Geo,
		BIN:          f.BIN,
		MerchantAge:  f.MerchantAge,
		Hour:         f.Hour,
		Probability:  score.Probability,
		Fraud:        score.Fraud,
		MerchantName: fields.MerchantName,
		TotalAmount:  fields.TotalAmount,
	}
	// best effort: the response is already decided
	if err := c.store.Insert(ctx, rec); err != nil {
		c.logger.Error("audit insert failed", "prediction_id", rec.ID, "error", err)
	}
}

func round4(p float64) float64 {
	return math.Round(p*10000) / 10000
}
