package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fraudsight/fraudsight/internal/common"
)

// PredictionRecord is one scored request as persisted in the audit store.
type PredictionRecord struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Amount       float64
	Geo          string
	BIN          int
	MerchantAge  int
	Hour         int
	Probability  float64
	Fraud        bool
	MerchantName string
	TotalAmount  float64
}

// PredictionStore records and lists scored requests.
type PredictionStore interface {
	Insert(ctx context.Context, rec PredictionRecord) error
	List(ctx context.Context, limit int) ([]PredictionRecord, error)
}

type predictionStore struct {
	db     *DB
	logger *slog.Logger
}

const predictionsDDL = `
CREATE TABLE IF NOT EXISTS predictions (
	id            TEXT PRIMARY KEY,
	created_at    TIMESTAMP NOT NULL,
	amount        DOUBLE PRECISION NOT NULL,
	geo           TEXT NOT NULL,
	bin           BIGINT NOT NULL,
	merchant_age  BIGINT NOT NULL,
	hour          BIGINT NOT NULL,
	probability   DOUBLE PRECISION NOT NULL,
	fraud         BOOLEAN NOT NULL,
	merchant_name TEXT NOT NULL,
	total_amount  DOUBLE PRECISION NOT NULL
)`

// NewPredictionStore creates the predictions table if needed and returns the
// store.
func NewPredictionStore(ctx context.Context, db *DB, logger *slog.Logger) (PredictionStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.SQL.ExecContext(ctx, predictionsDDL); err != nil {
		return nil, common.WrapError(err, "create predictions table")
	}
	return &predictionStore{db: db, logger: logger}, nil
}

func (s *predictionStore) Insert(ctx context.Context, rec PredictionRecord) error {
	q := s.rebind(`INSERT INTO predictions
		(id, created_at, amount, geo, bin, merchant_age, hour, probability, fraud, merchant_name, total_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.SQL.ExecContext(ctx, q,
		rec.ID.String(), rec.CreatedAt.UTC(), rec.Amount, rec.Geo, rec.BIN,
		rec.MerchantAge, rec.Hour, rec.Probability, rec.Fraud,
		rec.MerchantName, rec.TotalAmount,
	)
	if err != nil {
		return common.WrapError(err, "insert prediction")
	}
	return nil
}

func (s *predictionStore) List(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.rebind(`SELECT id, created_at, amount, geo, bin, merchant_age, hour,
		probability, fraud, merchant_name, total_amount
		FROM predictions ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.SQL.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, common.WrapError(err, "list predictions")
	}
	defer func() { _ = rows.Close() }()

	var out []PredictionRecord
	for rows.Next() {
		var rec PredictionRecord
		var id string
		if err := rows.Scan(&id, &rec.CreatedAt, &rec.Amount, &rec.Geo, &rec.BIN,
			&rec.MerchantAge, &rec.Hour, &rec.Probability, &rec.Fraud,
			&rec.MerchantName, &rec.TotalAmount); err != nil {
			return nil, common.WrapError(err, "scan prediction")
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, common.WrapError(err, "parse prediction id")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *predictionStore) rebind(q string) string {
	if s.db.Dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
