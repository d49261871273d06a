package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fraudsight/fraudsight/internal/repository"
)

// Service is a tiny façade over the audit store that produces XLSX bytes for
// exports.
type Service struct {
	store  repository.PredictionStore
	logger *slog.Logger
}

func NewService(store repository.PredictionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// PredictionsXLSX returns an XLSX workbook (as bytes) of the most recent
// scored requests, newest first.
func (s *Service) PredictionsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Predictions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Scored At",
		"Amount",
		"Geo",
		"BIN",
		"Merchant Age (days)",
		"Hour",
		"Fraud Probability",
		"Fraud",
		"Merchant",
		"Receipt Total",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.CreatedAt.UTC().Format(time.RFC3339))
		write(2, r.Amount)
		write(3, r.Geo)
		write(4, r.BIN)
		write(5, r.MerchantAge)
		write(6, r.Hour)
		write(7, fmt.Sprintf("%.4f", r.Probability))
		write(8, r.Fraud)
		write(9, r.MerchantName)
		write(10, r.TotalAmount)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 22) // timestamp
	_ = f.SetColWidth(sheet, "B", "B", 12)
	_ = f.SetColWidth(sheet, "G", "G", 16)
	_ = f.SetColWidth(sheet, "I", "I", 28) // merchant

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
