package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/fraudsight/fraudsight/constants"
	"github.com/fraudsight/fraudsight/internal/extract"
	"github.com/fraudsight/fraudsight/internal/imaging"
	"github.com/fraudsight/fraudsight/internal/ocr"
)

// Processor runs the receipt sub-pipeline over files on disk for batch mode.
type Processor struct {
	recognizer ocr.Recognizer
	logger     *slog.Logger
}

func NewProcessor(recognizer ocr.Recognizer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{recognizer: recognizer, logger: logger}
}

// ProcessFile reads one receipt image and extracts its fields. Unlike the
// request path this surfaces errors: a batch run wants to know which files
// were skipped and why.
func (p *Processor) ProcessFile(ctx context.Context, path string) (extract.Fields, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return extract.Fields{}, err
	}

	img, err := imaging.Normalize(raw)
	if err != nil {
		return extract.Fields{}, err
	}

	text, err := p.recognizer.Recognize(ctx, img)
	if err != nil {
		return extract.Fields{}, err
	}

	return extract.FromText(text), nil
}

// ScanDir walks root and returns the receipt images under it, sorted.
func ScanDir(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if constants.IsImageExt(filepath.Ext(path)) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
