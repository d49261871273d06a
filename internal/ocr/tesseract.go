package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// Recognizer is the OCR engine boundary: a binarized receipt image in, a
// newline-delimited text blob out. The text is untrusted and possibly empty.
type Recognizer interface {
	Recognize(ctx context.Context, img *image.Gray) (string, error)
}

// Engine shells out to tesseract through a Runner. The binarized image is
// handed over as a temporary PNG because tesseract reads from disk.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &Engine{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (e *Engine) Recognize(ctx context.Context, img *image.Gray) (string, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "fs-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr tempdir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	path := filepath.Join(tmpDir, "receipt.png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ocr tempfile: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("ocr encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ocr close tempfile: %w", err)
	}

	txt, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return "", err
	}

	e.logger.Debug("ocr ok",
		"bytes", len(txt),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return txt, nil
}

func (e *Engine) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		e.logger.Error("tesseract failed", "path", path, "stderr", truncate(string(errb), 2<<10))
		return "", fmt.Errorf("tesseract: %w", err)
	}

	return Normalize(string(out)), nil
}
