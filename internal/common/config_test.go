package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "models/fraud.onnx", cfg.Model.Path)
	assert.Equal(t, "tesseract", cfg.OCR.Tesseract)
	assert.Equal(t, "eng", cfg.OCR.TesseractLang)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Queue.Timeout)
	assert.Empty(t, cfg.Database.DSN)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MODEL_PATH", "/models/v2.onnx")
	t.Setenv("OCR_WORKERS", "8")
	t.Setenv("OCR_TIMEOUT", "30s")
	t.Setenv("DB_MAX_CONNS", "7")

	cfg := LoadConfig()
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/models/v2.onnx", cfg.Model.Path)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 30*time.Second, cfg.Queue.Timeout)
	assert.Equal(t, int32(7), cfg.Database.MaxConns)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Queue.Workers = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("OCR_WORKERS", "many")
	t.Setenv("OCR_TIMEOUT", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Queue.Timeout)
}
