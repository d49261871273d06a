package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsight/fraudsight/internal/pipeline"
	"github.com/fraudsight/fraudsight/internal/risk"
)

type stubClassifier struct {
	prob float64
}

func (s *stubClassifier) PredictProba(_ context.Context, _ []float32) (float64, error) {
	return s.prob, nil
}

type stubRecognizer struct {
	text string
}

func (s *stubRecognizer) Recognize(_ context.Context, _ *image.Gray) (string, error) {
	return s.text, nil
}

func newTestServer(t *testing.T, cls risk.Classifier, text string) *Server {
	t.Helper()
	scorer := risk.NewScorer(cls, nil)
	coord := pipeline.NewCoordinator(scorer, &stubRecognizer{text: text}, nil, nil, nil)
	return New(coord, nil, nil)
}

func predictRequest(t *testing.T, fields map[string]string, receipt []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if receipt != nil {
		fw, err := w.CreateFormFile("receipt", "receipt.png")
		require.NoError(t, err)
		_, err = fw.Write(receipt)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func receiptPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(2, 2, color.Gray{Y: 220})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func validForm() map[string]string {
	return map[string]string{
		"amount":       "120.50",
		"geo":          "US",
		"bin":          "411111",
		"merchant_age": "30",
		"hour":         "14",
	}
}

func TestPredictEndpoint(t *testing.T) {
	s := newTestServer(t, &stubClassifier{prob: 0.873162}, "Joe's Cafe\nTOTAL: 12.50")

	resp, err := s.App().Test(predictRequest(t, validForm(), receiptPNG(t)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out pipeline.Prediction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.FraudPrediction)
	assert.Equal(t, 0.8732, out.FraudProbability)
	assert.Equal(t, "Joe's Cafe", out.MerchantName)
	assert.Equal(t, 12.50, out.TotalAmount)
}

func TestPredictDegradedReceipt(t *testing.T) {
	s := newTestServer(t, &stubClassifier{prob: 0.1}, "ignored")

	resp, err := s.App().Test(predictRequest(t, validForm(), []byte("not an image")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out pipeline.Prediction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.FraudPrediction)
	assert.Equal(t, "Unknown", out.MerchantName)
	assert.Zero(t, out.TotalAmount)
}

func TestPredictModelUnavailable(t *testing.T) {
	s := newTestServer(t, nil, "")

	resp, err := s.App().Test(predictRequest(t, validForm(), receiptPNG(t)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Model not loaded", out["error"])
}

func TestPredictValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		receipt bool
	}{
		{name: "missing amount", mutate: func(m map[string]string) { delete(m, "amount") }, receipt: true},
		{name: "bad bin", mutate: func(m map[string]string) { m["bin"] = "gold" }, receipt: true},
		{name: "hour out of range", mutate: func(m map[string]string) { m["hour"] = "24" }, receipt: true},
		{name: "missing receipt", mutate: func(m map[string]string) {}, receipt: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubClassifier{prob: 0.1}, "")
			form := validForm()
			tt.mutate(form)
			var receipt []byte
			if tt.receipt {
				receipt = receiptPNG(t)
			}

			resp, err := s.App().Test(predictRequest(t, form, receipt))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("model loaded", func(t *testing.T) {
		s := newTestServer(t, &stubClassifier{prob: 0.5}, "")
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "ok", out["status"])
		assert.Equal(t, true, out["model_loaded"])
	})

	t.Run("degraded without model", func(t *testing.T) {
		s := newTestServer(t, nil, "")
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "degraded", out["status"])
		assert.Equal(t, false, out["model_loaded"])
	})
}

func TestExportNotEnabled(t *testing.T) {
	s := newTestServer(t, &stubClassifier{prob: 0.5}, "")
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/export", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
