package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsight/fraudsight/internal/common"
)

type stubClassifier struct {
	prob    float64
	err     error
	lastRow []float32
	calls   int
}

func (s *stubClassifier) PredictProba(_ context.Context, row []float32) (float64, error) {
	s.calls++
	s.lastRow = append([]float32(nil), row...)
	return s.prob, s.err
}

func TestScorerNilClassifier(t *testing.T) {
	s := NewScorer(nil, nil)
	assert.False(t, s.Ready())

	_, err := s.Score(context.Background(), Features{Amount: 10, Geo: "US"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrModelUnavailable))
}

func TestScorerRowOrder(t *testing.T) {
	cls := &stubClassifier{prob: 0.2}
	s := NewScorer(cls, nil)

	_, err := s.Score(context.Background(), Features{
		Amount:      123.45,
		Geo:         "AE",
		BIN:         411111,
		MerchantAge: 90,
		Hour:        23,
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{123.45, 3, 411111, 90, 23}, cls.lastRow)
}

func TestScorerUnknownGeoEncodesToFallback(t *testing.T) {
	cls := &stubClassifier{prob: 0.2}
	s := NewScorer(cls, nil)

	_, err := s.Score(context.Background(), Features{Amount: 1, Geo: "XX"})
	require.NoError(t, err)
	assert.Equal(t, float32(0), cls.lastRow[1])
}

func TestScorerDecisionThreshold(t *testing.T) {
	tests := []struct {
		name string
		prob float64
		want bool
	}{
		{name: "well below", prob: 0.01, want: false},
		{name: "exactly at threshold is not fraud", prob: 0.5, want: false},
		{name: "just above", prob: 0.500001, want: true},
		{name: "well above", prob: 0.99, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(&stubClassifier{prob: tt.prob}, nil)
			got, err := s.Score(context.Background(), Features{Amount: 50, Geo: "IN"})
			require.NoError(t, err)
			assert.Equal(t, tt.prob, got.Probability)
			assert.Equal(t, tt.want, got.Fraud)
		})
	}
}

func TestScorerDeterministic(t *testing.T) {
	cls := &stubClassifier{prob: 0.731}
	s := NewScorer(cls, nil)
	f := Features{Amount: 9999, Geo: "NG", BIN: 550000, MerchantAge: 2, Hour: 3}

	first, err := s.Score(context.Background(), f)
	require.NoError(t, err)
	second, err := s.Score(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cls.calls)
}

func TestScorerClassifierError(t *testing.T) {
	cls := &stubClassifier{err: errors.New("session gone")}
	s := NewScorer(cls, nil)

	_, err := s.Score(context.Background(), Features{Amount: 5, Geo: "PK"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier inference")
}
