package risk

import (
	"context"
	"log/slog"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/features"
)

// DecisionThreshold is the fixed probability cutoff above which a transaction
// is flagged as fraudulent. Not configurable at request time.
const DecisionThreshold = 0.5

// Features are the transaction attributes scored per request. Constructed
// once per request and never mutated.
type Features struct {
	Amount      float64
	Geo         string
	BIN         int
	MerchantAge int // days
	Hour        int // 0..23
}

// Score is the classifier verdict for one transaction.
type Score struct {
	Probability float64
	Fraud       bool
}

// Classifier is the pretrained-model boundary. It consumes a single feature
// row in the fixed column order {amount, geo(encoded), bin, merchant_age,
// hour} and produces the positive-class probability in [0,1]. It must be safe
// for concurrent use.
type Classifier interface {
	PredictProba(ctx context.Context, row []float32) (float64, error)
}

// Scorer turns transaction features into a fraud decision. The classifier is
// loaded once at startup; a nil classifier means the process started in the
// degraded state and every call fails with common.ErrModelUnavailable.
type Scorer struct {
	cls    Classifier
	logger *slog.Logger
}

func NewScorer(cls Classifier, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cls: cls, logger: logger}
}

// Ready reports whether a classifier is loaded.
func (s *Scorer) Ready() bool {
	return s.cls != nil
}

// Score builds the encoded feature row and invokes the classifier. The
// decision is Probability > DecisionThreshold, exactly.
func (s *Scorer) Score(ctx context.Context, f Features) (Score, error) {
	if s.cls == nil {
		return Score{}, common.NewAppError("MODEL_UNAVAILABLE",
			"classifier was not loaded at startup", common.ErrModelUnavailable)
	}

	row := FeatureRow(f)
	p, err := s.cls.PredictProba(ctx, row)
	if err != nil {
		return Score{}, common.WrapError(err, "classifier inference")
	}

	return Score{Probability: p, Fraud: p > DecisionThreshold}, nil
}

// FeatureRow encodes features into the column order the classifier was
// trained with. The order never varies.
func FeatureRow(f Features) []float32 {
	return []float32{
		float32(f.Amount),
		float32(features.Encode(f.Geo)),
		float32(f.BIN),
		float32(f.MerchantAge),
		float32(f.Hour),
	}
}
