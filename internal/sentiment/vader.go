package sentiment

import (
	"context"
	"math"

	"github.com/jonreiter/govader"
	"github.com/spacesedan/reviewflow/internal/models"
)

const vaderThreshold = 0.20

// VaderBackend scores sentiment with the VADER lexicon. It has no emotion
// head, so the keyword scorer supplies emotions alongside it.
type VaderBackend struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderBackend() *VaderBackend {
	return &VaderBackend{}
}

func (v *VaderBackend) Name() string { return "vader" }

func (v *VaderBackend) Load(context.Context) error {
	v.analyzer = govader.NewSentimentIntensityAnalyzer()
	return nil
}

func (v *VaderBackend) Predict(ctx context.Context, text string) (models.ModelPrediction, error) {
	if err := ctx.Err(); err != nil {
		return models.ModelPrediction{}, err
	}
	if v.analyzer == nil {
		return models.ModelPrediction{}, ErrModelUnavailable
	}

	score := v.analyzer.PolarityScores(text).Compound

	label := "NEUTRAL"
	if score >= vaderThreshold {
		label = "POSITIVE"
	} else if score <= -vaderThreshold {
		label = "NEGATIVE"
	}

	return models.ModelPrediction{
		SentimentLabel: label,
		SentimentScore: vaderConfidence(score),
	}, nil
}

func (v *VaderBackend) Close() error {
	v.analyzer = nil
	return nil
}

// vaderConfidence maps the compound score onto [0.5, 1]: a compound of 0 is
// a coin flip, +/-1 is certain.
func vaderConfidence(compound float64) float64 {
	return 0.5 + math.Min(1, math.Abs(compound))/2
}
