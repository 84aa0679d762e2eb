// Package sentiment classifies text into a sentiment, a dominant emotion
// and a confidence. A model backend is used when one is configured and
// loads; the keyword scorer covers every other case.
package sentiment

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/models"
)

const (
	minClassifiableLength = 5
	StrategyGuard         = "guard"
)

type Scorer interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

type Engine struct {
	scorer Scorer
}

// NewEngine picks the model scorer when backend is non-nil and the keyword
// scorer otherwise.
func NewEngine(keyword *KeywordScorer, backend ModelBackend, sink metrics.Sink) *Engine {
	if keyword == nil {
		keyword = NewKeywordScorer()
	}
	if backend == nil {
		slog.Info("[Engine] No model backend configured, using keyword scorer")
		return &Engine{scorer: keyword}
	}
	slog.Info("[Engine] Model backend configured", slog.String("backend", backend.Name()))
	return &Engine{scorer: NewModelScorer(backend, keyword, sink)}
}

// NewEngineWithScorer wraps an arbitrary scorer with the engine's guard and
// confidence normalisation.
func NewEngineWithScorer(s Scorer) *Engine {
	return &Engine{scorer: s}
}

func (e *Engine) Classify(ctx context.Context, text string) (models.Classification, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minClassifiableLength {
		return neutralClassification(StrategyGuard), nil
	}

	c, err := e.scorer.Classify(ctx, text)
	if err != nil {
		return models.Classification{}, err
	}
	c.Confidence = roundConfidence(c.Confidence)
	if c.Sentiment == "" {
		c.Sentiment = models.SentimentNeutral
	}
	if c.Emotion == "" {
		c.Emotion = models.EmotionNeutral
	}
	return c, nil
}

// Close releases model resources held by the active scorer, if any.
func (e *Engine) Close() error {
	if ms, ok := e.scorer.(*ModelScorer); ok {
		return ms.Close()
	}
	return nil
}

func neutralClassification(strategy string) models.Classification {
	return models.Classification{
		Sentiment:  models.SentimentNeutral,
		Emotion:    models.EmotionNeutral,
		Confidence: 0.5,
		Detail:     models.ClassificationDetail{Strategy: strategy},
	}
}

func roundConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*10000) / 10000
}
