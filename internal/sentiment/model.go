package sentiment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/preprocess"
)

var ErrModelUnavailable = errors.New("model backend unavailable")

const (
	StrategyModel    = "model"
	modelLoadTimeout = 10 * time.Minute
)

// ModelBackend is a loadable inference handle. Load is called at most once
// per ModelScorer; Close releases whatever Load acquired.
type ModelBackend interface {
	Name() string
	Load(ctx context.Context) error
	Predict(ctx context.Context, text string) (models.ModelPrediction, error)
	Close() error
}

type capability int

const (
	capabilityUninitialized capability = iota
	capabilityAvailable
	capabilityUnavailable
)

func (c capability) String() string {
	switch c {
	case capabilityAvailable:
		return "available"
	case capabilityUnavailable:
		return "unavailable"
	default:
		return "uninitialized"
	}
}

var emotionLabelMap = map[string]models.Emotion{
	"joy":      models.EmotionHappy,
	"sadness":  models.EmotionSad,
	"anger":    models.EmotionAngry,
	"fear":     models.EmotionAnxious,
	"love":     models.EmotionLove,
	"surprise": models.EmotionSurprised,
}

// MapEmotionLabel converts a model emotion label to the service vocabulary.
// Labels outside the table pass through unchanged.
func MapEmotionLabel(label string) models.Emotion {
	l := strings.ToLower(strings.TrimSpace(label))
	if e, ok := emotionLabelMap[l]; ok {
		return e
	}
	return models.Emotion(l)
}

func mapSentimentLabel(label string) models.Sentiment {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "POSITIVE", "POS", "LABEL_1":
		return models.SentimentPositive
	case "NEGATIVE", "NEG", "LABEL_0":
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// ModelScorer classifies with a model backend. The backend is loaded on
// first use; a failed load disables the model for the life of the scorer,
// a failed prediction falls back for that call only.
type ModelScorer struct {
	backend  ModelBackend
	fallback *KeywordScorer
	breaker  *gobreaker.CircuitBreaker
	sink     metrics.Sink

	mu    sync.Mutex
	state capability
}

func NewModelScorer(backend ModelBackend, fallback *KeywordScorer, sink metrics.Sink) *ModelScorer {
	if fallback == nil {
		fallback = NewKeywordScorer()
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &ModelScorer{
		backend:  backend,
		fallback: fallback,
		sink:     sink,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "model-" + backend.Name(),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("[ModelScorer] Circuit breaker state changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
	}
}

func (m *ModelScorer) ensureLoaded(ctx context.Context) capability {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != capabilityUninitialized {
		return m.state
	}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), modelLoadTimeout)
	defer cancel()

	start := time.Now()
	if err := m.backend.Load(loadCtx); err != nil {
		slog.Warn("[ModelScorer] Model backend unavailable, using keyword scorer for the rest of the process",
			slog.String("backend", m.backend.Name()),
			slog.String("error", err.Error()))
		if closeErr := m.backend.Close(); closeErr != nil {
			slog.Warn("[ModelScorer] Failed to release backend after load failure",
				slog.String("error", closeErr.Error()))
		}
		m.state = capabilityUnavailable
		return m.state
	}

	slog.Info("[ModelScorer] Model backend loaded",
		slog.String("backend", m.backend.Name()),
		slog.Duration("elapsed", time.Since(start)))
	m.state = capabilityAvailable
	return m.state
}

func (m *ModelScorer) Classify(ctx context.Context, text string) (models.Classification, error) {
	if m.ensureLoaded(ctx) != capabilityAvailable {
		m.sink.ModelFallback("unavailable")
		return m.fallback.Classify(ctx, text)
	}

	processed := preprocess.Normalize(text)
	if processed == "" {
		return neutralClassification(StrategyModel), nil
	}

	out, err := m.breaker.Execute(func() (interface{}, error) {
		return m.backend.Predict(ctx, processed)
	})
	if err != nil {
		reason := "inference_error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "circuit_open"
		}
		slog.Warn("[ModelScorer] Prediction failed, using keyword scorer for this text",
			slog.String("backend", m.backend.Name()),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		m.sink.ModelFallback(reason)
		return m.fallback.Classify(ctx, text)
	}

	pred := out.(models.ModelPrediction)
	emotion := MapEmotionLabel(pred.EmotionLabel)
	if pred.EmotionLabel == "" {
		emotion = m.fallback.Emotion(text)
	}

	return models.Classification{
		Sentiment:  mapSentimentLabel(pred.SentimentLabel),
		Emotion:    emotion,
		Confidence: pred.SentimentScore,
		Detail: models.ClassificationDetail{
			Strategy:      StrategyModel + ":" + m.backend.Name(),
			ProcessedText: processed,
			Emotions:      pred.EmotionScores,
		},
	}, nil
}

// Available reports whether the backend has loaded. It does not trigger a
// load.
func (m *ModelScorer) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == capabilityAvailable
}

func (m *ModelScorer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != capabilityAvailable {
		return nil
	}
	m.state = capabilityUnavailable
	return m.backend.Close()
}

// dominantLabel returns the highest scoring label. Ties keep the first
// label in sorted order so results are stable.
func dominantLabel(scores map[string]float64) (string, float64) {
	best, bestScore := "", -1.0
	for label, score := range scores {
		if score > bestScore || (score == bestScore && label < best) {
			best, bestScore = label, score
		}
	}
	return best, bestScore
}
