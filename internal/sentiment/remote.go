package sentiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/spacesedan/reviewflow/internal/clients"
	"github.com/spacesedan/reviewflow/internal/models"
)

const remoteProbeText = "service health probe"

// RemoteBackend calls hosted text-classification endpoints. The emotion
// endpoint is optional.
type RemoteBackend struct {
	client       *clients.InferenceClient
	sentimentURL string
	emotionURL   string
}

func NewRemoteBackend(client *clients.InferenceClient, sentimentURL, emotionURL string) *RemoteBackend {
	return &RemoteBackend{
		client:       client,
		sentimentURL: sentimentURL,
		emotionURL:   emotionURL,
	}
}

func (r *RemoteBackend) Name() string { return "remote" }

// Load probes the sentiment endpoint once.
func (r *RemoteBackend) Load(ctx context.Context) error {
	if r.sentimentURL == "" {
		return errors.New("remote backend: no sentiment endpoint configured")
	}
	if _, err := r.client.Classify(ctx, r.sentimentURL, remoteProbeText); err != nil {
		return fmt.Errorf("remote backend probe failed: %w", err)
	}
	return nil
}

func (r *RemoteBackend) Predict(ctx context.Context, text string) (models.ModelPrediction, error) {
	sentimentScores, err := r.client.Classify(ctx, r.sentimentURL, text)
	if err != nil {
		return models.ModelPrediction{}, err
	}
	label, score := dominantLabel(toScoreMap(sentimentScores))
	pred := models.ModelPrediction{SentimentLabel: label, SentimentScore: score}

	if r.emotionURL == "" {
		return pred, nil
	}
	emotionScores, err := r.client.Classify(ctx, r.emotionURL, text)
	if err != nil {
		return models.ModelPrediction{}, err
	}
	pred.EmotionScores = toScoreMap(emotionScores)
	pred.EmotionLabel, _ = dominantLabel(pred.EmotionScores)
	return pred, nil
}

func (r *RemoteBackend) Close() error { return nil }

func toScoreMap(scores []clients.LabelScore) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for _, s := range scores {
		out[s.Label] = s.Score
	}
	return out
}
