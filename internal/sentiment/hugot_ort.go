//go:build ORT

package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/spacesedan/reviewflow/internal/models"
)

// HugotBackend runs the sentiment and emotion ONNX models in-process.
type HugotBackend struct {
	modelDir       string
	sentimentModel string
	emotionModel   string

	mu        sync.Mutex
	session   *hugot.Session
	sentiment *pipelines.TextClassificationPipeline
	emotion   *pipelines.TextClassificationPipeline
}

func NewHugotBackend(modelDir, sentimentModel, emotionModel string) *HugotBackend {
	return &HugotBackend{
		modelDir:       modelDir,
		sentimentModel: sentimentModel,
		emotionModel:   emotionModel,
	}
}

func (h *HugotBackend) Name() string { return "hugot" }

func (h *HugotBackend) Load(ctx context.Context) error {
	if err := os.MkdirAll(h.modelDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	sentimentPath, err := h.ensureModel(ctx, h.sentimentModel)
	if err != nil {
		return err
	}
	var emotionPath string
	if h.emotionModel != "" {
		if emotionPath, err = h.ensureModel(ctx, h.emotionModel); err != nil {
			return err
		}
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return fmt.Errorf("failed to initialize hugot session: %w", err)
	}

	sentimentPipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: sentimentPath,
		Name:      "sentimentPipeline",
	})
	if err != nil {
		session.Destroy()
		return fmt.Errorf("failed to initialize sentiment pipeline: %w", err)
	}

	var emotionPipeline *pipelines.TextClassificationPipeline
	if emotionPath != "" {
		emotionPipeline, err = hugot.NewPipeline(session, hugot.TextClassificationConfig{
			ModelPath: emotionPath,
			Name:      "emotionPipeline",
			Options: []hugot.TextClassificationOption{
				pipelines.WithMultiLabel(),
			},
		})
		if err != nil {
			session.Destroy()
			return fmt.Errorf("failed to initialize emotion pipeline: %w", err)
		}
	}

	h.mu.Lock()
	h.session, h.sentiment, h.emotion = session, sentimentPipeline, emotionPipeline
	h.mu.Unlock()
	return nil
}

func (h *HugotBackend) ensureModel(ctx context.Context, name string) (string, error) {
	local := filepath.Join(h.modelDir, strings.ReplaceAll(name, "/", "_"))
	if _, err := os.Stat(local); err == nil {
		slog.Info("[HugotBackend] Using existing model", slog.String("path", local))
		return local, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	slog.Info("[HugotBackend] Model not found, downloading...", slog.String("model", name))
	path, err := hugot.DownloadModel(name, h.modelDir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", name, err)
	}
	slog.Info("[HugotBackend] Model downloaded successfully", slog.String("path", path))
	return path, nil
}

func (h *HugotBackend) Predict(ctx context.Context, text string) (models.ModelPrediction, error) {
	if err := ctx.Err(); err != nil {
		return models.ModelPrediction{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sentiment == nil {
		return models.ModelPrediction{}, ErrModelUnavailable
	}

	out, err := h.sentiment.RunPipeline([]string{text})
	if err != nil {
		return models.ModelPrediction{}, fmt.Errorf("sentiment pipeline failed: %w", err)
	}
	scores, err := firstOutput(out)
	if err != nil {
		return models.ModelPrediction{}, err
	}
	label, score := dominantLabel(scores)
	pred := models.ModelPrediction{SentimentLabel: label, SentimentScore: score}

	if h.emotion == nil {
		return pred, nil
	}
	emotionOut, err := h.emotion.RunPipeline([]string{text})
	if err != nil {
		return models.ModelPrediction{}, fmt.Errorf("emotion pipeline failed: %w", err)
	}
	if pred.EmotionScores, err = firstOutput(emotionOut); err != nil {
		return models.ModelPrediction{}, err
	}
	pred.EmotionLabel, _ = dominantLabel(pred.EmotionScores)
	return pred, nil
}

func firstOutput(out *pipelines.TextClassificationOutput) (map[string]float64, error) {
	if out == nil || len(out.ClassificationOutputs) == 0 || len(out.ClassificationOutputs[0]) == 0 {
		return nil, errors.New("empty pipeline output")
	}
	scores := make(map[string]float64, len(out.ClassificationOutputs[0]))
	for _, c := range out.ClassificationOutputs[0] {
		scores[c.Label] = float64(c.Score)
	}
	return scores, nil
}

func (h *HugotBackend) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sentiment, h.emotion = nil, nil
	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}
