//go:build !ORT

package sentiment

import (
	"context"
	"fmt"

	"github.com/spacesedan/reviewflow/internal/models"
)

// HugotBackend needs the ONNX runtime; build with -tags ORT to enable it.
// Without the tag Load always fails and the engine stays on keywords.
type HugotBackend struct {
	modelDir       string
	sentimentModel string
	emotionModel   string
}

func NewHugotBackend(modelDir, sentimentModel, emotionModel string) *HugotBackend {
	return &HugotBackend{modelDir: modelDir, sentimentModel: sentimentModel, emotionModel: emotionModel}
}

func (h *HugotBackend) Name() string { return "hugot" }

func (h *HugotBackend) Load(context.Context) error {
	return fmt.Errorf("%w: binary built without ORT support", ErrModelUnavailable)
}

func (h *HugotBackend) Predict(context.Context, string) (models.ModelPrediction, error) {
	return models.ModelPrediction{}, ErrModelUnavailable
}

func (h *HugotBackend) Close() error { return nil }
