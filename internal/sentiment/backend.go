package sentiment

import (
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spacesedan/reviewflow/internal/clients"
)

const (
	BackendNone   = "none"
	BackendHugot  = "hugot"
	BackendRemote = "remote"
	BackendOpenAI = "openai"
	BackendVader  = "vader"
)

type BackendConfig struct {
	Kind              string
	ModelDir          string
	SentimentModel    string
	EmotionModel      string
	SentimentEndpoint string
	EmotionEndpoint   string
	APIToken          string
	OpenAIKey         string
	OpenAIModel       string
	Timeout           time.Duration
}

// NewBackend builds the configured model backend. It returns nil for
// BackendNone so the engine runs on keywords alone.
func NewBackend(cfg BackendConfig) (ModelBackend, error) {
	switch cfg.Kind {
	case "", BackendNone:
		return nil, nil
	case BackendHugot:
		return NewHugotBackend(cfg.ModelDir, cfg.SentimentModel, cfg.EmotionModel), nil
	case BackendRemote:
		return NewRemoteBackend(clients.NewInferenceClient(cfg.Timeout, cfg.APIToken), cfg.SentimentEndpoint, cfg.EmotionEndpoint), nil
	case BackendOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai backend requires OPENAI_API_KEY")
		}
		oc := openai.DefaultConfig(cfg.OpenAIKey)
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		return NewOpenAIBackend(openai.NewClientWithConfig(oc), cfg.OpenAIModel), nil
	case BackendVader:
		return NewVaderBackend(), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Kind)
	}
}
