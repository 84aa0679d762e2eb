package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spacesedan/reviewflow/internal/models"
)

const openAISystemPrompt = `You classify customer reviews.
Reply with a JSON object only, shaped as:
{"sentiment": "POSITIVE|NEGATIVE|NEUTRAL", "score": <0..1 confidence>,
 "emotions": {"joy": <0..1>, "sadness": <0..1>, "anger": <0..1>, "fear": <0..1>, "love": <0..1>, "surprise": <0..1>}}`

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type openAIVerdict struct {
	Sentiment string             `json:"sentiment"`
	Score     float64            `json:"score"`
	Emotions  map[string]float64 `json:"emotions"`
}

// OpenAIBackend asks a chat model for a JSON classification.
type OpenAIBackend struct {
	client chatCompleter
	model  string
}

func NewOpenAIBackend(client *openai.Client, model string) *OpenAIBackend {
	if model == "" {
		model = openai.GPT3Dot5Turbo1106
	}
	return &OpenAIBackend{client: client, model: model}
}

func (o *OpenAIBackend) Name() string { return "openai" }

func (o *OpenAIBackend) Load(context.Context) error {
	if o.client == nil {
		return errors.New("openai backend: client not configured")
	}
	return nil
}

func (o *OpenAIBackend) Predict(ctx context.Context, text string) (models.ModelPrediction, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return models.ModelPrediction{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ModelPrediction{}, errors.New("openai completion returned no choices")
	}

	var verdict openAIVerdict
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return models.ModelPrediction{}, fmt.Errorf("failed to decode openai verdict: %w", err)
	}

	pred := models.ModelPrediction{
		SentimentLabel: verdict.Sentiment,
		SentimentScore: verdict.Score,
		EmotionScores:  verdict.Emotions,
	}
	if len(verdict.Emotions) > 0 {
		pred.EmotionLabel, _ = dominantLabel(verdict.Emotions)
	}
	return pred, nil
}

func (o *OpenAIBackend) Close() error { return nil }
