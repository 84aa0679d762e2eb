package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spacesedan/reviewflow/internal/clients"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaderBackend(t *testing.T) {
	v := NewVaderBackend()
	ctx := context.Background()

	_, err := v.Predict(ctx, "anything")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	require.NoError(t, v.Load(ctx))

	pos, err := v.Predict(ctx, "I love this place, the food is great and the staff are wonderful")
	require.NoError(t, err)
	assert.Equal(t, "POSITIVE", pos.SentimentLabel)
	assert.Greater(t, pos.SentimentScore, 0.5)
	assert.LessOrEqual(t, pos.SentimentScore, 1.0)
	assert.Empty(t, pos.EmotionLabel)

	neg, err := v.Predict(ctx, "terrible service, horrible food, I hate it")
	require.NoError(t, err)
	assert.Equal(t, "NEGATIVE", neg.SentimentLabel)

	require.NoError(t, v.Close())
}

func TestVaderConfidence(t *testing.T) {
	assert.Equal(t, 0.5, vaderConfidence(0))
	assert.Equal(t, 1.0, vaderConfidence(-1))
	assert.Equal(t, 0.75, vaderConfidence(0.5))
}

func newTestInferenceClient() *clients.InferenceClient {
	c := clients.NewInferenceClient(2*time.Second, "secret")
	c.InitialBackoff = time.Millisecond
	c.MaxBackoff = 2 * time.Millisecond
	c.MaxRetries = 3
	return c
}

func TestRemoteBackend(t *testing.T) {
	var sentimentCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/sentiment", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if sentimentCalls.Add(1) == 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([][]clients.LabelScore{{{Label: "NEGATIVE", Score: 0.91}, {Label: "POSITIVE", Score: 0.09}}})
	})
	mux.HandleFunc("/emotion", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]clients.LabelScore{{Label: "anger", Score: 0.8}, {Label: "joy", Score: 0.2}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewRemoteBackend(newTestInferenceClient(), srv.URL+"/sentiment", srv.URL+"/emotion")
	require.NoError(t, r.Load(context.Background()))

	// second sentiment call gets a 503 and is retried.
	pred, err := r.Predict(context.Background(), "cold food and rude staff")
	require.NoError(t, err)
	assert.Equal(t, "NEGATIVE", pred.SentimentLabel)
	assert.Equal(t, 0.91, pred.SentimentScore)
	assert.Equal(t, "anger", pred.EmotionLabel)
	assert.EqualValues(t, 3, sentimentCalls.Load())
}

func TestRemoteBackendLoadFailsWithoutEndpoint(t *testing.T) {
	r := NewRemoteBackend(newTestInferenceClient(), "", "")
	assert.Error(t, r.Load(context.Background()))
}

func TestRemoteBackendLoadFailsOnDeadEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRemoteBackend(newTestInferenceClient(), srv.URL, "")
	assert.Error(t, r.Load(context.Background()))
}

type fakeCompleter struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func TestOpenAIBackend(t *testing.T) {
	fc := &fakeCompleter{content: `{"sentiment":"POSITIVE","score":0.93,"emotions":{"joy":0.7,"love":0.2,"anger":0.0}}`}
	o := &OpenAIBackend{client: fc, model: "test-model"}
	require.NoError(t, o.Load(context.Background()))

	pred, err := o.Predict(context.Background(), "best brunch in town")
	require.NoError(t, err)
	assert.Equal(t, "POSITIVE", pred.SentimentLabel)
	assert.Equal(t, 0.93, pred.SentimentScore)
	assert.Equal(t, "joy", pred.EmotionLabel)
	assert.Equal(t, "test-model", fc.req.Model)
	require.Len(t, fc.req.Messages, 2)
	assert.Equal(t, "best brunch in town", fc.req.Messages[1].Content)
}

func TestOpenAIBackendErrors(t *testing.T) {
	o := &OpenAIBackend{client: &fakeCompleter{err: errors.New("rate limited")}}
	_, err := o.Predict(context.Background(), "x")
	assert.Error(t, err)

	o = &OpenAIBackend{client: &fakeCompleter{content: "not json"}}
	_, err = o.Predict(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(BackendConfig{Kind: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = NewBackend(BackendConfig{Kind: BackendVader})
	require.NoError(t, err)
	assert.Equal(t, "vader", b.Name())

	_, err = NewBackend(BackendConfig{Kind: BackendOpenAI})
	assert.Error(t, err)

	_, err = NewBackend(BackendConfig{Kind: "quantum"})
	assert.Error(t, err)
}

func TestEngineWithVaderBackend(t *testing.T) {
	b, err := NewBackend(BackendConfig{Kind: BackendVader})
	require.NoError(t, err)
	e := NewEngine(nil, b, nil)

	got, err := e.Classify(context.Background(), "I am so happy with this wonderful purchase")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, got.Sentiment)
	assert.Equal(t, models.EmotionHappy, got.Emotion)
}
