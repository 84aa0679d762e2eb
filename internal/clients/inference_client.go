package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type inferenceRequest struct {
	Inputs  string         `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
	Params  map[string]any `json:"parameters,omitempty"`
}

// InferenceClient talks to Hugging Face style text-classification
// endpoints.
type InferenceClient struct {
	Client         *http.Client
	Token          string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewInferenceClient(timeout time.Duration, token string) *InferenceClient {
	slog.Info("[InferenceClient] Initializing Client", slog.Duration("timeout", timeout))
	return &InferenceClient{
		Client:         &http.Client{Timeout: timeout},
		Token:          token,
		MaxRetries:     MAX_RETRIES,
		InitialBackoff: INITIAL_BACKOFF,
		MaxBackoff:     MAX_BACKOFF,
	}
}

// DoWithRetry sends the request built by newReq, retrying transport errors,
// 5xx and 429 with exponential backoff.
func (c *InferenceClient) DoWithRetry(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := c.InitialBackoff

	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		var req *http.Request
		req, err = newReq()
		if err != nil {
			return nil, err
		}

		resp, err = c.Client.Do(req)
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		msg := errMsg(err, resp)
		if resp != nil {
			resp.Body.Close()
			if err == nil {
				err = fmt.Errorf("status code %d", resp.StatusCode)
			}
		}

		slog.Warn("[InferenceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", msg))

		if attempt == c.MaxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.MaxBackoff {
			backoff = c.MaxBackoff
		}
	}

	return nil, err
}

// Classify posts text to endpoint and returns every label score the
// endpoint reports.
func (c *InferenceClient) Classify(ctx context.Context, endpoint, text string) ([]LabelScore, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs:  text,
		Options: map[string]any{"wait_for_model": true},
		Params:  map[string]any{"top_k": nil},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	start := time.Now()
	resp, err := c.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		return req, nil
	})
	if err != nil {
		slog.Error("[InferenceClient] Failed request after retries",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, preview(respBody))
	}

	scores, err := decodeLabelScores(respBody)
	if err != nil {
		slog.Error("[InferenceClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			slog.String("raw_response", preview(respBody)))
		return nil, err
	}

	slog.Debug("[InferenceClient] Classification request successful",
		slog.String("endpoint", endpoint),
		slog.Duration("elapsed", time.Since(start)))
	return scores, nil
}

// decodeLabelScores accepts both the nested [[...]] shape returned for a
// single input and a flat [...] list.
func decodeLabelScores(body []byte) ([]LabelScore, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []LabelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("empty classification response")
	}
	return flat, nil
}

func preview(respBody []byte) string {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return raw
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
