package models

import (
	"errors"
	"fmt"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionFear      Emotion = "fear"
	EmotionLove      Emotion = "love"
	EmotionNeutral   Emotion = "neutral"
	EmotionSatisfied Emotion = "satisfied"
	EmotionAnxious   Emotion = "anxious"
)

// Review is one classified piece of text. ContentHash is unique across all
// stored reviews.
type Review struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	Sentiment   Sentiment `json:"sentiment"`
	Emotion     Emotion   `json:"emotion"`
	Confidence  float64   `json:"confidence"`
	Source      *string   `json:"source,omitempty"`
	ContentHash string    `json:"-"`
	UserID      *int64    `json:"user_id,omitempty"`
	ScrapeJobID *string   `json:"scrape_job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r Review) Validate() error {
	if r.Text == "" {
		return errors.New("review text is empty")
	}
	if len(r.ContentHash) != 64 {
		return fmt.Errorf("content hash must be 64 hex chars, got %d", len(r.ContentHash))
	}
	if r.Sentiment == "" || r.Emotion == "" {
		return errors.New("review sentiment and emotion are required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of range", r.Confidence)
	}
	return nil
}

// SourceOrDefault returns the review's source tag, or "manual" for reviews
// submitted through the analyze endpoint.
func (r Review) SourceOrDefault() string {
	if r.Source == nil || *r.Source == "" {
		return "manual"
	}
	return *r.Source
}

type ReviewFilter struct {
	Sentiment Sentiment
	Emotion   Emotion
	Source    string
	UserID    *int64
	Start     time.Time
	End       time.Time
	Limit     int
	Offset    int
}
