package models

type Classification struct {
	Sentiment  Sentiment            `json:"sentiment"`
	Emotion    Emotion              `json:"emotion"`
	Confidence float64              `json:"confidence"`
	Detail     ClassificationDetail `json:"-"`
}

type ClassificationDetail struct {
	Strategy      string             `json:"strategy"`
	ProcessedText string             `json:"processed_text"`
	PositiveHits  int                `json:"positive_hits"`
	NegativeHits  int                `json:"negative_hits"`
	Emotions      map[string]float64 `json:"emotions,omitempty"`
}

// ModelPrediction is the raw output of a model backend before label mapping.
// EmotionLabel is empty when the backend has no emotion head.
type ModelPrediction struct {
	SentimentLabel string             `json:"sentiment_label"`
	SentimentScore float64            `json:"sentiment_score"`
	EmotionLabel   string             `json:"emotion_label,omitempty"`
	EmotionScores  map[string]float64 `json:"emotion_scores,omitempty"`
}
