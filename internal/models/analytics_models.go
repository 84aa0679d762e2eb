package models

import "time"

type AnalyticsSnapshot struct {
	ID            int64     `json:"id"`
	Date          time.Time `json:"date"`
	TotalReviews  int       `json:"total_reviews"`
	PositiveCount int       `json:"positive_count"`
	NegativeCount int       `json:"negative_count"`
	NeutralCount  int       `json:"neutral_count"`
	AvgConfidence float64   `json:"avg_confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DayBucket struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
	Total    int    `json:"total"`
}

// Add counts one review with sentiment s.
func (b *DayBucket) Add(s Sentiment) {
	switch s {
	case SentimentPositive:
		b.Positive++
	case SentimentNegative:
		b.Negative++
	default:
		b.Neutral++
	}
	b.Total++
}

type Dashboard struct {
	TotalReviews      int            `json:"total_reviews"`
	SentimentCounts   map[string]int `json:"sentiment_distribution"`
	EmotionCounts     map[string]int `json:"emotion_distribution"`
	SourceCounts      map[string]int `json:"source_distribution"`
	DailyTrends       []DayBucket    `json:"daily_trends"`
	SatisfactionScore float64        `json:"satisfaction_score"`
	AvgConfidence     float64        `json:"avg_confidence"`
	DateRange         DateRange      `json:"date_range"`
}

type TrendDay struct {
	DayBucket
	PositivePct   float64        `json:"positive_percentage"`
	NegativePct   float64        `json:"negative_percentage"`
	NeutralPct    float64        `json:"neutral_percentage"`
	AvgConfidence float64        `json:"avg_confidence"`
	Emotions      map[string]int `json:"emotions"`
}

type Trends struct {
	Source    string     `json:"source,omitempty"`
	Days      []TrendDay `json:"trends"`
	DateRange DateRange  `json:"date_range"`
}

type SourceStats struct {
	Source      string  `json:"source"`
	Total       int     `json:"total"`
	Positive    int     `json:"positive"`
	Negative    int     `json:"negative"`
	Neutral     int     `json:"neutral"`
	PositivePct float64 `json:"positive_percentage"`
	NegativePct float64 `json:"negative_percentage"`
	NeutralPct  float64 `json:"neutral_percentage"`
}

type Comparison struct {
	Sources   []SourceStats `json:"sources"`
	DateRange DateRange     `json:"date_range"`
}
