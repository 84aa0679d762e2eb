package sentiment

import (
	"context"
	"math"

	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/spacesedan/reviewflow/internal/preprocess"
)

const StrategyKeyword = "keyword"

var positiveWords = wordSet(
	"excellent", "amazing", "great", "fantastic", "wonderful", "awesome",
	"love", "perfect", "best", "outstanding", "brilliant", "superb",
	"good", "nice", "happy", "satisfied", "pleased", "recommend",
	"beautiful", "incredible", "exceptional", "delightful", "impressive",
)

var negativeWords = wordSet(
	"terrible", "awful", "horrible", "bad", "worst", "hate",
	"disgusting", "disappointing", "poor", "useless", "broken", "failed",
	"wrong", "angry", "frustrated", "annoyed", "upset", "dissatisfied",
	"waste", "pathetic", "ridiculous", "unacceptable", "nightmare",
)

type emotionWords struct {
	emotion models.Emotion
	words   map[string]struct{}
}

// emotionLexicon order is the tie-break priority: on equal scores the
// earlier emotion wins.
var emotionLexicon = []emotionWords{
	{models.EmotionHappy, wordSet("happy", "joy", "excited", "delighted", "cheerful", "pleased", "thrilled")},
	{models.EmotionSad, wordSet("sad", "disappointed", "depressed", "unhappy", "upset", "miserable")},
	{models.EmotionAngry, wordSet("angry", "furious", "mad", "irritated", "annoyed", "outraged", "hate")},
	{models.EmotionSurprised, wordSet("surprised", "shocked", "amazed", "astonished", "stunned")},
	{models.EmotionFear, wordSet("scared", "afraid", "worried", "nervous", "anxious", "terrified")},
	{models.EmotionLove, wordSet("love", "adore", "cherish", "treasure", "passionate")},
}

// KeywordScorer classifies by counting hits against fixed word lists. It
// is deterministic and never fails.
type KeywordScorer struct{}

func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

func (k *KeywordScorer) Classify(_ context.Context, text string) (models.Classification, error) {
	return k.Score(text), nil
}

func (k *KeywordScorer) Score(text string) models.Classification {
	processed := preprocess.NormalizeLight(text)
	tokens := preprocess.Tokens(processed)

	pos := countHits(tokens, positiveWords)
	neg := countHits(tokens, negativeWords)

	sentiment := models.SentimentNeutral
	confidence := 0.5
	switch {
	case pos > neg:
		sentiment = models.SentimentPositive
		confidence = keywordConfidence(pos, neg)
	case neg > pos:
		sentiment = models.SentimentNegative
		confidence = keywordConfidence(pos, neg)
	}

	emotion, scores := k.dominantEmotion(tokens)

	return models.Classification{
		Sentiment:  sentiment,
		Emotion:    emotion,
		Confidence: confidence,
		Detail: models.ClassificationDetail{
			Strategy:      StrategyKeyword,
			ProcessedText: processed,
			PositiveHits:  pos,
			NegativeHits:  neg,
			Emotions:      scores,
		},
	}
}

// Emotion returns only the dominant emotion for text. Used to fill in for
// model backends without an emotion head.
func (k *KeywordScorer) Emotion(text string) models.Emotion {
	emotion, _ := k.dominantEmotion(preprocess.Tokens(preprocess.NormalizeLight(text)))
	return emotion
}

func (k *KeywordScorer) dominantEmotion(tokens map[string]struct{}) (models.Emotion, map[string]float64) {
	scores := make(map[string]float64, len(emotionLexicon))
	best := models.EmotionNeutral
	bestScore := 0
	for _, e := range emotionLexicon {
		n := countHits(tokens, e.words)
		scores[string(e.emotion)] = float64(n)
		if n > bestScore {
			best, bestScore = e.emotion, n
		}
	}
	return best, scores
}

func keywordConfidence(pos, neg int) float64 {
	diff := math.Abs(float64(pos - neg))
	return math.Min(0.95, 0.6+0.1*diff)
}

func countHits(tokens, words map[string]struct{}) int {
	n := 0
	for t := range tokens {
		if _, ok := words[t]; ok {
			n++
		}
	}
	return n
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
