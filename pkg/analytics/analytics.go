// Package analytics derives per-generation text metrics: word count,
// estimated reading time, Flesch Reading Ease and a coarse sentiment label.
package analytics

import (
	"math"
	"strings"
	"unicode"

	"contentbrain/pkg/domain"
)

// Sentiment labels produced by classification.
const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

// wordsPerMinute is the assumed silent-reading speed.
const wordsPerMinute = 200

// Analyze computes the full snapshot for a generated text.
func Analyze(text string) domain.AnalyticsSnapshot {
	words := strings.Fields(text)
	wc := len(words)
	return domain.AnalyticsSnapshot{
		WordCount:        wc,
		ReadingTime:      ReadingTime(wc),
		ReadabilityScore: FleschReadingEase(text),
		Sentiment:        SentimentLabel(Polarity(text)),
	}
}

// ReadingTime returns estimated minutes to read wordCount words, minimum 1.
func ReadingTime(wordCount int) int {
	if wordCount <= 0 {
		return 1
	}
	minutes := int(math.Round(float64(wordCount) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// FleschReadingEase maps text onto the standard 0-100 ease scale.
// Higher is easier. Empty text scores 0.
func FleschReadingEase(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	sentences := countSentences(text)
	if sentences == 0 {
		sentences = 1
	}
	syllables := 0
	for _, word := range words {
		syllables += countSyllables(word)
	}
	wordCount := float64(len(words))
	score := 206.835 - 1.015*(wordCount/float64(sentences)) - 84.6*(float64(syllables)/wordCount)
	return math.Round(score*10) / 10
}

// SentimentLabel thresholds a polarity in [-1, 1] into the three labels.
// Both boundaries (-0.1 and 0.1 exactly) classify as Neutral.
func SentimentLabel(polarity float64) string {
	switch {
	case polarity > 0.1:
		return SentimentPositive
	case polarity < -0.1:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Polarity scores text in [-1, 1] from a small opinion lexicon: the signed
// share of sentiment-bearing words among all words. Text without any
// lexicon hit scores 0.
func Polarity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	var score int
	for _, word := range words {
		normalized := normalizeWord(word)
		if normalized == "" {
			continue
		}
		if positiveWords[normalized] {
			score++
		} else if negativeWords[normalized] {
			score--
		}
	}
	polarity := float64(score) / float64(len(words))
	if polarity > 1 {
		return 1
	}
	if polarity < -1 {
		return -1
	}
	return polarity
}

func countSentences(text string) int {
	count := 0
	inSentence := false
	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if inSentence {
				count++
				inSentence = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			inSentence = true
		}
	}
	if inSentence {
		count++
	}
	return count
}

// countSyllables approximates syllables as vowel groups, with the usual
// silent-e correction and a floor of one.
func countSyllables(word string) int {
	word = normalizeWord(word)
	if word == "" {
		return 1
	}
	groups := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			groups++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && groups > 1 {
		groups--
	}
	if groups < 1 {
		return 1
	}
	return groups
}

func normalizeWord(word string) string {
	return strings.TrimFunc(strings.ToLower(word), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

var positiveWords = map[string]bool{
	"amazing": true, "beautiful": true, "best": true, "better": true,
	"brilliant": true, "delightful": true, "effective": true, "efficient": true,
	"enjoy": true, "excellent": true, "exciting": true, "fantastic": true,
	"good": true, "great": true, "happy": true, "helpful": true,
	"impressive": true, "innovative": true, "love": true, "outstanding": true,
	"perfect": true, "positive": true, "powerful": true, "reliable": true,
	"remarkable": true, "success": true, "successful": true, "valuable": true,
	"win": true, "wonderful": true,
}

var negativeWords = map[string]bool{
	"awful": true, "bad": true, "broken": true, "confusing": true,
	"damage": true, "dangerous": true, "difficult": true, "disappointing": true,
	"fail": true, "failure": true, "harmful": true, "hate": true,
	"horrible": true, "inadequate": true, "lose": true, "loss": true,
	"negative": true, "poor": true, "problem": true, "sad": true,
	"terrible": true, "ugly": true, "unreliable": true, "useless": true,
	"weak": true, "worst": true, "worse": true, "wrong": true,
}
