// Package leveling maps numeric proficiency scores onto the eight teaching
// bands used to pitch generated content.
package leveling

import (
	"errors"
	"fmt"
)

const (
	MinScore = 1
	MaxScore = 100
)

// ErrScoreOutOfRange is returned for scores outside [MinScore, MaxScore].
var ErrScoreOutOfRange = errors.New("proficiency score out of range")

// Band is one of eight contiguous proficiency tiers.
type Band struct {
	Index int
	// Upper is the highest score that still falls into this band.
	Upper      int
	Label      string
	Guidance   string
	Vocabulary string
}

var bands = [...]Band{
	{
		Index: 1, Upper: 12, Label: "Absolute beginner",
		Guidance:   "Absolute beginner. Greetings, basic phrases, simple questions. Equivalent to first semester college language student.",
		Vocabulary: "Use only the most common everyday words and the present tense. Keep every sentence under 8 words. Introduce at most 2 new words, each concrete and easy to picture.",
	},
	{
		Index: 2, Upper: 25, Label: "Beginner",
		Guidance:   "Beginner. Simple present tense, basic questions, daily life topics. Equivalent to second semester.",
		Vocabulary: "Use simple present-tense sentences about daily life and basic questions. Introduce 3 new words that are common and useful, and avoid idioms.",
	},
	{
		Index: 3, Upper: 37, Label: "Lower intermediate",
		Guidance:   "Lower intermediate. Past/future tense, more vocabulary, short stories. Equivalent to third semester.",
		Vocabulary: "Mix present, past and simple future tenses in short connected sentences. Introduce 3 new words that build on everyday vocabulary.",
	},
	{
		Index: 4, Upper: 50, Label: "Intermediate",
		Guidance:   "Intermediate. Complex sentences, opinions, short essays. Equivalent to fourth semester.",
		Vocabulary: "Use compound sentences and invite opinions. Introduce 3 new words, including one useful verb or connector.",
	},
	{
		Index: 5, Upper: 62, Label: "Upper intermediate",
		Guidance:   "Upper intermediate. Argumentation, abstract topics, intro to literature. Equivalent to fifth semester.",
		Vocabulary: "Use subordinate clauses and some abstract vocabulary. Introduce 3 to 4 new words, one of them a common expression.",
	},
	{
		Index: 6, Upper: 75, Label: "Advanced",
		Guidance:   "Advanced. Advanced readings, idioms, cultural nuance. Equivalent to sixth semester.",
		Vocabulary: "Write naturally with varied tenses and moods. Introduce 4 new words or idioms that carry cultural nuance.",
	},
	{
		Index: 7, Upper: 87, Label: "Very advanced",
		Guidance:   "Very advanced. Academic/professional topics, debates, research. Equivalent to seventh semester.",
		Vocabulary: "Write as you would to an educated native speaker on professional or academic subjects. Introduce 4 precise, less common words.",
	},
	{
		Index: 8, Upper: 100, Label: "Near-native",
		Guidance:   "Near-native. Literature, advanced writing, slang, full fluency. Equivalent to eighth (final) semester.",
		Vocabulary: "Write with full native complexity, including slang and literary register where it fits. Introduce 4 to 5 rare or regional words.",
	},
}

// BandFor returns the band containing score. Scores outside [1,100] are
// rejected with ErrScoreOutOfRange; callers that want to tolerate bad data
// should pass the score through Clamp first.
func BandFor(score int) (Band, error) {
	if score < MinScore || score > MaxScore {
		return Band{}, fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	for _, b := range bands {
		if score <= b.Upper {
			return b, nil
		}
	}
	// unreachable: the last band's Upper is MaxScore
	return bands[len(bands)-1], nil
}

// Clamp forces score into [MinScore, MaxScore].
func Clamp(score int) int {
	return max(MinScore, min(score, MaxScore))
}

// Bands returns all bands in ascending order.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands[:])
	return out
}
