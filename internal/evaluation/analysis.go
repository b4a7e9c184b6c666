// Package evaluation builds the weekly progress email: reply statistics, an
// estimated level from recent replies, a vocabulary recap from recent
// practice emails, and a reply streak.
package evaluation

import (
	"fmt"
	"strings"
	"time"

	"github.com/itsbennie/bennie/internal/composer"
	"github.com/itsbennie/bennie/internal/leveling"
	"github.com/itsbennie/bennie/internal/storage"
)

// NoRepliesFeedback is the length feedback when there is nothing to analyze.
const NoRepliesFeedback = "No replies to analyze yet."

// streakGap is the largest gap between replies that keeps a streak alive.
const streakGap = 2

// ReplyLength averages the word counts of replies and returns feedback for
// the average.
func ReplyLength(replies []string) (avg float64, feedback string) {
	if len(replies) == 0 {
		return 0, NoRepliesFeedback
	}
	total := 0
	for _, r := range replies {
		total += len(strings.Fields(r))
	}
	avg = float64(total) / float64(len(replies))

	switch {
	case avg < 20:
		feedback = "Try to write a bit more in your replies - aim for at least 3-4 sentences!"
	case avg < 40:
		feedback = "Good length! Keep practicing with these medium-length responses."
	default:
		feedback = "Excellent detailed responses! Your thorough practice will speed up your learning."
	}
	return avg, feedback
}

// Estimate is a rough proficiency reading from reply length and variety.
type Estimate struct {
	Level       int
	Semester    int
	Description string
}

// EstimateLevel scores each reply on length (words/10) and vocabulary
// (unique words/5), each capped at 10, averages the two, and scales the
// mean to 1-100.
func EstimateLevel(replies []string) Estimate {
	if len(replies) == 0 {
		return Estimate{Level: 1, Semester: 1, Description: "Just starting out!"}
	}
	var total float64
	for _, r := range replies {
		words := strings.Fields(r)
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		lengthScore := min(float64(len(words))/10, 10)
		vocabScore := min(float64(len(unique))/5, 10)
		total += (lengthScore + vocabScore) / 2
	}
	level := leveling.Clamp(int(total / float64(len(replies)) * 5))
	band, _ := leveling.BandFor(level)
	return Estimate{Level: level, Semester: band.Index, Description: band.Guidance}
}

// Vocabulary collects the non-empty lines after the last "Vocabulary:" or
// "New words:" heading of each email. Emails without a heading contribute
// nothing.
func Vocabulary(emails []string) []string {
	var vocab []string
	for _, content := range emails {
		if !strings.Contains(content, composer.VocabularyHeading) && !strings.Contains(content, "New words:") {
			continue
		}
		section := after(after(content, composer.VocabularyHeading), "New words:")
		for _, line := range strings.Split(section, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				vocab = append(vocab, line)
			}
		}
	}
	return vocab
}

// after returns the part of s following the last sep, or s when sep is
// absent.
func after(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

// Progress summarizes the reply rate over the given windows and the current
// reply streak. replies and emails are newest first.
func Progress(replies, emails []storage.Message, now time.Time) string {
	rate := 0.0
	if len(emails) > 0 {
		rate = float64(len(replies)) / float64(len(emails)) * 100
	}
	return fmt.Sprintf("You've replied to %.0f%% of Bennie's emails (that's %d out of %d). Current response streak: %d days!",
		rate, len(replies), len(emails), Streak(replies, now))
}

// Streak counts consecutive replies, newest first, no more than two days
// apart. The newest reply must be within two days of now to start a streak.
func Streak(replies []storage.Message, now time.Time) int {
	if len(replies) == 0 || wholeDays(now.Sub(replies[0].CreatedAt)) > streakGap {
		return 0
	}
	streak := 1
	last := replies[0].CreatedAt
	for _, r := range replies[1:] {
		if wholeDays(last.Sub(r.CreatedAt)) > streakGap {
			break
		}
		streak++
		last = r.CreatedAt
	}
	return streak
}

// wholeDays floors d to whole days, rounding toward negative infinity.
func wholeDays(d time.Duration) int {
	days := d / (24 * time.Hour)
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return int(days)
}
