package evaluation

import (
	"fmt"
	"strings"
	"time"

	"github.com/itsbennie/bennie/internal/storage"
)

// Window is how many recent emails and replies an evaluation looks at.
const Window = 3

// Report is the analysis behind one weekly evaluation.
type Report struct {
	Name     string
	Language string

	Emails  []string
	Replies []string

	AverageLength  float64
	LengthFeedback string
	Estimate       Estimate
	Vocabulary     []string
	Progress       string
}

// Build analyzes the newest-first Bennie emails and user replies.
func Build(name, lang string, emails, replies []storage.Message, now time.Time) Report {
	r := Report{
		Name:     name,
		Language: lang,
		Emails:   contents(emails),
		Replies:  contents(replies),
		Progress: Progress(replies, emails, now),
	}
	r.AverageLength, r.LengthFeedback = ReplyLength(r.Replies)
	r.Estimate = EstimateLevel(r.Replies)
	r.Vocabulary = Vocabulary(r.Emails)
	return r
}

func contents(msgs []storage.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

// Prompt renders the generation prompt for the evaluation email. It is
// written in English regardless of the target language.
func (r Report) Prompt() string {
	vocab := "No new words found."
	if len(r.Vocabulary) > 0 {
		vocab = strings.Join(r.Vocabulary, "\n")
	}

	var sb strings.Builder
	sb.WriteString("You are Bennie, a friendly and encouraging AI language learning coach who has been emailing back and forth with the user who sent these emails. ")
	sb.WriteString("Write a weekly evaluation email in ENGLISH to the user below. Be upbeat, supportive, and helpful. Use the following structure:\n\n")
	sb.WriteString("1. Friendly greeting and encouragement.\n")
	fmt.Fprintf(&sb, "2. Motivational progress tracker: %s\n", r.Progress)
	fmt.Fprintf(&sb, "3. Vocabulary recap: List the new words from the last %d Bennie emails (with definitions).\n", Window)
	sb.WriteString("4. Evaluation of the user's replies: Give specific examples of things they did well and things to improve. Be positive and not nitpicky.\n")
	fmt.Fprintf(&sb, "5. Quick proficiency evaluation: Their average reply level this week was %d/100, which is equivalent to semester %d out of 8. (%s)\n",
		r.Estimate.Level, r.Estimate.Semester, r.Estimate.Description)
	fmt.Fprintf(&sb, "6. Email length feedback: Their average reply was %.1f words. %s\n", r.AverageLength, r.LengthFeedback)
	sb.WriteString("7. Friendly closing and encouragement for the coming week.\n\n")

	sb.WriteString("User info:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", r.Name)
	fmt.Fprintf(&sb, "- Target language: %s\n\n", r.Language)

	fmt.Fprintf(&sb, "Bennie emails (last %d):\n%s\n\n", Window, strings.Join(r.Emails, "\n"))
	fmt.Fprintf(&sb, "User replies (last %d):\n%s\n\n", Window, strings.Join(r.Replies, "\n"))
	fmt.Fprintf(&sb, "Vocabulary recap:\n%s\n", vocab)
	return sb.String()
}
