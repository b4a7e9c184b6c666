package topics

import "time"

// Entry is one message from a user's history window.
type Entry struct {
	Text string
	// FromSystem is true for emails Bennie sent, false for user replies.
	FromSystem bool
	At         time.Time
}

// Analyze classifies the system-authored entries of a newest-first history
// window and returns their tags, newest first. User replies are skipped and
// entries matching no keyword are dropped, so the result may be shorter
// than the input.
func (t Table) Analyze(lang string, entries []Entry) []string {
	var tags []string
	for _, e := range entries {
		if !e.FromSystem {
			continue
		}
		if tag := t.Classify(lang, e.Text); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
