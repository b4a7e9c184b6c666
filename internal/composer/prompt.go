// Package composer renders the instruction prompt sent to the text
// generation model for each practice email.
package composer

import (
	"fmt"
	"strings"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/leveling"
)

// VocabularyHeading introduces the word definitions after the signature.
// Weekly evaluation looks for it when collecting recent vocabulary.
const VocabularyHeading = "Vocabulary:"

// InputError reports which prompt input was rejected.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Input is everything a practice prompt depends on.
type Input struct {
	Language string
	Score    int
	Name     string
	// Goal and Interests are the user's own free text, passed through as-is.
	Goal      string
	Interests string
	Topic     string
	Novel     bool
	// Recent is the newest-first list of topics already covered.
	Recent []string
}

// Compose validates in and renders the prompt. The output depends only on
// in: identical inputs produce byte-identical prompts.
func Compose(in Input) (string, error) {
	lang, err := language.Parse(in.Language)
	if err != nil {
		return "", &InputError{Field: "language", Err: err}
	}
	band, err := leveling.BandFor(in.Score)
	if err != nil {
		return "", &InputError{Field: "score", Err: err}
	}
	return render(in, lang, band), nil
}

func render(in Input, lang language.Language, band leveling.Band) string {
	name := orDefault(in.Name, "your friend")
	var sb strings.Builder

	fmt.Fprintf(&sb, "Your name is Bennie. You are a warm, curious AI friend who writes short emails to help %s learn %s. ", name, lang.Name())
	sb.WriteString("Write like a pen pal, not a teacher: share something about your day and show genuine interest in theirs.\n")

	sb.WriteString("\n[User Context]\n")
	fmt.Fprintf(&sb, "- Name: %s\n", name)
	fmt.Fprintf(&sb, "- Target language: %s\n", lang.Name())
	fmt.Fprintf(&sb, "- Proficiency: %d/100 (band %d of 8, %s). %s\n", in.Score, band.Index, band.Label, band.Guidance)
	fmt.Fprintf(&sb, "- Learning goal: %s\n", orDefault(strings.TrimSpace(in.Goal), "not stated"))
	fmt.Fprintf(&sb, "- Interests: %s\n", orDefault(strings.TrimSpace(in.Interests), "not stated"))

	sb.WriteString("\n[Topic Guidance]\n")
	fmt.Fprintf(&sb, "- Topic for this email: %s\n", in.Topic)
	if in.Novel {
		sb.WriteString("- This is a new topic. Introduce it fresh instead of continuing an earlier conversation.\n")
	} else {
		sb.WriteString("- This continues a recent topic. Build on it from a new angle rather than repeating what was already said.\n")
	}
	if len(in.Recent) > 0 {
		fmt.Fprintf(&sb, "- Recently covered topics, newest first: %s\n", strings.Join(in.Recent, ", "))
	} else {
		sb.WriteString("- Recently covered topics: none\n")
	}
	sb.WriteString("- Variety rule: a topic may come up at most twice in any three consecutive emails. Once it has, switch to a different topic.\n")

	sb.WriteString("\n[Vocabulary Guidance]\n")
	sb.WriteString(band.Vocabulary)
	sb.WriteString("\n")

	sb.WriteString("\n[Format Requirements]\n")
	fmt.Fprintf(&sb, "- Write the message in %s.\n", lang.Name())
	sb.WriteString("- Keep the message to 3-4 sentences.\n")
	fmt.Fprintf(&sb, "- End with a question that invites %s to reply and carry on the conversation.\n", name)
	fmt.Fprintf(&sb, "- Sign off with exactly this line: %s\n", lang.Signature())
	fmt.Fprintf(&sb, "- After the signature, add a line \"%s\" followed by one line per new word with its English definition.\n", VocabularyHeading)

	return sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
