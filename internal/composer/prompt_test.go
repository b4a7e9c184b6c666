package composer

import (
	"errors"
	"strings"
	"testing"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/leveling"
)

func baseInput() Input {
	return Input{
		Language:  "french",
		Score:     18,
		Name:      "Colt",
		Goal:      "Order food on my trip to Lyon",
		Interests: "cooking, hiking",
		Topic:     "hiking",
		Novel:     true,
	}
}

func TestCompose_ContainsSections(t *testing.T) {
	out, err := Compose(baseInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	band, _ := leveling.BandFor(18)
	for _, want := range []string{
		"Your name is Bennie",
		"[User Context]",
		"French",
		"Colt",
		"Order food on my trip to Lyon",
		"cooking, hiking",
		"[Topic Guidance]",
		"Topic for this email: hiking",
		"This is a new topic",
		"Variety rule",
		"[Vocabulary Guidance]",
		band.Vocabulary,
		band.Guidance,
		"3-4 sentences",
		"Avec affection, Bennie",
		VocabularyHeading,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q\n%s", want, out)
		}
	}
}

func TestCompose_SignaturePerLanguage(t *testing.T) {
	for _, lang := range language.All() {
		in := baseInput()
		in.Language = string(lang)
		in.Topic = "weather"

		out, err := Compose(in)
		if err != nil {
			t.Fatalf("%s: %v", lang, err)
		}
		if !strings.Contains(out, lang.Signature()) {
			t.Errorf("%s: prompt missing signature %q", lang, lang.Signature())
		}
		if !strings.Contains(out, "weather") {
			t.Errorf("%s: prompt missing topic", lang)
		}
	}

	in := baseInput()
	in.Language = "spanish"
	out, _ := Compose(in)
	if !strings.Contains(out, "Con cariño, Bennie") {
		t.Error("spanish prompt missing \"Con cariño, Bennie\"")
	}
}

func TestCompose_VocabularyByBand(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range leveling.Bands() {
		in := baseInput()
		in.Score = b.Upper
		out, err := Compose(in)
		if err != nil {
			t.Fatalf("score %d: %v", b.Upper, err)
		}
		if !strings.Contains(out, b.Vocabulary) {
			t.Errorf("score %d: prompt missing band %d vocabulary guidance", b.Upper, b.Index)
		}
		seen[out] = true
	}
	if len(seen) != 8 {
		t.Errorf("got %d distinct prompts across 8 bands", len(seen))
	}
}

func TestCompose_RepeatAndRecent(t *testing.T) {
	in := baseInput()
	in.Novel = false
	in.Topic = "food"
	in.Recent = []string{"food", "travel"}

	out, err := Compose(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "continues a recent topic") {
		t.Error("repeat prompt missing continuation guidance")
	}
	if !strings.Contains(out, "newest first: food, travel") {
		t.Error("prompt missing recent topics")
	}
}

func TestCompose_EmptyOptionalFields(t *testing.T) {
	in := baseInput()
	in.Goal = ""
	in.Interests = "  "
	in.Name = ""

	out, err := Compose(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Learning goal: not stated") || !strings.Contains(out, "Interests: not stated") {
		t.Errorf("missing fallbacks for empty fields:\n%s", out)
	}
	if !strings.Contains(out, "Recently covered topics: none") {
		t.Error("missing empty recent marker")
	}
}

func TestCompose_Deterministic(t *testing.T) {
	in := baseInput()
	in.Recent = []string{"food", "travel", "work"}
	a, _ := Compose(in)
	b, _ := Compose(in)
	if a != b {
		t.Error("Compose is not deterministic for identical input")
	}
}

func TestCompose_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Input)
		field string
		err   error
	}{
		{"score low", func(in *Input) { in.Score = 0 }, "score", leveling.ErrScoreOutOfRange},
		{"score high", func(in *Input) { in.Score = 101 }, "score", leveling.ErrScoreOutOfRange},
		{"language", func(in *Input) { in.Language = "klingon" }, "language", language.ErrUnknownLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mod(&in)
			_, err := Compose(in)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error = %v, want %v", err, tt.err)
			}
			var ie *InputError
			if !errors.As(err, &ie) || ie.Field != tt.field {
				t.Errorf("error = %v, want InputError for %s", err, tt.field)
			}
		})
	}
}
