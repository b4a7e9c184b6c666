// Package language defines the closed set of target languages Bennie
// teaches and the per-language strings that go with them.
package language

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLanguage is returned by Parse for identifiers outside the
// supported set.
var ErrUnknownLanguage = errors.New("unknown target language")

// Language is a canonical, lower-case target language identifier.
type Language string

const (
	Spanish  Language = "spanish"
	French   Language = "french"
	Mandarin Language = "mandarin"
	Japanese Language = "japanese"
	German   Language = "german"
	Italian  Language = "italian"
)

type info struct {
	name      string
	signature string
	subject   string
	hello     string
	farewell  string
}

var languages = map[Language]info{
	Spanish: {
		name:      "Spanish",
		signature: "Con cariño, Bennie",
		subject:   "Spanish Learning Email from Bennie! - Correo de aprendizaje de español",
		hello:     "¡Hola! ¿Cómo estás?",
		farewell:  "¡Que tengas un buen camino!",
	},
	French: {
		name:      "French",
		signature: "Avec affection, Bennie",
		subject:   "French Learning Email from Bennie! - E-mail d'apprentissage du français",
		hello:     "Salut ! Comment ça va ?",
		farewell:  "Bonne route !",
	},
	Mandarin: {
		name:      "Mandarin Chinese",
		signature: "温暖的问候，Bennie",
		subject:   "Chinese Learning Email from Bennie! - 中文学习邮件",
		hello:     "你好！你最近好吗？",
		farewell:  "一路顺风！",
	},
	Japanese: {
		name:      "Japanese",
		signature: "心を込めて、Bennie",
		subject:   "Japanese Learning Email from Bennie! - 日本語学習メール",
		hello:     "こんにちは！お元気ですか？",
		farewell:  "道中お気をつけて！",
	},
	German: {
		name:      "German",
		signature: "Herzliche Grüße, Bennie",
		subject:   "German Learning Email from Bennie! - Deutsch-Lern-E-Mail",
		hello:     "Hallo! Wie geht es dir?",
		farewell:  "Gute Reise!",
	},
	Italian: {
		name:      "Italian",
		signature: "Con affetto, Bennie",
		subject:   "Italian Learning Email from Bennie! - E-mail di apprendimento dell'italiano",
		hello:     "Ciao! Come stai?",
		farewell:  "Buon viaggio!",
	},
}

var aliases = map[string]Language{
	"chinese":          Mandarin,
	"mandarin chinese": Mandarin,
	"español":          Spanish,
	"français":         French,
	"deutsch":          German,
	"italiano":         Italian,
}

// All lists the supported languages in a stable order.
func All() []Language {
	return []Language{Spanish, French, Mandarin, Japanese, German, Italian}
}

// Parse normalizes s (case, whitespace, known aliases) into a Language.
func Parse(s string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if _, ok := languages[Language(key)]; ok {
		return Language(key), nil
	}
	if l, ok := aliases[key]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}

// Name is the English display name, e.g. "Mandarin Chinese".
func (l Language) Name() string { return languages[l].name }

// Signature is the localized sign-off line generated emails must end with.
func (l Language) Signature() string { return languages[l].signature }

// Subject is the bilingual subject line for practice emails.
func (l Language) Subject() string { return languages[l].subject }

// Greeting is the opening line of the welcome email.
func (l Language) Greeting() string { return languages[l].hello }

// Farewell is the opening line of the goodbye email.
func (l Language) Farewell() string { return languages[l].farewell }

func (l Language) String() string { return string(l) }
