package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/itsbennie/bennie/internal/language"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlPages = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textPages = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

const (
	// EvaluationSubject is the subject line of the weekly progress email.
	EvaluationSubject = "Your Weekly Language Progress with Bennie!"

	defaultDays = "Monday, Wednesday, and Friday"
	contactNote = "P.S. You can always reach out to us at hello@itsbennie.com if you have any questions or just want to say hi!"
)

// Content is a rendered email body with its subject.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// Email addresses the rendered content to a recipient.
func (c Content) Email(to Address, category string) Email {
	e := Email{To: to, Subject: c.Subject, Text: c.Text, HTML: c.HTML}
	if category != "" {
		e.Categories = []string{category}
	}
	return e
}

type pageData struct {
	Title      string
	Greeting   string
	Name       string
	Language   string
	Days       string
	Link       string
	SignOff    string
	PostScript string
}

// Welcome renders the email sent right after sign-up. link is the signed
// onboarding URL; days describes the send schedule ("Monday, Wednesday,
// and Friday" when empty).
func Welcome(name string, lang language.Language, link, days string) (Content, error) {
	if days == "" {
		days = defaultDays
	}
	data := pageData{
		Title:    "Welcome to Bennie!",
		Greeting: lang.Greeting(),
		Name:     name,
		Language: lang.Name(),
		Days:     days,
		Link:     link,
		SignOff:  "With love and excitement",
	}
	subject := fmt.Sprintf("Welcome to Bennie! Your %s Learning Journey Begins", lang.Name())
	return render("welcome", subject, data)
}

// Exit renders the goodbye email sent after a user unsubscribes.
func Exit(name string, lang language.Language) (Content, error) {
	data := pageData{
		Title:      "Goodbye from Bennie",
		Greeting:   lang.Farewell(),
		Name:       name,
		Language:   lang.Name(),
		SignOff:    "With gratitude and warm wishes",
		PostScript: contactNote,
	}
	return render("exit", "Goodbye from Bennie - Thank You for Learning With Me", data)
}

func render(page, subject string, data pageData) (Content, error) {
	var html, text bytes.Buffer
	if err := htmlPages.ExecuteTemplate(&html, page+".html", data); err != nil {
		return Content{}, fmt.Errorf("rendering %s html: %w", page, err)
	}
	if err := textPages.ExecuteTemplate(&text, page+".txt", data); err != nil {
		return Content{}, fmt.Errorf("rendering %s text: %w", page, err)
	}
	return Content{
		Subject: subject,
		Text:    strings.TrimSpace(text.String()),
		HTML:    strings.TrimSpace(html.String()),
	}, nil
}

// TextToHTML wraps generated plain text in the minimal HTML body used for
// practice and evaluation emails. The text is escaped and newlines become
// line breaks.
func TextToHTML(text string) string {
	escaped := htmltemplate.HTMLEscapeString(text)
	body := strings.ReplaceAll(escaped, "\n", "<br>\n")
	return `<html><body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">` + body + `</body></html>`
}
