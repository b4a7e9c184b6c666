package mailer

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxInboundSize bounds the multipart form kept in memory.
const maxInboundSize = 10 << 20

// ErrNoSender is returned when an inbound message has no parseable From.
var ErrNoSender = errors.New("inbound email has no sender address")

// Inbound is a reply decoded from a SendGrid Inbound Parse POST.
type Inbound struct {
	From    string // bare, lower-cased address
	To      string
	Subject string
	Text    string // reply text with the quoted thread removed
	Raw     string
}

// ParseInbound decodes the multipart form SendGrid posts for each received
// email. Text falls back to the text of the HTML part when the plain part
// is empty.
func ParseInbound(r *http.Request) (Inbound, error) {
	if err := r.ParseMultipartForm(maxInboundSize); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return Inbound{}, fmt.Errorf("parsing inbound form: %w", err)
		}
		if err := r.ParseForm(); err != nil {
			return Inbound{}, fmt.Errorf("parsing inbound form: %w", err)
		}
	}

	from, err := senderAddress(r.FormValue("from"))
	if err != nil {
		return Inbound{}, err
	}

	raw := r.FormValue("text")
	if strings.TrimSpace(raw) == "" {
		raw = htmlText(r.FormValue("html"))
	}

	return Inbound{
		From:    from,
		To:      r.FormValue("to"),
		Subject: strings.TrimSpace(r.FormValue("subject")),
		Text:    StripQuoted(raw),
		Raw:     raw,
	}, nil
}

func senderAddress(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoSender
	}
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSender, err)
	}
	return strings.ToLower(addr.Address), nil
}

var (
	// "On Mon, Jan 1, 2024 at 8:00 AM Bennie <Bennie@itsbennie.com> wrote:"
	wroteLine = regexp.MustCompile(`(?i)^on\s.+wrote:\s*$`)
	// "El lun, 1 ene 2024 ... escribió:" and similar localized client headers.
	localizedWrote = regexp.MustCompile(`(?i)^.+\s(escribió|a écrit|schrieb|ha scritto|のメッセージ|写道)\s*:\s*$`)
)

// StripQuoted cuts a reply at the first line that starts the quoted
// thread and drops ">"-quoted lines.
func StripQuoted(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if wroteLine.MatchString(trimmed) || localizedWrote.MatchString(trimmed) ||
			strings.HasPrefix(trimmed, "-----Original Message-----") ||
			strings.HasPrefix(trimmed, "________________________________") {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// htmlText extracts the visible text of an HTML body, with entities
// decoded and a line break per <br> and closed block.
func htmlText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var sb strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			if hidden == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Br:
				sb.WriteByte('\n')
			case atom.Head, atom.Script, atom.Style:
				if tt == html.StartTagToken {
					hidden++
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.P, atom.Div, atom.Li, atom.Tr:
				sb.WriteByte('\n')
			case atom.Head, atom.Script, atom.Style:
				if hidden > 0 {
					hidden--
				}
			}
		}
	}
}
