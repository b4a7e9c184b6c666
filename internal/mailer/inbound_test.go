package mailer

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func inboundRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/sendgrid-inbound", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r
}

func TestParseInbound(t *testing.T) {
	r := inboundRequest(t, map[string]string{
		"from":    `"Ana García" <Ana@Example.com>`,
		"to":      "Bennie@itsbennie.com",
		"subject": " Re: Spanish Learning Email ",
		"text":    "¡Hola Bennie! Me gusta cocinar.\n\nOn Mon, Jan 6, 2025 at 8:00 AM Bennie <Bennie@itsbennie.com> wrote:\n> ¿Qué te gusta comer?",
	})

	in, err := ParseInbound(r)
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if in.From != "ana@example.com" {
		t.Errorf("From = %q", in.From)
	}
	if in.Subject != "Re: Spanish Learning Email" {
		t.Errorf("Subject = %q", in.Subject)
	}
	if in.Text != "¡Hola Bennie! Me gusta cocinar." {
		t.Errorf("Text = %q", in.Text)
	}
}

func TestParseInbound_HTMLFallback(t *testing.T) {
	r := inboundRequest(t, map[string]string{
		"from": "ana@example.com",
		"html": "<p>Bonjour!</p><br>Merci",
	})
	in, err := ParseInbound(r)
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if in.Text != "Bonjour!\n\nMerci" {
		t.Errorf("Text = %q", in.Text)
	}
}

func TestHTMLText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"entities", "<div>Caf&eacute; &amp; pan</div>", "Café & pan"},
		{"hidden", "<html><head><title>x</title><style>p{color:red}</style></head><body><p>Hola</p><script>var a = 1 < 2;</script></body></html>", "Hola"},
		{"breaks", "uno<br/>dos<br>tres", "uno\ndos\ntres"},
		{"plain", "sin etiquetas", "sin etiquetas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlText(tt.in); got != tt.want {
				t.Errorf("htmlText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseInbound_NoSender(t *testing.T) {
	r := inboundRequest(t, map[string]string{"text": "hi"})
	if _, err := ParseInbound(r); !errors.Is(err, ErrNoSender) {
		t.Errorf("error = %v, want ErrNoSender", err)
	}
}

func TestStripQuoted(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hola\nQué tal", "Hola\nQué tal"},
		{"quote markers", "Sí!\n> old line\n>> older", "Sí!"},
		{"spanish client", "Claro.\nEl lun, 6 ene 2025 a las 8:00, Bennie escribió:\nviejo", "Claro."},
		{"outlook", "Danke\r\n-----Original Message-----\r\nFrom: Bennie", "Danke"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripQuoted(tt.in); got != tt.want {
				t.Errorf("StripQuoted(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
