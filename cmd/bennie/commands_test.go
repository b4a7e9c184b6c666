package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/itsbennie/bennie/internal/config"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/worker"
)

func testConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080, PublicURL: "https://bennie.test"},
		Storage: config.StorageConfig{DataDir: ":memory:"},
		Auth:    config.AuthConfig{TokenSecret: "test-secret", TokenTTLHours: 72},
		Schedule: config.ScheduleConfig{
			DefaultDays: "0,2,4",
			DefaultTime: "08:00",
			BatchSize:   100,
			Concurrency: 2,
		},
		Selection: config.SelectionConfig{HistoryWindow: 20, NoveltyProbability: 0.7},
		Worker:    config.WorkerConfig{MaxAttempts: 3},
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(testConfig(), false)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_DeliveryNeedsSecrets(t *testing.T) {
	_, err := newApp(testConfig(), true)
	if err == nil || !strings.Contains(err.Error(), "BENNIE_OPENAI_API_KEY") {
		t.Fatalf("err = %v, want missing generation key", err)
	}
}

func TestNewApp_BadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.DefaultTime = "25:00"
	if _, err := newApp(cfg, false); err == nil {
		t.Fatal("expected error for invalid default time")
	}
}

func TestNewApp_KeywordTableCoversLanguages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	if err := os.WriteFile(path, []byte("spanish:\n  - tag: food\n    keywords: [comida]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Selection.KeywordsFile = path

	_, err := newApp(cfg, false)
	if err == nil || !strings.Contains(err.Error(), "french") {
		t.Fatalf("err = %v, want missing-language error", err)
	}
}

func TestAddUserAndList(t *testing.T) {
	a := newTestApp(t)

	u, err := addUser(a, newUser{
		email:     " Ana@Example.com ",
		name:      "Ana",
		language:  "es",
		level:     30,
		interests: "cooking",
		welcome:   true,
	})
	if err != nil {
		t.Fatalf("addUser: %v", err)
	}
	if u.Email != "ana@example.com" || u.TargetLanguage != "spanish" {
		t.Errorf("user = %+v", u)
	}

	slots, err := a.store.Schedules(u.ID)
	if err != nil || len(slots) != 3 {
		t.Errorf("schedules = %v, %v; want 3 slots", slots, err)
	}
	job, err := a.store.ClaimNextJob([]string{worker.TypeWelcome})
	if err != nil || job == nil {
		t.Errorf("welcome job not queued: %v, %v", job, err)
	}

	if _, err := addUser(a, newUser{email: "ana@example.com", language: "french", level: 1}); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate err = %v, want ErrDuplicate", err)
	}

	var buf bytes.Buffer
	if err := listUsers(&buf, a, true, 0, 10); err != nil {
		t.Fatalf("listUsers: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ana@example.com") || !strings.Contains(out, "pending onboarding") {
		t.Errorf("list output:\n%s", out)
	}
}

func TestAddUser_Rejects(t *testing.T) {
	a := newTestApp(t)
	if _, err := addUser(a, newUser{email: "a@example.com", language: "klingon", level: 10}); err == nil {
		t.Error("expected error for unknown language")
	}
	if _, err := addUser(a, newUser{email: "a@example.com", language: "german", level: 0}); err == nil {
		t.Error("expected error for level 0")
	}
}

func TestListUsers_Empty(t *testing.T) {
	a := newTestApp(t)
	var buf bytes.Buffer
	if err := listUsers(&buf, a, false, 0, 10); err != nil {
		t.Fatalf("listUsers: %v", err)
	}
	if !strings.Contains(buf.String(), "No users found.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	a := newTestApp(t)
	if _, err := addUser(a, newUser{email: "ana@example.com", language: "italian", level: 10}); err != nil {
		t.Fatalf("addUser: %v", err)
	}

	p, err := setLevel(a, "ana@example.com", 80)
	if err != nil {
		t.Fatalf("setLevel: %v", err)
	}
	if p.Score != 80 || p.Band.Index != 7 {
		t.Errorf("profile score/band = %d/%d, want 80/7", p.Score, p.Band.Index)
	}

	if _, err := setLevel(a, "ana@example.com", 101); err == nil {
		t.Error("expected error for level 101")
	}
	if _, err := setLevel(a, "nobody@example.com", 50); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown user err = %v, want ErrNotFound", err)
	}
}

func TestPreviewUser(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	a := newTestApp(t)
	if _, err := addUser(a, newUser{email: "ana@example.com", name: "Ana", language: "french", level: 55, interests: "cinema"}); err != nil {
		t.Fatalf("addUser: %v", err)
	}

	var buf bytes.Buffer
	if err := previewUser(context.Background(), &buf, a, "ana@example.com"); err != nil {
		t.Fatalf("previewUser: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Ana learning French", "Recent topics: none", "Next topic:    cinema (new)"} {
		if !strings.Contains(out, want) {
			t.Errorf("preview output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReport(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	a := newTestApp(t)
	u, err := addUser(a, newUser{email: "ana@example.com", name: "Ana", language: "spanish", level: 20})
	if err != nil {
		t.Fatalf("addUser: %v", err)
	}
	if _, err := a.store.SaveMessage(storage.Message{UserID: u.ID, Content: "Hola Bennie, hoy cociné una paella con mi familia.", Language: "spanish"}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	var buf bytes.Buffer
	if err := printReport(&buf, a, u.ID); err != nil {
		t.Fatalf("printReport: %v", err)
	}
	if !strings.Contains(buf.String(), "Replies analyzed: 1") {
		t.Errorf("report output:\n%s", buf.String())
	}
}

// --- batch sends ---

type fakePager struct{ users []storage.User }

func (f fakePager) ListUsers(_ bool, offset, limit int) ([]storage.User, error) {
	if offset >= len(f.users) {
		return nil, nil
	}
	return f.users[offset:min(offset+limit, len(f.users))], nil
}

type fakeDeliverer struct {
	mu   sync.Mutex
	seen []string
	errs map[string]error
}

func (f *fakeDeliverer) Deliver(_ context.Context, userID string) (lesson.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, userID)
	return lesson.Delivery{}, f.errs[userID]
}

func batchFixture() (fakePager, *fakeDeliverer) {
	var users []storage.User
	for i := range 5 {
		users = append(users, storage.User{ID: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i)})
	}
	return fakePager{users: users}, &fakeDeliverer{errs: map[string]error{
		"u1": lesson.ErrInactive,
		"u3": errors.New("sendgrid http 500"),
	}}
}

func TestBatchSender_AllPages(t *testing.T) {
	pager, d := batchFixture()
	b := batchSender{users: pager, lessons: d, pageSize: 2, concurrency: 2}

	res, err := b.run(context.Background(), 0, true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.sent != 3 || res.skipped != 1 || len(res.failures) != 1 {
		t.Errorf("sent/skipped/failed = %d/%d/%d, want 3/1/1", res.sent, res.skipped, len(res.failures))
	}
	if _, ok := res.failures["u3@example.com"]; !ok {
		t.Errorf("failures = %v, want u3", res.failures)
	}
	if res.more || res.next != 5 {
		t.Errorf("more/next = %v/%d, want false/5", res.more, res.next)
	}
	if len(d.seen) != 5 {
		t.Errorf("delivered to %d users, want 5", len(d.seen))
	}
}

func TestBatchSender_SinglePage(t *testing.T) {
	pager, d := batchFixture()
	b := batchSender{users: pager, lessons: d, pageSize: 2, concurrency: 4}

	res, err := b.run(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(d.seen) != 2 {
		t.Fatalf("delivered to %v, want u2 and u3", d.seen)
	}
	if !res.more || res.next != 4 {
		t.Errorf("more/next = %v/%d, want true/4", res.more, res.next)
	}
}

// --- command wiring ---

func TestEvaluateCommand_NeedsTarget(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"evaluate"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Fatalf("err = %v, want argument error", err)
	}
}

func TestSendBatchCommand_BadOffset(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"send-batch", "abc"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "non-negative") {
		t.Fatalf("err = %v, want offset error", err)
	}
}

// --- API client ---

func TestShowStatus(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Write([]byte(`{"status":"ok"}`))
		case "/api/admin/jobs":
			auth = r.Header.Get("Authorization")
			w.Write([]byte(`{"pending":2,"completed":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, token: "admin", httpClient: srv.Client()}
	if err := showStatus(context.Background(), client); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
	if auth != "Bearer admin" {
		t.Errorf("auth = %q, want Bearer admin", auth)
	}
}

func TestShowStatus_Stopped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := &apiClient{baseURL: url, httpClient: http.DefaultClient}
	if err := showStatus(context.Background(), client); err != nil {
		t.Errorf("a stopped server is reported, not returned: %v", err)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid or missing bearer token","type":"authentication_error"}}`))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	resp, err := client.post(context.Background(), "/api/admin/send-due", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var v map[string]any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid or missing bearer token") {
		t.Errorf("err = %v", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorRed, "test"); strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", got)
	}

	noColor = false
	if got := colorize(colorRed, "test"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}
