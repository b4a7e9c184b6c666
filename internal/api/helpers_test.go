package api

import (
	"testing"
	"time"

	"github.com/itsbennie/bennie/internal/evaluation"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/tokens"
	"github.com/itsbennie/bennie/internal/topics"
)

const testAdminToken = "admin-secret"

// fixedRand always flips the same coin and picks the first candidate.
type fixedRand struct{ coin float64 }

func (r fixedRand) Float64() float64 { return r.coin }
func (r fixedRand) IntN(int) int     { return 0 }

// monday0800 is a Monday, matching the default Monday slot.
var monday0800 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	signer, err := tokens.NewSigner("test-token-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	slots, err := schedule.Defaults("0,2,4", "08:00")
	if err != nil {
		t.Fatalf("schedule.Defaults: %v", err)
	}

	profiles := profile.NewManager(store)
	return Deps{
		Store:    store,
		Profiles: profiles,
		Tokens:   signer,
		Planner: lesson.New(lesson.Deps{
			Store:    store,
			Profiles: profiles,
			Selector: topics.NewSelector(fixedRand{coin: 0.9}, 0.7),
		}),
		Reporter:      &evaluation.Evaluator{Store: store, Profiles: profiles},
		DefaultSlots:  slots,
		AdminToken:    testAdminToken,
		WebhookSecret: "hook-secret",
		MaxAttempts:   3,
		BatchSize:     100,
		Now:           func() time.Time { return monday0800 },
	}
}

func seedUser(t *testing.T, deps Deps, email string, level int, interests string) storage.User {
	t.Helper()
	u, err := deps.Store.CreateUser(storage.User{
		Email:            email,
		Name:             "Ana",
		TargetLanguage:   "spanish",
		ProficiencyLevel: level,
		Interests:        interests,
		Active:           true,
		Verified:         true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := deps.Store.ReplaceSchedules(u.ID, schedule.Records(u.ID, deps.DefaultSlots)); err != nil {
		t.Fatalf("ReplaceSchedules: %v", err)
	}
	return u
}

func seedBennieMessage(t *testing.T, deps Deps, userID, content string, at time.Time) {
	t.Helper()
	if _, err := deps.Store.SaveMessage(storage.Message{
		UserID:     userID,
		Content:    content,
		FromBennie: true,
		Language:   "spanish",
		CreatedAt:  at,
	}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
}

func storageUser(email string) storage.User {
	return storage.User{
		Email:            email,
		Name:             "Ana",
		TargetLanguage:   "spanish",
		ProficiencyLevel: 10,
		Active:           true,
	}
}
