package profile

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/leveling"
	"github.com/itsbennie/bennie/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu    sync.Mutex
	users map[string]storage.User

	getCalls int
}

func newMockStore(users ...storage.User) *mockStore {
	m := &mockStore{users: make(map[string]storage.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockStore) GetUser(id string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	u, ok := m.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (m *mockStore) UpdateUser(u storage.User) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return storage.User{}, storage.ErrNotFound
	}
	m.users[u.ID] = u
	return u, nil
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testUser() storage.User {
	return storage.User{
		ID:               "u1",
		Email:            "colt@example.com",
		Name:             "Colt",
		TargetLanguage:   "chinese",
		ProficiencyLevel: 18,
		Interests:        "Cooking, hiking",
		LearningGoal:     "Talk with my in-laws",
		Active:           true,
	}
}

// --- Tests ---

func TestGet_BuildsProfile(t *testing.T) {
	mgr := NewManager(newMockStore(testUser()))

	p, err := mgr.Get("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Language != language.Mandarin {
		t.Errorf("Language = %q, want mandarin", p.Language)
	}
	if p.Band.Index != 2 {
		t.Errorf("Band.Index = %d, want 2", p.Band.Index)
	}
	if strings.Join(p.Interests, ",") != "food,hiking" {
		t.Errorf("Interests = %v, want [food hiking]", p.Interests)
	}
	if p.InterestsText != "Cooking, hiking" {
		t.Errorf("InterestsText = %q", p.InterestsText)
	}
}

func TestGet_NotFound(t *testing.T) {
	mgr := NewManager(newMockStore())
	if _, err := mgr.Get("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGet_UnknownLanguage(t *testing.T) {
	u := testUser()
	u.TargetLanguage = "klingon"
	mgr := NewManager(newMockStore(u))
	if _, err := mgr.Get("u1"); !errors.Is(err, language.ErrUnknownLanguage) {
		t.Errorf("error = %v, want ErrUnknownLanguage", err)
	}
}

func TestGet_ClampsStoredLevel(t *testing.T) {
	u := testUser()
	u.ProficiencyLevel = 0
	mgr := NewManager(newMockStore(u))
	p, err := mgr.Get("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Score != 1 || p.Band.Index != 1 {
		t.Errorf("Score/Band = %d/%d, want 1/1", p.Score, p.Band.Index)
	}
}

func TestGet_CacheHitAndExpiry(t *testing.T) {
	store := newMockStore(testUser())
	clock := &mockClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	mgr := NewManagerWithClock(store, clock, time.Minute)

	mgr.Get("u1")
	mgr.Get("u1")
	if store.getCalls != 1 {
		t.Errorf("getCalls = %d, want 1 (cached)", store.getCalls)
	}

	clock.Advance(2 * time.Minute)
	mgr.Get("u1")
	if store.getCalls != 2 {
		t.Errorf("getCalls = %d, want 2 after TTL expiry", store.getCalls)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	mgr := NewManager(newMockStore(testUser()))
	p, _ := mgr.Get("u1")
	p.Interests[0] = "mutated"

	again, _ := mgr.Get("u1")
	if again.Interests[0] != "food" {
		t.Errorf("cached profile mutated through returned copy: %v", again.Interests)
	}
}

func TestApply_UpdatesAndInvalidates(t *testing.T) {
	store := newMockStore(testUser())
	mgr := NewManager(store)
	mgr.Get("u1")

	lang, level, interests, verified := "Italian", 55, "travel, opera", true
	p, err := mgr.Apply("u1", Update{Language: &lang, Level: &level, Interests: &interests, Verified: &verified})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Language != language.Italian || p.Score != 55 || p.Band.Index != 5 {
		t.Errorf("Apply result = %+v", p)
	}
	if !store.users["u1"].Verified {
		t.Error("Verified not persisted")
	}

	got, _ := mgr.Get("u1")
	if strings.Join(got.Interests, ",") != "travel,opera" {
		t.Errorf("Get after Apply = %v, cache not invalidated", got.Interests)
	}
}

func TestApply_RejectsInvalidInput(t *testing.T) {
	mgr := NewManager(newMockStore(testUser()))

	bad := 0
	if _, err := mgr.Apply("u1", Update{Level: &bad}); !errors.Is(err, leveling.ErrScoreOutOfRange) {
		t.Errorf("error = %v, want ErrScoreOutOfRange", err)
	}
	lang := "esperanto"
	if _, err := mgr.Apply("u1", Update{Language: &lang}); !errors.Is(err, language.ErrUnknownLanguage) {
		t.Errorf("error = %v, want ErrUnknownLanguage", err)
	}
}

func TestConcurrentGet(t *testing.T) {
	mgr := NewManager(newMockStore(testUser()))
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Get("u1"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestSummary(t *testing.T) {
	p, err := FromUser(testUser())
	if err != nil {
		t.Fatalf("FromUser: %v", err)
	}
	s := Summary(p)
	for _, want := range []string{"Colt", "Mandarin Chinese", "18/100", "band 2", "food, hiking", "in-laws"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary missing %q: %s", want, s)
		}
	}
}
