package profile

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/leveling"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/topics"
)

// UserStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type UserStore interface {
	GetUser(id string) (storage.User, error)
	UpdateUser(u storage.User) (storage.User, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile  Profile
	cachedAt time.Time
}

// Manager provides cached, structured access to learner profiles stored in SQLite.
type Manager struct {
	store UserStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store UserStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store UserStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Get returns the profile for userID from cache or storage. Stored data
// that cannot drive content selection (unknown language) is an error.
func (m *Manager) Get(userID string) (Profile, error) {
	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		p := copyProfile(e.profile)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return copyProfile(e.profile), nil
	}

	u, err := m.store.GetUser(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading user %s: %w", userID, err)
	}
	p, err := FromUser(u)
	if err != nil {
		return Profile{}, err
	}
	m.cache[userID] = cacheEntry{profile: p, cachedAt: m.clock.Now()}
	return copyProfile(p), nil
}

// Apply validates and persists upd, then drops the cached profile.
func (m *Manager) Apply(userID string, upd Update) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.store.GetUser(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading user %s: %w", userID, err)
	}

	if upd.Language != nil {
		lang, err := language.Parse(*upd.Language)
		if err != nil {
			return Profile{}, err
		}
		u.TargetLanguage = string(lang)
	}
	if upd.Level != nil {
		if _, err := leveling.BandFor(*upd.Level); err != nil {
			return Profile{}, err
		}
		u.ProficiencyLevel = *upd.Level
	}
	setString(&u.Nickname, upd.Nickname)
	setString(&u.Interests, upd.Interests)
	setString(&u.LearningGoal, upd.LearningGoal)
	setString(&u.TargetProficiency, upd.TargetProficiency)
	if upd.Verified != nil {
		u.Verified = *upd.Verified
	}

	u, err = m.store.UpdateUser(u)
	if err != nil {
		return Profile{}, fmt.Errorf("saving user %s: %w", userID, err)
	}
	delete(m.cache, userID)
	return FromUser(u)
}

// Invalidate drops any cached profile for userID.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	delete(m.cache, userID)
	m.mu.Unlock()
}

// FromUser builds a Profile from a stored user. Stored levels are clamped
// before banding since older rows may predate validation.
func FromUser(u storage.User) (Profile, error) {
	lang, err := language.Parse(u.TargetLanguage)
	if err != nil {
		return Profile{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	score := leveling.Clamp(u.ProficiencyLevel)
	band, _ := leveling.BandFor(score)
	return Profile{
		UserID:        u.ID,
		Email:         u.Email,
		Name:          u.DisplayName(),
		Language:      lang,
		Score:         score,
		Band:          band,
		Interests:     topics.ParseInterests(u.Interests),
		InterestsText: u.Interests,
		Goal:          u.LearningGoal,
		Target:        u.TargetProficiency,
		Active:        u.Active,
	}, nil
}

// Summary returns a one-line description for operator tooling.
func Summary(p Profile) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s learning %s at %d/100 (band %d, %s).", orUnnamed(p.Name), p.Language.Name(), p.Score, p.Band.Index, p.Band.Label))
	if len(p.Interests) > 0 {
		parts = append(parts, fmt.Sprintf("Interests: %s.", strings.Join(p.Interests, ", ")))
	}
	if p.Goal != "" {
		parts = append(parts, fmt.Sprintf("Goal: %s.", p.Goal))
	}
	if !p.Active {
		parts = append(parts, "Unsubscribed.")
	}
	return strings.Join(parts, " ")
}

func orUnnamed(s string) string {
	if s == "" {
		return "Unnamed learner"
	}
	return s
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func copyProfile(p Profile) Profile {
	cp := p
	if p.Interests != nil {
		cp.Interests = make([]string, len(p.Interests))
		copy(cp.Interests, p.Interests)
	}
	return cp
}
