package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key (user email, job ID) collides.
	ErrDuplicate = errors.New("already exists")
)

type User struct {
	ID                string
	Email             string
	Name              string
	Nickname          string
	TargetLanguage    string
	ProficiencyLevel  int
	Interests         string // free text, parsed into topic tags on use
	LearningGoal      string
	TargetProficiency string
	Active            bool
	Verified          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastActivityAt    time.Time // zero until the first reply
}

// DisplayName prefers the nickname the user gave during onboarding.
func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}

// Message is one email in a user's conversation, from either side.
type Message struct {
	ID              string
	UserID          string
	Content         string
	FromBennie      bool
	IsEvaluation    bool
	Language        string
	DifficultyLevel int
	Topic           string
	Novel           bool
	CreatedAt       time.Time
}

type EmailLog struct {
	ID                string
	UserID            string
	Type              string // "welcome", "practice", "evaluation", "exit"
	Subject           string
	Status            string // "sent", "failed"
	ProviderMessageID string
	Error             string
	SentAt            time.Time
}

// Schedule is one weekly send slot. DayOfWeek is 0 for Monday through 6
// for Sunday; TimeOfDay is "HH:MM".
type Schedule struct {
	ID        string
	UserID    string
	DayOfWeek int
	TimeOfDay string
	Active    bool
	CreatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
