package profile

import (
	"errors"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/leveling"
)

// ErrInactive is returned when asked to email an unsubscribed user.
var ErrInactive = errors.New("user is not active")

// Profile is the learner view of a user that content selection works from.
type Profile struct {
	UserID   string
	Email    string
	Name     string
	Language language.Language
	Score    int
	Band     leveling.Band
	// Interests holds the normalized topic tags parsed from InterestsText.
	Interests     []string
	InterestsText string
	Goal          string
	Target        string
	Active        bool
}

// Update carries optional profile edits. Nil fields are left unchanged.
type Update struct {
	Nickname          *string
	Language          *string
	Level             *int
	Interests         *string
	LearningGoal      *string
	TargetProficiency *string
	Verified          *bool
}
