package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/itsbennie/bennie/internal/leveling"
)

const userColumns = `id, email, name, nickname, target_language, proficiency_level, topics_of_interest,
	learning_goal, target_proficiency, is_active, is_verified, created_at, updated_at, last_activity_at`

// CreateUser inserts u, assigning an ID when empty. The proficiency level is
// clamped into [1,100]. Returns ErrDuplicate when the email is taken.
func (s *Store) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = strings.TrimSpace(u.Email)
	u.ProficiencyLevel = leveling.Clamp(u.ProficiencyLevel)
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, name, nickname, target_language, proficiency_level, topics_of_interest,
			learning_goal, target_proficiency, is_active, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Nickname, u.TargetLanguage, u.ProficiencyLevel, u.Interests,
		u.LearningGoal, u.TargetProficiency, boolInt(u.Active), boolInt(u.Verified),
		formatTime(now), formatTime(now),
	)
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return User{}, err
	}
	return s.GetUser(u.ID)
}

func (s *Store) GetUser(id string) (User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail matches case-insensitively.
func (s *Store) GetUserByEmail(email string) (User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
}

// ListUsers returns users ordered by creation time. With activeOnly set,
// inactive users are skipped.
func (s *Store) ListUsers(activeOnly bool, offset, limit int) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// DueUsers returns active users with an active schedule slot at the given
// weekday (0=Monday) and "HH:MM" time.
func (s *Store) DueUsers(dayOfWeek int, timeOfDay string) ([]User, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT `+prefixed("u.", userColumns)+`
		FROM users u JOIN email_schedules es ON es.user_id = u.id
		WHERE u.is_active = 1 AND es.is_active = 1 AND es.day_of_week = ? AND es.time_of_day = ?
		ORDER BY u.created_at ASC`, dayOfWeek, timeOfDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// UpdateUser overwrites the editable profile fields of u.
func (s *Store) UpdateUser(u User) (User, error) {
	res, err := s.db.Exec(`
		UPDATE users SET name = ?, nickname = ?, target_language = ?, proficiency_level = ?,
			topics_of_interest = ?, learning_goal = ?, target_proficiency = ?, is_active = ?,
			is_verified = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Nickname, u.TargetLanguage, leveling.Clamp(u.ProficiencyLevel), u.Interests,
		u.LearningGoal, u.TargetProficiency, boolInt(u.Active), boolInt(u.Verified), s.stamp(), u.ID,
	)
	if err := affectedOne(res, err); err != nil {
		return User{}, err
	}
	return s.GetUser(u.ID)
}

// SetProficiency stores a new level for the user, clamped into [1,100].
func (s *Store) SetProficiency(id string, level int) error {
	res, err := s.db.Exec(`UPDATE users SET proficiency_level = ?, updated_at = ? WHERE id = ?`,
		leveling.Clamp(level), s.stamp(), id)
	return affectedOne(res, err)
}

func (s *Store) SetActive(id string, active bool) error {
	res, err := s.db.Exec(`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), s.stamp(), id)
	return affectedOne(res, err)
}

// TouchActivity records that the user just replied.
func (s *Store) TouchActivity(id string) error {
	now := s.stamp()
	res, err := s.db.Exec(`UPDATE users SET last_activity_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	return affectedOne(res, err)
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var active, verified int
	var createdAt, updatedAt string
	var lastActivity sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Nickname, &u.TargetLanguage, &u.ProficiencyLevel,
		&u.Interests, &u.LearningGoal, &u.TargetProficiency, &active, &verified,
		&createdAt, &updatedAt, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Active, u.Verified = active == 1, verified == 1
	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return User{}, err
	}
	if u.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return User{}, err
	}
	if lastActivity.Valid {
		if u.LastActivityAt, err = parseTime("last_activity_at", lastActivity.String); err != nil {
			return User{}, err
		}
	}
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
