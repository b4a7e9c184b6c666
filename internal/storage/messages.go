package storage

import (
	"database/sql"
	"errors"
)

const messageColumns = `id, user_id, content, is_from_bennie, is_evaluation, language, difficulty_level, topic, is_novel, created_at`

// SaveMessage records one email. ID and CreatedAt are filled in when zero.
func (s *Store) SaveMessage(m Message) (Message, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Content, boolInt(m.FromBennie), boolInt(m.IsEvaluation), m.Language,
		m.DifficultyLevel, m.Topic, boolInt(m.Novel), formatTime(m.CreatedAt),
	)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// History returns the user's most recent conversation messages from both
// sides, newest first. Weekly evaluations are excluded.
func (s *Store) History(userID string, limit int) ([]Message, error) {
	return s.queryMessages(`
		SELECT `+messageColumns+` FROM messages
		WHERE user_id = ? AND is_evaluation = 0
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
}

// LastMessages returns the newest non-evaluation messages from one side of
// the conversation, newest first.
func (s *Store) LastMessages(userID string, fromBennie bool, limit int) ([]Message, error) {
	return s.queryMessages(`
		SELECT `+messageColumns+` FROM messages
		WHERE user_id = ? AND is_from_bennie = ? AND is_evaluation = 0
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, boolInt(fromBennie), limit)
}

func (s *Store) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	var fromBennie, isEval, novel int
	var createdAt string
	err := row.Scan(&m.ID, &m.UserID, &m.Content, &fromBennie, &isEval, &m.Language,
		&m.DifficultyLevel, &m.Topic, &novel, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	m.FromBennie, m.IsEvaluation, m.Novel = fromBennie == 1, isEval == 1, novel == 1
	if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Message{}, err
	}
	return m, nil
}
