package storage

import "fmt"

// --- Email logs ---

func (s *Store) LogEmail(l EmailLog) (EmailLog, error) {
	if l.ID == "" {
		l.ID = newID()
	}
	if l.SentAt.IsZero() {
		l.SentAt = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO email_logs (id, user_id, email_type, subject, status, provider_message_id, error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Type, l.Subject, l.Status, l.ProviderMessageID, l.Error, formatTime(l.SentAt),
	)
	if err != nil {
		return EmailLog{}, err
	}
	return l, nil
}

// EmailLogs returns the user's email log, newest first.
func (s *Store) EmailLogs(userID string, limit int) ([]EmailLog, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, email_type, subject, status, provider_message_id, error, sent_at
		FROM email_logs WHERE user_id = ? ORDER BY sent_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmailLog
	for rows.Next() {
		var l EmailLog
		var sentAt string
		if err := rows.Scan(&l.ID, &l.UserID, &l.Type, &l.Subject, &l.Status, &l.ProviderMessageID, &l.Error, &sentAt); err != nil {
			return nil, err
		}
		if l.SentAt, err = parseTime("sent_at", sentAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Schedules ---

// ReplaceSchedules deactivates the user's current slots and inserts the
// given ones in a single transaction.
func (s *Store) ReplaceSchedules(userID string, slots []Schedule) ([]Schedule, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning schedule transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE email_schedules SET is_active = 0 WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("deactivating schedules: %w", err)
	}

	now := s.now()
	out := make([]Schedule, 0, len(slots))
	for _, sl := range slots {
		sl.ID = newID()
		sl.UserID = userID
		sl.Active = true
		sl.CreatedAt = now
		if _, err := tx.Exec(`
			INSERT INTO email_schedules (id, user_id, day_of_week, time_of_day, is_active, created_at)
			VALUES (?, ?, ?, ?, 1, ?)`,
			sl.ID, sl.UserID, sl.DayOfWeek, sl.TimeOfDay, formatTime(now),
		); err != nil {
			return nil, fmt.Errorf("inserting schedule: %w", err)
		}
		out = append(out, sl)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing schedules: %w", err)
	}
	return out, nil
}

// Schedules returns the user's active slots ordered by weekday and time.
func (s *Store) Schedules(userID string) ([]Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, day_of_week, time_of_day, is_active, created_at
		FROM email_schedules WHERE user_id = ? AND is_active = 1
		ORDER BY day_of_week ASC, time_of_day ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sl Schedule
		var active int
		var createdAt string
		if err := rows.Scan(&sl.ID, &sl.UserID, &sl.DayOfWeek, &sl.TimeOfDay, &active, &createdAt); err != nil {
			return nil, err
		}
		sl.Active = active == 1
		if sl.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}
