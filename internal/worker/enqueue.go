package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
)

// DueStore finds users for a send slot and queues their jobs.
type DueStore interface {
	Queue
	DueUsers(dayOfWeek int, timeOfDay string) ([]storage.User, error)
}

// UserLister pages through users and queues their jobs.
type UserLister interface {
	Queue
	ListUsers(activeOnly bool, offset, limit int) ([]storage.User, error)
}

// EnqueueDue queues a practice email for every active user with a slot at
// at's weekday and minute. Job IDs are derived from user and minute, so
// firing the same minute twice queues nothing new. Returns the number of
// jobs queued.
func EnqueueDue(q DueStore, at time.Time, maxAttempts int) (int, error) {
	slot := schedule.At(at)
	users, err := q.DueUsers(slot.Day, slot.Time)
	if err != nil {
		return 0, fmt.Errorf("finding users due at %d %s: %w", slot.Day, slot.Time, err)
	}
	key := at.Format("2006-01-02T15:04")
	queued := 0
	for _, u := range users {
		ok, err := enqueueOnce(q, TypePractice, u.ID, key, maxAttempts)
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	return queued, nil
}

// EnqueueEvaluations queues a weekly evaluation for every active, verified
// user, paging through users batch at a time. Job IDs are keyed by ISO week.
func EnqueueEvaluations(q UserLister, now time.Time, batch, maxAttempts int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	year, week := now.ISOWeek()
	key := fmt.Sprintf("%d-W%02d", year, week)

	queued := 0
	for offset := 0; ; offset += batch {
		users, err := q.ListUsers(true, offset, batch)
		if err != nil {
			return queued, fmt.Errorf("listing users at offset %d: %w", offset, err)
		}
		for _, u := range users {
			if !u.Verified {
				continue
			}
			ok, err := enqueueOnce(q, TypeEvaluation, u.ID, key, maxAttempts)
			if err != nil {
				return queued, err
			}
			if ok {
				queued++
			}
		}
		if len(users) < batch {
			return queued, nil
		}
	}
}

func enqueueOnce(q Queue, typ, userID, key string, maxAttempts int) (bool, error) {
	data, err := json.Marshal(payload{UserID: userID})
	if err != nil {
		return false, err
	}
	_, err = q.EnqueueJob(storage.Job{
		ID:          typ + ":" + userID + ":" + key,
		Type:        typ,
		PayloadJSON: string(data),
		MaxAttempts: maxAttempts,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enqueueing %s for %s: %w", typ, userID, err)
	}
	return true, nil
}
