// Package worker executes queued email jobs from the SQLite job queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itsbennie/bennie/internal/evaluation"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/storage"
)

// Job types.
const (
	TypePractice   = "practice_email"
	TypeEvaluation = "weekly_evaluation"
	TypeWelcome    = "welcome_email"
	TypeExit       = "exit_email"
)

// Types lists every job type the worker handles.
var Types = []string{TypeWelcome, TypeExit, TypePractice, TypeEvaluation}

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Queue enqueues jobs. Implemented by storage.Store.
type Queue interface {
	EnqueueJob(job storage.Job) (string, error)
}

// Lessons sends practice and lifecycle emails. Implemented by lesson.Pipeline.
type Lessons interface {
	Deliver(ctx context.Context, userID string) (lesson.Delivery, error)
	SendWelcome(ctx context.Context, userID string) error
	SendExit(ctx context.Context, userID string) error
}

// Evaluations sends weekly evaluations. Implemented by evaluation.Evaluator.
type Evaluations interface {
	Run(ctx context.Context, userID string) (evaluation.Report, error)
}

type payload struct {
	UserID string `json:"user_id"`
}

// Enqueue queues a job of type typ for userID, runnable immediately.
func Enqueue(q Queue, typ, userID string, maxAttempts int) (string, error) {
	data, err := json.Marshal(payload{UserID: userID})
	if err != nil {
		return "", err
	}
	id, err := q.EnqueueJob(storage.Job{Type: typ, PayloadJSON: string(data), MaxAttempts: maxAttempts})
	if err != nil {
		return "", fmt.Errorf("enqueueing %s for %s: %w", typ, userID, err)
	}
	return id, nil
}

// Worker processes email jobs.
type Worker struct {
	store       JobStore
	lessons     Lessons
	evaluations Evaluations
	poll        time.Duration
	logger      *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 2s.
func NewWorker(store JobStore, lessons Lessons, evaluations Evaluations, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:       store,
		lessons:     lessons,
		evaluations: evaluations,
		poll:        pollInterval,
		logger:      logger.With("component", "worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(Types)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	log := w.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts+1)

	err = w.processJob(ctx, job)
	switch {
	case err == nil:
	case permanent(err):
		// Retrying cannot help: the user is gone or has unsubscribed.
		log.Info("job skipped", "reason", err)
	default:
		log.Warn("job failed", "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			log.Error("failed to mark job as failed", "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func permanent(err error) bool {
	return errors.Is(err, lesson.ErrInactive) || errors.Is(err, storage.ErrNotFound)
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var p payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if p.UserID == "" {
		return fmt.Errorf("payload has no user_id")
	}

	switch job.Type {
	case TypePractice:
		_, err := w.lessons.Deliver(ctx, p.UserID)
		return err
	case TypeWelcome:
		return w.lessons.SendWelcome(ctx, p.UserID)
	case TypeExit:
		return w.lessons.SendExit(ctx, p.UserID)
	case TypeEvaluation:
		_, err := w.evaluations.Run(ctx, p.UserID)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
