package schedule

import (
	"context"
	"log/slog"
	"time"
)

// maxCatchUp bounds how many missed minutes a single tick replays after a
// stall (suspend, long GC, slow handler).
const maxCatchUp = 60

// Ticker calls Fire once for every wall-clock minute, catching up on
// minutes skipped between ticks so no slot is missed. Fire receives the
// minute being fired; At converts it to a Slot.
type Ticker struct {
	Interval time.Duration
	Fire     func(ctx context.Context, minute time.Time)
	Now      func() time.Time
	Logger   *slog.Logger

	last time.Time
}

// Run blocks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	if t.Interval <= 0 {
		t.Interval = time.Minute
	}

	t.Tick(ctx)
	tick := time.NewTicker(t.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.Tick(ctx)
		}
	}
}

// Tick fires every minute since the previous tick, up to and including the
// current one. The first tick fires only the current minute.
func (t *Ticker) Tick(ctx context.Context) {
	if t.Now == nil {
		t.Now = time.Now
	}
	now := t.Now().Truncate(time.Minute)
	from := now
	if !t.last.IsZero() {
		from = t.last.Add(time.Minute)
		if gap := int(now.Sub(from) / time.Minute); gap >= maxCatchUp {
			t.logger().Warn("scheduler fell behind, skipping minutes", "skipped", gap-maxCatchUp+1)
			from = now.Add(-(maxCatchUp - 1) * time.Minute)
		}
	}
	for m := from; !m.After(now); m = m.Add(time.Minute) {
		if ctx.Err() != nil {
			return
		}
		t.Fire(ctx, m)
		t.last = m
	}
}

func (t *Ticker) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
