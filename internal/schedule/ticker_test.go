package schedule

import (
	"context"
	"testing"
	"time"
)

func TestTicker_CatchesUpMissedMinutes(t *testing.T) {
	now := time.Date(2025, 1, 6, 7, 59, 30, 0, time.UTC)
	var fired []Slot
	tk := &Ticker{
		Now:  func() time.Time { return now },
		Fire: func(_ context.Context, m time.Time) { fired = append(fired, At(m)) },
	}

	tk.Tick(context.Background())
	now = now.Add(150 * time.Second) // 08:02:00
	tk.Tick(context.Background())
	tk.Tick(context.Background()) // same minute, nothing new

	want := []Slot{{0, "07:59"}, {0, "08:00"}, {0, "08:01"}, {0, "08:02"}}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired[%d] = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestTicker_BoundsCatchUp(t *testing.T) {
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	count := 0
	tk := &Ticker{
		Now:  func() time.Time { return now },
		Fire: func(context.Context, time.Time) { count++ },
	}
	tk.Tick(context.Background())
	now = now.Add(5 * time.Hour)
	count = 0
	tk.Tick(context.Background())
	if count != maxCatchUp {
		t.Errorf("fired %d minutes after a long stall, want %d", count, maxCatchUp)
	}
}

func TestTicker_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan struct{}, 1)
	tk := &Ticker{
		Interval: time.Hour,
		Fire: func(context.Context, time.Time) {
			select {
			case fired <- struct{}{}:
			default:
			}
		},
	}
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	<-fired
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
