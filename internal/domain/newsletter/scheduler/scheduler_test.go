package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) SyncAll(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	syncer := &countingSyncer{err: errors.New("upstream down")}
	s := New(syncer, time.Hour, time.Second, discardLogger())

	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op

	deadline := time.Now().Add(2 * time.Second)
	for syncer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if got := syncer.calls.Load(); got != 1 {
		t.Errorf("SyncAll called %d times, want 1", got)
	}
}

func TestScheduler_Ticks(t *testing.T) {
	t.Parallel()

	syncer := &countingSyncer{}
	s := New(syncer, 10*time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for syncer.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Stop()

	if got := syncer.calls.Load(); got < 3 {
		t.Errorf("SyncAll called %d times, want at least 3", got)
	}
}
