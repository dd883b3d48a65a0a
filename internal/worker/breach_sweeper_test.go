package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepBreaches(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestRunBreachSweeper_StopsOnCancel(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("partial")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunBreachSweeper(ctx, sweeper, 5*time.Millisecond, nil)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected the sweeper to run repeatedly")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected sweeper to stop after cancel")
	}
}

func TestRunBreachSweeper_DisabledInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	RunBreachSweeper(context.Background(), sweeper, 0, nil)
	if sweeper.calls.Load() != 0 {
		t.Errorf("expected no sweeps, got %d", sweeper.calls.Load())
	}
}
