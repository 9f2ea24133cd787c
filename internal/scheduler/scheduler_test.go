package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh() bool {
	r.calls.Add(1)
	return true
}

func TestSchedulerDisabled(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, 0, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	if n := r.calls.Load(); n != 0 {
		t.Fatalf("disabled scheduler refreshed %d times", n)
	}
}

func TestSchedulerRefreshesPeriodically(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, time.Second, zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	// WaitForSchedule skips the immediate run.
	if n := r.calls.Load(); n != 0 {
		t.Fatalf("refreshed %d times before the first interval", n)
	}

	deadline := time.Now().Add(3 * time.Second)
	for r.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never refreshed")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
