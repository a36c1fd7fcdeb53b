package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoopStartStopIdempotent(t *testing.T) {
	l := NewLoop(5*time.Millisecond, discardLogger())
	var cycles atomic.Int32
	cycle := func(context.Context) error {
		cycles.Add(1)
		return nil
	}

	if l.Stop() {
		t.Fatal("stopping a stopped loop should be a no-op")
	}
	if !l.Start(context.Background(), cycle) {
		t.Fatal("first start should succeed")
	}
	if l.Start(context.Background(), cycle) {
		t.Fatal("second start should be a no-op")
	}
	if !l.Running() {
		t.Fatal("loop should be running")
	}

	waitFor(t, func() bool { return cycles.Load() >= 3 })

	if !l.Stop() {
		t.Fatal("stop should succeed")
	}
	if l.Stop() {
		t.Fatal("second stop should be a no-op")
	}
	<-l.Done()
	after := cycles.Load()
	time.Sleep(20 * time.Millisecond)
	if cycles.Load() != after {
		t.Fatal("cycles ran after stop")
	}
}

func TestLoopStopLetsInFlightCycleFinish(t *testing.T) {
	l := NewLoop(time.Millisecond, discardLogger())
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	var calls atomic.Int32

	l.Start(context.Background(), func(ctx context.Context) error {
		if calls.Add(1) > 1 {
			return nil
		}
		close(entered)
		<-release
		if ctx.Err() != nil {
			return ctx.Err()
		}
		finished.Store(true)
		return nil
	})

	<-entered
	l.Stop()
	if l.Running() {
		t.Fatal("loop should report stopped once stop is requested")
	}
	select {
	case <-l.Done():
		t.Fatal("loop exited before the in-flight cycle completed")
	default:
	}

	close(release)
	<-l.Done()
	if !finished.Load() {
		t.Fatal("in-flight cycle did not complete")
	}
	if calls.Load() != 1 {
		t.Fatalf("cycles after stop: %d", calls.Load())
	}
}

func TestLoopSurvivesCycleErrors(t *testing.T) {
	l := NewLoop(time.Millisecond, discardLogger())
	var calls atomic.Int32
	l.Start(context.Background(), func(context.Context) error {
		calls.Add(1)
		return errors.New("market source unreachable")
	})
	waitFor(t, func() bool { return calls.Load() >= 3 })
	l.Stop()
	<-l.Done()
}

func TestLoopEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(time.Hour, discardLogger())
	l.Start(ctx, func(context.Context) error { return nil })
	cancel()
	<-l.Done()
	if l.Running() {
		t.Fatal("loop should be stopped after its context ends")
	}
	if !l.Start(context.Background(), func(context.Context) error { return nil }) {
		t.Fatal("restart after cancellation should succeed")
	}
	l.Stop()
}

func TestLoopRestartDoesNotOverlap(t *testing.T) {
	l := NewLoop(time.Millisecond, discardLogger())
	var active, maxActive atomic.Int32
	release := make(chan struct{})
	var first atomic.Bool
	cycle := func(context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		if first.CompareAndSwap(false, true) {
			<-release
		}
		return nil
	}

	l.Start(context.Background(), cycle)
	waitFor(t, func() bool { return active.Load() == 1 })
	l.Stop()
	l.Start(context.Background(), cycle)
	time.Sleep(10 * time.Millisecond)
	close(release)
	waitFor(t, func() bool { return active.Load() == 0 })
	l.Stop()
	<-l.Done()

	if maxActive.Load() != 1 {
		t.Fatalf("cycles overlapped: max active %d", maxActive.Load())
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory[int](3)
	if got := h.Recent(0); len(got) != 0 {
		t.Fatalf("empty history = %v", got)
	}
	h.Add(1, 2)
	if got := h.Recent(0); len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Fatalf("recent = %v", got)
	}
	h.Add(3, 4, 5)
	got := h.Recent(0)
	if len(got) != 3 || got[0] != 5 || got[1] != 4 || got[2] != 3 {
		t.Fatalf("recent after wrap = %v", got)
	}
	if got := h.Recent(2); len(got) != 2 || got[0] != 5 {
		t.Fatalf("recent(2) = %v", got)
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d", h.Len())
	}
}
