package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleFunc is one iteration of the continuous loop.
type CycleFunc func(ctx context.Context) error

// Loop is the stopped/running state machine behind continuous scanning.
// Each iteration waits one interval, checks for a stop request and runs the
// cycle. Stop is cooperative: a cycle already running always completes.
type Loop struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop creates a stopped loop.
func NewLoop(interval time.Duration, logger *slog.Logger) *Loop {
	done := make(chan struct{})
	close(done)
	return &Loop{
		interval: interval,
		logger:   logger.With(slog.String("component", "scan_loop")),
		done:     done,
	}
}

// Start begins looping in the background. It returns false, doing nothing,
// when the loop is already running. The loop also ends when ctx is done.
func (l *Loop) Start(ctx context.Context, cycle CycleFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}

	prev := l.done
	stop := make(chan struct{})
	done := make(chan struct{})
	l.running, l.stop, l.done = true, stop, done

	go l.run(ctx, cycle, prev, stop, done)
	l.logger.InfoContext(ctx, "continuous scanning started", slog.Duration("interval", l.interval))
	return true
}

// Stop requests the loop to end at the next cycle boundary. It returns false
// when the loop was not running.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return false
	}
	l.running = false
	close(l.stop)
	l.logger.Info("continuous scanning stop requested")
	return true
}

// Running reports whether the loop is in the running state.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Done returns a channel closed once the most recently started run has
// fully exited, including any in-flight cycle.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Interval returns the wait between cycles.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

func (l *Loop) run(ctx context.Context, cycle CycleFunc, prev <-chan struct{}, stop chan struct{}, done chan<- struct{}) {
	defer close(done)

	// A restarted loop never overlaps the draining cycle of the previous run.
	select {
	case <-prev:
	case <-ctx.Done():
		l.markStopped(stop)
		return
	}

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			l.logger.Info("continuous scanning stopped")
			return
		case <-ctx.Done():
			l.markStopped(stop)
			l.logger.Info("continuous scanning cancelled")
			return
		case <-timer.C:
		}

		// The stop flag is checked again at the boundary in case both fired.
		select {
		case <-stop:
			l.logger.Info("continuous scanning stopped")
			return
		default:
		}

		start := time.Now()
		if err := cycle(ctx); err != nil {
			l.logger.WarnContext(ctx, "scan cycle failed",
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)),
			)
		}
		timer.Reset(l.interval)
	}
}

// markStopped flips the state when the loop ends on its own, unless a newer
// run has already replaced it.
func (l *Loop) markStopped(stop chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running && l.stop == stop {
		l.running = false
		close(stop)
	}
}
