package publisher

import (
	"context"
	"errors"
	"time"

	"postflow/internal/logging"
)

// Start launches the background loop. It fails if the worker is already
// running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("publisher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.done = make(chan struct{})

	w.logger.Info("publish worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Bool("honor_schedule", w.honorSchedule),
		logging.String(logging.FieldEventType, "worker_started"),
	)
	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. An in-flight publish
// finishes first.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("publish worker stopped", logging.String(logging.FieldEventType, "worker_stopped"))
}

// Running reports whether the background loop is active.
func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Worker) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		report := w.RunCycle(ctx)
		wait := w.pollInterval
		if report.Err != nil {
			wait = w.retryInterval
		}
		if report.Cancelled || !sleep(ctx, wait) {
			return
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
