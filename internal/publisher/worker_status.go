package publisher

import (
	"context"

	"postflow/internal/logging"
	"postflow/internal/posts"
)

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running   bool
	LastError string
	LastCycle *CycleReport
	Counts    map[posts.Status]int
}

// Status returns the latest worker information.
func (w *Worker) Status(ctx context.Context) StatusSummary {
	w.mu.RLock()
	summary := StatusSummary{Running: w.running}
	if w.lastErr != nil {
		summary.LastError = w.lastErr.Error()
	}
	if w.lastCycle != nil {
		cp := *w.lastCycle
		cp.Outcomes = append([]Outcome(nil), w.lastCycle.Outcomes...)
		summary.LastCycle = &cp
	}
	w.mu.RUnlock()

	counts, err := w.store.Stats(ctx, 0)
	if err != nil {
		w.logger.Warn("failed to read post stats", logging.Error(err))
	}
	summary.Counts = counts
	return summary
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}
