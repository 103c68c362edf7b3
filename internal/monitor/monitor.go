// Package monitor watches a task's cancellation/completion flags and
// forcibly destroys a stuck worker when cancellation is observed before
// completion.
package monitor

import (
	"log/slog"
	"time"

	"github.com/dohr-michael/polybridge/internal/taskctx"
)

// DefaultInterval is the poll interval used when none is configured; the
// design tolerates anything between 1 and 5 seconds.
const DefaultInterval = 2 * time.Second

// Destroyer is the subset of workerpool.Pool the monitor needs. Its
// contract must be idempotent: the monitor may call it more than once for
// the same worker under the cancel/complete race.
type Destroyer interface {
	Destroy() error
}

// Monitor polls a TaskContext and asks the pool to destroy the worker if it
// observes cancellation before completion.
type Monitor struct {
	task     taskctx.TaskContext
	worker   Destroyer
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New builds a Monitor. interval <= 0 selects DefaultInterval.
func New(task taskctx.TaskContext, worker Destroyer, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		task:     task,
		worker:   worker,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Done returns a channel closed once Run has returned.
func (m *Monitor) Done() <-chan struct{} { return m.done }

// Stop asks Run to return promptly, for use when the driver's task thread
// already knows the task is done and no longer needs the watchdog.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

// Run polls until the task completes, is cancelled (triggering a destroy),
// or Stop is called. It must be launched as a background goroutine.
func (m *Monitor) Run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.task.IsCompleted() {
				return
			}
			if m.task.IsCancelled() {
				if err := m.worker.Destroy(); err != nil {
					slog.Warn("monitor: destroy after cancellation failed", "error", err)
				}
				return
			}
		}
	}
}
