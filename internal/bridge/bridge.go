package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dohr-michael/polybridge/internal/accumulator"
	"github.com/dohr-michael/polybridge/internal/broadcast"
	"github.com/dohr-michael/polybridge/internal/events"
	"github.com/dohr-michael/polybridge/internal/feeder"
	"github.com/dohr-michael/polybridge/internal/monitor"
	"github.com/dohr-michael/polybridge/internal/reader"
	"github.com/dohr-michael/polybridge/internal/taskctx"
	"github.com/dohr-michael/polybridge/internal/workerpool"
)

// Pool is the subset of *workerpool.Pool the driver needs, narrowed to an
// interface so tests can substitute a fake.
type Pool interface {
	Acquire(ctx context.Context, executable string, env map[string]string, storage taskctx.LocalStorage) (*workerpool.Worker, error)
	Release(w *workerpool.Worker)
	Destroy(w *workerpool.Worker) error
	BroadcastsFor(w *workerpool.Worker) map[int64]struct{}
}

// Request describes one compute() invocation: the task header inputs, the
// upstream record stream, and the host contracts the driver reads from.
type Request struct {
	Executable string
	Env        map[string]string

	Partition    int32
	WorkDir      string
	IncludePaths []string
	Command      []byte
	Broadcasts   []broadcast.Broadcast

	Records   <-chan feeder.Element
	SourceErr <-chan error

	Sink            accumulator.Sink
	MonitorInterval time.Duration
	BufferSize      int

	// SessionID tags published events so a subscriber can correlate them to
	// one compute() call. Events is optional; when nil, no events are
	// published.
	SessionID string
	Events    *events.Bus
}

// metricsReporter is an optional TaskContext capability: hosts that back
// Metrics() with taskctx.StaticMetrics can expose the accumulated spill
// counters back out for the task.timing event.
type metricsReporter interface {
	StaticMetrics() taskctx.StaticMetrics
}

func publish(bus *events.Bus, sessionID string, source events.EventSource, payload events.EventPayload) {
	if bus == nil {
		return
	}
	bus.Publish(events.NewTypedEventWithSession(source, payload, sessionID))
}

// Iterator is the cooperative-cancellation-wrapped output of compute(): a
// lazy sequence of output byte-string frames.
type Iterator struct {
	r         *reader.Reader
	task      taskctx.TaskContext
	cancelled bool
}

// HasNext checks task cancellation before delegating to the underlying
// reader, so a cancelled task fails fast even if the reader would otherwise
// block.
func (it *Iterator) HasNext() bool {
	if it.task != nil && it.task.IsCancelled() {
		it.cancelled = true
		return false
	}
	return it.r.HasNext()
}

// Next returns the next output record.
func (it *Iterator) Next() ([]byte, error) {
	if it.task != nil && it.task.IsCancelled() {
		return nil, &Error{Kind: KindTaskCancelled, Msg: "task cancelled before next record"}
	}
	return it.r.Next()
}

// Err returns the terminal error, classified per the error taxonomy,
// translating the reader package's internal error types. If HasNext stopped
// because the task was cancelled, Err reports TASK_CANCELLED.
func (it *Iterator) Err() error {
	if err := it.r.Err(); err != nil {
		return classify(err)
	}
	if it.cancelled {
		return &Error{Kind: KindTaskCancelled, Msg: "task cancelled before the stream ended"}
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case reader.IsUserError(err):
		msg, _ := reader.UserMessage(err)
		return newErr(KindUserError, msg, err)
	case reader.IsWorkerInputFailure(err):
		return newErr(KindWorkerInputFailure, "feeder reported a failure", err)
	case reader.IsTaskCancelled(err):
		return newErr(KindTaskCancelled, "I/O failed after cancellation", err)
	case reader.IsProtocolError(err):
		return newErr(KindProtocolError, "unrecognized wire data", err)
	case reader.IsWorkerCrashed(err):
		return newErr(KindWorkerCrashed, "worker connection ended unexpectedly", err)
	default:
		return newErr(KindProtocolError, "unclassified reader error", err)
	}
}

// Compute drives one task session against a pooled worker: acquires it,
// starts the feeder and monitor, and returns the reader's iterator. The
// worker is released or closed by a completion hook registered on task, which
// runs when the host completes the task, not when the iterator is drained.
//
// cfg may be nil; when present and worker reuse is enabled, REUSE_WORKER=1
// is added to the worker's environment before acquisition. storage, if
// non-nil, is passed through to the pool, which is responsible for the
// LOCAL_DIRS side effect on acquisition per the external worker-facing
// contract.
func Compute(ctx context.Context, task taskctx.TaskContext, mem taskctx.MemoryManagers, storage taskctx.LocalStorage, cfg taskctx.ConfigStore, pool Pool, req Request) (*Iterator, error) {
	env := make(map[string]string, len(req.Env)+1)
	for k, v := range req.Env {
		env[k] = v
	}
	if cfg != nil && cfg.WorkerReuse() {
		env["REUSE_WORKER"] = "1"
	}

	w, err := pool.Acquire(ctx, req.Executable, env, storage)
	if err != nil {
		return nil, fmt.Errorf("bridge: acquire worker: %w", err)
	}
	publish(req.Events, req.SessionID, events.SourcePool, events.WorkerAcquiredPayload{Executable: req.Executable})
	publish(req.Events, req.SessionID, events.SourceBridge, events.TaskStartedPayload{Partition: req.Partition})

	resident := pool.BroadcastsFor(w)
	bufSize := req.BufferSize
	if bufSize <= 0 && cfg != nil {
		bufSize = cfg.IOBufferSize()
	}

	f := feeder.New(w.Conn(), resident, mem, feeder.TaskHeader{
		Partition:    req.Partition,
		WorkDir:      req.WorkDir,
		IncludePaths: expandIncludePaths(req.IncludePaths),
		Command:      req.Command,
	}, req.Broadcasts, req.Records, req.SourceErr, bufSize)

	rd := reader.New(w.Conn(), f, &sinkAdapter{req.Sink}, task.Metrics(), task, bufSize)

	mon := monitor.New(task, &workerDestroyer{pool: pool, worker: w}, req.MonitorInterval)

	go f.Run()
	go mon.Run()

	task.AddCompletionHook(func() {
		mon.Stop()
		f.Stop()
		<-f.Done()

		if rd.Err() == nil {
			if cfg == nil || cfg.WorkerReuse() {
				w.Conn().SetWriteDeadline(time.Time{})
				pool.Release(w)
				publish(req.Events, req.SessionID, events.SourcePool, events.WorkerReleasedPayload{Executable: req.Executable})
			} else {
				if destroyErr := pool.Destroy(w); destroyErr != nil {
					slog.Warn("bridge: close worker with reuse disabled", "error", destroyErr)
				}
				publish(req.Events, req.SessionID, events.SourcePool, events.WorkerDestroyedPayload{Executable: req.Executable, Reason: "worker reuse disabled"})
			}
			publish(req.Events, req.SessionID, events.SourceBridge, events.TaskCompletedPayload{Partition: req.Partition})
		} else {
			classified := classify(rd.Err())
			reason := classified.Error()
			if destroyErr := pool.Destroy(w); destroyErr != nil {
				slog.Warn("bridge: close worker after failed task", "error", destroyErr)
			}
			publish(req.Events, req.SessionID, events.SourcePool, events.WorkerDestroyedPayload{Executable: req.Executable, Reason: reason})

			kind := "UNKNOWN"
			if be, ok := classified.(*Error); ok {
				kind = be.Kind.String()
			}
			publish(req.Events, req.SessionID, events.SourceBridge, events.TaskFailedPayload{Partition: req.Partition, Kind: kind, Message: reason})
		}

		if mr, ok := task.(metricsReporter); ok {
			sm := mr.StaticMetrics()
			publish(req.Events, req.SessionID, events.SourceBridge, events.TaskTimingPayload{
				Partition:   req.Partition,
				MemoryBytes: sm.MemoryBytesSpilled,
				DiskBytes:   sm.DiskBytesSpilled,
			})
		}
	})

	return &Iterator{r: rd, task: task}, nil
}

// expandIncludePaths expands glob patterns in include-path entries to
// concrete absolute paths, leaving literal paths untouched. A pattern that
// matches nothing is passed through as-is so the worker's own error
// reporting surfaces the missing-file case.
func expandIncludePaths(patterns []string) []string {
	expanded := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{") {
			expanded = append(expanded, p)
			continue
		}
		rel := strings.TrimPrefix(p, string(filepath.Separator))
		matches, err := doublestar.Glob(os.DirFS(string(filepath.Separator)), filepath.ToSlash(rel))
		if err != nil || len(matches) == 0 {
			expanded = append(expanded, p)
			continue
		}
		for _, m := range matches {
			expanded = append(expanded, filepath.Join(string(filepath.Separator), m))
		}
	}
	return expanded
}

// sinkAdapter adapts accumulator.Sink (which may be nil) to reader's
// AccumulatorSink, tolerating a nil sink by discarding batches.
type sinkAdapter struct{ sink accumulator.Sink }

func (s *sinkAdapter) Accept(batch [][]byte) error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Accept(batch)
}

// workerDestroyer adapts Pool+Worker to monitor.Destroyer.
type workerDestroyer struct {
	pool   Pool
	worker *workerpool.Worker
}

func (d *workerDestroyer) Destroy() error { return d.pool.Destroy(d.worker) }
