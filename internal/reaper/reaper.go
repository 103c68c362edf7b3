// Package reaper runs a cron-scheduled sweep that evicts idle pooled
// workers, the same way the reference application schedules recurring
// maintenance jobs with robfig/cron.
package reaper

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dohr-michael/polybridge/internal/events"
	"github.com/dohr-michael/polybridge/internal/workerpool"
)

// Reaper periodically evicts idle pooled workers that were spawned longer
// ago than its TTL.
type Reaper struct {
	cron *cron.Cron
	pool *workerpool.Pool
	bus  *events.Bus
	ttl  time.Duration
}

// New creates a Reaper. cronExpr is a standard 5-field or "@every ..."
// expression, matching the reference application's cron parser.
func New(cronExpr string, ttl time.Duration, pool *workerpool.Pool, bus *events.Bus) (*Reaper, error) {
	c := cron.New()
	r := &Reaper{cron: c, pool: pool, bus: bus, ttl: ttl}

	if _, err := c.AddFunc(cronExpr, r.sweep); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the cron schedule in the background.
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// SweepNow runs one eviction pass immediately, outside the cron schedule.
func (r *Reaper) SweepNow() int {
	return r.sweepAndCount()
}

func (r *Reaper) sweep() {
	n := r.sweepAndCount()
	if n > 0 {
		slog.Info("reaper evicted idle workers", "count", n)
	}
}

func (r *Reaper) sweepAndCount() int {
	before := r.pool.Snapshot()
	n := r.pool.EvictIdleOlderThan(r.ttl)
	if n == 0 || r.bus == nil {
		return n
	}
	for _, snap := range before {
		if snap.Idle == 0 {
			continue
		}
		r.bus.Publish(events.NewTypedEvent(events.SourceReaper, events.ReaperEvictedPayload{
			Executable: snap.Executable,
			Idle:       r.ttl,
		}))
	}
	return n
}
