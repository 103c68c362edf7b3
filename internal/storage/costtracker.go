package storage

import (
	"sync"

	"github.com/dohr-michael/polybridge/internal/events"
)

// SpillTotals accumulates memory and disk bytes spilled across all tasks
// published under one session ID.
type SpillTotals struct {
	MemoryBytes int64
	DiskBytes   int64
	TaskCount   int
}

// SpillTracker subscribes to task timing events and accumulates spill totals
// in memory, keyed by the event's session ID (bridge.Request.SessionID). It has
// no persistence of its own; metricsdb.Recorder is the durable record.
type SpillTracker struct {
	mu          sync.Mutex
	bus         *events.Bus
	totals      map[string]SpillTotals
	unsubscribe func()
}

// NewSpillTracker creates a SpillTracker that listens for task timing events.
func NewSpillTracker(bus *events.Bus) *SpillTracker {
	st := &SpillTracker{
		bus:    bus,
		totals: make(map[string]SpillTotals),
	}
	st.unsubscribe = bus.Subscribe(st.handleEvent, events.EventTaskTiming)
	return st
}

// Close unsubscribes the tracker from the event bus.
func (st *SpillTracker) Close() {
	if st.unsubscribe != nil {
		st.unsubscribe()
	}
}

func (st *SpillTracker) handleEvent(e events.Event) {
	if e.SessionID == "" {
		return
	}

	payload, ok := events.GetTaskTimingPayload(e)
	if !ok {
		return
	}

	if payload.MemoryBytes == 0 && payload.DiskBytes == 0 {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	t := st.totals[e.SessionID]
	t.MemoryBytes += payload.MemoryBytes
	t.DiskBytes += payload.DiskBytes
	t.TaskCount++
	st.totals[e.SessionID] = t
}

// Totals returns the accumulated spill totals for a session ID.
func (st *SpillTracker) Totals(sessionID string) SpillTotals {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.totals[sessionID]
}
