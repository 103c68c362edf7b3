// Package metricsdb persists completed-task outcomes to a local sqlite
// database, subscribing to the session event bus the same way the
// reference application's cost tracker subscribes for token accounting.
package metricsdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dohr-michael/polybridge/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	partition_id INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	kind TEXT,
	message TEXT,
	record_count INTEGER,
	boot_millis INTEGER,
	init_millis INTEGER,
	finish_millis INTEGER,
	memory_bytes_spilled INTEGER,
	disk_bytes_spilled INTEGER,
	recorded_at DATETIME NOT NULL
);
`

// DB wraps a sqlite-backed task history store.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metricsdb: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metricsdb: apply schema: %w", err)
	}
	return &DB{sql: db}, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.sql.Close()
}

// TaskRecord is one row of recorded task history.
type TaskRecord struct {
	ID                 int64
	Partition          int32
	Outcome            string // "completed" or "failed"
	Kind               string
	Message            string
	RecordCount        int
	BootMillis         int64
	InitMillis         int64
	FinishMillis       int64
	MemoryBytesSpilled int64
	DiskBytesSpilled   int64
	RecordedAt         time.Time
}

// RecordCompleted inserts a completed-task row.
func (d *DB) RecordCompleted(partition int32, recordCount int, timing TaskRecord) error {
	_, err := d.sql.Exec(
		`INSERT INTO task_history (partition_id, outcome, record_count, boot_millis, init_millis, finish_millis, memory_bytes_spilled, disk_bytes_spilled, recorded_at)
		 VALUES (?, 'completed', ?, ?, ?, ?, ?, ?, ?)`,
		partition, recordCount, timing.BootMillis, timing.InitMillis, timing.FinishMillis,
		timing.MemoryBytesSpilled, timing.DiskBytesSpilled, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("metricsdb: record completed: %w", err)
	}
	return nil
}

// RecordFailed inserts a failed-task row.
func (d *DB) RecordFailed(partition int32, kind, message string) error {
	_, err := d.sql.Exec(
		`INSERT INTO task_history (partition_id, outcome, kind, message, recorded_at) VALUES (?, 'failed', ?, ?, ?)`,
		partition, kind, message, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("metricsdb: record failed: %w", err)
	}
	return nil
}

// History returns the most recent limit records, newest first.
func (d *DB) History(limit int) ([]TaskRecord, error) {
	rows, err := d.sql.Query(
		`SELECT id, partition_id, outcome, kind, message, record_count, boot_millis, init_millis, finish_millis, memory_bytes_spilled, disk_bytes_spilled, recorded_at
		 FROM task_history ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("metricsdb: query history: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var r TaskRecord
		var kind, message sql.NullString
		var recordCount, boot, init, finish, mem, disk sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Partition, &r.Outcome, &kind, &message, &recordCount,
			&boot, &init, &finish, &mem, &disk, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("metricsdb: scan row: %w", err)
		}
		r.Kind = kind.String
		r.Message = message.String
		r.RecordCount = int(recordCount.Int64)
		r.BootMillis = boot.Int64
		r.InitMillis = init.Int64
		r.FinishMillis = finish.Int64
		r.MemoryBytesSpilled = mem.Int64
		r.DiskBytesSpilled = disk.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recorder subscribes to the event bus and persists task outcomes as they
// are published, mirroring the reference application's event-driven
// storage subscribers.
type Recorder struct {
	db          *DB
	unsubscribe func()
	pending     map[int32]TaskRecord
}

// NewRecorder creates a Recorder that listens for task completion, failure,
// and timing events.
func NewRecorder(db *DB, bus *events.Bus) *Recorder {
	r := &Recorder{db: db, pending: make(map[int32]TaskRecord)}
	r.unsubscribe = bus.Subscribe(r.handleEvent,
		events.EventTaskTiming, events.EventTaskCompleted, events.EventTaskFailed)
	return r
}

// Close unsubscribes the recorder from the event bus.
func (r *Recorder) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

func (r *Recorder) handleEvent(e events.Event) {
	switch e.Type {
	case events.EventTaskTiming:
		payload, ok := events.GetTaskTimingPayload(e)
		if !ok {
			return
		}
		rec := r.pending[payload.Partition]
		rec.BootMillis = payload.BootMillis
		rec.InitMillis = payload.InitMillis
		rec.FinishMillis = payload.FinishMillis
		rec.MemoryBytesSpilled = payload.MemoryBytes
		rec.DiskBytesSpilled = payload.DiskBytes
		r.pending[payload.Partition] = rec

	case events.EventTaskCompleted:
		payload, ok := events.GetTaskCompletedPayload(e)
		if !ok {
			return
		}
		timing := r.pending[payload.Partition]
		delete(r.pending, payload.Partition)
		_ = r.db.RecordCompleted(payload.Partition, payload.RecordCount, timing)

	case events.EventTaskFailed:
		payload, ok := events.GetTaskFailedPayload(e)
		if !ok {
			return
		}
		delete(r.pending, payload.Partition)
		_ = r.db.RecordFailed(payload.Partition, payload.Kind, payload.Message)
	}
}
