package tui

import (
	"encoding/json"
	"time"
)

// sessionRow tracks one bridge session's lifecycle for display, keyed by the
// event's session ID.
type sessionRow struct {
	SessionID   string
	Executable  string
	Partition   int32
	StartedAt   time.Time
	Records     int
	Status      string // acquired, running, completed, failed
	FailureKind string
	FailureMsg  string
}

func (r *sessionRow) apply(eventType, payloadJSON string) {
	switch eventType {
	case "worker.acquired":
		var p struct {
			Executable string `json:"executable"`
		}
		json.Unmarshal([]byte(payloadJSON), &p)
		r.Executable = p.Executable
		if r.Status == "" {
			r.Status = "acquired"
		}
	case "task.started":
		var p struct {
			Partition int32 `json:"partition"`
		}
		json.Unmarshal([]byte(payloadJSON), &p)
		r.Partition = p.Partition
		r.Status = "running"
		r.StartedAt = time.Now()
	case "task.completed":
		var p struct {
			RecordCount int `json:"record_count"`
		}
		json.Unmarshal([]byte(payloadJSON), &p)
		r.Records = p.RecordCount
		r.Status = "completed"
	case "task.failed":
		var p struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		json.Unmarshal([]byte(payloadJSON), &p)
		r.FailureKind = p.Kind
		r.FailureMsg = p.Message
		r.Status = "failed"
	}
}
