package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// WORKER LIFECYCLE
// =============================================================================

type WorkerAcquiredPayload struct {
	Executable string `json:"executable"`
	Reused     bool   `json:"reused"`
}

func (WorkerAcquiredPayload) EventType() EventType { return EventWorkerAcquired }

type WorkerReleasedPayload struct {
	Executable string `json:"executable"`
}

func (WorkerReleasedPayload) EventType() EventType { return EventWorkerReleased }

type WorkerDestroyedPayload struct {
	Executable string `json:"executable"`
	Reason     string `json:"reason,omitempty"`
}

func (WorkerDestroyedPayload) EventType() EventType { return EventWorkerDestroyed }

// =============================================================================
// TASK LIFECYCLE
// =============================================================================

type TaskStartedPayload struct {
	Partition int32 `json:"partition"`
}

func (TaskStartedPayload) EventType() EventType { return EventTaskStarted }

type TaskTimingPayload struct {
	Partition    int32 `json:"partition"`
	BootMillis   int64 `json:"boot_millis"`
	InitMillis   int64 `json:"init_millis"`
	FinishMillis int64 `json:"finish_millis"`
	MemoryBytes  int64 `json:"memory_bytes_spilled"`
	DiskBytes    int64 `json:"disk_bytes_spilled"`
}

func (TaskTimingPayload) EventType() EventType { return EventTaskTiming }

type TaskCompletedPayload struct {
	Partition   int32 `json:"partition"`
	RecordCount int   `json:"record_count"`
}

func (TaskCompletedPayload) EventType() EventType { return EventTaskCompleted }

type TaskFailedPayload struct {
	Partition int32  `json:"partition"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

func (TaskFailedPayload) EventType() EventType { return EventTaskFailed }

// =============================================================================
// POOL MAINTENANCE
// =============================================================================

type ReaperEvictedPayload struct {
	Executable string        `json:"executable"`
	Idle       time.Duration `json:"idle"`
}

func (ReaperEvictedPayload) EventType() EventType { return EventReaperEvicted }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func NewTypedEventWithSession(source EventSource, payload EventPayload, sessionID string) Event {
	return Event{
		ID:        generateEventID(),
		SessionID: sessionID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetWorkerAcquiredPayload(e Event) (WorkerAcquiredPayload, bool) {
	return ExtractPayload[WorkerAcquiredPayload](e)
}

func GetTaskTimingPayload(e Event) (TaskTimingPayload, bool) {
	return ExtractPayload[TaskTimingPayload](e)
}

func GetTaskCompletedPayload(e Event) (TaskCompletedPayload, bool) {
	return ExtractPayload[TaskCompletedPayload](e)
}

func GetTaskFailedPayload(e Event) (TaskFailedPayload, bool) {
	return ExtractPayload[TaskFailedPayload](e)
}
