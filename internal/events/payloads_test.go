package events

import (
	"testing"
	"time"
)

func TestTypedEvent_WorkerAcquired(t *testing.T) {
	payload := WorkerAcquiredPayload{Executable: "worker.sh", Reused: true}
	evt := NewTypedEvent(SourcePool, payload)

	if evt.Type != EventWorkerAcquired {
		t.Fatalf("expected type %q, got %q", EventWorkerAcquired, evt.Type)
	}
	got, ok := ExtractPayload[WorkerAcquiredPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Executable != "worker.sh" {
		t.Fatalf("expected executable %q, got %q", "worker.sh", got.Executable)
	}
	if !got.Reused {
		t.Fatal("expected reused=true")
	}
}

func TestTypedEvent_TaskStarted(t *testing.T) {
	payload := TaskStartedPayload{Partition: 3}
	evt := NewTypedEvent(SourceBridge, payload)

	if evt.Type != EventTaskStarted {
		t.Fatalf("expected type %q, got %q", EventTaskStarted, evt.Type)
	}
	got, ok := ExtractPayload[TaskStartedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Partition != 3 {
		t.Fatalf("expected partition 3, got %d", got.Partition)
	}
}

func TestTypedEvent_TaskTiming(t *testing.T) {
	payload := TaskTimingPayload{
		Partition:    3,
		BootMillis:   10,
		InitMillis:   5,
		FinishMillis: 100,
		MemoryBytes:  2048,
		DiskBytes:    0,
	}
	evt := NewTypedEvent(SourceBridge, payload)

	if evt.Type != EventTaskTiming {
		t.Fatalf("expected type %q, got %q", EventTaskTiming, evt.Type)
	}
	got, ok := GetTaskTimingPayload(evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.FinishMillis != 100 {
		t.Fatalf("expected finish_millis 100, got %d", got.FinishMillis)
	}
	if got.MemoryBytes != 2048 {
		t.Fatalf("expected memory_bytes_spilled 2048, got %d", got.MemoryBytes)
	}
}

func TestTypedEvent_TaskCompleted(t *testing.T) {
	payload := TaskCompletedPayload{Partition: 3, RecordCount: 2}
	evt := NewTypedEvent(SourceBridge, payload)

	if evt.Type != EventTaskCompleted {
		t.Fatalf("expected type %q, got %q", EventTaskCompleted, evt.Type)
	}
	got, ok := GetTaskCompletedPayload(evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.RecordCount != 2 {
		t.Fatalf("expected record_count 2, got %d", got.RecordCount)
	}
}

func TestTypedEvent_TaskFailed(t *testing.T) {
	payload := TaskFailedPayload{Partition: 3, Kind: "USER_ERROR", Message: "boom"}
	evt := NewTypedEvent(SourceBridge, payload)

	if evt.Type != EventTaskFailed {
		t.Fatalf("expected type %q, got %q", EventTaskFailed, evt.Type)
	}
	got, ok := GetTaskFailedPayload(evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Kind != "USER_ERROR" {
		t.Fatalf("expected kind USER_ERROR, got %q", got.Kind)
	}
	if got.Message != "boom" {
		t.Fatalf("expected message %q, got %q", "boom", got.Message)
	}
}

func TestTypedEvent_ReaperEvicted(t *testing.T) {
	payload := ReaperEvictedPayload{Executable: "worker.sh", Idle: 15 * time.Minute}
	evt := NewTypedEvent(SourceReaper, payload)

	if evt.Type != EventReaperEvicted {
		t.Fatalf("expected type %q, got %q", EventReaperEvicted, evt.Type)
	}
	got, ok := ExtractPayload[ReaperEvictedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Idle != 15*time.Minute {
		t.Fatalf("expected idle 15m, got %v", got.Idle)
	}
}

func TestTypedEventWithSession(t *testing.T) {
	payload := TaskStartedPayload{Partition: 1}
	evt := NewTypedEventWithSession(SourceGW, payload, "task_abc123")

	if evt.SessionID != "task_abc123" {
		t.Fatalf("expected session_id %q, got %q", "task_abc123", evt.SessionID)
	}
	if evt.Source != SourceGW {
		t.Fatalf("expected source %q, got %q", SourceGW, evt.Source)
	}
	got, ok := ExtractPayload[TaskStartedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Partition != 1 {
		t.Fatalf("expected partition 1, got %d", got.Partition)
	}
}

func TestExtractPayload_WrongType(t *testing.T) {
	payload := TaskStartedPayload{Partition: 1}
	evt := NewTypedEvent(SourceBridge, payload)

	got, ok := ExtractPayload[TaskFailedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload should succeed even for mismatched types (JSON is flexible)")
	}
	if got.Kind != "" {
		t.Fatalf("expected empty kind for wrong type extraction, got %q", got.Kind)
	}
}
