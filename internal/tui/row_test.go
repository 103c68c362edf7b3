package tui

import "testing"

func TestSessionRow_AppliesWorkerAcquired(t *testing.T) {
	row := &sessionRow{}
	row.apply("worker.acquired", `{"executable":"/bin/worker","reused":false}`)

	if row.Executable != "/bin/worker" {
		t.Errorf("executable: got %q, want %q", row.Executable, "/bin/worker")
	}
	if row.Status != "acquired" {
		t.Errorf("status: got %q, want %q", row.Status, "acquired")
	}
}

func TestSessionRow_AppliesTaskLifecycle(t *testing.T) {
	row := &sessionRow{}
	row.apply("task.started", `{"partition":3}`)
	if row.Partition != 3 || row.Status != "running" {
		t.Fatalf("unexpected row after task.started: %+v", row)
	}

	row.apply("task.completed", `{"partition":3,"record_count":42}`)
	if row.Records != 42 || row.Status != "completed" {
		t.Fatalf("unexpected row after task.completed: %+v", row)
	}
}

func TestSessionRow_AppliesTaskFailed(t *testing.T) {
	row := &sessionRow{}
	row.apply("task.failed", `{"partition":1,"kind":"USER_ERROR","message":"boom"}`)

	if row.Status != "failed" {
		t.Errorf("status: got %q, want %q", row.Status, "failed")
	}
	if row.FailureKind != "USER_ERROR" || row.FailureMsg != "boom" {
		t.Fatalf("unexpected failure fields: %+v", row)
	}
}

func TestSessionRow_UnknownEventIgnored(t *testing.T) {
	row := &sessionRow{Status: "running"}
	row.apply("worker.released", `{"executable":"/bin/worker"}`)

	if row.Status != "running" {
		t.Errorf("expected unknown event to leave status unchanged, got %q", row.Status)
	}
}
