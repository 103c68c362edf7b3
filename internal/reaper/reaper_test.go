package reaper

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dohr-michael/polybridge/internal/events"
	"github.com/dohr-michael/polybridge/internal/workerpool"
)

type fakeSpawner struct{}

func (fakeSpawner) Spawn(_ context.Context, executable string, env map[string]string) (*workerpool.Worker, error) {
	hostSide, _ := net.Pipe()
	return workerpool.NewTestWorker(hostSide), nil
}

func TestReaper_SweepNowEvictsIdleWorkers(t *testing.T) {
	pool := workerpool.NewPool(fakeSpawner{})
	w, err := pool.Acquire(context.Background(), "/bin/worker", nil, nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Release(w)

	r, err := New("@every 1h", time.Millisecond, pool, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	n := r.SweepNow()
	if n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}

	if len(pool.Snapshot()) != 0 {
		t.Fatalf("expected empty pool after sweep, got %v", pool.Snapshot())
	}
}

func TestReaper_SweepNowPublishesEvent(t *testing.T) {
	pool := workerpool.NewPool(fakeSpawner{})
	w, err := pool.Acquire(context.Background(), "/bin/worker", nil, nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Release(w)

	bus := events.NewBus(8)
	defer bus.Close()
	ch, unsub := bus.SubscribeChan(8, events.EventReaperEvicted)
	defer unsub()

	r, err := New("@every 1h", time.Millisecond, pool, bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	r.SweepNow()

	select {
	case e := <-ch:
		payload, ok := events.ExtractPayload[events.ReaperEvictedPayload](e)
		if !ok || payload.Executable != "/bin/worker" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for reaper event")
	}
}

func TestReaper_SweepNowLeavesFreshWorkers(t *testing.T) {
	pool := workerpool.NewPool(fakeSpawner{})
	w, err := pool.Acquire(context.Background(), "/bin/worker", nil, nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Release(w)

	r, err := New("@every 1h", time.Hour, pool, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if n := r.SweepNow(); n != 0 {
		t.Fatalf("expected 0 evictions with a 1h TTL, got %d", n)
	}
	if len(pool.Snapshot()) != 1 {
		t.Fatalf("expected worker to remain, got %v", pool.Snapshot())
	}
}
