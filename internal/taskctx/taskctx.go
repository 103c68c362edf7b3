// Package taskctx defines the framework-facing contracts the bridge expects
// from its enclosing host: task lifecycle, local storage, memory pressure
// release hooks, and configuration lookup.
package taskctx

// TaskContext exposes the lifecycle signals the reader and monitor observe.
// The enclosing task-execution framework supplies the implementation; the
// bridge only ever reads from it and registers completion hooks.
type TaskContext interface {
	IsCancelled() bool
	IsCompleted() bool
	AddCompletionHook(fn func())
	Metrics() Metrics
}

// Metrics accumulates the spill counters the reader updates from TIMING_DATA
// frames.
type Metrics interface {
	AddMemoryBytesSpilled(n int64)
	AddDiskBytesSpilled(n int64)
}

// LocalStorage exposes the working-directory paths passed to the worker as
// LOCAL_DIRS.
type LocalStorage interface {
	LocalDirs() []string
}

// MemoryManagers releases task-scoped memory the feeder held while streaming
// records, called once the feeder exits (success or failure).
type MemoryManagers interface {
	ReleaseShuffleMemoryForCurrentThread()
	ReleaseUnrollMemoryForCurrentThread()
}

// ConfigStore is the key-value configuration surface named in the external
// interfaces: buffer sizing and worker reuse policy.
type ConfigStore interface {
	IOBufferSize() int
	WorkerReuse() bool
}

// StaticMetrics is a simple in-memory Metrics for hosts that just want to
// read the final counters back out.
type StaticMetrics struct {
	MemoryBytesSpilled int64
	DiskBytesSpilled   int64
}

func (m *StaticMetrics) AddMemoryBytesSpilled(n int64) { m.MemoryBytesSpilled += n }
func (m *StaticMetrics) AddDiskBytesSpilled(n int64)   { m.DiskBytesSpilled += n }

// StaticConfig is a fixed-value ConfigStore, useful for the standalone CLI
// and for tests.
type StaticConfig struct {
	BufferSize int
	Reuse      bool
}

func (c StaticConfig) IOBufferSize() int { return c.BufferSize }
func (c StaticConfig) WorkerReuse() bool { return c.Reuse }

// NoopMemoryManagers satisfies MemoryManagers for hosts with no shuffle or
// unroll memory of their own to release, such as the standalone CLI.
type NoopMemoryManagers struct{}

func (NoopMemoryManagers) ReleaseShuffleMemoryForCurrentThread() {}
func (NoopMemoryManagers) ReleaseUnrollMemoryForCurrentThread()  {}

// StaticLocalStorage is a fixed-value LocalStorage, useful for the
// standalone CLI and for tests.
type StaticLocalStorage struct {
	Dirs []string
}

func (s StaticLocalStorage) LocalDirs() []string { return s.Dirs }
