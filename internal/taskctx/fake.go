package taskctx

import "sync"

// Fake is a mutable TaskContext for tests: cancellation/completion flags can
// be flipped from the test goroutine while the bridge components observe
// them concurrently.
type Fake struct {
	mu        sync.Mutex
	cancelled bool
	completed bool
	hooks     []func()
	metrics   StaticMetrics
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *Fake) IsCompleted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *Fake) AddCompletionHook(fn func()) {
	f.mu.Lock()
	f.hooks = append(f.hooks, fn)
	f.mu.Unlock()
}

func (f *Fake) Metrics() Metrics { return &f.metrics }

func (f *Fake) StaticMetrics() StaticMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// Cancel flips the cancellation flag, as the host would on task interrupt.
func (f *Fake) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
}

// Complete flips the completion flag and runs registered hooks, as the host
// would once the task's downstream consumer is done.
func (f *Fake) Complete() {
	f.mu.Lock()
	f.completed = true
	hooks := append([]func(){}, f.hooks...)
	f.mu.Unlock()
	for _, h := range hooks {
		h()
	}
}
