package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// idleWatchdog cancels a stream context when a single wait on the provider
// exceeds the timeout. It runs only while armed.
type idleWatchdog struct {
	timeout time.Duration
	cancel  context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
	fired atomic.Bool
}

func newIdleWatchdog(timeout time.Duration, cancel context.CancelFunc) *idleWatchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &idleWatchdog{timeout: timeout, cancel: cancel}
}

func (w *idleWatchdog) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil {
		w.timer = time.AfterFunc(w.timeout, w.fire)
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *idleWatchdog) disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *idleWatchdog) fire() {
	w.fired.Store(true)
	w.cancel()
}

func (w *idleWatchdog) expired() bool {
	return w.fired.Load()
}

// timeoutError reports a provider that went silent for longer than the timeout.
func (w *idleWatchdog) timeoutError(provider Provider) error {
	return &ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf("no response within %s", w.timeout),
		Cause:    context.DeadlineExceeded,
	}
}
