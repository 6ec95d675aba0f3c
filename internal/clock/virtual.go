package clock

import (
	"context"
	"sync"
	"time"
)

// Virtual is a mock Clock for deterministic tests: time only moves when
// Advance is called, and Sleep callers are released in submission order
// once enough virtual time has elapsed.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	done     chan struct{}
}

// NewVirtual creates a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	v.mu.Lock()
	w := &waiter{deadline: v.now.Add(d), done: make(chan struct{})}
	v.waiters = append(v.waiters, w)
	v.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Advance moves virtual time forward by d and releases any waiter whose
// deadline has passed.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	v.now = v.now.Add(d)
	now := v.now
	var remaining []*waiter
	for _, w := range v.waiters {
		if !w.deadline.After(now) {
			close(w.done)
		} else {
			remaining = append(remaining, w)
		}
	}
	v.waiters = remaining
	v.mu.Unlock()
}

// SetTime jumps directly to t, releasing any waiter whose deadline has
// now passed. Useful for day-rollover tests.
func (v *Virtual) SetTime(t time.Time) {
	v.mu.Lock()
	v.now = t
	var remaining []*waiter
	for _, w := range v.waiters {
		if !w.deadline.After(t) {
			close(w.done)
		} else {
			remaining = append(remaining, w)
		}
	}
	v.waiters = remaining
	v.mu.Unlock()
}
