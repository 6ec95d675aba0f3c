package clock

import (
	"context"
	"testing"
	"time"
)

func TestVirtualAdvanceReleasesSleeper(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewVirtual(start)

	done := make(chan error, 1)
	go func() {
		done <- v.Sleep(context.Background(), 5*time.Second)
	}()

	// Advance only releases sleepers that are already registered, so wait
	// for the goroutine's Sleep to register before moving time.
	for {
		v.mu.Lock()
		n := len(v.waiters)
		v.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	v.Advance(2 * time.Second)
	select {
	case <-done:
		t.Fatal("sleeper released before deadline")
	case <-time.After(20 * time.Millisecond):
	}

	v.Advance(3 * time.Second)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sleeper not released after deadline")
	}
}

func TestVirtualSleepRespectsCancellation(t *testing.T) {
	v := NewVirtual(time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- v.Sleep(ctx, time.Minute)
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sleep did not return after cancellation")
	}
}

func TestVirtualNowAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewVirtual(start)

	v.Advance(time.Hour)
	if got := v.Now(); !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(time.Hour))
	}
}
