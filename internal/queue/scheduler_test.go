package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerCoalescesConcurrentRequests(t *testing.T) {
	p, _ := newTestProcessor(t)
	s := NewScheduler(p, 5)

	var runs int32
	done := make(chan struct{})
	s.processor = p

	// Swap in a slow processor substitute by wrapping RunBatch behavior
	// indirectly: since Processor.RunBatch talks to a real in-memory
	// store, an empty queue returns near-instantly, so instead we assert
	// the coalescing invariant directly against the run-again bit.
	go func() {
		s.Trigger(context.Background())
		atomic.AddInt32(&runs, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Trigger did not return in time")
	}

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		t.Fatal("scheduler left running=true after its only trigger completed")
	}
}

func TestTriggerWhileRunningSetsRunAgain(t *testing.T) {
	p, _ := newTestProcessor(t)
	s := NewScheduler(p, 5)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.Trigger(context.Background())

	s.mu.Lock()
	runAgain := s.runAgain
	running := s.running
	s.mu.Unlock()

	if !runAgain {
		t.Fatal("expected runAgain to be set when a batch is already running")
	}
	if !running {
		t.Fatal("expected running to remain true, owned by the in-flight runLoop")
	}
}
