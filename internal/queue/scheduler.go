package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/niklasschaeffer/open-mem/internal/logging"
)

// Scheduler drives a Processor on a fixed interval and on ad-hoc idle
// triggers (a tool capture landing while the daemon is otherwise quiet).
// A batch already running absorbs any trigger that arrives mid-run by
// setting runAgain, so concurrent triggers never stack up parallel runs
// against the same store.
type Scheduler struct {
	processor    *Processor
	cron         *cron.Cron
	entryID      cron.EntryID
	intervalSecs int

	mu       sync.Mutex
	running  bool
	runAgain bool
}

// NewScheduler builds a Scheduler for processor, triggering a batch every
// intervalSeconds (minimum 5s to avoid a misconfigured near-zero interval
// busy-looping the store).
func NewScheduler(processor *Processor, intervalSeconds int) *Scheduler {
	if intervalSeconds < 5 {
		intervalSeconds = 5
	}
	return &Scheduler{
		processor:    processor,
		cron:         cron.New(),
		intervalSecs: intervalSeconds,
	}
}

// Start registers the interval trigger and begins the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %ds", s.intervalSeconds())
	id, err := s.cron.AddFunc(spec, func() { s.Trigger(ctx) })
	if err != nil {
		return fmt.Errorf("schedule queue interval: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight batch entry to
// finish firing (it does not wait for RunBatch itself to return).
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Trigger requests a batch run. If a batch is already running, the
// request is coalesced into a single additional run immediately after the
// current one finishes rather than spawning a concurrent run.
func (s *Scheduler) Trigger(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.runAgain = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.runLoop(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	for {
		if _, err := s.processor.RunBatch(ctx); err != nil {
			logging.Get(logging.CategoryQueue).Error("queue batch failed: %v", err)
		}

		s.mu.Lock()
		if s.runAgain {
			s.runAgain = false
			s.mu.Unlock()
			continue
		}
		s.running = false
		s.mu.Unlock()
		return
	}
}

func (s *Scheduler) intervalSeconds() int {
	return s.intervalSecs
}
