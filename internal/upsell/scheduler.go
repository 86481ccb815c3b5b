// Package upsell offers a lifetime upgrade a short while after a single-item
// purchase succeeds.
package upsell

import (
	"sync"
	"time"
)

// DefaultDelay is used when a Scheduler is built with a negative delay.
const DefaultDelay = 5 * time.Second

// Scheduler fires Offer once per successful single purchase after Delay,
// unless the viewer holds a lifetime grant by then. Cancel and
// LifetimeGranted stop every pending timer.
type Scheduler struct {
	delay time.Duration
	offer func(item string)

	mu       sync.Mutex
	next     uint64
	pending  map[uint64]*time.Timer
	lifetime bool
}

// NewScheduler returns a Scheduler calling offer on its own goroutine.
func NewScheduler(delay time.Duration, offer func(item string)) *Scheduler {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		delay:   delay,
		offer:   offer,
		pending: make(map[uint64]*time.Timer),
	}
}

// Delay returns the configured delay.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// PurchaseSucceeded schedules an offer for item. It is a no-op once a
// lifetime grant is known.
func (s *Scheduler) PurchaseSucceeded(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifetime {
		return
	}

	id := s.next
	s.next++
	s.pending[id] = time.AfterFunc(s.delay, func() { s.fire(id, item) })
}

func (s *Scheduler) fire(id uint64, item string) {
	s.mu.Lock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	lifetime := s.lifetime
	s.mu.Unlock()

	// A timer that lost the race with Cancel finds its id already gone.
	if !ok || lifetime {
		return
	}
	s.offer(item)
}

// Pending reports how many offers are still waiting.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Cancel stops every pending offer. Later purchases schedule normally.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// LifetimeGranted stops every pending offer and suppresses future ones.
func (s *Scheduler) LifetimeGranted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetime = true
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
