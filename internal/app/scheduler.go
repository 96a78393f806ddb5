package app

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pending bits raised by producers that may not submit themselves.
const (
	pendingISRAppend uint32 = 1 << iota
	pendingFlush
)

// FlushPolicy controls the periodic flush.
type FlushPolicy struct {
	// Interval between flush ticks.
	Interval time.Duration
	// IdleTimeout is how long the console channel must be quiet before a
	// partially filled buffer is forced out.
	IdleTimeout time.Duration
}

// Scheduler drives the periodic flush tick and holds the pending-action
// bits that bridge interrupt context and the deferred routine.
//
// The tick is a one-shot timer rearmed after every fire, so ticks never
// overlap.
type Scheduler struct {
	clock Clock
	tick  func()

	mu      sync.Mutex
	policy  FlushPolicy
	timer   Timer
	gen     uint64
	stopped bool
	wg      sync.WaitGroup

	pending atomic.Uint32
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(clock Clock, policy FlushPolicy, tick func()) *Scheduler {
	return &Scheduler{clock: clock, policy: policy, tick: tick, stopped: true}
}

// Start arms the first tick.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		return
	}
	s.stopped = false
	s.arm()
}

// Stop cancels the timer and waits for an in-flight tick to return.
// No tick runs after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Policy returns the current flush policy.
func (s *Scheduler) Policy() FlushPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetPolicy replaces the flush policy. A running timer is rearmed with the
// new interval.
func (s *Scheduler) SetPolicy(p FlushPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	if !s.stopped {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.arm()
	}
}

// arm is called with mu held.
func (s *Scheduler) arm() {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.policy.Interval, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.tick()
	s.wg.Done()

	s.mu.Lock()
	if !s.stopped && gen == s.gen {
		s.arm()
	}
	s.mu.Unlock()
}

// raise sets bits and reports whether any of them was newly set.
// It never blocks and is safe from interrupt context.
func (s *Scheduler) raise(bits uint32) bool {
	for {
		old := s.pending.Load()
		if old|bits == old {
			return false
		}
		if s.pending.CompareAndSwap(old, old|bits) {
			return true
		}
	}
}

// take clears and returns every pending bit.
func (s *Scheduler) take() uint32 {
	return s.pending.Swap(0)
}
