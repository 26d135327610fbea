package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"chainpad/internal/errors"
	"chainpad/internal/logger"
)

// Demands is one batched demand event for the mining driver: every listed
// chain needs Confirmations blocks mined. Chains is empty when the wait
// period elapsed with nothing pending.
type Demands struct {
	Chains        []uint32 `json:"chains"`
	Confirmations int      `json:"confirmations"`
}

// Scheduler batches confirmation requests from concurrent transaction
// submissions into periodic demand events. Requests for the same chain
// merge via max, never sum: a burst of transactions inside one batch
// window produces a single demand event.
type Scheduler struct {
	mu            sync.Mutex
	demand        map[uint32]int
	nextTriggerAt time.Time // zero when idle
	pendingFlush  bool

	notify    chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{
		demand:  make(map[uint32]int),
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// PushTransaction records that chain chainID needs at least
// confirmations+1 blocks, the extra one being the flush block that makes
// the final confirmation observable. The demand merges with any existing
// count via max and schedules a trigger no later than batchPeriod from
// now. An in-progress WaitNextDemands call is woken immediately so it can
// adopt the earlier deadline.
func (s *Scheduler) PushTransaction(batchPeriod time.Duration, chainID uint32, confirmations int) {
	select {
	case <-s.closeCh:
		return
	default:
	}

	s.mu.Lock()
	needed := confirmations + 1
	if existing := s.demand[chainID]; existing > needed {
		needed = existing
	}
	s.demand[chainID] = needed

	deadline := time.Now().Add(batchPeriod)
	if s.nextTriggerAt.IsZero() || deadline.Before(s.nextTriggerAt) {
		s.nextTriggerAt = deadline
	}
	s.pendingFlush = true
	s.mu.Unlock()

	logger.WithFields(logger.Fields{
		"chain":   chainID,
		"pending": needed,
	}).Debug("Confirmation demand recorded")

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// WaitNextDemands blocks until the scheduled deadline elapses, then
// returns the batched demand. With nothing pending it returns an empty
// demand after defaultPeriod rather than hanging. A push arriving during
// the wait re-arms the deadline instead of producing an event of its own;
// collection only ever happens on deadline expiry, which is what merges a
// burst into one event.
func (s *Scheduler) WaitNextDemands(ctx context.Context, defaultPeriod time.Duration) (Demands, error) {
	for {
		s.mu.Lock()
		wait := defaultPeriod
		if !s.nextTriggerAt.IsZero() {
			wait = time.Until(s.nextTriggerAt)
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			return s.collect(defaultPeriod), nil
		case <-s.notify:
			// New push: loop to adopt the updated deadline
			timer.Stop()
		case <-s.closeCh:
			timer.Stop()
			return Demands{}, errors.ErrSchedulerClosedError
		case <-ctx.Done():
			timer.Stop()
			return Demands{}, ctx.Err()
		}
	}
}

// collect drains one confirmation round from every pending chain
func (s *Scheduler) collect(defaultPeriod time.Duration) Demands {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.demand) == 0 {
		s.nextTriggerAt = time.Time{}
		s.pendingFlush = false
		return Demands{Chains: []uint32{}, Confirmations: 0}
	}

	confirmations := 1
	if s.pendingFlush {
		confirmations = 2
	}

	chains := make([]uint32, 0, len(s.demand))
	for chain := range s.demand {
		chains = append(chains, chain)
		s.demand[chain] -= confirmations
		if s.demand[chain] <= 0 {
			delete(s.demand, chain)
		}
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	s.pendingFlush = false
	if len(s.demand) > 0 {
		s.nextTriggerAt = time.Now().Add(defaultPeriod)
	} else {
		// Idle: no polling until the next push re-arms scheduling
		s.nextTriggerAt = time.Time{}
	}

	return Demands{Chains: chains, Confirmations: confirmations}
}

// Pending returns a copy of the outstanding demand map
func (s *Scheduler) Pending() map[uint32]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint32]int, len(s.demand))
	for chain, count := range s.demand {
		out[chain] = count
	}
	return out
}

// Close wakes and fails all waiters. Further pushes are silently dropped.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.closeCh) })
}
