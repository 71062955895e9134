package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrComplete reports that no further pulses will be scheduled.
var ErrComplete = errors.New("pulse schedule complete")

// Pulse is the timing of one transmit/receive cycle.
type Pulse struct {
	Index    int64
	Transmit time.Duration
	Receive  time.Duration
}

// State is the acquisition state shared by the transmit and receive loops.
// Counters are atomics; every change that can unblock a waiter closes the
// current progress channel.
type State struct {
	scheduled atomic.Int64
	received  atomic.Int64
	errors    atomic.Int64

	mu       sync.Mutex
	progress chan struct{}
	ring     []Pulse
	closed   bool
}

// NewState returns state able to hold the timings of depth in-flight
// pulses. depth below 1 selects DefaultLookahead.
func NewState(depth int) *State {
	if depth < 1 {
		depth = DefaultLookahead
	}
	return &State{
		progress: make(chan struct{}),
		ring:     make([]Pulse, depth+1),
	}
}

func (s *State) Scheduled() int64 { return s.scheduled.Load() }
func (s *State) Received() int64  { return s.received.Load() }
func (s *State) Errors() int64    { return s.errors.Load() }

// Good is the number of error-free pulses received so far.
func (s *State) Good() int64 {
	received := s.received.Load()
	return received - s.errors.Load()
}

// Changed returns a channel closed at the next state change. Fetch it
// before reading counters to avoid missing a wakeup.
func (s *State) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// MarkReceived accounts for one finished pulse. The error counter moves
// before the received counter so no reader sees a received pulse without
// its error.
func (s *State) MarkReceived(failed bool) {
	if failed {
		s.errors.Add(1)
	}
	s.received.Add(1)
	s.signal()
}

// record publishes the timing of the next scheduled pulse.
func (s *State) record(p Pulse) {
	s.mu.Lock()
	s.ring[p.Index%int64(len(s.ring))] = p
	s.mu.Unlock()
	s.scheduled.Add(1)
	s.signal()
}

// Finish marks the end of scheduling; waiters on unscheduled pulses get ErrComplete.
func (s *State) Finish() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

// Lookup waits until pulse index has been scheduled and returns its timing.
func (s *State) Lookup(ctx context.Context, index int64) (Pulse, error) {
	for {
		s.mu.Lock()
		wake, closed := s.progress, s.closed
		if index < s.scheduled.Load() {
			p := s.ring[index%int64(len(s.ring))]
			s.mu.Unlock()
			if p.Index != index {
				return Pulse{}, errors.New("pulse timing overwritten before it was read")
			}
			return p, nil
		}
		s.mu.Unlock()
		if closed {
			return Pulse{}, ErrComplete
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return Pulse{}, ctx.Err()
		}
	}
}

func (s *State) signal() {
	s.mu.Lock()
	close(s.progress)
	s.progress = make(chan struct{})
	s.mu.Unlock()
}
