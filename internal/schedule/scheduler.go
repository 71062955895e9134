package schedule

import (
	"context"
	"time"

	"github.com/rjboer/GoRadar/internal/logging"
)

// Config holds the pulse timing parameters.
type Config struct {
	PulseInterval time.Duration
	TxLead        time.Duration
	TimeOffset    time.Duration
	Lookahead     int
	// Pulses is the number of error-free pulses to acquire; negative runs
	// until cancelled.
	Pulses int64
}

// Times returns the transmit and receive times of pulse index.
func Times(index int64, interval, offset, lead time.Duration) (tx, rx time.Duration) {
	rx = offset + time.Duration(index)*interval
	return rx - lead, rx
}

// Scheduler hands out pulse timings to the transmit loop, holding each
// pulse back until the gate admits it.
type Scheduler struct {
	cfg     Config
	state   *State
	gate    *Gate
	logger  logging.Logger
	next    int64
	offset  time.Duration
	shifted int64
}

// New builds a scheduler publishing into state.
func New(cfg Config, state *State, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		state:  state,
		gate:   NewGate(state, cfg.Lookahead),
		logger: logger.With(logging.Subsystem("scheduler")),
		offset: cfg.TimeOffset,
	}
}

// Offset returns the current time offset including error compensation.
func (s *Scheduler) Offset() time.Duration { return s.offset }

// Next blocks until the next pulse may be scheduled, records it in the
// shared state and returns it. ErrComplete is returned once enough
// error-free pulses have been received; errored pulses are made up with
// extra pulses.
func (s *Scheduler) Next(ctx context.Context) (Pulse, error) {
	i := s.next
	for {
		wake := s.state.Changed()
		if err := ctx.Err(); err != nil {
			return Pulse{}, err
		}
		received := s.state.Received()
		errs := s.state.Errors()
		if s.cfg.Pulses >= 0 && i >= s.cfg.Pulses+errs {
			if received >= i {
				return Pulse{}, ErrComplete
			}
		} else if s.gate.Admits(i) {
			break
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return Pulse{}, ctx.Err()
		}
	}

	s.compensate()
	tx, rx := Times(i, s.cfg.PulseInterval, s.offset, s.cfg.TxLead)
	p := Pulse{Index: i, Transmit: tx, Receive: rx}
	s.state.record(p)
	s.next++
	return p, nil
}

// compensate pushes future pulses back by two intervals per receive error
// seen since the last shift, giving the radio's queues time to recover.
func (s *Scheduler) compensate() {
	errs := s.state.Errors()
	if errs <= s.shifted {
		return
	}
	shift := 2 * s.cfg.PulseInterval * time.Duration(errs-s.shifted)
	s.offset += shift
	s.shifted = errs
	s.logger.Warn("shifting schedule after receive errors",
		logging.Pulse(s.next),
		logging.Field{Key: "shift", Value: shift},
		logging.Field{Key: "error_count", Value: errs})
}
