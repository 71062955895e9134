package schedule

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rjboer/GoRadar/internal/logging"
)

func quietLogger() logging.Logger { return logging.New(logging.Debug, logging.Text, io.Discard) }

func TestTimes(t *testing.T) {
	tx, rx := Times(3, 10*time.Millisecond, time.Second, 2*time.Millisecond)
	if rx != time.Second+30*time.Millisecond || tx != rx-2*time.Millisecond {
		t.Fatalf("unexpected times tx=%v rx=%v", tx, rx)
	}
}

func TestSchedulerBlocksAtLookahead(t *testing.T) {
	const depth = 3
	state := NewState(depth)
	s := New(Config{PulseInterval: time.Millisecond, Lookahead: depth, Pulses: -1}, state, quietLogger())

	ctx := context.Background()
	for i := 0; i < depth; i++ {
		if _, err := s.Next(ctx); err != nil {
			t.Fatalf("pulse %d: %v", i, err)
		}
	}
	if got := state.Scheduled() - state.Received(); got != depth {
		t.Fatalf("expected %d in flight, got %d", depth, got)
	}

	stalled, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if _, err := s.Next(stalled); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected scheduler to block with receive stalled, got %v", err)
	}
	if state.Scheduled() != depth {
		t.Fatalf("scheduled beyond lookahead: %d", state.Scheduled())
	}

	done := make(chan Pulse, 1)
	go func() {
		p, err := s.Next(ctx)
		if err == nil {
			done <- p
		}
	}()
	state.MarkReceived(false)
	select {
	case p := <-done:
		if p.Index != depth {
			t.Fatalf("expected pulse %d, got %d", depth, p.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not resume after a pulse was received")
	}
	if got := state.Scheduled() - state.Received(); got > depth {
		t.Fatalf("lookahead exceeded: %d", got)
	}
}

func TestSchedulerMakesUpErroredPulses(t *testing.T) {
	state := NewState(8)
	s := New(Config{PulseInterval: time.Millisecond, Lookahead: 8, Pulses: 4}, state, quietLogger())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.Next(ctx); err != nil {
			t.Fatalf("pulse %d: %v", i, err)
		}
	}
	state.MarkReceived(false)
	state.MarkReceived(true)
	state.MarkReceived(false)
	state.MarkReceived(false)

	p, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("expected a make-up pulse: %v", err)
	}
	if p.Index != 4 {
		t.Fatalf("expected pulse 4, got %d", p.Index)
	}
	state.MarkReceived(false)
	if _, err := s.Next(ctx); !errors.Is(err, ErrComplete) {
		t.Fatalf("expected ErrComplete, got %v", err)
	}
}

func TestSchedulerWaitsForOutstandingBeforeComplete(t *testing.T) {
	state := NewState(4)
	s := New(Config{PulseInterval: time.Millisecond, Lookahead: 4, Pulses: 1}, state, quietLogger())
	ctx := context.Background()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("first pulse: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := s.Next(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("scheduler must wait for the outstanding pulse, got %v", err)
	}
	state.MarkReceived(true)
	p, err := s.Next(ctx)
	if err != nil || p.Index != 1 {
		t.Fatalf("expected replacement pulse 1, got %v %v", p, err)
	}
}

func TestSchedulerShiftsOffsetAfterErrors(t *testing.T) {
	state := NewState(4)
	pri := 10 * time.Millisecond
	s := New(Config{PulseInterval: pri, TimeOffset: time.Second, Lookahead: 4, Pulses: -1}, state, quietLogger())
	ctx := context.Background()

	p0, _ := s.Next(ctx)
	state.MarkReceived(true)
	state.MarkReceived(true)
	p1, _ := s.Next(ctx)

	if p0.Receive != time.Second {
		t.Fatalf("unexpected first receive time %v", p0.Receive)
	}
	want := time.Second + pri + 2*pri*2
	if p1.Receive != want {
		t.Fatalf("expected shifted receive time %v, got %v", want, p1.Receive)
	}
	if s.Offset() != time.Second+4*pri {
		t.Fatalf("unexpected offset %v", s.Offset())
	}
}

func TestLookupWaitsForSchedule(t *testing.T) {
	state := NewState(2)
	s := New(Config{PulseInterval: time.Millisecond, TxLead: time.Microsecond, Lookahead: 2, Pulses: -1}, state, quietLogger())
	ctx := context.Background()

	got := make(chan Pulse, 1)
	go func() {
		p, err := state.Lookup(ctx, 0)
		if err == nil {
			got <- p
		}
	}()
	want, _ := s.Next(ctx)
	select {
	case p := <-got:
		if p != want {
			t.Fatalf("lookup returned %+v, want %+v", p, want)
		}
	case <-time.After(time.Second):
		t.Fatal("lookup did not observe scheduled pulse")
	}

	state.Finish()
	if _, err := state.Lookup(ctx, 5); !errors.Is(err, ErrComplete) {
		t.Fatalf("expected ErrComplete after finish, got %v", err)
	}
}
