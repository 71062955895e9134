package sdr

import (
	"context"
	"errors"
	"time"
)

// Timestamp is a device time measured from the radio's time epoch.
type Timestamp = time.Duration

// Status is the outcome of a single receive call.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrWindowPending is returned when a receive window is scheduled while the
// port is still streaming samples for a window that was never scheduled
// explicitly (an overrun continuation).
var ErrWindowPending = errors.New("receive window still streaming")

// Port captures the timed radio operations required by the acquisition loops.
//
// Transmit and ScheduleReceive are called from different goroutines;
// Receive is only called from the goroutine that schedules windows.
type Port interface {
	// Transmit sends buf as one burst starting at device time at and returns
	// the number of samples accepted. It does not wait for echoes.
	Transmit(ctx context.Context, buf []complex64, at Timestamp) (int, error)
	// ScheduleReceive issues a one-shot capture of n samples starting at at.
	ScheduleReceive(ctx context.Context, at Timestamp, n int) error
	// Receive copies the next chunk of captured samples into buf. A non-nil
	// error is a port failure; per-read faults are reported through Status.
	Receive(ctx context.Context, buf []complex64, timeout time.Duration) (int, Status, error)
	Close() error
}
