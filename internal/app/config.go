package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/rjboer/GoRadar/internal/schedule"
)

// DefaultRxTimeout bounds a single hardware read.
const DefaultRxTimeout = 5 * time.Second

// ErrCarryOverflow rejects a read buffer that could spill past every pulse
// window the scheduler has in flight.
var ErrCarryOverflow = errors.New("read size exceeds the in-flight pulse windows")

// Config captures the acquisition parameters consumed at startup.
type Config struct {
	PulseInterval time.Duration
	TxLead        time.Duration
	TimeOffset    time.Duration

	SamplesPerPulse int
	Presums         int
	// Pulses is the number of error-free pulses to acquire. Negative runs
	// until cancelled.
	Pulses    int64
	Lookahead int

	PhaseDither bool
	PhaseSeed   uint64

	SaveLoc string
	// MaxPulsesPerFile <= 0 disables rotation.
	MaxPulsesPerFile int64
	WriteIndex       bool

	RxTimeout time.Duration
	// RxChunk is the capacity of the hardware read buffer in samples. It may
	// exceed a window but not Lookahead windows.
	RxChunk int
	// Taper weights the matched filter used for period summaries.
	Taper string

	// Metadata is stored alongside the period index.
	Metadata any
}

// RoundPulses rounds a non-negative pulse count up to a whole number of
// integration periods.
func RoundPulses(pulses int64, presums int) int64 {
	if pulses < 0 || presums < 1 {
		return pulses
	}
	p := int64(presums)
	return (pulses + p - 1) / p * p
}

// withDefaults validates cfg and fills in defaults.
func (c Config) withDefaults() (Config, error) {
	if c.SamplesPerPulse <= 0 {
		return c, fmt.Errorf("samples per pulse must be positive, got %d", c.SamplesPerPulse)
	}
	if c.Presums < 1 {
		return c, fmt.Errorf("presums must be at least 1, got %d", c.Presums)
	}
	if c.PulseInterval <= 0 {
		return c, fmt.Errorf("pulse interval must be positive, got %s", c.PulseInterval)
	}
	if c.SaveLoc == "" {
		return c, fmt.Errorf("output path is required")
	}
	if c.Lookahead == 0 {
		c.Lookahead = schedule.DefaultLookahead
	}
	if c.Lookahead < 1 {
		return c, fmt.Errorf("lookahead must be at least 1, got %d", c.Lookahead)
	}
	if c.RxTimeout <= 0 {
		c.RxTimeout = DefaultRxTimeout
	}
	if c.RxChunk <= 0 {
		c.RxChunk = c.SamplesPerPulse
	}
	if limit := c.Lookahead * c.SamplesPerPulse; c.RxChunk > limit {
		return c, fmt.Errorf("%w: read of %d samples, lookahead %d of %d-sample windows", ErrCarryOverflow, c.RxChunk, c.Lookahead, c.SamplesPerPulse)
	}
	c.Pulses = RoundPulses(c.Pulses, c.Presums)
	return c, nil
}
