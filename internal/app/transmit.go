package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rjboer/GoRadar/internal/dither"
	"github.com/rjboer/GoRadar/internal/logging"
	"github.com/rjboer/GoRadar/internal/schedule"
	"github.com/rjboer/GoRadar/internal/sdr"
)

// Transmitter sends the chirp for every pulse the scheduler releases.
type Transmitter struct {
	port     sdr.Port
	sched    *schedule.Scheduler
	state    *schedule.State
	codec    *dither.Codec
	waveform []complex64
	buf      []complex64
	logger   logging.Logger
}

// NewTransmitter builds the transmit loop. waveform is never modified.
func NewTransmitter(port sdr.Port, sched *schedule.Scheduler, state *schedule.State, codec *dither.Codec, waveform []complex64, logger logging.Logger) *Transmitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Transmitter{
		port:     port,
		sched:    sched,
		state:    state,
		codec:    codec,
		waveform: waveform,
		buf:      make([]complex64, len(waveform)),
		logger:   logger.With(logging.Subsystem("tx")),
	}
}

// Run transmits until the schedule completes or ctx is cancelled. A send
// already handed to the port is allowed to finish.
func (t *Transmitter) Run(ctx context.Context) error {
	defer t.state.Finish()
	for {
		p, err := t.sched.Next(ctx)
		if errors.Is(err, schedule.ErrComplete) {
			t.logger.Debug("schedule complete", logging.Field{Key: "pulses", Value: t.state.Scheduled()})
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("schedule pulse: %w", err)
		}
		out := t.codec.Modulate(t.buf, t.waveform)
		if _, err := t.port.Transmit(context.WithoutCancel(ctx), out, p.Transmit); err != nil {
			return fmt.Errorf("transmit pulse %d: %w", p.Index, err)
		}
	}
}
