package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rjboer/GoRadar/internal/dither"
	"github.com/rjboer/GoRadar/internal/dsp"
	"github.com/rjboer/GoRadar/internal/integrate"
	"github.com/rjboer/GoRadar/internal/logging"
	"github.com/rjboer/GoRadar/internal/record"
	"github.com/rjboer/GoRadar/internal/schedule"
	"github.com/rjboer/GoRadar/internal/sdr"
	"github.com/rjboer/GoRadar/internal/telemetry"
)

// Receiver assembles echo windows from hardware reads, integrates them and
// writes completed periods. It owns every receive-side buffer.
type Receiver struct {
	port       sdr.Port
	state      *schedule.State
	codec      *dither.Codec
	agg        *integrate.Aggregator
	writer     *record.Writer
	index      *record.Index
	compressor *dsp.Compressor
	reporter   telemetry.Reporter
	logger     logging.Logger

	timeout time.Duration
	window  []complex64
	readBuf []complex64
	carry   []complex64
	periods atomic.Int64
}

// ReceiverConfig wires a Receiver. Index, Compressor and Reporter are optional.
type ReceiverConfig struct {
	Port       sdr.Port
	State      *schedule.State
	Codec      *dither.Codec
	Aggregator *integrate.Aggregator
	Writer     *record.Writer
	Index      *record.Index
	Compressor *dsp.Compressor
	Reporter   telemetry.Reporter
	Samples    int
	ReadSize   int
	Timeout    time.Duration
}

// NewReceiver builds the receive loop.
func NewReceiver(cfg ReceiverConfig, logger logging.Logger) *Receiver {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = cfg.Samples
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRxTimeout
	}
	return &Receiver{
		port:       cfg.Port,
		state:      cfg.State,
		codec:      cfg.Codec,
		agg:        cfg.Aggregator,
		writer:     cfg.Writer,
		index:      cfg.Index,
		compressor: cfg.Compressor,
		reporter:   cfg.Reporter,
		logger:     logger.With(logging.Subsystem("rx")),
		timeout:    cfg.Timeout,
		window:     make([]complex64, cfg.Samples),
		readBuf:    make([]complex64, cfg.ReadSize),
	}
}

// Periods is the number of periods written so far. Safe for concurrent use.
func (r *Receiver) Periods() int64 { return r.periods.Load() }

// Run receives pulses in index order until the schedule is finished or ctx
// is cancelled. Partially integrated periods are dropped on stop. The
// returned error is fatal for the run.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		received := r.state.Received()
		p, err := r.state.Lookup(ctx, received)
		if errors.Is(err, schedule.ErrComplete) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("pulse %d timing: %w", received, err)
		}
		if _, err := r.writer.Rotate(received); err != nil {
			return err
		}
		if err := r.receivePulse(ctx, p); err != nil {
			return err
		}
	}
}

// receivePulse assembles the window of p, consuming any carry from the
// previous read first. A carry spanning whole windows completes p without a
// read. A fresh capture is only scheduled for an empty window.
func (r *Receiver) receivePulse(ctx context.Context, p schedule.Pulse) error {
	hw := context.WithoutCancel(ctx)
	clear(r.window)

	res, err := dsp.Assemble(r.window, 0, r.carry, nil)
	r.carry = nil
	if err != nil {
		return fmt.Errorf("carry into pulse %d: %w", p.Index, err)
	}
	pos := res.Pos
	if pos == 0 {
		if err := r.port.ScheduleReceive(hw, p.Receive, len(r.window)); err != nil {
			return fmt.Errorf("schedule receive for pulse %d: %w", p.Index, err)
		}
	}

	for !res.Complete {
		n, status, err := r.port.Receive(hw, r.readBuf, r.timeout)
		if err != nil {
			return fmt.Errorf("receive pulse %d: %w", p.Index, err)
		}
		if status != sdr.StatusOK {
			return r.discard(p, status.String())
		}
		if n != len(r.window) {
			r.logger.Debug("partial read", logging.Pulse(p.Index),
				logging.Field{Key: "samples", Value: n},
				logging.Field{Key: "filled", Value: pos})
		}
		res, err = dsp.Assemble(r.window, pos, nil, r.readBuf[:n])
		if err != nil {
			return fmt.Errorf("assemble pulse %d: %w", p.Index, err)
		}
		pos = res.Pos
	}
	r.carry = res.Carry
	if len(res.Carry) > 0 {
		r.logger.Debug("read overran window", logging.Pulse(p.Index),
			logging.Field{Key: "carry", Value: len(res.Carry)})
	}

	r.codec.Demodulate(r.window, r.agg.Presums())
	r.agg.Add(r.window)
	r.state.MarkReceived(false)

	period, ok := r.agg.Commit(r.state.Received(), r.state.Errors())
	if !ok {
		return nil
	}
	return r.flush(period)
}

// discard drops the pulse being assembled and keeps the receive phase
// stream aligned with the transmit side. Reads only happen with no carry
// pending, so nothing belonging to later pulses is lost.
func (r *Receiver) discard(p schedule.Pulse, reason string) error {
	r.codec.Skip()
	r.state.MarkReceived(true)
	errs := r.state.Errors()
	r.logger.Warn("pulse discarded", logging.Pulse(p.Index),
		logging.Field{Key: "reason", Value: reason},
		logging.Field{Key: "error_count", Value: errs})
	if r.reporter != nil {
		r.reporter.ReportPulseError(telemetry.PulseError{
			Timestamp: time.Now(),
			Pulse:     p.Index,
			Reason:    reason,
			Errors:    errs,
		})
	}
	return nil
}

func (r *Receiver) flush(period integrate.Period) error {
	loc, err := r.writer.Write(period.Samples)
	if err != nil {
		return err
	}
	if r.index != nil {
		if err := r.index.Append(period, loc); err != nil {
			return err
		}
	}
	r.periods.Add(1)
	r.logger.Info("period written",
		logging.Field{Key: "period", Value: period.Index},
		logging.Pulse(period.Received),
		logging.Field{Key: "file", Value: loc.File})

	if r.reporter == nil {
		return nil
	}
	sample := telemetry.PeriodSample{
		Timestamp: time.Now(),
		Period:    period.Index,
		Received:  period.Received,
		Errors:    period.Errors,
		File:      loc.File,
	}
	if r.compressor != nil {
		s := r.compressor.Summarize(period.Samples)
		sample.PeakBin, sample.PeakDB, sample.MeanDB, sample.SNRDB = s.PeakBin, s.PeakDB, s.MeanDB, s.SNRDB
	}
	r.reporter.ReportPeriod(sample)
	return nil
}
