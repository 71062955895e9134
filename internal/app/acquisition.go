package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rjboer/GoRadar/internal/dither"
	"github.com/rjboer/GoRadar/internal/dsp"
	"github.com/rjboer/GoRadar/internal/integrate"
	"github.com/rjboer/GoRadar/internal/logging"
	"github.com/rjboer/GoRadar/internal/record"
	"github.com/rjboer/GoRadar/internal/schedule"
	"github.com/rjboer/GoRadar/internal/sdr"
	"github.com/rjboer/GoRadar/internal/telemetry"
)

// Summary describes a finished acquisition.
type Summary struct {
	RunID     string
	Scheduled int64
	Received  int64
	Errors    int64
	Periods   int64
	Files     []string
	Index     string
	Elapsed   time.Duration
}

// Acquisition runs the transmit and receive loops of one radar run.
type Acquisition struct {
	cfg      Config
	port     sdr.Port
	waveform []complex64
	reporter telemetry.Reporter
	logger   logging.Logger

	runID string
	state *schedule.State
	rx    receiverRef
}

type receiverRef struct {
	mu sync.Mutex
	r  *Receiver
}

func (a *receiverRef) set(r *Receiver) {
	a.mu.Lock()
	a.r = r
	a.mu.Unlock()
}

func (a *receiverRef) periods() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.r == nil {
		return 0
	}
	return a.r.Periods()
}

// NewAcquisition validates cfg and prepares a run. reporter may be nil.
func NewAcquisition(cfg Config, port sdr.Port, waveform []complex64, reporter telemetry.Reporter, logger logging.Logger) (*Acquisition, error) {
	if logger == nil {
		logger = logging.Default()
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("invalid acquisition config: %w", err)
	}
	if len(waveform) == 0 {
		return nil, errors.New("empty transmit waveform")
	}
	runID := uuid.NewString()
	return &Acquisition{
		cfg:      cfg,
		port:     port,
		waveform: waveform,
		reporter: reporter,
		logger:   logger.With(logging.Field{Key: "run", Value: runID}),
		runID:    runID,
		state:    schedule.NewState(cfg.Lookahead),
	}, nil
}

// RunID identifies this acquisition in logs and the period index.
func (a *Acquisition) RunID() string { return a.runID }

// Config returns the effective configuration after defaults and rounding.
func (a *Acquisition) Config() Config { return a.cfg }

// Counters reports live progress. Safe for concurrent use.
func (a *Acquisition) Counters() telemetry.Counters {
	return telemetry.Counters{
		RunID:     a.runID,
		Scheduled: a.state.Scheduled(),
		Received:  a.state.Received(),
		Errors:    a.state.Errors(),
		Good:      a.state.Good(),
		Periods:   a.rx.periods(),
	}
}

// Run acquires until the configured pulse count is reached, ctx is
// cancelled or a fatal error occurs. Output files are closed before the
// transmit loop is joined.
func (a *Acquisition) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfg
	codec := dither.New(cfg.PhaseSeed, cfg.PhaseDither)
	agg, err := integrate.New(cfg.SamplesPerPulse, cfg.Presums)
	if err != nil {
		return Summary{}, err
	}
	writer := record.NewWriter(cfg.SaveLoc, cfg.MaxPulsesPerFile, a.logger)

	var index *record.Index
	indexPath := ""
	if cfg.WriteIndex {
		indexPath = record.IndexPath(cfg.SaveLoc)
		index, err = record.CreateIndex(indexPath, a.runID, cfg.Metadata)
		if err != nil {
			return Summary{}, err
		}
	}

	var compressor *dsp.Compressor
	if a.reporter != nil {
		taper, err := dsp.Taper(cfg.Taper, len(a.waveform))
		if err != nil {
			return Summary{}, err
		}
		compressor = dsp.NewCompressor(a.waveform, cfg.SamplesPerPulse, taper)
	}

	sched := schedule.New(schedule.Config{
		PulseInterval: cfg.PulseInterval,
		TxLead:        cfg.TxLead,
		TimeOffset:    cfg.TimeOffset,
		Lookahead:     cfg.Lookahead,
		Pulses:        cfg.Pulses,
	}, a.state, a.logger)
	tx := NewTransmitter(a.port, sched, a.state, codec, a.waveform, a.logger)
	rx := NewReceiver(ReceiverConfig{
		Port:       a.port,
		State:      a.state,
		Codec:      codec,
		Aggregator: agg,
		Writer:     writer,
		Index:      index,
		Compressor: compressor,
		Reporter:   a.reporter,
		Samples:    cfg.SamplesPerPulse,
		ReadSize:   cfg.RxChunk,
		Timeout:    cfg.RxTimeout,
	}, a.logger)
	a.rx.set(rx)

	a.logger.Info("acquisition started",
		logging.Field{Key: "pulses", Value: cfg.Pulses},
		logging.Field{Key: "presums", Value: cfg.Presums},
		logging.Field{Key: "samples", Value: cfg.SamplesPerPulse},
		logging.Field{Key: "lookahead", Value: cfg.Lookahead},
		logging.Field{Key: "phase_dither", Value: codec.Enabled()},
		logging.Field{Key: "phase_seed", Value: codec.Seed()})

	var (
		wg    sync.WaitGroup
		txErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if txErr = tx.Run(ctx); txErr != nil {
			cancel()
		}
	}()

	rxErr := rx.Run(ctx)
	closeErr := writer.Close()
	if index != nil {
		closeErr = errors.Join(closeErr, index.Close())
	}
	cancel()
	wg.Wait()

	summary := Summary{
		RunID:     a.runID,
		Scheduled: a.state.Scheduled(),
		Received:  a.state.Received(),
		Errors:    a.state.Errors(),
		Periods:   rx.Periods(),
		Files:     writer.Files(),
		Index:     indexPath,
		Elapsed:   time.Since(start),
	}
	if pending := agg.Pending(); pending > 0 {
		a.logger.Info("partial period dropped", logging.Field{Key: "pulses", Value: pending})
	}
	return summary, errors.Join(rxErr, txErr, closeErr)
}
