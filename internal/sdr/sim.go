package sdr

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// SimConfig controls the synthetic echoes and read pattern of a SimPort.
type SimConfig struct {
	// PulseInterval spaces windows the port streams into on its own after a
	// read overran the scheduled one.
	PulseInterval time.Duration
	// EchoDelay is the echo position in samples from the window start.
	EchoDelay int
	EchoGain  float64
	Noise     float64
	Seed      int64
	// Chunks is the cyclic list of read sizes. Empty means whole windows.
	Chunks []int
	// FailWindows lists window ordinals whose first read reports StatusError.
	FailWindows []int
}

type simWindow struct {
	at       Timestamp
	n        int
	ordinal  int
	implicit bool
	samples  []complex64
	pos      int
}

// SimPort is an in-process radio. Each receive window, scheduled or
// continued after an overrun, echoes the next unconsumed transmission.
type SimPort struct {
	mu       sync.Mutex
	cfg      SimConfig
	rng      *rand.Rand
	fail     map[int]bool
	txQueue  [][]complex64
	txTimes  []Timestamp
	rxTimes  []Timestamp
	windows  []*simWindow
	ordinal  int
	chunkIdx int
	closed   bool
	notify   chan struct{}
}

var errPortClosed = errors.New("sim port closed")

// NewSim builds a simulated port.
func NewSim(cfg SimConfig) *SimPort {
	fail := make(map[int]bool, len(cfg.FailWindows))
	for _, w := range cfg.FailWindows {
		fail[w] = true
	}
	if cfg.EchoGain == 0 {
		cfg.EchoGain = 1
	}
	return &SimPort{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		fail:   fail,
		notify: make(chan struct{}),
	}
}

func (p *SimPort) Transmit(_ context.Context, buf []complex64, at Timestamp) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	p.txQueue = append(p.txQueue, append([]complex64(nil), buf...))
	p.txTimes = append(p.txTimes, at)
	p.broadcast()
	return len(buf), nil
}

func (p *SimPort) ScheduleReceive(_ context.Context, at Timestamp, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPortClosed
	}
	for _, w := range p.windows {
		if w.implicit {
			return ErrWindowPending
		}
	}
	p.windows = append(p.windows, &simWindow{at: at, n: n, ordinal: p.ordinal})
	p.ordinal++
	p.rxTimes = append(p.rxTimes, at)
	p.broadcast()
	return nil
}

func (p *SimPort) Receive(ctx context.Context, buf []complex64, timeout time.Duration) (int, Status, error) {
	deadline := time.Now().Add(timeout)
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.windows) == 0 {
		if st, err := p.wait(ctx, deadline); st != StatusOK || err != nil {
			return 0, st, err
		}
	}
	head := p.windows[0]
	if st, err := p.synthesize(ctx, head, deadline); st != StatusOK || err != nil {
		return 0, st, err
	}
	if head.pos == 0 && p.fail[head.ordinal] {
		p.windows = p.windows[1:]
		return 0, StatusError, nil
	}

	size := p.nextChunk(head.n, len(buf))
	// Stream on into following pulse windows when the read crosses the
	// boundary of everything that was scheduled.
	queued := 0
	for _, w := range p.windows {
		queued += w.n - w.pos
	}
	for queued < size {
		last := p.windows[len(p.windows)-1]
		p.windows = append(p.windows, &simWindow{
			at:       last.at + p.cfg.PulseInterval,
			n:        last.n,
			ordinal:  p.ordinal,
			implicit: true,
		})
		p.ordinal++
		queued += last.n
	}

	copied := 0
	for copied < size && len(p.windows) > 0 {
		w := p.windows[0]
		if st, err := p.synthesize(ctx, w, deadline); st != StatusOK || err != nil {
			if copied > 0 {
				break
			}
			return 0, st, err
		}
		c := copy(buf[copied:size], w.samples[w.pos:])
		w.pos += c
		copied += c
		if w.pos == w.n {
			p.windows = p.windows[1:]
		}
	}
	return copied, StatusOK, nil
}

func (p *SimPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.broadcast()
	return nil
}

// TxTimes returns the timestamps of every transmission in send order.
func (p *SimPort) TxTimes() []Timestamp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Timestamp(nil), p.txTimes...)
}

// RxTimes returns the start times of explicitly scheduled receive windows.
func (p *SimPort) RxTimes() []Timestamp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Timestamp(nil), p.rxTimes...)
}

func (p *SimPort) nextChunk(window, capacity int) int {
	size := window
	if len(p.cfg.Chunks) > 0 {
		size = p.cfg.Chunks[p.chunkIdx%len(p.cfg.Chunks)]
		p.chunkIdx++
	}
	if size > capacity {
		size = capacity
	}
	return size
}

// synthesize fills w with the echo of the oldest pending transmission,
// waiting for one to arrive if needed. Must be called with p.mu held.
func (p *SimPort) synthesize(ctx context.Context, w *simWindow, deadline time.Time) (Status, error) {
	if w.samples != nil {
		return StatusOK, nil
	}
	for len(p.txQueue) == 0 {
		if st, err := p.wait(ctx, deadline); st != StatusOK || err != nil {
			return st, err
		}
	}
	tx := p.txQueue[0]
	p.txQueue = p.txQueue[1:]

	w.samples = make([]complex64, w.n)
	gain := float32(p.cfg.EchoGain)
	for n := range w.samples {
		var s complex64
		if k := n - p.cfg.EchoDelay; k >= 0 && k < len(tx) {
			s = tx[k] * complex(gain, 0)
		}
		if p.cfg.Noise > 0 {
			s += complex64(complex(p.rng.NormFloat64()*p.cfg.Noise, p.rng.NormFloat64()*p.cfg.Noise))
		}
		w.samples[n] = s
	}
	return StatusOK, nil
}

// wait releases p.mu until the port state changes, the deadline passes or
// ctx ends.
func (p *SimPort) wait(ctx context.Context, deadline time.Time) (Status, error) {
	if p.closed {
		return StatusError, errPortClosed
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return StatusTimeout, nil
	}
	ch := p.notify
	p.mu.Unlock()
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	var (
		st  = StatusOK
		err error
	)
	select {
	case <-ch:
	case <-timer.C:
		st = StatusTimeout
	case <-ctx.Done():
		st, err = StatusError, ctx.Err()
	}
	p.mu.Lock()
	return st, err
}

func (p *SimPort) broadcast() {
	close(p.notify)
	p.notify = make(chan struct{})
}
