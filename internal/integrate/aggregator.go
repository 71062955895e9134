// Package integrate sums error-free pulse windows into integration periods.
package integrate

import "fmt"

// Period is one completed coherent integration.
type Period struct {
	Index    int64
	Samples  []complex64
	Received int64
	Errors   int64
	Good     int64
}

// Aggregator holds the running sum of the current period. Windows passed to
// Add are expected to be phase corrected and already divided by the presum
// count.
type Aggregator struct {
	presums     int64
	sum         []complex64
	pending     int
	lastFlushed int64
	periods     int64
}

// New returns an aggregator for windows of the given length.
func New(samples, presums int) (*Aggregator, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("samples per pulse must be positive, got %d", samples)
	}
	if presums < 1 {
		return nil, fmt.Errorf("presums must be at least 1, got %d", presums)
	}
	return &Aggregator{
		presums: int64(presums),
		sum:     make([]complex64, samples),
	}, nil
}

// Add accumulates one corrected window into the running sum.
func (a *Aggregator) Add(window []complex64) {
	n := min(len(window), len(a.sum))
	for i := 0; i < n; i++ {
		a.sum[i] += window[i]
	}
	a.pending++
}

// Commit closes the current period once the error-free pulse count is a
// positive multiple of the presum count not flushed before. The returned
// period owns its samples; the running sum is zeroed.
func (a *Aggregator) Commit(received, errors int64) (Period, bool) {
	good := received - errors
	if good <= 0 || good%a.presums != 0 || good <= a.lastFlushed {
		return Period{}, false
	}
	p := Period{
		Index:    a.periods,
		Samples:  append([]complex64(nil), a.sum...),
		Received: received,
		Errors:   errors,
		Good:     good,
	}
	clear(a.sum)
	a.pending = 0
	a.lastFlushed = good
	a.periods++
	return p, true
}

// Periods is the number of periods committed so far.
func (a *Aggregator) Periods() int64 { return a.periods }

// Pending is the number of windows summed into the open period.
func (a *Aggregator) Pending() int { return a.pending }

// Presums is the number of error-free pulses per period.
func (a *Aggregator) Presums() int { return int(a.presums) }
