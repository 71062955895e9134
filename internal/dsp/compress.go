package dsp

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one pulse-compressed integration period.
type Summary struct {
	PeakBin int     `json:"peakBin"`
	PeakDB  float64 `json:"peakDb"`
	MeanDB  float64 `json:"meanDb"`
	SNRDB   float64 `json:"snrDb"`
}

// Compressor correlates receive windows against the transmitted chirp.
// The reference spectrum and FFT plan are computed once and reused.
type Compressor struct {
	mu      sync.Mutex
	window  int
	fft     *fourier.CmplxFFT
	refConj []complex128
	scratch []complex128
}

// NewCompressor prepares a matched filter for windows of the given length.
// The reference is weighted by taper before its spectrum is taken.
func NewCompressor(reference []complex64, window int, taper []float64) *Compressor {
	size := nextPow2(window + len(reference))
	fft := fourier.NewCmplxFFT(size)

	padded := make([]complex128, size)
	copy(padded, weighted(reference, taper))
	spec := fft.Coefficients(nil, padded)
	for i, v := range spec {
		spec[i] = cmplx.Conj(v)
	}
	return &Compressor{
		window:  window,
		fft:     fft,
		refConj: spec,
		scratch: make([]complex128, size),
	}
}

// Compress returns the correlation magnitude for each range bin of samples.
func (c *Compressor) Compress(samples []complex64) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.scratch)
	for i, v := range samples {
		if i >= len(c.scratch) {
			break
		}
		c.scratch[i] = complex128(v)
	}
	spec := c.fft.Coefficients(nil, c.scratch)
	for i := range spec {
		spec[i] *= c.refConj[i]
	}
	corr := c.fft.Sequence(nil, spec)
	n := float64(len(corr))

	bins := min(c.window, len(samples))
	out := make([]float64, bins)
	for i := range out {
		out[i] = cmplx.Abs(corr[i]) / n
	}
	return out
}

// Summarize pulse-compresses samples and reports the strongest range bin.
func (c *Compressor) Summarize(samples []complex64) Summary {
	mag := c.Compress(samples)
	if len(mag) == 0 {
		return Summary{PeakDB: FloorDB, MeanDB: FloorDB}
	}
	power := make([]float64, len(mag))
	for i, m := range mag {
		power[i] = m * m
	}
	peak := floats.MaxIdx(power)
	s := Summary{
		PeakBin: peak,
		PeakDB:  toDB(power[peak]),
		MeanDB:  toDB(stat.Mean(power, nil)),
	}
	s.SNRDB = s.PeakDB - s.MeanDB
	return s
}

// FloorDB is reported for zero power so summaries stay JSON-encodable.
const FloorDB = -300.0

func toDB(p float64) float64 {
	if p <= 0 {
		return FloorDB
	}
	return 10 * math.Log10(p)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
