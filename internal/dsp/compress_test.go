package dsp

import (
	"math"
	"testing"
)

func chirp(n int) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		phase := math.Pi * float64(i*i) / float64(n)
		out[i] = complex64(complex(math.Cos(phase), math.Sin(phase)))
	}
	return out
}

func TestSummarizeFindsEchoDelay(t *testing.T) {
	ref := chirp(32)
	window := make([]complex64, 256)
	const delay = 77
	for i, v := range ref {
		window[delay+i] = v * 0.5
	}

	c := NewCompressor(ref, len(window), Hamming(len(ref)))
	s := c.Summarize(window)
	if s.PeakBin != delay {
		t.Fatalf("expected peak at %d got %d", delay, s.PeakBin)
	}
	if s.SNRDB < 10 {
		t.Fatalf("expected a clear peak, snr %.2f dB", s.SNRDB)
	}
	if math.IsNaN(s.PeakDB) || math.IsNaN(s.MeanDB) {
		t.Fatalf("summary contains NaN: %+v", s)
	}
}

func TestSummarizeSilence(t *testing.T) {
	c := NewCompressor(chirp(8), 16, nil)
	s := c.Summarize(make([]complex64, 16))
	if s.PeakDB != FloorDB || s.SNRDB != 0 {
		t.Fatalf("expected floor summary for silence, got %+v", s)
	}
}
