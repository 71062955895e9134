package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Hamming returns a Hamming window of length n.
// If n is zero or negative, an empty slice is returned.
func Hamming(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{1}
	}
	win := make([]float64, n)
	for i := 0; i < n; i++ {
		win[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return win
}

// Blackman returns a Blackman window of length n.
func Blackman(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{1}
	}
	win := make([]float64, n)
	for i := 0; i < n; i++ {
		x := 2 * math.Pi * float64(i) / float64(n-1)
		win[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return win
}

// Taper returns the named amplitude taper for the matched-filter reference.
// "none" (or empty) yields all ones.
func Taper(name string, n int) ([]float64, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "rect":
		win := make([]float64, max(n, 0))
		for i := range win {
			win[i] = 1
		}
		return win, nil
	case "hamming":
		return Hamming(n), nil
	case "blackman":
		return Blackman(n), nil
	default:
		return nil, fmt.Errorf("unsupported taper %q", name)
	}
}

// weighted converts samples to complex128, scaling each by the window.
func weighted(samples []complex64, window []float64) []complex128 {
	out := make([]complex128, len(samples))
	for i, v := range samples {
		w := 1.0
		if i < len(window) {
			w = window[i]
		}
		out[i] = complex(float64(real(v))*w, float64(imag(v))*w)
	}
	return out
}
