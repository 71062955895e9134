package dsp

import "fmt"

// Assembly is the result of adding samples into a pulse window.
type Assembly struct {
	// Pos is the new fill position.
	Pos int
	// Carry holds the samples past the window end. They belong to the
	// following windows, in order, and must be applied before any new read.
	// It may span several whole windows.
	Carry []complex64
	// Complete is set once Pos reaches the window length.
	Complete bool
}

// Assemble adds carryIn and then chunk element-wise into window from pos,
// in that order. Samples that do not fit are returned as the carry for the
// next window, so prefix plus carry always equals the input length.
// window is updated in place; the returned carry never aliases the inputs.
func Assemble(window []complex64, pos int, carryIn, chunk []complex64) (Assembly, error) {
	if pos < 0 || pos > len(window) {
		return Assembly{Pos: pos}, fmt.Errorf("fill position %d outside window of %d", pos, len(window))
	}
	var carry []complex64
	for _, part := range [2][]complex64{carryIn, chunk} {
		n := Accumulate(window[pos:], part)
		pos += n
		if n < len(part) {
			carry = append(carry, part[n:]...)
		}
	}
	return Assembly{Pos: pos, Carry: carry, Complete: pos == len(window)}, nil
}

// Accumulate adds src into dst element-wise over their common length and
// returns that length.
func Accumulate(dst, src []complex64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
	return n
}
