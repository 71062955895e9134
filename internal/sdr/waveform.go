package sdr

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ReadWaveform decodes n interleaved little-endian float32 I/Q samples.
func ReadWaveform(r io.Reader, n int) ([]complex64, error) {
	raw := make([]float32, 2*n)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("waveform shorter than %d samples", n)
		}
		return nil, err
	}
	out := make([]complex64, n)
	for i := range out {
		out[i] = complex(raw[2*i], raw[2*i+1])
	}
	return out, nil
}

// LoadWaveform reads the first n samples of the chirp file at path.
func LoadWaveform(path string, n int) ([]complex64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open waveform: %w", err)
	}
	defer f.Close()
	wf, err := ReadWaveform(bufio.NewReader(f), n)
	if err != nil {
		return nil, fmt.Errorf("read waveform %s: %w", path, err)
	}
	return wf, nil
}

// AppendSamples encodes samples as interleaved little-endian float32 I/Q.
func AppendSamples(dst []byte, samples []complex64) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(real(s)))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(imag(s)))
	}
	return dst
}
