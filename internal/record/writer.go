// Package record persists integration periods to rotated output files.
package record

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/rjboer/GoRadar/internal/logging"
	"github.com/rjboer/GoRadar/internal/sdr"
)

// Location identifies where a period record was written.
type Location struct {
	File   string
	Index  int64
	Offset int64
}

// Writer appends fixed-size period records to the current output file,
// moving to a new indexed file every maxPulses received pulses.
type Writer struct {
	base      string
	maxPulses int64
	logger    logging.Logger

	file   *os.File
	buf    *bufio.Writer
	name   string
	index  int64
	offset int64
	files  []string
	enc    []byte
}

// NewWriter prepares a writer for base. maxPulses <= 0 disables rotation and
// everything goes to base itself. No file is created until the first Rotate.
func NewWriter(base string, maxPulses int64, logger logging.Logger) *Writer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{
		base:      base,
		maxPulses: maxPulses,
		logger:    logger.With(logging.Subsystem("writer")),
		index:     -1,
	}
}

// PartName is the file that holds rotation index idx of base.
func PartName(base string, idx int64) string {
	return base + "." + strconv.FormatInt(idx, 10)
}

// Rotate opens the file that should receive output once received pulses have
// been accounted for. It is called at the top of every receive iteration and
// returns true when a new file was opened.
func (w *Writer) Rotate(received int64) (bool, error) {
	want := int64(0)
	if w.maxPulses > 0 {
		want = received / w.maxPulses
	}
	if w.file != nil && want <= w.index {
		return false, nil
	}
	if err := w.closeFile(); err != nil {
		return false, err
	}
	name := w.base
	if w.maxPulses > 0 {
		name = PartName(w.base, want)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open output %s: %w", name, err)
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, 1<<16)
	w.name = name
	w.index = want
	w.offset = 0
	w.files = append(w.files, name)
	w.logger.Info("output file opened",
		logging.Field{Key: "file", Value: name},
		logging.Field{Key: "index", Value: want},
		logging.Pulse(received))
	return true, nil
}

// Write appends one period record. Any error is fatal for the run.
func (w *Writer) Write(samples []complex64) (Location, error) {
	if w.file == nil {
		return Location{}, fmt.Errorf("write period: no output file open")
	}
	w.enc = sdr.AppendSamples(w.enc[:0], samples)
	loc := Location{File: w.name, Index: w.index, Offset: w.offset}
	if _, err := w.buf.Write(w.enc); err != nil {
		return loc, fmt.Errorf("write period to %s: %w", w.name, err)
	}
	w.offset += int64(len(w.enc))
	return loc, nil
}

// Files lists every file opened so far, in order.
func (w *Writer) Files() []string {
	return append([]string(nil), w.files...)
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	return w.closeFile()
}

func (w *Writer) closeFile() error {
	if w.file == nil {
		return nil
	}
	f, name := w.file, w.name
	w.file = nil
	if err := w.buf.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := syncData(f); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}
