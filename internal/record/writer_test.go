package record

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rjboer/GoRadar/internal/logging"
	"github.com/rjboer/GoRadar/internal/sdr"
)

func quietLogger() logging.Logger {
	return logging.New(logging.Error, logging.Text, io.Discard)
}

// drive runs the receive-side write pattern: rotate at the top of each
// iteration, then write a record every presums pulses.
func drive(t *testing.T, w *Writer, total, presums int) [][]complex64 {
	t.Helper()
	var written [][]complex64
	for received := 0; received < total; received++ {
		if _, err := w.Rotate(int64(received)); err != nil {
			t.Fatalf("rotate at %d: %v", received, err)
		}
		if (received+1)%presums == 0 {
			rec := []complex64{complex(float32(received), 0), complex(0, float32(received))}
			if _, err := w.Write(rec); err != nil {
				t.Fatal(err)
			}
			written = append(written, rec)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return written
}

func TestRotationFileCount(t *testing.T) {
	cases := []struct{ total, max, presums, files int }{
		{10, 4, 1, 3},
		{12, 4, 2, 3},
		{12, 3, 4, 4},
		{1, 5, 1, 1},
	}
	for _, c := range cases {
		base := filepath.Join(t.TempDir(), "out")
		w := NewWriter(base, int64(c.max), quietLogger())
		drive(t, w, c.total, c.presums)
		files := w.Files()
		if len(files) != c.files {
			t.Fatalf("total %d max %d: expected %d files, got %v", c.total, c.max, c.files, files)
		}
		for i, f := range files {
			if f != PartName(base, int64(i)) {
				t.Fatalf("file %d named %s", i, f)
			}
			if _, err := os.Stat(f); err != nil {
				t.Fatalf("missing %s: %v", f, err)
			}
		}
	}
}

func TestRotationKeepsWriteOrder(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	w := NewWriter(base, 4, quietLogger())
	written := drive(t, w, 12, 2)

	var got []complex64
	for _, f := range w.Files() {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		if len(data)%16 != 0 {
			t.Fatalf("%s holds a partial record (%d bytes)", f, len(data))
		}
		recs, err := sdr.ReadWaveform(bytes.NewReader(data), len(data)/8)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, recs...)
	}
	if len(got) != 2*len(written) {
		t.Fatalf("expected %d samples, got %d", 2*len(written), len(got))
	}
	for i, rec := range written {
		if got[2*i] != rec[0] || got[2*i+1] != rec[1] {
			t.Fatalf("record %d out of order: %v", i, got[2*i:2*i+2])
		}
	}
	// each file holds two records: pulses 0-3, 4-7, 8-11 with presums 2
	if info, _ := os.Stat(PartName(base, 1)); info.Size() != 32 {
		t.Fatalf("expected two records in part 1, got %d bytes", info.Size())
	}
}

func TestWriterWithoutRotation(t *testing.T) {
	base := filepath.Join(t.TempDir(), "single")
	w := NewWriter(base, 0, quietLogger())
	drive(t, w, 20, 5)
	if files := w.Files(); len(files) != 1 || files[0] != base {
		t.Fatalf("expected a single file at base, got %v", files)
	}
	info, err := os.Stat(base)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 4*16 {
		t.Fatalf("expected 4 records, got %d bytes", info.Size())
	}
}

func TestWriteWithoutFile(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "x"), 0, quietLogger())
	if _, err := w.Write([]complex64{1}); err == nil {
		t.Fatal("expected error before the first rotate")
	}
}

func TestWriteLocations(t *testing.T) {
	base := filepath.Join(t.TempDir(), "loc")
	w := NewWriter(base, 2, quietLogger())
	defer w.Close()
	w.Rotate(0)
	a, _ := w.Write([]complex64{1, 2})
	b, _ := w.Write([]complex64{3, 4})
	if a.Offset != 0 || b.Offset != 16 || b.Index != 0 {
		t.Fatalf("unexpected locations %+v %+v", a, b)
	}
	if opened, _ := w.Rotate(2); !opened {
		t.Fatal("expected rotation at pulse 2")
	}
	c, _ := w.Write([]complex64{5})
	if c.Index != 1 || c.Offset != 0 || c.File != PartName(base, 1) {
		t.Fatalf("unexpected location after rotation %+v", c)
	}
}
