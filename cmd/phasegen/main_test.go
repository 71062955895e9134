package main

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/rjboer/GoRadar/internal/dither"
)

func TestWritePhasesMatchesTransmitStream(t *testing.T) {
	var buf bytes.Buffer
	if err := writePhases(&buf, 42, 5); err != nil {
		t.Fatal(err)
	}
	got := make([]float32, 5)
	if err := binary.Read(&buf, binary.LittleEndian, got); err != nil {
		t.Fatal(err)
	}
	codec := dither.New(42, true)
	for i, g := range got {
		if want := float32(codec.NextPhase(dither.Transmit)); g != want {
			t.Fatalf("phase %d: want %v got %v", i, want, g)
		}
	}
	if err := writePhases(&buf, 0, -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestUsageDescribesPhaseUnits(t *testing.T) {
	var buf bytes.Buffer
	usage(&buf)
	for _, want := range []string{"float32", "radians", "2π·u/2^32", "not the raw generator values"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("usage text lacks %q:\n%s", want, buf.String())
		}
	}
}
