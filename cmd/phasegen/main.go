package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rjboer/GoRadar/internal/dither"
)

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: phasegen [-n count] [-seed seed] [-o file]

Writes the transmit phase-dither sequence of a seed as little-endian float32
radians. Each phase is 2π·u/2^32 where u is the next MT19937 output, so the
file holds angles in [0, 2π), not the raw generator values.

`)
}

func main() {
	flag.Usage = func() {
		usage(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	n := flag.Int("n", 10000, "Number of phases to write")
	seed := flag.Uint64("seed", 0, "Phase dither seed")
	out := flag.String("o", "phases.bin", "Output file (float32 little-endian radians)")
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	if err := writePhases(f, *seed, *n); err != nil {
		f.Close()
		log.Fatalf("write phases: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close output: %v", err)
	}
	fmt.Printf("wrote %d phases for seed %d to %s\n", *n, *seed, *out)
}

// writePhases writes the first n transmit phases for seed.
func writePhases(w io.Writer, seed uint64, n int) error {
	if n < 0 {
		return fmt.Errorf("phase count must not be negative, got %d", n)
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, dither.Phases(seed, n)); err != nil {
		return err
	}
	return bw.Flush()
}
