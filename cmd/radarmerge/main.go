package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/rjboer/GoRadar/internal/record"
)

func main() {
	base := flag.String("base", "rx_samps.bin", "Base name of the rotated files (<base>.0, <base>.1, ...)")
	out := flag.String("o", "", "Merged output file (default <base>.merged)")
	flag.Parse()

	dst := *out
	if dst == "" {
		dst = *base + ".merged"
	}
	parts, err := record.Parts(*base)
	if err != nil {
		log.Fatalf("find parts: %v", err)
	}
	n, err := record.Merge(*base, dst)
	if err != nil {
		log.Fatalf("merge: %v", err)
	}
	fmt.Printf("merged %d files (%d bytes) into %s\n", len(parts), n, dst)
}
