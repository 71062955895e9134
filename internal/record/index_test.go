package record

import (
	"path/filepath"
	"testing"

	"github.com/rjboer/GoRadar/internal/integrate"
)

func TestIndexRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "run")
	idx, err := CreateIndex(IndexPath(base), "run-1", map[string]int{"presums": 4})
	if err != nil {
		t.Fatal(err)
	}
	periods := []integrate.Period{
		{Index: 0, Received: 4, Errors: 0, Good: 4},
		{Index: 1, Received: 9, Errors: 1, Good: 8},
	}
	for i, p := range periods {
		loc := Location{File: PartName(base, 0), Index: 0, Offset: int64(i) * 64}
		if err := idx.Append(p, loc); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadIndex(IndexPath(base))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	r := rows[1]
	if r.RunID != "run-1" || r.Period != 1 || r.Received != 9 || r.Errors != 1 || r.Good != 8 || r.Offset != 64 {
		t.Fatalf("unexpected row %+v", r)
	}
	if r.WrittenAt == 0 {
		t.Fatal("write time not recorded")
	}
}
