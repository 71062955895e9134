package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeParts(t *testing.T, base string, parts map[string]string) {
	t.Helper()
	for suffix, body := range parts {
		if err := os.WriteFile(base+"."+suffix, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMergeConcatenatesInIndexOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "run")
	writeParts(t, base, map[string]string{"0": "aa", "1": "bb", "2": "cc", "10": "kk",
		"3": "dd", "4": "ee", "5": "ff", "6": "gg", "7": "hh", "8": "ii", "9": "jj"})
	if err := os.WriteFile(IndexPath(base), []byte("not a part"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "merged")
	n, err := Merge(base, out)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "aabbccddeeffgghhiijjkk" || n != int64(len(data)) {
		t.Fatalf("unexpected merge %q (%d bytes)", data, n)
	}
}

func TestMergeFailures(t *testing.T) {
	dir := t.TempDir()

	if _, err := Merge(filepath.Join(dir, "none"), filepath.Join(dir, "o1")); !errors.Is(err, ErrNoParts) {
		t.Fatalf("expected ErrNoParts, got %v", err)
	}

	gap := filepath.Join(dir, "gap")
	writeParts(t, gap, map[string]string{"0": "a", "2": "c"})
	if _, err := Merge(gap, filepath.Join(dir, "o2")); !errors.Is(err, ErrMissingPart) {
		t.Fatalf("expected ErrMissingPart, got %v", err)
	}

	dup := filepath.Join(dir, "dup")
	writeParts(t, dup, map[string]string{"0": "a", "1": "b", "01": "b"})
	if _, err := Merge(dup, filepath.Join(dir, "o3")); !errors.Is(err, ErrDuplicatePart) {
		t.Fatalf("expected ErrDuplicatePart, got %v", err)
	}

	ok := filepath.Join(dir, "ok")
	writeParts(t, ok, map[string]string{"0": "a"})
	existing := filepath.Join(dir, "exists")
	os.WriteFile(existing, nil, 0o644)
	if _, err := Merge(ok, existing); !errors.Is(err, ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists, got %v", err)
	}
}

func TestMergeRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "run")
	writeParts(t, base, map[string]string{"0": "aa"})
	// a directory in place of a part opens fine but fails to read
	if err := os.Mkdir(PartName(base, 1), 0o755); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "merged")
	if _, err := Merge(base, out); err == nil {
		t.Fatal("expected copy error")
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial output left behind: %v", err)
	}

	if err := os.Remove(PartName(base, 1)); err != nil {
		t.Fatal(err)
	}
	writeParts(t, base, map[string]string{"1": "bb"})
	n, err := Merge(base, out)
	if err != nil || n != 4 {
		t.Fatalf("retry should succeed, got %d bytes, %v", n, err)
	}
}
