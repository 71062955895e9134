package record

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNoParts       = errors.New("no rotated parts found")
	ErrMissingPart   = errors.New("rotated part missing")
	ErrDuplicatePart = errors.New("rotated part listed twice")
	ErrOutputExists  = errors.New("merge output already exists")
)

// Parts returns the rotated files of base, ordered by index. Indices must run
// from 0 without gaps.
func Parts(base string) ([]string, error) {
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return nil, fmt.Errorf("list parts of %s: %w", base, err)
	}
	byIndex := make(map[int64]string)
	for _, m := range matches {
		suffix := strings.TrimPrefix(m, base+".")
		idx, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil || idx < 0 {
			continue
		}
		if prev, ok := byIndex[idx]; ok {
			return nil, fmt.Errorf("%w: index %d (%s, %s)", ErrDuplicatePart, idx, prev, m)
		}
		byIndex[idx] = m
	}
	if len(byIndex) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParts, base)
	}
	indices := make([]int64, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	parts := make([]string, len(indices))
	for i, idx := range indices {
		if idx != int64(i) {
			return nil, fmt.Errorf("%w: %s", ErrMissingPart, PartName(base, int64(i)))
		}
		parts[i] = byIndex[idx]
	}
	return parts, nil
}

// Merge concatenates the rotated parts of base into out and returns the
// number of bytes written. out must not exist, and is removed again if the
// merge fails part way.
func Merge(base, out string) (int64, error) {
	parts, err := Parts(base)
	if err != nil {
		return 0, err
	}
	dst, err := os.OpenFile(out, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrOutputExists, out)
		}
		return 0, fmt.Errorf("create %s: %w", out, err)
	}
	var total int64
	for _, p := range parts {
		n, err := appendFile(dst, p)
		total += n
		if err != nil {
			dst.Close()
			return total, errors.Join(err, os.Remove(out))
		}
	}
	if err := dst.Close(); err != nil {
		return total, errors.Join(fmt.Errorf("close %s: %w", out, err), os.Remove(out))
	}
	return total, nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open part: %w", err)
	}
	defer src.Close()
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", path, err)
	}
	return n, nil
}
