package record

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/parquet-go"

	"github.com/rjboer/GoRadar/internal/integrate"
)

// PeriodRow is one entry of the period index.
type PeriodRow struct {
	RunID     string `parquet:"run_id"`
	Period    int64  `parquet:"period"`
	File      string `parquet:"file"`
	FileIndex int64  `parquet:"file_index"`
	Offset    int64  `parquet:"offset"`
	Received  int64  `parquet:"pulses_received"`
	Errors    int64  `parquet:"error_count"`
	Good      int64  `parquet:"error_free"`
	WrittenAt int64  `parquet:"written_unix_ns"`
}

// Index records where every period landed so rotated output can be
// correlated with pulse counts offline.
type Index struct {
	file   *os.File
	writer *parquet.GenericWriter[PeriodRow]
	runID  string
}

// IndexPath is the index file kept next to base.
func IndexPath(base string) string {
	return base + ".index.parquet"
}

// CreateIndex creates the index file at path. The run id and config are
// stored as key/value metadata.
func CreateIndex(path, runID string, config any) (*Index, error) {
	configStr := "{}"
	if config != nil {
		b, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("encode index metadata: %w", err)
		}
		configStr = string(b)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	w := parquet.NewGenericWriter[PeriodRow](f,
		parquet.KeyValueMetadata("run_id", runID),
		parquet.KeyValueMetadata("config", configStr),
	)
	return &Index{file: f, writer: w, runID: runID}, nil
}

// Append adds one row for a written period.
func (x *Index) Append(p integrate.Period, loc Location) error {
	row := PeriodRow{
		RunID:     x.runID,
		Period:    p.Index,
		File:      loc.File,
		FileIndex: loc.Index,
		Offset:    loc.Offset,
		Received:  p.Received,
		Errors:    p.Errors,
		Good:      p.Good,
		WrittenAt: time.Now().UnixNano(),
	}
	if _, err := x.writer.Write([]PeriodRow{row}); err != nil {
		return fmt.Errorf("append index row: %w", err)
	}
	return nil
}

// Close finishes the parquet footer and closes the file.
func (x *Index) Close() error {
	if err := x.writer.Close(); err != nil {
		x.file.Close()
		return fmt.Errorf("close index writer: %w", err)
	}
	return x.file.Close()
}

// ReadIndex loads every row of the index at path.
func ReadIndex(path string) ([]PeriodRow, error) {
	rows, err := parquet.ReadFile[PeriodRow](path)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return rows, nil
}
