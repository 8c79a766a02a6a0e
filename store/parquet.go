package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ArchiveRow is one sample in the parquet archive. It carries the same
// three fields as the flat dump plus the slot the sample occupied.
type ArchiveRow struct {
	Slot   int32     `parquet:"slot"`
	Board  []float32 `parquet:"board"`
	Policy []float32 `parquet:"policy"`
	Value  float32   `parquet:"value"`
}

func toArchiveRows(samples []Sample) []ArchiveRow {
	rows := make([]ArchiveRow, len(samples))
	for i := range samples {
		rows[i] = ArchiveRow{
			Slot:   int32(i),
			Board:  append([]float32(nil), samples[i].Board[:]...),
			Policy: append([]float32(nil), samples[i].Policy[:]...),
			Value:  samples[i].Value,
		}
	}
	return rows
}

// WriteArchiveParquet writes samples to outPath via a temp file and rename.
func WriteArchiveParquet(outPath string, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, toArchiveRows(samples),
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("board"),
		parquet.KeyValueMetadata("schema", "othello_sample_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteArchiveBatchParquet writes samples to a new timestamped file in outDir
// and returns its path.
func WriteArchiveBatchParquet(outDir string, samples []Sample) (string, error) {
	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	outPath := filepath.Join(outDir, name)
	if err := WriteArchiveParquet(outPath, samples); err != nil {
		return "", err
	}
	return outPath, nil
}

// ReadArchiveParquet reads an archive back in slot order.
func ReadArchiveParquet(path string) ([]Sample, error) {
	rows, err := parquet.ReadFile[ArchiveRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	out := make([]Sample, len(rows))
	for _, r := range rows {
		if int(r.Slot) < 0 || int(r.Slot) >= len(out) {
			return nil, fmt.Errorf("row slot %d out of range", r.Slot)
		}
		if len(r.Board) != BoardSize || len(r.Policy) != PolicySize {
			return nil, fmt.Errorf("row %d has board=%d policy=%d values", r.Slot, len(r.Board), len(r.Policy))
		}
		s := &out[r.Slot]
		copy(s.Board[:], r.Board)
		copy(s.Policy[:], r.Policy)
		s.Value = r.Value
	}
	return out, nil
}
