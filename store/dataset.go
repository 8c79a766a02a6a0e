// Package store holds collected training samples and writes them to disk.
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brensch/othello0/executor/convert"
	"github.com/brensch/othello0/game"
)

const (
	BoardSize  = convert.FloatSize
	PolicySize = game.PolicySize
)

// File names written by Dump, one record per sample, no header.
const (
	BoardFile  = "board.bin"
	PolicyFile = "policy.bin"
	ValueFile  = "value.bin"
)

// Sample is a single supervised training sample.
//
// Board is the encoded position before the move, Policy the normalized
// visit distribution on the canonical move index (zeros when the agent
// reported none) and Value the game outcome for the player to move.
type Sample struct {
	Board  [BoardSize]float32
	Policy [PolicySize]float32
	Value  float32
}

// Dataset is a fixed-capacity ring buffer of samples. Once full, each Add
// overwrites the oldest resident sample. It is safe for concurrent use.
type Dataset struct {
	mu       sync.Mutex
	capacity int
	samples  []Sample
	next     int
	added    int64
}

func NewDataset(capacity int) (*Dataset, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("dataset capacity must be positive, got %d", capacity)
	}
	initial := capacity
	if initial > 1<<16 {
		initial = 1 << 16
	}
	return &Dataset{capacity: capacity, samples: make([]Sample, 0, initial)}, nil
}

func (d *Dataset) add(s Sample) {
	if d.next == len(d.samples) {
		d.samples = append(d.samples, s)
	} else {
		d.samples[d.next] = s
	}
	d.next = (d.next + 1) % d.capacity
	d.added++
}

// Add writes s into the next slot.
func (d *Dataset) Add(s Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(s)
}

// AddGame appends every sample of one game under a single lock, so a game's
// samples are contiguous.
func (d *Dataset) AddGame(samples []Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range samples {
		d.add(s)
	}
}

// Len is the number of resident samples.
func (d *Dataset) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}

func (d *Dataset) Cap() int { return d.capacity }

// Added is the number of samples ever added, overwritten ones included.
func (d *Dataset) Added() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.added
}

// Samples returns a copy of the resident samples in slot order.
func (d *Dataset) Samples() []Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Sample, len(d.samples))
	copy(out, d.samples)
	return out
}

// Dump writes board.bin, policy.bin and value.bin into dir as little-endian
// float32 records in slot order. Each file is written to a temp name and
// renamed so readers never observe a partial file.
func (d *Dataset) Dump(dir string) error {
	return WriteDump(dir, d.Samples())
}

// WriteDump writes samples in the Dump layout. Callers that also archive the
// samples can take one Samples snapshot and hand it to both writers.
func WriteDump(dir string, samples []Sample) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name   string
		record func(b []byte, s *Sample) []byte
	}{
		{BoardFile, func(b []byte, s *Sample) []byte { return convert.AppendFloat32s(b, s.Board[:]) }},
		{PolicyFile, func(b []byte, s *Sample) []byte { return convert.AppendFloat32s(b, s.Policy[:]) }},
		{ValueFile, func(b []byte, s *Sample) []byte { return convert.AppendFloat32s(b, []float32{s.Value}) }},
	}
	for _, f := range files {
		if err := writeAtomic(filepath.Join(dir, f.name), samples, f.record); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(outPath string, samples []Sample, record func([]byte, *Sample) []byte) error {
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmpPath, err)
	}
	w := bufio.NewWriterSize(f, 1<<20)
	buf := make([]byte, 0, BoardSize*convert.BytesPerFloat)
	for i := range samples {
		buf = record(buf[:0], &samples[i])
		if _, err := w.Write(buf); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flush %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", outPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", outPath, err)
	}
	return nil
}

// Load reads a dump written by Dump. The sample count is derived from the
// value file length.
func Load(dir string) ([]Sample, error) {
	values, err := readFloats(filepath.Join(dir, ValueFile))
	if err != nil {
		return nil, err
	}
	boards, err := readFloats(filepath.Join(dir, BoardFile))
	if err != nil {
		return nil, err
	}
	policies, err := readFloats(filepath.Join(dir, PolicyFile))
	if err != nil {
		return nil, err
	}
	n := len(values)
	if len(boards) != n*BoardSize || len(policies) != n*PolicySize {
		return nil, fmt.Errorf("dump in %s is inconsistent: %d values, %d board floats, %d policy floats", dir, n, len(boards), len(policies))
	}

	out := make([]Sample, n)
	for i := range out {
		copy(out[i].Board[:], boards[i*BoardSize:])
		copy(out[i].Policy[:], policies[i*PolicySize:])
		out[i].Value = values[i]
	}
	return out, nil
}

func readFloats(path string) ([]float32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(b)%convert.BytesPerFloat != 0 {
		return nil, fmt.Errorf("%s: length %d is not a multiple of %d", path, len(b), convert.BytesPerFloat)
	}
	return convert.Float32sFromBytes(b), nil
}
