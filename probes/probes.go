// Package probes loads and generates obstacle probe sets: point samples of
// static geometry that the simulation hashes into its voxel grid.
package probes

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/systems"
)

// DefaultLayer is assigned to probes without an explicit layer.
const DefaultLayer = systems.DefaultLayer

// Set is an ordered list of probe positions with one layer mask each.
type Set struct {
	Positions []r3.Vec
	Layers    []uint32
}

// Len returns the number of probes.
func (s Set) Len() int { return len(s.Positions) }

// Add appends one probe.
func (s *Set) Add(p r3.Vec, layer uint32) {
	if layer == 0 {
		layer = DefaultLayer
	}
	s.Positions = append(s.Positions, p)
	s.Layers = append(s.Layers, layer)
}

// Append adds every probe of other.
func (s *Set) Append(other Set) {
	for i, p := range other.Positions {
		layer := DefaultLayer
		if i < len(other.Layers) {
			layer = other.Layers[i]
		}
		s.Add(p, layer)
	}
}

// probeRow is the CSV form of one probe.
type probeRow struct {
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
	Z     float64 `csv:"z"`
	Layer uint32  `csv:"layer"`
}

// Read parses CSV rows with x,y,z and an optional layer column.
func Read(r io.Reader) (Set, error) {
	var rows []probeRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return Set{}, fmt.Errorf("parsing probe csv: %w", err)
	}
	var s Set
	for _, row := range rows {
		s.Add(r3.Vec{X: row.X, Y: row.Y, Z: row.Z}, row.Layer)
	}
	return s, nil
}

// Write encodes the set as CSV with a header row.
func Write(w io.Writer, s Set) error {
	rows := make([]probeRow, len(s.Positions))
	for i, p := range s.Positions {
		layer := DefaultLayer
		if i < len(s.Layers) {
			layer = s.Layers[i]
		}
		rows[i] = probeRow{X: p.X, Y: p.Y, Z: p.Z, Layer: layer}
	}
	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return fmt.Errorf("encoding probe csv: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// LoadFile reads a probe file. Files ending in .zst are zstd-compressed CSV.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("reading probe file: %w", err)
	}
	var r io.Reader = bytes.NewReader(data)
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return Set{}, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	s, err := Read(r)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SaveFile writes a probe file, compressing when the name ends in .zst.
func SaveFile(path string, s Set) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating probe file: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		if err := Write(f, s); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := Write(enc, s); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flushing zstd stream: %w", err)
	}
	return f.Close()
}

// FromConfig assembles the configured probe file and procedural shapes.
func FromConfig(cfg config.ObstacleConfig) (Set, error) {
	var s Set
	if cfg.File != "" {
		loaded, err := LoadFile(cfg.File)
		if err != nil {
			return Set{}, err
		}
		s.Append(loaded)
	}
	for i, shape := range cfg.Shapes {
		gen, err := Generate(shape, cfg.Spacing)
		if err != nil {
			return Set{}, fmt.Errorf("shape %d: %w", i, err)
		}
		s.Append(gen)
	}
	return s, nil
}
