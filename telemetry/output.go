package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/flock/config"
)

// CSVTable is an append-only CSV file created on its first row. Rows are
// slices of gocsv-tagged structs.
type CSVTable struct {
	path   string
	f      *os.File
	header bool
}

// NewCSVTable returns a table that will be written to path.
func NewCSVTable(path string) *CSVTable {
	return &CSVTable{path: path}
}

// Append writes rows, emitting the header only with the first batch.
func (t *CSVTable) Append(rows any) error {
	if t.f == nil {
		f, err := os.Create(t.path)
		if err != nil {
			return err
		}
		t.f = f
	}
	if t.header {
		return gocsv.MarshalWithoutHeaders(rows, t.f)
	}
	if err := gocsv.Marshal(rows, t.f); err != nil {
		return err
	}
	t.header = true
	return nil
}

// Close closes the file if it was created.
func (t *CSVTable) Close() error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// OutputManager writes a run's window stats, step timings and bookmarks as
// CSV tables next to a snapshot of its config. A nil manager is valid and
// discards everything.
type OutputManager struct {
	dir       string
	telemetry *CSVTable
	perf      *CSVTable
	bookmarks *CSVTable
}

// NewOutputManager creates the output directory. It returns nil when dir is
// empty (output disabled). Table files appear with their first row.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &OutputManager{
		dir:       dir,
		telemetry: NewCSVTable(filepath.Join(dir, "telemetry.csv")),
		perf:      NewCSVTable(filepath.Join(dir, "perf.csv")),
		bookmarks: NewCSVTable(filepath.Join(dir, "bookmarks.csv")),
	}, nil
}

// WriteConfig saves the resolved configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry appends a window to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.Append([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf appends the step timings of the window ending at windowEnd to perf.csv.
func (om *OutputManager) WritePerf(stats StepStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := om.perf.Append([]StepStatsCSV{stats.CSVRow(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark appends a bookmark to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.Append([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Close closes every table that was opened.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return errors.Join(om.telemetry.Close(), om.perf.Close(), om.bookmarks.Close())
}
