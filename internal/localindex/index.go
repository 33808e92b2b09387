// Package localindex holds the bundled calorie dataset as an immutable,
// raw-label-keyed index.
package localindex

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/korjavin/platecal/internal/store"
)

// Index maps exact raw food names to calories. It is never modified after
// construction and is safe for concurrent use.
type Index struct {
	entries map[string]float64
}

// New builds an Index from a copy of entries.
func New(entries map[string]float64) *Index {
	return &Index{entries: maps.Clone(entries)}
}

// Empty returns an Index with no entries.
func Empty() *Index {
	return &Index{entries: map[string]float64{}}
}

// Lookup matches rawLabel exactly. No normalization is applied.
func (ix *Index) Lookup(rawLabel string) (float64, bool) {
	kcal, ok := ix.entries[rawLabel]
	return kcal, ok
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Names returns all raw names in sorted order.
func (ix *Index) Names() []string {
	return slices.Sorted(maps.Keys(ix.entries))
}

// Load reads the CSV dataset at path. It never fails: when the file cannot
// be read as a whole the returned Index is empty and the pipeline runs
// remote-only.
func Load(path string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	entries, stats, err := loadCSV(path)
	if err != nil {
		logger.Warn("local calorie dataset unavailable, using remote lookups only", "path", path, "error", err)
		return Empty()
	}
	logger.Info("local calorie dataset loaded",
		"path", path,
		"rows", stats.Rows,
		"entries", stats.Loaded,
		"skipped", stats.Skipped,
	)
	for reason, n := range stats.SkipReasons {
		logger.Debug("dataset rows skipped", "reason", reason, "count", n)
	}
	return &Index{entries: entries}
}

func loadCSV(path string) (map[string]float64, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()
	return Parse(f)
}

// LoadSnapshot reads every entry of a data directory written by the
// importer. Like Load it degrades to an empty Index on failure.
func LoadSnapshot(dataDir string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := readSnapshot(dataDir)
	if err != nil {
		logger.Warn("calorie snapshot unavailable, using remote lookups only", "data_dir", dataDir, "error", err)
		return Empty()
	}
	logger.Info("calorie snapshot loaded", "data_dir", dataDir, "entries", len(entries))
	return &Index{entries: entries}
}

func readSnapshot(dataDir string) (map[string]float64, error) {
	s, err := store.OpenReadOnly(dataDir)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	entries := make(map[string]float64)
	err = s.Each(func(name string, kcal float64) error {
		entries[name] = kcal
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return entries, nil
}
