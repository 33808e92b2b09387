package importer

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/korjavin/platecal/internal/localindex"
	"github.com/korjavin/platecal/internal/store"
)

const (
	maxNameLen = 512
	batchSize  = 5_000
)

// SkipNameTooLong counts entries whose name exceeds the key length limit.
const SkipNameTooLong = "name_too_long"

// Import reads a calorie CSV (gzip-compressed when the path ends in .gz),
// writes every valid entry into a Pebble store inside outputDir, and returns
// the resulting manifest. Row-level problems are counted in the manifest;
// an unreadable file or missing header column aborts the import.
func Import(csvPath, outputDir string, verbose bool) (*store.Manifest, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(csvPath, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	startTime := time.Now()
	entries, stats, err := localindex.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if verbose {
		slog.Info("csv parsed",
			"rows", stats.Rows,
			"entries", len(entries),
			"skipped", stats.Skipped,
			"elapsed", time.Since(startTime).Round(time.Millisecond),
		)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	s, err := store.Create(outputDir)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	defer s.Close()

	m := &store.Manifest{
		DatasetSource: csvPath,
		SkippedCount:  stats.Skipped,
		SchemaVersion: store.SchemaVersion(),
		SkipReasons:   stats.SkipReasons,
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)

	batch := s.NewWriteBatch()
	for _, name := range names {
		if len(name) > maxNameLen {
			m.SkippedCount++
			m.SkipReasons[SkipNameTooLong]++
			continue
		}
		batch.Put(name, entries[name])
		m.EntryCount++

		if batch.Len() >= batchSize {
			if err := batch.Flush(); err != nil {
				batch.Close()
				return nil, fmt.Errorf("batch flush: %w", err)
			}
			if verbose {
				slog.Info("import progress", "entries", m.EntryCount, "total", len(names))
			}
		}
	}
	if err := batch.Close(); err != nil {
		return nil, fmt.Errorf("final batch flush: %w", err)
	}

	m.BuildTime = time.Now().UTC()
	if err := store.WriteManifest(outputDir, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}
