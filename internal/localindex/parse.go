package localindex

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	nameColumn     = "food_name"
	caloriesColumn = "calories"
)

// Skip reasons reported in Stats.
const (
	SkipBadCalories = "bad_calories"
	SkipShortRow    = "short_row"
	SkipMalformed   = "malformed_row"
	SkipEmptyName   = "empty_name"
)

// Stats summarises a Parse run.
type Stats struct {
	Rows        int64
	Loaded      int64
	Skipped     int64
	SkipReasons map[string]int64
}

func (s *Stats) skip(reason string) {
	s.Skipped++
	s.SkipReasons[reason]++
}

// Parse reads a CSV dataset with a header row naming at least the
// food_name and calories columns. Rows whose calorie field is not a finite
// number are skipped and counted; later rows overwrite earlier ones with the
// same name. A missing column or an unreadable stream is fatal.
func Parse(r io.Reader) (map[string]float64, Stats, error) {
	stats := Stats{SkipReasons: make(map[string]int64)}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, errors.New("dataset is empty")
		}
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	nameIdx, kcalIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case nameColumn:
			nameIdx = i
		case caloriesColumn:
			kcalIdx = i
		}
	}
	if nameIdx < 0 || kcalIdx < 0 {
		return nil, stats, fmt.Errorf("header %q lacks %q or %q column", header, nameColumn, caloriesColumn)
	}

	entries := make(map[string]float64)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.skip(SkipMalformed)
				continue
			}
			return nil, stats, fmt.Errorf("read dataset: %w", err)
		}
		stats.Rows++

		if len(rec) <= nameIdx || len(rec) <= kcalIdx {
			stats.skip(SkipShortRow)
			continue
		}
		name := strings.TrimSpace(rec[nameIdx])
		if name == "" {
			stats.skip(SkipEmptyName)
			continue
		}
		kcal, err := strconv.ParseFloat(strings.TrimSpace(rec[kcalIdx]), 64)
		if err != nil || math.IsNaN(kcal) || math.IsInf(kcal, 0) {
			stats.skip(SkipBadCalories)
			continue
		}
		entries[name] = kcal
	}
	stats.Loaded = int64(len(entries))
	return entries, stats, nil
}
