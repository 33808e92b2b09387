package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/korjavin/platecal/internal/importer"
)

func main() {
	csvPath := flag.String("csv", "", "path to calorie CSV, optionally gzip-compressed (required)")
	out := flag.String("out", "", "output data directory (required)")
	verbose := flag.Bool("v", false, "log parse and flush progress")
	flag.Parse()

	if *csvPath == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: platecal-importer -csv <path> -out <dir> [-v]")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting import", "csv", *csvPath, "out", *out)

	m, err := importer.Import(*csvPath, *out, *verbose)
	if err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}

	slog.Info("import complete",
		"entries", m.EntryCount,
		"skipped", m.SkippedCount,
		"build_time", m.BuildTime,
	)
	fmt.Printf("Output: %s\n  Entries stored : %d\n  Skipped        : %d\n",
		*out, m.EntryCount, m.SkippedCount)

	if len(m.SkipReasons) > 0 {
		fmt.Println("  Skip reasons:")
		keys := make([]string, 0, len(m.SkipReasons))
		for k := range m.SkipReasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %-20s: %d\n", k, m.SkipReasons[k])
		}
	}
}
