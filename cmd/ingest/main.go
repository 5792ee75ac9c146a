package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/statement-digitizer/internal/config"
	"github.com/dvloznov/statement-digitizer/internal/extract"
	"github.com/dvloznov/statement-digitizer/internal/logger"
	"github.com/dvloznov/statement-digitizer/internal/pipeline"
	"github.com/dvloznov/statement-digitizer/internal/preprocess"
	"github.com/dvloznov/statement-digitizer/internal/store"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

func main() {
	log := logger.New()

	dir := flag.String("dir", "", "Directory of statement images to ingest")
	dbPath := flag.String("db", "", "SQLite database path (overrides STATEMENT_DB_PATH)")
	flag.Parse()

	cfg := config.Load(log)
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	files, err := collectFiles(*dir, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read input files")
	}
	if len(files) == 0 {
		log.Fatal().Msg("No input images; pass -dir or image paths")
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Could not open database")
	}
	defer s.Close()

	// Interrupt stops new files from starting; in-flight extractions finish
	// or hit their own timeout.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	p := pipeline.New(
		pipeline.PreprocessorFunc(preprocess.Process),
		extract.NewClient(cfg.Model, cfg.APIVersion),
		pipeline.Options{
			Workers:        cfg.Workers,
			ExtractTimeout: cfg.ExtractTimeout,
			Progress: func(done, total int) {
				log.Info().Int("done", done).Int("total", total).Msg("Progress")
			},
		},
	)

	log.Info().Int("files", len(files)).Str("model", cfg.Model).Msg("Starting ingestion")

	summary, err := p.Run(ctx, files, s)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Done: %d candidates, %d inserted, %d skipped as duplicates, %d files failed.\n",
		summary.Accepted, summary.Inserted, summary.Skipped, len(summary.Failures))

	for _, f := range summary.Failures {
		fmt.Fprintf(os.Stderr, "FAILED %s at %s: %v\n", f.File, f.Stage, f.Err)
		if f.RawText != "" {
			fmt.Fprintf(os.Stderr, "  model output was:\n%s\n", indent(f.RawText))
		}
	}
	if len(summary.Failures) > 0 {
		os.Exit(1)
	}
}

// collectFiles reads the given image paths, plus every image in dir when set.
// Paths are sorted so batches ingest in a stable order.
func collectFiles(dir string, paths []string) ([]pipeline.File, error) {
	names := append([]string(nil), paths...)

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)

	files := make([]pipeline.File, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files = append(files, pipeline.File{Name: filepath.Base(name), Data: data})
	}
	return files, nil
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n    ")
}
