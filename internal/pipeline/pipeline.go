// Package pipeline orchestrates batch ingestion of photographed statement
// pages: preprocess each image, extract transaction candidates through the
// vision model, stamp provenance, and persist the normalized results. One bad
// file never aborts the batch; its failure is recorded and the batch
// continues.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-digitizer/internal/extract"
	"github.com/dvloznov/statement-digitizer/internal/logger"
	"github.com/dvloznov/statement-digitizer/internal/store"
)

// File is one uploaded image to ingest.
type File struct {
	Name string
	Data []byte
}

// Stage identifies where in the per-file flow a failure happened.
type Stage string

const (
	StagePreprocess Stage = "preprocess"
	StageExtract    Stage = "extract"
	StageParse      Stage = "parse"
	StageCanceled   Stage = "canceled"
)

// FileFailure records one file's failure with enough context to act on it
// without digging through logs. RawText carries the undecodable model output
// for parse failures.
type FileFailure struct {
	File    string
	Stage   Stage
	Err     error
	RawText string
}

// Preprocessor normalizes a raw photograph into extraction-ready bytes.
type Preprocessor interface {
	Process(imageBytes []byte) ([]byte, error)
}

// PreprocessorFunc adapts a plain function to the Preprocessor interface.
type PreprocessorFunc func(imageBytes []byte) ([]byte, error)

func (f PreprocessorFunc) Process(imageBytes []byte) ([]byte, error) {
	return f(imageBytes)
}

// Extractor sends a preprocessed image to the external model and returns
// transaction candidates.
type Extractor interface {
	Extract(ctx context.Context, imageBytes []byte) ([]extract.Candidate, error)
}

// Inserter persists normalized transactions.
type Inserter interface {
	InsertBatch(ctx context.Context, txs []store.Transaction) (int, error)
}

// Options configures a Pipeline.
type Options struct {
	// Workers bounds how many files are preprocessed and extracted
	// concurrently. Zero or negative means sequential.
	Workers int

	// ExtractTimeout is the per-file deadline for the external extraction
	// call. Zero means no deadline beyond the batch context.
	ExtractTimeout time.Duration

	// Progress, if set, is called after every file completes (success or
	// failure) with the number of files done and the batch total.
	Progress func(done, total int)
}

// Pipeline runs the ingestion flow for batches of image files.
type Pipeline struct {
	pre  Preprocessor
	ext  Extractor
	opts Options
}

// New creates a pipeline over the given preprocessor and extractor.
func New(pre Preprocessor, ext Extractor, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{pre: pre, ext: ext, opts: opts}
}

type fileResult struct {
	candidates []extract.Candidate
	failure    *FileFailure
}

// Ingest processes the files and returns accepted candidates (stamped with
// their source file, in input order) alongside per-file failures. Files are
// fanned out over a bounded worker pool; once ctx is canceled no new file
// starts, but files already dispatched run to completion or their own
// timeout.
func (p *Pipeline) Ingest(ctx context.Context, files []File) ([]extract.Candidate, []FileFailure) {
	total := len(files)
	results := make([]fileResult, total)

	indexes := make(chan int)
	var done int
	var progressMu sync.Mutex

	advance := func() {
		if p.opts.Progress == nil {
			progressMu.Lock()
			done++
			progressMu.Unlock()
			return
		}
		progressMu.Lock()
		done++
		d := done
		progressMu.Unlock()
		p.opts.Progress(d, total)
	}

	var wg sync.WaitGroup
	workers := min(p.opts.Workers, total)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.processFile(ctx, files[i])
				advance()
			}
		}()
	}

dispatch:
	for i := 0; i < total; i++ {
		select {
		case indexes <- i:
		case <-ctx.Done():
			// Stop launching new files; mark the rest as canceled.
			for j := i; j < total; j++ {
				results[j] = fileResult{failure: &FileFailure{
					File:  files[j].Name,
					Stage: StageCanceled,
					Err:   ctx.Err(),
				}}
				advance()
			}
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	var accepted []extract.Candidate
	var failures []FileFailure
	for _, r := range results {
		if r.failure != nil {
			failures = append(failures, *r.failure)
			continue
		}
		accepted = append(accepted, r.candidates...)
	}
	return accepted, failures
}

// processFile runs preprocess and extract for one file. Each stage's failure
// is classified so the caller can report it usefully.
func (p *Pipeline) processFile(ctx context.Context, f File) fileResult {
	log := logger.FromContext(ctx).With().
		Str("job_id", uuid.NewString()).
		Str("file", f.Name).
		Logger()

	processed, err := p.pre.Process(f.Data)
	if err != nil {
		log.Warn().Err(err).Msg("Preprocessing failed")
		return fileResult{failure: &FileFailure{File: f.Name, Stage: StagePreprocess, Err: err}}
	}

	extractCtx := ctx
	if p.opts.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, p.opts.ExtractTimeout)
		defer cancel()
	}

	candidates, err := p.ext.Extract(extractCtx, processed)
	if err != nil {
		var parseErr *extract.ParseError
		if errors.As(err, &parseErr) {
			log.Warn().Err(err).Msg("Model output could not be decoded")
			return fileResult{failure: &FileFailure{File: f.Name, Stage: StageParse, Err: err, RawText: parseErr.RawText}}
		}
		log.Warn().Err(err).Msg("Extraction failed")
		return fileResult{failure: &FileFailure{File: f.Name, Stage: StageExtract, Err: err}}
	}

	for i := range candidates {
		candidates[i].SourceFile = f.Name
	}

	log.Info().Int("candidates", len(candidates)).Msg("File extracted")
	return fileResult{candidates: candidates}
}

// Summary reports the outcome of one end-to-end ingestion run.
type Summary struct {
	Accepted int
	Inserted int
	Skipped  int
	Failures []FileFailure
}

// Run executes the full flow: ingest, normalize, persist. Candidates whose
// natural key is already stored are counted as skipped.
func (p *Pipeline) Run(ctx context.Context, files []File, ins Inserter) (*Summary, error) {
	accepted, failures := p.Ingest(ctx, files)

	txs := make([]store.Transaction, len(accepted))
	for i, c := range accepted {
		txs[i] = Normalize(c)
	}

	inserted, err := ins.InsertBatch(ctx, txs)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Accepted: len(accepted),
		Inserted: inserted,
		Skipped:  len(accepted) - inserted,
		Failures: failures,
	}, nil
}
