// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences a full run: normalize every input document to
// PDF, parse the PDFs to Markdown with the external parse tool, enrich each
// parsed artifact with image information, and write the page-count report.
//
// Normalization and parsing are gates: an error there aborts the run. Past
// the gates, a failure in one artifact is logged and its siblings continue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/llamarker/internal/artifact"
	"github.com/pdiddy/llamarker/internal/consensus"
	"github.com/pdiddy/llamarker/internal/ledger"
	"github.com/pdiddy/llamarker/internal/normalize"
	"github.com/pdiddy/llamarker/internal/report"
	"github.com/pdiddy/llamarker/internal/rewrite"
	"github.com/pdiddy/llamarker/pkg/types"
)

// Output layout under the output root.
const (
	ParsedDir = "ParsedFiles"
	PDFDir    = "PDFs"
)

// Sentinel errors for fatal run conditions.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoDocuments  = errors.New("no documents could be normalized")
	ErrParse        = errors.New("parse tool failed")
)

// Parser runs the external parse tool over a directory of PDFs.
type Parser interface {
	Parse(ctx context.Context, inputDir, outputDir string) error
}

// ImageProcessor classifies and extracts the images of one artifact.
type ImageProcessor interface {
	ProcessArtifact(ctx context.Context, art types.ParsedArtifact) consensus.ArtifactResult
}

// Recorder persists run history. It is optional.
type Recorder interface {
	BeginRun(ctx context.Context, input, model string, startedAt time.Time) (string, error)
	RecordDocuments(ctx context.Context, runID string, docs []types.PageCount) error
	RecordImages(ctx context.Context, runID, artifact string, entries []ledger.ImageEntry) error
	FinishRun(ctx context.Context, runID string, res *types.PipelineResult, runErr error) error
}

// Deps are the collaborators a run needs.
type Deps struct {
	Converter normalize.Converter
	Pages     normalize.PageCounter
	Parser    Parser
	Images    ImageProcessor
	Recorder  Recorder
	Log       zerolog.Logger
}

// Orchestrator runs the pipeline for one configuration.
type Orchestrator struct {
	cfg  types.PipelineConfig
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// CheckInput verifies that exactly one input is configured and that it
// exists: a directory for Input.Dir, a file for Input.File. It touches
// nothing on disk, so callers run it before creating any output.
func CheckInput(cfg types.PipelineConfig) error {
	if (cfg.Input.Dir == "") == (cfg.Input.File == "") {
		return fmt.Errorf("%w: exactly one of input directory or input file is required", ErrInvalidInput)
	}
	path, wantDir := cfg.Input.File, false
	if cfg.Input.Dir != "" {
		path, wantDir = cfg.Input.Dir, true
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", normalize.ErrInputNotFound, path, err)
	}
	if info.IsDir() != wantDir {
		kind := "a file"
		if wantDir {
			kind = "a directory"
		}
		return fmt.Errorf("%w: %s is not %s", ErrInvalidInput, path, kind)
	}
	return nil
}

// New validates cfg and deps. The input must already exist.
func New(cfg types.PipelineConfig, deps Deps) (*Orchestrator, error) {
	cfg = cfg.WithDefaults()
	if err := CheckInput(cfg); err != nil {
		return nil, err
	}
	if deps.Converter == nil || deps.Parser == nil || deps.Images == nil {
		return nil, errors.New("pipeline: converter, parser and image processor are required")
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: deps.Log, now: time.Now}, nil
}

// OutputRoot is the configured output directory, or the parent of the input.
func OutputRoot(cfg types.PipelineConfig) string {
	if cfg.Output.Dir != "" {
		return cfg.Output.Dir
	}
	if cfg.Input.File != "" {
		return filepath.Dir(cfg.Input.File)
	}
	return filepath.Dir(filepath.Clean(cfg.Input.Dir))
}

func (o *Orchestrator) input() string {
	if o.cfg.Input.File != "" {
		return o.cfg.Input.File
	}
	return o.cfg.Input.Dir
}

// Run executes the pipeline. The temporary work directory is removed on
// every exit path.
func (o *Orchestrator) Run(ctx context.Context) (res *types.PipelineResult, err error) {
	res = &types.PipelineResult{StartedAt: o.now()}
	root := OutputRoot(o.cfg)

	runID := o.beginRun(ctx, res.StartedAt)
	defer func() {
		res.FinishedAt = o.now()
		o.finishRun(ctx, runID, res, err)
	}()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	work, err := os.MkdirTemp(o.cfg.Output.TempDir, "llamarker-*")
	if err != nil {
		return res, fmt.Errorf("creating work directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(work); rmErr != nil {
			o.log.Warn().Err(rmErr).Str("dir", work).Msg("could not remove work directory")
		}
	}()
	o.log.Debug().Str("dir", work).Msg("created work directory")

	// Stage 1: normalize.
	docs, err := o.normalize(ctx, filepath.Join(work, "pdfs"), root)
	if err != nil {
		return res, err
	}
	res.Documents = normalize.PageCounts(docs)
	if runID != "" {
		if err := o.deps.Recorder.RecordDocuments(ctx, runID, res.Documents); err != nil {
			o.log.Warn().Err(err).Msg("could not record documents")
		}
	}

	// Stage 2: parse.
	parsed := filepath.Join(root, ParsedDir)
	if err := o.parse(ctx, filepath.Join(work, "pdfs"), parsed); err != nil {
		return res, err
	}

	// Stage 3: enrich each artifact.
	if err := o.enrich(ctx, parsed, runID, res); err != nil {
		return res, err
	}

	// Stage 4: report.
	files, err := report.Write(parsed, res.Documents, o.now())
	if err != nil {
		o.log.Error().Err(err).Msg("error generating analysis plots")
	} else if files.Plot != "" {
		res.PlotPath = files.Plot
		res.SummaryPaths = files.Summaries()
		o.log.Info().Str("plot", files.Plot).Msg("page count plot saved")
	}

	o.log.Info().
		Int("documents", len(res.Documents)).
		Int("pages", res.TotalPages()).
		Int("artifacts", res.Artifacts).
		Int("artifacts_failed", res.ArtifactsFailed).
		Int("images_failed", res.ImagesFailed).
		Msg("pipeline completed")
	return res, nil
}

func (o *Orchestrator) normalize(ctx context.Context, pdfDir, root string) ([]types.Document, error) {
	ncfg := normalize.Config{
		InputDir:  o.cfg.Input.Dir,
		InputFile: o.cfg.Input.File,
		WorkDir:   pdfDir,
	}
	if o.cfg.Output.SavePDFs {
		ncfg.SaveDir = filepath.Join(root, PDFDir)
	}

	n, err := normalize.New(ncfg, o.deps.Converter, o.deps.Pages, o.log)
	if err != nil {
		return nil, err
	}
	docs, err := n.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("normalizing documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, o.input())
	}
	return docs, nil
}

// parse clears any previous parse output before running the parse tool.
func (o *Orchestrator) parse(ctx context.Context, pdfDir, parsed string) error {
	if err := os.RemoveAll(parsed); err != nil {
		return fmt.Errorf("cleaning %s: %w", parsed, err)
	}
	if err := os.MkdirAll(parsed, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", parsed, err)
	}

	o.log.Info().Str("input", pdfDir).Str("output", parsed).Msg("starting document parsing")
	start := o.now()
	if err := o.deps.Parser.Parse(ctx, pdfDir, parsed); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	o.log.Info().Dur("elapsed", o.now().Sub(start)).Msg("document parsing completed")
	return nil
}

func (o *Orchestrator) enrich(ctx context.Context, parsed, runID string, res *types.PipelineResult) error {
	arts, skipped, err := artifact.Scan(parsed, consensus.ExtractedImagesDir)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		o.log.Warn().Str("dir", s.Dir).Int("markdown_files", s.Markdowns).Msg("skipping directory: " + s.Reason)
	}
	res.ArtifactsSkipped = len(skipped)

	for _, art := range arts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(art.MarkdownPath); err != nil {
			o.log.Warn().Str("dir", art.Dir).Msg("skipping directory: removed while rewriting an enclosing document")
			res.ArtifactsSkipped++
			continue
		}
		res.Artifacts++

		failed, err := o.processArtifact(ctx, art, runID)
		res.ImagesFailed += failed
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			res.ArtifactsFailed++
			o.log.Error().Err(err).Str("dir", art.Dir).Msg("error processing directory")
		}
	}
	return nil
}

// processArtifact runs consensus and the rewrite for one artifact. It
// returns the number of images that hit a hard failure.
func (o *Orchestrator) processArtifact(ctx context.Context, art types.ParsedArtifact, runID string) (failed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s: %v", art.Dir, r)
		}
	}()

	o.log.Info().Str("dir", art.Dir).Int("images", len(art.Images)).Msg("processing directory")
	result := o.deps.Images.ProcessArtifact(ctx, art)

	if runID != "" {
		entries := make([]ledger.ImageEntry, 0, len(result.Records)+len(result.Failures))
		for _, r := range result.Records {
			entries = append(entries, ledger.ImageEntry{Record: r})
		}
		for _, f := range result.Failures {
			entries = append(entries, ledger.ImageEntry{Record: f.Record, Err: f.Err})
		}
		if err := o.deps.Recorder.RecordImages(context.WithoutCancel(ctx), runID, art.Dir, entries); err != nil {
			o.log.Warn().Err(err).Msg("could not record images")
		}
	}

	// An interrupted artifact keeps its directory and Markdown as parsed.
	if err := ctx.Err(); err != nil {
		return len(result.Failures), err
	}
	if _, err := rewrite.Apply(art, result.Records, o.log); err != nil {
		return len(result.Failures), err
	}
	return len(result.Failures), nil
}

func (o *Orchestrator) beginRun(ctx context.Context, at time.Time) string {
	if o.deps.Recorder == nil {
		return ""
	}
	id, err := o.deps.Recorder.BeginRun(ctx, o.input(), o.cfg.Vision.Model, at)
	if err != nil {
		o.log.Warn().Err(err).Msg("could not record run start")
		return ""
	}
	return id
}

func (o *Orchestrator) finishRun(ctx context.Context, runID string, res *types.PipelineResult, runErr error) {
	if runID == "" {
		return
	}
	if err := o.deps.Recorder.FinishRun(context.WithoutCancel(ctx), runID, res, runErr); err != nil {
		o.log.Warn().Err(err).Msg("could not record run result")
	}
}
