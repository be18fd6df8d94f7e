// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package consensus classifies embedded images and, for images that carry
// content, extracts their information with three independent model samples
// and a judging pass that picks the best one before translating it.
//
// Each model call is retried a bounded number of times with a fixed delay.
// Exhausted retries are handled per step: classification falls back to
// "logo", a failed extraction slot records a failure message, while judging
// and translation fail the image.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/llamarker/internal/retry"
	"github.com/pdiddy/llamarker/internal/vision"
	"github.com/pdiddy/llamarker/pkg/types"
)

// Samples is the number of independent extractions drawn per content image.
const Samples = 3

// ExtractedImagesDir is the default relocation directory name, created as a
// sibling of the artifact directory.
const ExtractedImagesDir = "ExtractedImages"

// Hard failures for a single image.
var (
	ErrJudgeExhausted     = errors.New("judge failed after all attempts")
	ErrTranslateExhausted = errors.New("translation failed after all attempts")
)

// Config tunes the engine.
type Config struct {
	// Attempts bounds every model call (default 3).
	Attempts int

	// Backoff is the fixed delay between attempts.
	Backoff time.Duration

	// TargetLanguage is the translation target (default German).
	TargetLanguage string

	// Workers bounds concurrent images within one artifact (default 1).
	Workers int

	// ImagesDir overrides the relocation directory. Empty means
	// <artifact parent>/ExtractedImages.
	ImagesDir string
}

// Engine runs the per-image state machine against a vision client.
type Engine struct {
	client vision.Client
	cfg    Config
	policy retry.Policy
	log    zerolog.Logger

	now   func() time.Time
	newID func() string
}

// New returns an engine using client for every model call.
func New(client vision.Client, cfg Config, log zerolog.Logger) *Engine {
	if cfg.Attempts <= 0 {
		cfg.Attempts = types.DefaultAttempts
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = types.DefaultTargetLanguage
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		client: client,
		cfg:    cfg,
		policy: retry.Policy{Attempts: cfg.Attempts, Delay: cfg.Backoff},
		log:    log,
		now:    time.Now,
		newID:  shortID,
	}
}

// ImageFailure is an image whose processing hit a hard failure.
type ImageFailure struct {
	Record types.ImageRecord
	Err    error
}

// ArtifactResult holds the outcome for every image of one artifact, in the
// artifact's image order.
type ArtifactResult struct {
	Records  []types.ImageRecord
	Failures []ImageFailure
}

// ProcessArtifact runs ProcessImage over every image of art. A hard failure
// on one image is recorded and logged; the remaining images still run.
// Up to Config.Workers images are processed at a time.
func (e *Engine) ProcessArtifact(ctx context.Context, art types.ParsedArtifact) ArtifactResult {
	type outcome struct {
		rec types.ImageRecord
		err error
	}
	outcomes := make([]outcome, len(art.Images))

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for i, img := range art.Images {
		g.Go(func() error {
			rec, err := e.ProcessImage(ctx, img)
			outcomes[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var res ArtifactResult
	for i, o := range outcomes {
		if o.err != nil {
			e.log.Error().Err(o.err).Str("image", art.Images[i]).Msg("image processing failed")
			res.Failures = append(res.Failures, ImageFailure{Record: o.rec, Err: o.err})
			continue
		}
		res.Records = append(res.Records, o.rec)
	}

	e.logSummary(art, res)
	return res
}

// ProcessImage classifies the image at path. Logos are left in place.
// Content images are relocated, extracted Samples times, judged and translated.
// On error the returned record reflects how far processing got.
func (e *Engine) ProcessImage(ctx context.Context, path string) (types.ImageRecord, error) {
	rec := types.ImageRecord{
		Image:        filepath.Base(path),
		OriginalPath: path,
	}
	log := e.log.With().Str("image", rec.Image).Logger()
	log.Info().Msg("processing image")

	isLogo, err := e.Classify(ctx, path)
	if err != nil {
		return rec, fmt.Errorf("classifying %s: %w", rec.Image, err)
	}
	if isLogo {
		log.Info().Msg("classified as logo, no extraction needed")
		rec.IsLogo = true
		rec.ExtractedInfo = types.NotAvailable
		return rec, nil
	}

	moved, err := e.relocate(path)
	if err != nil {
		return rec, fmt.Errorf("relocating %s: %w", rec.Image, err)
	}
	rec.RelocatedPath = moved

	candidates := e.Extract(ctx, moved)

	best, err := e.Judge(ctx, moved, candidates)
	if err != nil {
		return rec, fmt.Errorf("judging %s: %w", rec.Image, err)
	}

	translated, err := e.Translate(ctx, moved, candidates[best-1])
	if err != nil {
		return rec, fmt.Errorf("translating %s: %w", rec.Image, err)
	}

	rec.ContainsInfo = true
	rec.ExtractedInfo = translated
	return rec, nil
}

// Classify reports whether the image is a logo. Any failure to obtain a
// valid verdict within the retry budget counts as a logo, so ambiguous
// images are skipped rather than mis-extracted. The only error returned is
// ctx's, once it is done.
func (e *Engine) Classify(ctx context.Context, path string) (bool, error) {
	isLogo, err := retry.DoNotify(ctx, e.policy, func(ctx context.Context, _ int) (bool, error) {
		raw, err := e.client.Query(ctx, classifyPrompt, path)
		if err != nil {
			return false, err
		}
		return ParseLogoVerdict(raw)
	}, e.attemptLogger(StepClassify, path))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		e.log.Warn().Err(err).Str("image", filepath.Base(path)).Msg("classification failed, treating image as logo")
		return true, nil
	}
	return isLogo, nil
}

// Extract draws Samples independent extractions. A slot whose attempts are
// all exhausted holds a failure message instead of aborting the others.
func (e *Engine) Extract(ctx context.Context, path string) []string {
	out := make([]string, Samples)
	for i := range out {
		text, err := retry.DoNotify(ctx, e.policy, func(ctx context.Context, _ int) (string, error) {
			raw, err := e.client.Query(ctx, extractPrompt, path)
			if err != nil {
				return "", err
			}
			return ParseExtraction(raw)
		}, e.attemptLogger(fmt.Sprintf("%s %d", StepExtract, i+1), path))
		if err != nil {
			out[i] = fmt.Sprintf("Failed to generate Response %d after %d attempts: %v", i+1, e.policy.Attempts, err)
			e.log.Error().Str("image", filepath.Base(path)).Msg(out[i])
			continue
		}
		out[i] = text
	}
	return out
}

// Judge asks the model which candidate is best and returns its 1-based index.
func (e *Engine) Judge(ctx context.Context, path string, candidates []string) (int, error) {
	prompt, err := renderJudgePrompt(candidates)
	if err != nil {
		return 0, fmt.Errorf("rendering judge prompt: %w", err)
	}

	choice, err := retry.DoNotify(ctx, e.policy, func(ctx context.Context, _ int) (int, error) {
		raw, err := e.client.Query(ctx, prompt, path)
		if err != nil {
			return 0, err
		}
		return ParseJudgeVerdict(raw, len(candidates))
	}, e.attemptLogger(StepJudge, path))
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrJudgeExhausted, err)
	}
	e.log.Debug().Str("image", filepath.Base(path)).Int("choice", choice).Msg("judge selected response")
	return choice, nil
}

// Translate renders text in the configured target language.
func (e *Engine) Translate(ctx context.Context, path, text string) (string, error) {
	prompt, err := renderTranslatePrompt(e.cfg.TargetLanguage, text)
	if err != nil {
		return "", fmt.Errorf("rendering translate prompt: %w", err)
	}

	out, err := retry.DoNotify(ctx, e.policy, func(ctx context.Context, _ int) (string, error) {
		raw, err := e.client.Query(ctx, prompt, path)
		if err != nil {
			return "", err
		}
		return ParseTranslation(raw)
	}, e.attemptLogger(StepTranslate, path))
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrTranslateExhausted, err)
	}
	return out, nil
}

func (e *Engine) attemptLogger(step, path string) retry.Observer {
	return func(attempt int, err error) {
		e.log.Warn().
			Err(err).
			Str("step", step).
			Str("image", filepath.Base(path)).
			Int("attempt", attempt).
			Int("max_attempts", e.policy.Attempts).
			Msg("model call failed")
	}
}

func (e *Engine) logSummary(art types.ParsedArtifact, res ArtifactResult) {
	e.log.Info().
		Str("artifact", art.Dir).
		Int("images", len(art.Images)).
		Int("failed", len(res.Failures)).
		Msg("summary of image results")
	for _, r := range res.Records {
		e.log.Info().
			Str("image", r.Image).
			Str("path", r.Path()).
			Bool("is_logo", r.IsLogo).
			Bool("contains_info", r.ContainsInfo).
			Str("extracted_info", r.ExtractedInfo).
			Msg("image result")
	}
}
