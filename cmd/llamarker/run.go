// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/llamarker/internal/consensus"
	"github.com/pdiddy/llamarker/internal/ledger"
	"github.com/pdiddy/llamarker/internal/logging"
	"github.com/pdiddy/llamarker/internal/normalize"
	"github.com/pdiddy/llamarker/internal/pipeline"
	"github.com/pdiddy/llamarker/internal/report"
	"github.com/pdiddy/llamarker/internal/tools"
	"github.com/pdiddy/llamarker/internal/vision"
	"github.com/pdiddy/llamarker/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Convert documents and enrich the Markdown with image content",
	Long: `Run processes a directory tree (--directory) or a single document (--file).
Documents are converted to PDF, parsed with marker into
<output>/ParsedFiles/<doc>/, and every embedded image is classified by the
vision model. Logos are dropped from the Markdown; content images are
transcribed, judged, translated and spliced in as "Extracted Info" sections.
The final Markdown lands in <output>/ParsedFiles/<doc>.md together with a
page-count plot and summary.

Output defaults to the parent directory of the input.`,
	RunE: runPipeline,
}

// runFlags maps run flags onto viper keys so that config file and
// LLAMARKER_* environment values apply when a flag is not given.
var runFlags = map[string]string{
	"directory":       "input.dir",
	"file":            "input.file",
	"output":          "output.dir",
	"temp-dir":        "output.temp_dir",
	"save-pdfs":       "output.save_pdfs",
	"ledger":          "output.ledger",
	"marker-path":     "parse.marker_path",
	"workers":         "parse.workers",
	"backend":         "vision.backend",
	"model":           "vision.model",
	"host":            "vision.host",
	"timeout":         "vision.timeout",
	"attempts":        "consensus.attempts",
	"backoff":         "consensus.backoff",
	"target-language": "consensus.target_language",
	"image-workers":   "consensus.image_workers",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-dir":         "log.dir",
}

func init() {
	f := runCmd.Flags()
	f.StringP("directory", "d", "", "root directory containing documents to process")
	f.StringP("file", "f", "", "single document to process")
	f.StringP("output", "o", "", "output root (default: parent of the input)")
	f.String("temp-dir", "", "parent directory for the run's temporary work directory")
	f.Bool("save-pdfs", false, "copy converted PDFs to <output>/PDFs")
	f.Bool("ledger", true, "record the run in <output>/llamarker.db")
	f.String("marker-path", "", "path to the marker binary (default: marker on PATH)")
	f.Int("workers", types.DefaultParseWorkers, "worker processes for marker")
	f.String("backend", string(types.DefaultBackend), "vision backend: ollama or openai")
	f.String("model", types.DefaultModel, "vision model name")
	f.String("host", "", "vision API base URL (default: "+types.DefaultOllamaHost+" for ollama)")
	f.Duration("timeout", types.DefaultRequestTimeout, "timeout for a single model request")
	f.Int("attempts", types.DefaultAttempts, "attempts per model call")
	f.Duration("backoff", types.DefaultBackoff, "delay between attempts (0 disables the delay)")
	f.String("target-language", types.DefaultTargetLanguage, "language extracted text is translated into")
	f.Int("image-workers", types.DefaultImageWorkers, "images processed concurrently within one document")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "console", "console log format: console or json")
	f.String("log-dir", "logs", "directory for per-run log files (empty disables)")

	runCmd.MarkFlagsMutuallyExclusive("directory", "file")

	for flag, key := range runFlags {
		if err := viper.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg := loadPipelineConfig()

	log, err := logging.New(cfg.Log, os.Stderr, time.Now())
	if err != nil {
		return err
	}
	defer log.Close()

	res, err := execute(cmd.Context(), cfg, log.Logger)
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("run failed")
		return err
	}
	printSummary(res)
	if log.FilePath != "" {
		fmt.Printf("Log file: %s\n", log.FilePath)
	}
	return nil
}

// execute wires the external tools and model client into an orchestrator
// and runs it. The input is checked before anything is created under the
// output root.
func execute(ctx context.Context, cfg types.PipelineConfig, log zerolog.Logger) (*types.PipelineResult, error) {
	if err := pipeline.CheckInput(cfg); err != nil {
		return nil, err
	}

	conv, err := tools.DetectOfficeConverter()
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", conv.Path()).Msg("using office converter")

	parser, err := tools.NewMarkerParser(cfg.Parse.MarkerPath, cfg.Parse.Workers)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", parser.Path()).Int("workers", cfg.Parse.Workers).Msg("using parse tool")

	client, err := vision.New(cfg.Vision)
	if err != nil {
		return nil, err
	}
	checkModel(ctx, cfg.Vision, log)

	engine := consensus.New(client, consensus.Config{
		Attempts:       cfg.Consensus.Attempts,
		Backoff:        cfg.Consensus.Backoff,
		TargetLanguage: cfg.Consensus.TargetLanguage,
		Workers:        cfg.Consensus.ImageWorkers,
	}, log)

	deps := pipeline.Deps{
		Converter: conv,
		Pages:     normalize.DefaultPageCounter(),
		Parser:    parser,
		Images:    engine,
		Log:       log,
	}

	if cfg.Output.Ledger {
		store, err := ledger.Open(filepath.Join(pipeline.OutputRoot(cfg), ledger.FileName))
		if err != nil {
			log.Warn().Err(err).Msg("run ledger unavailable")
		} else {
			defer store.Close()
			deps.Recorder = store
		}
	}

	o, err := pipeline.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}

// checkModel warns when the configured model is not installed on the Ollama
// host. The run continues; model errors surface per image.
func checkModel(ctx context.Context, cfg types.VisionConfig, log zerolog.Logger) {
	if cfg.Backend != types.BackendOllama {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	installed, err := vision.ListModels(ctx, &http.Client{}, cfg.Host)
	if err != nil {
		log.Warn().Err(err).Str("host", cfg.Host).Msg("could not list installed models")
		return
	}
	if !vision.HasModel(installed, cfg.Model) {
		log.Warn().Str("model", cfg.Model).Strs("vision_models", vision.FilterVision(installed)).Msg("model is not installed on the host")
	}
}

func printSummary(res *types.PipelineResult) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	bold.Println("Page counts:")
	for _, d := range res.Documents {
		fmt.Printf("  %s: %d pages\n", report.DisplayName(d.Path), d.Pages)
	}
	fmt.Printf("  total: %d pages in %d documents\n", res.TotalPages(), len(res.Documents))

	fmt.Println()
	green.Printf("Processed %d artifact(s)", res.Artifacts)
	fmt.Printf(" in %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
	if res.ArtifactsSkipped > 0 {
		yellow.Printf("Skipped %d directory(ies) without exactly one Markdown file\n", res.ArtifactsSkipped)
	}
	if res.ArtifactsFailed > 0 {
		yellow.Printf("%d artifact(s) failed\n", res.ArtifactsFailed)
	}
	if res.ImagesFailed > 0 {
		yellow.Printf("%d image(s) could not be processed\n", res.ImagesFailed)
	}
	if res.PlotPath != "" {
		fmt.Printf("Plot: %s\n", res.PlotPath)
	}
	for _, p := range res.SummaryPaths {
		fmt.Printf("Summary: %s\n", p)
	}
}
