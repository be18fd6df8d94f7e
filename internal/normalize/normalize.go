// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns a tree of office documents into a flat directory
// of PDFs and counts their pages.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/llamarker/pkg/types"
)

// ErrInputNotFound is returned at construction when the input root is missing.
var ErrInputNotFound = errors.New("input not found")

// officeFormats are the extensions handed to the office converter.
var officeFormats = map[string]bool{
	".txt":  true,
	".docx": true,
	".doc":  true,
	".rtf":  true,
	".odt":  true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".ods":  true,
	".ppt":  true,
	".pptx": true,
	".odp":  true,
}

// Supported reports whether path has an extension the normalizer handles.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || officeFormats[ext]
}

// Converter turns one document into a PDF inside outDir.
type Converter interface {
	Convert(ctx context.Context, input, outDir string) (string, error)
}

// PageCounter counts the pages of a PDF.
type PageCounter interface {
	CountPages(path string) (int, error)
}

// Config describes one normalization pass.
type Config struct {
	// InputDir is walked recursively. Ignored when InputFile is set.
	InputDir string

	// InputFile is a single document to normalize.
	InputFile string

	// WorkDir receives every PDF. It is the parse tool's input.
	WorkDir string

	// SaveDir, when set, receives a copy of every converted PDF.
	SaveDir string
}

// Normalizer converts documents to PDF and records their page counts.
type Normalizer struct {
	cfg     Config
	conv    Converter
	pages   PageCounter
	log     zerolog.Logger
	results []types.Document
}

// New validates the input and collaborators. A missing input root or a
// missing converter is fatal here so that a run never starts half-equipped.
func New(cfg Config, conv Converter, pages PageCounter, log zerolog.Logger) (*Normalizer, error) {
	input := cfg.InputDir
	if cfg.InputFile != "" {
		input = cfg.InputFile
	}
	if input == "" {
		return nil, fmt.Errorf("%w: no input directory or file given", ErrInputNotFound)
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputNotFound, input, err)
	}
	if conv == nil {
		return nil, errors.New("normalize: converter is required")
	}
	if cfg.WorkDir == "" {
		return nil, errors.New("normalize: work directory is required")
	}
	if pages == nil {
		pages = DefaultPageCounter()
	}
	return &Normalizer{cfg: cfg, conv: conv, pages: pages, log: log}, nil
}

// Run normalizes every supported document in traversal order. A failure on
// one document is logged and that document is left out of the results; Run
// only returns an error when the work directory is unusable, the input walk
// fails, or ctx is cancelled.
func (n *Normalizer) Run(ctx context.Context) ([]types.Document, error) {
	if err := os.MkdirAll(n.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	files, err := n.collect()
	if err != nil {
		return nil, err
	}

	n.log.Info().Int("files", len(files)).Msg("starting document normalization")

	seen := make(map[string]string)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return n.results, err
		}

		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)) + ".pdf"
		if prev, ok := seen[name]; ok {
			n.log.Warn().Str("file", f).Str("conflicts_with", prev).Msg("skipping document with duplicate name")
			continue
		}

		doc, err := n.normalize(ctx, f)
		if err != nil {
			n.log.Error().Err(err).Str("file", f).Msg("failed to normalize document")
			continue
		}
		seen[name] = f
		n.results = append(n.results, doc)
		n.log.Info().Str("file", f).Str("pdf", doc.PDFPath).Int("pages", doc.Pages).Msg("normalized")
	}

	n.log.Info().Int("documents", len(n.results)).Msg("normalization completed")
	return n.results, nil
}

// Results returns the documents normalized so far.
func (n *Normalizer) Results() []types.Document {
	return n.results
}

// PageCounts projects documents onto (source path, pages) pairs.
func PageCounts(docs []types.Document) []types.PageCount {
	out := make([]types.PageCount, len(docs))
	for i, d := range docs {
		out[i] = types.PageCount{Path: d.SourcePath, Pages: d.Pages}
	}
	return out
}

func (n *Normalizer) collect() ([]string, error) {
	if n.cfg.InputFile != "" {
		if !Supported(n.cfg.InputFile) {
			n.log.Warn().Str("file", n.cfg.InputFile).Msg("unsupported file format")
			return nil, nil
		}
		return []string{n.cfg.InputFile}, nil
	}

	var files []string
	err := filepath.WalkDir(n.cfg.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", n.cfg.InputDir, err)
	}
	return files, nil
}

func (n *Normalizer) normalize(ctx context.Context, src string) (types.Document, error) {
	ext := strings.ToLower(filepath.Ext(src))
	doc := types.Document{SourcePath: src, Format: strings.TrimPrefix(ext, ".")}

	if ext == ".pdf" {
		dst := filepath.Join(n.cfg.WorkDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return doc, fmt.Errorf("staging PDF: %w", err)
		}
		doc.PDFPath = dst
	} else {
		out, err := n.conv.Convert(ctx, src, n.cfg.WorkDir)
		if err != nil {
			return doc, err
		}
		doc.PDFPath = out
	}

	pages, err := n.pages.CountPages(doc.PDFPath)
	if err != nil {
		os.Remove(doc.PDFPath)
		return doc, fmt.Errorf("counting pages: %w", err)
	}
	doc.Pages = pages

	if n.cfg.SaveDir != "" && ext != ".pdf" {
		if err := n.save(doc.PDFPath); err != nil {
			n.log.Warn().Err(err).Str("pdf", doc.PDFPath).Msg("could not save PDF copy")
		}
	}
	return doc, nil
}

func (n *Normalizer) save(pdfPath string) error {
	if err := os.MkdirAll(n.cfg.SaveDir, 0o755); err != nil {
		return fmt.Errorf("creating save directory: %w", err)
	}
	dst := filepath.Join(n.cfg.SaveDir, filepath.Base(pdfPath))
	if err := copyFile(pdfPath, dst); err != nil {
		return err
	}
	n.log.Info().Str("pdf", dst).Msg("saved PDF")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
