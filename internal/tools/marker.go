// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

const binMarker = "marker"

// MarkerParser runs the marker OCR/layout tool over a directory of PDFs.
// marker writes one subdirectory per document holding a Markdown file and
// the images it references.
type MarkerParser struct {
	bin     string
	workers int
	exec    executor
}

// NewMarkerParser resolves the parse tool. An empty path means look up
// "marker" on PATH. workers is forwarded unchanged to the tool.
func NewMarkerParser(path string, workers int) (*MarkerParser, error) {
	return newMarkerParser(defaultExec, path, workers)
}

func newMarkerParser(ex executor, path string, workers int) (*MarkerParser, error) {
	if path == "" {
		resolved, err := ex.LookPath(binMarker)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not on PATH", ErrToolNotFound, binMarker)
		}
		path = resolved
	} else if _, err := ex.LookPath(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolNotFound, path, err)
	}
	if workers <= 0 {
		workers = 1
	}
	return &MarkerParser{bin: path, workers: workers, exec: ex}, nil
}

// Path returns the resolved parse tool binary.
func (m *MarkerParser) Path() string { return m.bin }

// Args returns the command line used for inputDir and outputDir.
func (m *MarkerParser) Args(inputDir, outputDir string) []string {
	return []string{inputDir, "--output_dir", outputDir, "--workers", strconv.Itoa(m.workers)}
}

// Parse runs the tool over every PDF in inputDir, writing artifacts to outputDir.
func (m *MarkerParser) Parse(ctx context.Context, inputDir, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating parse output directory %s: %w", outputDir, err)
	}
	if err := run(ctx, m.exec, m.bin, m.Args(inputDir, outputDir)); err != nil {
		return fmt.Errorf("parsing %s: %w", inputDir, err)
	}
	return nil
}
