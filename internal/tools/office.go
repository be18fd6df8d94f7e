// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	binLibreOffice = "libreoffice"
	binSoffice     = "soffice"
)

// OfficeConverter converts office documents to PDF with a headless office suite.
type OfficeConverter struct {
	bin  string
	exec executor
}

// DetectOfficeConverter looks for libreoffice first and falls back to
// soffice. It fails when neither is on PATH, so a missing converter is
// discovered at startup rather than mid-run.
func DetectOfficeConverter() (*OfficeConverter, error) {
	return detectOfficeConverter(defaultExec)
}

func detectOfficeConverter(ex executor) (*OfficeConverter, error) {
	for _, bin := range []string{binLibreOffice, binSoffice} {
		if path, err := ex.LookPath(bin); err == nil {
			return &OfficeConverter{bin: path, exec: ex}, nil
		}
	}
	return nil, fmt.Errorf("%w: neither %s nor %s is on PATH", ErrToolNotFound, binLibreOffice, binSoffice)
}

// Path returns the resolved converter binary.
func (c *OfficeConverter) Path() string { return c.bin }

// Convert writes input as PDF into outDir and returns the PDF path.
// The converter names its output after the input's stem.
func (c *OfficeConverter) Convert(ctx context.Context, input, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	args := []string{"--headless", "--convert-to", "pdf", "--outdir", outDir, input}
	if err := run(ctx, c.exec, c.bin, args); err != nil {
		return "", fmt.Errorf("converting %s: %w", input, err)
	}

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(outDir, stem+".pdf")
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("converter produced no PDF for %s: %w", input, err)
	}
	return out, nil
}
