// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes the per-run page-count artifacts: a bar chart PNG,
// a YAML summary and an XLSX workbook, all sharing a timestamped base name.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.yaml.in/yaml/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pdiddy/llamarker/pkg/types"
)

// BaseName is the file name prefix shared by all report files.
const BaseName = "page_counts"

const sheetName = "Page Counts"

// Files lists the paths written by Write.
type Files struct {
	Plot string
	YAML string
	XLSX string
}

// Summaries returns the non-plot files.
func (f Files) Summaries() []string {
	var out []string
	for _, p := range []string{f.YAML, f.XLSX} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Entry is one document row in the summary.
type Entry struct {
	Name  string `yaml:"name"`
	Path  string `yaml:"path"`
	Pages int    `yaml:"pages"`
}

// Summary is the YAML document written next to the plot.
type Summary struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Documents   int       `yaml:"documents"`
	TotalPages  int       `yaml:"total_pages"`
	Entries     []Entry   `yaml:"entries"`
}

// NewSummary builds the summary for counts.
func NewSummary(counts []types.PageCount, at time.Time) Summary {
	s := Summary{GeneratedAt: at, Documents: len(counts)}
	for _, c := range counts {
		s.TotalPages += c.Pages
		s.Entries = append(s.Entries, Entry{Name: DisplayName(c.Path), Path: c.Path, Pages: c.Pages})
	}
	return s
}

// DisplayName is the document name without directory or .pdf extension.
func DisplayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Write renders the report files into dir. Nothing is written when counts
// is empty.
func Write(dir string, counts []types.PageCount, at time.Time) (Files, error) {
	if len(counts) == 0 {
		return Files{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("creating report directory: %w", err)
	}

	base := filepath.Join(dir, fmt.Sprintf("%s_%s", BaseName, at.Format("20060102_150405")))
	files := Files{
		Plot: base + ".png",
		YAML: base + ".yaml",
		XLSX: base + ".xlsx",
	}
	summary := NewSummary(counts, at)

	if err := writePlot(files.Plot, summary); err != nil {
		return Files{}, fmt.Errorf("writing plot: %w", err)
	}
	if err := writeYAML(files.YAML, summary); err != nil {
		return Files{}, fmt.Errorf("writing YAML summary: %w", err)
	}
	if err := writeXLSX(files.XLSX, summary); err != nil {
		return Files{}, fmt.Errorf("writing XLSX summary: %w", err)
	}
	return files, nil
}

func writePlot(path string, s Summary) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Page counts (%d documents, %d pages)", s.Documents, s.TotalPages)
	p.Y.Label.Text = "Pages"
	p.Y.Min = 0

	values := make(plotter.Values, len(s.Entries))
	names := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		values[i] = float64(e.Pages)
		names[i] = e.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(names...)

	width := vg.Length(len(names))*vg.Centimeter + 10*vg.Centimeter
	return p.Save(width, 10*vg.Centimeter, path)
}

func writeYAML(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeXLSX(path string, s Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	rows := [][]any{{"Document", "Path", "Pages"}}
	for _, e := range s.Entries {
		rows = append(rows, []any{e.Name, e.Path, e.Pages})
	}
	rows = append(rows, []any{"Total", "", s.TotalPages})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
