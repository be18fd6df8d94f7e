// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// NotAvailable is the extracted text recorded for images that carry no content.
const NotAvailable = "N/A"

// Document is a single input file discovered under the input root.
type Document struct {
	// SourcePath is the path of the original input file.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// Format is the lowercased extension without the dot (e.g. "docx").
	Format string `json:"format" yaml:"format"`

	// PDFPath is the normalized PDF inside the run's working directory.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Pages is the page count of PDFPath.
	Pages int `json:"pages" yaml:"pages"`
}

// PageCount pairs an input document with the page count of its PDF. One
// entry exists per successfully converted or copied document.
type PageCount struct {
	Path  string `json:"path" yaml:"path"`
	Pages int    `json:"pages" yaml:"pages"`
}

// ParsedArtifact is one document's output directory from the parse tool:
// exactly one Markdown file plus the images it references.
type ParsedArtifact struct {
	// Dir is the artifact directory.
	Dir string `json:"dir" yaml:"dir"`

	// MarkdownPath is the single Markdown file in Dir.
	MarkdownPath string `json:"markdown_path" yaml:"markdown_path"`

	// Images lists png/jpg/jpeg files found directly in Dir, sorted by name.
	Images []string `json:"images" yaml:"images"`
}

// ImageRecord is the outcome of classifying and, for content images,
// extracting one embedded image.
type ImageRecord struct {
	// Image is the original file name as referenced from the Markdown.
	Image string `json:"image" yaml:"image"`

	// OriginalPath is where the parse tool wrote the image.
	OriginalPath string `json:"original_path" yaml:"original_path"`

	// RelocatedPath is set once a content image has been moved out of the
	// artifact directory. Logos keep an empty RelocatedPath.
	RelocatedPath string `json:"relocated_path,omitempty" yaml:"relocated_path,omitempty"`

	IsLogo       bool `json:"is_logo" yaml:"is_logo"`
	ContainsInfo bool `json:"contains_info" yaml:"contains_info"`

	// ExtractedInfo is the translated best extraction, or NotAvailable.
	ExtractedInfo string `json:"extracted_info" yaml:"extracted_info"`
}

// Path returns the relocated path when present, otherwise the original one.
func (r ImageRecord) Path() string {
	if r.RelocatedPath != "" {
		return r.RelocatedPath
	}
	return r.OriginalPath
}

// PipelineResult is the aggregate returned by a completed run.
type PipelineResult struct {
	// Documents holds one entry per normalized document, in traversal order.
	Documents []PageCount `json:"documents" yaml:"documents"`

	// Artifacts is the number of artifact directories processed.
	Artifacts int `json:"artifacts" yaml:"artifacts"`

	// ArtifactsSkipped counts directories without exactly one Markdown file.
	ArtifactsSkipped int `json:"artifacts_skipped" yaml:"artifacts_skipped"`

	// ArtifactsFailed counts artifacts whose processing returned an error.
	ArtifactsFailed int `json:"artifacts_failed" yaml:"artifacts_failed"`

	// ImagesFailed counts images whose consensus step hit a hard failure.
	ImagesFailed int `json:"images_failed" yaml:"images_failed"`

	// PlotPath is the page-count bar chart, empty when no documents were counted.
	PlotPath string `json:"plot_path,omitempty" yaml:"plot_path,omitempty"`

	// SummaryPaths lists the YAML and XLSX summaries written beside the plot.
	SummaryPaths []string `json:"summary_paths,omitempty" yaml:"summary_paths,omitempty"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// TotalPages sums the page counts of all documents.
func (r *PipelineResult) TotalPages() int {
	total := 0
	for _, d := range r.Documents {
		total += d.Pages
	}
	return total
}
