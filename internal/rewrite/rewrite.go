// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rewrite splices extracted image information back into a parsed
// document's Markdown and collapses the artifact directory into a single
// Markdown file next to it.
package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/llamarker/pkg/types"
)

// boilerplatePrefixes are headings models like to put before the payload.
// Only the text after the first match is kept.
var boilerplatePrefixes = []string{
	"**Entnommene Informationen**",
	"**Extracted Information**",
}

// StripBoilerplate drops everything up to and including the first known
// boilerplate heading.
func StripBoilerplate(info string) string {
	for _, p := range boilerplatePrefixes {
		if _, after, ok := strings.Cut(info, p); ok {
			if next := strings.Index(after, p); next >= 0 {
				after = after[:next]
			}
			return strings.TrimSpace(after)
		}
	}
	return info
}

// Heading renders the block that replaces a content image reference.
func Heading(path, info string) string {
	return fmt.Sprintf("\n ## Extracted Info of %s: \n%s", path, StripBoilerplate(info))
}

// refPattern matches a Markdown image reference to name with any alt text.
func refPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`!\[[^\]]*\]\(` + regexp.QuoteMeta(name) + `\)`)
}

// Content rewrites md for the given records. Content images are replaced by
// their heading, logos are removed. References to images without a record
// are left untouched.
func Content(md string, records []types.ImageRecord) string {
	for _, r := range records {
		repl := ""
		if r.ContainsInfo {
			repl = Heading(r.Path(), r.ExtractedInfo)
		}
		md = refPattern(r.Image).ReplaceAllLiteralString(md, repl)
	}
	return md
}

// Apply rewrites the artifact's Markdown, writes it to the artifact's parent
// directory under the same file name and removes the artifact directory.
// It returns the path of the written file. A missing Markdown file is logged
// and Apply returns an empty path without error.
func Apply(art types.ParsedArtifact, records []types.ImageRecord, log zerolog.Logger) (string, error) {
	log = log.With().Str("markdown", art.MarkdownPath).Logger()
	log.Info().Msg("updating Markdown file")

	data, err := os.ReadFile(art.MarkdownPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Msg("Markdown file does not exist")
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", art.MarkdownPath, err)
	}

	out := filepath.Join(filepath.Dir(art.Dir), filepath.Base(art.MarkdownPath))
	if err := os.WriteFile(out, []byte(Content(string(data), records)), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	log.Info().Str("path", out).Msg("updated Markdown file saved")

	if err := os.RemoveAll(art.Dir); err != nil {
		return out, fmt.Errorf("removing %s: %w", art.Dir, err)
	}
	log.Info().Str("dir", art.Dir).Msg("deleted artifact directory")
	return out, nil
}
