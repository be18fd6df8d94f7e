// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact discovers the per-document output directories written by
// the parse tool. An artifact directory holds exactly one Markdown file plus
// the images extracted from that document.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/llamarker/pkg/types"
)

// imageExts are the embedded image formats the parse tool emits.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Skipped is a directory that could not be treated as an artifact.
type Skipped struct {
	Dir       string
	Markdowns int
	Reason    string
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Scan walks every directory below root in lexical order. Directories with
// exactly one .md file become artifacts; all others are returned as Skipped.
// Directories whose base name is in exclude are not descended into.
func Scan(root string, exclude ...string) ([]types.ParsedArtifact, []Skipped, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var artifacts []types.ParsedArtifact
	var skipped []Skipped
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if skip[d.Name()] {
			return filepath.SkipDir
		}

		art, n, err := inspect(path)
		if err != nil {
			return err
		}
		if n != 1 {
			skipped = append(skipped, Skipped{
				Dir:       path,
				Markdowns: n,
				Reason:    fmt.Sprintf("expected exactly one Markdown file, found %d", n),
			})
			return nil
		}
		artifacts = append(artifacts, art)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return artifacts, skipped, nil
}

// inspect lists the files directly inside dir and returns the artifact it
// describes together with the number of Markdown files found.
func inspect(dir string) (types.ParsedArtifact, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.ParsedArtifact{}, 0, err
	}

	art := types.ParsedArtifact{Dir: dir}
	markdowns := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.EqualFold(filepath.Ext(name), ".md"):
			markdowns++
			art.MarkdownPath = filepath.Join(dir, name)
		case IsImage(name):
			art.Images = append(art.Images, filepath.Join(dir, name))
		}
	}
	sort.Strings(art.Images)
	return art, markdowns, nil
}
