// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consensus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// relocate moves a content image out of its artifact directory into the
// shared extracted-images directory under a collision-free name of the form
// <stem>_<YYYYMMDD_HHMMSS>_<id><ext>.
func (e *Engine) relocate(path string) (string, error) {
	dir := e.cfg.ImagesDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(filepath.Dir(path)), ExtractedImagesDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	dest := filepath.Join(dir, RelocatedName(filepath.Base(path), e.now().Format("20060102_150405"), e.newID()))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("moving %s: %w", path, err)
	}
	e.log.Debug().Str("from", path).Str("to", dest).Msg("relocated image")
	return dest, nil
}

// RelocatedName builds the relocated file name for base.
func RelocatedName(base, stamp, id string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s_%s%s", stem, stamp, id, ext)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
