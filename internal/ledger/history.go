// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is a summary row for the history listing.
type Run struct {
	ID               string
	Input            string
	Model            string
	Status           string
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Documents        int
	Pages            int
	Artifacts        int
	ArtifactsSkipped int
	ArtifactsFailed  int
	Images           int
	ImagesFailed     int
	PlotPath         string
}

// Duration is zero for runs that never finished.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all runs.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT r.id, r.input, COALESCE(r.model, ''), r.status, COALESCE(r.error, ''),
			r.started_at, COALESCE(r.finished_at, ''),
			(SELECT count(*) FROM documents d WHERE d.run_id = r.id),
			(SELECT COALESCE(sum(d.pages), 0) FROM documents d WHERE d.run_id = r.id),
			r.artifacts, r.artifacts_skipped, r.artifacts_failed,
			(SELECT count(*) FROM images i WHERE i.run_id = r.id),
			r.images_failed, COALESCE(r.plot_path, '')
		 FROM runs r ORDER BY r.started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(
			&r.ID, &r.Input, &r.Model, &r.Status, &r.Error, &started, &finished,
			&r.Documents, &r.Pages, &r.Artifacts, &r.ArtifactsSkipped, &r.ArtifactsFailed,
			&r.Images, &r.ImagesFailed, &r.PlotPath,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ImageRow is one recorded image.
type ImageRow struct {
	Artifact      string
	Image         string
	Path          string
	IsLogo        bool
	ContainsInfo  bool
	ExtractedInfo string
	Error         string
}

// Images returns the images recorded for runID in insertion order.
func (s *Store) Images(ctx context.Context, runID string) ([]ImageRow, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact, image, path, is_logo, contains_info, COALESCE(extracted_info, ''), error
		 FROM images WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	var out []ImageRow
	for rows.Next() {
		var r ImageRow
		var errText sql.NullString
		if err := rows.Scan(&r.Artifact, &r.Image, &r.Path, &r.IsLogo, &r.ContainsInfo, &r.ExtractedInfo, &errText); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
