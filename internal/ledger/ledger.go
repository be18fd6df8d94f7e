// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records pipeline runs in a SQLite database under the output
// root: one row per run, per normalized document and per processed image.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/llamarker/pkg/types"
)

// FileName is the ledger database name inside the output root.
const FileName = "llamarker.db"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Store is an open ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			model TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			error TEXT,
			artifacts INTEGER DEFAULT 0,
			artifacts_skipped INTEGER DEFAULT 0,
			artifacts_failed INTEGER DEFAULT 0,
			images_failed INTEGER DEFAULT 0,
			plot_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			path TEXT NOT NULL,
			pages INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			artifact TEXT NOT NULL,
			image TEXT NOT NULL,
			path TEXT NOT NULL,
			is_logo INTEGER NOT NULL,
			contains_info INTEGER NOT NULL,
			extracted_info TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_images_run_id ON images(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a running row and returns its ID.
func (s *Store) BeginRun(ctx context.Context, input, model string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, model, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, input, model, startedAt.UTC().Format(time.RFC3339Nano), StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// RecordDocuments stores the normalized documents of a run.
func (s *Store) RecordDocuments(ctx context.Context, runID string, docs []types.PageCount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (run_id, path, pages) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, runID, d.Path, d.Pages); err != nil {
			return fmt.Errorf("inserting document %s: %w", d.Path, err)
		}
	}
	return tx.Commit()
}

// ImageEntry is one image outcome to record. Err is set for images that hit
// a hard failure.
type ImageEntry struct {
	Record types.ImageRecord
	Err    error
}

// RecordImages stores the image outcomes of one artifact.
func (s *Store) RecordImages(ctx context.Context, runID, artifact string, entries []ImageEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO images (run_id, artifact, image, path, is_logo, contains_info, extracted_info, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var errText sql.NullString
		if e.Err != nil {
			errText = sql.NullString{String: e.Err.Error(), Valid: true}
		}
		r := e.Record
		if _, err := stmt.ExecContext(ctx,
			runID, artifact, r.Image, r.Path(), r.IsLogo, r.ContainsInfo, r.ExtractedInfo, errText,
		); err != nil {
			return fmt.Errorf("inserting image %s: %w", r.Image, err)
		}
	}
	return tx.Commit()
}

// FinishRun closes a run. A non-nil runErr marks it failed.
func (s *Store) FinishRun(ctx context.Context, runID string, res *types.PipelineResult, runErr error) error {
	status := StatusSucceeded
	var errText sql.NullString
	if runErr != nil {
		status = StatusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if res == nil {
		res = &types.PipelineResult{FinishedAt: time.Now()}
	}

	out, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ?, artifacts = ?,
			artifacts_skipped = ?, artifacts_failed = ?, images_failed = ?, plot_path = ?
		 WHERE id = ?`,
		res.FinishedAt.UTC().Format(time.RFC3339Nano), status, errText, res.Artifacts,
		res.ArtifactsSkipped, res.ArtifactsFailed, res.ImagesFailed, res.PlotPath, runID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
