// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools wraps the external binaries the pipeline delegates to: an
// office suite that converts documents to PDF and a parse tool that turns
// PDFs into Markdown plus images.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrToolNotFound is returned when a required binary is not on PATH.
var ErrToolNotFound = errors.New("external tool not found")

// stderrTail bounds how much of a failing command's stderr ends up in errors.
const stderrTail = 2048

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

var defaultExec executor = &osExecutor{}

// run executes name with args and folds the tail of stderr into the error.
func run(ctx context.Context, ex executor, name string, args []string) error {
	var stderr bytes.Buffer
	if err := ex.Run(ctx, name, args, io.Discard, &stderr); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > stderrTail {
			msg = "..." + msg[len(msg)-stderrTail:]
		}
		if msg != "" {
			return fmt.Errorf("running %s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}
