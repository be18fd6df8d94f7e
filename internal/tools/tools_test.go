// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runFunc       func(name string, args []string, stdout, stderr io.Writer) error
	calls         [][]string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		if strings.Contains(file, "/") {
			return file, nil
		}
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Run(_ context.Context, name string, args []string, stdout, stderr io.Writer) error {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.runFunc != nil {
		return m.runFunc(name, args, stdout, stderr)
	}
	return nil
}

func TestDetectOfficeConverter(t *testing.T) {
	tests := []struct {
		name    string
		bins    map[string]bool
		wantBin string
		wantErr bool
	}{
		{name: "libreoffice available", bins: map[string]bool{"libreoffice": true}, wantBin: "/usr/bin/libreoffice"},
		{name: "soffice fallback", bins: map[string]bool{"soffice": true}, wantBin: "/usr/bin/soffice"},
		{name: "both available, libreoffice preferred", bins: map[string]bool{"libreoffice": true, "soffice": true}, wantBin: "/usr/bin/libreoffice"},
		{name: "neither available", bins: map[string]bool{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := detectOfficeConverter(&mockExecutor{availableBins: tt.bins})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrToolNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBin, c.Path())
		})
	}
}

func TestOfficeConverter_Convert(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "work")
	ex := &mockExecutor{
		availableBins: map[string]bool{"libreoffice": true},
		runFunc: func(name string, args []string, _, _ io.Writer) error {
			// Simulate the office suite writing <outdir>/<stem>.pdf.
			return os.WriteFile(filepath.Join(args[4], "report.pdf"), []byte("%PDF"), 0o644)
		},
	}
	c, err := detectOfficeConverter(ex)
	require.NoError(t, err)

	got, err := c.Convert(context.Background(), "/in/report.docx", outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "report.pdf"), got)

	require.Len(t, ex.calls, 1)
	assert.Equal(t, []string{
		"/usr/bin/libreoffice", "--headless", "--convert-to", "pdf", "--outdir", outDir, "/in/report.docx",
	}, ex.calls[0])
}

func TestOfficeConverter_ConvertFailures(t *testing.T) {
	tests := []struct {
		name    string
		runFunc func(string, []string, io.Writer, io.Writer) error
		wantMsg string
	}{
		{
			name: "command fails with stderr",
			runFunc: func(_ string, _ []string, _, stderr io.Writer) error {
				_, _ = stderr.Write([]byte("source file could not be loaded"))
				return errors.New("exit status 1")
			},
			wantMsg: "source file could not be loaded",
		},
		{
			name:    "command succeeds but no PDF",
			runFunc: func(string, []string, io.Writer, io.Writer) error { return nil },
			wantMsg: "produced no PDF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &mockExecutor{availableBins: map[string]bool{"soffice": true}, runFunc: tt.runFunc}
			c, err := detectOfficeConverter(ex)
			require.NoError(t, err)
			_, err = c.Convert(context.Background(), "/in/notes.txt", t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNewMarkerParser(t *testing.T) {
	tests := []struct {
		name    string
		bins    map[string]bool
		path    string
		wantBin string
		wantErr bool
	}{
		{name: "found on PATH", bins: map[string]bool{"marker": true}, wantBin: "/usr/bin/marker"},
		{name: "missing from PATH", bins: map[string]bool{}, wantErr: true},
		{name: "explicit path", bins: map[string]bool{"/opt/marker/bin/marker": true}, path: "/opt/marker/bin/marker", wantBin: "/opt/marker/bin/marker"},
		{name: "explicit path missing", bins: map[string]bool{"marker": true}, path: "/nope/marker", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newMarkerParser(&mockExecutor{availableBins: tt.bins}, tt.path, 4)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrToolNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBin, p.Path())
		})
	}
}

func TestMarkerParser_Parse(t *testing.T) {
	ex := &mockExecutor{availableBins: map[string]bool{"marker": true}}
	p, err := newMarkerParser(ex, "", 2)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "ParsedFiles")
	require.NoError(t, p.Parse(context.Background(), "/tmp/work", out))

	require.Len(t, ex.calls, 1)
	assert.Equal(t, []string{"/usr/bin/marker", "/tmp/work", "--output_dir", out, "--workers", "2"}, ex.calls[0])
	assert.DirExists(t, out)
}

func TestMarkerParser_ParseFailure(t *testing.T) {
	ex := &mockExecutor{
		availableBins: map[string]bool{"marker": true},
		runFunc: func(string, []string, io.Writer, io.Writer) error {
			return errors.New("exit status 2")
		},
	}
	p, err := newMarkerParser(ex, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "1", p.Args("a", "b")[4])

	err = p.Parse(context.Background(), "/tmp/work", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 2")
}
