// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/llamarker/internal/consensus"
	"github.com/pdiddy/llamarker/internal/ledger"
	"github.com/pdiddy/llamarker/internal/normalize"
	"github.com/pdiddy/llamarker/pkg/types"
)

// --- fakes ---

type fakeConverter struct{}

func (fakeConverter) Convert(_ context.Context, input, outDir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(outDir, stem+".pdf")
	return out, os.WriteFile(out, []byte("%PDF"), 0o644)
}

var twoPages = normalize.PageCounterFunc(func(string) (int, error) { return 2, nil })

// fakeParser writes one artifact per PDF using markdown, keyed by stem.
type fakeParser struct {
	inputs   []string
	markdown map[string]string
	images   map[string][]string
	extra    func(outDir string)
	err      error
}

func (p *fakeParser) Parse(_ context.Context, inputDir, outputDir string) error {
	if p.err != nil {
		return p.err
	}
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		stem := strings.TrimSuffix(e.Name(), ".pdf")
		p.inputs = append(p.inputs, e.Name())
		dir := filepath.Join(outputDir, stem)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, stem+".md"), []byte(p.markdown[stem]), 0o644); err != nil {
			return err
		}
		for _, img := range p.images[stem] {
			if err := os.WriteFile(filepath.Join(dir, img), []byte("png"), 0o644); err != nil {
				return err
			}
		}
	}
	if p.extra != nil {
		p.extra(outputDir)
	}
	return nil
}

// fakeImages classifies images named logo* as logos and everything else as
// content, except images listed in fail.
type fakeImages struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]bool
	panic map[string]bool
}

func (f *fakeImages) ProcessArtifact(_ context.Context, art types.ParsedArtifact) consensus.ArtifactResult {
	f.mu.Lock()
	f.seen = append(f.seen, filepath.Base(art.Dir))
	f.mu.Unlock()
	if f.panic[filepath.Base(art.Dir)] {
		panic("model exploded")
	}

	var res consensus.ArtifactResult
	for _, img := range art.Images {
		name := filepath.Base(img)
		rec := types.ImageRecord{Image: name, OriginalPath: img}
		switch {
		case f.fail[name]:
			res.Failures = append(res.Failures, consensus.ImageFailure{Record: rec, Err: consensus.ErrJudgeExhausted})
		case strings.HasPrefix(name, "logo"):
			rec.IsLogo = true
			rec.ExtractedInfo = types.NotAvailable
			res.Records = append(res.Records, rec)
		default:
			rec.ContainsInfo = true
			rec.RelocatedPath = "/moved/" + name
			rec.ExtractedInfo = "info for " + name
			res.Records = append(res.Records, rec)
		}
	}
	return res
}

type fakeRecorder struct {
	docs     []types.PageCount
	images   map[string][]ledger.ImageEntry
	finished bool
	runErr   error
}

func (r *fakeRecorder) BeginRun(context.Context, string, string, time.Time) (string, error) {
	r.images = map[string][]ledger.ImageEntry{}
	return "run-1", nil
}

func (r *fakeRecorder) RecordDocuments(_ context.Context, _ string, docs []types.PageCount) error {
	r.docs = docs
	return nil
}

func (r *fakeRecorder) RecordImages(_ context.Context, _ string, art string, entries []ledger.ImageEntry) error {
	r.images[filepath.Base(art)] = entries
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, _ string, _ *types.PipelineResult, err error) error {
	r.finished = true
	r.runErr = err
	return nil
}

// --- helpers ---

type env struct {
	input string
	out   string
	tmp   string
}

func newEnv(t *testing.T, files ...string) env {
	t.Helper()
	base := t.TempDir()
	e := env{
		input: filepath.Join(base, "docs"),
		out:   filepath.Join(base, "out"),
		tmp:   filepath.Join(base, "tmp"),
	}
	require.NoError(t, os.MkdirAll(e.input, 0o755))
	require.NoError(t, os.MkdirAll(e.tmp, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(e.input, f), []byte("content"), 0o644))
	}
	return e
}

func (e env) config() types.PipelineConfig {
	return types.PipelineConfig{
		Input:  types.InputConfig{Dir: e.input},
		Output: types.OutputConfig{Dir: e.out, TempDir: e.tmp},
	}
}

func assertWorkDirRemoved(t *testing.T, e env) {
	t.Helper()
	entries, err := os.ReadDir(e.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "work directory must be removed")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// --- tests ---

func TestRun_EndToEnd(t *testing.T) {
	e := newEnv(t, "report.docx", "slides.pdf", "notes.bin")
	parser := &fakeParser{
		markdown: map[string]string{
			"report": "# Report\n![](logo.png)\n![](chart.png)\n",
			"slides": "# Slides\n",
		},
		images: map[string][]string{"report": {"logo.png", "chart.png"}},
		extra: func(out string) {
			dir := filepath.Join(out, "broken")
			_ = os.MkdirAll(dir, 0o755)
			_ = os.WriteFile(filepath.Join(dir, "a.md"), nil, 0o644)
			_ = os.WriteFile(filepath.Join(dir, "b.md"), nil, 0o644)
		},
	}
	images := &fakeImages{}
	rec := &fakeRecorder{}

	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    parser,
		Images:    images,
		Recorder:  rec,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"report.pdf", "slides.pdf"}, parser.inputs)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, 4, res.TotalPages())
	assert.Equal(t, 2, res.Artifacts)
	assert.Equal(t, 1, res.ArtifactsSkipped)
	assert.Zero(t, res.ArtifactsFailed)
	assert.ElementsMatch(t, []string{"report", "slides"}, images.seen)

	parsed := filepath.Join(e.out, ParsedDir)
	md := readFile(t, filepath.Join(parsed, "report.md"))
	assert.NotContains(t, md, "logo.png")
	assert.Equal(t, 1, strings.Count(md, "Extracted Info of /moved/chart.png"))
	assert.NoDirExists(t, filepath.Join(parsed, "report"))
	assert.FileExists(t, filepath.Join(parsed, "slides.md"))
	assert.DirExists(t, filepath.Join(parsed, "broken"))

	assert.FileExists(t, res.PlotPath)
	assert.Len(t, res.SummaryPaths, 2)
	assert.NoDirExists(t, filepath.Join(e.out, PDFDir))
	assertWorkDirRemoved(t, e)

	assert.True(t, rec.finished)
	assert.NoError(t, rec.runErr)
	assert.Len(t, rec.docs, 2)
	assert.Len(t, rec.images["report"], 2)
}

func TestRun_SavePDFs(t *testing.T) {
	e := newEnv(t, "report.docx", "slides.pdf")
	cfg := e.config()
	cfg.Output.SavePDFs = true

	o, err := New(cfg, Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    &fakeParser{},
		Images:    &fakeImages{},
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(e.out, PDFDir, "report.pdf"))
	assert.NoFileExists(t, filepath.Join(e.out, PDFDir, "slides.pdf"))
}

func TestRun_ParseFailureIsFatal(t *testing.T) {
	e := newEnv(t, "report.docx")
	images := &fakeImages{}
	rec := &fakeRecorder{}

	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    &fakeParser{err: errors.New("marker: exit status 1")},
		Images:    images,
		Recorder:  rec,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.Len(t, res.Documents, 1)
	assert.Empty(t, images.seen)
	assertWorkDirRemoved(t, e)
	assert.True(t, rec.finished)
	assert.ErrorIs(t, rec.runErr, ErrParse)
}

func TestRun_ParsedFilesCleanedBeforeParse(t *testing.T) {
	e := newEnv(t, "report.docx")
	stale := filepath.Join(e.out, ParsedDir, "stale", "stale.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	images := &fakeImages{}
	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    &fakeParser{},
		Images:    images,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.Equal(t, []string{"report"}, images.seen)
}

func TestRun_NoDocuments(t *testing.T) {
	e := newEnv(t, "archive.zip")

	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    &fakeParser{},
		Images:    &fakeImages{},
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDocuments)
	assertWorkDirRemoved(t, e)
}

func TestRun_ArtifactFailureIsolation(t *testing.T) {
	e := newEnv(t, "a.docx", "b.docx", "c.docx")
	parser := &fakeParser{
		markdown: map[string]string{
			"a": "![](x.png)",
			"b": "![](good.png) ![](bad.png)",
			"c": "plain",
		},
		images: map[string][]string{
			"a": {"x.png"},
			"b": {"good.png", "bad.png"},
		},
	}
	images := &fakeImages{
		panic: map[string]bool{"a": true},
		fail:  map[string]bool{"bad.png": true},
	}

	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    parser,
		Images:    images,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Artifacts)
	assert.Equal(t, 1, res.ArtifactsFailed)
	assert.Equal(t, 1, res.ImagesFailed)

	parsed := filepath.Join(e.out, ParsedDir)
	assert.DirExists(t, filepath.Join(parsed, "a"))

	// The judged-out image keeps its reference; its sibling is enriched.
	md := readFile(t, filepath.Join(parsed, "b.md"))
	assert.Contains(t, md, "Extracted Info of /moved/good.png")
	assert.Contains(t, md, "![](bad.png)")
	assert.FileExists(t, filepath.Join(parsed, "c.md"))
}

func TestRun_SingleFileOutputsBesideInput(t *testing.T) {
	e := newEnv(t, "only.docx", "ignored.docx")
	cfg := types.PipelineConfig{
		Input:  types.InputConfig{File: filepath.Join(e.input, "only.docx")},
		Output: types.OutputConfig{TempDir: e.tmp},
	}

	parser := &fakeParser{}
	o, err := New(cfg, Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    parser,
		Images:    &fakeImages{},
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"only.pdf"}, parser.inputs)
	assert.FileExists(t, filepath.Join(e.input, ParsedDir, "only.md"))
}

func TestNew_Validation(t *testing.T) {
	deps := Deps{Converter: fakeConverter{}, Parser: &fakeParser{}, Images: &fakeImages{}}

	_, err := New(types.PipelineConfig{}, deps)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(types.PipelineConfig{Input: types.InputConfig{Dir: "a", File: "b"}}, deps)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(types.PipelineConfig{Input: types.InputConfig{Dir: "a"}}, Deps{})
	assert.Error(t, err)
}

func TestOutputRoot(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.PipelineConfig
		want string
	}{
		{"explicit", types.PipelineConfig{Input: types.InputConfig{Dir: "/data/docs"}, Output: types.OutputConfig{Dir: "/out"}}, "/out"},
		{"dir parent", types.PipelineConfig{Input: types.InputConfig{Dir: "/data/docs/"}}, "/data"},
		{"file parent", types.PipelineConfig{Input: types.InputConfig{File: "/data/docs/a.docx"}}, "/data/docs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputRoot(tt.cfg))
		})
	}
}

func TestNew_MissingInputCreatesNothing(t *testing.T) {
	base := t.TempDir()
	cfg := types.PipelineConfig{Input: types.InputConfig{Dir: filepath.Join(base, "nope", "deeper", "docs")}}
	rec := &fakeRecorder{}

	_, err := New(cfg, Deps{
		Converter: fakeConverter{},
		Parser:    &fakeParser{},
		Images:    &fakeImages{},
		Recorder:  rec,
		Log:       zerolog.Nop(),
	})
	assert.ErrorIs(t, err, normalize.ErrInputNotFound)
	assert.NoDirExists(t, filepath.Join(base, "nope"))
	assert.False(t, rec.finished)
}

func TestCheckInput(t *testing.T) {
	e := newEnv(t, "a.docx")
	file := filepath.Join(e.input, "a.docx")

	tests := []struct {
		name    string
		input   types.InputConfig
		wantErr error
	}{
		{"directory", types.InputConfig{Dir: e.input}, nil},
		{"file", types.InputConfig{File: file}, nil},
		{"neither", types.InputConfig{}, ErrInvalidInput},
		{"both", types.InputConfig{Dir: e.input, File: file}, ErrInvalidInput},
		{"missing directory", types.InputConfig{Dir: filepath.Join(e.input, "gone")}, normalize.ErrInputNotFound},
		{"missing file", types.InputConfig{File: filepath.Join(e.input, "gone.docx")}, normalize.ErrInputNotFound},
		{"file given as directory", types.InputConfig{Dir: file}, ErrInvalidInput},
		{"directory given as file", types.InputConfig{File: e.input}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInput(types.PipelineConfig{Input: tt.input})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// interruptingImages cancels the run while the first artifact is being
// processed, the way an interrupt lands mid-artifact.
type interruptingImages struct {
	cancel context.CancelFunc
	seen   []string
}

func (f *interruptingImages) ProcessArtifact(ctx context.Context, art types.ParsedArtifact) consensus.ArtifactResult {
	f.seen = append(f.seen, filepath.Base(art.Dir))
	f.cancel()
	var res consensus.ArtifactResult
	for _, img := range art.Images {
		res.Failures = append(res.Failures, consensus.ImageFailure{
			Record: types.ImageRecord{Image: filepath.Base(img), OriginalPath: img},
			Err:    ctx.Err(),
		})
	}
	return res
}

func TestRun_InterruptLeavesArtifactUntouched(t *testing.T) {
	e := newEnv(t, "a.docx", "b.docx")
	parser := &fakeParser{
		markdown: map[string]string{"a": "before ![](chart.png) after", "b": "plain"},
		images:   map[string][]string{"a": {"chart.png"}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	images := &interruptingImages{cancel: cancel}
	rec := &fakeRecorder{}

	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    parser,
		Images:    images,
		Recorder:  rec,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, images.seen)

	parsed := filepath.Join(e.out, ParsedDir)
	assert.NoFileExists(t, filepath.Join(parsed, "a.md"))
	assert.Equal(t, "before ![](chart.png) after", readFile(t, filepath.Join(parsed, "a", "a.md")))
	assert.FileExists(t, filepath.Join(parsed, "a", "chart.png"))

	assert.True(t, rec.finished)
	assert.ErrorIs(t, rec.runErr, context.Canceled)
	assertWorkDirRemoved(t, e)
}

func TestRun_NestedArtifactRemovedByParent(t *testing.T) {
	e := newEnv(t, "a.docx")
	parser := &fakeParser{
		markdown: map[string]string{"a": "outer"},
		extra: func(outDir string) {
			inner := filepath.Join(outDir, "a", "inner")
			_ = os.MkdirAll(inner, 0o755)
			_ = os.WriteFile(filepath.Join(inner, "inner.md"), []byte("inner"), 0o644)
		},
	}
	images := &fakeImages{}

	o, err := New(e.config(), Deps{
		Converter: fakeConverter{},
		Pages:     twoPages,
		Parser:    parser,
		Images:    images,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Artifacts)
	assert.Equal(t, 1, res.ArtifactsSkipped)
	assert.Equal(t, 0, res.ArtifactsFailed)
	assert.Equal(t, []string{"a"}, images.seen)
	assert.FileExists(t, filepath.Join(e.out, ParsedDir, "a.md"))
}
