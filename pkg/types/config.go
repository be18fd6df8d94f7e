// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Defaults applied by PipelineConfig.WithDefaults.
const (
	DefaultModel          = "llama3.2-vision"
	DefaultBackend        = BackendOllama
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultAttempts       = 3
	DefaultBackoff        = time.Second
	DefaultParseWorkers   = 4
	DefaultImageWorkers   = 1
	DefaultTargetLanguage = "German"
	DefaultRequestTimeout = 5 * time.Minute
)

// VisionBackend identifies the vision-model API flavour.
type VisionBackend string

const (
	// BackendOllama talks to Ollama's native /api/chat with base64 images.
	BackendOllama VisionBackend = "ollama"
	// BackendOpenAI talks to any OpenAI-compatible chat completions API
	// with data-URL images.
	BackendOpenAI VisionBackend = "openai"
)

// InputConfig selects what to process. Exactly one of Dir or File is set.
type InputConfig struct {
	// Dir is the root directory containing documents to process.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// File is a single document to process.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// OutputConfig controls where results land.
type OutputConfig struct {
	// Dir is the output root. Empty means the parent of the input.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// TempDir is the parent for the run's working directory. Empty means
	// the system temp directory.
	TempDir string `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`

	// SavePDFs copies converted PDFs to <Dir>/PDFs.
	SavePDFs bool `json:"save_pdfs" yaml:"save_pdfs"`

	// Ledger enables the SQLite run ledger at <Dir>/llamarker.db.
	Ledger bool `json:"ledger" yaml:"ledger"`
}

// ParseConfig configures the external OCR/parse tool.
type ParseConfig struct {
	// MarkerPath overrides the parse tool lookup on PATH.
	MarkerPath string `json:"marker_path,omitempty" yaml:"marker_path,omitempty"`

	// Workers is forwarded to the parse tool's own process pool.
	Workers int `json:"workers" yaml:"workers"`
}

// VisionConfig holds settings for the vision-model API.
type VisionConfig struct {
	// Backend selects the API flavour: ollama or openai.
	Backend VisionBackend `json:"backend" yaml:"backend"`

	// Model is the vision-capable model name (e.g. "llama3.2-vision").
	Model string `json:"model" yaml:"model"`

	// Host is the API base URL.
	Host string `json:"host" yaml:"host"`

	// APIKey authenticates against hosted OpenAI-compatible APIs.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds a single model request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ConsensusConfig holds settings for per-image classification and extraction.
type ConsensusConfig struct {
	// Attempts is the maximum number of tries per model call (default 3).
	Attempts int `json:"attempts" yaml:"attempts"`

	// Backoff is the fixed delay between attempts. Zero means no delay; the
	// CLI defaults it to DefaultBackoff.
	Backoff time.Duration `json:"backoff" yaml:"backoff"`

	// TargetLanguage is the language the best extraction is translated into.
	TargetLanguage string `json:"target_language" yaml:"target_language"`

	// ImageWorkers bounds concurrent per-image processing (default 1).
	ImageWorkers int `json:"image_workers" yaml:"image_workers"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is console or json.
	Format string `json:"format" yaml:"format"`

	// Dir receives a per-run log file. Empty disables file logging.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// PipelineConfig groups all settings for a run.
type PipelineConfig struct {
	Input     InputConfig     `json:"input" yaml:"input"`
	Output    OutputConfig    `json:"output" yaml:"output"`
	Parse     ParseConfig     `json:"parse" yaml:"parse"`
	Vision    VisionConfig    `json:"vision" yaml:"vision"`
	Consensus ConsensusConfig `json:"consensus" yaml:"consensus"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.Parse.Workers <= 0 {
		c.Parse.Workers = DefaultParseWorkers
	}
	if c.Vision.Backend == "" {
		c.Vision.Backend = DefaultBackend
	}
	if c.Vision.Model == "" {
		c.Vision.Model = DefaultModel
	}
	if c.Vision.Host == "" && c.Vision.Backend == BackendOllama {
		c.Vision.Host = DefaultOllamaHost
	}
	if c.Vision.Timeout <= 0 {
		c.Vision.Timeout = DefaultRequestTimeout
	}
	if c.Consensus.Attempts <= 0 {
		c.Consensus.Attempts = DefaultAttempts
	}
	if c.Consensus.Backoff < 0 {
		c.Consensus.Backoff = 0
	}
	if c.Consensus.TargetLanguage == "" {
		c.Consensus.TargetLanguage = DefaultTargetLanguage
	}
	if c.Consensus.ImageWorkers <= 0 {
		c.Consensus.ImageWorkers = DefaultImageWorkers
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	return c
}
