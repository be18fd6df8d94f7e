// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/llamarker/internal/secrets"
	"github.com/pdiddy/llamarker/pkg/types"
)

// loadPipelineConfig assembles the run configuration from viper. Flags bound
// by the run command take precedence over environment and config file values.
func loadPipelineConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		Input: types.InputConfig{
			Dir:  viper.GetString("input.dir"),
			File: viper.GetString("input.file"),
		},
		Output: types.OutputConfig{
			Dir:      viper.GetString("output.dir"),
			TempDir:  viper.GetString("output.temp_dir"),
			SavePDFs: viper.GetBool("output.save_pdfs"),
			Ledger:   viper.GetBool("output.ledger"),
		},
		Parse: types.ParseConfig{
			MarkerPath: viper.GetString("parse.marker_path"),
			Workers:    viper.GetInt("parse.workers"),
		},
		Vision: types.VisionConfig{
			Backend: types.VisionBackend(viper.GetString("vision.backend")),
			Model:   viper.GetString("vision.model"),
			Host:    viper.GetString("vision.host"),
			APIKey:  viper.GetString("vision.api_key"),
			Timeout: viper.GetDuration("vision.timeout"),
		},
		Consensus: types.ConsensusConfig{
			Attempts:       viper.GetInt("consensus.attempts"),
			Backoff:        types.DefaultBackoff,
			TargetLanguage: viper.GetString("consensus.target_language"),
			ImageWorkers:   viper.GetInt("consensus.image_workers"),
		},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			Dir:    viper.GetString("log.dir"),
		},
	}
	if viper.IsSet("consensus.backoff") {
		cfg.Consensus.Backoff = viper.GetDuration("consensus.backoff")
	}
	cfg.Vision.APIKey = loadedSecrets.Get(secrets.OpenAIAPIKey, cfg.Vision.APIKey)
	return cfg.WithDefaults()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration a run would use after merging the config
file, LLAMARKER_* environment variables and defaults. The API key is redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadPipelineConfig()
		if cfg.Vision.APIKey != "" {
			cfg.Vision.APIKey = "<redacted>"
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
