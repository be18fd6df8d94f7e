// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/llamarker/internal/vision"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List vision models installed on the Ollama host",
	Long: `Models queries the Ollama host for installed models and lists the ones
that belong to a known vision-capable family. Use --all to list every model.
The configured model is marked with an asterisk.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().Bool("all", false, "list all installed models, not only vision models")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	cfg := loadPipelineConfig()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	names, err := vision.ListModels(ctx, &http.Client{}, cfg.Vision.Host)
	if err != nil {
		return fmt.Errorf("querying %s: %w", cfg.Vision.Host, err)
	}
	if !all {
		names = vision.FilterVision(names)
	}
	if len(names) == 0 {
		fmt.Println("No models found.")
		return nil
	}

	current := color.New(color.FgGreen, color.Bold)
	for _, n := range names {
		if vision.HasModel([]string{n}, cfg.Vision.Model) {
			current.Printf("* %s\n", n)
			continue
		}
		fmt.Printf("  %s\n", n)
	}
	return nil
}
