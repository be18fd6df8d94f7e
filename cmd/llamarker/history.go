// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/llamarker/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs recorded in the output ledger",
	Long: `History lists runs recorded in <output>/llamarker.db, newest first.
Use --run with a run ID to list the images processed in that run.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringP("output", "o", ".", "output root containing llamarker.db")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")
	historyCmd.Flags().String("run", "", "show the images of a single run")
	rootCmd.AddCommand(historyCmd)
}

// historyOptions are the history command's flags.
type historyOptions struct {
	output string
	limit  int
	runID  string
}

func runHistory(cmd *cobra.Command, args []string) error {
	var opts historyOptions
	opts.output, _ = cmd.Flags().GetString("output")
	opts.limit, _ = cmd.Flags().GetInt("limit")
	opts.runID, _ = cmd.Flags().GetString("run")
	return showHistory(cmd.Context(), cmd.OutOrStdout(), opts)
}

func showHistory(ctx context.Context, out io.Writer, opts historyOptions) error {
	path := filepath.Join(opts.output, ledger.FileName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no ledger at %s: %w", path, err)
	}
	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.runID != "" {
		return printRunImages(ctx, out, store, opts.runID)
	}

	runs, err := store.Runs(ctx, opts.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tDOCS\tPAGES\tARTIFACTS\tIMAGES\tFAILED\tDURATION\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			shortRunID(r.ID), r.StartedAt.Local().Format(time.DateTime), statusText(r.Status),
			r.Documents, r.Pages, r.Artifacts, r.Images, r.ImagesFailed+r.ArtifactsFailed,
			r.Duration().Round(time.Second), r.Input)
	}
	return w.Flush()
}

func printRunImages(ctx context.Context, out io.Writer, store *ledger.Store, runID string) error {
	images, err := store.Images(ctx, runID)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Fprintf(out, "No images recorded for run %s.\n", runID)
		return nil
	}

	red := color.New(color.FgRed)
	for _, img := range images {
		switch {
		case img.Error != "":
			red.Fprintf(out, "%s  %s  failed: %s\n", img.Artifact, img.Image, img.Error)
		case img.IsLogo:
			fmt.Fprintf(out, "%s  %s  logo\n", img.Artifact, img.Image)
		default:
			fmt.Fprintf(out, "%s  %s  -> %s\n", img.Artifact, img.Image, img.Path)
		}
	}
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusText(status string) string {
	switch status {
	case ledger.StatusSucceeded:
		return color.GreenString(status)
	case ledger.StatusFailed:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}
