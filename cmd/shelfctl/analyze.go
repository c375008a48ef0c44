package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go-shelf-inspector/internal/container"
	"go-shelf-inspector/internal/locator"

	"github.com/spf13/cobra"
)

var (
	analyzeBoxes    string
	analyzeDetailed bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]",
	Short: "Analyse a shelf photo and print the result as JSON",
	Long: `Stores and analyses a shelf photo like a dashboard upload.
Boxes given with --boxes replace the object detector, e.g.
  shelfctl analyze shelf.jpg --boxes "10,10,120,300;130,10,240,300"`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBoxes, "boxes", "", "fixed boxes as x1,y1,x2,y2;... instead of the detector")
	analyzeCmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "include raw OCR text per box")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	var opts []container.Option
	if analyzeBoxes != "" {
		boxes, err := locator.ParseBoxes(analyzeBoxes)
		if err != nil {
			return fmt.Errorf("invalid --boxes: %w", err)
		}
		opts = append(opts, container.WithLocator(locator.StaticLocator{Boxes: boxes}))
	}

	c, err := openContainer(opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Config().AnalysisTimeout)
	defer cancel()

	report, err := c.Service().AnalyzeUpload(ctx, filepath.Base(path), data, analyzeDetailed)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	// Image previews only make sense in the dashboard
	report.Annotated = ""
	report.Crops = nil

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(out))
	return nil
}
