package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
	"github.com/KaramelBytes/plotdesk-cli/internal/session"
)

var (
	renCategory   string
	renChart      string
	renColors     []string
	renColorsFile string
	renTitle      string
	renXLabel     string
	renYLabel     string
	renOutDir     string
	renNoSave     bool
)

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Upload a spreadsheet and render a chart via the service",
	Example: `  plotdesk render data.xlsx --category QLF
  plotdesk render counts.csv --category 16S --chart heatmap --output ./charts
  plotdesk render assay.xlsx --category CFU --color Control=#1f77b4 --color Fn=#d62728
  plotdesk render panel.csv --category pH --title "pH drift" --x-label "Time (h)" --y-label pH`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := resolveCategory(renCategory)
		if err != nil {
			return err
		}
		chart := renChart
		if chart == "" {
			chart, err = schema.DefaultChart(cat)
			if err != nil {
				return err
			}
		}

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}

		ctrl := session.New(cat)
		if err := ctrl.Upload(filepath.Base(path), data); err != nil {
			return fmt.Errorf("%s: %w", session.FailureMessage, err)
		}
		if len(ctrl.Snapshot().Groups) == 0 {
			fmt.Fprintln(os.Stderr, "⚠ Warning: no groups inferred from the file; the service may reject the request")
		}

		// Color overrides: file first, explicit flags win.
		if renColorsFile != "" {
			overrides, err := loadColorFile(renColorsFile)
			if err != nil {
				return err
			}
			if err := applyColors(ctrl, overrides); err != nil {
				return err
			}
		}
		flagOverrides, err := parseColorFlags(renColors)
		if err != nil {
			return err
		}
		if err := applyColors(ctrl, flagOverrides); err != nil {
			return err
		}
		ctrl.SetLabels(renTitle, renXLabel, renYLabel)

		req, seq, err := ctrl.BeginRender(chart)
		if err != nil {
			return err
		}

		client := newRenderClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(httpTimeoutSec(cfg))*time.Second)
		defer cancel()

		res, err := client.Render(ctx, req)
		if err != nil {
			ctrl.FailRender(seq, err)
			return renderFailure(err)
		}
		ctrl.FinishRender(seq, artifactList(res))

		if res.RequestID != "" {
			fmt.Printf("Request ID: %s\n", res.RequestID)
		}
		fmt.Printf("✓ Chart rendered (%s, %s)\n", cat, chart)
		fmt.Printf("  image: %s\n", res.ImageURL)
		if res.EditableURL != "" {
			fmt.Printf("  editable: %s\n", res.EditableURL)
		}

		if renNoSave {
			return nil
		}
		saved, err := saveArtifacts(ctx, client, res, outputDir(renOutDir))
		if err != nil {
			return err
		}
		for _, p := range saved {
			fmt.Printf("💾 Saved %s\n", p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renCategory, "category", "c", "", "analysis category (default from config)")
	renderCmd.Flags().StringVar(&renChart, "chart", "", "chart variant (default is the category's first variant)")
	renderCmd.Flags().StringArrayVar(&renColors, "color", nil, "group color override as Group=#rrggbb (repeatable)")
	renderCmd.Flags().StringVar(&renColorsFile, "colors", "", "YAML file mapping group names to #rrggbb colors")
	renderCmd.Flags().StringVar(&renTitle, "title", "", "custom chart title")
	renderCmd.Flags().StringVar(&renXLabel, "x-label", "", "custom x axis label")
	renderCmd.Flags().StringVar(&renYLabel, "y-label", "", "custom y axis label")
	renderCmd.Flags().StringVarP(&renOutDir, "output", "o", "", "directory to save artifacts (default from config)")
	renderCmd.Flags().BoolVar(&renNoSave, "no-download", false, "print artifact URLs without downloading them")
}
