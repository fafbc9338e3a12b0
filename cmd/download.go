package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/plotdesk-cli/internal/utils"
)

var (
	dlOutDir string
	dlName   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a previously rendered chart artifact",
	Example: `  plotdesk download "http://127.0.0.1:8450/static/charts/abc.svg?t=1724560000000"
  plotdesk download "http://127.0.0.1:8450/static/charts/abc.emf" --output ./charts`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newRenderClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(httpTimeoutSec(cfg))*time.Second)
		defer cancel()

		data, ext, err := client.Download(ctx, args[0])
		if err != nil {
			return fmt.Errorf("download artifact: %w", err)
		}
		outDir := outputDir(dlOutDir)
		if err := utils.EnsureDir(outDir); err != nil {
			return fmt.Errorf("ensure output dir: %w", err)
		}
		name := dlName
		if name == "" {
			name = "chart." + ext
		}
		p := filepath.Join(outDir, name)
		if err := utils.SafeWriteFile(p, data); err != nil {
			return fmt.Errorf("save artifact: %w", err)
		}
		fmt.Printf("💾 Saved %s\n", p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVarP(&dlOutDir, "output", "o", "", "directory to save the artifact (default from config)")
	downloadCmd.Flags().StringVar(&dlName, "name", "", "file name to save as (default chart.<ext>)")
}
