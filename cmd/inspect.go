package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/plotdesk-cli/internal/profile"
	"github.com/KaramelBytes/plotdesk-cli/internal/session"
	"github.com/KaramelBytes/plotdesk-cli/internal/sheet"
)

var (
	insCategory string
	insJSON     bool
)

// inspectReport is the JSON shape of one inspection.
type inspectReport struct {
	File           string            `json:"file"`
	Category       string            `json:"category"`
	Rows           int               `json:"rows"`
	Columns        []string          `json:"columns"`
	Profile        []profile.Column  `json:"profile"`
	GroupingColumn string            `json:"grouping_column,omitempty"`
	Groups         []string          `json:"groups"`
	Colors         map[string]string `json:"colors"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Parse a spreadsheet and show the groups inferred for a category",
	Example: `  plotdesk inspect data.xlsx --category QLF
  plotdesk inspect counts.csv --category 16S --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := resolveCategory(insCategory)
		if err != nil {
			return err
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
		st := ctrl.Snapshot()

		tbl, err := sheet.Read(filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("read spreadsheet: %w", err)
		}
		prof := profile.Columns(tbl)

		if insJSON {
			return printJSON(os.Stdout, inspectReport{
				File:           st.FileName,
				Category:       string(st.Category),
				Rows:           st.Rows,
				Columns:        st.Headers,
				Profile:        prof,
				GroupingColumn: st.GroupCol,
				Groups:         st.Groups,
				Colors:         st.Colors,
			})
		}

		fmt.Printf("File: %s\n", st.FileName)
		fmt.Printf("Category: %s\n", st.Category)
		fmt.Printf("Rows: %d\n", st.Rows)
		fmt.Printf("Columns (%d):\n", len(st.Headers))
		for _, c := range prof {
			fmt.Printf("  %s\n", formatColumn(c))
		}
		if st.GroupCol != "" {
			fmt.Printf("Grouping column: %s\n", st.GroupCol)
		} else {
			fmt.Println("Grouping column: (fixed by category)")
		}
		fmt.Printf("Groups (%d):\n", len(st.Groups))
		for _, g := range st.Groups {
			fmt.Printf("  %s  %s\n", st.Colors[g], g)
		}
		return nil
	},
}

// formatColumn renders one profiled column as a single summary line.
func formatColumn(c profile.Column) string {
	name := c.Name
	if c.Unit != "" {
		name = fmt.Sprintf("%s [%s]", c.Name, c.Unit)
	}
	var details []string
	if c.Stats != nil {
		details = append(details,
			fmt.Sprintf("min %.4g", c.Stats.Min),
			fmt.Sprintf("mean %.4g", c.Stats.Mean),
			fmt.Sprintf("max %.4g", c.Stats.Max))
	} else {
		details = append(details, fmt.Sprintf("%d distinct", c.Distinct))
	}
	if c.Missing > 0 {
		details = append(details, fmt.Sprintf("%d missing", c.Missing))
	}
	return fmt.Sprintf("%s: %s (%s)", name, c.Kind, strings.Join(details, ", "))
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&insCategory, "category", "c", "", "analysis category (default from config)")
	inspectCmd.Flags().BoolVar(&insJSON, "json", false, "emit the report as JSON")
}
