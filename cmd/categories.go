package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
)

var catJSON bool

var categoriesCmd = &cobra.Command{
	Use:   "categories [name]",
	Short: "List analysis categories with expected layouts and chart variants",
	Example: `  plotdesk categories
  plotdesk categories 16S
  plotdesk categories --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			c, ok := schema.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown category %q (run 'plotdesk categories' for the list)", args[0])
			}
			info, err := schema.Describe(c)
			if err != nil {
				return err
			}
			if catJSON {
				return printJSON(os.Stdout, info)
			}
			printCategory(info)
			return nil
		}

		if catJSON {
			infos := make([]schema.Info, 0, len(schema.Categories()))
			for _, c := range schema.Categories() {
				info, err := schema.Describe(c)
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}
			return printJSON(os.Stdout, infos)
		}
		for _, c := range schema.Categories() {
			info, err := schema.Describe(c)
			if err != nil {
				return err
			}
			printCategory(info)
		}
		return nil
	},
}

func printCategory(info schema.Info) {
	fmt.Printf("%s\n", info.Name)
	fmt.Printf("  layout: %s\n", info.Layout)
	fmt.Printf("  charts: %s\n", strings.Join(info.Charts, ", "))
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().BoolVar(&catJSON, "json", false, "emit the catalog as JSON")
}
