package cmd

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/output"
)

//go:embed guide.md
var guideMarkdown string

var guideCmd = &cobra.Command{
	Use:     "guide",
	Short:   "Show the setup guide, including the remote schema",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			fmt.Print(guideMarkdown)
			return nil
		}
		rendered, err := output.RenderMarkdown(guideMarkdown)
		if err != nil {
			fmt.Print(guideMarkdown)
			return nil
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	guideCmd.Flags().Bool("plain", false, "print raw markdown without styling")
	rootCmd.AddCommand(guideCmd)
}
