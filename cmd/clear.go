package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/output"
)

var clearDataCmd = &cobra.Command{
	Use:     "clear-data",
	Short:   "Delete ALL data from the remote store and the local cache",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("clear-data wipes every record remotely and locally; re-run with --force to confirm")
		}

		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := store.ClearAllData(cmd.Context()); err != nil {
			return err
		}
		output.Success("All data cleared; sync cursors reset")
		return nil
	},
}

func init() {
	clearDataCmd.Flags().Bool("force", false, "confirm the wipe")
	rootCmd.AddCommand(clearDataCmd)
}
