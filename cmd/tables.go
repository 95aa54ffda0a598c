package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/output"
)

var tablesCmd = &cobra.Command{
	Use:     "tables",
	Aliases: []string{"table", "t"},
	Short:   "Manage venue tables",
	GroupID: "data",
}

var tablesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tables",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		tables, err := store.GetAllTables(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(tables)
		}
		for _, t := range tables {
			active := ""
			if !t.IsActive {
				active = "  (inactive)"
			}
			output.Info("%4d  %-24s %s/h%s", t.ID, t.Name, output.Money(t.HourlyRate), active)
		}
		output.Subtle("%d tables", len(tables))
		return nil
	},
}

var tablesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		rate, _ := cmd.Flags().GetFloat64("rate")
		t := &models.Table{Name: args[0], HourlyRate: rate, IsActive: true}
		id, err := store.AddTable(cmd.Context(), t)
		if err != nil {
			return err
		}
		output.Success("Added table #%d: %s (%s/h)", id, t.Name, output.Money(t.HourlyRate))
		return nil
	},
}

var tablesRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteTable(cmd.Context(), id); err != nil {
			return err
		}
		output.Success("Deleted table #%d", id)
		return nil
	},
}

func init() {
	tablesListCmd.Flags().Bool("json", false, "output as JSON")
	tablesAddCmd.Flags().Float64("rate", 0, "hourly rate")

	tablesCmd.AddCommand(tablesListCmd, tablesAddCmd, tablesRmCmd)
	rootCmd.AddCommand(tablesCmd)
}

// parseID parses a positive record ID argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
