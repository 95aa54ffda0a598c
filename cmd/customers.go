package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/output"
)

var customersCmd = &cobra.Command{
	Use:     "customers",
	Aliases: []string{"customer", "c"},
	Short:   "Manage credit customers",
	GroupID: "data",
}

var customersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List customers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		customers, err := store.GetAllCustomers(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(customers)
		}
		for _, c := range customers {
			phone := c.Phone
			if phone == "" {
				phone = "-"
			}
			output.Info("%4d  %-24s %s", c.ID, c.Name, phone)
		}
		output.Subtle("%d customers", len(customers))
		return nil
	},
}

var customersAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		phone, _ := cmd.Flags().GetString("phone")
		note, _ := cmd.Flags().GetString("note")
		c := &models.Customer{Name: args[0], Phone: phone, Note: note}
		id, err := store.AddCustomer(cmd.Context(), c)
		if err != nil {
			return err
		}
		output.Success("Added customer #%d: %s", id, c.Name)
		return nil
	},
}

var customersBalanceCmd = &cobra.Command{
	Use:   "balance <id>",
	Short: "Show a customer's outstanding credit",
	Args:  cobra.ExactArgs(1),
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
		c, err := store.GetCustomer(cmd.Context(), id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("customer %d not found", id)
		}
		sales, err := store.GetSalesByCustomer(cmd.Context(), id)
		if err != nil {
			return err
		}
		var owed float64
		open := 0
		for _, sa := range sales {
			if sa.IsCredit && !sa.IsPaid {
				owed += sa.Total
				open++
			}
		}
		output.Info("%s owes %s across %d open sales", c.Name, output.Money(owed), open)
		return nil
	},
}

var customersRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a customer",
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
		if err := store.DeleteCustomer(cmd.Context(), id); err != nil {
			return err
		}
		output.Success("Deleted customer #%d", id)
		return nil
	},
}

func init() {
	customersListCmd.Flags().Bool("json", false, "output as JSON")
	customersAddCmd.Flags().String("phone", "", "phone number")
	customersAddCmd.Flags().String("note", "", "free-form note")

	customersCmd.AddCommand(customersListCmd, customersAddCmd, customersBalanceCmd, customersRmCmd)
	rootCmd.AddCommand(customersCmd)
}
