package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/output"
)

var salesCmd = &cobra.Command{
	Use:     "sales",
	Aliases: []string{"sale", "s"},
	Short:   "Record and inspect sales",
	GroupID: "data",
}

var salesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sales",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		sales, err := store.GetAllSales(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(sales)
		}
		printSales(sales)
		return nil
	},
}

var salesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a sale",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		productID, _ := cmd.Flags().GetInt64("product")
		tableID, _ := cmd.Flags().GetInt64("table")
		customerID, _ := cmd.Flags().GetInt64("customer")
		qty, _ := cmd.Flags().GetInt64("qty")
		credit, _ := cmd.Flags().GetBool("credit")
		if qty <= 0 {
			return fmt.Errorf("--qty must be positive")
		}
		if credit && customerID == 0 {
			return fmt.Errorf("--credit requires --customer")
		}

		product, err := store.GetProduct(cmd.Context(), productID)
		if err != nil {
			return fmt.Errorf("look up product %d: %w", productID, err)
		}
		if product == nil {
			return fmt.Errorf("product %d not found", productID)
		}

		sale := &models.Sale{
			TableID:      tableID,
			CustomerID:   customerID,
			ProductID:    product.ID,
			ProductName:  product.Name,
			Quantity:     qty,
			UnitPrice:    product.Price,
			Total:        product.Price * float64(qty),
			IsCredit:     credit,
			SellDateTime: time.Now().UTC(),
		}
		id, err := store.AddSale(cmd.Context(), sale)
		if err != nil {
			return err
		}
		output.Success("Sale #%d: %dx %s = %s", id, sale.Quantity, sale.ProductName, output.Money(sale.Total))
		return nil
	},
}

var salesUnpaidCmd = &cobra.Command{
	Use:   "unpaid",
	Short: "List open (unpaid) sales for a table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		tableID, _ := cmd.Flags().GetInt64("table")
		sales, err := store.GetUnpaidSalesByTable(cmd.Context(), tableID)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(sales)
		}
		printSales(sales)
		var total float64
		for _, sa := range sales {
			total += sa.Total
		}
		output.Info("Open total for table %d: %s", tableID, output.Money(total))
		return nil
	},
}

var salesByCustomerCmd = &cobra.Command{
	Use:   "by-customer <id>",
	Short: "List a customer's sales",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		customerID, err := parseID(args[0])
		if err != nil {
			return err
		}
		sales, err := store.GetSalesByCustomer(cmd.Context(), customerID)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(sales)
		}
		printSales(sales)
		var owed float64
		for _, sa := range sales {
			if sa.IsCredit && !sa.IsPaid {
				owed += sa.Total
			}
		}
		output.Info("Outstanding credit: %s", output.Money(owed))
		return nil
	},
}

var salesPayCmd = &cobra.Command{
	Use:   "pay <id>",
	Short: "Mark a sale as paid",
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
		sale, err := store.GetSale(cmd.Context(), id)
		if err != nil {
			return err
		}
		if sale == nil {
			return fmt.Errorf("sale %d not found", id)
		}
		if sale.IsPaid {
			output.Warning("Sale #%d is already paid", id)
			return nil
		}
		sale.IsPaid = true
		if _, err := store.UpdateSale(cmd.Context(), sale); err != nil {
			return err
		}
		output.Success("Sale #%d paid (%s)", id, output.Money(sale.Total))
		return nil
	},
}

var salesRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a sale",
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
		if err := store.DeleteSale(cmd.Context(), id); err != nil {
			return err
		}
		output.Success("Deleted sale #%d", id)
		return nil
	},
}

func printSales(sales []models.Sale) {
	for _, sa := range sales {
		status := "open"
		switch {
		case sa.IsPaid:
			status = "paid"
		case sa.IsCredit:
			status = "credit"
		}
		output.Info("%4d  %s  %dx %-20s %s  [%s]",
			sa.ID, output.When(sa.SellDateTime), sa.Quantity, sa.ProductName,
			output.Money(sa.Total), status)
	}
	output.Subtle("%d sales", len(sales))
}

func init() {
	salesListCmd.Flags().Bool("json", false, "output as JSON")
	salesAddCmd.Flags().Int64("product", 0, "product id (required)")
	salesAddCmd.Flags().Int64("table", 0, "table id")
	salesAddCmd.Flags().Int64("customer", 0, "customer id (credit sales)")
	salesAddCmd.Flags().Int64("qty", 1, "quantity")
	salesAddCmd.Flags().Bool("credit", false, "record as a credit sale")
	salesAddCmd.MarkFlagRequired("product")
	salesUnpaidCmd.Flags().Int64("table", 0, "table id (required)")
	salesUnpaidCmd.Flags().Bool("json", false, "output as JSON")
	salesUnpaidCmd.MarkFlagRequired("table")
	salesByCustomerCmd.Flags().Bool("json", false, "output as JSON")

	salesCmd.AddCommand(salesListCmd, salesAddCmd, salesUnpaidCmd, salesByCustomerCmd, salesPayCmd, salesRmCmd)
	rootCmd.AddCommand(salesCmd)
}
