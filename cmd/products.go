package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/output"
)

var productsCmd = &cobra.Command{
	Use:     "products",
	Aliases: []string{"product", "p"},
	Short:   "Manage the product catalog",
	GroupID: "data",
}

var productsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List products",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		products, err := store.GetAllProducts(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(products)
		}
		sort.Slice(products, func(i, j int) bool {
			if products[i].SortOrder != products[j].SortOrder {
				return products[i].SortOrder < products[j].SortOrder
			}
			return products[i].Name < products[j].Name
		})
		for _, p := range products {
			active := ""
			if !p.IsActive {
				active = "  (inactive)"
			}
			output.Info("%4d  %-24s %s%s", p.ID, p.Name, output.Money(p.Price), active)
		}
		output.Subtle("%d products", len(products))
		return nil
	},
}

var productsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		price, _ := cmd.Flags().GetFloat64("price")
		if price <= 0 {
			return fmt.Errorf("--price must be positive")
		}
		purchase, _ := cmd.Flags().GetFloat64("purchase-price")
		category, _ := cmd.Flags().GetString("category")
		sortOrder, _ := cmd.Flags().GetInt64("sort-order")

		p := &models.Product{
			Name:          args[0],
			Price:         price,
			PurchasePrice: purchase,
			Category:      category,
			SortOrder:     sortOrder,
			IsActive:      true,
		}
		id, err := store.AddProduct(cmd.Context(), p)
		if err != nil {
			return err
		}
		output.Success("Added product #%d: %s (%s)", id, p.Name, output.Money(p.Price))
		return nil
	},
}

var productsRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a product",
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
		if err := store.DeleteProduct(cmd.Context(), id); err != nil {
			return err
		}
		output.Success("Deleted product #%d", id)
		return nil
	},
}

func init() {
	productsListCmd.Flags().Bool("json", false, "output as JSON")
	productsAddCmd.Flags().Float64("price", 0, "selling price (required)")
	productsAddCmd.Flags().Float64("purchase-price", 0, "purchase price")
	productsAddCmd.Flags().String("category", "", "product category")
	productsAddCmd.Flags().Int64("sort-order", 0, "display sort order")
	productsAddCmd.MarkFlagRequired("price")

	productsCmd.AddCommand(productsListCmd, productsAddCmd, productsRmCmd)
	rootCmd.AddCommand(productsCmd)
}
