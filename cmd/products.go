package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/store"
	"github.com/spf13/cobra"
)

var newProduct store.Product

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the product catalog",
}

var productsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product, or update the one with the same barcode",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if newProduct.Price < 0 {
			return fmt.Errorf("invalid --price: must be >= 0, got %.2f", newProduct.Price)
		}

		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		p, err := db.UpsertProduct(cmd.Context(), newProduct)
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s saved as '%s' (%.2f)\n", p.Barcode, p.Name, p.Price)
		return nil
	},
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all products in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		products, err := db.ListProducts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(products) == 0 {
			fmt.Fprintln(out, "No products found in database.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "BARCODE\tNAME\tPRICE\tUPDATED")
		fmt.Fprintln(w, "-------\t----\t-----\t-------")
		for _, p := range products {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", p.Barcode, p.Name, p.Price, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var productsRemoveCmd = &cobra.Command{
	Use:   "remove <barcode>",
	Short: "Remove a product from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		err = db.DeleteProduct(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no product with barcode %q", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to remove product: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed %s\n", args[0])
		return nil
	},
}

func init() {
	productsAddCmd.Flags().StringVar(&newProduct.Barcode, "barcode", "", "Payload printed on the product (EAN, UPC or QR text)")
	productsAddCmd.Flags().StringVar(&newProduct.Name, "name", "", "Product name")
	productsAddCmd.Flags().Float64Var(&newProduct.Price, "price", 0, "Unit price")
	productsAddCmd.Flags().StringVar(&newProduct.Image, "image", "", "Image URL")
	productsAddCmd.Flags().StringVar(&newProduct.Description, "description", "", "Short description")
	productsAddCmd.MarkFlagRequired("barcode")
	productsAddCmd.MarkFlagRequired("name")
	productsAddCmd.MarkFlagRequired("price")

	productsCmd.AddCommand(productsAddCmd, productsListCmd, productsRemoveCmd)
	rootCmd.AddCommand(productsCmd)
}
