package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Manage product stock levels",
}

var stockSetCmd = &cobra.Command{
	Use:   "set [product-id] [quantity]",
	Short: "Set a product's current stock",
	Long:  `Sets the current stock. A low_stock alert is raised when it falls below the product minimum.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runStockSet,
}

func init() {
	stockCmd.AddCommand(stockSetCmd)
	rootCmd.AddCommand(stockCmd)
}

func runStockSet(cmd *cobra.Command, args []string) error {
	id, err := parseUint(args[0], "product id")
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity: %q", args[1])
	}

	c, err := openContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Service().UpdateStock(context.Background(), id, qty)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	cmd.Printf("Product %d stock set to %d\n", resp.ProductID, resp.Stock)
	if resp.Alert != nil {
		cmd.Printf("Alert %d raised: %s\n", resp.Alert.ID, resp.Alert.Message)
	}
	return nil
}
