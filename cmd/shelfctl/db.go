package main

import (
	"context"
	"fmt"

	"go-shelf-inspector/internal/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the sample products",
	Long:  `Inserts the sample product catalogue. Nothing is inserted when products already exist.`,
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	c, err := openContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := repository.Migrate(c.DB()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	cmd.Println("Database schema is up to date")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	c, err := openContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Store().SeedSampleProducts(context.Background())
	if err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if n == 0 {
		cmd.Println("Products already present; nothing seeded")
		return nil
	}
	cmd.Printf("Seeded %d sample products\n", n)
	return nil
}
