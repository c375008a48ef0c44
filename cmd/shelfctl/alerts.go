package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var alertsJSON bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage shelf and stock alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved alerts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAlertsList,
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve [alert-id]",
	Short: "Mark an alert as resolved",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsResolve,
}

func init() {
	alertsListCmd.Flags().BoolVar(&alertsJSON, "json", false, "output alerts as JSON")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlertsList(cmd *cobra.Command, _ []string) error {
	c, err := openContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	alerts, err := c.Service().ListAlerts(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}

	if alertsJSON {
		data, err := json.MarshalIndent(alerts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal alerts: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(alerts) == 0 {
		cmd.Println("No active alerts")
		return nil
	}
	for _, a := range alerts {
		product := a.ProductName
		if product == "" {
			product = "-"
		}
		cmd.Printf("[%d] %s  %-15s %s  (%s)\n", a.ID, a.CreatedAt.Format("2006-01-02 15:04:05"), a.AlertType, a.Message, product)
	}
	cmd.Printf("Total: %d alerts\n", len(alerts))
	return nil
}

func runAlertsResolve(cmd *cobra.Command, args []string) error {
	id, err := parseUint(args[0], "alert id")
	if err != nil {
		return err
	}

	c, err := openContainer()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Service().ResolveAlert(context.Background(), id); err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	cmd.Printf("Alert %d resolved\n", id)
	return nil
}

func parseUint(s, what string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s: %q", what, s)
	}
	return uint(v), nil
}
