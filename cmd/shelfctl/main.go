// Command shelfctl runs shelf analyses and maintenance tasks from a terminal.
package main

import (
	"os"

	"go-shelf-inspector/internal/config"
	"go-shelf-inspector/internal/container"
	"go-shelf-inspector/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

// extraOptions lets tests replace collaborators such as the OCR engine.
var extraOptions []container.Option

var rootCmd = &cobra.Command{
	Use:           "shelfctl",
	Short:         "Shelf inspector operator tool",
	Long:          `Analyse shelf photos, manage alerts and stock, and maintain the database.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// stdout carries command output
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetFormat("text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or config/config.yaml)")
}

// openContainer loads the configuration and wires the application.
func openContainer(opts ...container.Option) (*container.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	gin.SetMode(gin.ReleaseMode)
	return container.NewContainer(cfg, append(append([]container.Option(nil), extraOptions...), opts...)...)
}

func main() {
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
