package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/config"
	"github.com/garyjia/sales-crm/pkg/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sales-crm",
	Short:         "Sales CRM approval workflow service",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `sales-crm runs the approval workflow engine behind the sales CRM.

Workflow definitions are authored in YAML under configs/workflows and seeded
into SQLite; contract requests, fund plans and handovers move through them
via the HTTP API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
}

// bootstrap loads configuration and builds the logger shared by all commands
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "sales-crm",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
