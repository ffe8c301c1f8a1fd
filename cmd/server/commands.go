package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/container"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("Starting sales CRM workflow service",
				zap.String("version", "1.0.0"),
				zap.Int("port", cfg.Server.Port),
				zap.Bool("allow_concurrent_instances", cfg.Workflow.AllowConcurrentInstances))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Error("Shutdown failed", zap.Error(err))
				}
			}()

			return c.Server().Start(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			containerCfg := cfg.ToContainerConfig()
			bundle, err := container.ProvideDatabase(&containerCfg.Database, logger)
			if err != nil {
				return err
			}
			defer bundle.Conn.Close()

			logger.Info("Database is up to date", zap.String("path", containerCfg.Database.Path))
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert workflow definitions from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			containerCfg := cfg.ToContainerConfig()
			containerCfg.Workflow.SeedOnStart = false
			if catalogPath == "" {
				catalogPath = containerCfg.Workflow.CatalogPath
			}
			if catalogPath == "" {
				return fmt.Errorf("no catalog path configured; pass --catalog")
			}

			c, err := container.NewContainer(containerCfg, logger)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.Close()

			defs, err := c.Seed(ctx, catalogPath)
			if err != nil {
				return err
			}
			for _, def := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\t%d steps\n", def.TenantID, def.Code, def.RecordType, len(def.Steps))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog file or directory (defaults to workflow.catalog_path)")
	return cmd
}
