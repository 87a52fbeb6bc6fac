package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-storefront/config"
	"go-storefront/log"
	"go-storefront/web/db"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront payment backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	logger *zap.Logger
	conn   *gorm.DB
}

// bootstrap loads and validates the configuration, then opens the database.
func bootstrap() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := log.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	conn, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, conn: conn}, nil
}

func (a *app) close() {
	if sqlDB, err := a.conn.DB(); err == nil {
		sqlDB.Close()
	}
	a.logger.Sync()
}
