package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"habittracker/internal/config"
	"habittracker/pkg/db"
	"habittracker/pkg/logger"
)

var (
	verbose bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "habitctl",
	Short:         "Operator tooling for the habit tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// env bundles what every subcommand needs.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func setup(cmd *cobra.Command) (*env, context.Context, func(), error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.NewLoggerWithLevel(level)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	cleanup := func() {
		cancel()
		pool.Close()
		_ = log.Sync()
	}
	return &env{cfg: cfg, log: log, pool: pool}, ctx, cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
