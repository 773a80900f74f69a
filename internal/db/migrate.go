package db

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"

	"habittracker/pkg/db"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, q db.DBTX, logger *zap.Logger) error {
	logger.Info("Applying database schema")
	if _, err := q.Exec(ctx, schema); err != nil {
		logger.Error("Schema migration failed", zap.Error(err))
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("Database schema is up to date")
	return nil
}
