package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

var Pool *pgxpool.Pool

// Configured reports whether a database URL is set
func Configured() bool {
	return viper.GetString("database.url") != ""
}

func Init(ctx context.Context) error {
	connString := viper.GetString("database.url")
	if connString == "" {
		return fmt.Errorf("database.url not configured")
	}

	var err error
	Pool, err = pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := Pool.Ping(ctx); err != nil {
		Pool.Close()
		Pool = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}

// Migrate creates the tables the service needs
func Migrate(ctx context.Context) error {
	if Pool == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := Pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const migrationSQL = `
	CREATE TABLE IF NOT EXISTS uploaded_files (
	    id UUID PRIMARY KEY,
	    owner_id UUID NOT NULL,
	    file_name VARCHAR(255) NOT NULL,
	    file_path TEXT NOT NULL UNIQUE,
	    file_size BIGINT NOT NULL,
	    row_count INTEGER,
	    status VARCHAR(32) NOT NULL DEFAULT 'uploaded',
	    uploaded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_uploaded_files_owner_uploaded_at
	    ON uploaded_files(owner_id, uploaded_at DESC);
`
