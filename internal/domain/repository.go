package domain

import (
	"context"
	"time"
)

// Repository defines the interface for persisting analysis runs.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Run operations
	SaveRun(ctx context.Context, tenantID string, run *AnalysisRun) error
	GetRun(ctx context.Context, tenantID string, runID string) (*AnalysisRun, error)
	ListRuns(ctx context.Context, tenantID string, limit int) ([]*RunSummary, error)
	DeleteRun(ctx context.Context, tenantID string, runID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
