// Package domain defines the core interfaces and types for Ringscope.
package domain

import (
	"context"
	"time"
)

// Repository persists analysis results.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	SaveAnalysis(ctx context.Context, tenantID string, a *Analysis) error
	GetAnalysis(ctx context.Context, tenantID string, id string) (*Analysis, error)
	ListAnalyses(ctx context.Context, tenantID string, limit int) ([]*AnalysisSummary, error)
	DeleteAnalysis(ctx context.Context, tenantID string, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
