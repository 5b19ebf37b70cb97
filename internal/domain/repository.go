// Package domain defines the core interfaces and types for the superstore
// analytics service.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for fact persistence.
// All methods require datasetID for strict dataset isolation.
type Repository interface {
	// Fact operations. ReplaceDataset atomically swaps the dataset's
	// fact rows on refresh; OrderLinesByCustomer is the full-view
	// accessor, independent of any filter context.
	SaveOrderLines(ctx context.Context, datasetID string, lines []*OrderLine) error
	ListOrderLines(ctx context.Context, datasetID string) ([]*OrderLine, error)
	OrderLinesByCustomer(ctx context.Context, datasetID string, customerID string) ([]*OrderLine, error)
	OrderDateRange(ctx context.Context, datasetID string) (min, max time.Time, err error)
	CountOrderLines(ctx context.Context, datasetID string) (int64, error)
	ReplaceDataset(ctx context.Context, datasetID string, lines []*OrderLine) error

	// Load audit trail
	SaveLoadAudit(ctx context.Context, datasetID string, audit *LoadAudit) error
	ListLoadAudits(ctx context.Context, datasetID string, limit int) ([]*LoadAudit, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// LoadAudit records one completed dataset load or refresh.
type LoadAudit struct {
	ID           string    `json:"id"`
	DatasetID    string    `json:"datasetId"`
	Source       string    `json:"source"`
	Rows         int64     `json:"rows"`
	Skipped      int64     `json:"skipped"`
	MinOrderDate time.Time `json:"minOrderDate"`
	MaxOrderDate time.Time `json:"maxOrderDate"`
	DurationMs   int64     `json:"durationMs"`
	LoadedAt     time.Time `json:"loadedAt"`
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
