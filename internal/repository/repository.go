// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const insertOrderLineQuery = `
	INSERT INTO order_lines (
		id, dataset_id, order_id, customer_id, product_id, product_name,
		category, sub_category, region, segment, order_date, ship_date,
		sales, profit, quantity, discount
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectOrderLineColumns = `
	SELECT id, order_id, customer_id, product_id, product_name,
		   category, sub_category, region, segment, order_date, ship_date,
		   sales, profit, quantity, discount
	FROM order_lines
`

// SaveOrderLines appends fact rows with dataset isolation, in one
// transaction. Rows without a LineID get one assigned.
func (r *SQLRepository) SaveOrderLines(ctx context.Context, datasetID string, lines []*domain.OrderLine) error {
	if datasetID == "" {
		return fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}
	if len(lines) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrderLines(ctx, tx, r.rebind(insertOrderLineQuery), datasetID, lines); err != nil {
		return err
	}
	return tx.Commit()
}

func insertOrderLines(ctx context.Context, tx *sql.Tx, query, datasetID string, lines []*domain.OrderLine) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		if l.LineID == "" {
			l.LineID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			l.LineID, datasetID, l.OrderID, l.CustomerID,
			l.ProductID, l.ProductName, l.Category, l.SubCategory,
			l.Region, l.Segment, l.OrderDate, l.ShipDate,
			l.Sales, l.Profit, l.Quantity, l.Discount,
		); err != nil {
			return fmt.Errorf("failed to insert order line %s: %w", l.OrderID, err)
		}
	}
	return nil
}

// ListOrderLines retrieves every fact row of a dataset in stable order.
func (r *SQLRepository) ListOrderLines(ctx context.Context, datasetID string) ([]*domain.OrderLine, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}

	query := selectOrderLineColumns + `
		WHERE dataset_id = ?
		ORDER BY order_date, order_id, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), datasetID)
	if err != nil {
		return nil, err
	}
	return scanOrderLines(rows)
}

// OrderLinesByCustomer retrieves one customer's full order history with
// dataset isolation.
func (r *SQLRepository) OrderLinesByCustomer(ctx context.Context, datasetID string, customerID string) ([]*domain.OrderLine, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}

	query := selectOrderLineColumns + `
		WHERE dataset_id = ? AND customer_id = ?
		ORDER BY order_date, order_id, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), datasetID, customerID)
	if err != nil {
		return nil, err
	}
	return scanOrderLines(rows)
}

func scanOrderLines(rows *sql.Rows) ([]*domain.OrderLine, error) {
	defer rows.Close()

	var lines []*domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(
			&l.LineID, &l.OrderID, &l.CustomerID,
			&l.ProductID, &l.ProductName, &l.Category, &l.SubCategory,
			&l.Region, &l.Segment, &l.OrderDate, &l.ShipDate,
			&l.Sales, &l.Profit, &l.Quantity, &l.Discount,
		); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// OrderDateRange returns the dataset's min and max order dates. Selected
// as plain columns rather than MIN/MAX aggregates so the drivers keep
// returning typed timestamps.
func (r *SQLRepository) OrderDateRange(ctx context.Context, datasetID string) (time.Time, time.Time, error) {
	if datasetID == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}

	var min, max time.Time

	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT order_date FROM order_lines WHERE dataset_id = ? ORDER BY order_date ASC LIMIT 1`),
		datasetID,
	).Scan(&min)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	err = r.db.QueryRowContext(ctx,
		r.rebind(`SELECT order_date FROM order_lines WHERE dataset_id = ? ORDER BY order_date DESC LIMIT 1`),
		datasetID,
	).Scan(&max)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return min, max, nil
}

// CountOrderLines returns the dataset's fact row count.
func (r *SQLRepository) CountOrderLines(ctx context.Context, datasetID string) (int64, error) {
	if datasetID == "" {
		return 0, fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}

	var count int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT COUNT(*) FROM order_lines WHERE dataset_id = ?`),
		datasetID,
	).Scan(&count)
	return count, err
}

// ReplaceDataset swaps a dataset's fact rows atomically: the delete and
// the inserts commit together or not at all, so readers never observe a
// half-loaded dataset.
func (r *SQLRepository) ReplaceDataset(ctx context.Context, datasetID string, lines []*domain.OrderLine) error {
	if datasetID == "" {
		return fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		r.rebind(`DELETE FROM order_lines WHERE dataset_id = ?`), datasetID,
	); err != nil {
		return fmt.Errorf("failed to clear dataset %s: %w", datasetID, err)
	}

	if err := insertOrderLines(ctx, tx, r.rebind(insertOrderLineQuery), datasetID, lines); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveLoadAudit stores one load audit record with dataset isolation.
func (r *SQLRepository) SaveLoadAudit(ctx context.Context, datasetID string, audit *domain.LoadAudit) error {
	if datasetID == "" {
		return fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.LoadedAt.IsZero() {
		audit.LoadedAt = time.Now().UTC()
	}
	audit.DatasetID = datasetID

	query := `
		INSERT INTO load_audits (
			id, dataset_id, source, rows, skipped,
			min_order_date, max_order_date, duration_ms, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		audit.ID, datasetID, audit.Source, audit.Rows, audit.Skipped,
		audit.MinOrderDate, audit.MaxOrderDate, audit.DurationMs, audit.LoadedAt,
	)
	return err
}

// ListLoadAudits retrieves the most recent load audits, newest first.
func (r *SQLRepository) ListLoadAudits(ctx context.Context, datasetID string, limit int) ([]*domain.LoadAudit, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: datasetID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, dataset_id, source, rows, skipped,
			   min_order_date, max_order_date, duration_ms, loaded_at
		FROM load_audits
		WHERE dataset_id = ?
		ORDER BY loaded_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), datasetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*domain.LoadAudit
	for rows.Next() {
		var a domain.LoadAudit
		if err := rows.Scan(
			&a.ID, &a.DatasetID, &a.Source, &a.Rows, &a.Skipped,
			&a.MinOrderDate, &a.MaxOrderDate, &a.DurationMs, &a.LoadedAt,
		); err != nil {
			return nil, err
		}
		audits = append(audits, &a)
	}
	return audits, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
