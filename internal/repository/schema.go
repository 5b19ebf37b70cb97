package repository

// Schema definitions for the superstore analytics database.
// Compatible with both SQLite and PostgreSQL.

const schemaOrderLines = `
CREATE TABLE IF NOT EXISTS order_lines (
    id TEXT PRIMARY KEY,
    dataset_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    product_id TEXT,
    product_name TEXT NOT NULL,
    category TEXT NOT NULL,
    sub_category TEXT,
    region TEXT NOT NULL,
    segment TEXT,
    order_date TIMESTAMP NOT NULL,
    ship_date TIMESTAMP NOT NULL,
    sales REAL NOT NULL,
    profit REAL NOT NULL,
    quantity INTEGER NOT NULL,
    discount REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_lines_dataset ON order_lines(dataset_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_customer ON order_lines(dataset_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(dataset_id, order_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_order_date ON order_lines(dataset_id, order_date);
`

// schemaLoadAudits records one row per dataset load so refresh history
// stays inspectable after the snapshot moved on.
const schemaLoadAudits = `
CREATE TABLE IF NOT EXISTS load_audits (
    id TEXT PRIMARY KEY,
    dataset_id TEXT NOT NULL,
    source TEXT NOT NULL,
    rows INTEGER NOT NULL,
    skipped INTEGER NOT NULL DEFAULT 0,
    min_order_date TIMESTAMP,
    max_order_date TIMESTAMP,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    loaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_load_audits_dataset ON load_audits(dataset_id);
CREATE INDEX IF NOT EXISTS idx_load_audits_loaded_at ON load_audits(dataset_id, loaded_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaOrderLines,
		schemaLoadAudits,
	}
}
