package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ifgstack/internal/services"
	"ifgstack/internal/sqlitedb"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE schema_version (version INTEGER NOT NULL);
CREATE TABLE datasets (
    id            TEXT PRIMARY KEY,
    version       TEXT NOT NULL,
    label         TEXT NOT NULL,
    location_json TEXT NOT NULL,
    start_time    TEXT NOT NULL,
    end_time      TEXT NOT NULL,
    path          TEXT NOT NULL,
    registered_at TEXT NOT NULL
);
`

// SQLiteCatalog is a local dataset registry.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLite opens or creates the registry at path.
func OpenSQLite(path string) (*SQLiteCatalog, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalogUnavailable, "catalog", "open", "Failed to open "+path, err)
	}
	if err := sqlitedb.EnsureSchema(context.Background(), db, sqliteSchema, sqliteSchemaVersion); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrCatalogUnavailable, "catalog", "schema", "Failed to prepare "+path, err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// Exists implements Catalog.
func (c *SQLiteCatalog) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, "SELECT 1 FROM datasets WHERE id = ?", id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, services.Wrap(services.ErrCatalogUnavailable, "catalog", "exists", "Query failed", err)
	default:
		return true, nil
	}
}

// Register implements Catalog. Registering an existing id replaces it.
func (c *SQLiteCatalog) Register(ctx context.Context, d Dataset) error {
	location, err := json.Marshal(d.Location)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO datasets (id, version, label, location_json, start_time, end_time, path, registered_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    version = excluded.version,
    label = excluded.label,
    location_json = excluded.location_json,
    start_time = excluded.start_time,
    end_time = excluded.end_time,
    path = excluded.path,
    registered_at = excluded.registered_at`,
		d.ID, d.Version, d.Label, string(location), d.StartTime, d.EndTime, d.Path,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

// Lookup returns a registered dataset.
func (c *SQLiteCatalog) Lookup(ctx context.Context, id string) (Dataset, bool, error) {
	var d Dataset
	var location string
	err := c.db.QueryRowContext(ctx,
		"SELECT id, version, label, location_json, start_time, end_time, path FROM datasets WHERE id = ?", id,
	).Scan(&d.ID, &d.Version, &d.Label, &location, &d.StartTime, &d.EndTime, &d.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, false, nil
	}
	if err != nil {
		return Dataset{}, false, fmt.Errorf("lookup dataset: %w", err)
	}
	if err := json.Unmarshal([]byte(location), &d.Location); err != nil {
		return Dataset{}, false, fmt.Errorf("decode location: %w", err)
	}
	return d, true, nil
}

// Close implements Catalog.
func (c *SQLiteCatalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
