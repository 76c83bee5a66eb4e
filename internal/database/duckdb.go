package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// DuckDB is the default in-process analytical engine.
type DuckDB struct {
	DB   *sql.DB
	path string
}

// NewDuckDB opens (or creates) a DuckDB database. Use ":memory:" for an
// in-memory database.
func NewDuckDB(ctx context.Context, path string) (*DuckDB, error) {
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return &DuckDB{DB: db, path: path}, nil
}

// NewDuckDBFromDB wraps an existing handle, for tests and embedding.
func NewDuckDBFromDB(db *sql.DB) *DuckDB {
	return &DuckDB{DB: db}
}

// Dialect returns the SQL dialect for this engine.
func (d *DuckDB) Dialect() string {
	return config.DriverDuckDB
}

// Query runs a statement and returns every row.
func (d *DuckDB) Query(ctx context.Context, query string, args ...interface{}) (*models.RowBatch, error) {
	return d.QueryLimit(ctx, 0, query, args...)
}

// QueryLimit runs a statement and returns at most maxRows rows.
func (d *DuckDB) QueryLimit(ctx context.Context, maxRows int, query string, args ...interface{}) (*models.RowBatch, error) {
	if d.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows, maxRows, duckdbValue)
}

// Exec runs a statement that returns no rows.
func (d *DuckDB) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	if d.DB == nil {
		return ErrNotConnected
	}
	if _, err := d.DB.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// TableExists reports whether table exists in the main schema.
func (d *DuckDB) TableExists(ctx context.Context, table string) (bool, error) {
	if d.DB == nil {
		return false, ErrNotConnected
	}

	var count int
	err := d.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?`,
		table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return count > 0, nil
}

// Tables lists the tables in the main schema.
func (d *DuckDB) Tables(ctx context.Context) ([]string, error) {
	if d.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := d.DB.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// LoadCSV spools the stream to a temporary file and lets read_csv_auto
// infer the schema, replacing any existing table of the same name.
func (d *DuckDB) LoadCSV(ctx context.Context, table string, r io.Reader) (int64, error) {
	if d.DB == nil {
		return 0, ErrNotConnected
	}
	if err := validateTableName(table); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp("", "covidroom-"+table+"-*.csv")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to spool csv for %s: %w", table, err)
	}
	if written == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyCSV, table)
	}

	// Table names are validated identifiers; the path is quoted as a literal.
	stmt := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		table,
		strings.ReplaceAll(tmp.Name(), "'", "''"),
	)
	if err := d.Exec(ctx, stmt); err != nil {
		return 0, fmt.Errorf("failed to load csv into %s: %w", table, err)
	}

	var count int64
	if err := d.DB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// Ping checks that the database is reachable.
func (d *DuckDB) Ping(ctx context.Context) error {
	if d.DB == nil {
		return ErrNotConnected
	}
	return d.DB.PingContext(ctx)
}

// Close closes the database handle.
func (d *DuckDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// duckdbValue unwraps driver-specific types, descending into LIST, STRUCT
// and MAP values. HUGEINT sums arrive as *big.Int and are handled by
// models.NormalizeValue.
func duckdbValue(v interface{}) interface{} {
	switch x := v.(type) {
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		f := new(big.Float).SetInt(x.Value)
		if x.Scale > 0 {
			scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(x.Scale)), nil))
			f.Quo(f, scale)
		}
		out, _ := f.Float64()
		return out
	case []byte:
		return string(x)
	case duckdb.Map:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[fmt.Sprint(duckdbValue(k))] = duckdbValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = duckdbValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = duckdbValue(e)
		}
		return out
	default:
		return v
	}
}

var _ Engine = (*DuckDB)(nil)
