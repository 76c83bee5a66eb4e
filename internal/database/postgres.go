package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// Postgres is the PostgreSQL engine backed by a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgresPool creates a new PostgreSQL connection pool using pgx.
// It configures the pool based on the provided database configuration,
// tests the connection, and returns a Postgres engine.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	// Build connection string (DSN)
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool settings
	poolConfig.MinConns = int32(cfg.PoolMin)
	poolConfig.MaxConns = int32(cfg.PoolMax)

	return newPostgres(ctx, poolConfig)
}

// NewPostgresFromDSN creates an engine from a connection URL.
func NewPostgresFromDSN(ctx context.Context, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	return newPostgres(ctx, poolConfig)
}

func newPostgres(ctx context.Context, poolConfig *pgxpool.Config) (*Postgres, error) {
	// Set connection timeouts
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection immediately
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

// Dialect returns the SQL dialect for this engine.
func (p *Postgres) Dialect() string {
	return config.DriverPostgres
}

// Query runs a statement and returns every row.
func (p *Postgres) Query(ctx context.Context, query string, args ...interface{}) (*models.RowBatch, error) {
	return p.QueryLimit(ctx, 0, query, args...)
}

// QueryLimit runs a statement and returns at most maxRows rows.
func (p *Postgres) QueryLimit(ctx context.Context, maxRows int, query string, args ...interface{}) (*models.RowBatch, error) {
	if p.Pool == nil {
		return nil, ErrNotConnected
	}

	rows, err := p.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	batch := &models.RowBatch{Columns: cols, Rows: []models.Row{}}
	for rows.Next() {
		if maxRows > 0 && len(batch.Rows) >= maxRows {
			batch.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read result row: %w", err)
		}
		row := make(models.Row, len(cols))
		for i, col := range cols {
			row[col] = models.NormalizeValue(postgresValue(values[i]))
		}
		batch.Rows = append(batch.Rows, row)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	return batch, nil
}

// Exec runs a statement that returns no rows.
func (p *Postgres) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	if p.Pool == nil {
		return ErrNotConnected
	}
	if _, err := p.Pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// TableExists reports whether table exists in the current schema.
func (p *Postgres) TableExists(ctx context.Context, table string) (bool, error) {
	if p.Pool == nil {
		return false, ErrNotConnected
	}

	var exists bool
	err := p.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return exists, nil
}

// Tables lists the tables in the current schema.
func (p *Postgres) Tables(ctx context.Context) ([]string, error) {
	if p.Pool == nil {
		return nil, ErrNotConnected
	}

	rows, err := p.Pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema()
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect tables: %w", err)
	}
	return tables, nil
}

// LoadCSV infers column types from the CSV, recreates the table and fills
// it with COPY inside one transaction.
func (p *Postgres) LoadCSV(ctx context.Context, table string, r io.Reader) (int64, error) {
	if p.Pool == nil {
		return 0, ErrNotConnected
	}
	if err := validateTableName(table); err != nil {
		return 0, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to parse csv for %s: %w", table, err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyCSV, table)
	}

	header := normalizeHeader(records[0])
	body := records[1:]
	kinds := inferColumnKinds(len(header), body)

	rows, err := convertRecords(kinds, body)
	if err != nil {
		return 0, fmt.Errorf("failed to convert csv for %s: %w", table, err)
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ident := pgx.Identifier{table}.Sanitize()
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(ident, header, kinds)); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, header, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit load of %s: %w", table, err)
	}
	return copied, nil
}

// Ping checks if the database connection is alive.
func (p *Postgres) Ping(ctx context.Context) error {
	if p.Pool == nil {
		return ErrNotConnected
	}
	return p.Pool.Ping(ctx)
}

// Close gracefully closes the database connection pool.
func (p *Postgres) Close() error {
	if p.Pool != nil {
		p.Pool.Close()
	}
	return nil
}

// Stats returns statistics about the connection pool.
func (p *Postgres) Stats() *pgxpool.Stat {
	if p.Pool == nil {
		return nil
	}
	return p.Pool.Stat()
}

func createTableSQL(ident string, header []string, kinds []ColumnKind) string {
	cols := make([]string, len(header))
	for i, name := range header {
		cols[i] = pgx.Identifier{name}.Sanitize() + " " + kinds[i].SQLType()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(cols, ", "))
}

// postgresValue unwraps pgx types that do not encode as plain JSON.
func postgresValue(v interface{}) interface{} {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(x).String()
	default:
		return v
	}
}

// IsUndefinedTable reports whether err is PostgreSQL's undefined_table error.
func IsUndefinedTable(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "42P01"
}

var _ Engine = (*Postgres)(nil)
