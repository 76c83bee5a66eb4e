package database

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// Engine-level errors
var (
	ErrNotConnected     = errors.New("database connection not established")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrEmptyCSV         = errors.New("csv has no header row")
)

// Engine is the SQL engine a room's tables are loaded into and queried from.
// Results leave the engine already normalized (see models.NormalizeValue).
type Engine interface {
	// Dialect names the SQL dialect ("duckdb" or "postgres").
	Dialect() string

	// Query runs a statement and returns every row.
	Query(ctx context.Context, query string, args ...interface{}) (*models.RowBatch, error)

	// QueryLimit runs a statement and returns at most maxRows rows,
	// flagging the batch as truncated when more were available.
	QueryLimit(ctx context.Context, maxRows int, query string, args ...interface{}) (*models.RowBatch, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, stmt string, args ...interface{}) error

	// TableExists reports whether a table is registered in the engine.
	TableExists(ctx context.Context, table string) (bool, error)

	// Tables lists the tables currently registered.
	Tables(ctx context.Context) ([]string, error)

	// LoadCSV replaces table with the contents of a headered CSV stream
	// and returns the number of rows loaded.
	LoadCSV(ctx context.Context, table string, r io.Reader) (int64, error)

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error

	// Close releases the engine's resources.
	Close() error
}

// Open creates the engine selected by cfg.Engine.Driver.
func Open(ctx context.Context, cfg *config.Config) (Engine, error) {
	switch cfg.Engine.Driver {
	case config.DriverDuckDB:
		return NewDuckDB(ctx, cfg.Engine.DuckDBPath)
	case config.DriverPostgres:
		return NewPostgresPool(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported engine driver %q", cfg.Engine.Driver)
	}
}

func validateTableName(table string) error {
	if !models.IsSQLIdentifier(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}
