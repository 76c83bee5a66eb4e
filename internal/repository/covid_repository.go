package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// ErrUnknownQuery is returned when a query ID is not registered.
var ErrUnknownQuery = errors.New("unknown query")

// CovidRepository defines data access for the dashboard's registered queries.
type CovidRepository interface {
	// Registry returns the query definitions this repository runs.
	Registry() *QueryRegistry

	// Readiness returns the required tables that are not loaded yet.
	// An empty slice means every registered query can run.
	Readiness(ctx context.Context) ([]string, error)

	// Run executes a registered query and returns its normalized rows.
	Run(ctx context.Context, id QueryID) (*models.RowBatch, error)

	// NationalTrend returns one row per year ordered by ascending year.
	NationalTrend(ctx context.Context) ([]models.NationalTrend, error)

	// TopStatesByDeaths returns at most 10 states ordered by total deaths, highest first.
	TopStatesByDeaths(ctx context.Context) ([]models.StateDeaths, error)

	// Scatter returns every state row of one year.
	Scatter(ctx context.Context, year int) ([]models.ScatterPoint, error)

	// StateTotals returns per-state cases and deaths summed across all years.
	StateTotals(ctx context.Context) ([]models.StateStats, error)
}

// covidRepository is the concrete implementation of CovidRepository.
type covidRepository struct {
	engine   database.Engine
	registry *QueryRegistry
}

// NewCovidRepository creates a new instance of CovidRepository.
func NewCovidRepository(engine database.Engine, registry *QueryRegistry) CovidRepository {
	if registry == nil {
		registry = DefaultCovidRegistry()
	}
	return &covidRepository{
		engine:   engine,
		registry: registry,
	}
}

func (r *covidRepository) Registry() *QueryRegistry {
	return r.registry
}

func (r *covidRepository) Readiness(ctx context.Context) ([]string, error) {
	missing := []string{}
	for _, table := range r.registry.RequiredTables() {
		ok, err := r.engine.TableExists(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !ok {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

func (r *covidRepository) Run(ctx context.Context, id QueryID) (*models.RowBatch, error) {
	def, ok := r.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, id)
	}

	batch, err := r.engine.Query(ctx, def.SQL)
	if err != nil {
		return nil, fmt.Errorf("failed to run query %s: %w", id, err)
	}
	return models.NormalizeBatch(batch), nil
}

func (r *covidRepository) NationalTrend(ctx context.Context) ([]models.NationalTrend, error) {
	batch, err := r.Run(ctx, QueryNationalTrend)
	if err != nil {
		return nil, err
	}

	results := make([]models.NationalTrend, 0, batch.Len())
	for _, row := range batch.Rows {
		results = append(results, models.NationalTrendFromRow(row))
	}
	return results, nil
}

func (r *covidRepository) TopStatesByDeaths(ctx context.Context) ([]models.StateDeaths, error) {
	batch, err := r.Run(ctx, QueryTopStatesByDeaths)
	if err != nil {
		return nil, err
	}

	results := make([]models.StateDeaths, 0, batch.Len())
	for _, row := range batch.Rows {
		results = append(results, models.StateDeathsFromRow(row))
	}
	return results, nil
}

func (r *covidRepository) Scatter(ctx context.Context, year int) ([]models.ScatterPoint, error) {
	batch, err := r.Run(ctx, ScatterQueryID(year))
	if err != nil {
		return nil, err
	}

	results := make([]models.ScatterPoint, 0, batch.Len())
	for _, row := range batch.Rows {
		results = append(results, models.ScatterPointFromRow(row))
	}
	return results, nil
}

func (r *covidRepository) StateTotals(ctx context.Context) ([]models.StateStats, error) {
	batch, err := r.Run(ctx, QueryStateTotals)
	if err != nil {
		return nil, err
	}

	results := make([]models.StateStats, 0, batch.Len())
	for _, row := range batch.Rows {
		results = append(results, models.StateStatsFromRow(row))
	}
	return results, nil
}
