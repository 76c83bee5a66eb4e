package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stwalsh4118/covidroom/internal/config"
)

// QueryID is the stable identifier of a registered dashboard query.
type QueryID string

// Registered query identifiers. Scatter queries are per year, see ScatterQueryID.
const (
	QueryNationalTrend     QueryID = "national_trend"
	QueryTopStatesByDeaths QueryID = "top_states_by_deaths"
	QueryStateTotals       QueryID = "state_totals"
)

// Number of states returned by the deaths ranking.
const topStatesLimit = 10

// QueryDefinition is one declarative query and the tables it reads.
type QueryDefinition struct {
	ID          QueryID  `json:"id"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Tables      []string `json:"tables"`
}

// QueryRegistry holds query definitions keyed by ID, in registration order.
type QueryRegistry struct {
	defs  map[QueryID]QueryDefinition
	order []QueryID
}

// NewQueryRegistry creates a registry. Later definitions with a duplicate ID
// replace earlier ones.
func NewQueryRegistry(defs ...QueryDefinition) *QueryRegistry {
	r := &QueryRegistry{defs: make(map[QueryID]QueryDefinition, len(defs))}
	for _, d := range defs {
		if _, exists := r.defs[d.ID]; !exists {
			r.order = append(r.order, d.ID)
		}
		r.defs[d.ID] = d
	}
	return r
}

// Get returns the definition for id.
func (r *QueryRegistry) Get(id QueryID) (QueryDefinition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every registered ID in registration order.
func (r *QueryRegistry) IDs() []QueryID {
	out := make([]QueryID, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns every definition in registration order.
func (r *QueryRegistry) Definitions() []QueryDefinition {
	out := make([]QueryDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// RequiredTables returns the sorted union of all tables any query reads.
func (r *QueryRegistry) RequiredTables() []string {
	seen := make(map[string]struct{})
	for _, d := range r.defs {
		for _, t := range d.Tables {
			seen[t] = struct{}{}
		}
	}

	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// CovidTable returns the table name holding one year of COVID data.
func CovidTable(year int) string {
	return fmt.Sprintf("covid_%d", year)
}

// ScatterQueryID returns the ID of the per-state scatter query for year.
func ScatterQueryID(year int) QueryID {
	return QueryID(fmt.Sprintf("scatter_%d", year))
}

// DefaultRegistry builds the dashboard's queries over the given years.
func DefaultRegistry(years []int) *QueryRegistry {
	tables := make([]string, len(years))
	for i, y := range years {
		tables[i] = CovidTable(y)
	}

	defs := []QueryDefinition{
		{
			ID:          QueryNationalTrend,
			Description: "Nationwide new cases and deaths per year",
			SQL:         nationalTrendSQL(years),
			Tables:      tables,
		},
		{
			ID:          QueryTopStatesByDeaths,
			Description: "Top 10 states by total deaths",
			SQL:         topStatesSQL(tables),
			Tables:      tables,
		},
	}
	for i, y := range years {
		defs = append(defs, QueryDefinition{
			ID:          ScatterQueryID(y),
			Description: fmt.Sprintf("New cases vs. new deaths per state, %d", y),
			SQL:         fmt.Sprintf("SELECT state, new_cases, new_deaths FROM %s", tables[i]),
			Tables:      []string{tables[i]},
		})
	}
	defs = append(defs, QueryDefinition{
		ID:          QueryStateTotals,
		Description: "Cases and deaths per state across all years",
		SQL:         stateTotalsSQL(tables),
		Tables:      tables,
	})

	return NewQueryRegistry(defs...)
}

// DefaultCovidRegistry is DefaultRegistry over config.CovidYears.
func DefaultCovidRegistry() *QueryRegistry {
	return DefaultRegistry(config.CovidYears)
}

func nationalTrendSQL(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprintf(
			"SELECT %d AS year, SUM(new_cases) AS new_cases, SUM(new_deaths) AS new_deaths FROM %s",
			y, CovidTable(y),
		)
	}
	return "SELECT * FROM (\n" + strings.Join(parts, "\nUNION ALL\n") + "\n) t ORDER BY year"
}

func unionColumns(tables []string, cols string) string {
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = fmt.Sprintf("SELECT %s FROM %s", cols, t)
	}
	return strings.Join(parts, "\nUNION ALL ")
}

func topStatesSQL(tables []string) string {
	return fmt.Sprintf(
		"SELECT state, SUM(new_deaths) AS total_deaths\nFROM (\n%s\n) t\nGROUP BY state\nORDER BY total_deaths DESC NULLS LAST\nLIMIT %d",
		unionColumns(tables, "state, new_deaths"), topStatesLimit,
	)
}

func stateTotalsSQL(tables []string) string {
	return fmt.Sprintf(
		"SELECT state AS \"State\", SUM(new_cases) AS \"Total Cases\", SUM(new_deaths) AS \"Total Deaths\"\nFROM (\n%s\n) t\nGROUP BY state\nORDER BY state",
		unionColumns(tables, "state, new_cases, new_deaths"),
	)
}
