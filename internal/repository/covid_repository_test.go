package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/covidroom/internal/database"
)

var testYears = []int{2020, 2021, 2022, 2023}

// setupTestEngine opens an in-memory DuckDB engine.
func setupTestEngine(t *testing.T) *database.DuckDB {
	t.Helper()
	engine, err := database.NewDuckDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// loadSyntheticYear loads covid_<year> with `states` states. State i reports
// i*100+year%10 new cases and i*10 new deaths.
func loadSyntheticYear(t *testing.T, engine database.Engine, year, states int) {
	t.Helper()

	var b strings.Builder
	b.WriteString("date,state,new_cases,new_deaths\n")
	for i := 1; i <= states; i++ {
		fmt.Fprintf(&b, "%d-12-31,State %02d,%d,%d\n", year, i, i*100+year%10, i*10)
	}

	_, err := engine.LoadCSV(context.Background(), CovidTable(year), strings.NewReader(b.String()))
	require.NoError(t, err)
}

func setupLoadedRepository(t *testing.T, states int) CovidRepository {
	t.Helper()
	engine := setupTestEngine(t)
	for _, y := range testYears {
		loadSyntheticYear(t, engine, y, states)
	}
	return NewCovidRepository(engine, DefaultRegistry(testYears))
}

func TestReadiness_ReportsMissingTables(t *testing.T) {
	// Arrange
	engine := setupTestEngine(t)
	repo := NewCovidRepository(engine, DefaultRegistry(testYears))
	ctx := context.Background()

	// Act
	missing, err := repo.Readiness(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"covid_2020", "covid_2021", "covid_2022", "covid_2023"}, missing)

	loadSyntheticYear(t, engine, 2020, 3)
	loadSyntheticYear(t, engine, 2022, 3)

	missing, err = repo.Readiness(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"covid_2021", "covid_2023"}, missing)
}

func TestReadiness_AllPresent(t *testing.T) {
	repo := setupLoadedRepository(t, 3)

	missing, err := repo.Readiness(context.Background())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestNationalTrend_FourRowsAscending(t *testing.T) {
	const states = 5
	repo := setupLoadedRepository(t, states)

	trend, err := repo.NationalTrend(context.Background())
	require.NoError(t, err)
	require.Len(t, trend, 4)

	for i, year := range testYears {
		// sum over i=1..5 of i*100 + year%10, and i*10
		wantCases := float64(1500 + states*(year%10))
		wantDeaths := float64(150)

		assert.Equal(t, year, trend[i].Year)
		assert.Equal(t, wantCases, trend[i].NewCases, "cases for %d", year)
		assert.Equal(t, wantDeaths, trend[i].NewDeaths, "deaths for %d", year)
	}
}

func TestTopStatesByDeaths_OrderedAndTruncated(t *testing.T) {
	repo := setupLoadedRepository(t, 25)

	top, err := repo.TopStatesByDeaths(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 10)

	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].TotalDeaths, top[i].TotalDeaths)
	}
	assert.Equal(t, "State 25", top[0].State)
	assert.Equal(t, float64(25*10*4), top[0].TotalDeaths)
}

func TestTopStatesByDeaths_FewerThanTenStates(t *testing.T) {
	repo := setupLoadedRepository(t, 4)

	top, err := repo.TopStatesByDeaths(context.Background())
	require.NoError(t, err)
	assert.Len(t, top, 4)
}

func TestScatter(t *testing.T) {
	repo := setupLoadedRepository(t, 3)

	points, err := repo.Scatter(context.Background(), 2021)
	require.NoError(t, err)
	require.Len(t, points, 3)

	byState := map[string]float64{}
	for _, p := range points {
		byState[p.State] = p.NewCases
	}
	assert.Equal(t, float64(201), byState["State 02"])
}

func TestStateTotals(t *testing.T) {
	repo := setupLoadedRepository(t, 2)

	totals, err := repo.StateTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, "State 01", totals[0].State)
	// 100+0 + 100+1 + 100+2 + 100+3
	assert.Equal(t, float64(406), totals[0].TotalCases)
	assert.Equal(t, float64(40), totals[0].TotalDeaths)
}

func TestRun_UnknownQuery(t *testing.T) {
	repo := NewCovidRepository(setupTestEngine(t), nil)

	_, err := repo.Run(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestRun_MissingTableFails(t *testing.T) {
	repo := NewCovidRepository(setupTestEngine(t), nil)

	_, err := repo.Run(context.Background(), QueryNationalTrend)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownQuery)
}

func TestRun_NormalizesIntegers(t *testing.T) {
	repo := setupLoadedRepository(t, 2)

	batch, err := repo.Run(context.Background(), QueryNationalTrend)
	require.NoError(t, err)
	for _, row := range batch.Rows {
		_, isFloat := row["new_cases"].(float64)
		assert.True(t, isFloat, "new_cases should be float64, got %T", row["new_cases"])
		_, isFloat = row["year"].(float64)
		assert.True(t, isFloat, "year should be float64, got %T", row["year"])
	}
}
