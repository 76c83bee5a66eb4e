package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/models"
)

func setupQueryEngine(t *testing.T) *database.DuckDB {
	t.Helper()
	engine, err := database.NewDuckDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	csv := "date,state,new_cases,new_deaths\n" +
		"2023-01-01,Texas,10,1\n" +
		"2023-01-02,Texas,20,2\n" +
		"2023-01-01,Ohio,5,0\n"
	_, err = engine.LoadCSV(context.Background(), "covid_2023", strings.NewReader(csv))
	require.NoError(t, err)
	return engine
}

func TestExecute_ReturnsRows(t *testing.T) {
	// Arrange
	svc := NewQueryService(setupQueryEngine(t), QueryOptions{Timeout: 5 * time.Second, MaxRows: 100}, logger.Nop(), nil)

	// Act
	res, err := svc.Execute(context.Background(), "  SELECT state, SUM(new_cases) AS cases FROM covid_2023 GROUP BY state ORDER BY state  ")

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "SELECT state, SUM(new_cases) AS cases FROM covid_2023 GROUP BY state ORDER BY state", res.SQL)
	assert.Equal(t, []string{"state", "cases"}, res.Columns)
	require.Equal(t, 2, res.RowCount)
	assert.Equal(t, "Ohio", res.Rows[0]["state"])
	assert.Equal(t, float64(30), res.Rows[1]["cases"])
	assert.False(t, res.Truncated)

	history := svc.History()
	require.Len(t, history, 1)
	assert.Equal(t, res.ID, history[0].ID)
	assert.Equal(t, models.StatusReady, history[0].Status)
	assert.Equal(t, 2, history[0].RowCount)
}

func TestExecute_Truncates(t *testing.T) {
	svc := NewQueryService(setupQueryEngine(t), QueryOptions{MaxRows: 2}, logger.Nop(), nil)

	res, err := svc.Execute(context.Background(), "SELECT * FROM covid_2023")

	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecute_EmptyQuery(t *testing.T) {
	engine := new(MockEngine)
	svc := NewQueryService(engine, QueryOptions{}, logger.Nop(), nil)

	_, err := svc.Execute(context.Background(), " \n\t")

	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, svc.History())
	engine.AssertNotCalled(t, "QueryLimit", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_EngineError(t *testing.T) {
	svc := NewQueryService(setupQueryEngine(t), QueryOptions{MaxRows: 10}, logger.Nop(), nil)

	_, err := svc.Execute(context.Background(), "SELECT * FROM covid_1999")

	require.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, err.Error(), "covid_1999")

	history := svc.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusError, history[0].Status)
	assert.Equal(t, err.Error(), history[0].Error)
}

func TestExecute_Timeout(t *testing.T) {
	engine := new(MockEngine)
	engine.On("QueryLimit", mock.Anything, 10, "SELECT 1").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	svc := NewQueryService(engine, QueryOptions{Timeout: 10 * time.Millisecond, MaxRows: 10}, logger.Nop(), nil)

	_, err := svc.Execute(context.Background(), "SELECT 1")

	assert.ErrorIs(t, err, ErrQueryTimeout)
	assert.NotErrorIs(t, err, ErrQueryFailed)
}

func TestHistory_NewestFirstAndCapped(t *testing.T) {
	engine := new(MockEngine)
	engine.On("QueryLimit", mock.Anything, 0, mock.Anything).Return(&models.RowBatch{}, nil)
	svc := NewQueryService(engine, QueryOptions{}, logger.Nop(), nil)

	total := MaxHistoryEntries + 5
	for i := 0; i < total; i++ {
		_, err := svc.Execute(context.Background(), fmt.Sprintf("SELECT %d", i))
		require.NoError(t, err)
	}

	history := svc.History()
	require.Len(t, history, MaxHistoryEntries)
	assert.Equal(t, fmt.Sprintf("SELECT %d", total-1), history[0].SQL)
	assert.Equal(t, "SELECT 5", history[len(history)-1].SQL)
}

func TestRootMessage(t *testing.T) {
	base := errors.New("Catalog Error: Table with name nope does not exist!")
	wrapped := fmt.Errorf("query failed: %w", fmt.Errorf("inner: %w", base))

	assert.Equal(t, base.Error(), rootMessage(wrapped))
	assert.Equal(t, "plain", rootMessage(errors.New("plain")))
}
