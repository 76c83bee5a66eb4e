package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
)

type roomFixture struct {
	room    RoomService
	sources DataSourceService
	charts  ChartService
	stats   StatsService
	dir     string
}

func yearCSV(year int) string {
	var b strings.Builder
	b.WriteString("date,state,new_cases,new_deaths\n")
	fmt.Fprintf(&b, "%d-06-30,Texas,%d,%d\n", year, year-2000, 2)
	fmt.Fprintf(&b, "%d-06-30,Ohio,%d,%d\n", year, 1, 1)
	return b.String()
}

// setupRoom wires real services over an in-memory engine. Only the years
// listed in present get a CSV file on disk.
func setupRoom(t *testing.T, present ...int) roomFixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.Nop()

	engine, err := database.NewDuckDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	for _, y := range present {
		writeFile(t, dir, fmt.Sprintf("covid_%d.csv", y), yearCSV(y))
	}

	cfg := &config.Config{Data: config.DataConfig{
		Title:   "COVID-19 Dashboard",
		Sources: config.DefaultDataSources(dir, ""),
	}}
	roomCfg := BuildRoomConfig(cfg)
	sources := NewDataSourceService(engine, roomCfg.DataSources, DataSourceOptions{Concurrency: 2}, log, nil)
	features := NewFeatureService(writeFile(t, dir, "states.json", statesGeoJSON), time.Second, log, nil)
	repo := repository.NewCovidRepository(engine, nil)
	charts := NewChartService(repo, chartYears, 5*time.Second, log, nil)
	stats := NewStatsService(repo, log)

	room, err := NewRoomService(roomCfg, sources, features, charts, stats, log)
	require.NoError(t, err)

	return roomFixture{room: room, sources: sources, charts: charts, stats: stats, dir: dir}
}

func TestRoomStart_AllTablesLoaded(t *testing.T) {
	// Arrange
	f := setupRoom(t, chartYears...)
	ctx := context.Background()

	// Act
	err := f.room.Start(ctx)

	// Assert
	require.NoError(t, err)

	view, err := f.room.Room(ctx)
	require.NoError(t, err)
	assert.True(t, view.Ready)
	assert.Empty(t, view.Missing)
	assert.Equal(t, models.StatusReady, view.Features)
	require.Len(t, view.DataSources, 4)
	for _, ds := range view.DataSources {
		assert.Equal(t, models.StatusReady, ds.Status.Status, ds.TableName)
		assert.Equal(t, int64(2), ds.Status.Rows)
	}
	assert.Contains(t, view.Panels, models.MainPanelID)

	// The stats index is rebuilt once the last table lands.
	st, ok := f.stats.Lookup("Texas")
	require.True(t, ok)
	assert.Equal(t, float64(20+21+22+23), st.TotalCases)
	assert.Equal(t, float64(8), st.TotalDeaths)

	charts, err := f.charts.Charts(ctx)
	require.NoError(t, err)
	assert.Len(t, charts.National, 4)
}

func TestRoomStart_MissingTableKeepsRoomNotReady(t *testing.T) {
	f := setupRoom(t, 2020, 2021, 2022)
	ctx := context.Background()

	err := f.room.Start(ctx)
	require.Error(t, err)

	view, err := f.room.Room(ctx)
	require.NoError(t, err)
	assert.False(t, view.Ready)
	assert.Equal(t, []string{"covid_2023"}, view.Missing)
	assert.Equal(t, 0, f.stats.Len())

	_, err = f.charts.Charts(ctx)
	assert.ErrorIs(t, err, ErrTablesNotReady)
}

func TestRoomReload_CompletesReadiness(t *testing.T) {
	f := setupRoom(t, 2020, 2021, 2022)
	ctx := context.Background()
	_ = f.room.Start(ctx)

	writeFile(t, f.dir, "covid_2023.csv", yearCSV(2023))
	st, err := f.room.Reload(ctx, "covid_2023")

	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, st.Status)

	view, err := f.room.Room(ctx)
	require.NoError(t, err)
	assert.True(t, view.Ready)
	assert.Equal(t, 2, f.stats.Len())
}

func TestNewRoomService_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		room models.RoomConfig
	}{
		{
			name: "no sources",
			room: models.RoomConfig{Title: "t", Panels: map[string]models.Panel{models.MainPanelID: MainPanel}},
		},
		{
			name: "bad table name",
			room: models.RoomConfig{
				Title:       "t",
				DataSources: []models.DataSource{{TableName: "covid-2020", Type: "file", URL: "a.csv"}},
				Panels:      map[string]models.Panel{models.MainPanelID: MainPanel},
			},
		},
		{
			name: "no main panel",
			room: models.RoomConfig{
				Title:       "t",
				DataSources: []models.DataSource{{TableName: "covid_2020", Type: "file", URL: "a.csv"}},
				Panels:      map[string]models.Panel{"side": {Title: "Side", Component: "Side", Placement: "left"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := new(MockDataSourceService)

			_, err := NewRoomService(tt.room, sources, new(MockFeatureService), nil, nil, logger.Nop())

			assert.Error(t, err)
			sources.AssertNotCalled(t, "OnLoaded", mock.Anything)
		})
	}
}

func TestBuildRoomConfig(t *testing.T) {
	cfg := &config.Config{Data: config.DataConfig{
		Title:   "Room",
		Sources: config.DefaultDataSources("data", "https://example.com/quakes.csv"),
	}}

	room := BuildRoomConfig(cfg)

	assert.Equal(t, "Room", room.Title)
	assert.Equal(t, MainPanel, room.Panels[models.MainPanelID])
	require.NotEmpty(t, room.DataSources)
	assert.Equal(t, "covid_2020", room.DataSources[0].TableName)
	assert.Equal(t, filepath.Join("data", "covid_2020.csv"), room.DataSources[0].URL)
	assert.NoError(t, room.Validate())
}
