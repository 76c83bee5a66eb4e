package services

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
)

// MockEngine is a mock implementation of database.Engine for testing
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Dialect() string { return "duckdb" }

func (m *MockEngine) Query(ctx context.Context, query string, args ...interface{}) (*models.RowBatch, error) {
	return m.QueryLimit(ctx, 0, query, args...)
}

func (m *MockEngine) QueryLimit(ctx context.Context, maxRows int, query string, args ...interface{}) (*models.RowBatch, error) {
	ret := m.Called(ctx, maxRows, query)
	batch, _ := ret.Get(0).(*models.RowBatch)
	return batch, ret.Error(1)
}

func (m *MockEngine) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	return m.Called(ctx, stmt).Error(0)
}

func (m *MockEngine) TableExists(ctx context.Context, table string) (bool, error) {
	ret := m.Called(ctx, table)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockEngine) Tables(ctx context.Context) ([]string, error) {
	ret := m.Called(ctx)
	tables, _ := ret.Get(0).([]string)
	return tables, ret.Error(1)
}

// LoadCSV drains r so expectations can match on the CSV text.
func (m *MockEngine) LoadCSV(ctx context.Context, table string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	ret := m.Called(ctx, table, string(data))
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *MockEngine) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEngine) Close() error { return nil }

// MockCovidRepository is a mock implementation of repository.CovidRepository for testing
type MockCovidRepository struct {
	mock.Mock
	registry *repository.QueryRegistry
}

func newMockCovidRepository() *MockCovidRepository {
	return &MockCovidRepository{registry: repository.DefaultCovidRegistry()}
}

func (m *MockCovidRepository) Registry() *repository.QueryRegistry { return m.registry }

func (m *MockCovidRepository) Readiness(ctx context.Context) ([]string, error) {
	ret := m.Called(ctx)
	missing, _ := ret.Get(0).([]string)
	return missing, ret.Error(1)
}

func (m *MockCovidRepository) Run(ctx context.Context, id repository.QueryID) (*models.RowBatch, error) {
	ret := m.Called(ctx, id)
	batch, _ := ret.Get(0).(*models.RowBatch)
	return batch, ret.Error(1)
}

func (m *MockCovidRepository) NationalTrend(ctx context.Context) ([]models.NationalTrend, error) {
	ret := m.Called(ctx)
	out, _ := ret.Get(0).([]models.NationalTrend)
	return out, ret.Error(1)
}

func (m *MockCovidRepository) TopStatesByDeaths(ctx context.Context) ([]models.StateDeaths, error) {
	ret := m.Called(ctx)
	out, _ := ret.Get(0).([]models.StateDeaths)
	return out, ret.Error(1)
}

func (m *MockCovidRepository) Scatter(ctx context.Context, year int) ([]models.ScatterPoint, error) {
	ret := m.Called(ctx, year)
	out, _ := ret.Get(0).([]models.ScatterPoint)
	return out, ret.Error(1)
}

func (m *MockCovidRepository) StateTotals(ctx context.Context) ([]models.StateStats, error) {
	ret := m.Called(ctx)
	out, _ := ret.Get(0).([]models.StateStats)
	return out, ret.Error(1)
}

// MockFeatureService is a mock implementation of FeatureService for testing
type MockFeatureService struct {
	mock.Mock
}

func (m *MockFeatureService) Load(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockFeatureService) Collection() (*models.StateFeatureCollection, error) {
	ret := m.Called()
	fc, _ := ret.Get(0).(*models.StateFeatureCollection)
	return fc, ret.Error(1)
}

func (m *MockFeatureService) Features() []models.StateFeature {
	ret := m.Called()
	features, _ := ret.Get(0).([]models.StateFeature)
	return features
}

func (m *MockFeatureService) Status() (models.QueryStatus, string) {
	ret := m.Called()
	return ret.Get(0).(models.QueryStatus), ret.String(1)
}

// MockDataSourceService is a mock implementation of DataSourceService for testing
type MockDataSourceService struct {
	mock.Mock
}

func (m *MockDataSourceService) Sources() []models.DataSource {
	sources, _ := m.Called().Get(0).([]models.DataSource)
	return sources
}

func (m *MockDataSourceService) Status() []models.SourceStatus {
	status, _ := m.Called().Get(0).([]models.SourceStatus)
	return status
}

func (m *MockDataSourceService) StatusOf(table string) (models.SourceStatus, bool) {
	ret := m.Called(table)
	return ret.Get(0).(models.SourceStatus), ret.Bool(1)
}

func (m *MockDataSourceService) LoadAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDataSourceService) Reload(ctx context.Context, table string) (models.SourceStatus, error) {
	ret := m.Called(ctx, table)
	return ret.Get(0).(models.SourceStatus), ret.Error(1)
}

func (m *MockDataSourceService) OnLoaded(fn func(table string)) {
	m.Called(fn)
}
