package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/middleware"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
	"github.com/stwalsh4118/covidroom/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter creates a router with the request middleware the server uses.
func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Nop()))
	return router
}

// MockPinger is a mock implementation of Pinger for testing
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockRoomService is a mock implementation of services.RoomService for testing
type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) Config() models.RoomConfig {
	return m.Called().Get(0).(models.RoomConfig)
}

func (m *MockRoomService) Room(ctx context.Context) (*services.RoomView, error) {
	ret := m.Called(ctx)
	view, _ := ret.Get(0).(*services.RoomView)
	return view, ret.Error(1)
}

func (m *MockRoomService) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRoomService) Reload(ctx context.Context, table string) (models.SourceStatus, error) {
	ret := m.Called(ctx, table)
	return ret.Get(0).(models.SourceStatus), ret.Error(1)
}

// MockFeatureService is a mock implementation of services.FeatureService for testing
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
	features, _ := m.Called().Get(0).([]models.StateFeature)
	return features
}

func (m *MockFeatureService) Status() (models.QueryStatus, string) {
	ret := m.Called()
	return ret.Get(0).(models.QueryStatus), ret.String(1)
}

// MockMapService is a mock implementation of services.MapService for testing
type MockMapService struct {
	mock.Mock
}

func (m *MockMapService) Layer() (*services.MapLayer, error) {
	ret := m.Called()
	layer, _ := ret.Get(0).(*services.MapLayer)
	return layer, ret.Error(1)
}

func (m *MockMapService) Pick(lng, lat float64) (int, bool) {
	ret := m.Called(lng, lat)
	return ret.Int(0), ret.Bool(1)
}

func (m *MockMapService) Hover(lat, lng float64) (*services.InteractionView, error) {
	ret := m.Called(lat, lng)
	view, _ := ret.Get(0).(*services.InteractionView)
	return view, ret.Error(1)
}

func (m *MockMapService) Leave() { m.Called() }

func (m *MockMapService) Click(lat, lng float64) (*services.InteractionView, error) {
	ret := m.Called(lat, lng)
	view, _ := ret.Get(0).(*services.InteractionView)
	return view, ret.Error(1)
}

func (m *MockMapService) ClosePopup() { m.Called() }

func (m *MockMapService) Interaction() services.InteractionState {
	return m.Called().Get(0).(services.InteractionState)
}

func (m *MockMapService) OnClick(fn func(models.Interaction)) { m.Called(fn) }

// MockChartService is a mock implementation of services.ChartService for testing
type MockChartService struct {
	mock.Mock
}

func (m *MockChartService) Charts(ctx context.Context) (*models.ChartData, error) {
	ret := m.Called(ctx)
	data, _ := ret.Get(0).(*models.ChartData)
	return data, ret.Error(1)
}

func (m *MockChartService) Query(ctx context.Context, id repository.QueryID) (*models.RowBatch, error) {
	ret := m.Called(ctx, id)
	batch, _ := ret.Get(0).(*models.RowBatch)
	return batch, ret.Error(1)
}

func (m *MockChartService) Readiness(ctx context.Context) ([]string, error) {
	ret := m.Called(ctx)
	missing, _ := ret.Get(0).([]string)
	return missing, ret.Error(1)
}

func (m *MockChartService) Invalidate() { m.Called() }

// MockQueryService is a mock implementation of services.QueryService for testing
type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Execute(ctx context.Context, sql string) (*services.QueryResult, error) {
	ret := m.Called(ctx, sql)
	res, _ := ret.Get(0).(*services.QueryResult)
	return res, ret.Error(1)
}

func (m *MockQueryService) History() []services.HistoryEntry {
	entries, _ := m.Called().Get(0).([]services.HistoryEntry)
	return entries
}
