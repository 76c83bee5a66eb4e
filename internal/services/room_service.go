package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// MainPanel is the single panel registered in the room.
var MainPanel = models.Panel{
	Title:     "Main view",
	Icon:      "map",
	Component: "MainView",
	Placement: "main",
}

// SourceView is a data source together with its live load status.
type SourceView struct {
	models.DataSource
	Status models.SourceStatus `json:"status"`
}

// RoomView is the room shell as served to clients.
type RoomView struct {
	Title       string                  `json:"title"`
	DataSources []SourceView            `json:"dataSources"`
	Panels      map[string]models.Panel `json:"panels"`
	Features    models.QueryStatus      `json:"features"`
	Ready       bool                    `json:"ready"`
	Missing     []string                `json:"missing,omitempty"`
}

// RoomService defines the room shell: configuration, startup loading and
// keeping derived state in step with reloaded tables.
type RoomService interface {
	// Config returns the validated room configuration.
	Config() models.RoomConfig

	// Room returns the configuration with live source status and readiness.
	Room(ctx context.Context) (*RoomView, error)

	// Start loads the state features and every data source. It blocks
	// until both finish and reports their combined failure.
	Start(ctx context.Context) error

	// Reload reloads one data source.
	Reload(ctx context.Context, table string) (models.SourceStatus, error)
}

// BuildRoomConfig builds the room configuration from application config.
func BuildRoomConfig(cfg *config.Config) models.RoomConfig {
	sources := make([]models.DataSource, 0, len(cfg.Data.Sources))
	for _, s := range cfg.Data.Sources {
		sources = append(sources, models.DataSource{
			TableName: s.TableName,
			Type:      s.Type,
			URL:       s.URL,
		})
	}

	return models.RoomConfig{
		Title:       cfg.Data.Title,
		DataSources: sources,
		Panels:      map[string]models.Panel{models.MainPanelID: MainPanel},
	}
}

// roomService is the concrete implementation of RoomService.
type roomService struct {
	room     models.RoomConfig
	sources  DataSourceService
	features FeatureService
	charts   ChartService
	stats    StatsService
	log      *logger.Logger

	refreshMu sync.Mutex
}

// NewRoomService validates room and wires the services that depend on
// table loads. Returns an error when the room configuration is invalid.
func NewRoomService(room models.RoomConfig, sources DataSourceService, features FeatureService, charts ChartService, stats StatsService, log *logger.Logger) (RoomService, error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}

	s := &roomService{
		room:     room,
		sources:  sources,
		features: features,
		charts:   charts,
		stats:    stats,
		log:      log.WithComponent("room"),
	}
	sources.OnLoaded(s.tableLoaded)
	return s, nil
}

func (s *roomService) Config() models.RoomConfig {
	return s.room
}

func (s *roomService) Room(ctx context.Context) (*RoomView, error) {
	missing, err := s.charts.Readiness(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check readiness: %w", err)
	}

	views := make([]SourceView, len(s.room.DataSources))
	for i, ds := range s.room.DataSources {
		st, _ := s.sources.StatusOf(ds.TableName)
		views[i] = SourceView{DataSource: ds, Status: st}
	}

	featureStatus, _ := s.features.Status()

	return &RoomView{
		Title:       s.room.Title,
		DataSources: views,
		Panels:      s.room.Panels,
		Features:    featureStatus,
		Ready:       len(missing) == 0,
		Missing:     missing,
	}, nil
}

func (s *roomService) Start(ctx context.Context) error {
	s.log.Info("Starting room", map[string]interface{}{
		"title":   s.room.Title,
		"sources": len(s.room.DataSources),
	})

	var (
		wg                   sync.WaitGroup
		featureErr, loadErrs error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		featureErr = s.features.Load(ctx)
	}()
	go func() {
		defer wg.Done()
		loadErrs = s.sources.LoadAll(ctx)
	}()
	wg.Wait()

	return errors.Join(featureErr, loadErrs)
}

func (s *roomService) Reload(ctx context.Context, table string) (models.SourceStatus, error) {
	s.log.Info("Reloading data source", map[string]interface{}{
		"table": table,
	})
	return s.sources.Reload(ctx, table)
}

// tableLoaded drops cached charts and rebuilds the stats index once every
// chart table is present.
func (s *roomService) tableLoaded(table string) {
	s.charts.Invalidate()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	ctx := context.Background()
	missing, err := s.charts.Readiness(ctx)
	if err != nil {
		s.log.Error("Failed to check readiness after load", err, map[string]interface{}{
			"table": table,
		})
		return
	}
	if len(missing) > 0 {
		s.log.Debug("Tables still missing", map[string]interface{}{
			"table":   table,
			"missing": missing,
		})
		return
	}

	if err := s.stats.Refresh(ctx); err != nil {
		s.log.Error("Failed to rebuild stats index", err, map[string]interface{}{
			"table": table,
		})
	}
}
