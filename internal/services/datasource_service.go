package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/metrics"
	"github.com/stwalsh4118/covidroom/internal/models"
	"golang.org/x/sync/errgroup"
)

// Data source errors
var (
	ErrTableNotFound = errors.New("data source not registered")
	ErrTableLoading  = errors.New("data source is already loading")
)

// DataSourceService defines the operations on the room's registered tables.
type DataSourceService interface {
	// Sources returns the registered data sources in declaration order.
	Sources() []models.DataSource

	// Status returns the load status of every source in declaration order.
	Status() []models.SourceStatus

	// StatusOf returns the load status of one source.
	StatusOf(table string) (models.SourceStatus, bool)

	// LoadAll loads every source in parallel. Failed sources are recorded
	// and reported together; they do not stop the others.
	LoadAll(ctx context.Context) error

	// Reload reloads a single source.
	// Returns ErrTableNotFound for unregistered tables and ErrTableLoading
	// when a load of the same table is in progress.
	Reload(ctx context.Context, table string) (models.SourceStatus, error)

	// OnLoaded registers a callback invoked after any table loads successfully.
	OnLoaded(fn func(table string))
}

// DataSourceOptions tunes loading.
type DataSourceOptions struct {
	Concurrency  int
	FetchTimeout time.Duration
}

// dataSourceService is the concrete implementation of DataSourceService.
type dataSourceService struct {
	engine  database.Engine
	sources []models.DataSource
	client  *http.Client
	limit   int
	log     *logger.Logger
	metrics *metrics.Manager

	mu        sync.RWMutex
	status    map[string]*models.SourceStatus
	listeners []func(table string)
}

// NewDataSourceService creates a new instance of DataSourceService.
// Every source starts pending.
func NewDataSourceService(engine database.Engine, sources []models.DataSource, opts DataSourceOptions, log *logger.Logger, m *metrics.Manager) DataSourceService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	status := make(map[string]*models.SourceStatus, len(sources))
	for _, ds := range sources {
		status[ds.TableName] = &models.SourceStatus{TableName: ds.TableName, Status: models.StatusPending}
	}

	return &dataSourceService{
		engine:  engine,
		sources: sources,
		client:  &http.Client{Timeout: opts.FetchTimeout},
		limit:   opts.Concurrency,
		log:     log.WithComponent("datasources"),
		metrics: m,
		status:  status,
	}
}

func (s *dataSourceService) Sources() []models.DataSource {
	out := make([]models.DataSource, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *dataSourceService) Status() []models.SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SourceStatus, 0, len(s.sources))
	for _, ds := range s.sources {
		out = append(out, *s.status[ds.TableName])
	}
	return out
}

func (s *dataSourceService) StatusOf(table string) (models.SourceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.status[table]
	if !ok {
		return models.SourceStatus{}, false
	}
	return *st, true
}

func (s *dataSourceService) OnLoaded(fn func(table string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *dataSourceService) LoadAll(ctx context.Context) error {
	s.log.Info("Loading data sources", map[string]interface{}{
		"count":       len(s.sources),
		"concurrency": s.limit,
	})

	var (
		g      errgroup.Group
		errsMu sync.Mutex
		errs   []error
	)
	g.SetLimit(s.limit)

	for _, ds := range s.sources {
		g.Go(func() error {
			if err := s.load(ctx, ds); err != nil {
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d data sources failed to load: %w", len(errs), len(s.sources), errors.Join(errs...))
	}

	s.log.Info("All data sources loaded", map[string]interface{}{
		"count": len(s.sources),
	})
	return nil
}

func (s *dataSourceService) Reload(ctx context.Context, table string) (models.SourceStatus, error) {
	ds, ok := s.find(table)
	if !ok {
		return models.SourceStatus{}, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	err := s.load(ctx, ds)
	st, _ := s.StatusOf(table)
	return st, err
}

func (s *dataSourceService) find(table string) (models.DataSource, bool) {
	for _, ds := range s.sources {
		if ds.TableName == table {
			return ds, true
		}
	}
	return models.DataSource{}, false
}

// load fetches one source and replaces its table, recording the outcome.
func (s *dataSourceService) load(ctx context.Context, ds models.DataSource) error {
	if !s.begin(ds.TableName) {
		return fmt.Errorf("%w: %s", ErrTableLoading, ds.TableName)
	}

	start := time.Now()
	rows, err := s.fetchAndLoad(ctx, ds)
	s.metrics.ObserveTableLoad(ds.TableName, rows, err)

	if err != nil {
		s.log.Error("Failed to load data source", err, map[string]interface{}{
			"table": ds.TableName,
			"url":   ds.URL,
		})
		s.setStatus(ds.TableName, func(st *models.SourceStatus) {
			st.Status = models.StatusError
			st.Error = err.Error()
		})
		return fmt.Errorf("failed to load %s: %w", ds.TableName, err)
	}

	now := time.Now().UTC()
	s.setStatus(ds.TableName, func(st *models.SourceStatus) {
		st.Status = models.StatusReady
		st.Rows = rows
		st.LoadedAt = &now
	})

	s.log.Info("Data source loaded", map[string]interface{}{
		"table":       ds.TableName,
		"rows":        rows,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	s.notify(ds.TableName)
	return nil
}

func (s *dataSourceService) fetchAndLoad(ctx context.Context, ds models.DataSource) (int64, error) {
	body, err := openLocation(ctx, s.client, ds.URL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	return s.engine.LoadCSV(ctx, ds.TableName, body)
}

// begin marks table as loading unless a load is already in flight.
func (s *dataSourceService) begin(table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[table]
	if st.Status == models.StatusLoading {
		return false
	}
	st.Status = models.StatusLoading
	st.Error = ""
	return true
}

func (s *dataSourceService) setStatus(table string, fn func(*models.SourceStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[table]; ok {
		fn(st)
	}
}

func (s *dataSourceService) notify(table string) {
	s.mu.RLock()
	listeners := make([]func(string), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(table)
	}
}
