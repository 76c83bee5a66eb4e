package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/metrics"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrTablesNotReady is returned while any table a chart reads is missing.
var ErrTablesNotReady = errors.New("required tables are not loaded")

// NotReadyError reports which tables a refused chart request was waiting on.
// It matches ErrTablesNotReady with errors.Is.
type NotReadyError struct {
	Missing []string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrTablesNotReady, strings.Join(e.Missing, ", "))
}

func (e *NotReadyError) Unwrap() error { return ErrTablesNotReady }

// ChartService defines the chart views.
type ChartService interface {
	// Charts returns the full chart batch: national trend, top states and
	// one scatter series per year. No query runs until every required table
	// exists; the batch then runs once and is cached until Invalidate.
	Charts(ctx context.Context) (*models.ChartData, error)

	// Query runs one registered query, gated on the tables it reads.
	Query(ctx context.Context, id repository.QueryID) (*models.RowBatch, error)

	// Readiness returns the required tables that are not loaded yet.
	Readiness(ctx context.Context) ([]string, error)

	// Invalidate drops the cached batch.
	Invalidate()
}

// chartService is the concrete implementation of ChartService.
type chartService struct {
	repo    repository.CovidRepository
	years   []int
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Manager
	group   singleflight.Group

	mu         sync.RWMutex
	cached     *models.ChartData
	generation uint64
}

// NewChartService creates a new instance of ChartService. timeout bounds one
// batch run.
func NewChartService(repo repository.CovidRepository, years []int, timeout time.Duration, log *logger.Logger, m *metrics.Manager) ChartService {
	return &chartService{
		repo:    repo,
		years:   years,
		timeout: timeout,
		log:     log.WithComponent("charts"),
		metrics: m,
	}
}

func (s *chartService) Readiness(ctx context.Context) ([]string, error) {
	return s.repo.Readiness(ctx)
}

func (s *chartService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.generation++
	s.mu.Unlock()
}

func (s *chartService) Charts(ctx context.Context) (*models.ChartData, error) {
	s.mu.RLock()
	cached, gen := s.cached, s.generation
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	if err := s.checkReady(ctx, s.repo.Registry().RequiredTables()); err != nil {
		return nil, err
	}

	// Concurrent callers share one batch. The batch outlives a caller that
	// goes away so the others still get a result.
	v, err, _ := s.group.Do(fmt.Sprintf("charts-%d", gen), func() (interface{}, error) {
		s.mu.RLock()
		done := s.cached
		s.mu.RUnlock()
		if done != nil {
			return done, nil
		}

		batchCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			batchCtx, cancel = context.WithTimeout(batchCtx, s.timeout)
			defer cancel()
		}

		data, err := s.runBatch(batchCtx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.generation == gen {
			s.cached = data
		}
		s.mu.Unlock()
		return data, nil
	})
	if err != nil {
		s.log.Error("Chart batch failed", err, nil)
		return nil, err
	}
	return v.(*models.ChartData), nil
}

// runBatch issues every chart query concurrently.
func (s *chartService) runBatch(ctx context.Context) (*models.ChartData, error) {
	s.metrics.ChartBatchIssued()
	start := time.Now()

	data := &models.ChartData{Scatter: make([]models.ScatterSeries, len(s.years))}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		qs := time.Now()
		data.National, err = s.repo.NationalTrend(gctx)
		s.metrics.ObserveQuery(string(repository.QueryNationalTrend), err, time.Since(qs))
		return err
	})
	g.Go(func() error {
		var err error
		qs := time.Now()
		data.TopStates, err = s.repo.TopStatesByDeaths(gctx)
		s.metrics.ObserveQuery(string(repository.QueryTopStatesByDeaths), err, time.Since(qs))
		return err
	})
	for i, year := range s.years {
		g.Go(func() error {
			qs := time.Now()
			points, err := s.repo.Scatter(gctx, year)
			s.metrics.ObserveQuery(string(repository.ScatterQueryID(year)), err, time.Since(qs))
			if err != nil {
				return err
			}
			data.Scatter[i] = models.ScatterSeries{Year: year, Points: points}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("chart batch failed: %w", err)
	}

	s.log.Info("Chart batch completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"top_states":  len(data.TopStates),
	})
	return data, nil
}

func (s *chartService) Query(ctx context.Context, id repository.QueryID) (*models.RowBatch, error) {
	def, ok := s.repo.Registry().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnknownQuery, id)
	}

	if err := s.checkReady(ctx, def.Tables); err != nil {
		return nil, err
	}

	start := time.Now()
	batch, err := s.repo.Run(ctx, id)
	s.metrics.ObserveQuery(string(id), err, time.Since(start))
	if err != nil {
		s.log.Error("Chart query failed", err, map[string]interface{}{
			"query": string(id),
		})
		return nil, err
	}
	return batch, nil
}

// checkReady fails with ErrTablesNotReady when any of tables is missing.
func (s *chartService) checkReady(ctx context.Context, tables []string) error {
	missing, err := s.repo.Readiness(ctx)
	if err != nil {
		return fmt.Errorf("failed to check readiness: %w", err)
	}

	want := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		want[t] = struct{}{}
	}

	var absent []string
	for _, t := range missing {
		if _, ok := want[t]; ok {
			absent = append(absent, t)
		}
	}
	if len(absent) == 0 {
		return nil
	}

	s.metrics.ChartNotReady()
	s.log.Debug("Charts waiting for tables", map[string]interface{}{
		"missing": absent,
	})
	return &NotReadyError{Missing: absent}
}
