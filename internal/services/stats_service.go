package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StatsService joins state names to their COVID totals for tooltips.
type StatsService interface {
	// Refresh rebuilds the index from the latest state_totals result.
	// The previous index is kept when the query fails.
	Refresh(ctx context.Context) error

	// Lookup returns the totals for a state name. Names are trimmed first.
	Lookup(name string) (models.StateStats, bool)

	// Tooltip renders the display content for an interaction. It never fails;
	// unknown states get NotAvailable values.
	Tooltip(in models.Interaction) models.Tooltip

	// Len returns the number of indexed states.
	Len() int
}

// statsService is the concrete implementation of StatsService.
type statsService struct {
	repo    repository.CovidRepository
	log     *logger.Logger
	printer *message.Printer

	mu    sync.RWMutex
	index map[string]models.StateStats
}

// NewStatsService creates a new instance of StatsService with an empty index.
func NewStatsService(repo repository.CovidRepository, log *logger.Logger) StatsService {
	return &statsService{
		repo:    repo,
		log:     log.WithComponent("stats"),
		printer: message.NewPrinter(language.AmericanEnglish),
		index:   map[string]models.StateStats{},
	}
}

func (s *statsService) Refresh(ctx context.Context) error {
	totals, err := s.repo.StateTotals(ctx)
	if err != nil {
		s.log.Warn("Keeping previous state totals", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to refresh state totals: %w", err)
	}

	index := make(map[string]models.StateStats, len(totals))
	for _, st := range totals {
		name := models.TrimName(st.State)
		if name == "" {
			continue
		}
		st.State = name
		index[name] = st
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	s.log.Info("State totals index rebuilt", map[string]interface{}{
		"states": len(index),
	})
	return nil
}

func (s *statsService) Lookup(name string) (models.StateStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.index[models.TrimName(name)]
	return st, ok
}

func (s *statsService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func (s *statsService) Tooltip(in models.Interaction) models.Tooltip {
	tip := models.Tooltip{
		Name:        in.Name,
		Abbrev:      in.Abbrev,
		TotalCases:  models.NotAvailable,
		TotalDeaths: models.NotAvailable,
	}
	if tip.Name == "" {
		tip.Name = models.UnknownName
	}

	st, ok := s.Lookup(in.Name)
	if !ok {
		return tip
	}

	tip.Found = true
	tip.Stats = &st
	tip.TotalCases = s.formatCount(st.TotalCases)
	tip.TotalDeaths = s.formatCount(st.TotalDeaths)
	if tip.Abbrev == "" {
		tip.Abbrev = st.Abbreviation
	}
	return tip
}

// formatCount renders whole counts with thousands separators and keeps
// fractional values as they are.
func (s *statsService) formatCount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return models.NotAvailable
	}
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return s.printer.Sprintf("%d", int64(v))
	}
	return s.printer.Sprintf("%v", v)
}
