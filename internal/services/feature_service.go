package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/metrics"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// Feature loader errors
var (
	ErrFeaturesLoading    = errors.New("state features are still loading")
	ErrFeaturesLoadFailed = errors.New("state features failed to load")
)

// FeatureLoadFailedPrefix starts the message shown in place of the map when
// the feature file cannot be fetched.
const FeatureLoadFailedPrefix = "Failed to load data: "

// FeatureService defines the state-feature loader.
type FeatureService interface {
	// Load fetches the feature collection. Features are immutable once loaded.
	Load(ctx context.Context) error

	// Collection returns the loaded collection.
	// Returns ErrFeaturesLoading before Load completes and ErrFeaturesLoadFailed
	// (carrying the user-facing message) when it failed.
	Collection() (*models.StateFeatureCollection, error)

	// Features returns the loaded features, or nil while none are available.
	Features() []models.StateFeature

	// Status returns the loader state and, on failure, the user-facing message.
	Status() (models.QueryStatus, string)
}

// featureService is the concrete implementation of FeatureService.
type featureService struct {
	location string
	client   *http.Client
	log      *logger.Logger
	metrics  *metrics.Manager

	mu         sync.RWMutex
	status     models.QueryStatus
	message    string
	collection *models.StateFeatureCollection
}

// NewFeatureService creates a loader for the GeoJSON at location (path or URL).
func NewFeatureService(location string, fetchTimeout time.Duration, log *logger.Logger, m *metrics.Manager) FeatureService {
	return &featureService{
		location: location,
		client:   &http.Client{Timeout: fetchTimeout},
		log:      log.WithComponent("features"),
		metrics:  m,
		status:   models.StatusLoading,
	}
}

func (s *featureService) Load(ctx context.Context) error {
	s.mu.Lock()
	s.status = models.StatusLoading
	s.message = ""
	s.mu.Unlock()

	fc, err := s.fetch(ctx)
	if err != nil {
		msg := FeatureLoadFailedPrefix + err.Error()
		s.log.Error("Failed to load state features", err, map[string]interface{}{
			"location": s.location,
		})

		s.mu.Lock()
		s.status = models.StatusError
		s.message = msg
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFeaturesLoadFailed, msg)
	}

	s.mu.Lock()
	s.status = models.StatusReady
	s.collection = fc
	s.mu.Unlock()

	s.metrics.SetFeatures(len(fc.Features))
	s.log.Info("State features loaded", map[string]interface{}{
		"location": s.location,
		"count":    len(fc.Features),
	})
	return nil
}

func (s *featureService) fetch(ctx context.Context) (*models.StateFeatureCollection, error) {
	body, err := openLocation(ctx, s.client, s.location)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	var fc models.StateFeatureCollection
	if err := json.NewDecoder(body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	if fc.Features == nil {
		fc.Features = []models.StateFeature{}
	}

	skipped := 0
	for i := range fc.Features {
		if fc.Features[i].Geometry.IsEmpty() {
			skipped++
		}
	}
	if skipped > 0 {
		s.log.Warn("Features without a supported geometry will not render", map[string]interface{}{
			"location": s.location,
			"skipped":  skipped,
		})
	}
	return &fc, nil
}

func (s *featureService) Collection() (*models.StateFeatureCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.status {
	case models.StatusReady:
		return s.collection, nil
	case models.StatusError:
		return nil, fmt.Errorf("%w: %s", ErrFeaturesLoadFailed, s.message)
	default:
		return nil, ErrFeaturesLoading
	}
}

func (s *featureService) Features() []models.StateFeature {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.collection == nil {
		return nil
	}
	return s.collection.Features
}

func (s *featureService) Status() (models.QueryStatus, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.message
}
