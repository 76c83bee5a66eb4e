package services

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Map view errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNoFeatureAtPoint   = errors.New("no feature at point")
)

// HighlightColor is the fill of the hovered element.
var HighlightColor = []int{255, 140, 0, 255}

// ViewState is the initial camera over the continental US.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Bearing   float64 `json:"bearing"`
	Pitch     float64 `json:"pitch"`
}

// DefaultViewState centers the map on the continental US.
var DefaultViewState = ViewState{Latitude: 37.8, Longitude: -96, Zoom: 3.5}

// LayerElement is one rendered feature of the map layer.
type LayerElement struct {
	Index     int              `json:"index"`
	Name      string           `json:"name"`
	Abbrev    string           `json:"abbrev,omitempty"`
	Position  *[2]float64      `json:"position,omitempty"`
	Geometry  *models.Geometry `json:"geometry,omitempty"`
	FillColor []int            `json:"fill_color"`
	Radius    float64          `json:"radius"`
	Hovered   bool             `json:"hovered"`
	Selected  bool             `json:"selected"`
}

// MapLayer is the derived layer: exactly one element per feature.
type MapLayer struct {
	View     ViewState      `json:"view"`
	Count    int            `json:"count"`
	Elements []LayerElement `json:"elements"`
}

// InteractionView pairs an interaction with its tooltip content.
type InteractionView struct {
	models.Interaction
	Tooltip models.Tooltip `json:"tooltip"`
}

// InteractionState is the current hover and popup selection.
type InteractionState struct {
	Hover    *InteractionView `json:"hover"`
	Selected *InteractionView `json:"selected"`
}

// MapOptions configures rendering and picking.
type MapOptions struct {
	FillColor  []int
	Radius     float64
	PickRadius float64
}

// MapService defines the map view: layer derivation, picking and the single
// active hover/selection.
type MapService interface {
	// Layer derives the layer from the features and current interaction.
	// Returns ErrFeaturesLoading/ErrFeaturesLoadFailed while no features exist.
	Layer() (*MapLayer, error)

	// Pick resolves a coordinate to at most one feature index.
	Pick(lng, lat float64) (int, bool)

	// Hover replaces the hovered interaction; it is cleared when nothing is picked.
	Hover(lat, lng float64) (*InteractionView, error)

	// Leave clears the hovered interaction.
	Leave()

	// Click selects the picked feature and invokes the click callback.
	// Returns ErrNoFeatureAtPoint when nothing is picked.
	Click(lat, lng float64) (*InteractionView, error)

	// ClosePopup clears the selection.
	ClosePopup()

	// Interaction returns the current hover and selection with fresh tooltips.
	Interaction() InteractionState

	// OnClick registers the optional click callback.
	OnClick(fn func(models.Interaction))
}

// mapService is the concrete implementation of MapService.
type mapService struct {
	features FeatureService
	stats    StatsService
	opts     MapOptions
	log      *logger.Logger

	mu       sync.RWMutex
	hover    *models.Interaction
	selected *models.Interaction
	onClick  func(models.Interaction)
}

// NewMapService creates a new instance of MapService.
func NewMapService(features FeatureService, stats StatsService, opts MapOptions, log *logger.Logger) MapService {
	return &mapService{
		features: features,
		stats:    stats,
		opts:     opts,
		log:      log.WithComponent("map"),
	}
}

func (s *mapService) Layer() (*MapLayer, error) {
	fc, err := s.features.Collection()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	hover, selected := s.hover, s.selected
	s.mu.RUnlock()

	return deriveLayer(fc.Features, hover, selected, s.opts), nil
}

// deriveLayer is a pure function of its inputs.
func deriveLayer(features []models.StateFeature, hover, selected *models.Interaction, opts MapOptions) *MapLayer {
	layer := &MapLayer{
		View:     DefaultViewState,
		Count:    len(features),
		Elements: make([]LayerElement, len(features)),
	}

	for i := range features {
		f := &features[i]
		el := LayerElement{
			Index:     i,
			Name:      f.DisplayName(),
			Abbrev:    f.Properties.Abbrev,
			FillColor: opts.FillColor,
			Radius:    opts.Radius,
			Hovered:   hover != nil && hover.FeatureIndex == i,
			Selected:  selected != nil && selected.FeatureIndex == i,
		}
		if el.Hovered {
			el.FillColor = HighlightColor
		}

		switch f.Geometry.Type {
		case models.GeometryPoint:
			pos := f.Geometry.Point
			el.Position = &pos
		case models.GeometryPolygon, models.GeometryMultiPolygon:
			g := f.Geometry
			el.Geometry = &g
			if lng, lat, ok := g.Anchor(); ok {
				el.Position = &[2]float64{lng, lat}
			}
		}

		layer.Elements[i] = el
	}
	return layer
}

func (s *mapService) Pick(lng, lat float64) (int, bool) {
	return pickFeature(s.features.Features(), lng, lat, s.opts.PickRadius)
}

// pickFeature prefers the first polygon containing the point, then the
// nearest point feature within radius degrees.
func pickFeature(features []models.StateFeature, lng, lat, radius float64) (int, bool) {
	for i := range features {
		g := features[i].Geometry
		if g.Type != models.GeometryPoint && g.Contains(lng, lat) {
			return i, true
		}
	}

	best, bestDist := -1, math.Inf(1)
	for i := range features {
		g := features[i].Geometry
		if g.Type != models.GeometryPoint {
			continue
		}
		d := math.Hypot(g.Point[0]-lng, g.Point[1]-lat)
		if d <= radius && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

func validateCoordinates(lat, lng float64) error {
	if lat < MinLatitude || lat > MaxLatitude {
		return fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		return fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}
	return nil
}

// resolve picks the feature under (lat, lng) and builds its interaction.
func (s *mapService) resolve(lat, lng float64) (*models.Interaction, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		s.log.Warn("Invalid coordinates provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, err
	}

	features := s.features.Features()
	if features == nil {
		if _, err := s.features.Collection(); err != nil {
			return nil, err
		}
	}

	idx, ok := pickFeature(features, lng, lat, s.opts.PickRadius)
	if !ok {
		return nil, nil
	}
	in := models.NewInteraction(lng, lat, idx, &features[idx])
	return &in, nil
}

func (s *mapService) Hover(lat, lng float64) (*InteractionView, error) {
	in, err := s.resolve(lat, lng)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.hover = in
	s.mu.Unlock()

	if in == nil {
		return nil, nil
	}
	return s.view(in), nil
}

func (s *mapService) Leave() {
	s.mu.Lock()
	s.hover = nil
	s.mu.Unlock()
}

func (s *mapService) Click(lat, lng float64) (*InteractionView, error) {
	in, err := s.resolve(lat, lng)
	if err != nil {
		return nil, err
	}
	if in == nil {
		s.log.Debug("No feature at click point", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, ErrNoFeatureAtPoint
	}

	s.mu.Lock()
	s.selected = in
	cb := s.onClick
	s.mu.Unlock()

	s.log.Info("State selected", map[string]interface{}{
		"name":  in.Name,
		"index": in.FeatureIndex,
	})

	if cb != nil {
		cb(*in)
	}
	return s.view(in), nil
}

func (s *mapService) ClosePopup() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

func (s *mapService) Interaction() InteractionState {
	s.mu.RLock()
	hover, selected := s.hover, s.selected
	s.mu.RUnlock()

	var state InteractionState
	if hover != nil {
		state.Hover = s.view(hover)
	}
	if selected != nil {
		state.Selected = s.view(selected)
	}
	return state
}

func (s *mapService) OnClick(fn func(models.Interaction)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick = fn
}

func (s *mapService) view(in *models.Interaction) *InteractionView {
	return &InteractionView{Interaction: *in, Tooltip: s.stats.Tooltip(*in)}
}
