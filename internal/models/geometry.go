package models

import (
	"encoding/json"
	"fmt"
)

// GeometryType names the GeoJSON geometry kinds the map understands.
type GeometryType string

// Supported geometry types.
const (
	GeometryPoint        GeometryType = "Point"
	GeometryPolygon      GeometryType = "Polygon"
	GeometryMultiPolygon GeometryType = "MultiPolygon"
)

// Geometry is a GeoJSON geometry restricted to Point, Polygon and MultiPolygon.
// Coordinates are [lon, lat] in WGS84; exactly one coordinate field is set,
// matching Type.
type Geometry struct {
	Type         GeometryType
	Point        [2]float64
	Polygon      [][][2]float64
	MultiPolygon [][][][2]float64
}

// NewPoint returns a Point geometry at lng/lat.
func NewPoint(lng, lat float64) Geometry {
	return Geometry{Type: GeometryPoint, Point: [2]float64{lng, lat}}
}

// NewPolygon returns a Polygon geometry from its rings (outer ring first).
func NewPolygon(rings [][][2]float64) Geometry {
	return Geometry{Type: GeometryPolygon, Polygon: rings}
}

// IsEmpty reports whether the geometry carries no usable coordinates.
func (g Geometry) IsEmpty() bool {
	switch g.Type {
	case GeometryPoint:
		return false
	case GeometryPolygon:
		return len(g.Polygon) == 0 || len(g.Polygon[0]) == 0
	case GeometryMultiPolygon:
		return len(g.MultiPolygon) == 0
	default:
		return true
	}
}

// Anchor returns the position used to place a marker or popup for the
// geometry: the point itself, or the vertex mean of the first outer ring.
func (g Geometry) Anchor() (lng, lat float64, ok bool) {
	switch g.Type {
	case GeometryPoint:
		return g.Point[0], g.Point[1], true
	case GeometryPolygon:
		if len(g.Polygon) == 0 {
			return 0, 0, false
		}
		return ringMean(g.Polygon[0])
	case GeometryMultiPolygon:
		if len(g.MultiPolygon) == 0 || len(g.MultiPolygon[0]) == 0 {
			return 0, 0, false
		}
		return ringMean(g.MultiPolygon[0][0])
	default:
		return 0, 0, false
	}
}

// Contains reports whether lng/lat falls inside a polygonal geometry.
// Points never contain anything; holes are honored.
func (g Geometry) Contains(lng, lat float64) bool {
	switch g.Type {
	case GeometryPolygon:
		return polygonContains(g.Polygon, lng, lat)
	case GeometryMultiPolygon:
		for _, poly := range g.MultiPolygon {
			if polygonContains(poly, lng, lat) {
				return true
			}
		}
	}
	return false
}

func ringMean(ring [][2]float64) (float64, float64, bool) {
	n := len(ring)
	// Closed rings repeat the first vertex; skip the duplicate.
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	if n == 0 {
		return 0, 0, false
	}
	var sumLng, sumLat float64
	for i := 0; i < n; i++ {
		sumLng += ring[i][0]
		sumLat += ring[i][1]
	}
	return sumLng / float64(n), sumLat / float64(n), true
}

func polygonContains(rings [][][2]float64, lng, lat float64) bool {
	if len(rings) == 0 || !ringContains(rings[0], lng, lat) {
		return false
	}
	for _, hole := range rings[1:] {
		if ringContains(hole, lng, lat) {
			return false
		}
	}
	return true
}

// ringContains is the even-odd ray casting test.
func ringContains(ring [][2]float64, lng, lat float64) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) && lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

type geoJSONGeometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON implements json.Marshaler and emits GeoJSON.
func (g Geometry) MarshalJSON() ([]byte, error) {
	var coords interface{}
	switch g.Type {
	case GeometryPoint:
		coords = g.Point
	case GeometryPolygon:
		coords = g.Polygon
	case GeometryMultiPolygon:
		coords = g.MultiPolygon
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return json.Marshal(struct {
		Type        GeometryType `json:"type"`
		Coordinates interface{}  `json:"coordinates"`
	}{Type: g.Type, Coordinates: coords})
}

// UnmarshalJSON implements json.Unmarshaler for GeoJSON geometry objects.
// A JSON null, an unsupported type or malformed coordinates leave the
// geometry empty so the feature is skipped rather than the collection.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	*g = Geometry{}
	if string(data) == "null" {
		return nil
	}

	var raw geoJSONGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal geometry: %w", err)
	}

	out := Geometry{Type: raw.Type}
	switch raw.Type {
	case GeometryPoint:
		var pt []float64
		if err := json.Unmarshal(raw.Coordinates, &pt); err != nil || len(pt) < 2 {
			return nil
		}
		out.Point = [2]float64{pt[0], pt[1]}
	case GeometryPolygon:
		if err := json.Unmarshal(raw.Coordinates, &out.Polygon); err != nil {
			return nil
		}
	case GeometryMultiPolygon:
		if err := json.Unmarshal(raw.Coordinates, &out.MultiPolygon); err != nil {
			return nil
		}
	default:
		return nil
	}

	*g = out
	return nil
}
