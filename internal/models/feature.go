package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownName labels features whose name property is missing or blank.
const UnknownName = "Unknown"

// FeatureCollectionType is the only collection type accepted by the loader.
const FeatureCollectionType = "FeatureCollection"

// StateProperties is the property bag of a state feature. Name and Abbrev
// are lifted out; every other property is kept in Extra.
type StateProperties struct {
	Name   string
	Abbrev string
	Extra  map[string]interface{}
}

// MarshalJSON flattens Extra back alongside name/abbrev.
func (p StateProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extra)+2)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["name"] = p.Name
	if p.Abbrev != "" {
		out["abbrev"] = p.Abbrev
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a free-form property object.
func (p *StateProperties) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal properties: %w", err)
	}

	props := StateProperties{}
	if name, ok := raw["name"].(string); ok {
		props.Name = name
	}
	if abbrev, ok := raw["abbrev"].(string); ok {
		props.Abbrev = abbrev
	}
	delete(raw, "name")
	delete(raw, "abbrev")
	if len(raw) > 0 {
		props.Extra = raw
	}

	*p = props
	return nil
}

// StateFeature is one geometry plus its properties, typically a state centroid.
type StateFeature struct {
	Type       string          `json:"type"`
	Properties StateProperties `json:"properties"`
	Geometry   Geometry        `json:"geometry"`
}

// DisplayName returns the trimmed feature name, or UnknownName.
func (f *StateFeature) DisplayName() string {
	if f == nil {
		return UnknownName
	}
	if name := strings.TrimSpace(f.Properties.Name); name != "" {
		return name
	}
	return UnknownName
}

// StateFeatureCollection is the GeoJSON document served by the loader.
type StateFeatureCollection struct {
	Type     string         `json:"type"`
	Features []StateFeature `json:"features"`
}

// Validate checks the collection header.
func (c *StateFeatureCollection) Validate() error {
	if c.Type != FeatureCollectionType {
		return fmt.Errorf("expected type %s, got %q", FeatureCollectionType, c.Type)
	}
	return nil
}
