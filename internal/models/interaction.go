package models

// Interaction is the pointer state of the map: where the pointer was and
// which feature it resolved to. It backs both the hovered feature and the
// selected (clicked) feature whose popup is open.
type Interaction struct {
	Longitude    float64       `json:"longitude"`
	Latitude     float64       `json:"latitude"`
	Name         string        `json:"name"`
	Abbrev       string        `json:"abbrev,omitempty"`
	FeatureIndex int           `json:"feature_index"`
	Feature      *StateFeature `json:"feature,omitempty"`
}

// NewInteraction captures the pointer coordinates and the picked feature.
func NewInteraction(lng, lat float64, index int, feature *StateFeature) Interaction {
	in := Interaction{
		Longitude:    lng,
		Latitude:     lat,
		Name:         feature.DisplayName(),
		FeatureIndex: index,
		Feature:      feature,
	}
	if feature != nil {
		in.Abbrev = feature.Properties.Abbrev
	}
	return in
}

// Tooltip is the display content for a hovered or selected state.
// Missing statistics are rendered as NotAvailable.
type Tooltip struct {
	Name        string `json:"name"`
	Abbrev      string `json:"abbrev,omitempty"`
	TotalCases  string `json:"total_cases"`
	TotalDeaths string `json:"total_deaths"`
	Found       bool   `json:"found"`

	// Stats holds the unformatted totals when Found is set.
	Stats *StateStats `json:"stats,omitempty"`
}

// NotAvailable is the placeholder shown when a state has no statistics.
const NotAvailable = "N/A"
