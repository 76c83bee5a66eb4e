package models

// NationalTrend is one year of nationwide totals.
type NationalTrend struct {
	Year      int     `json:"year"`
	NewCases  float64 `json:"new_cases"`
	NewDeaths float64 `json:"new_deaths"`
}

// StateDeaths is a state ranked by deaths summed across all years.
type StateDeaths struct {
	State       string  `json:"state"`
	TotalDeaths float64 `json:"total_deaths"`
}

// ScatterPoint is one state's cases and deaths for a single year.
type ScatterPoint struct {
	State     string  `json:"state"`
	NewCases  float64 `json:"new_cases"`
	NewDeaths float64 `json:"new_deaths"`
}

// ScatterSeries groups the scatter points of one year.
type ScatterSeries struct {
	Year   int            `json:"year"`
	Points []ScatterPoint `json:"points"`
}

// StateStats are the per-state totals joined into map tooltips.
type StateStats struct {
	State        string  `json:"State"`
	Abbreviation string  `json:"Abbreviation,omitempty"`
	TotalCases   float64 `json:"Total Cases"`
	TotalDeaths  float64 `json:"Total Deaths"`
}

// ChartData is the full result of one chart query batch.
type ChartData struct {
	National  []NationalTrend `json:"national"`
	TopStates []StateDeaths   `json:"top_states"`
	Scatter   []ScatterSeries `json:"scatter"`
}

// NationalTrendFromRow maps a national_trend result row.
func NationalTrendFromRow(r Row) NationalTrend {
	year, _ := r.Float("year")
	cases, _ := r.Float("new_cases")
	deaths, _ := r.Float("new_deaths")
	return NationalTrend{Year: int(year), NewCases: cases, NewDeaths: deaths}
}

// StateDeathsFromRow maps a top_states_by_deaths result row.
func StateDeathsFromRow(r Row) StateDeaths {
	deaths, _ := r.Float("total_deaths")
	return StateDeaths{State: r.Text("state"), TotalDeaths: deaths}
}

// ScatterPointFromRow maps a scatter_<year> result row.
func ScatterPointFromRow(r Row) ScatterPoint {
	cases, _ := r.Float("new_cases")
	deaths, _ := r.Float("new_deaths")
	return ScatterPoint{State: r.Text("state"), NewCases: cases, NewDeaths: deaths}
}

// StateStatsFromRow maps a state_totals result row.
func StateStatsFromRow(r Row) StateStats {
	cases, _ := r.Float("Total Cases")
	deaths, _ := r.Float("Total Deaths")
	return StateStats{
		State:        TrimName(r.Text("State")),
		Abbreviation: r.Text("Abbreviation"),
		TotalCases:   cases,
		TotalDeaths:  deaths,
	}
}
