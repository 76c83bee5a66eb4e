package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	clearConfigEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Verify defaults
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Env != "development" {
		t.Errorf("Expected env development, got %s", cfg.Server.Env)
	}
	if cfg.Engine.Driver != DriverDuckDB {
		t.Errorf("Expected driver duckdb, got %s", cfg.Engine.Driver)
	}
	if cfg.Engine.DuckDBPath != ":memory:" {
		t.Errorf("Expected in-memory duckdb, got %s", cfg.Engine.DuckDBPath)
	}
	if cfg.Engine.QueryTimeout != 30*time.Second {
		t.Errorf("Expected query timeout 30s, got %s", cfg.Engine.QueryTimeout)
	}
	if cfg.Engine.MaxRows != 10000 {
		t.Errorf("Expected max rows 10000, got %d", cfg.Engine.MaxRows)
	}
	if len(cfg.Data.Sources) != 4 {
		t.Fatalf("Expected 4 default data sources, got %d", len(cfg.Data.Sources))
	}
	if cfg.Data.Sources[0].TableName != "covid_2020" {
		t.Errorf("Expected first table covid_2020, got %s", cfg.Data.Sources[0].TableName)
	}
	if cfg.Data.Sources[3].URL != filepath.Join("data", "covid_2023.csv") {
		t.Errorf("Unexpected covid_2023 location %s", cfg.Data.Sources[3].URL)
	}
	if cfg.Data.StatesGeoJSON != "data/us_state_centroids.json" {
		t.Errorf("Unexpected states geojson %s", cfg.Data.StatesGeoJSON)
	}
	if len(cfg.Map.FillColor) != 4 || cfg.Map.FillColor[2] != 255 {
		t.Errorf("Unexpected fill color %v", cfg.Map.FillColor)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Unexpected metrics config %+v", cfg.Metrics)
	}
	if len(cfg.CORS.Origins) != 2 {
		t.Errorf("Expected 2 CORS origins, got %d", len(cfg.CORS.Origins))
	}
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	clearConfigEnvVars(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("ENGINE_DRIVER", "POSTGRES")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("EARTHQUAKES_URL", "https://example.com/quakes.csv")
	t.Setenv("CORS_ORIGINS", "http://example.com,https://app.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Engine.Driver != DriverPostgres {
		t.Errorf("Expected driver postgres, got %s", cfg.Engine.Driver)
	}
	if cfg.Database.Host != "db" || cfg.Database.Password != "secret" {
		t.Errorf("Unexpected database config %+v", cfg.Database)
	}
	if cfg.Engine.QueryTimeout != 5*time.Second {
		t.Errorf("Expected query timeout 5s, got %s", cfg.Engine.QueryTimeout)
	}
	if len(cfg.Data.Sources) != 5 {
		t.Fatalf("Expected 5 data sources, got %d", len(cfg.Data.Sources))
	}
	if cfg.Data.Sources[0].URL != filepath.Join("/srv/data", "covid_2020.csv") {
		t.Errorf("Unexpected covid_2020 location %s", cfg.Data.Sources[0].URL)
	}
	quakes := cfg.Data.Sources[4]
	if quakes.TableName != "earthquakes" || quakes.Type != SourceTypeURL {
		t.Errorf("Unexpected earthquakes source %+v", quakes)
	}
	if cfg.CORS.Origins[0] != "http://example.com" {
		t.Errorf("Expected first origin http://example.com, got %s", cfg.CORS.Origins[0])
	}
}

func TestLoad_PostgresMissingPassword(t *testing.T) {
	clearConfigEnvVars(t)
	t.Setenv("ENGINE_DRIVER", "postgres")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when DB_PASSWORD is missing for postgres engine")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearConfigEnvVars(t)

	path := filepath.Join(t.TempDir(), "room.yaml")
	content := `title: Earthquake Room
data_sources:
  - table_name: earthquakes
    type: url
    url: https://example.com/quakes.csv
  - table_name: covid_2020
    type: file
    url: ./covid_2020.csv
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Data.Title != "Earthquake Room" {
		t.Errorf("Expected title from file, got %s", cfg.Data.Title)
	}
	if len(cfg.Data.Sources) != 2 {
		t.Fatalf("Expected 2 data sources from file, got %d", len(cfg.Data.Sources))
	}
	if cfg.Data.Sources[0].TableName != "earthquakes" || cfg.Data.Sources[0].Type != SourceTypeURL {
		t.Errorf("Unexpected first source %+v", cfg.Data.Sources[0])
	}
}

func TestLoad_InvalidFillColor(t *testing.T) {
	clearConfigEnvVars(t)
	t.Setenv("FILL_COLOR", "0,300,0")

	if _, err := Load(); err == nil {
		t.Error("Expected error for out-of-range fill color")
	}
}

func TestValidate_InvalidPoolSizes(t *testing.T) {
	tests := []struct {
		name    string
		poolMin int
		poolMax int
		wantErr bool
	}{
		{name: "negative pool min", poolMin: -1, poolMax: 10, wantErr: true},
		{name: "zero pool max", poolMin: 0, poolMax: 0, wantErr: true},
		{name: "pool min greater than max", poolMin: 15, poolMax: 10, wantErr: true},
		{name: "valid pool sizes", poolMin: 2, poolMax: 10, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Engine.Driver = DriverPostgres
			cfg.Database.PoolMin = tt.poolMin
			cfg.Database.PoolMax = tt.poolMax

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Engine.Driver = "sqlite" }},
		{name: "missing duckdb path", mutate: func(c *Config) { c.Engine.DuckDBPath = "" }},
		{name: "zero query timeout", mutate: func(c *Config) { c.Engine.QueryTimeout = 0 }},
		{name: "zero max rows", mutate: func(c *Config) { c.Engine.MaxRows = 0 }},
		{name: "no data sources", mutate: func(c *Config) { c.Data.Sources = nil }},
		{name: "duplicate table", mutate: func(c *Config) {
			c.Data.Sources = append(c.Data.Sources, c.Data.Sources[0])
		}},
		{name: "bad source type", mutate: func(c *Config) { c.Data.Sources[0].Type = "s3" }},
		{name: "missing source url", mutate: func(c *Config) { c.Data.Sources[0].URL = "" }},
		{name: "missing states geojson", mutate: func(c *Config) { c.Data.StatesGeoJSON = "" }},
		{name: "zero load concurrency", mutate: func(c *Config) { c.Data.LoadConcurrency = 0 }},
		{name: "zero pick radius", mutate: func(c *Config) { c.Map.PickRadius = 0 }},
		{name: "missing CORS origins", mutate: func(c *Config) { c.CORS.Origins = []string{} }},
		{name: "relative metrics path", mutate: func(c *Config) { c.Metrics.Path = "metrics" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error but got none")
			}
		})
	}
}

func TestDefaultDataSources(t *testing.T) {
	sources := DefaultDataSources("d", "")
	if len(sources) != len(CovidYears) {
		t.Fatalf("Expected %d sources, got %d", len(CovidYears), len(sources))
	}
	for i, year := range CovidYears {
		if sources[i].Type != SourceTypeFile {
			t.Errorf("Expected file source for %d, got %s", year, sources[i].Type)
		}
	}
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{name: "single origin", input: "http://localhost:3000", expect: []string{"http://localhost:3000"}},
		{name: "multiple origins", input: "http://localhost:3000,http://localhost:3001", expect: []string{"http://localhost:3000", "http://localhost:3001"}},
		{name: "origins with spaces", input: " http://localhost:3000 , http://localhost:3001 ", expect: []string{"http://localhost:3000", "http://localhost:3001"}},
		{name: "empty string", input: "", expect: []string{}},
		{name: "only commas", input: ",,,", expect: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseOrigins(tt.input)
			if len(result) != len(tt.expect) {
				t.Errorf("Expected %d origins, got %d", len(tt.expect), len(result))
				return
			}
			for i, origin := range result {
				if origin != tt.expect[i] {
					t.Errorf("Expected origin %s at index %d, got %s", tt.expect[i], i, origin)
				}
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "0,150,255", want: 3},
		{input: "0, 150, 255, 200", want: 4},
		{input: "0,150", wantErr: true},
		{input: "a,b,c", wantErr: true},
		{input: "-1,0,0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			color, err := parseColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseColor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(color) != tt.want {
				t.Errorf("Expected %d channels, got %d", tt.want, len(color))
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Engine: EngineConfig{
			Driver:       DriverDuckDB,
			DuckDBPath:   ":memory:",
			QueryTimeout: time.Second,
			MaxRows:      100,
		},
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", Name: "covidroom",
			User: "postgres", Password: "postgres", PoolMin: 2, PoolMax: 10,
		},
		Data: DataConfig{
			Sources:         DefaultDataSources("data", ""),
			StatesGeoJSON:   "data/us_state_centroids.json",
			FetchTimeout:    time.Second,
			LoadConcurrency: 2,
		},
		Map:     MapConfig{PickRadius: 1},
		CORS:    CORSConfig{Origins: []string{"http://localhost:3000"}},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// clearConfigEnvVars unsets every variable Load reads for the duration of the test.
func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "ENGINE_DRIVER", "DUCKDB_PATH", "QUERY_TIMEOUT",
		"QUERY_MAX_ROWS", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"DB_POOL_MIN", "DB_POOL_MAX", "ROOM_TITLE", "DATA_DIR", "STATES_GEOJSON",
		"EARTHQUAKES_URL", "FETCH_TIMEOUT", "LOAD_CONCURRENCY", "PICK_RADIUS",
		"POINT_RADIUS", "FILL_COLOR", "CORS_ORIGINS", "METRICS_ENABLED", "METRICS_PATH",
		"CONFIG_FILE", "DATA_WATCH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
