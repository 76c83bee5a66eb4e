package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported query engine drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// Data source types.
const (
	SourceTypeURL  = "url"
	SourceTypeFile = "file"
)

// CovidYears lists the yearly tables the dashboard charts depend on.
var CovidYears = []int{2020, 2021, 2022, 2023}

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Database DatabaseConfig
	Data     DataConfig
	Map      MapConfig
	CORS     CORSConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// EngineConfig selects and tunes the SQL engine backing the room.
type EngineConfig struct {
	Driver       string
	DuckDBPath   string
	QueryTimeout time.Duration
	MaxRows      int
}

// DatabaseConfig holds PostgreSQL connection configuration.
// Only used when the engine driver is postgres.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// DataSourceConfig declares one named table and where its CSV lives.
type DataSourceConfig struct {
	TableName string `mapstructure:"table_name"`
	Type      string `mapstructure:"type"`
	URL       string `mapstructure:"url"`
}

// DataConfig holds the room's data sources and static geometry location.
type DataConfig struct {
	Title           string
	Dir             string
	StatesGeoJSON   string
	Sources         []DataSourceConfig
	FetchTimeout    time.Duration
	LoadConcurrency int
	Watch           bool
}

// MapConfig holds map view presentation settings.
type MapConfig struct {
	PickRadius float64
	FillColor  []int
	Radius     float64
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables and an optional
// YAML file named by CONFIG_FILE. Data sources declared in the file
// replace the built-in yearly COVID tables.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("ENGINE_DRIVER", DriverDuckDB)
	v.SetDefault("DUCKDB_PATH", ":memory:")
	v.SetDefault("QUERY_TIMEOUT", "30s")
	v.SetDefault("QUERY_MAX_ROWS", 10000)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "covidroom")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("ROOM_TITLE", "COVID-19 Dashboard")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("STATES_GEOJSON", "data/us_state_centroids.json")
	v.SetDefault("EARTHQUAKES_URL", "")
	v.SetDefault("FETCH_TIMEOUT", "60s")
	v.SetDefault("LOAD_CONCURRENCY", 4)
	v.SetDefault("DATA_WATCH", false)
	v.SetDefault("PICK_RADIUS", 1.5)
	v.SetDefault("POINT_RADIUS", 40000.0)
	v.SetDefault("FILL_COLOR", "0,150,255,200")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	// Bind environment variables
	v.AutomaticEnv()

	var fileSources []DataSourceConfig
	if path := v.GetString("CONFIG_FILE"); path != "" {
		fv := viper.New()
		fv.SetConfigFile(path)
		if err := fv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := fv.UnmarshalKey("data_sources", &fileSources); err != nil {
			return nil, fmt.Errorf("failed to decode data_sources: %w", err)
		}
		if title := fv.GetString("title"); title != "" {
			v.Set("ROOM_TITLE", title)
		}
	}

	fillColor, err := parseColor(v.GetString("FILL_COLOR"))
	if err != nil {
		return nil, fmt.Errorf("invalid FILL_COLOR: %w", err)
	}

	sources := fileSources
	if len(sources) == 0 {
		sources = DefaultDataSources(v.GetString("DATA_DIR"), v.GetString("EARTHQUAKES_URL"))
	}

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Engine: EngineConfig{
			Driver:       strings.ToLower(v.GetString("ENGINE_DRIVER")),
			DuckDBPath:   v.GetString("DUCKDB_PATH"),
			QueryTimeout: v.GetDuration("QUERY_TIMEOUT"),
			MaxRows:      v.GetInt("QUERY_MAX_ROWS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Data: DataConfig{
			Title:           v.GetString("ROOM_TITLE"),
			Dir:             v.GetString("DATA_DIR"),
			StatesGeoJSON:   v.GetString("STATES_GEOJSON"),
			Sources:         sources,
			FetchTimeout:    v.GetDuration("FETCH_TIMEOUT"),
			LoadConcurrency: v.GetInt("LOAD_CONCURRENCY"),
			Watch:           v.GetBool("DATA_WATCH"),
		},
		Map: MapConfig{
			PickRadius: v.GetFloat64("PICK_RADIUS"),
			FillColor:  fillColor,
			Radius:     v.GetFloat64("POINT_RADIUS"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultDataSources returns the four yearly COVID tables read from dataDir,
// plus the earthquakes table when earthquakesURL is set.
func DefaultDataSources(dataDir, earthquakesURL string) []DataSourceConfig {
	sources := make([]DataSourceConfig, 0, len(CovidYears)+1)
	for _, year := range CovidYears {
		sources = append(sources, DataSourceConfig{
			TableName: fmt.Sprintf("covid_%d", year),
			Type:      SourceTypeFile,
			URL:       filepath.Join(dataDir, fmt.Sprintf("covid_%d.csv", year)),
		})
	}
	if earthquakesURL != "" {
		sources = append(sources, DataSourceConfig{
			TableName: "earthquakes",
			Type:      SourceTypeURL,
			URL:       earthquakesURL,
		})
	}
	return sources
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate engine config
	switch c.Engine.Driver {
	case DriverDuckDB:
		if c.Engine.DuckDBPath == "" {
			return fmt.Errorf("DUCKDB_PATH is required")
		}
	case DriverPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ENGINE_DRIVER must be one of %s, %s", DriverDuckDB, DriverPostgres)
	}
	if c.Engine.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	if c.Engine.MaxRows < 1 {
		return fmt.Errorf("QUERY_MAX_ROWS must be at least 1")
	}

	// Validate data config
	if len(c.Data.Sources) == 0 {
		return fmt.Errorf("at least one data source is required")
	}
	seen := make(map[string]bool, len(c.Data.Sources))
	for i, src := range c.Data.Sources {
		if src.TableName == "" {
			return fmt.Errorf("data_sources[%d].table_name is required", i)
		}
		if seen[src.TableName] {
			return fmt.Errorf("duplicate data source table %q", src.TableName)
		}
		seen[src.TableName] = true
		if src.Type != SourceTypeURL && src.Type != SourceTypeFile {
			return fmt.Errorf("data_sources[%d].type must be %s or %s", i, SourceTypeURL, SourceTypeFile)
		}
		if src.URL == "" {
			return fmt.Errorf("data_sources[%d].url is required", i)
		}
	}
	if c.Data.StatesGeoJSON == "" {
		return fmt.Errorf("STATES_GEOJSON is required")
	}
	if c.Data.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.Data.LoadConcurrency < 1 {
		return fmt.Errorf("LOAD_CONCURRENCY must be at least 1")
	}

	// Validate map config
	if c.Map.PickRadius <= 0 {
		return fmt.Errorf("PICK_RADIUS must be positive")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("METRICS_PATH must start with /")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseColor reads an "r,g,b[,a]" string into channel values.
func parseColor(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("expected 3 or 4 channels, got %d", len(parts))
	}
	color := make([]int, 0, len(parts))
	for _, p := range parts {
		var ch int
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &ch); err != nil {
			return nil, fmt.Errorf("channel %q: %w", p, err)
		}
		if ch < 0 || ch > 255 {
			return nil, fmt.Errorf("channel %d out of range 0-255", ch)
		}
		color = append(color, ch)
	}
	return color, nil
}
