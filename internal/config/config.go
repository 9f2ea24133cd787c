package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-dataset-aggregator/internal/common"
	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
)

// LocationConfig is the place every combined request is made for.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude" default:"1.29"`
	Longitude float64 `yaml:"longitude" default:"103.85"`
	Timezone  string  `yaml:"timezone" default:"Asia/Singapore"`

	// City/Country are only used to geocode Latitude/Longitude.
	City    string `yaml:"city"`
	Country string `yaml:"country"`
}

type AppConfig struct {
	Port    string `yaml:"port" default:"8080"`
	BaseURL string `yaml:"base_url" default:"https://api.open-meteo.com/v1/forecast"`

	// HTTPTimeout bounds a single outbound HTTP attempt.
	HTTPTimeout time.Duration `yaml:"http_timeout" default:"10s"`

	// SettleWindow is how long registrations are coalesced before a fetch.
	SettleWindow time.Duration `yaml:"settle_window" default:"10ms"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" default:"30s"`

	// RefreshInterval re-fetches the whole ledger periodically (0 = disabled).
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Response history retention.
	HistoryMax    int           `yaml:"history_max" default:"32"`
	HistoryMaxAge time.Duration `yaml:"history_max_age" default:"24h"`

	UpstreamRPS   float64 `yaml:"upstream_rps" default:"2"`
	UpstreamBurst int     `yaml:"upstream_burst" default:"1"`

	Location       LocationConfig `yaml:"location"`
	GeocoderAPIKey string         `yaml:"geocoder_api_key"`

	DefaultStartDate string   `yaml:"default_start_date" default:"2023-01-01"`
	DefaultEndDate   string   `yaml:"default_end_date" default:"2023-01-10"`
	WarmupDatasets   []string `yaml:"warmup_datasets"`

	LogLevel  string `yaml:"log_level" default:"info"`
	LogFormat string `yaml:"log_format" default:"json"`

	// Derived by Load.
	DefaultRange weather.DateRange    `yaml:"-"`
	Warmup       []weather.DatasetKey `yaml:"-"`
}

// Load reads configuration from struct defaults, an optional YAML file named
// by CONFIG_FILE and the environment (including .env), in that order.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.derive(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.BaseURL, "OPEN_METEO_BASE_URL")
	setString(&cfg.Location.Timezone, "LOCATION_TIMEZONE")
	setString(&cfg.Location.City, "LOCATION_CITY")
	setString(&cfg.Location.Country, "LOCATION_COUNTRY")
	setString(&cfg.GeocoderAPIKey, "GEOCODER_API_KEY")
	setString(&cfg.DefaultStartDate, "DEFAULT_START_DATE")
	setString(&cfg.DefaultEndDate, "DEFAULT_END_DATE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := os.Getenv("WARMUP_DATASETS"); v != "" {
		cfg.WarmupDatasets = common.SplitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", &cfg.HTTPTimeout},
		{"SETTLE_WINDOW", &cfg.SettleWindow},
		{"FETCH_TIMEOUT", &cfg.FetchTimeout},
		{"REFRESH_INTERVAL", &cfg.RefreshInterval},
		{"HISTORY_MAX_AGE", &cfg.HistoryMaxAge},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	if err := setInt(&cfg.HistoryMax, "HISTORY_MAX"); err != nil {
		return err
	}
	if err := setInt(&cfg.UpstreamBurst, "UPSTREAM_BURST"); err != nil {
		return err
	}
	if err := setFloat(&cfg.UpstreamRPS, "UPSTREAM_RPS"); err != nil {
		return err
	}
	if err := setFloat(&cfg.Location.Latitude, "LOCATION_LATITUDE"); err != nil {
		return err
	}
	return setFloat(&cfg.Location.Longitude, "LOCATION_LONGITUDE")
}

func (c *AppConfig) derive() error {
	rng, err := weather.NewDateRange(c.DefaultStartDate, c.DefaultEndDate)
	if err != nil {
		return fmt.Errorf("invalid default range: %w", err)
	}
	if rng.End.Before(rng.Start) {
		return fmt.Errorf("invalid default range: %s ends before it starts", rng)
	}
	c.DefaultRange = rng

	c.Warmup = c.Warmup[:0]
	for _, s := range c.WarmupDatasets {
		key, err := weather.ParseDatasetKey(s)
		if err != nil {
			return fmt.Errorf("invalid WARMUP_DATASETS: %w", err)
		}
		c.Warmup = append(c.Warmup, key)
	}
	return nil
}

// WeatherLocation converts the location settings for the aggregator.
func (c *AppConfig) WeatherLocation() weather.Location {
	return weather.Location{
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		Timezone:  c.Location.Timezone,
	}
}

// ResolveLocation geocodes City/Country into Latitude/Longitude when both and
// a geocoder API key are configured. Otherwise it is a no-op.
func (c *AppConfig) ResolveLocation() error {
	if c.Location.City == "" || c.Location.Country == "" || c.GeocoderAPIKey == "" {
		return nil
	}

	geocoder.ApiKey = c.GeocoderAPIKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    c.Location.City,
		Country: c.Location.Country,
	})
	if err != nil {
		return fmt.Errorf("geocode %s,%s: %w", c.Location.City, c.Location.Country, err)
	}
	c.Location.Latitude = loc.Latitude
	c.Location.Longitude = loc.Longitude
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}
