package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "OPEN_METEO_BASE_URL", "HTTP_TIMEOUT", "SETTLE_WINDOW",
	"FETCH_TIMEOUT", "REFRESH_INTERVAL", "HISTORY_MAX", "HISTORY_MAX_AGE",
	"UPSTREAM_RPS", "UPSTREAM_BURST", "LOCATION_LATITUDE", "LOCATION_LONGITUDE",
	"LOCATION_TIMEZONE", "LOCATION_CITY", "LOCATION_COUNTRY", "GEOCODER_API_KEY",
	"DEFAULT_START_DATE", "DEFAULT_END_DATE", "WARMUP_DATASETS", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" || cfg.BaseURL != "https://api.open-meteo.com/v1/forecast" {
		t.Fatalf("unexpected server defaults %+v", cfg)
	}
	if cfg.SettleWindow != 10*time.Millisecond || cfg.FetchTimeout != 30*time.Second || cfg.RefreshInterval != 0 {
		t.Fatalf("unexpected timing defaults %+v", cfg)
	}
	loc := cfg.WeatherLocation()
	if loc.Latitude != 1.29 || loc.Longitude != 103.85 || loc.Timezone != "Asia/Singapore" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if cfg.DefaultRange.String() != "2023-01-01..2023-01-10" {
		t.Fatalf("unexpected default range %s", cfg.DefaultRange)
	}
	if len(cfg.Warmup) != 0 {
		t.Fatalf("unexpected warm-up datasets %v", cfg.Warmup)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SETTLE_WINDOW", "50ms")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("LOCATION_LATITUDE", "52.52")
	t.Setenv("UPSTREAM_RPS", "0.5")
	t.Setenv("WARMUP_DATASETS", "hourly:relativehumidity_2m, daily:temperature_2m_max")
	t.Setenv("DEFAULT_START_DATE", "2023-02-01")
	t.Setenv("DEFAULT_END_DATE", "2023-02-05")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.SettleWindow != 50*time.Millisecond || cfg.RefreshInterval != 15*time.Minute {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Location.Latitude != 52.52 || cfg.UpstreamRPS != 0.5 {
		t.Fatalf("numeric env not applied: %+v", cfg)
	}
	want := []weather.DatasetKey{
		{ID: weather.RelativeHumidity2m, Granularity: weather.Hourly},
		{ID: weather.Temperature2mMax, Granularity: weather.Daily},
	}
	if len(cfg.Warmup) != 2 || cfg.Warmup[0] != want[0] || cfg.Warmup[1] != want[1] {
		t.Fatalf("warm-up = %v", cfg.Warmup)
	}
	if cfg.DefaultRange.String() != "2023-02-01..2023-02-05" {
		t.Fatalf("default range = %s", cfg.DefaultRange)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SETTLE_WINDOW":      "soon",
		"HISTORY_MAX":        "many",
		"LOCATION_LONGITUDE": "east",
		"WARMUP_DATASETS":    "hourly:snowfall",
		"DEFAULT_START_DATE": "01/01/2023",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoadRejectsInvertedDefaultRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_START_DATE", "2023-03-01")
	t.Setenv("DEFAULT_END_DATE", "2023-02-01")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
port: "7070"
settle_window: 25ms
history_max: 5
location:
  latitude: 48.85
  longitude: 2.35
  timezone: Europe/Paris
warmup_datasets:
  - daily:temperature_2m_min
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "6060" {
		t.Fatalf("env should win over file, port = %s", cfg.Port)
	}
	if cfg.SettleWindow != 25*time.Millisecond || cfg.HistoryMax != 5 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Location.Timezone != "Europe/Paris" || cfg.Location.Latitude != 48.85 {
		t.Fatalf("file location not applied: %+v", cfg.Location)
	}
	// Defaults survive for keys the file does not set.
	if cfg.FetchTimeout != 30*time.Second {
		t.Fatalf("fetch timeout default lost: %s", cfg.FetchTimeout)
	}
	if len(cfg.Warmup) != 1 || cfg.Warmup[0].ID != weather.Temperature2mMin {
		t.Fatalf("warm-up = %v", cfg.Warmup)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestResolveLocationNoop(t *testing.T) {
	cfg := &AppConfig{Location: LocationConfig{Latitude: 1, Longitude: 2, City: "Singapore"}}
	if err := cfg.ResolveLocation(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Location.Latitude != 1 || cfg.Location.Longitude != 2 {
		t.Fatal("location changed without a geocoder key")
	}
}
