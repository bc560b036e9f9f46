package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-pages/internal/weather/providers"
)

type AppConfig struct {
	OpenWeatherAPIKey  string `yaml:"openWeatherApiKey"`
	OpenWeatherBaseURL string `yaml:"openWeatherBaseUrl"`

	// HTTPTimeout bounds each outbound upstream call.
	HTTPTimeout time.Duration `yaml:"httpTimeout"`

	// DisplayTimezone is the IANA zone used to render dates and clock times.
	DisplayTimezone string         `yaml:"displayTimezone"`
	Location        *time.Location `yaml:"-"`

	// Upstream probe; an empty ProbeCity disables it.
	ProbeCity       string        `yaml:"probeCity"`
	ProbeInterval   time.Duration `yaml:"probeInterval"`
	ProbeMaxHistory int           `yaml:"probeMaxHistory"` // 0 = unlimited
	ProbeMaxAge     time.Duration `yaml:"probeMaxAge"`     // 0 = unlimited

	LogLevel string `yaml:"logLevel"`
	Port     string `yaml:"port"`
}

func defaults() *AppConfig {
	return &AppConfig{
		OpenWeatherBaseURL: providers.DefaultOpenWeatherURL,
		HTTPTimeout:        10 * time.Second,
		DisplayTimezone:    "Local",
		ProbeInterval:      15 * time.Minute,
		ProbeMaxHistory:    96, // roughly 24h at 15-minute intervals
		ProbeMaxAge:        24 * time.Hour,
		LogLevel:           "info",
		Port:               "8080",
	}
}

// Load reads configuration from an optional YAML file (CONFIG_PATH) and the
// environment, with environment values taking precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	// API_KEY is accepted for older .env files.
	cfg.OpenWeatherAPIKey = getenvDefault("OPENWEATHER_API_KEY", getenvDefault("API_KEY", cfg.OpenWeatherAPIKey))
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", cfg.OpenWeatherBaseURL)
	cfg.DisplayTimezone = getenvDefault("DISPLAY_TIMEZONE", cfg.DisplayTimezone)
	cfg.ProbeCity = getenvDefault("PROBE_CITY", cfg.ProbeCity)
	cfg.ProbeMaxHistory = getenvInt("PROBE_MAX_HISTORY", cfg.ProbeMaxHistory)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Port = getenvDefault("PORT", cfg.Port)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.ProbeInterval, err = getenvDuration("PROBE_INTERVAL", cfg.ProbeInterval); err != nil {
		return err
	}
	if cfg.ProbeMaxAge, err = getenvDuration("PROBE_MAX_AGE", cfg.ProbeMaxAge); err != nil {
		return err
	}
	return nil
}

// Validate checks required values and resolves the display location.
func (c *AppConfig) Validate() error {
	if c.OpenWeatherAPIKey == "" {
		return errors.New("OPENWEATHER_API_KEY (or API_KEY) is required")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.ProbeCity != "" && c.ProbeInterval <= 0 {
		return errors.New("PROBE_INTERVAL must be positive when PROBE_CITY is set")
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	c.Location = loc
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
