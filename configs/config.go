package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration
type Config struct {
	Port        string `envconfig:"PORT" default:"5000"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Model artifacts, loaded once at startup
	RegressorModelPath  string `envconfig:"REGRESSOR_MODEL_PATH" default:"models/sales_forecast.json"`
	SarimaSeriesPath    string `envconfig:"SARIMA_SERIES_PATH" default:"models/sarima_series.csv"`
	SarimaOrder         string `envconfig:"SARIMA_ORDER" default:"1,1,1"`
	SarimaSeasonalOrder string `envconfig:"SARIMA_SEASONAL_ORDER" default:"1,1,1,12"`

	// Optional YAML override of the insight rule table
	InsightRulesPath string `envconfig:"INSIGHT_RULES_PATH"`

	MaxUploadBytes   int64    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	MaxForecastSteps int      `envconfig:"MAX_FORECAST_STEPS" default:"365"`
	MinCSVRows       int      `envconfig:"MIN_CSV_ROWS" default:"5"`
	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS"`

	// Time zone of the hourly buckets on the monitoring dashboard
	DashboardTimezone string `envconfig:"DASHBOARD_TZ" default:"UTC"`
}

// SarimaSpec is the parsed (p,d,q)(P,D,Q)[s] order of the time-series model.
type SarimaSpec struct {
	P, D, Q    int
	SP, SD, SQ int
	Period     int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.MinCSVRows < 1 {
		return nil, fmt.Errorf("MIN_CSV_ROWS must be positive, got %d", cfg.MinCSVRows)
	}
	if cfg.MaxForecastSteps < 1 {
		return nil, fmt.Errorf("MAX_FORECAST_STEPS must be positive, got %d", cfg.MaxForecastSteps)
	}
	if _, err := cfg.Sarima(); err != nil {
		return nil, err
	}
	if _, err := cfg.DashboardLocation(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DashboardLocation resolves DASHBOARD_TZ to a time zone.
func (c *Config) DashboardLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DashboardTimezone)
	if err != nil {
		return nil, fmt.Errorf("DASHBOARD_TZ: %w", err)
	}
	return loc, nil
}

// Sarima parses SARIMA_ORDER and SARIMA_SEASONAL_ORDER.
func (c *Config) Sarima() (SarimaSpec, error) {
	order, err := parseInts(c.SarimaOrder, 3)
	if err != nil {
		return SarimaSpec{}, fmt.Errorf("SARIMA_ORDER: %w", err)
	}
	seasonal, err := parseInts(c.SarimaSeasonalOrder, 4)
	if err != nil {
		return SarimaSpec{}, fmt.Errorf("SARIMA_SEASONAL_ORDER: %w", err)
	}
	return SarimaSpec{
		P: order[0], D: order[1], Q: order[2],
		SP: seasonal[0], SD: seasonal[1], SQ: seasonal[2],
		Period: seasonal[3],
	}, nil
}

func parseInts(raw string, want int) ([]int, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d comma separated integers, got %q", want, raw)
	}
	out := make([]int, want)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid order component %q", p)
		}
		out[i] = n
	}
	return out, nil
}
