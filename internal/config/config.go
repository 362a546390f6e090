package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census     CensusConfig     `yaml:"census" mapstructure:"census"`
	NSI        NSIConfig        `yaml:"nsi" mapstructure:"nsi"`
	Tiger      TigerConfig      `yaml:"tiger" mapstructure:"tiger"`
	Mapping    MappingConfig    `yaml:"mapping" mapstructure:"mapping"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CensusConfig holds Census Data API settings.
type CensusConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Vintage string `yaml:"vintage" mapstructure:"vintage"`
	Dataset string `yaml:"dataset" mapstructure:"dataset"`
}

// NSIConfig holds National Structure Inventory API settings.
type NSIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TigerConfig configures TIGER/Line shapefile downloads.
type TigerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Year    int    `yaml:"year" mapstructure:"year"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// MappingConfig locates the occupancy-to-structure lookup tables.
// Workbook, when set, takes precedence over Dir.
type MappingConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Workbook string `yaml:"workbook" mapstructure:"workbook"`
}

// ClassifyConfig configures structural-type assignment.
type ClassifyConfig struct {
	Random        bool   `yaml:"random" mapstructure:"random"`
	Seed          uint64 `yaml:"seed" mapstructure:"seed"`
	DefaultRegion string `yaml:"default_region" mapstructure:"default_region"`
}

// FetchConfig configures the shared HTTP fetcher.
// A host is skipped for breaker_reset_secs after breaker_threshold consecutive
// failed downloads; -1 disables the breaker.
type FetchConfig struct {
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// OutputConfig configures where exports are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures run-health alerting in serve mode.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	UnmatchedPctThreshold float64 `yaml:"unmatched_pct_threshold" mapstructure:"unmatched_pct_threshold"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.vintage", "2010")
	v.SetDefault("census.dataset", "dec/sf1")
	v.SetDefault("nsi.base_url", "https://nsi.sec.usace.army.mil/nsiapi")
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("tiger.year", 2010)
	v.SetDefault("tiger.temp_dir", "shapefiletemp")
	v.SetDefault("mapping.dir", "data/nsi/occ_bldg_mapping")
	v.SetDefault("classify.random", false)
	v.SetDefault("classify.seed", 1337)
	v.SetDefault("classify.default_region", "WestCoast")
	v.SetDefault("fetch.user_agent", "incore-data/1.0")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.rate_per_sec", 10.0)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 60)
	v.SetDefault("output.dir", ".")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "incore.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.unmatched_pct_threshold", 10.0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given mode are present.
// Modes: "inventory", "dislocation", "store", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 16 {
		problems = append(problems, "fetch.concurrency must be between 1 and 16")
	}

	switch mode {
	case "inventory":
		if c.NSI.BaseURL == "" {
			problems = append(problems, "nsi.base_url is required")
		}
		if c.Mapping.Dir == "" && c.Mapping.Workbook == "" {
			problems = append(problems, "mapping.dir or mapping.workbook is required")
		}
	case "dislocation":
		if c.Census.BaseURL == "" {
			problems = append(problems, "census.base_url is required")
		}
		if c.Tiger.BaseURL == "" {
			problems = append(problems, "tiger.base_url is required")
		}
	case "store":
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
