package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle" mapstructure:"lifecycle"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	Path           string `yaml:"path" mapstructure:"path"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
	RetryAttempts  int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// ClassifierConfig locates the trained model artifact.
type ClassifierConfig struct {
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`
}

// LifecycleConfig tunes loan state transitions.
type LifecycleConfig struct {
	// QuotePolicy is "permissive" (quote from REQUESTED, ELIGIBLE or
	// REJECTED) or "strict" (ELIGIBLE only).
	QuotePolicy string `yaml:"quote_policy" mapstructure:"quote_policy"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	LoginRate       float64  `yaml:"login_rate" mapstructure:"login_rate"`
	LoginBurst      int      `yaml:"login_burst" mapstructure:"login_burst"`
	Metrics         bool     `yaml:"metrics" mapstructure:"metrics"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// MonitoringConfig configures portfolio checks and alerting.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	RejectionRateThreshold float64 `yaml:"rejection_rate_threshold" mapstructure:"rejection_rate_threshold"`
	MinDecisions           int     `yaml:"min_decisions" mapstructure:"min_decisions"`
	AcceptedBacklog        int     `yaml:"accepted_backlog" mapstructure:"accepted_backlog"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var (
	storeDrivers  = []string{"file", "sqlite", "postgres"}
	quotePolicies = []string{"permissive", "strict"}
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOANDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "database.json")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff_ms", 100)
	v.SetDefault("classifier.model_path", "model/loan_model.yaml")
	v.SetDefault("lifecycle.quote_policy", "permissive")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.login_rate", 5.0)
	v.SetDefault("server.login_burst", 10)
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.rejection_rate_threshold", 0.8)
	v.SetDefault("monitoring.min_decisions", 10)
	v.SetDefault("monitoring.accepted_backlog", 20)
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

// Validate checks enumerated settings and the fields each store driver needs.
func (c *Config) Validate() error {
	if !slices.Contains(storeDrivers, c.Store.Driver) {
		return eris.Errorf("config: unknown store.driver %q (want one of %s)", c.Store.Driver, strings.Join(storeDrivers, ", "))
	}
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		if c.Store.Path == "" {
			return eris.Errorf("config: store.path is required for the %s driver", c.Store.Driver)
		}
	}
	if !slices.Contains(quotePolicies, c.Lifecycle.QuotePolicy) {
		return eris.Errorf("config: unknown lifecycle.quote_policy %q (want one of %s)", c.Lifecycle.QuotePolicy, strings.Join(quotePolicies, ", "))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.LoginRate < 0 {
		return eris.New("config: server.login_rate must not be negative")
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
