package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

// Config holds the full application configuration.
type Config struct {
	API      APIConfig         `yaml:"api" mapstructure:"api"`
	Retry    RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Download DownloadConfig    `yaml:"download" mapstructure:"download"`
	Columns  map[string]string `yaml:"columns" mapstructure:"columns"`
	Log      LogConfig         `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the report API client.
type APIConfig struct {
	BaseURL     string            `yaml:"base_url" mapstructure:"base_url"`
	ReportName  string            `yaml:"report_name" mapstructure:"report_name"`
	PageSize    int               `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64           `yaml:"rate_limit" mapstructure:"rate_limit"`
	Headers     map[string]string `yaml:"headers" mapstructure:"headers"`
}

// RetryConfig configures per-page retry. Backoff is "linear" (attempt ×
// base) or "exponential" (base doubling per attempt, capped at max_delay_ms).
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs int    `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	Backoff     string `yaml:"backoff" mapstructure:"backoff"`
	MaxDelayMs  int    `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// DownloadConfig configures output and pacing.
type DownloadConfig struct {
	OutputDir    string `yaml:"output_dir" mapstructure:"output_dir"`
	PageDelayMs  int    `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	UnitPauseMs  int    `yaml:"unit_pause_ms" mapstructure:"unit_pause_ms"`
	SchemaPolicy string `yaml:"schema_policy" mapstructure:"schema_policy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the per-request timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BaseDelay returns the linear backoff unit.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the exponential backoff cap.
func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// PageDelay returns the wait before each page after the first.
func (c DownloadConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

// UnitPause returns the wait between units of a batch.
func (c DownloadConfig) UnitPause() time.Duration {
	return time.Duration(c.UnitPauseMs) * time.Millisecond
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.API.ReportName == "" {
		errs = append(errs, "api.report_name is required")
	}
	if c.API.PageSize < 1 || c.API.PageSize > 500 {
		errs = append(errs, "api.page_size must be between 1 and 500")
	}
	if c.API.TimeoutSecs < 1 {
		errs = append(errs, "api.timeout_secs must be > 0")
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, "api.rate_limit must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}
	if c.Retry.BaseDelayMs < 0 {
		errs = append(errs, "retry.base_delay_ms must be >= 0")
	}
	switch c.Retry.Backoff {
	case "linear":
	case "exponential":
		if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
			errs = append(errs, "retry.max_delay_ms must be >= retry.base_delay_ms")
		}
	default:
		errs = append(errs, "retry.backoff must be linear or exponential")
	}
	if c.Download.PageDelayMs < 0 || c.Download.UnitPauseMs < 0 {
		errs = append(errs, "download delays must be >= 0")
	}
	switch c.Download.SchemaPolicy {
	case "reject", "append":
	default:
		errs = append(errs, "download.schema_policy must be reject or append")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EARNINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", eastmoney.DefaultBaseURL)
	v.SetDefault("api.report_name", eastmoney.DefaultReportName)
	v.SetDefault("api.page_size", eastmoney.DefaultPageSize)
	v.SetDefault("api.timeout_secs", 30)
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.headers", eastmoney.DefaultHeaders())
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 2000)
	v.SetDefault("retry.backoff", "linear")
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("download.output_dir", ".")
	v.SetDefault("download.page_delay_ms", 500)
	v.SetDefault("download.unit_pause_ms", 1000)
	v.SetDefault("download.schema_policy", "reject")
	v.SetDefault("columns", eastmoney.DefaultColumnLabels())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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
