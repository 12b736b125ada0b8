package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Events   EventsConfig   `yaml:"events" mapstructure:"events"`
	Versions VersionsConfig `yaml:"versions" mapstructure:"versions"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Lineage  LineageConfig  `yaml:"lineage" mapstructure:"lineage"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EventsConfig configures the annotation event store backend.
type EventsConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VersionsConfig configures the dataset version store backend.
type VersionsConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
}

// PipelineConfig holds the default run parameters. Each run copies these into
// an explicit model.RunParams value; nothing reads them mid-run.
type PipelineConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	LogicVersion        string  `yaml:"logic_version" mapstructure:"logic_version"`
	WindowField         string  `yaml:"window_field" mapstructure:"window_field"`
	Partitions          int     `yaml:"partitions" mapstructure:"partitions"`
	ConfigRef           string  `yaml:"config_ref" mapstructure:"config_ref"`
}

// ImportConfig configures retrieval of annotation export files.
type ImportConfig struct {
	HTTPTimeoutSecs int     `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	FTPTimeoutSecs  int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LineageConfig configures the optional Notion lineage publisher.
type LineageConfig struct {
	NotionToken string `yaml:"notion_token" mapstructure:"notion_token"`
	DatabaseID  string `yaml:"database_id" mapstructure:"database_id"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("events.driver", "sqlite")
	v.SetDefault("events.database_url", "curator.db")
	v.SetDefault("versions.driver", "sqlite")
	v.SetDefault("versions.database_url", "curator.db")
	v.SetDefault("versions.dir", "versions")
	v.SetDefault("pipeline.confidence_threshold", 0.8)
	v.SetDefault("pipeline.logic_version", "unanimous-v1")
	v.SetDefault("pipeline.window_field", "event_time")
	v.SetDefault("pipeline.partitions", 1)
	v.SetDefault("import.http_timeout_secs", 60)
	v.SetDefault("import.ftp_timeout_secs", 30)
	v.SetDefault("import.user_agent", "curator-cli/1.0")
	v.SetDefault("import.rate_limit", 10)
	v.SetDefault("server.port", 8080)
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
