package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rpattn/ecomdata/internal/db"
	"github.com/rpattn/ecomdata/internal/events"
	"github.com/rpattn/ecomdata/internal/repository/mongostore"
	"github.com/rpattn/ecomdata/internal/telemetry"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Storage  StorageConfig     `mapstructure:"storage"`
	Database db.Config         `mapstructure:"database"`
	Mongo    mongostore.Config `mapstructure:"mongo"`
	Logging  LoggingConfig     `mapstructure:"logging"`
	Tracing  telemetry.Config  `mapstructure:"tracing"`
	Events   events.Config     `mapstructure:"events"`
	Export   ExportConfig      `mapstructure:"export"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" validate:"gt=0"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" validate:"min=1"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RateLimitConfig struct {
	UploadRPS   float64 `mapstructure:"upload_rps" validate:"gte=0"`
	UploadBurst int     `mapstructure:"upload_burst" validate:"gte=0"`
}

type StorageConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=postgres mongo memory"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type ExportConfig struct {
	MaxRows int    `mapstructure:"max_rows" validate:"gt=0"`
	SortKey string `mapstructure:"sort_key" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8001,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadMB:     32,
			CORS:            CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
			RateLimit:       RateLimitConfig{UploadRPS: 5, UploadBurst: 10},
		},
		Storage: StorageConfig{
			Driver:         DriverMongo,
			AutoMigrate:    true,
			ConnectTimeout: 10 * time.Second,
		},
		Database: db.DefaultConfig(),
		Mongo: mongostore.Config{
			URL:      "mongodb://localhost:27017",
			Database: "ecommerce",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Tracing: telemetry.Config{ServiceName: "ecomdata", SampleRatio: 1},
		Events:  events.Config{Queue: "processing_logs"},
		Export:  ExportConfig{MaxRows: 100000, SortKey: "order_date"},
	}
}

// envAliases maps config keys to the bare variable names deployments
// already use, in addition to the ECOM_ prefixed form.
var envAliases = map[string]string{
	"mongo.url":                   "MONGO_URL",
	"mongo.database":              "DB_NAME",
	"server.cors.allowed_origins": "CORS_ORIGINS",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.sslmode":            "DB_SSLMODE",
}

// Load reads configPath/config.yaml and configPath/.env when present, then
// applies environment overrides and validates the result.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := Default()

	if err := godotenv.Load(filepath.Join(configPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("/etc/ecomdata")
	v.SetEnvPrefix("ECOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // allow environment overrides

	setDefaults(v, cfg)
	for key, alias := range envAliases {
		envKey := "ECOM_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return cfg, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Info("no config.yaml found, using defaults and env vars", "path", configPath)
	} else {
		slog.Info("loaded config", "file", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Server.CORS.AllowedOrigins = splitOrigins(cfg.Server.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the sections relevant to the selected storage driver.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	sections := []any{c.Server, c.Storage, c.Logging, c.Tracing, c.Events, c.Export}
	switch c.Storage.Driver {
	case DriverPostgres:
		sections = append(sections, c.Database)
	case DriverMongo:
		sections = append(sections, c.Mongo)
	}
	for _, section := range sections {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_mb", cfg.Server.MaxUploadMB)
	v.SetDefault("server.cors.allowed_origins", cfg.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.allow_credentials", cfg.Server.CORS.AllowCredentials)
	v.SetDefault("server.rate_limit.upload_rps", cfg.Server.RateLimit.UploadRPS)
	v.SetDefault("server.rate_limit.upload_burst", cfg.Server.RateLimit.UploadBurst)

	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.auto_migrate", cfg.Storage.AutoMigrate)
	v.SetDefault("storage.connect_timeout", cfg.Storage.ConnectTimeout)

	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.max_conns", cfg.Database.MaxConns)

	v.SetDefault("mongo.url", cfg.Mongo.URL)
	v.SetDefault("mongo.database", cfg.Mongo.Database)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)

	v.SetDefault("events.enabled", cfg.Events.Enabled)
	v.SetDefault("events.url", cfg.Events.URL)
	v.SetDefault("events.queue", cfg.Events.Queue)

	v.SetDefault("export.max_rows", cfg.Export.MaxRows)
	v.SetDefault("export.sort_key", cfg.Export.SortKey)
}

// splitOrigins accepts both list values and a single comma separated entry.
func splitOrigins(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
