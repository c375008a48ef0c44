package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultConfigPath = "config/config.yaml"

// Config holds the runtime settings of the service. The recognition
// catalog lives in its own document, see Catalog.
type Config struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ImageFetchTimeout  time.Duration `mapstructure:"image_fetch_timeout"`
	AnalysisTimeout    time.Duration `mapstructure:"analysis_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	LogLevel           string        `mapstructure:"log_level"`
	CatalogPath        string        `mapstructure:"catalog_path"`

	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Detector DetectorConfig `mapstructure:"detector"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type StorageConfig struct {
	Backend          string `mapstructure:"backend"`
	UploadDir        string `mapstructure:"upload_dir"`
	AzureAccountName string `mapstructure:"azure_account_name"`
	AzureAccountKey  string `mapstructure:"azure_account_key"`
	AzureContainer   string `mapstructure:"azure_container"`
}

// DetectorConfig points at the object-detection inference endpoint.
type DetectorConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OCRConfig struct {
	Language string `mapstructure:"language"`
}

// RedisConfig enables alert fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type AnalysisConfig struct {
	MaxWorkers      int     `mapstructure:"max_workers"`
	DenoiseSigma    float64 `mapstructure:"denoise_sigma"`
	MaxCodeDistance int     `mapstructure:"max_code_distance"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"host":                       "HOST",
	"port":                       "PORT",
	"request_timeout":            "REQUEST_TIMEOUT",
	"image_fetch_timeout":        "IMAGE_FETCH_TIMEOUT",
	"analysis_timeout":           "ANALYSIS_TIMEOUT",
	"max_request_body_size":      "MAX_REQUEST_BODY_SIZE",
	"log_level":                  "LOG_LEVEL",
	"catalog_path":               "CATALOG_PATH",
	"database.driver":            "DB_DRIVER",
	"database.dsn":               "DB_DSN",
	"database.auto_migrate":      "DB_AUTO_MIGRATE",
	"storage.backend":            "STORAGE_BACKEND",
	"storage.upload_dir":         "UPLOAD_DIR",
	"storage.azure_account_name": "AZURE_ACCOUNT_NAME",
	"storage.azure_account_key":  "AZURE_ACCOUNT_KEY",
	"storage.azure_container":    "AZURE_CONTAINER",
	"detector.url":               "DETECTOR_URL",
	"detector.timeout":           "DETECTOR_TIMEOUT",
	"ocr.language":               "OCR_LANGUAGE",
	"redis.addr":                 "REDIS_ADDR",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"redis.channel":              "REDIS_CHANNEL",
	"analysis.max_workers":       "ANALYSIS_MAX_WORKERS",
	"analysis.denoise_sigma":     "DENOISE_SIGMA",
	"analysis.max_code_distance": "MAX_CODE_DISTANCE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("image_fetch_timeout", 15*time.Second)
	v.SetDefault("analysis_timeout", 60*time.Second)
	v.SetDefault("max_request_body_size", 10*1024*1024) // 10MB
	v.SetDefault("log_level", "info")
	v.SetDefault("catalog_path", "config/catalog.yaml")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.upload_dir", "data/uploads")
	v.SetDefault("storage.azure_container", "shelf-images")
	v.SetDefault("detector.timeout", 30*time.Second)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("redis.channel", "shelf_alerts")
	v.SetDefault("analysis.max_workers", 0)
	v.SetDefault("analysis.denoise_sigma", 0.8)
	v.SetDefault("analysis.max_code_distance", 1)
}

// Load reads the config file at path (when present) and applies environment
// overrides. An empty path means CONFIG_PATH, then config/config.yaml; only an
// explicitly requested file has to exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
		explicit = false
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads settings using only defaults, CONFIG_PATH and the environment.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required for driver %s", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
		if strings.TrimSpace(c.Storage.UploadDir) == "" {
			return fmt.Errorf("UPLOAD_DIR must not be empty")
		}
	case "azure":
		if c.Storage.AzureAccountName == "" || c.Storage.AzureAccountKey == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for azure storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.Storage.Backend)
	}
	if c.Analysis.MaxWorkers < 0 {
		return fmt.Errorf("ANALYSIS_MAX_WORKERS must be >= 0 (got %d)", c.Analysis.MaxWorkers)
	}
	if c.Analysis.DenoiseSigma < 0 {
		return fmt.Errorf("DENOISE_SIGMA must be >= 0 (got %g)", c.Analysis.DenoiseSigma)
	}
	return nil
}
