package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr  = ":8080"
	defaultAPIBase     = "http://localhost:8000/api/v1"
	defaultDBPath      = "fairmind.db"
	defaultHTTPTimeout = 2 * time.Minute
	defaultRows        = 1000

	envConfigFile  = "FAIRMIND_CONFIG"
	envListenAddr  = "FAIRMIND_LISTEN_ADDR"
	envAPIBase     = "FAIRMIND_API_BASE"
	envDBPath      = "FAIRMIND_DB_PATH"
	envLogLevel    = "FAIRMIND_LOG_LEVEL"
	envOrgID       = "FAIRMIND_ORG_ID"
	envHTTPTimeout = "FAIRMIND_HTTP_TIMEOUT"
	envDefaultRows = "FAIRMIND_DEFAULT_ROWS"
)

// Config holds application configuration.
type Config struct {
	ListenAddr  string
	APIBase     string
	DBPath      string
	LogLevel    slog.Level
	OrgID       string
	HTTPTimeout time.Duration
	DefaultRows int
}

// fileConfig is the YAML overlay layout. Every key is optional.
type fileConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	APIBase     string `yaml:"api_base"`
	DBPath      string `yaml:"db_path"`
	LogLevel    string `yaml:"log_level"`
	OrgID       string `yaml:"org_id"`
	HTTPTimeout string `yaml:"http_timeout"`
	DefaultRows int    `yaml:"default_rows"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:  defaultListenAddr,
		APIBase:     defaultAPIBase,
		DBPath:      defaultDBPath,
		LogLevel:    slog.LevelInfo,
		HTTPTimeout: defaultHTTPTimeout,
		DefaultRows: defaultRows,
	}
}

// Load reads configuration with sensible defaults. Values that fail to parse
// are ignored and the default is kept.
func Load() Config {
	cfg, _ := load()
	return cfg
}

// LoadWithError is Load but reports every value that failed to parse. The
// returned Config is still usable.
func LoadWithError() (Config, error) {
	return load()
}

func load() (Config, error) {
	cfg := Default()
	var errs []error

	if path := os.Getenv(envConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			errs = append(errs, err)
		}
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envAPIBase); v != "" {
		cfg.APIBase = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envOrgID); v != "" {
		cfg.OrgID = v
	}
	if v := os.Getenv(envHTTPTimeout); v != "" {
		if err := setDuration(&cfg.HTTPTimeout, envHTTPTimeout, v); err != nil {
			errs = append(errs, err)
		}
	}
	if v := os.Getenv(envDefaultRows); v != "" {
		if err := setRows(&cfg.DefaultRows, envDefaultRows, v); err != nil {
			errs = append(errs, err)
		}
	}

	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return cfg, errors.Join(errs...)
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.APIBase != "" {
		cfg.APIBase = fc.APIBase
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if fc.OrgID != "" {
		cfg.OrgID = fc.OrgID
	}
	var errs []error
	if fc.HTTPTimeout != "" {
		if err := setDuration(&cfg.HTTPTimeout, "http_timeout", fc.HTTPTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if fc.DefaultRows != 0 {
		if err := setRows(&cfg.DefaultRows, "default_rows", strconv.Itoa(fc.DefaultRows)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setDuration(dst *time.Duration, key, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	*dst = d
	return nil
}

func setRows(dst *int, key, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	*dst = n
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
