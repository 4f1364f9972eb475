package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Storage StorageConfig
	Browser BrowserConfig
}

// ServerConfig holds HTTP control-server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// StorageConfig locates the JSON state files, spreadsheet exports and crash
// logs on disk.
type StorageConfig struct {
	DataDir    string
	ResultsDir string
	CrashDir   string
}

// BrowserConfig holds the engagement browser's launch parameters.
type BrowserConfig struct {
	Headless   bool
	ProfileDir string
	NavTimeout time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultDataDir    = "data"
	defaultResultsDir = "data/results"
	defaultCrashDir   = "log"
	defaultProfileDir = "chrome_profiles"
	defaultNavTimeout = 30 * time.Second
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// PORT wins when set for containerized deploys, but allow SERVER_PORT
	// override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Storage: StorageConfig{
			DataDir:    getEnv("DATA_DIR", defaultDataDir),
			ResultsDir: getEnv("RESULTS_DIR", defaultResultsDir),
			CrashDir:   getEnv("CRASH_LOG_DIR", defaultCrashDir),
		},
		Browser: BrowserConfig{
			Headless:   true,
			ProfileDir: getEnv("SESSION_DIR", defaultProfileDir),
			NavTimeout: defaultNavTimeout,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text", "pretty":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json', 'text' or 'pretty'")
		}
	}

	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BROWSER_HEADLESS: %w", err)
		}
		cfg.Browser.Headless = headless
	}

	if v := os.Getenv("BROWSER_NAV_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BROWSER_NAV_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Browser.NavTimeout = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
