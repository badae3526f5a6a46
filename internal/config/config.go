// Package config loads abr settings from a YAML file, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	DBPath     string        `yaml:"db"`
	OutputDir  string        `yaml:"output_dir"`
	Confidence float64       `yaml:"confidence"`
	Variants   []string      `yaml:"variants"`
	Port       int           `yaml:"port"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	LogLevel   string        `yaml:"log_level"`
	Report     Report        `yaml:"report"`
}

// Report holds presentation settings for Markdown and terminal output.
type Report struct {
	Title       string `yaml:"title"`
	TopSegments int    `yaml:"top_segments"`
	RecentDays  int    `yaml:"recent_days"`
	Currency    string `yaml:"currency"`
}

// DefaultFile is the config file read when no path is given.
const DefaultFile = "abr.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:     "./abr.db",
		OutputDir:  "./outputs",
		Confidence: 0.95,
		Port:       8080,
		TokenTTL:   24 * time.Hour,
		LogLevel:   "info",
		Report: Report{
			Title:       "E-commerce experiment",
			TopSegments: 10,
			RecentDays:  14,
			Currency:    "£",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// present), .env files and ABR_* environment variables, in increasing order
// of precedence. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	loadDotEnv()

	cfg.DBPath = getEnvString("ABR_DB_PATH", cfg.DBPath)
	cfg.OutputDir = getEnvString("ABR_OUTPUT_DIR", cfg.OutputDir)
	cfg.LogLevel = getEnvString("ABR_LOG_LEVEL", cfg.LogLevel)
	cfg.Report.Currency = getEnvString("ABR_CURRENCY", cfg.Report.Currency)
	if cfg.Port, err = getEnvInt("ABR_PORT", cfg.Port); err != nil {
		return nil, err
	}
	if v := os.Getenv("ABR_TOKEN_TTL"); v != "" {
		if cfg.TokenTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid ABR_TOKEN_TTL: %w", err)
		}
	}
	if cfg.Confidence, err = getEnvFloat("ABR_CONFIDENCE", cfg.Confidence); err != nil {
		return nil, err
	}
	if v := os.Getenv("ABR_VARIANTS"); v != "" {
		cfg.Variants = SplitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if !(c.Confidence > 0 && c.Confidence < 1) {
		return fmt.Errorf("confidence must be between 0 and 1, got %v", c.Confidence)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	if c.Report.TopSegments < 0 || c.Report.RecentDays < 0 {
		return fmt.Errorf("report.top_segments and report.recent_days must not be negative")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadDotEnv loads the first .env found in the working directory or the
// user config directory. Existing variables are not overridden.
func loadDotEnv() {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "abr", ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
