// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Data        DataConfig
	Server      ServerConfig
	LLM         LLMConfig
	GoogleBooks GoogleBooksConfig
	Quota       QuotaConfig
	Recommend   RecommendConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// IsProduction reports whether the server runs in production.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds local storage configuration.
type DataConfig struct {
	BasePath string // Holds the SQLite database and the search cache
}

// DatabasePath returns the SQLite database file.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.BasePath, "shelfmate.db")
}

// SearchCachePath returns the badger directory for cached external searches.
func (d DataConfig) SearchCachePath() string {
	return filepath.Join(d.BasePath, "cache", "search")
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port              string        // Server port (default: 8080)
	ReadTimeout       time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout      time.Duration // HTTP write timeout (default: 90s, covers a slow model call)
	IdleTimeout       time.Duration // HTTP idle timeout (default: 60s)
	RequestsPerMinute int           // Per-IP request limit on the API (default: 120, 0 disables)
	CORSOrigins       []string      // Allowed CORS origins (default: *)
}

// LLMConfig holds text-generation provider configuration.
type LLMConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration // Bounds one generation call
	RequestsPerSecond float64
}

// GoogleBooksConfig holds external bibliographic search configuration.
type GoogleBooksConfig struct {
	BaseURL    string
	APIKey     string // Optional; raises the daily API quota
	MaxResults int
	Timeout    time.Duration
	CacheTTL   time.Duration
}

// QuotaConfig holds daily generation limits.
type QuotaConfig struct {
	Enabled       bool
	MaxPerDay     int
	RetentionDays int           // Counters older than this are swept
	SweepInterval time.Duration // How often the sweep runs
}

// RecommendConfig holds recommendation generation settings.
type RecommendConfig struct {
	RejectionWindow time.Duration // Rejected titles inside this window are excluded
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit command-line arguments.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shelfmate", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the database and caches")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 90s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	rateLimit := fs.String("rate-limit", "", "Per-IP requests per minute (default: 120, 0 disables)")

	// Provider flags
	llmBaseURL := fs.String("llm-base-url", "", "Chat completions API root")
	llmModel := fs.String("llm-model", "", "Model name")
	llmTimeout := fs.String("llm-timeout", "", "Generation call timeout (default: 60s)")
	booksBaseURL := fs.String("google-books-base-url", "", "Google Books API root")

	// Quota flags
	quotaEnabled := fs.String("quota-enabled", "", "Enforce the daily generation quota (default: true)")
	quotaMax := fs.String("quota-max-per-day", "", "Generations allowed per user per day (default: 3)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:              getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			RequestsPerMinute: getIntConfigValue(*rateLimit, "SERVER_RATE_LIMIT", 120),
			CORSOrigins:       getListConfigValue("", "CORS_ORIGINS", []string{"*"}),
		},
		LLM: LLMConfig{
			BaseURL:           getConfigValue(*llmBaseURL, "LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:            getConfigValue("", "LLM_API_KEY", ""),
			Model:             getConfigValue(*llmModel, "LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:         getIntConfigValue("", "LLM_MAX_TOKENS", 500),
			Temperature:       getFloatConfigValue("", "LLM_TEMPERATURE", 0.7),
			RequestsPerSecond: getFloatConfigValue("", "LLM_REQUESTS_PER_SECOND", 1),
		},
		GoogleBooks: GoogleBooksConfig{
			BaseURL:    getConfigValue(*booksBaseURL, "GOOGLE_BOOKS_BASE_URL", "https://www.googleapis.com/books/v1"),
			APIKey:     getConfigValue("", "GOOGLE_BOOKS_API_KEY", ""),
			MaxResults: getIntConfigValue("", "GOOGLE_BOOKS_MAX_RESULTS", 5),
		},
		Quota: QuotaConfig{
			Enabled:       getBoolConfigValue(*quotaEnabled, "QUOTA_ENABLED", true),
			MaxPerDay:     getIntConfigValue(*quotaMax, "QUOTA_MAX_PER_DAY", 3),
			RetentionDays: getIntConfigValue("", "QUOTA_RETENTION_DAYS", 7),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "90s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.LLM.Timeout, *llmTimeout, "LLM_TIMEOUT", "60s"},
		{&cfg.GoogleBooks.Timeout, "", "GOOGLE_BOOKS_TIMEOUT", "15s"},
		{&cfg.GoogleBooks.CacheTTL, "", "GOOGLE_BOOKS_CACHE_TTL", "24h"},
		{&cfg.Quota.SweepInterval, "", "QUOTA_SWEEP_INTERVAL", "24h"},
		{&cfg.Recommend.RejectionWindow, "", "REJECTION_WINDOW", "720h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.App.IsProduction() && c.LLM.APIKey == "" {
		return errors.New("LLM_API_KEY is required in production")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("invalid LLM max tokens: %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid LLM temperature: %v (must be between 0 and 2)", c.LLM.Temperature)
	}

	if c.Quota.Enabled && c.Quota.MaxPerDay < 1 {
		return fmt.Errorf("invalid quota max per day: %d (must be at least 1)", c.Quota.MaxPerDay)
	}
	if c.Quota.RetentionDays < 1 {
		return fmt.Errorf("invalid quota retention: %d days (must be at least 1)", c.Quota.RetentionDays)
	}

	if c.Recommend.RejectionWindow < 0 {
		return errors.New("rejection window cannot be negative")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
// Defaults to ~/Shelfmate/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Shelfmate", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue splits a comma-separated value, dropping empty items.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var items []string
	for item := range strings.SplitSeq(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments). Variables already set in
// the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
