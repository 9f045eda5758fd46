// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend kinds.
const (
	BackendREST  = "rest"
	BackendLocal = "local"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Backend BackendConfig
	Server  ServerConfig
	Notes   NotesConfig
	Session SessionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataDir is where the session store and the local database live (default: ~/.tagnotes).
	DataDir string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// BackendConfig selects and configures the remote data service.
type BackendConfig struct {
	Kind    string // rest or local (default: rest when a URL is set, local otherwise)
	URL     string // Project URL for the rest backend
	AnonKey string // Public API key for the rest backend
	// LocalPath is the SQLite file for the local backend (default: {data}/tagnotes.db)
	LocalPath string
	Timeout   time.Duration // Per-request timeout (default: 30s)
	RPS       float64       // Outbound requests per second (default: 10)
	Burst     int           // Outbound burst (default: 20)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 0, so event streams stay open)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins    []string      // Allowed browser origins (default: http://localhost:5173)
	RateLimitRPS   float64       // Inbound requests per second per IP (default: 20)
	RateLimitBurst int           // Inbound burst per IP (default: 40)
}

// NotesConfig holds the timing of note and tag mutations.
type NotesConfig struct {
	DeleteGracePeriod time.Duration // Undo window before a delete is sent (default: 5s)
	MutationTimeout   time.Duration // Upper bound on one backend write (default: 15s)
	DedupeInterval    time.Duration // Window in which repeated loads share one fetch (default: 2s)
}

// SessionConfig holds where the signed-in session is kept.
type SessionConfig struct {
	// Path is the Badger directory for the session (default: {data}/session)
	Path string
}

// Flags holds the raw command-line values. Empty means "not given".
type Flags struct {
	EnvFile        string
	Env            string
	LogLevel       string
	DataDir        string
	BackendKind    string
	BackendURL     string
	AnonKey        string
	LocalPath      string
	BackendTimeout string
	Port           string
	CORSOrigins    string
	DeleteGrace    string
	SessionPath    string
}

// Load builds the configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(flags Flags) (*Config, error) {
	envFile := flags.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(flags.Env, "ENV", "development"),
			DataDir:     getConfigValue(flags.DataDir, "DATA_DIR", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(flags.LogLevel, "LOG_LEVEL", "info"),
		},
		Backend: BackendConfig{
			URL:       getConfigValue(flags.BackendURL, "BACKEND_URL", ""),
			AnonKey:   getConfigValue(flags.AnonKey, "BACKEND_ANON_KEY", ""),
			LocalPath: getConfigValue(flags.LocalPath, "BACKEND_LOCAL_PATH", ""),
			RPS:       getFloatConfigValue("", "BACKEND_RPS", 10),
			Burst:     getIntConfigValue("", "BACKEND_BURST", 20),
		},
		Server: ServerConfig{
			Port:           getConfigValue(flags.Port, "SERVER_PORT", "8080"),
			CORSOrigins:    splitList(getConfigValue(flags.CORSOrigins, "CORS_ORIGINS", "http://localhost:5173")),
			RateLimitRPS:   getFloatConfigValue("", "SERVER_RATE_LIMIT_RPS", 20),
			RateLimitBurst: getIntConfigValue("", "SERVER_RATE_LIMIT_BURST", 40),
		},
		Session: SessionConfig{
			Path: getConfigValue(flags.SessionPath, "SESSION_PATH", ""),
		},
	}

	defaultKind := BackendLocal
	if cfg.Backend.URL != "" {
		defaultKind = BackendREST
	}
	cfg.Backend.Kind = strings.ToLower(getConfigValue(flags.BackendKind, "BACKEND_KIND", defaultKind))

	durations := []struct {
		dst   *time.Duration
		flag  string
		env   string
		def   string
		label string
	}{
		{&cfg.Backend.Timeout, flags.BackendTimeout, "BACKEND_TIMEOUT", "30s", "backend timeout"},
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "0s", "write timeout"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s", "idle timeout"},
		{&cfg.Notes.DeleteGracePeriod, flags.DeleteGrace, "DELETE_GRACE_PERIOD", "5s", "delete grace period"},
		{&cfg.Notes.MutationTimeout, "", "MUTATION_TIMEOUT", "15s", "mutation timeout"},
		{&cfg.Notes.DedupeInterval, "", "DEDUPE_INTERVAL", "2s", "dedupe interval"},
	}
	for _, d := range durations {
		s := getConfigValue(d.flag, d.env, d.def)
		v, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.label, s, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	// Validate configuration.
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

	switch c.Backend.Kind {
	case BackendREST:
		if c.Backend.URL == "" {
			return errors.New("BACKEND_URL is required for the rest backend")
		}
	case BackendLocal:
		if c.Backend.LocalPath == "" {
			return errors.New("BACKEND_LOCAL_PATH cannot be empty after expansion")
		}
	default:
		return fmt.Errorf("invalid backend kind: %s (must be rest or local)", c.Backend.Kind)
	}

	if c.Backend.RPS <= 0 || c.Server.RateLimitRPS <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.Notes.DeleteGracePeriod < 0 {
		return fmt.Errorf("invalid delete grace period: %s", c.Notes.DeleteGracePeriod)
	}
	if c.Notes.MutationTimeout <= 0 {
		return fmt.Errorf("invalid mutation timeout: %s", c.Notes.MutationTimeout)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and the paths derived from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	data, err := expandPath(c.App.DataDir, filepath.Join(homeDir, ".tagnotes"))
	if err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}
	c.App.DataDir = data

	if c.Session.Path, err = expandPath(c.Session.Path, filepath.Join(data, "session")); err != nil {
		return fmt.Errorf("invalid session path: %w", err)
	}

	// The in-memory database is passed through untouched.
	if c.Backend.LocalPath == ":memory:" {
		return nil
	}
	if c.Backend.LocalPath, err = expandPath(c.Backend.LocalPath, filepath.Join(data, "tagnotes.db")); err != nil {
		return fmt.Errorf("invalid local database path: %w", err)
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + c.Server.Port
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
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

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file. Variables that
// are already set to a non-empty value win over the file.
func loadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	for key, value := range values {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}
	return nil
}
