// Package config loads the shopping list API configuration from command-line
// flags, environment variables and an optional .env file.
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

// Supported store backends.
const (
	BackendMongo  = "mongo"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // default: 3001
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 15s
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins, default: *
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Backend        string
	MongoURI       string
	MongoDatabase  string
	ConnectTimeout time.Duration
	// DataPath is the directory used by the embedded backends.
	DataPath string
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	Enabled  bool
	JWKSURL  string
	Issuer   string
	Audience string
	// DevSubject is the owner assigned to every request when auth is disabled.
	DevSubject string
}

// RateLimitConfig holds per-client request limits. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shopping-list", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	port := fs.String("port", "", "Server port (default: 3001)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("cors-origins", "", "Comma separated CORS origins (default: *)")

	backend := fs.String("store", "", "Store backend: mongo, badger or sqlite (default: mongo)")
	mongoURI := fs.String("mongo-uri", "", "MongoDB connection string")
	mongoDB := fs.String("mongo-database", "", "MongoDB database name")
	connectTimeout := fs.String("mongo-connect-timeout", "", "MongoDB connect timeout (default: 10s)")
	dataPath := fs.String("data-path", "", "Data directory for embedded stores")

	authEnabled := fs.String("auth-enabled", "", "Require bearer tokens (default: true)")
	jwksURL := fs.String("jwks-url", "", "JWKS endpoint of the identity provider")
	issuer := fs.String("jwt-issuer", "", "Expected token issuer")
	audience := fs.String("jwt-audience", "", "Expected token audience")

	rpm := fs.String("rate-limit", "", "Requests per minute per client (default: 300, 0 disables)")
	burst := fs.String("rate-limit-burst", "", "Rate limit burst (default: 50)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "PORT", "3001"),
			AllowedOrigins: splitList(getConfigValue(*origins, "CORS_ALLOWED_ORIGINS", "*")),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getConfigValue(*backend, "STORE_BACKEND", BackendMongo)),
			MongoURI:      getConfigValue(*mongoURI, "MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getConfigValue(*mongoDB, "MONGO_DATABASE", "shopping-list-app"),
			DataPath:      getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Auth: AuthConfig{
			Enabled:    getBoolConfigValue(*authEnabled, "AUTH_ENABLED", true),
			JWKSURL:    getConfigValue(*jwksURL, "AUTH_JWKS_URL", ""),
			Issuer:     getConfigValue(*issuer, "AUTH_ISSUER", ""),
			Audience:   getConfigValue(*audience, "AUTH_AUDIENCE", ""),
			DevSubject: getConfigValue("", "AUTH_DEV_SUBJECT", "local-user"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntConfigValue(*rpm, "RATE_LIMIT_PER_MINUTE", 300),
			Burst:             getIntConfigValue(*burst, "RATE_LIMIT_BURST", 50),
		},
	}

	durations := []struct {
		name     string
		flag     string
		envKey   string
		fallback string
		dst      *time.Duration
	}{
		{"read timeout", *readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"write timeout", *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{"idle timeout", *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"mongo connect timeout", *connectTimeout, "MONGO_CONNECT_TIMEOUT", "10s", &cfg.Store.ConnectTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
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

// Validate checks that all required config values are present and consistent.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}

	switch c.Store.Backend {
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
		if c.Store.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE is required for the mongo store")
		}
	case BackendBadger, BackendSQLite:
		if c.Store.DataPath == "" {
			return fmt.Errorf("DATA_PATH is required for the %s store", c.Store.Backend)
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be mongo, badger, or sqlite)", c.Store.Backend)
	}

	if c.Auth.Enabled && c.Auth.JWKSURL == "" {
		return errors.New("AUTH_JWKS_URL is required when authentication is enabled")
	}
	if !c.Auth.Enabled {
		if c.App.Environment == "production" {
			return errors.New("authentication cannot be disabled in production")
		}
		if c.Auth.DevSubject == "" {
			return errors.New("AUTH_DEV_SUBJECT is required when authentication is disabled")
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values cannot be negative")
	}

	return nil
}

// expandDataPath applies the default data directory and makes it absolute.
func (c *Config) expandDataPath() error {
	if c.Store.Backend == BackendMongo && c.Store.DataPath == "" {
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Store.DataPath, filepath.Join(homeDir, ".shopping-list", "data"))
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// An empty path yields defaultPath.
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

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from a .env file. Variables already set
// in the environment are left alone.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
