package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "default-dev-secret-change-me"

type Config struct {
	// Server
	Port        string
	Env         string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret         string
	AccessTokenExpiry time.Duration
	AdminUsername     string
	AdminPassword     string
	AdminEmail        string

	// Event bus
	NATSPort int

	// Monitoring session
	RefreshInterval  time.Duration
	IssueProbability float64
	SimulationSeed   uint64

	// Chat
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32
	ChatRatePerMinute int

	// Sensor telemetry
	InfluxURL         string
	InfluxToken       string
	InfluxOrg         string
	InfluxBucket      string
	InfluxMeasurement string
}

// Load reads the first .env file found and builds the configuration from the
// environment.
func Load() (*Config, error) {
	envPaths := []string{
		".env",
		"../.env",
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded config", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "3001"),
		Env:         getEnvOrDefault("ENV", "development"),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "text"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:     getEnvOrDefault("JWT_SECRET", defaultJWTSecret),
		AdminUsername: getEnvOrDefault("ADMIN_USERNAME", "petro"),
		AdminPassword: getEnvOrDefault("ADMIN_PASSWORD", "avash123"),
		AdminEmail:    getEnvOrDefault("ADMIN_EMAIL", "petro@example.com"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getEnvOrDefault("OPENAI_MODEL", "gpt-4.1-nano"),

		InfluxURL:         os.Getenv("INFLUX_URL"),
		InfluxToken:       os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:         os.Getenv("INFLUX_ORG"),
		InfluxBucket:      os.Getenv("INFLUX_BUCKET"),
		InfluxMeasurement: getEnvOrDefault("INFLUX_MEASUREMENT", "sensor_measurements"),
	}

	expiryMinutes, err := parseIntOrDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.AccessTokenExpiry = time.Duration(expiryMinutes) * time.Minute

	if cfg.NATSPort, err = parseIntOrDefault("NATS_PORT", 4233); err != nil {
		return nil, err
	}
	if cfg.ChatRatePerMinute, err = parseIntOrDefault("CHAT_RATE_PER_MINUTE", 20); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = parseDurationOrDefault("REFRESH_INTERVAL", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.IssueProbability, err = parseFloatOrDefault("ISSUE_PROBABILITY", 0.8); err != nil {
		return nil, err
	}
	temperature, err := parseFloatOrDefault("OPENAI_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	cfg.OpenAITemperature = float32(temperature)

	seed, err := parseIntOrDefault("SIMULATION_SEED", 0)
	if err != nil {
		return nil, err
	}
	cfg.SimulationSeed = uint64(seed)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("REFRESH_INTERVAL must be at least 1 second")
	}
	if c.IssueProbability < 0 || c.IssueProbability > 1 {
		return fmt.Errorf("ISSUE_PROBABILITY must be between 0 and 1")
	}
	if c.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.ChatRatePerMinute <= 0 {
		return fmt.Errorf("CHAT_RATE_PER_MINUTE must be positive")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ChatEnabled reports whether an OpenAI key is configured.
func (c *Config) ChatEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// InfluxEnabled reports whether sensor telemetry can be queried.
func (c *Config) InfluxEnabled() bool {
	return c.InfluxURL != "" && c.InfluxToken != "" && c.InfluxOrg != "" && c.InfluxBucket != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) (int, error) {
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

func parseFloatOrDefault(key string, defaultValue float64) (float64, error) {
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

func parseDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
