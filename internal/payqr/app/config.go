package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tabletap/payqr/pkg/jwtx"
)

type Config struct {
	Issuer   string   // Issuer claim for credentials (default: payqr)
	Audience []string // Audience claim for credentials (default: payqr-terminal)

	SigningSecret     string // HS256 secret; at least 32 bytes
	SigningSecretFile string // Optional: file holding the secret instead

	TokenTTL       time.Duration // Credential lifetime (default: 5m)
	DatabaseFile   string        // Path to SQLite database file (default: ./payqr.db)
	TerminalAPIKey string        // Optional: API key required on terminal endpoints
	AuditRetention time.Duration // Audit entry retention (default: 90 days)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:            getEnvOrDefault("PAYQR_ISSUER", "payqr"),
		Audience:          splitCSV(getEnvOrDefault("PAYQR_AUDIENCE", "payqr-terminal")),
		SigningSecret:     os.Getenv("PAYQR_SIGNING_SECRET"),
		SigningSecretFile: os.Getenv("PAYQR_SIGNING_SECRET_FILE"),

		TokenTTL:       getEnvDurationOrDefault("PAYQR_TOKEN_TTL", jwtx.DefaultCredentialTTL),
		DatabaseFile:   getEnvOrDefault("PAYQR_DATABASE_FILE", "payqr.db"),
		TerminalAPIKey: os.Getenv("PAYQR_TERMINAL_API_KEY"),
		AuditRetention: getEnvDurationOrDefault("PAYQR_AUDIT_RETENTION", 90*24*time.Hour),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// signingSecret resolves the HS256 secret, preferring the inline value
// over the file path.
func (c Config) signingSecret() ([]byte, error) {
	if c.SigningSecret != "" {
		return []byte(c.SigningSecret), nil
	}
	if c.SigningSecretFile != "" {
		data, err := os.ReadFile(c.SigningSecretFile)
		if err != nil {
			return nil, err
		}
		return []byte(strings.TrimSpace(string(data))), nil
	}
	return nil, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
