package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Audit     AuditConfig
	Cleanup   CleanupConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxSessionsPerUser int
}

type RateLimitConfig struct {
	Requests     int
	Window       time.Duration
	AuthRequests int
	AuthWindow   time.Duration
}

type LockoutConfig struct {
	MaxLoginAttempts     int
	LockoutDuration      time.Duration
	AttemptWindow        time.Duration
	ProgressiveLockout   bool
	DistributedThreshold int
}

type AuditConfig struct {
	RingSize int
	LogFile  string
}

type CleanupConfig struct {
	Interval     time.Duration // rate-limit sweeps, revocation pruning
	DeepInterval time.Duration // attempt/lockout pruning
}

// Load reads configuration from the environment (and an optional .env
// file). Missing or invalid settings are fatal at boot, never per-request.
func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("JWT_ACCESS_TTL", 60*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			MaxSessionsPerUser: getEnvAsInt("MAX_SESSIONS_PER_USER", 5),
		},
		RateLimit: RateLimitConfig{
			Requests:     getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			Window:       getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			AuthRequests: getEnvAsInt("AUTH_RATE_LIMIT_REQUESTS", 10),
			AuthWindow:   getEnvAsDuration("AUTH_RATE_LIMIT_WINDOW", 5*time.Minute),
		},
		Lockout: LockoutConfig{
			MaxLoginAttempts:     getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:      getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			AttemptWindow:        getEnvAsDuration("ATTEMPT_WINDOW", 15*time.Minute),
			ProgressiveLockout:   getEnvAsBool("PROGRESSIVE_LOCKOUT", true),
			DistributedThreshold: getEnvAsInt("DISTRIBUTED_ATTACK_THRESHOLD", 10),
		},
		Audit: AuditConfig{
			RingSize: getEnvAsInt("AUDIT_RING_SIZE", 1000),
			LogFile:  getEnv("AUDIT_LOG_FILE", "audit.log"),
		},
		Cleanup: CleanupConfig{
			Interval:     getEnvAsDuration("CLEANUP_INTERVAL", 60*time.Second),
			DeepInterval: getEnvAsDuration("DEEP_CLEANUP_INTERVAL", 5*time.Minute),
		},
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"JWT_ACCESS_TTL", c.Auth.AccessTokenExpiry > 0},
		{"JWT_REFRESH_TTL", c.Auth.RefreshTokenExpiry > 0},
		{"MAX_SESSIONS_PER_USER", c.Auth.MaxSessionsPerUser > 0},
		{"RATE_LIMIT_REQUESTS", c.RateLimit.Requests > 0},
		{"RATE_LIMIT_WINDOW", c.RateLimit.Window > 0},
		{"AUTH_RATE_LIMIT_REQUESTS", c.RateLimit.AuthRequests > 0},
		{"AUTH_RATE_LIMIT_WINDOW", c.RateLimit.AuthWindow > 0},
		{"MAX_LOGIN_ATTEMPTS", c.Lockout.MaxLoginAttempts > 0},
		{"LOCKOUT_DURATION", c.Lockout.LockoutDuration > 0},
		{"ATTEMPT_WINDOW", c.Lockout.AttemptWindow > 0},
		{"DISTRIBUTED_ATTACK_THRESHOLD", c.Lockout.DistributedThreshold > 0},
		{"AUDIT_RING_SIZE", c.Audit.RingSize > 0},
		{"CLEANUP_INTERVAL", c.Cleanup.Interval > 0},
		{"DEEP_CLEANUP_INTERVAL", c.Cleanup.DeepInterval > 0},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%s must be a positive value", check.name)
		}
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Bare numbers are interpreted as seconds, matching the
		// environment conventions of the deployment tooling.
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
