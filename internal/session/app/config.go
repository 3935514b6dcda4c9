package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Secret       string // Required: server secret keying fingerprints and tokens
	DatabaseFile string // Optional: path to SQLite database file (default: ./frontsession.db)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	Active            bool          // Feature gate for the whole /session surface (default: true)
	Registration      bool          // Allow public signups (default: false)
	Recovery          bool          // Allow password recovery (default: true)
	PasswordMinLength int           // Minimum password length (default: 6)
	SessionTTL        time.Duration // Server-side session lifetime (default: 2h)

	SessionCookieName  string // default: frontsession
	RememberCookieName string // default: frontsession_remember
	CookieDomain       string // Optional: shared domain across subdomain tenants

	MailFrom   string   // Optional: from address; empty disables outbound mail
	AdminRcpts []string // Optional: addresses notified about registrations
	SMTPAddr   string   // SMTP relay host:port (default: localhost:25)
}

func LoadConfig() Config {
	cfg := Config{
		Secret:       os.Getenv("SESSION_SECRET"),
		DatabaseFile: getEnvOrDefault("SESSION_DATABASE_FILE", "frontsession.db"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		Active:            getEnvBoolOrDefault("SESSION_ACTIVE", true),
		Registration:      getEnvBoolOrDefault("SESSION_REGISTRATION", false),
		Recovery:          getEnvBoolOrDefault("SESSION_RECOVERY", true),
		PasswordMinLength: getEnvIntOrDefault("SESSION_PASSWORD_MIN_LENGTH", 6),
		SessionTTL:        getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),

		SessionCookieName:  getEnvOrDefault("SESSION_COOKIE_NAME", "frontsession"),
		RememberCookieName: getEnvOrDefault("SESSION_REMEMBER_COOKIE_NAME", "frontsession_remember"),
		CookieDomain:       os.Getenv("SESSION_COOKIE_DOMAIN"),

		MailFrom: os.Getenv("MAIL_FROM"),
		SMTPAddr: getEnvOrDefault("SMTP_ADDR", "localhost:25"),
	}

	if rcpts := os.Getenv("MAIL_ADMIN_RCPTS"); rcpts != "" {
		for _, rcpt := range strings.Split(rcpts, ",") {
			if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
				cfg.AdminRcpts = append(cfg.AdminRcpts, rcpt)
			}
		}
	}

	return cfg
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
