package config

import (
	"os"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL  string
	ServerAddr   string
	SettingsPath string

	RelayBaseURL string
	RelayToken   string

	OperatorID           string
	OperatorUsername     string
	OperatorPasswordHash string
	SessionTTL           time.Duration

	AttachmentDir string

	PurchaseDecisionTimeout time.Duration
	PurchaseEscalationAfter time.Duration
	PaymentDecisionTimeout  time.Duration
	FollowUpInterval        time.Duration
	InactivityCeiling       time.Duration
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "dealdesk")
		pass := getenv("POSTGRES_PASSWORD", "dealdesk_pass")
		db := getenv("POSTGRES_DB", "dealdesk")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + db + "?sslmode=" + sslmode
	}

	return &Config{
		DatabaseURL:  dsn,
		ServerAddr:   getenv("SERVER_ADDR", "0.0.0.0:8080"),
		SettingsPath: getenv("SETTINGS_PATH", "settings.yaml"),

		RelayBaseURL: getenv("RELAY_BASE_URL", "http://localhost:9090"),
		RelayToken:   os.Getenv("RELAY_TOKEN"),

		OperatorID:           getenv("OPERATOR_ID", "operator"),
		OperatorUsername:     getenv("OPERATOR_USERNAME", "operator"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
		SessionTTL:           parseDuration(getenv("SESSION_TTL", "24h"), 24*time.Hour),

		AttachmentDir: getenv("ATTACHMENT_DIR", "coupons"),

		PurchaseDecisionTimeout: parseDuration(getenv("PURCHASE_DECISION_TIMEOUT", "5m"), 5*time.Minute),
		PurchaseEscalationAfter: parseDuration(getenv("PURCHASE_ESCALATION_AFTER", "3m"), 3*time.Minute),
		PaymentDecisionTimeout:  parseDuration(getenv("PAYMENT_DECISION_TIMEOUT", "30m"), 30*time.Minute),
		FollowUpInterval:        parseDuration(getenv("FOLLOW_UP_INTERVAL", "90s"), 90*time.Second),
		InactivityCeiling:       parseDuration(getenv("INACTIVITY_CEILING", "10m"), 10*time.Minute),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}
