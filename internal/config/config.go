package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// PriceDisplayMode selects whether the menu price guests see already
// contains tax (tax_included) or tax is added on top at checkout
// (tax_excluded).
type PriceDisplayMode string

const (
	PriceDisplayTaxIncluded PriceDisplayMode = "tax_included"
	PriceDisplayTaxExcluded PriceDisplayMode = "tax_excluded"
)

// Config holds application configuration, loaded once at startup and
// passed explicitly to every constructor (no process-global config lookups
// outside this snapshot and the realtime bus connection).
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PIIEncryptionKey derives the AES-256 key used to encrypt customer and
	// employee names/emails. Empty only in local/dev environments.
	PIIEncryptionKey string

	// SessionTTLHours is the lifetime of an open dining session (§6).
	SessionTTLHours int
	// TaxRate is applied to subtotals when PriceDisplayMode demands it (§6).
	TaxRate float64
	// PriceDisplayMode ∈ {tax_included, tax_excluded} (§6).
	PriceDisplayMode PriceDisplayMode
	// ClosedSessionsHistoryHours bounds closed-session listings (§6).
	ClosedSessionsHistoryHours int
	// StoreCancelReason controls whether cancellation justifications are
	// appended to order notes (§6).
	StoreCancelReason bool
	// AssignmentAutoOnAcceptDefault is the default value of a new
	// employee's auto_assign_table_on_order_accept preference (§6).
	AssignmentAutoOnAcceptDefault bool
}

// Load loads configuration from environment variables and an optional
// .env file, mirroring the teacher's Load().
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	return Config{
		AppName:      getenv("APP_SERVICE", "kitchencore"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "kitchencore"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DB_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DB_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DB_CONN_MAX_LIFETIME_SECONDS", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DB_CONN_MAX_IDLE_SECONDS", 300)),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		PIIEncryptionKey: strings.TrimSpace(getenv("PII_ENCRYPTION_KEY", "")),

		SessionTTLHours:                int(getenvInt64("SESSION_TTL_HOURS", 4)),
		TaxRate:                        getenvFloat("TAX_RATE", 0.16),
		PriceDisplayMode:               normalizePriceDisplayMode(getenv("PRICE_DISPLAY_MODE", string(PriceDisplayTaxExcluded))),
		ClosedSessionsHistoryHours:     int(getenvInt64("CLOSED_SESSIONS_HISTORY_HOURS", 24)),
		StoreCancelReason:              getenvBool("STORE_CANCEL_REASON", true),
		AssignmentAutoOnAcceptDefault:  getenvBool("ASSIGNMENT_AUTO_ON_ACCEPT_DEFAULT", true),
	}
}

func normalizePriceDisplayMode(raw string) PriceDisplayMode {
	switch PriceDisplayMode(strings.ToLower(strings.TrimSpace(raw))) {
	case PriceDisplayTaxIncluded:
		return PriceDisplayTaxIncluded
	default:
		return PriceDisplayTaxExcluded
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
