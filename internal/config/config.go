package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"tournament_market/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort      string
	DatabaseURL  string
	DBMaxConns   int32
	JWTSecret    string
	AdminUserIDs []string // user ids allowed to settle withdrawals

	LogLevel string
	LogJSON  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsChannel string

	PaymentWebhookToken string

	// Ledger / registration
	JoinMaxRetries              int
	WithdrawalCommissionPercent int64

	// Periodic jobs
	SweepInterval       time.Duration
	SweepBatchSize      int
	TTLBackfillInterval time.Duration

	// API limits
	APIRateLimit  int
	APIRateWindow time.Duration

	AllowedOrigin string // websocket origin check, empty allows any
}

// Load reads the configuration from env (and .env if present).
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	var adminIDs []string
	if v := os.Getenv("ADMIN_USER_IDS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				adminIDs = append(adminIDs, id)
			}
		}
	}

	channel := os.Getenv("EVENTS_CHANNEL")
	if channel == "" {
		channel = "tournament_events"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		AppPort:      port,
		DatabaseURL:  dbURL,
		DBMaxConns:   int32(intEnv("DB_MAX_CONNS", 20)),
		JWTSecret:    jwtSecret,
		AdminUserIDs: adminIDs,

		LogLevel: logLevel,
		LogJSON:  os.Getenv("LOG_JSON") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       intEnv("REDIS_DB", 0),
		EventsChannel: channel,

		PaymentWebhookToken: os.Getenv("PAYMENT_WEBHOOK_TOKEN"),

		JoinMaxRetries:              intEnv("JOIN_MAX_RETRIES", 2),
		WithdrawalCommissionPercent: int64(intEnv("WITHDRAWAL_COMMISSION_PERCENT", 4)),

		SweepInterval:       time.Duration(intEnv("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		SweepBatchSize:      intEnv("SWEEP_BATCH_SIZE", 50),
		TTLBackfillInterval: time.Duration(intEnv("TTL_BACKFILL_INTERVAL_SECONDS", 300)) * time.Second,

		APIRateLimit:  intEnv("API_RATE_LIMIT", 60),
		APIRateWindow: time.Duration(intEnv("API_RATE_WINDOW_SECONDS", 60)) * time.Second,

		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
	}
}

// IsAdmin reports whether userID may run administrative actions.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// intEnv parses a non-negative int, falling back to def on absence or garbage.
func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
		return def
	}
	return n
}
