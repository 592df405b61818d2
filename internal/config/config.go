package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port            string
	DBUrl           string
	RedisURL        string
	JWTSecret       string
	AppEnv          string
	LogLevel        string
	NotificationTTL time.Duration
	AllowedOrigins  string
	EnableMetrics   bool
}

// ClientConfig configures cmd/chatcli and any other process embedding the
// client SDK.
type ClientConfig struct {
	APIURL            string
	WSURL             string
	Token             string
	UserID            string
	Name              string
	Role              string
	TypingQuietPeriod time.Duration
	ToastDuration     time.Duration
	ReconnectDelay    time.Duration
	SeenSettleDelay   time.Duration
	LogLevel          string
}

func LoadConfig() (*Config, error) {
	loadDotEnv()

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBUrl:           getEnv("DB_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:       jwtSecret,
		AppEnv:          normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		NotificationTTL: getEnvDuration("NOTIFICATION_TTL", 30*24*time.Hour),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "*"),
		EnableMetrics:   getEnvBool("ENABLE_METRICS", true),
	}, nil
}

func LoadClientConfig() (*ClientConfig, error) {
	loadDotEnv()

	apiURL := strings.TrimRight(getEnv("PLANZO_API_URL", "http://localhost:8080"), "/")
	wsURL := getEnv("PLANZO_WS_URL", "")
	if wsURL == "" {
		wsURL = deriveWSURL(apiURL)
	}

	return &ClientConfig{
		APIURL:            apiURL,
		WSURL:             wsURL,
		Token:             getEnv("PLANZO_TOKEN", ""),
		UserID:            getEnv("PLANZO_USER_ID", ""),
		Name:              getEnv("PLANZO_NAME", ""),
		Role:              getEnv("PLANZO_ROLE", "User"),
		TypingQuietPeriod: getEnvDuration("TYPING_QUIET_PERIOD", 3*time.Second),
		ToastDuration:     getEnvDuration("TOAST_DURATION", 4*time.Second),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 2*time.Second),
		SeenSettleDelay:   getEnvDuration("SEEN_SETTLE_DELAY", 500*time.Millisecond),
		LogLevel:          getEnv("LOG_LEVEL", "warn"),
	}, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}
}

func deriveWSURL(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://") + "/api/v1/ws"
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://") + "/api/v1/ws"
	default:
		return apiURL + "/api/v1/ws"
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}

	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
