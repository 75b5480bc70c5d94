package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr string

	// Data Directory Configuration
	DataDir string

	// Database Configuration
	DBPath string

	// Service catalog
	ServicesFile string
	Services     Services

	// Default provider keys, used when a user has none
	DefaultKeys map[string]string

	// Provider calls
	ProviderTimeout time.Duration
	ProviderRPS     float64
	ProviderBurst   int
	HistoryWindow   int

	// Metrics
	MetricsInterval time.Duration

	// Sessions and sign-in
	SecretKey          string
	SecretKeyPath      string
	SessionCookie      string
	SessionTTL         time.Duration
	GuestLogin         bool
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// NATS Configuration
	NatsURL        string
	Stream         string
	Subject        string
	Durable        string
	ResponsePrefix string
	MaxMsgs        int
	MaxAge         time.Duration
	AckWait        time.Duration
	MaxDeliver     int
	Concurrency    int
	ServiceName    string

	// Monitoring Configuration
	MonitoringTopic       string
	BackpressureThreshold int

	LogLevel string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", "127.0.0.1:8000"),
		DataDir:      dataDir,
		DBPath:       getEnv("DB_PATH", filepath.Join(dataDir, "multichat.sqlite")),
		ServicesFile: getEnv("SERVICES_FILE", ""),
		DefaultKeys: map[string]string{
			"openai": getEnv("OPENAI_API_KEY", ""),
			"gemini": getEnv("GEMINI_API_KEY", ""),
			"grok":   getEnv("GROK_API_KEY", ""),
		},
		ProviderTimeout:       getEnvDuration("PROVIDER_TIMEOUT", "60s"),
		ProviderRPS:           getEnvFloat("PROVIDER_RPS", 2),
		ProviderBurst:         getEnvInt("PROVIDER_BURST", 4),
		HistoryWindow:         getEnvInt("HISTORY_WINDOW", 5),
		MetricsInterval:       getEnvDuration("METRICS_INTERVAL", "30s"),
		SecretKey:             getEnv("SECRET_KEY", ""),
		SecretKeyPath:         filepath.Join(dataDir, "secret.key"),
		SessionCookie:         getEnv("SESSION_COOKIE", "mc_session"),
		SessionTTL:            getEnvDuration("SESSION_TTL", "720h"),
		GuestLogin:            getEnvBool("GUEST_LOGIN", true),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:     getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8000/api/oauth/google/callback"),
		NatsURL:               getEnv("NATS_URL", ""),
		Stream:                getEnv("STREAM_NAME", "CHAT"),
		Subject:               getEnv("SUBJECT", "chat.request"),
		Durable:               getEnv("QUEUE_DURABLE", "chat-wq"),
		ResponsePrefix:        getEnv("RESPONSE_PREFIX", "chat.reply"),
		MaxMsgs:               getEnvInt("QUEUE_MAX_MSGS", 2000),
		MaxAge:                getEnvDuration("QUEUE_MAX_AGE", "30s"),
		AckWait:               getEnvDuration("ACK_WAIT", "90s"),
		MaxDeliver:            getEnvInt("MAX_DELIVER", 3),
		Concurrency:           getEnvInt("WORKER_CONCURRENCY", 2),
		ServiceName:           getEnv("SERVICE_NAME", "multichat"),
		MonitoringTopic:       getEnv("MONITORING_TOPIC", "monitoring.services.backpressure"),
		BackpressureThreshold: getEnvInt("BACKPRESSURE_THRESHOLD", 8),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	services, err := LoadServices(cfg.ServicesFile)
	if err != nil {
		return nil, err
	}
	cfg.Services = services

	return cfg, nil
}

// GoogleEnabled reports whether Google sign-in is configured
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SlogLevel maps LogLevel onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
