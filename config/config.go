package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Transport
	ListenAddr  string
	MetricsAddr string

	// Market data
	BinanceAPIKey    string
	BinanceAPISecret string
	UseKlines        bool
	StagingMode      bool // serve a simulated feed instead of the exchange

	// Symbols and models
	DefaultSymbol string
	ModelsDir     string

	// Persistence
	SQLitePath  string
	SnapshotDir string

	// Optional infrastructure
	RedisAddr        string
	RedisPassword    string
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	// Session tunables
	HistoryCap          int // candle window size, sessions clamp to 100-300
	CandleInterval      time.Duration
	Heartbeat           time.Duration
	Timeout             time.Duration
	ReconnectBackoff    time.Duration
	ConfidenceThreshold float64
	SeedCandles         int
	SnapshotInterval    time.Duration

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),
		UseKlines:        getBool("USE_KLINES", true),
		StagingMode:      getBool("STAGING_MODE", false),

		DefaultSymbol: getEnv("DEFAULT_SYMBOL", "BTCUSDT"),
		ModelsDir:     getEnv("MODELS_DIR", "models"),

		SQLitePath:  getEnv("SQLITE_PATH", "data/orders.db"),
		SnapshotDir: getEnv("SNAPSHOT_DIR", "data/snapshots"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		HistoryCap:          getInt("HISTORY_CAP", 300),
		CandleInterval:      getSeconds("CANDLE_INTERVAL_SEC", 1),
		Heartbeat:           getSeconds("HEARTBEAT_SEC", 15),
		Timeout:             getSeconds("TIMEOUT_SEC", 30),
		ReconnectBackoff:    getSeconds("RECONNECT_BACKOFF_SEC", 5),
		ConfidenceThreshold: getFloat("CONFIDENCE_THRESHOLD", 0.55),
		SeedCandles:         getInt("SEED_CANDLES", 300),
		SnapshotInterval:    getSeconds("SNAPSHOT_INTERVAL_SEC", 60),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] skipping invalid value for %s: %q", key, v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f >= 1 {
		log.Printf("[config] skipping invalid value for %s: %q", key, v)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] skipping invalid value for %s: %q", key, v)
		return fallback
	}
	return b
}

func getSeconds(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Second
}
