package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Feed engine
	FeedURL string
	Symbols string // comma-separated, e.g. "QQQ,AAPL,NVDA,TSLA"

	// Distribution server
	DistAddr string

	// Order subsystem command proxy
	OrderGatewayURL string
	OrderTOTPSecret string

	// New-high alerting
	WebhookURL         string
	TelegramBotToken   string
	TelegramChatID     string
	NewHighAlertStreak int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		FeedURL: getEnv("FEED_URL", "ws://localhost:9001/ws"),
		Symbols: getEnv("SYMBOLS", "QQQ,AAPL,NVDA,TSLA"),

		DistAddr: getEnv("DIST_ADDR", ":8080"),

		OrderGatewayURL: getEnv("ORDER_GATEWAY_URL", "http://localhost:8550"),
		OrderTOTPSecret: getEnv("ORDER_TOTP_SECRET", ""),

		WebhookURL:         getEnv("WEBHOOK_URL", ""),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		NewHighAlertStreak: getEnvInt("NEWHIGH_ALERT_STREAK", 0),
	}
}

// ParseSymbols splits the Symbols list into normalized upper-case symbols.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
