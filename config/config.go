package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const maxPages = 4

type Config struct {
	// MongoDB configuration
	MongoURI     string
	DatabaseName string

	// Webhook configuration
	VerifyToken string

	// Facebook Graph API
	GraphAPIVersion string
	// PageTokens maps a page ID to its access token. A page without a
	// token still receives events; sending is disabled for it.
	PageTokens map[string]string

	// Claude configuration
	ClaudeAPIKey string
	ClaudeModel  string
	MaxTokens    int

	// Product catalog cache
	CatalogTTL time.Duration

	// Server configuration
	Port string
}

func LoadConfig() *Config {
	cfg := &Config{
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName:    getEnv("MONGO_DB_NAME", "messenger_shop_bot"),
		VerifyToken:     getEnv("WEBHOOK_VERIFY_TOKEN", "webhook_verify_token"),
		GraphAPIVersion: getEnv("GRAPH_API_VERSION", "v18.0"),
		ClaudeAPIKey:    getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:     getEnv("CLAUDE_MODEL", "claude-3-haiku-20240307"),
		MaxTokens:       getEnvInt("CLAUDE_MAX_TOKENS", 1024),
		CatalogTTL:      time.Duration(getEnvInt("CATALOG_TTL_SECONDS", 300)) * time.Second,
		Port:            getEnv("PORT", "8080"),
		PageTokens:      loadPageTokens(),
	}

	if cfg.ClaudeAPIKey == "" {
		slog.Warn("CLAUDE_API_KEY not set, replies fall back to keyword handling only")
	}
	if len(cfg.PageTokens) == 0 {
		slog.Warn("No page access tokens configured, outbound messaging disabled")
	}

	return cfg
}

// loadPageTokens reads PAGE_ID_n / PAGE_ACCESS_TOKEN_n pairs. A missing
// token is logged, never fatal; the page stays registered with sending
// disabled.
func loadPageTokens() map[string]string {
	tokens := make(map[string]string)
	for i := 1; i <= maxPages; i++ {
		pageID := os.Getenv(fmt.Sprintf("PAGE_ID_%d", i))
		if pageID == "" {
			continue
		}
		token := os.Getenv(fmt.Sprintf("PAGE_ACCESS_TOKEN_%d", i))
		if token == "" {
			slog.Warn("Page has no access token, sending disabled for it", "pageID", pageID)
		}
		tokens[pageID] = token
	}
	return tokens
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("Invalid integer in environment, using default", "key", key)
	}
	return defaultValue
}
