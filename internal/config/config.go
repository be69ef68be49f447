package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port         int
	NatsURL      string
	NatsToken    string
	DatabaseURL  string
	LogLevel     string
	GatewayURL   string
	GatewayToken string
	GatewayName  string
	IdentityDir  string
	SessionKey   string
	APIToken     string
}

func Load() Config {
	return Config{
		Port:         envInt("SCRIBE_PORT", 8730),
		NatsURL:      envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:    envStr("NATS_TOKEN", ""),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		GatewayURL:   envStr("GATEWAY_URL", ""),
		GatewayToken: envStr("GATEWAY_TOKEN", ""),
		GatewayName:  envStr("GATEWAY_CLIENT_NAME", "Scribe"),
		IdentityDir:  envStr("SCRIBE_IDENTITY_DIR", "data"),
		SessionKey:   envStr("SCRIBE_SESSION_KEY", "main"),
		APIToken:     envStr("SCRIBE_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
