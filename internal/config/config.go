package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is the process configuration, loaded from the environment with
// an optional .env file.
type Config struct {
	Port string

	// WalletAddressURL identifies this client to the payment network;
	// KeyID and PrivateKeyPath are the signing key material for the
	// transport.
	WalletAddressURL string
	PrivateKeyPath   string
	KeyID            string

	PollInterval    time.Duration
	PollMaxAttempts int
	UpstreamTimeout time.Duration
	BulkheadSize    int
}

// Load reads configuration, falling back to development defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}

	return Config{
		Port:             getEnv("PORT", "3000"),
		WalletAddressURL: getEnv("WALLET_ADDRESS_URL", "https://ilp.interledger-test.dev/ange"),
		PrivateKeyPath:   getEnv("PRIVATE_KEY", "private.key"),
		KeyID:            getEnv("KEY_ID", "b794dc58-b3bb-42eb-81d5-e68ab5a023af"),
		PollInterval:     getDuration("POLL_INTERVAL", 5*time.Second),
		PollMaxAttempts:  getInt("POLL_MAX_ATTEMPTS", 24),
		UpstreamTimeout:  getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		BulkheadSize:     getInt("UPSTREAM_BULKHEAD", 10),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": raw}).Warn("Invalid integer in environment, using default")
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": raw}).Warn("Invalid duration in environment, using default")
		return fallback
	}
	return v
}
