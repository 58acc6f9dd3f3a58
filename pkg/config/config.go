package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string

	// MessagePageSize caps a single history page; clients back-fill older
	// pages with the returned cursor.
	MessagePageSize int

	// UnreadRescanInterval is how often a live session reconciles its unread
	// counters against a full store scan.
	UnreadRescanInterval time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		FirebaseProject:      getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:          getEnv("ENVIRONMENT", "development"),
		MessagePageSize:      getEnvAsInt("MESSAGE_PAGE_SIZE", 50),
		UnreadRescanInterval: time.Duration(getEnvAsInt("UNREAD_RESCAN_SECONDS", 300)) * time.Second,
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
